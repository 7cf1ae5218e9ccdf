package registry

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/mirror"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/persist"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

func mustFilePersister(t *testing.T, dir string) *persist.FilePersister {
	t.Helper()
	persister, err := persist.NewFilePersister(persist.FilePersisterConfig{Dir: dir, SaveWindow: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected persister error: %v", err)
	}
	return persister
}

func mustMirrorBridge(t *testing.T) (*mirror.Bridge, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	if err := db.AutoMigrate(&mirror.ListDocument{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	bridge, err := mirror.NewBridge(mirror.BridgeConfig{Database: db, QuietWindow: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected bridge error: %v", err)
	}
	return bridge, db
}

func mustRegistry(t *testing.T, cfg Config) *Registry {
	t.Helper()
	r, err := NewRegistry(cfg)
	if err != nil {
		t.Fatalf("unexpected registry error: %v", err)
	}
	return r
}

func TestGetOrCreateReturnsSingleton(t *testing.T) {
	r := mustRegistry(t, Config{Persister: mustFilePersister(t, t.TempDir())})
	id := storeid.ForList("abc123")

	first, err := r.GetOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	second, err := r.GetOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	if first != second || first.Store != second.Store {
		t.Fatalf("expected one singleton entry per store id")
	}
}

func TestConcurrentCreationNeverForksAStore(t *testing.T) {
	r := mustRegistry(t, Config{Persister: mustFilePersister(t, t.TempDir())})
	id := storeid.ForList("race")

	const requests = 32
	entries := make([]*Entry, requests)
	var wg sync.WaitGroup
	for i := 0; i < requests; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			entry, err := r.GetOrCreate(context.Background(), id)
			if err != nil {
				t.Errorf("get or create failed: %v", err)
				return
			}
			entries[slot] = entry
		}(i)
	}
	wg.Wait()

	for _, entry := range entries {
		if entry == nil || entry.Store != entries[0].Store {
			t.Fatalf("concurrent creation produced distinct stores")
		}
	}
}

func TestColdStartHydratesFromMirror(t *testing.T) {
	bridge, db := mustMirrorBridge(t)

	// seed only the document mirror; the file store has been wiped
	seed, err := store.NewStore(store.Config{PeerID: "old-server"})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	if err := seed.SetValue("budget", 250); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	snapshot, err := seed.EncodeSnapshot()
	if err != nil {
		t.Fatalf("encode snapshot failed: %v", err)
	}
	document := mirror.ListDocument{ListID: "abc123", SnapshotJSON: snapshot, Budget: 250, Status: "regular"}
	if err := db.Create(&document).Error; err != nil {
		t.Fatalf("seed document failed: %v", err)
	}

	r := mustRegistry(t, Config{Persister: mustFilePersister(t, t.TempDir()), Bridge: bridge})
	entry, err := r.GetOrCreate(context.Background(), storeid.ForList("abc123"))
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	if got := entry.Store.GetValue("budget"); got != float64(250) {
		t.Fatalf("expected budget recovered from mirror, got %v", got)
	}
}

func TestFileSnapshotTakesPrecedenceOverMirror(t *testing.T) {
	dir := t.TempDir()
	persister := mustFilePersister(t, dir)
	id := storeid.ForList("abc123")

	fileState, err := store.NewStore(store.Config{PeerID: "server"})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	binding := persister.Start(id, fileState, nil)
	if err := fileState.SetValue("budget", 900); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	binding.Flush()
	binding.Stop()

	bridge, db := mustMirrorBridge(t)
	if err := db.Create(&mirror.ListDocument{ListID: "abc123", SnapshotJSON: "{}", Budget: 1}).Error; err != nil {
		t.Fatalf("seed document failed: %v", err)
	}

	r := mustRegistry(t, Config{Persister: persister, Bridge: bridge})
	entry, err := r.GetOrCreate(context.Background(), id)
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	if got := entry.Store.GetValue("budget"); got != float64(900) {
		t.Fatalf("expected file snapshot to win over mirror, got %v", got)
	}
}

func TestNonListStoreSkipsMirrorHydration(t *testing.T) {
	bridge, db := mustMirrorBridge(t)
	if err := db.Create(&mirror.ListDocument{ListID: "user-1", SnapshotJSON: "{}"}).Error; err != nil {
		t.Fatalf("seed document failed: %v", err)
	}

	r := mustRegistry(t, Config{Persister: mustFilePersister(t, t.TempDir()), Bridge: bridge})
	entry, err := r.GetOrCreate(context.Background(), storeid.ForInventory("user-1"))
	if err != nil {
		t.Fatalf("get or create failed: %v", err)
	}
	if !entry.Store.Empty() {
		t.Fatalf("expected inventory store to start empty")
	}
}
