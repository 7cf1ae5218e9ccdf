package mirror

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

func mustBridgeDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "mirror.db")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open database failed: %v", err)
	}
	if err := db.AutoMigrate(&ListDocument{}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	return db
}

func mustBridge(t *testing.T, db *gorm.DB) *Bridge {
	t.Helper()
	bridge, err := NewBridge(BridgeConfig{Database: db, QuietWindow: 10 * time.Millisecond})
	if err != nil {
		t.Fatalf("unexpected bridge error: %v", err)
	}
	return bridge
}

func mustListStore(t *testing.T, peer string) *store.Store {
	t.Helper()
	s, err := store.NewStore(store.Config{PeerID: peer})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return s
}

func TestAttachMirrorsListStore(t *testing.T) {
	db := mustBridgeDB(t)
	bridge := mustBridge(t, db)
	target := mustListStore(t, "server")

	attachment := bridge.Attach(storeid.ForList("abc123"), target)
	if attachment == nil {
		t.Fatalf("expected attachment for list store")
	}
	defer attachment.Stop()

	if err := target.SetValue("name", "Weekly Groceries"); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	if err := target.SetValue("budget", 250); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	attachment.Flush()

	var document ListDocument
	if err := db.Where("list_id = ?", "abc123").Take(&document).Error; err != nil {
		t.Fatalf("expected mirrored document: %v", err)
	}
	if document.Name != "Weekly Groceries" || document.Budget != 250 {
		t.Fatalf("unexpected denormalized fields: %+v", document)
	}
	if document.Status != "regular" {
		t.Fatalf("expected default status, got %q", document.Status)
	}
	if document.SnapshotJSON == "" {
		t.Fatalf("expected snapshot blob")
	}
}

func TestMirroredSnapshotHydratesFreshStore(t *testing.T) {
	db := mustBridgeDB(t)
	bridge := mustBridge(t, db)
	source := mustListStore(t, "server")

	attachment := bridge.Attach(storeid.ForList("abc123"), source)
	if err := source.SetValue("budget", 250); err != nil {
		t.Fatalf("set value failed: %v", err)
	}
	attachment.Flush()
	attachment.Stop()

	encoded, err := bridge.LoadSnapshot(context.Background(), "abc123")
	if err != nil {
		t.Fatalf("load snapshot failed: %v", err)
	}

	hydrated := mustListStore(t, "server-2")
	if err := hydrated.ApplySnapshot(encoded); err != nil {
		t.Fatalf("apply snapshot failed: %v", err)
	}
	if got := hydrated.GetValue("budget"); got != float64(250) {
		t.Fatalf("expected hydrated budget, got %v", got)
	}
}

func TestLoadSnapshotWithoutDocument(t *testing.T) {
	bridge := mustBridge(t, mustBridgeDB(t))
	if _, err := bridge.LoadSnapshot(context.Background(), "missing"); !errors.Is(err, ErrNoDocument) {
		t.Fatalf("expected ErrNoDocument, got %v", err)
	}
}

func TestAttachIgnoresNonListStores(t *testing.T) {
	bridge := mustBridge(t, mustBridgeDB(t))
	if attachment := bridge.Attach(storeid.ForInventory("user-1"), mustListStore(t, "server")); attachment != nil {
		t.Fatalf("expected inventory store not to be mirrored")
	}
	if attachment := bridge.Attach(storeid.ForGlobalNotifications(), mustListStore(t, "server")); attachment != nil {
		t.Fatalf("expected notifications store not to be mirrored")
	}
}

func TestBurstCoalescesIntoSingleUpsert(t *testing.T) {
	db := mustBridgeDB(t)
	bridge := mustBridge(t, db)
	target := mustListStore(t, "server")

	attachment := bridge.Attach(storeid.ForList("burst"), target)
	defer attachment.Stop()

	for i := 0; i < 25; i++ {
		if err := target.SetValue("budget", i); err != nil {
			t.Fatalf("set value failed: %v", err)
		}
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		var count int64
		if err := db.Model(&ListDocument{}).Where("list_id = ?", "burst").Count(&count).Error; err == nil && count == 1 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	var document ListDocument
	if err := db.Where("list_id = ?", "burst").Take(&document).Error; err != nil {
		t.Fatalf("expected mirrored document: %v", err)
	}
	if document.Budget != 24 {
		t.Fatalf("expected settled mirror with final budget, got %v", document.Budget)
	}
}
