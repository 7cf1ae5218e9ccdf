// Package persist binds a mergeable store to durable files: one
// `<storeId>.json` snapshot per store under a configured directory, loaded
// on start and rewritten, debounced, after every commit.
package persist

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/task"
)

const defaultSaveWindow = 200 * time.Millisecond

var errMissingDir = errors.New("persist: storage directory is required")

// FilePersisterConfig configures a FilePersister.
type FilePersisterConfig struct {
	// Dir is the storage directory, created on demand. Required.
	Dir string
	// SaveWindow debounces snapshot writes. Defaults to 200ms.
	SaveWindow time.Duration
	Logger     *zap.Logger
}

// FilePersister creates per-store bindings to snapshot files.
type FilePersister struct {
	dir    string
	window time.Duration
	logger *zap.Logger
}

// NewFilePersister validates the configuration and returns a persister.
func NewFilePersister(cfg FilePersisterConfig) (*FilePersister, error) {
	if cfg.Dir == "" {
		return nil, errMissingDir
	}
	window := cfg.SaveWindow
	if window <= 0 {
		window = defaultSaveWindow
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FilePersister{dir: cfg.Dir, window: window, logger: logger}, nil
}

// Binding is one store's attachment to its snapshot file.
type Binding struct {
	persister  *FilePersister
	storeID    storeid.StoreID
	target     *store.Store
	path       string
	coalescer  *task.Coalescer
	listenerID int
	degraded   bool
}

// Start loads any existing snapshot into the (still empty) store, invokes
// onReady, then subscribes to commits and writes snapshots back, debounced.
// Unavailable storage degrades the binding to memory-only: the store keeps
// working, nothing survives a restart, and the condition is logged.
func (p *FilePersister) Start(id storeid.StoreID, target *store.Store, onReady func()) *Binding {
	binding := &Binding{
		persister: p,
		storeID:   id,
		target:    target,
		path:      filepath.Join(p.dir, id.String()+".json"),
	}

	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		p.logger.Warn("storage directory unavailable, persisting in memory only",
			zap.String("store_id", id.String()), zap.Error(err))
		binding.degraded = true
	}

	if !binding.degraded {
		if encoded, err := os.ReadFile(binding.path); err == nil {
			if target.Empty() {
				if applyErr := target.ApplySnapshot(string(encoded)); applyErr != nil {
					p.logger.Warn("stored snapshot unreadable, starting empty",
						zap.String("store_id", id.String()), zap.Error(applyErr))
				}
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			p.logger.Warn("snapshot load failed, persisting in memory only",
				zap.String("store_id", id.String()), zap.Error(err))
			binding.degraded = true
		}
	}

	if onReady != nil {
		onReady()
	}

	binding.coalescer = task.NewCoalescer(task.CoalescerConfig{
		QuietWindow: p.window,
		Flush:       binding.save,
	})
	binding.listenerID = target.AddChangeListener(binding.coalescer.Mark)
	return binding
}

// Flush forces any pending snapshot write.
func (b *Binding) Flush() {
	b.coalescer.Flush()
}

// Stop detaches from the store and drains the last pending write.
func (b *Binding) Stop() {
	b.target.DelListener(b.listenerID)
	b.coalescer.Stop()
}

// Path returns the snapshot file location.
func (b *Binding) Path() string {
	return b.path
}

func (b *Binding) save() {
	if b.degraded {
		return
	}
	encoded, err := b.target.EncodeSnapshot()
	if err != nil {
		b.persister.logger.Warn("snapshot encode failed",
			zap.String("store_id", b.storeID.String()), zap.Error(err))
		return
	}
	temp := b.path + ".tmp"
	if err := os.WriteFile(temp, []byte(encoded), 0o644); err != nil {
		b.persister.logger.Warn("snapshot write failed",
			zap.String("store_id", b.storeID.String()), zap.Error(err))
		return
	}
	if err := os.Rename(temp, b.path); err != nil {
		b.persister.logger.Warn("snapshot rename failed",
			zap.String("store_id", b.storeID.String()), zap.Error(err))
	}
}
