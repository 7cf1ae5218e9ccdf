// Package registry is the server-side rendezvous point: one singleton
// mergeable store per store id, hydrated from file or, for per-list
// stores, from the document mirror, then kept durable by the file
// persister and mirrored by the bridge.
package registry

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/mirror"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/persist"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
)

const defaultPeerID = "sync-server"

var errMissingPersister = errors.New("registry: file persister is required")

// Config describes registry dependencies.
type Config struct {
	// Persister provides the per-store snapshot files. Required.
	Persister *persist.FilePersister
	// Bridge mirrors per-list stores; nil disables mirroring and
	// mirror-based cold-start hydration.
	Bridge *mirror.Bridge
	// PeerID stamps server-side writes. Defaults to "sync-server".
	PeerID string
	Logger *zap.Logger
}

// Entry is one live server-side store with its persistence attachments.
type Entry struct {
	StoreID    storeid.StoreID
	Store      *store.Store
	binding    *persist.Binding
	attachment *mirror.Attachment
}

// Flush forces pending file and mirror writes for this store.
func (e *Entry) Flush() {
	e.binding.Flush()
	e.attachment.Flush()
}

// Registry serializes creation per store id: concurrent requests for the
// same unseen id share a single in-flight creation, so one id can never
// fork into two stores with split histories.
type Registry struct {
	persister *persist.FilePersister
	bridge    *mirror.Bridge
	peerID    string
	logger    *zap.Logger

	mu    sync.Mutex
	slots map[string]*creationSlot
}

type creationSlot struct {
	ready chan struct{}
	entry *Entry
	err   error
}

// NewRegistry validates the configuration and returns a Registry.
func NewRegistry(cfg Config) (*Registry, error) {
	if cfg.Persister == nil {
		return nil, errMissingPersister
	}
	peerID := cfg.PeerID
	if peerID == "" {
		peerID = defaultPeerID
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		persister: cfg.Persister,
		bridge:    cfg.Bridge,
		peerID:    peerID,
		logger:    logger,
		slots:     make(map[string]*creationSlot),
	}, nil
}

// GetOrCreate returns the singleton entry for a store id, creating and
// hydrating it on first request.
func (r *Registry) GetOrCreate(ctx context.Context, id storeid.StoreID) (*Entry, error) {
	key := id.String()

	r.mu.Lock()
	slot, exists := r.slots[key]
	if !exists {
		slot = &creationSlot{ready: make(chan struct{})}
		r.slots[key] = slot
	}
	r.mu.Unlock()

	if exists {
		select {
		case <-slot.ready:
			return slot.entry, slot.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	entry, err := r.create(ctx, id)
	slot.entry = entry
	slot.err = err
	if err != nil {
		r.mu.Lock()
		delete(r.slots, key)
		r.mu.Unlock()
	}
	close(slot.ready)
	return entry, err
}

func (r *Registry) create(ctx context.Context, id storeid.StoreID) (*Entry, error) {
	target, err := store.NewStore(store.Config{PeerID: r.peerID})
	if err != nil {
		return nil, err
	}

	binding := r.persister.Start(id, target, nil)

	// cold-start hydration: a wiped file store recovers per-list state
	// from the document mirror instead of presenting an empty document
	if target.Empty() && id.IsList() && r.bridge != nil {
		encoded, loadErr := r.bridge.LoadSnapshot(ctx, id.DomainID())
		switch {
		case loadErr == nil:
			if applyErr := target.ApplySnapshot(encoded); applyErr != nil {
				r.logger.Warn("mirror snapshot unreadable, starting empty",
					zap.String("store_id", id.String()), zap.Error(applyErr))
			} else {
				r.logger.Info("store hydrated from document mirror",
					zap.String("store_id", id.String()))
			}
		case errors.Is(loadErr, mirror.ErrNoDocument):
			// genuinely new list
		default:
			r.logger.Warn("mirror hydration unavailable, starting empty",
				zap.String("store_id", id.String()), zap.Error(loadErr))
		}
	}

	var attachment *mirror.Attachment
	if r.bridge != nil {
		attachment = r.bridge.Attach(id, target)
	}

	return &Entry{StoreID: id, Store: target, binding: binding, attachment: attachment}, nil
}

// Shutdown flushes and detaches every live store's persistence.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	slots := make([]*creationSlot, 0, len(r.slots))
	for _, slot := range r.slots {
		slots = append(slots, slot)
	}
	r.mu.Unlock()

	for _, slot := range slots {
		<-slot.ready
		if slot.entry == nil {
			continue
		}
		slot.entry.binding.Stop()
		slot.entry.attachment.Stop()
	}
}
