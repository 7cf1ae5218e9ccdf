// Package mirror implements the secondary persistence bridge: a debounced,
// best-effort copy of each per-list store into a document database record,
// used for durability beyond the file store, for cross-service queries and
// for cold-start hydration of a wiped server.
package mirror

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/storeid"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/task"
)

const defaultMirrorWindow = time.Second

var (
	errMissingDatabase = errors.New("mirror: database handle is required")

	// ErrNoDocument indicates no mirror record exists for the list.
	ErrNoDocument = errors.New("mirror: no document for list")
)

// BridgeConfig configures a Bridge.
type BridgeConfig struct {
	Database *gorm.DB
	// QuietWindow coalesces mutation bursts into one upsert. Defaults to 1s.
	QuietWindow time.Duration
	Clock       func() time.Time
	Logger      *zap.Logger
}

// Bridge mirrors per-list stores into list_documents rows. Mirror failures
// are logged and skipped; the in-memory and file-backed state stays
// authoritative and the next mutation retries.
type Bridge struct {
	db     *gorm.DB
	window time.Duration
	clock  func() time.Time
	logger *zap.Logger
}

// NewBridge validates the configuration and returns a Bridge.
func NewBridge(cfg BridgeConfig) (*Bridge, error) {
	if cfg.Database == nil {
		return nil, errMissingDatabase
	}
	window := cfg.QuietWindow
	if window <= 0 {
		window = defaultMirrorWindow
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bridge{db: cfg.Database, window: window, clock: clock, logger: logger}, nil
}

// Attachment is one store's live mirror subscription.
type Attachment struct {
	bridge     *Bridge
	listID     string
	target     *store.Store
	coalescer  *task.Coalescer
	listenerID int
}

// Attach subscribes a per-list store to the mirror. Store ids outside the
// per-list family are not mirrored and yield nil.
func (b *Bridge) Attach(id storeid.StoreID, target *store.Store) *Attachment {
	if !id.IsList() {
		return nil
	}
	attachment := &Attachment{bridge: b, listID: id.DomainID(), target: target}
	attachment.coalescer = task.NewCoalescer(task.CoalescerConfig{
		QuietWindow: b.window,
		Flush:       attachment.upsert,
	})
	attachment.listenerID = target.AddChangeListener(attachment.coalescer.Mark)
	return attachment
}

// Flush forces any pending mirror write.
func (a *Attachment) Flush() {
	if a == nil {
		return
	}
	a.coalescer.Flush()
}

// Stop detaches from the store after draining pending work.
func (a *Attachment) Stop() {
	if a == nil {
		return
	}
	a.target.DelListener(a.listenerID)
	a.coalescer.Stop()
}

func (a *Attachment) upsert() {
	encoded, err := a.target.EncodeSnapshot()
	if err != nil {
		a.bridge.logger.Warn("mirror snapshot encode failed",
			zap.String("list_id", a.listID), zap.Error(err))
		return
	}

	document := ListDocument{
		ListID:           a.listID,
		SnapshotJSON:     encoded,
		Name:             stringValue(a.target, "name"),
		Budget:           numberValue(a.target, "budget"),
		Status:           statusValue(a.target),
		UpdatedAtSeconds: a.bridge.clock().UTC().Unix(),
	}

	err = a.bridge.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "list_id"}},
		UpdateAll: true,
	}).Create(&document).Error
	if err != nil {
		// document database unreachable: skip this cycle, the next
		// mutation retries
		a.bridge.logger.Warn("mirror upsert failed",
			zap.String("list_id", a.listID), zap.Error(err))
	}
}

// LoadSnapshot returns the mirrored snapshot for a list, used once at
// store-creation cold start when the file store has nothing.
func (b *Bridge) LoadSnapshot(ctx context.Context, listID string) (string, error) {
	var document ListDocument
	err := b.db.WithContext(ctx).Where("list_id = ?", listID).Take(&document).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNoDocument
	}
	if err != nil {
		return "", err
	}
	return document.SnapshotJSON, nil
}

// ListDocuments returns every mirrored record, newest first, for external
// query surfaces that must not open per-list stores.
func (b *Bridge) ListDocuments(ctx context.Context) ([]ListDocument, error) {
	var documents []ListDocument
	if err := b.db.WithContext(ctx).Order("updated_at_s DESC").Find(&documents).Error; err != nil {
		return nil, err
	}
	return documents, nil
}

func stringValue(target *store.Store, name string) string {
	if value, ok := target.GetValue(name).(string); ok {
		return value
	}
	return ""
}

func numberValue(target *store.Store, name string) float64 {
	if value, ok := target.GetValue(name).(float64); ok {
		return value
	}
	return 0
}

func statusValue(target *store.Store) string {
	if value := stringValue(target, "status"); value != "" {
		return value
	}
	return "regular"
}
