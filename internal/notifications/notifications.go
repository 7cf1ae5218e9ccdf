// Package notifications works with the single global notifications store
// shared by every client. The store is never partitioned: all peers sync
// all rows and filter locally by user and expiry. Soft deletion happens by
// back-dating expiresAt, so the tombstone itself merges like any other
// cell write.
package notifications

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

// TableNotifications is the single table of the global store.
const TableNotifications = "notifications"

// Notification types written by server-side jobs.
const (
	TypeShoppingReminder = "shopping_reminder"
	TypeListShared       = "list_shared"
	TypeProductRestock   = "product_restock"
)

const defaultTTL = 30 * 24 * time.Hour

var (
	errMissingStore        = errors.New("notifications: store is required")
	errMissingUserID       = errors.New("notifications: user id is required")
	errMissingTitle        = errors.New("notifications: title is required")
	errUnknownNotification = errors.New("notifications: notification not found")
)

// StoreConfig returns the store configuration of the global store.
func StoreConfig(peerID string) store.Config {
	return store.Config{
		PeerID: peerID,
		Tables: map[string]store.TableSchema{
			TableNotifications: {Columns: map[string]any{
				"userId":        "",
				"type":          "",
				"title":         "",
				"message":       "",
				"listId":        "",
				"productName":   "",
				"scheduledDate": "",
				"isRead":        false,
				"createdAt":     "",
				"expiresAt":     "",
			}},
		},
	}
}

// WriterConfig describes Writer dependencies.
type WriterConfig struct {
	// Store is the global notifications store.
	Store *store.Store
	Clock func() time.Time
	// TTL bounds how long a notification stays active. Defaults to 30 days.
	TTL    time.Duration
	Logger *zap.Logger
}

// Writer publishes and mutates rows in the global store. Row ids are
// ULIDs so ids sort by creation time across all writers without
// coordination.
type Writer struct {
	store  *store.Store
	clock  func() time.Time
	ttl    time.Duration
	logger *zap.Logger

	mu      sync.Mutex
	entropy *rand.Rand
}

// NewWriter validates the configuration and returns a Writer.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{
		store:   cfg.Store,
		clock:   clock,
		ttl:     ttl,
		logger:  logger,
		entropy: rand.New(rand.NewSource(clock().UnixNano())),
	}, nil
}

// Draft carries the caller-supplied fields of a new notification.
type Draft struct {
	UserID        string
	Type          string
	Title         string
	Message       string
	ListID        string
	ProductName   string
	ScheduledDate string
}

// Publish writes a new notification row and returns its id.
func (w *Writer) Publish(draft Draft) (string, error) {
	if strings.TrimSpace(draft.UserID) == "" {
		return "", errMissingUserID
	}
	if strings.TrimSpace(draft.Title) == "" {
		return "", errMissingTitle
	}

	now := w.clock().UTC()
	w.mu.Lock()
	id, err := ulid.New(ulid.Timestamp(now), w.entropy)
	w.mu.Unlock()
	if err != nil {
		return "", fmt.Errorf("notification id generation: %w", err)
	}

	notificationID := id.String()
	setErr := w.store.SetRow(TableNotifications, notificationID, map[string]any{
		"userId":        draft.UserID,
		"type":          draft.Type,
		"title":         draft.Title,
		"message":       draft.Message,
		"listId":        draft.ListID,
		"productName":   draft.ProductName,
		"scheduledDate": draft.ScheduledDate,
		"isRead":        false,
		"createdAt":     now.Format(time.RFC3339),
		"expiresAt":     now.Add(w.ttl).Format(time.RFC3339),
	})
	if setErr != nil {
		return "", setErr
	}
	w.logger.Debug("notification published",
		zap.String("notification_id", notificationID),
		zap.String("user_id", draft.UserID),
		zap.String("type", draft.Type))
	return notificationID, nil
}

// MarkRead flags a notification as read.
func (w *Writer) MarkRead(notificationID string) error {
	if !w.store.HasRow(TableNotifications, notificationID) {
		return errUnknownNotification
	}
	return w.store.SetCell(TableNotifications, notificationID, "isRead", true)
}

// Expire soft-deletes a notification by back-dating its expiry. The row
// stays in the store so the expiry itself syncs to every peer.
func (w *Writer) Expire(notificationID string) error {
	if !w.store.HasRow(TableNotifications, notificationID) {
		return errUnknownNotification
	}
	expired := w.clock().UTC().Add(-time.Second).Format(time.RFC3339)
	return w.store.SetCell(TableNotifications, notificationID, "expiresAt", expired)
}

// Notification is one active row read back from the store.
type Notification struct {
	ID            string
	UserID        string
	Type          string
	Title         string
	Message       string
	ListID        string
	ProductName   string
	ScheduledDate string
	IsRead        bool
	CreatedAt     string
	ExpiresAt     string
}

// ActiveForUser filters the global store down to one user's unexpired
// notifications, the same filter every client applies locally.
func ActiveForUser(s *store.Store, userID string, now time.Time) []Notification {
	var active []Notification
	for id, row := range s.GetTable(TableNotifications) {
		rowUser, _ := row["userId"].(string)
		if rowUser != userID {
			continue
		}
		expiresAt, _ := row["expiresAt"].(string)
		expiry, err := time.Parse(time.RFC3339, expiresAt)
		if err != nil || !expiry.After(now) {
			continue
		}
		isRead, _ := row["isRead"].(bool)
		title, _ := row["title"].(string)
		message, _ := row["message"].(string)
		kind, _ := row["type"].(string)
		listID, _ := row["listId"].(string)
		productName, _ := row["productName"].(string)
		scheduledDate, _ := row["scheduledDate"].(string)
		createdAt, _ := row["createdAt"].(string)
		active = append(active, Notification{
			ID:            id,
			UserID:        rowUser,
			Type:          kind,
			Title:         title,
			Message:       message,
			ListID:        listID,
			ProductName:   productName,
			ScheduledDate: scheduledDate,
			IsRead:        isRead,
			CreatedAt:     createdAt,
			ExpiresAt:     expiresAt,
		})
	}
	return active
}
