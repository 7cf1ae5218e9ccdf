// Package inventory maintains the per-user inventory and purchase-history
// stores fed by completed shopping runs. Both are flat mergeable stores
// with no nested composition; rows are written once on completion and the
// few user-editable inventory fields have dedicated helpers.
package inventory

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/lists"
	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

// Table names of the per-user stores.
const (
	TableItems     = "items"
	TablePurchases = "purchases"
)

var (
	errMissingInventoryStore = errors.New("inventory: inventory store is required")
	errMissingHistoryStore   = errors.New("inventory: purchase history store is required")
	errMissingIDProvider     = errors.New("inventory: id provider is required")
	errUnknownItem           = errors.New("inventory: item not found")
)

// InventoryStoreConfig returns the store configuration of a per-user
// inventory store.
func InventoryStoreConfig(peerID string) store.Config {
	return store.Config{
		PeerID: peerID,
		Tables: map[string]store.TableSchema{
			TableItems: {Columns: map[string]any{
				"name":            "",
				"quantity":        0,
				"units":           "",
				"category":        "",
				"storageLocation": "",
				"sourceListId":    "",
				"addedAt":         "",
			}},
		},
	}
}

// HistoryStoreConfig returns the store configuration of a per-user
// purchase-history store.
func HistoryStoreConfig(peerID string) store.Config {
	return store.Config{
		PeerID: peerID,
		Tables: map[string]store.TableSchema{
			TablePurchases: {Columns: map[string]any{
				"name":        "",
				"quantity":    0,
				"units":       "",
				"price":       0,
				"store":       "",
				"listId":      "",
				"purchasedAt": "",
			}},
		},
	}
}

// RecorderConfig describes Recorder dependencies.
type RecorderConfig struct {
	// Inventory is the per-user inventory store.
	Inventory *store.Store
	// History is the per-user purchase-history store.
	History    *store.Store
	Clock      func() time.Time
	IDProvider lists.IDProvider
	Logger     *zap.Logger
}

// Recorder moves purchased products from a completed list into the user's
// inventory and purchase history.
type Recorder struct {
	inventory *store.Store
	history   *store.Store
	clock     func() time.Time
	ids       lists.IDProvider
	logger    *zap.Logger
}

// NewRecorder validates the configuration and returns a Recorder.
func NewRecorder(cfg RecorderConfig) (*Recorder, error) {
	if cfg.Inventory == nil {
		return nil, errMissingInventoryStore
	}
	if cfg.History == nil {
		return nil, errMissingHistoryStore
	}
	if cfg.IDProvider == nil {
		return nil, errMissingIDProvider
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{
		inventory: cfg.Inventory,
		history:   cfg.History,
		clock:     clock,
		ids:       cfg.IDProvider,
		logger:    logger,
	}, nil
}

// RecordCompletion writes one inventory item and one purchase-history
// entry per purchased product, each store updated in a single transaction.
func (r *Recorder) RecordCompletion(listID, listName string, products []lists.PurchasedProduct) error {
	if len(products) == 0 {
		return nil
	}

	type pendingRow struct {
		id      string
		product lists.PurchasedProduct
	}
	rows := make([]pendingRow, 0, len(products))
	for _, product := range products {
		itemID, err := r.ids.NewID()
		if err != nil {
			return fmt.Errorf("inventory id generation: %w", err)
		}
		rows = append(rows, pendingRow{id: itemID, product: product})
	}

	now := r.clock().UTC().Format(time.RFC3339)
	r.inventory.Transaction(func() {
		for _, row := range rows {
			r.inventory.SetRow(TableItems, row.id, map[string]any{
				"name":            row.product.Name,
				"quantity":        row.product.Quantity,
				"units":           row.product.Units,
				"category":        row.product.Category,
				"storageLocation": "",
				"sourceListId":    listID,
				"addedAt":         now,
			})
		}
	})
	r.history.Transaction(func() {
		for _, row := range rows {
			r.history.SetRow(TablePurchases, row.id, map[string]any{
				"name":        row.product.Name,
				"quantity":    row.product.Quantity,
				"units":       row.product.Units,
				"price":       row.product.SelectedPrice,
				"store":       row.product.SelectedStore,
				"listId":      listID,
				"purchasedAt": now,
			})
		}
	})

	r.logger.Info("shopping completion recorded",
		zap.String("list_id", listID),
		zap.String("list_name", listName),
		zap.Int("products", len(rows)))
	return nil
}

// SetStorageLocation updates where an inventory item is kept.
func (r *Recorder) SetStorageLocation(itemID, location string) error {
	if !r.inventory.HasRow(TableItems, itemID) {
		return errUnknownItem
	}
	return r.inventory.SetCell(TableItems, itemID, "storageLocation", location)
}

// SetQuantity updates an inventory item's remaining quantity. Zero keeps
// the row; consumption tracking is not a delete.
func (r *Recorder) SetQuantity(itemID string, quantity float64) error {
	if !r.inventory.HasRow(TableItems, itemID) {
		return errUnknownItem
	}
	return r.inventory.SetCell(TableItems, itemID, "quantity", quantity)
}
