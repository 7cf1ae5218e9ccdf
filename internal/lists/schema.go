// Package lists carries the shopping-list domain on top of the mergeable
// store: the per-list schema, the write-path service every device uses,
// and the parent/child composition that mirrors whole child stores into
// the per-user list index.
package lists

import (
	"time"

	"github.com/MessiahRailey-29/CapstoneProject-sub000/internal/store"
)

// Table and value names of the per-list store.
const (
	TableProducts      = "products"
	TableCollaborators = "collaborators"

	ValueID          = "id"
	ValueName        = "name"
	ValueDescription = "description"
	ValueEmoji       = "emoji"
	ValueColor       = "color"
	ValueShopping    = "shoppingDate"
	ValueBudget      = "budget"
	ValueStatus      = "status"
	ValueCompletedAt = "completedAt"
	ValueCreatedAt   = "createdAt"
	ValueUpdatedAt   = "updatedAt"
)

// List status enum. Transitions are plain value writes so any collaborator
// can move a list between states and merges resolve by last writer.
const (
	StatusRegular   = "regular"
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

// Table and column names of the per-user list index store.
const (
	TableLists       = "lists"
	ColumnValuesCopy = "valuesCopy"
)

// ListStoreConfig returns the store configuration of one per-list store.
// Schemas are advisory read defaults; merge mechanics never depend on them.
func ListStoreConfig(peerID string) store.Config {
	return store.Config{
		PeerID: peerID,
		Tables: map[string]store.TableSchema{
			TableProducts: {Columns: map[string]any{
				"name":              "",
				"quantity":          1,
				"units":             "",
				"isPurchased":       false,
				"category":          "",
				"notes":             "",
				"selectedStore":     "",
				"selectedPrice":     0,
				"databaseProductId": "",
				"createdBy":         "",
				"createdAt":         "",
				"updatedAt":         "",
			}},
			TableCollaborators: {Columns: map[string]any{
				"nickname": "",
			}},
		},
		ValueDefaults: map[string]any{
			ValueBudget: 0,
			ValueStatus: StatusRegular,
		},
	}
}

// IndexStoreConfig returns the store configuration of one per-user
// list-of-lists store.
func IndexStoreConfig(peerID string) store.Config {
	return store.Config{
		PeerID: peerID,
		Tables: map[string]store.TableSchema{
			TableLists: {Columns: map[string]any{
				ColumnValuesCopy: "",
			}},
		},
	}
}

func timestamp(clock func() time.Time) string {
	return clock().UTC().Format(time.RFC3339)
}
