// Package storeid defines the identifier namespace that routes every peer,
// file and mirror record to one logical store.
package storeid

import (
	"errors"
	"fmt"
	"strings"
)

// Kind enumerates the recognized store families.
type Kind string

const (
	// KindList is a per-list store holding products and collaborators.
	KindList Kind = "list"
	// KindListIndex is the per-user list-of-lists store.
	KindListIndex Kind = "listIndex"
	// KindInventory is the per-user inventory store.
	KindInventory Kind = "inventory"
	// KindPurchaseHistory is the per-user purchase history store.
	KindPurchaseHistory Kind = "purchaseHistory"
	// KindGlobalNotifications is the single cross-user notifications store.
	KindGlobalNotifications Kind = "globalNotifications"
)

const (
	listPrefix            = "shoppingListStore-"
	listIndexPrefix       = "shoppingListsStore-"
	inventoryPrefix       = "inventoryStore-"
	purchaseHistoryPrefix = "purchaseHistoryStore-"

	// GlobalNotifications is the fixed store id shared by every user.
	GlobalNotifications = "globalNotificationsStore"
)

// ErrUnknownStoreID indicates an identifier outside the recognized
// namespace. Connections carrying one are rejected before any store is
// created.
var ErrUnknownStoreID = errors.New("storeid: unknown store id")

// StoreID is a parsed store identifier.
type StoreID struct {
	raw      string
	kind     Kind
	domainID string
}

// Parse validates a raw identifier against the namespace.
func Parse(raw string) (StoreID, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == GlobalNotifications {
		return StoreID{raw: trimmed, kind: KindGlobalNotifications}, nil
	}
	for prefix, kind := range map[string]Kind{
		listPrefix:            KindList,
		listIndexPrefix:       KindListIndex,
		inventoryPrefix:       KindInventory,
		purchaseHistoryPrefix: KindPurchaseHistory,
	} {
		if rest, ok := strings.CutPrefix(trimmed, prefix); ok {
			if rest == "" {
				return StoreID{}, fmt.Errorf("%w: %q has empty domain id", ErrUnknownStoreID, raw)
			}
			return StoreID{raw: trimmed, kind: kind, domainID: rest}, nil
		}
	}
	return StoreID{}, fmt.Errorf("%w: %q", ErrUnknownStoreID, raw)
}

// ForList returns the store id of one list's document.
func ForList(listID string) StoreID {
	return StoreID{raw: listPrefix + listID, kind: KindList, domainID: listID}
}

// ForListIndex returns the store id of a user's list-of-lists document.
func ForListIndex(userID string) StoreID {
	return StoreID{raw: listIndexPrefix + userID, kind: KindListIndex, domainID: userID}
}

// ForInventory returns the store id of a user's inventory document.
func ForInventory(userID string) StoreID {
	return StoreID{raw: inventoryPrefix + userID, kind: KindInventory, domainID: userID}
}

// ForPurchaseHistory returns the store id of a user's purchase history.
func ForPurchaseHistory(userID string) StoreID {
	return StoreID{raw: purchaseHistoryPrefix + userID, kind: KindPurchaseHistory, domainID: userID}
}

// ForGlobalNotifications returns the shared notifications store id.
func ForGlobalNotifications() StoreID {
	return StoreID{raw: GlobalNotifications, kind: KindGlobalNotifications}
}

// String returns the raw identifier used on the wire and on disk.
func (id StoreID) String() string {
	return id.raw
}

// Kind returns the store family.
func (id StoreID) Kind() Kind {
	return id.kind
}

// DomainID returns the embedded domain identifier (list id or user id);
// empty for the global notifications store.
func (id StoreID) DomainID() string {
	return id.domainID
}

// IsList reports whether the id names a per-list store, the only family
// mirrored into the document database.
func (id StoreID) IsList() bool {
	return id.kind == KindList
}
