package storeid

import (
	"errors"
	"testing"
)

func TestParseRecognizedIDs(t *testing.T) {
	cases := []struct {
		raw      string
		kind     Kind
		domainID string
	}{
		{"shoppingListStore-abc123", KindList, "abc123"},
		{"shoppingListsStore-user-1", KindListIndex, "user-1"},
		{"inventoryStore-user-1", KindInventory, "user-1"},
		{"purchaseHistoryStore-user-1", KindPurchaseHistory, "user-1"},
		{"globalNotificationsStore", KindGlobalNotifications, ""},
	}

	for _, testCase := range cases {
		parsed, err := Parse(testCase.raw)
		if err != nil {
			t.Fatalf("parse %q failed: %v", testCase.raw, err)
		}
		if parsed.Kind() != testCase.kind {
			t.Fatalf("parse %q: expected kind %q, got %q", testCase.raw, testCase.kind, parsed.Kind())
		}
		if parsed.DomainID() != testCase.domainID {
			t.Fatalf("parse %q: expected domain id %q, got %q", testCase.raw, testCase.domainID, parsed.DomainID())
		}
		if parsed.String() != testCase.raw {
			t.Fatalf("parse %q: round-trip mismatch %q", testCase.raw, parsed.String())
		}
	}
}

func TestParseRejectsUnknownNamespace(t *testing.T) {
	for _, raw := range []string{"", "somethingElse", "shoppingListStore-", "notifications"} {
		if _, err := Parse(raw); !errors.Is(err, ErrUnknownStoreID) {
			t.Fatalf("expected namespace rejection for %q, got %v", raw, err)
		}
	}
}

func TestConstructorsMatchParse(t *testing.T) {
	listID := ForList("abc123")
	parsed, err := Parse(listID.String())
	if err != nil {
		t.Fatalf("parse constructed id failed: %v", err)
	}
	if !parsed.IsList() || parsed.DomainID() != "abc123" {
		t.Fatalf("unexpected parse of constructed id: %+v", parsed)
	}
	if ForGlobalNotifications().String() != GlobalNotifications {
		t.Fatalf("global notifications id mismatch")
	}
}
