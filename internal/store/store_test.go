package store

import (
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock(startMillis int64) *fakeClock {
	return &fakeClock{now: time.UnixMilli(startMillis)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Millisecond)
	return c.now
}

func mustStore(t *testing.T, peer string, clock *fakeClock) *Store {
	t.Helper()
	s, err := NewStore(Config{PeerID: peer, Clock: clock.Now})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}
	return s
}

func mustSetValue(t *testing.T, s *Store, name string, value any) {
	t.Helper()
	if err := s.SetValue(name, value); err != nil {
		t.Fatalf("set value %q failed: %v", name, err)
	}
}

func mustSetCell(t *testing.T, s *Store, table, rowID, column string, value any) {
	t.Helper()
	if err := s.SetCell(table, rowID, column, value); err != nil {
		t.Fatalf("set cell %s/%s/%s failed: %v", table, rowID, column, err)
	}
}

func mustSetRow(t *testing.T, s *Store, table, rowID string, row map[string]any) {
	t.Helper()
	if err := s.SetRow(table, rowID, row); err != nil {
		t.Fatalf("set row %s/%s failed: %v", table, rowID, err)
	}
}

func TestSetAndGetValue(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))

	mustSetValue(t, s, "name", "Weekly Groceries")
	mustSetValue(t, s, "budget", 250)

	if got := s.GetValue("name"); got != "Weekly Groceries" {
		t.Fatalf("unexpected name: %v", got)
	}
	if got := s.GetValue("budget"); got != float64(250) {
		t.Fatalf("expected numbers to normalize to float64, got %v", got)
	}
	if got := s.GetValue("missing"); got != nil {
		t.Fatalf("expected nil for undeclared missing value, got %v", got)
	}
}

func TestSetValueRejectsUnsupportedType(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	if err := s.SetValue("bad", map[string]string{}); err == nil {
		t.Fatalf("expected unsupported value error")
	}
}

func TestRowReadsApplySchemaDefaults(t *testing.T) {
	clock := newFakeClock(1000)
	s, err := NewStore(Config{
		PeerID: "peer-a",
		Clock:  clock.Now,
		Tables: map[string]TableSchema{
			"products": {Columns: map[string]any{"quantity": 1, "isPurchased": false}},
		},
		ValueDefaults: map[string]any{"budget": 0, "status": "regular"},
	})
	if err != nil {
		t.Fatalf("unexpected store error: %v", err)
	}

	mustSetCell(t, s, "products", "p1", "name", "Milk")

	row, ok := s.GetRow("products", "p1")
	if !ok {
		t.Fatalf("expected row to exist")
	}
	if row["quantity"] != float64(1) || row["isPurchased"] != false {
		t.Fatalf("expected schema defaults on read, got %v", row)
	}
	if got := s.GetCell("products", "p1", "quantity"); got != float64(1) {
		t.Fatalf("expected default quantity, got %v", got)
	}
	if got := s.GetValue("status"); got != "regular" {
		t.Fatalf("expected default status, got %v", got)
	}
}

func TestDelRowHidesRowFromReads(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	mustSetRow(t, s, "products", "p1", map[string]any{"name": "Milk"})

	s.DelRow("products", "p1")

	if s.HasRow("products", "p1") {
		t.Fatalf("expected row to be gone")
	}
	if _, ok := s.GetRow("products", "p1"); ok {
		t.Fatalf("expected deleted row to be unreadable")
	}
	if rows := s.GetTable("products"); len(rows) != 0 {
		t.Fatalf("expected empty table, got %v", rows)
	}
	if !s.Empty() {
		t.Fatalf("expected store with only tombstones to read as empty")
	}
}

func TestLaterWriteResurrectsDeletedRow(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	mustSetRow(t, s, "products", "p1", map[string]any{"name": "Milk"})
	s.DelRow("products", "p1")

	mustSetCell(t, s, "products", "p1", "quantity", 2)

	row, ok := s.GetRow("products", "p1")
	if !ok {
		t.Fatalf("expected row to be resurrected")
	}
	if row["name"] != "Milk" || row["quantity"] != float64(2) {
		t.Fatalf("expected resurrected row to keep history, got %v", row)
	}
}

func TestTransactionFiresListenersOnce(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	mustSetRow(t, s, "products", "p1", map[string]any{"isPurchased": true})
	mustSetRow(t, s, "products", "p2", map[string]any{"isPurchased": true})

	tableFires := 0
	valueFires := 0
	var purchasedAtFire []bool
	s.AddTableListener("products", func(string) {
		tableFires++
		for _, row := range s.GetTable("products") {
			purchasedAtFire = append(purchasedAtFire, row["isPurchased"].(bool))
		}
	})
	s.AddValueListener("status", func(string) { valueFires++ })

	s.Transaction(func() {
		for rowID := range s.GetTable("products") {
			mustSetCell(t, s, "products", rowID, "isPurchased", false)
		}
		mustSetValue(t, s, "status", "regular")
	})

	if tableFires != 1 {
		t.Fatalf("expected single table listener fire, got %d", tableFires)
	}
	if valueFires != 1 {
		t.Fatalf("expected single value listener fire, got %d", valueFires)
	}
	for _, purchased := range purchasedAtFire {
		if purchased {
			t.Fatalf("listener observed partially applied transaction")
		}
	}
}

func TestDelListenerStopsDelivery(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	fires := 0
	id := s.AddTablesListener(func() { fires++ })

	mustSetCell(t, s, "products", "p1", "name", "Milk")
	s.DelListener(id)
	mustSetCell(t, s, "products", "p1", "name", "Bread")

	if fires != 1 {
		t.Fatalf("expected one fire before removal, got %d", fires)
	}
}

func TestLocalChangeListenerSkipsMergedChanges(t *testing.T) {
	clock := newFakeClock(1000)
	local := mustStore(t, "peer-a", clock)
	remote := mustStore(t, "peer-b", newFakeClock(2000))
	mustSetValue(t, remote, "name", "Remote")

	deltas := 0
	local.AddLocalChangeListener(func(delta ChangeSet) {
		deltas++
		if delta.Empty() {
			t.Fatalf("expected non-empty delta")
		}
	})

	local.Merge(remote.ChangeSet())
	if deltas != 0 {
		t.Fatalf("merge must not produce a local delta, got %d", deltas)
	}

	mustSetValue(t, local, "budget", 10)
	if deltas != 1 {
		t.Fatalf("expected one local delta, got %d", deltas)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	mustSetValue(t, s, "name", "Weekly Groceries")
	mustSetValue(t, s, "budget", 500)
	mustSetRow(t, s, "products", "p1", map[string]any{"name": "Milk", "quantity": 2, "isPurchased": false})
	mustSetRow(t, s, "collaborators", "u1", map[string]any{"nickname": "ana"})
	s.DelRow("products", "p1")
	mustSetRow(t, s, "products", "p2", map[string]any{"name": "Bread"})

	encoded, err := s.EncodeSnapshot()
	if err != nil {
		t.Fatalf("encode snapshot failed: %v", err)
	}

	fresh := mustStore(t, "peer-c", newFakeClock(9000))
	if err := fresh.ApplySnapshot(encoded); err != nil {
		t.Fatalf("apply snapshot failed: %v", err)
	}

	assertSameState(t, s, fresh)
}

func TestApplySnapshotRejectsCorruptPayload(t *testing.T) {
	s := mustStore(t, "peer-a", newFakeClock(1000))
	mustSetValue(t, s, "name", "kept")

	if err := s.ApplySnapshot("{not json"); err == nil {
		t.Fatalf("expected decode error")
	}
	if got := s.GetValue("name"); got != "kept" {
		t.Fatalf("corrupt payload must leave state unchanged, got %v", got)
	}
}

func assertSameState(t *testing.T, a, b *Store) {
	t.Helper()
	if !sameTables(a.GetTables(), b.GetTables()) {
		t.Fatalf("tables diverged:\n%v\n%v", a.GetTables(), b.GetTables())
	}
	if !sameRow(a.GetValues(), b.GetValues()) {
		t.Fatalf("values diverged:\n%v\n%v", a.GetValues(), b.GetValues())
	}
}

func sameTables(a, b map[string]map[string]map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for tableName, rows := range a {
		otherRows, ok := b[tableName]
		if !ok || len(rows) != len(otherRows) {
			return false
		}
		for rowID, row := range rows {
			otherRow, exists := otherRows[rowID]
			if !exists || !sameRow(row, otherRow) {
				return false
			}
		}
	}
	return true
}

func sameRow(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for column, value := range a {
		if b[column] != value {
			return false
		}
	}
	return true
}
