// Package store implements the mergeable store underlying every
// synchronized shopping-list document: tables of rows plus a flat value
// bag, where each register carries a hybrid logical stamp so two
// independently mutated copies merge deterministically with
// last-writer-wins semantics per cell.
package store

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrUnsupportedValue indicates a write with a non-scalar value type.
	ErrUnsupportedValue = errors.New("store: unsupported value type")

	errMissingPeerID = errors.New("store: peer id is required")
)

// Config describes how to build a Store.
type Config struct {
	// PeerID identifies the writing peer inside every stamp. Required.
	PeerID string
	// Clock supplies wall time for stamps. Defaults to time.Now.
	Clock func() time.Time
	// Tables declares advisory per-table schemas with read defaults.
	Tables map[string]TableSchema
	// ValueDefaults declares read defaults for the value bag.
	ValueDefaults map[string]any
}

// Store is a mergeable table/value store. All methods are safe for
// concurrent use; reads and writes never block on I/O. Sharing across
// devices happens only by exchanging change sets, never shared memory.
type Store struct {
	mu            sync.Mutex
	peerID        string
	clock         func() time.Time
	logical       hybridClock
	tables        map[string]map[string]RowChange
	values        map[string]CellChange
	schemas       map[string]TableSchema
	valueDefaults map[string]any

	listeners listenerSet
	txDepth   int
	pending   pendingCommit
}

// NewStore validates the configuration and returns an empty store.
func NewStore(cfg Config) (*Store, error) {
	if cfg.PeerID == "" {
		return nil, errMissingPeerID
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}

	schemas := make(map[string]TableSchema, len(cfg.Tables))
	for tableName, schema := range cfg.Tables {
		normalizedColumns := make(map[string]any, len(schema.Columns))
		for column, fallback := range schema.Columns {
			normalized, err := normalizeValue(fallback)
			if err != nil {
				return nil, fmt.Errorf("table %q column %q: %w", tableName, column, err)
			}
			normalizedColumns[column] = normalized
		}
		schemas[tableName] = TableSchema{Columns: normalizedColumns}
	}

	valueDefaults := make(map[string]any, len(cfg.ValueDefaults))
	for name, fallback := range cfg.ValueDefaults {
		normalized, err := normalizeValue(fallback)
		if err != nil {
			return nil, fmt.Errorf("value %q: %w", name, err)
		}
		valueDefaults[name] = normalized
	}

	return &Store{
		peerID:        cfg.PeerID,
		clock:         clock,
		tables:        make(map[string]map[string]RowChange),
		values:        make(map[string]CellChange),
		schemas:       schemas,
		valueDefaults: valueDefaults,
		listeners:     newListenerSet(),
	}, nil
}

// PeerID returns the peer identifier stamped into local writes.
func (s *Store) PeerID() string {
	return s.peerID
}

// SetValue writes a scalar into the value bag with a fresh stamp.
func (s *Store) SetValue(name string, value any) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	register := CellChange{Stamp: stamp, Present: true, Value: normalized}
	s.values[name] = register
	s.pending.markValue(name)
	s.pending.recordValue(name, register)
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
	return nil
}

// DelValue tombstones a value with a fresh stamp.
func (s *Store) DelValue(name string) {
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	register := CellChange{Stamp: stamp, Present: false}
	s.values[name] = register
	s.pending.markValue(name)
	s.pending.recordValue(name, register)
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
}

// GetValue returns the current value, falling back to the declared default
// when the name is absent or tombstoned, and nil when neither exists.
func (s *Store) GetValue(name string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	if register, ok := s.values[name]; ok && register.Present {
		return register.Value
	}
	return s.valueDefaults[name]
}

// GetValues returns all present values merged over declared defaults.
func (s *Store) GetValues() map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]any, len(s.values)+len(s.valueDefaults))
	for name, fallback := range s.valueDefaults {
		out[name] = fallback
	}
	for name, register := range s.values {
		if register.Present {
			out[name] = register.Value
		} else {
			delete(out, name)
		}
	}
	return out
}

// SetCell writes one cell, refreshing the row's presence so an edit that
// postdates a concurrent delete keeps the row alive after merge.
func (s *Store) SetCell(table, rowID, column string, value any) error {
	normalized, err := normalizeValue(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	s.writeCellLocked(table, rowID, column, CellChange{Stamp: stamp, Present: true, Value: normalized}, stamp)
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
	return nil
}

// DelCell tombstones one cell. Row presence is untouched.
func (s *Store) DelCell(table, rowID, column string) {
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	tableRows := s.tableLocked(table)
	row := tableRows[rowID]
	if row.Cells == nil {
		row.Cells = make(map[string]CellChange)
	}
	register := CellChange{Stamp: stamp, Present: false}
	row.Cells[column] = register
	tableRows[rowID] = row
	s.pending.markTable(table)
	s.pending.recordCell(table, rowID, row.Stamp, row.Present, column, register)
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
}

// GetCell returns one cell value, falling back to the schema default when
// the column is absent from a present row, and nil otherwise.
func (s *Store) GetCell(table, rowID, column string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][rowID]
	if !ok || !row.Present {
		return nil
	}
	if cell, exists := row.Cells[column]; exists && cell.Present {
		return cell.Value
	}
	if fallback, declared := s.schemas[table].defaultFor(column); declared {
		return fallback
	}
	return nil
}

// SetRow writes every provided column under a single stamp.
func (s *Store) SetRow(table, rowID string, columns map[string]any) error {
	normalizedColumns := make(map[string]any, len(columns))
	for column, value := range columns {
		normalized, err := normalizeValue(value)
		if err != nil {
			return fmt.Errorf("column %q: %w", column, err)
		}
		normalizedColumns[column] = normalized
	}
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	for column, normalized := range normalizedColumns {
		s.writeCellLocked(table, rowID, column, CellChange{Stamp: stamp, Present: true, Value: normalized}, stamp)
	}
	if len(normalizedColumns) == 0 {
		s.writeRowPresenceLocked(table, rowID, stamp)
	}
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
	return nil
}

// DelRow tombstones a row's presence with a fresh stamp. Cells are kept so
// a later write can resurrect the row with its history intact.
func (s *Store) DelRow(table, rowID string) {
	s.mu.Lock()
	stamp := s.logical.next(s.clock(), s.peerID)
	tableRows := s.tableLocked(table)
	row := tableRows[rowID]
	row.Stamp = stamp
	row.Present = false
	tableRows[rowID] = row
	s.pending.markTable(table)
	s.pending.recordRowPresence(table, rowID, stamp, false)
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
}

// HasRow reports whether the row currently exists.
func (s *Store) HasRow(table, rowID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][rowID]
	return ok && row.Present
}

// GetRow returns the visible columns of a row merged over schema defaults.
// The second result is false when the row does not exist.
func (s *Store) GetRow(table, rowID string) (map[string]any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.tables[table][rowID]
	if !ok || !row.Present {
		return nil, false
	}
	return s.schemas[table].applyDefaults(visibleCells(row)), true
}

// GetTable returns every present row of a table.
func (s *Store) GetTable(table string) map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tableSnapshotLocked(table)
}

// GetTables returns every table that has at least one present row.
func (s *Store) GetTables() map[string]map[string]map[string]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]map[string]map[string]any)
	for tableName := range s.tables {
		if rows := s.tableSnapshotLocked(tableName); len(rows) > 0 {
			out[tableName] = rows
		}
	}
	return out
}

// Empty reports whether the store has no present values and no present
// rows. A never-hydrated store and a genuinely empty one are
// indistinguishable by design.
func (s *Store) Empty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, register := range s.values {
		if register.Present {
			return false
		}
	}
	for _, rows := range s.tables {
		for _, row := range rows {
			if row.Present {
				return false
			}
		}
	}
	return true
}

// Transaction batches writes so listeners fire exactly once after fn
// returns. It batches observable side effects only; every contained write
// remains an independent mergeable register.
func (s *Store) Transaction(fn func()) {
	s.mu.Lock()
	s.txDepth++
	s.mu.Unlock()

	fn()

	s.mu.Lock()
	s.txDepth--
	var notice commitNotice
	if s.txDepth == 0 {
		notice = s.commitLocked()
	}
	s.mu.Unlock()
	notice.dispatch()
}

// ChangeSet exports the full stamped state, tombstones included.
func (s *Store) ChangeSet() ChangeSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ChangeSet{Tables: s.tables, Values: s.values}.clone()
}

// Merge applies a remote change set using last-writer-wins per register.
// Applying the same change set again is a no-op, and merge order does not
// affect the resulting state.
func (s *Store) Merge(changes ChangeSet) {
	s.mu.Lock()
	for name, incoming := range changes.Values {
		s.logical.observe(incoming.Stamp)
		current, ok := s.values[name]
		if !ok || current.Stamp.Less(incoming.Stamp) {
			s.values[name] = incoming
			s.pending.markValue(name)
		}
	}
	for tableName, rows := range changes.Tables {
		for rowID, incomingRow := range rows {
			s.logical.observe(incomingRow.Stamp)
			for _, incomingCell := range incomingRow.Cells {
				s.logical.observe(incomingCell.Stamp)
			}

			tableRows := s.tableLocked(tableName)
			current, ok := tableRows[rowID]
			if !ok {
				tableRows[rowID] = incomingRow.clone()
				s.pending.markTable(tableName)
				continue
			}
			changed := false
			if current.Stamp.Less(incomingRow.Stamp) {
				current.Stamp = incomingRow.Stamp
				current.Present = incomingRow.Present
				changed = true
			}
			for column, incomingCell := range incomingRow.Cells {
				existing, exists := current.Cells[column]
				if !exists || existing.Stamp.Less(incomingCell.Stamp) {
					if current.Cells == nil {
						current.Cells = make(map[string]CellChange)
					}
					current.Cells[column] = incomingCell
					changed = true
				}
			}
			tableRows[rowID] = current
			if changed {
				s.pending.markTable(tableName)
			}
		}
	}
	notice := s.commitLocked()
	s.mu.Unlock()
	notice.dispatch()
}

// EncodeSnapshot serializes the full state, suitable for file persistence
// and the parent store's valuesCopy cell.
func (s *Store) EncodeSnapshot() (string, error) {
	return EncodeChangeSet(s.ChangeSet())
}

// ApplySnapshot merges a snapshot previously produced by EncodeSnapshot.
// Because snapshots carry stamps, seeding an empty store and re-applying
// the same snapshot later are both safe.
func (s *Store) ApplySnapshot(encoded string) error {
	changes, err := DecodeChangeSet(encoded)
	if err != nil {
		return err
	}
	s.Merge(changes)
	return nil
}

func (s *Store) tableLocked(table string) map[string]RowChange {
	rows, ok := s.tables[table]
	if !ok {
		rows = make(map[string]RowChange)
		s.tables[table] = rows
	}
	return rows
}

func (s *Store) writeCellLocked(table, rowID, column string, register CellChange, stamp Stamp) {
	tableRows := s.tableLocked(table)
	row := tableRows[rowID]
	row.Stamp = stamp
	row.Present = true
	if row.Cells == nil {
		row.Cells = make(map[string]CellChange)
	}
	row.Cells[column] = register
	tableRows[rowID] = row
	s.pending.markTable(table)
	s.pending.recordCell(table, rowID, stamp, true, column, register)
}

func (s *Store) writeRowPresenceLocked(table, rowID string, stamp Stamp) {
	tableRows := s.tableLocked(table)
	row := tableRows[rowID]
	row.Stamp = stamp
	row.Present = true
	tableRows[rowID] = row
	s.pending.markTable(table)
	s.pending.recordRowPresence(table, rowID, stamp, true)
}

func (s *Store) tableSnapshotLocked(table string) map[string]map[string]any {
	rows := s.tables[table]
	schema := s.schemas[table]
	out := make(map[string]map[string]any, len(rows))
	for rowID, row := range rows {
		if !row.Present {
			continue
		}
		out[rowID] = schema.applyDefaults(visibleCells(row))
	}
	return out
}

func visibleCells(row RowChange) map[string]any {
	columns := make(map[string]any, len(row.Cells))
	for column, cell := range row.Cells {
		if cell.Present {
			columns[column] = cell.Value
		}
	}
	return columns
}

func normalizeValue(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case bool:
		return v, nil
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnsupportedValue, value)
	}
}
