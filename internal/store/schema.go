package store

// TableSchema declares the expected columns of a table together with the
// default value applied when a read finds the column absent. Schemas are
// advisory and per-peer: unknown tables and columns received from newer
// peers are carried through merges and snapshots untouched.
type TableSchema struct {
	Columns map[string]any
}

func (s TableSchema) defaultFor(column string) (any, bool) {
	if s.Columns == nil {
		return nil, false
	}
	value, ok := s.Columns[column]
	return value, ok
}

// applyDefaults fills declared columns missing from the row with their
// schema defaults. The row map is owned by the caller.
func (s TableSchema) applyDefaults(row map[string]any) map[string]any {
	for column, fallback := range s.Columns {
		if _, ok := row[column]; !ok {
			row[column] = fallback
		}
	}
	return row
}
