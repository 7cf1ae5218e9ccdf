package store

import "encoding/json"

// CellChange carries one stamped register: a scalar value or value-bag
// entry, or a single cell of a row. Present=false is a tombstone that still
// participates in later merges.
type CellChange struct {
	Stamp   Stamp `json:"stamp"`
	Present bool  `json:"present"`
	Value   any   `json:"value,omitempty"`
}

// RowChange carries a row's presence register plus its cells. The presence
// stamp is refreshed by every local cell write on the row, so an edit that
// postdates a remote delete resurrects the row after merge.
type RowChange struct {
	Stamp   Stamp                 `json:"stamp"`
	Present bool                  `json:"present"`
	Cells   map[string]CellChange `json:"cells,omitempty"`
}

// ChangeSet is the encoded, mergeable form of a store's state. Merging a
// change set is commutative, associative and idempotent; tombstoned rows
// and cells are included so deletions propagate.
type ChangeSet struct {
	Tables map[string]map[string]RowChange `json:"tables,omitempty"`
	Values map[string]CellChange           `json:"values,omitempty"`
}

// Empty reports whether the change set carries no registers at all.
func (c ChangeSet) Empty() bool {
	return len(c.Tables) == 0 && len(c.Values) == 0
}

func (c ChangeSet) clone() ChangeSet {
	out := ChangeSet{}
	if len(c.Tables) > 0 {
		out.Tables = make(map[string]map[string]RowChange, len(c.Tables))
		for tableName, rows := range c.Tables {
			copiedRows := make(map[string]RowChange, len(rows))
			for rowID, row := range rows {
				copiedRows[rowID] = row.clone()
			}
			out.Tables[tableName] = copiedRows
		}
	}
	if len(c.Values) > 0 {
		out.Values = make(map[string]CellChange, len(c.Values))
		for name, value := range c.Values {
			out.Values[name] = value
		}
	}
	return out
}

func (r RowChange) clone() RowChange {
	copied := RowChange{Stamp: r.Stamp, Present: r.Present}
	if len(r.Cells) > 0 {
		copied.Cells = make(map[string]CellChange, len(r.Cells))
		for column, cell := range r.Cells {
			copied.Cells[column] = cell
		}
	}
	return copied
}

// EncodeChangeSet serializes a change set to its JSON wire/storage form.
func EncodeChangeSet(changes ChangeSet) (string, error) {
	encoded, err := json.Marshal(changes)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

// DecodeChangeSet parses a change set previously produced by
// EncodeChangeSet. Scalar values decode to string, float64 or bool, which
// matches the store's normalized value domain.
func DecodeChangeSet(encoded string) (ChangeSet, error) {
	var changes ChangeSet
	if err := json.Unmarshal([]byte(encoded), &changes); err != nil {
		return ChangeSet{}, err
	}
	return changes, nil
}
