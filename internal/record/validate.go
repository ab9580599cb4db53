package record

import (
	"fmt"
	"sort"
)

// normalize sorts rec's values into schema column order and checks that
// every declared column is present with a matching type (and, for
// VARCHAR, a value within the declared maximum length). It returns a new
// Record; rec itself is left untouched.
func normalize(s *Schema, rec Record) (Record, error) {
	byID := make(map[uint16]Value, len(rec.Values))
	for _, v := range rec.Values {
		byID[v.ColumnID] = v
	}
	if len(byID) != len(s.Columns) {
		return Record{}, fmt.Errorf("record: expected %d columns, got %d", len(s.Columns), len(byID))
	}

	out := Record{DataID: rec.DataID, Values: make([]Value, len(s.Columns))}
	for i, c := range s.Columns {
		v, ok := byID[c.ID]
		if !ok {
			return Record{}, fmt.Errorf("record: missing value for column %q (id %d)", c.Name, c.ID)
		}
		if !v.Null && v.Type != c.Type {
			return Record{}, fmt.Errorf("record: column %q expects %s, got %s", c.Name, c.Type, v.Type)
		}
		if v.Null && c.NotNull {
			return Record{}, fmt.Errorf("record: column %q is NOT NULL", c.Name)
		}
		if !v.Null && c.Type == TypeVarchar && len(v.S) > int(c.MaxLen) {
			return Record{}, fmt.Errorf("record: column %q value exceeds VARCHAR(%d)", c.Name, c.MaxLen)
		}
		v.ColumnID = c.ID
		out.Values[i] = v
	}
	return out, nil
}

// sortedColumnIDs returns a table's column ids in ascending order.
func sortedColumnIDs(cols []Column) []uint16 {
	ids := make([]uint16, len(cols))
	for i, c := range cols {
		ids[i] = c.ID
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Equal compares two records by column-id keyed values, ignoring DataID,
// per the spec's record-equality rule.
func Equal(a, b Record) bool {
	if len(a.Values) != len(b.Values) {
		return false
	}
	am := make(map[uint16]Value, len(a.Values))
	for _, v := range a.Values {
		am[v.ColumnID] = v
	}
	for _, v := range b.Values {
		av, ok := am[v.ColumnID]
		if !ok || !av.Equal(v) {
			return false
		}
	}
	return true
}
