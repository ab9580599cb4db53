package catalog

import (
	"math"
	"sort"

	"godb/internal/index/btree"
	"godb/internal/record"
)

// Op is a constraint comparison operator.
type Op int

const (
	OpEQ Op = iota
	OpNEQ
	OpGT
	OpGEQ
	OpLT
	OpLEQ
	OpIsNull
	OpIsNotNull
)

// Predicate is one comparison against a column's value.
type Predicate struct {
	Op    Op
	Value record.Value
}

// SearchConstraint is the full set of predicates applied to one column.
type SearchConstraint struct {
	ColumnID uint16
	Preds    []Predicate
}

func evalPredicate(v record.Value, p Predicate) bool {
	switch p.Op {
	case OpIsNull:
		return v.Null
	case OpIsNotNull:
		return !v.Null
	case OpEQ:
		return !v.Null && v.Equal(p.Value)
	case OpNEQ:
		return v.Null || !v.Equal(p.Value)
	case OpGT, OpGEQ, OpLT, OpLEQ:
		if v.Null || v.Type != record.TypeInt32 {
			return false
		}
		switch p.Op {
		case OpGT:
			return v.I32 > p.Value.I32
		case OpGEQ:
			return v.I32 >= p.Value.I32
		case OpLT:
			return v.I32 < p.Value.I32
		case OpLEQ:
			return v.I32 <= p.Value.I32
		}
	}
	return false
}

func matchesAll(rec record.Record, constraints []SearchConstraint) bool {
	for _, c := range constraints {
		v, ok := rec.ByColumn(c.ColumnID)
		if !ok {
			v = record.NullValue(c.ColumnID, record.TypeInt32)
		}
		for _, p := range c.Preds {
			if !evalPredicate(v, p) {
				return false
			}
		}
	}
	return true
}

// columnRange collapses a column's range predicates (EQ/GT/GEQ/LT/LEQ)
// into a single [lo,hi] int32 interval usable as an index bound. ok is
// false when the column has no range-shaped predicate to offer the
// planner (NEQ-only, non-INT, or no constraint at all).
func columnRange(c SearchConstraint) (lo, hi int32, ok bool) {
	lo, hi = math.MinInt32, math.MaxInt32
	found := false
	for _, p := range c.Preds {
		if p.Value.Null || p.Value.Type != record.TypeInt32 {
			continue
		}
		switch p.Op {
		case OpEQ:
			lo, hi, found = p.Value.I32, p.Value.I32, true
		case OpGT:
			if p.Value.I32+1 > lo {
				lo = p.Value.I32 + 1
			}
			found = true
		case OpGEQ:
			if p.Value.I32 > lo {
				lo = p.Value.I32
			}
			found = true
		case OpLT:
			if p.Value.I32-1 < hi {
				hi = p.Value.I32 - 1
			}
			found = true
		case OpLEQ:
			if p.Value.I32 < hi {
				hi = p.Value.I32
			}
			found = true
		}
	}
	return lo, hi, found
}

func constraintFor(constraints []SearchConstraint, colID uint16) (SearchConstraint, bool) {
	for _, c := range constraints {
		if c.ColumnID == colID {
			return c, true
		}
	}
	return SearchConstraint{}, false
}

// chooseIndex returns the declared index whose column tuple has the
// longest usable range-predicate prefix, and the [low,high] composite
// keys to range_search it with.
func chooseIndex(indexes []indexMeta, constraints []SearchConstraint) (indexMeta, []int32, []int32, bool) {
	var best indexMeta
	var bestLow, bestHigh []int32
	bestPrefix := -1
	for _, ix := range indexes {
		low := make([]int32, len(ix.columns))
		high := make([]int32, len(ix.columns))
		prefix := 0
		for i, col := range ix.columns {
			c, ok := constraintFor(constraints, col)
			if !ok {
				low[i], high[i] = btree.NullInt, math.MaxInt32
				continue
			}
			lo, hi, found := columnRange(c)
			if !found {
				low[i], high[i] = btree.NullInt, math.MaxInt32
				continue
			}
			low[i], high[i] = lo, hi
			if i == prefix {
				prefix++
			}
		}
		if prefix > 0 && prefix > bestPrefix {
			bestPrefix = prefix
			best = ix
			bestLow, bestHigh = low, high
		}
	}
	return best, bestLow, bestHigh, bestPrefix > 0
}

// Search runs constraints against table, using a declared index's range
// scan when a usable prefix exists and falling back to a full heap scan
// otherwise, then optionally sorts ascending (nulls first) by sortBy.
func (c *Catalog) Search(table string, constraints []SearchConstraint, sortBy int32) ([]record.LocatedRecord, error) {
	t, err := c.loadTable(table)
	if err != nil {
		return nil, err
	}
	indexes, err := c.indexList(t)
	if err != nil {
		return nil, err
	}

	var rows []record.LocatedRecord
	if ix, low, high, ok := chooseIndex(indexes, constraints); ok {
		entries, err := c.indexes.RangeSearch(indexFilePath(t.dbID, t.id, ix.id), low, high)
		if err != nil {
			return nil, err
		}
		locs := make([]record.Location, len(entries))
		for i, e := range entries {
			locs[i] = record.Location{PageID: e.Location.PageID, SlotID: e.Location.SlotID}
		}
		recs, err := c.records.GetRecords(recordPath(t.dbID, t.id), locs)
		if err != nil {
			return nil, err
		}
		for i, r := range recs {
			if matchesAll(r, constraints) {
				rows = append(rows, record.LocatedRecord{Location: locs[i], Record: r})
			}
		}
	} else {
		all, err := c.records.GetAllRecords(recordPath(t.dbID, t.id))
		if err != nil {
			return nil, err
		}
		for _, r := range all {
			if matchesAll(r.Record, constraints) {
				rows = append(rows, r)
			}
		}
	}

	if sortBy >= 0 {
		colID := uint16(sortBy)
		sort.SliceStable(rows, func(i, j int) bool {
			vi, _ := rows[i].Record.ByColumn(colID)
			vj, _ := rows[j].Record.ByColumn(colID)
			if vi.Null != vj.Null {
				return vi.Null
			}
			if vi.Null {
				return false
			}
			return compareValues(vi, vj) < 0
		})
	}
	return rows, nil
}

func compareValues(a, b record.Value) int {
	switch a.Type {
	case record.TypeInt32:
		switch {
		case a.I32 < b.I32:
			return -1
		case a.I32 > b.I32:
			return 1
		default:
			return 0
		}
	case record.TypeFloat64:
		switch {
		case a.F64 < b.F64:
			return -1
		case a.F64 > b.F64:
			return 1
		default:
			return 0
		}
	case record.TypeDate:
		return int(a.D.Encode() - b.D.Encode())
	default:
		switch {
		case a.S < b.S:
			return -1
		case a.S > b.S:
			return 1
		default:
			return 0
		}
	}
}

// SearchAndSave copies Search's result into a new scratch record file
// (same columns as table) and returns its path and row count, for the
// save-to-file query form.
func (c *Catalog) SearchAndSave(table string, constraints []SearchConstraint, sortBy int32) (string, int, error) {
	rows, err := c.Search(table, constraints, sortBy)
	if err != nil {
		return "", 0, err
	}
	t, err := c.loadTable(table)
	if err != nil {
		return "", 0, err
	}
	path := c.nextTempPath()
	if err := c.records.Initialize(path, t.columns); err != nil {
		return "", 0, err
	}
	for _, r := range rows {
		if _, err := c.records.InsertRecord(path, r.Record); err != nil {
			return "", 0, err
		}
	}
	return path, len(rows), nil
}
