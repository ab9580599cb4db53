package catalog

import (
	"fmt"

	"godb/internal/index/btree"
	"godb/internal/record"
)

type fkResolved struct {
	localIDs []uint16
	refTable tableMeta
	refIDs   []uint16
}

func fkRefIDs(r record.Record) []uint16 {
	var ids []uint16
	for i := 0; i < maxFKColumns; i++ {
		v, ok := r.ByColumn(uint16(1 + maxFKColumns + i))
		if !ok || v.Null {
			break
		}
		ids = append(ids, uint16(v.I32))
	}
	return ids
}

func (c *Catalog) loadForeignKeys(t tableMeta) ([]fkResolved, error) {
	rows, err := c.records.GetAllRecords(foreignKeyPath(t.dbID, t.id))
	if err != nil {
		return nil, err
	}
	out := make([]fkResolved, 0, len(rows))
	for _, row := range rows {
		nameVal, _ := row.Record.ByColumn(uint16(1 + 2*maxFKColumns))
		refTable, err := c.loadTable(nameVal.S)
		if err != nil {
			return nil, err
		}
		out = append(out, fkResolved{
			localIDs: fkLocalIDs(row.Record),
			refTable: refTable,
			refIDs:   fkRefIDs(row.Record),
		})
	}
	return out, nil
}

func equalKeys(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// tupleExists reports whether any row in t has the given colIDs tuple
// equal to key, using a matching declared index when one exists instead
// of a full heap scan.
func (c *Catalog) tupleExists(t tableMeta, colIDs []uint16, key []int32) (bool, error) {
	indexes, err := c.indexList(t)
	if err != nil {
		return false, err
	}
	for _, ix := range indexes {
		if sameColumnTuple(ix.columns, colIDs) {
			entries, err := c.indexes.Search(indexFilePath(t.dbID, t.id, ix.id), key)
			if err != nil {
				return false, err
			}
			return len(entries) > 0, nil
		}
	}
	rows, err := c.records.GetAllRecords(recordPath(t.dbID, t.id))
	if err != nil {
		return false, err
	}
	for _, r := range rows {
		k, _ := indexKey(r.Record, colIDs)
		if equalKeys(k, key) {
			return true, nil
		}
	}
	return false, nil
}

// InsertIntoTable validates every row in the batch against NOT NULL,
// primary key and per-column uniqueness
// (against existing rows and the rest of the batch), and foreign key
// existence, before inserting any of them and maintaining every declared
// index over the new rows.
func (c *Catalog) InsertIntoTable(table string, rows []record.Record) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	pkIDs, err := c.primaryKeyColumnIDs(t)
	if err != nil {
		return err
	}
	fks, err := c.loadForeignKeys(t)
	if err != nil {
		return err
	}
	var uniqueCols []uint16
	for _, col := range t.columns {
		if col.Unique {
			uniqueCols = append(uniqueCols, col.ID)
		}
	}

	seenPK := make(map[string]bool)
	seenUnique := make(map[uint16]map[string]bool)

	for _, rec := range rows {
		for _, col := range t.columns {
			if !col.NotNull {
				continue
			}
			if v, ok := rec.ByColumn(col.ID); !ok || v.Null {
				return fmt.Errorf("catalog: column %q of %q is NOT NULL", col.Name, table)
			}
		}
		if len(pkIDs) > 0 {
			key, _ := indexKey(rec, pkIDs)
			k := fmt.Sprint(key)
			if seenPK[k] {
				return fmt.Errorf("catalog: duplicate primary key within insert batch for %q", table)
			}
			exists, err := c.tupleExists(t, pkIDs, key)
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("catalog: primary key violation on %q", table)
			}
			seenPK[k] = true
		}
		for _, colID := range uniqueCols {
			v, ok := rec.ByColumn(colID)
			if !ok || v.Null {
				continue
			}
			m := seenUnique[colID]
			if m == nil {
				m = make(map[string]bool)
				seenUnique[colID] = m
			}
			k := fmt.Sprint(v.I32)
			if m[k] {
				return fmt.Errorf("catalog: duplicate unique value within insert batch for %q", table)
			}
			exists, err := c.tupleExists(t, []uint16{colID}, []int32{v.I32})
			if err != nil {
				return err
			}
			if exists {
				return fmt.Errorf("catalog: unique constraint violation on %q", table)
			}
			m[k] = true
		}
		for _, fk := range fks {
			key, allNull := indexKey(rec, fk.localIDs)
			if allNull {
				continue
			}
			exists, err := c.tupleExists(fk.refTable, fk.refIDs, key)
			if err != nil {
				return err
			}
			if !exists {
				return fmt.Errorf("catalog: foreign key violation inserting into %q", table)
			}
		}
	}

	indexes, err := c.indexList(t)
	if err != nil {
		return err
	}
	for _, rec := range rows {
		loc, err := c.records.InsertRecord(recordPath(t.dbID, t.id), rec)
		if err != nil {
			return err
		}
		for _, ix := range indexes {
			key, _ := indexKey(rec, ix.columns)
			bloc := btree.Location{PageID: loc.PageID, SlotID: loc.SlotID}
			if err := c.indexes.Insert(indexFilePath(t.dbID, t.id, ix.id), key, bloc); err != nil {
				return err
			}
		}
	}
	return nil
}

// UpdateRows patches every row matching constraints, rejecting the whole
// operation (no partial mutation) if any patched row would violate NOT
// NULL, a unique constraint, or the primary key, or if it would change a
// primary key some dominating table's foreign key still references, then
// repositions the changed rows in every index whose columns the patch
// touches.
func (c *Catalog) UpdateRows(table string, constraints []SearchConstraint, patch record.Record) (int, error) {
	t, err := c.loadTable(table)
	if err != nil {
		return 0, err
	}
	matches, err := c.Search(table, constraints, -1)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	pkIDs, err := c.primaryKeyColumnIDs(t)
	if err != nil {
		return 0, err
	}
	dominators, err := c.dominatingForeignKeys(t)
	if err != nil {
		return 0, err
	}
	indexes, err := c.indexList(t)
	if err != nil {
		return 0, err
	}
	touched := make(map[int32]bool)
	for _, ix := range indexes {
		for _, col := range ix.columns {
			if _, ok := patch.ByColumn(col); ok {
				touched[ix.id] = true
			}
		}
	}

	patchedRows := make([]record.Record, len(matches))
	for i, m := range matches {
		merged := m.Record
		for _, v := range patch.Values {
			found := false
			for j := range merged.Values {
				if merged.Values[j].ColumnID == v.ColumnID {
					merged.Values[j] = v
					found = true
					break
				}
			}
			if !found {
				merged.Values = append(merged.Values, v)
			}
		}
		patchedRows[i] = merged
	}

	if len(pkIDs) > 0 {
		seen := make(map[string]bool, len(patchedRows))
		for i, rec := range patchedRows {
			newKey, _ := indexKey(rec, pkIDs)
			oldKey, _ := indexKey(matches[i].Record, pkIDs)
			k := fmt.Sprint(newKey)
			if seen[k] {
				return 0, fmt.Errorf("catalog: update would duplicate primary key on %q", table)
			}
			seen[k] = true
			if equalKeys(newKey, oldKey) {
				continue // row keeps its own primary key, no collision possible
			}
			exists, err := c.tupleExists(t, pkIDs, newKey)
			if err != nil {
				return 0, err
			}
			if exists {
				return 0, fmt.Errorf("catalog: update would duplicate primary key on %q", table)
			}
			for _, dom := range dominators {
				referenced, err := c.tupleExists(dom.localTable, dom.localIDs, oldKey)
				if err != nil {
					return 0, err
				}
				if referenced {
					return 0, fmt.Errorf("catalog: primary key in %q is still referenced by %q", table, dom.localTable.name)
				}
			}
		}
	}

	for _, col := range t.columns {
		if !col.Unique {
			continue
		}
		newVal, touchedCol := patch.ByColumn(col.ID)
		if !touchedCol || newVal.Null {
			continue
		}
		seen := make(map[int32]bool, len(patchedRows))
		for i, rec := range patchedRows {
			v, _ := rec.ByColumn(col.ID)
			oldVal, _ := matches[i].Record.ByColumn(col.ID)
			if !oldVal.Null && oldVal.I32 == v.I32 {
				continue // row keeps its own value
			}
			if seen[v.I32] {
				return 0, fmt.Errorf("catalog: update would duplicate unique value on %q", table)
			}
			seen[v.I32] = true
			exists, err := c.tupleExists(t, []uint16{col.ID}, []int32{v.I32})
			if err != nil {
				return 0, err
			}
			if exists {
				return 0, fmt.Errorf("catalog: update would duplicate unique value on %q", table)
			}
		}
	}

	for i, m := range matches {
		if err := c.records.UpdateRecord(recordPath(t.dbID, t.id), m.Location, patch); err != nil {
			return 0, err
		}
		for _, ix := range indexes {
			if !touched[ix.id] {
				continue
			}
			oldKey, _ := indexKey(m.Record, ix.columns)
			newKey, _ := indexKey(patchedRows[i], ix.columns)
			oldLoc := btree.Location{PageID: m.Location.PageID, SlotID: m.Location.SlotID}
			if err := c.indexes.Delete(indexFilePath(t.dbID, t.id, ix.id), oldKey, true, oldLoc); err != nil {
				return 0, err
			}
			if err := c.indexes.Insert(indexFilePath(t.dbID, t.id, ix.id), newKey, oldLoc); err != nil {
				return 0, err
			}
		}
	}
	return len(matches), nil
}

// DeleteRows removes every row matching constraints, refusing any row a
// dominating table's foreign key still points to, then removes the
// corresponding entry from every declared index.
func (c *Catalog) DeleteRows(table string, constraints []SearchConstraint) (int, error) {
	t, err := c.loadTable(table)
	if err != nil {
		return 0, err
	}
	matches, err := c.Search(table, constraints, -1)
	if err != nil {
		return 0, err
	}
	if len(matches) == 0 {
		return 0, nil
	}

	dominators, err := c.dominatingForeignKeys(t)
	if err != nil {
		return 0, err
	}
	pkIDs, err := c.primaryKeyColumnIDs(t)
	if err != nil {
		return 0, err
	}
	if len(pkIDs) > 0 {
		for _, m := range matches {
			key, _ := indexKey(m.Record, pkIDs)
			for _, dom := range dominators {
				exists, err := c.tupleExists(dom.localTable, dom.localIDs, key)
				if err != nil {
					return 0, err
				}
				if exists {
					return 0, fmt.Errorf("catalog: row in %q is still referenced by %q", table, dom.localTable.name)
				}
			}
		}
	}

	indexes, err := c.indexList(t)
	if err != nil {
		return 0, err
	}
	for _, m := range matches {
		if err := c.records.DeleteRecord(recordPath(t.dbID, t.id), m.Location); err != nil {
			return 0, err
		}
		for _, ix := range indexes {
			key, _ := indexKey(m.Record, ix.columns)
			loc := btree.Location{PageID: m.Location.PageID, SlotID: m.Location.SlotID}
			if err := c.indexes.Delete(indexFilePath(t.dbID, t.id, ix.id), key, true, loc); err != nil {
				return 0, err
			}
		}
	}
	return len(matches), nil
}

type dominatingFK struct {
	localTable tableMeta
	localIDs   []uint16
	refIDs     []uint16
}

// dominatingForeignKeys returns, for each table whose foreign key
// references t (its Dominate sidecar), the resolved key tuple mapping.
func (c *Catalog) dominatingForeignKeys(t tableMeta) ([]dominatingFK, error) {
	domRows, err := c.records.GetAllRecords(dominatePath(t.dbID, t.id))
	if err != nil {
		return nil, err
	}
	allTables, err := c.records.GetAllRecords(allTablePath(t.dbID))
	if err != nil {
		return nil, err
	}
	var out []dominatingFK
	for _, dr := range domRows {
		v, _ := dr.Record.ByColumn(0)
		localTableID := v.I32
		var localName string
		for _, at := range allTables {
			if int32(at.Record.DataID) == localTableID {
				nameVal, _ := at.Record.ByColumn(0)
				localName = nameVal.S
			}
		}
		if localName == "" {
			continue
		}
		localTable, err := c.loadTable(localName)
		if err != nil {
			return nil, err
		}
		fkRows, err := c.records.GetAllRecords(foreignKeyPath(localTable.dbID, localTable.id))
		if err != nil {
			return nil, err
		}
		for _, row := range fkRows {
			refIDVal, _ := row.Record.ByColumn(0)
			if refIDVal.I32 != t.id {
				continue
			}
			out = append(out, dominatingFK{
				localTable: localTable,
				localIDs:   fkLocalIDs(row.Record),
				refIDs:     fkRefIDs(row.Record),
			})
		}
	}
	return out, nil
}
