package catalog

import (
	"fmt"

	"godb/internal/index/btree"
	"godb/internal/record"
)

type indexMeta struct {
	id      int32
	columns []uint16
	name    string
}

func (c *Catalog) indexList(t tableMeta) ([]indexMeta, error) {
	rows, err := c.records.GetAllRecords(indexInfoPath(t.dbID, t.id))
	if err != nil {
		return nil, err
	}
	out := make([]indexMeta, 0, len(rows))
	for _, row := range rows {
		var cols []uint16
		for i := 0; i < maxFKColumns; i++ {
			v, _ := row.Record.ByColumn(uint16(i))
			if v.Null {
				break
			}
			cols = append(cols, uint16(v.I32))
		}
		nameVal, _ := row.Record.ByColumn(uint16(maxFKColumns))
		name := ""
		if !nameVal.Null {
			name = nameVal.S
		}
		out = append(out, indexMeta{id: int32(row.Record.DataID), columns: cols, name: name})
	}
	return out, nil
}

func sameColumnTuple(a, b []uint16) bool {
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

func (c *Catalog) indexInfoRow(colIDs []uint16, name string) record.Record {
	values := make([]record.Value, 0, maxFKColumns+1)
	for i := 0; i < maxFKColumns; i++ {
		if i < len(colIDs) {
			values = append(values, int32Value(uint16(i), int32(colIDs[i])))
		} else {
			values = append(values, record.NullValue(uint16(i), record.TypeInt32))
		}
	}
	if name == "" {
		values = append(values, record.NullValue(uint16(maxFKColumns), record.TypeVarchar))
	} else {
		values = append(values, stringValue(uint16(maxFKColumns), name))
	}
	return record.Record{Values: values}
}

// createIndex creates and populates a new B+ tree index over colIDs,
// reusing an already-existing index declared on the exact same column
// tuple instead of duplicating it (attaching name to it if one is given).
// When checkUnique is set a new index is always built, so the existing
// rows are checked for duplicate keys.
func (c *Catalog) createIndex(t tableMeta, name string, colIDs []uint16, checkUnique bool) (int32, error) {
	existing, err := c.indexList(t)
	if err != nil {
		return 0, err
	}
	for _, ix := range existing {
		if !checkUnique && sameColumnTuple(ix.columns, colIDs) {
			if name != "" && ix.name == "" {
				if err := c.renameIndex(t, ix.id, name); err != nil {
					return 0, err
				}
			}
			return ix.id, nil
		}
	}

	loc, err := c.records.InsertRecord(indexInfoPath(t.dbID, t.id), c.indexInfoRow(colIDs, name))
	if err != nil {
		return 0, err
	}
	row, err := c.records.GetRecord(indexInfoPath(t.dbID, t.id), loc)
	if err != nil {
		return 0, err
	}
	indexID := int32(row.DataID)
	path := indexFilePath(t.dbID, t.id, indexID)

	if err := c.indexes.Initialize(path, len(colIDs)); err != nil {
		_ = c.records.DeleteRecord(indexInfoPath(t.dbID, t.id), loc)
		return 0, err
	}

	rows, err := c.records.GetAllRecords(recordPath(t.dbID, t.id))
	if err != nil {
		return 0, err
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		key, allNull := indexKey(r.Record, colIDs)
		if checkUnique && !allNull {
			k := fmt.Sprint(key)
			if seen[k] {
				_ = c.indexes.DeleteFile(path)
				_ = c.records.DeleteRecord(indexInfoPath(t.dbID, t.id), loc)
				return 0, fmt.Errorf("catalog: duplicate value violates unique index on %q", t.name)
			}
			seen[k] = true
		}
		loc := btree.Location{PageID: r.Location.PageID, SlotID: uint16(r.Location.SlotID)}
		if err := c.indexes.Insert(path, key, loc); err != nil {
			return 0, err
		}
	}
	return indexID, nil
}

func indexKey(r record.Record, colIDs []uint16) ([]int32, bool) {
	key := make([]int32, len(colIDs))
	allNull := true
	for i, id := range colIDs {
		v, ok := r.ByColumn(id)
		if !ok || v.Null {
			key[i] = btree.NullInt
			continue
		}
		allNull = false
		key[i] = v.I32
	}
	return key, allNull
}

func (c *Catalog) renameIndex(t tableMeta, indexID int32, name string) error {
	rows, err := c.records.GetAllRecords(indexInfoPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if int32(row.Record.DataID) != indexID {
			continue
		}
		patch := record.Record{Values: []record.Value{stringValue(uint16(maxFKColumns), name)}}
		return c.records.UpdateRecord(indexInfoPath(t.dbID, t.id), row.Location, patch)
	}
	return fmt.Errorf("catalog: index %d not found", indexID)
}

func (c *Catalog) findIndexByName(t tableMeta, name string) (indexMeta, bool, error) {
	list, err := c.indexList(t)
	if err != nil {
		return indexMeta{}, false, err
	}
	for _, ix := range list {
		if ix.name == name || ix.name == name+uniqueSuffix {
			return ix, true, nil
		}
	}
	return indexMeta{}, false, nil
}

func (c *Catalog) indexColumnIDs(t tableMeta, columns []string) ([]uint16, error) {
	ids := make([]uint16, len(columns))
	for i, name := range columns {
		col, ok := columnByName(t.columns, name)
		if !ok {
			return nil, fmt.Errorf("catalog: column %q not declared on %q", name, t.name)
		}
		if col.Type != record.TypeInt32 {
			return nil, fmt.Errorf("catalog: index column %q must be INT", name)
		}
		ids[i] = col.ID
	}
	return ids, nil
}

// AddIndex creates a named, possibly unique, index over columns. A
// duplicate non-null key aborts the operation, leaving no trace of the
// new index behind.
func (c *Catalog) AddIndex(table string, columns []string, name string, checkUnique bool) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	colIDs, err := c.indexColumnIDs(t, columns)
	if err != nil {
		return err
	}
	_, err = c.createIndex(t, name, colIDs, checkUnique)
	return err
}

// DropIndex removes the index named name (or name+"_UNIQUE") from table.
func (c *Catalog) DropIndex(table, name string) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	ix, ok, err := c.findIndexByName(t, name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("catalog: index %q not found on %q", name, table)
	}
	if err := c.indexes.DeleteFile(indexFilePath(t.dbID, t.id, ix.id)); err != nil {
		return err
	}
	rows, err := c.records.GetAllRecords(indexInfoPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if int32(row.Record.DataID) == ix.id {
			return c.records.DeleteRecord(indexInfoPath(t.dbID, t.id), row.Location)
		}
	}
	return nil
}

// AddUnique marks column as unique: it is backed by a single-column
// unique index and by the heap schema's own unique flag so InsertIntoTable
// can reject duplicates without a round trip through the index.
func (c *Catalog) AddUnique(table, column string) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	col, ok := columnByName(t.columns, column)
	if !ok {
		return fmt.Errorf("catalog: column %q not declared on %q", column, table)
	}
	if col.Type != record.TypeInt32 {
		return fmt.Errorf("catalog: unique column %q must be INT", column)
	}
	if _, err := c.createIndex(t, column+uniqueSuffix, []uint16{col.ID}, true); err != nil {
		return err
	}
	return c.records.UpdateColumnUnique(recordPath(t.dbID, t.id), col.ID, true)
}

// AddPrimaryKey declares columns (already NOT NULL) as table's primary
// key; it fails if a primary key already exists.
func (c *Catalog) AddPrimaryKey(table string, columns []string) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	existing, err := c.primaryKeyColumnIDs(t)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return fmt.Errorf("catalog: table %q already has a primary key", table)
	}
	colIDs, err := c.indexColumnIDs(t, columns)
	if err != nil {
		return err
	}
	for _, name := range columns {
		col, _ := columnByName(t.columns, name)
		if !col.NotNull {
			return fmt.Errorf("catalog: primary key column %q must be NOT NULL", name)
		}
	}
	rows, err := c.records.GetAllRecords(recordPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	seen := make(map[string]bool, len(rows))
	for _, r := range rows {
		key, _ := indexKey(r.Record, colIDs)
		k := fmt.Sprint(key)
		if seen[k] {
			return fmt.Errorf("catalog: existing rows violate primary key uniqueness on %q", table)
		}
		seen[k] = true
	}
	for _, id := range colIDs {
		if _, err := c.records.InsertRecord(primaryKeyPath(t.dbID, t.id), record.Record{Values: []record.Value{int32Value(0, int32(id))}}); err != nil {
			return err
		}
	}
	_, err = c.createIndex(t, "", colIDs, true)
	return err
}

// DropPrimaryKey removes table's primary key declaration. Its backing
// index is left in place; it remains a valid (if now unenforced) index.
func (c *Catalog) DropPrimaryKey(table string) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	rows, err := c.records.GetAllRecords(primaryKeyPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := c.records.DeleteRecord(primaryKeyPath(t.dbID, t.id), row.Location); err != nil {
			return err
		}
	}
	return nil
}

// AddForeignKey declares and validates a new foreign key: every existing
// row's non-null local tuple must already exist among the referenced
// table's rows.
func (c *Catalog) AddForeignKey(table string, spec FKSpec) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	localIDs, err := c.indexColumnIDs(t, spec.LocalColumns)
	if err != nil {
		return err
	}
	refTable, err := c.loadTable(spec.RefTable)
	if err != nil {
		return err
	}
	refPKNames, err := c.primaryKeyColumnNames(refTable)
	if err != nil {
		return err
	}
	if !sameMultiset(refPKNames, spec.RefColumns) {
		return fmt.Errorf("catalog: foreign key columns do not match %q's primary key", spec.RefTable)
	}
	refIDs := columnNamesToIDs(refTable.columns, spec.RefColumns)

	existingFKs, err := c.records.GetAllRecords(foreignKeyPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, row := range existingFKs {
		if sameColumnTuple(fkLocalIDs(row.Record), localIDs) {
			return fmt.Errorf("catalog: foreign key on %v already declared", spec.LocalColumns)
		}
	}

	refRows, err := c.records.GetAllRecords(recordPath(refTable.dbID, refTable.id))
	if err != nil {
		return err
	}
	refKeys := make(map[string]bool, len(refRows))
	for _, r := range refRows {
		key, _ := indexKey(r.Record, refIDs)
		refKeys[fmt.Sprint(key)] = true
	}
	localRows, err := c.records.GetAllRecords(recordPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, r := range localRows {
		key, allNull := indexKey(r.Record, localIDs)
		if allNull {
			continue
		}
		if !refKeys[fmt.Sprint(key)] {
			return fmt.Errorf("catalog: existing rows in %q violate new foreign key to %q", table, spec.RefTable)
		}
	}

	if err := c.writeForeignKeyRow(t, refTable, localIDs, refIDs); err != nil {
		return err
	}
	if err := c.addDominate(refTable, t.id); err != nil {
		return err
	}
	_, err = c.createIndex(t, "", localIDs, false)
	return err
}

func fkLocalIDs(r record.Record) []uint16 {
	var ids []uint16
	for i := 0; i < maxFKColumns; i++ {
		v, ok := r.ByColumn(uint16(1 + i))
		if !ok || v.Null {
			break
		}
		ids = append(ids, uint16(v.I32))
	}
	return ids
}

// DropForeignKey removes the foreign key table declared against
// refTableName, and the matching dominance row it owns there.
func (c *Catalog) DropForeignKey(table, refTableName string) error {
	t, err := c.loadTable(table)
	if err != nil {
		return err
	}
	rows, err := c.records.GetAllRecords(foreignKeyPath(t.dbID, t.id))
	if err != nil {
		return err
	}
	for _, row := range rows {
		nameVal, _ := row.Record.ByColumn(uint16(1 + 2*maxFKColumns))
		if nameVal.Null || nameVal.S != refTableName {
			continue
		}
		refIDVal, _ := row.Record.ByColumn(0)
		refTableID := refIDVal.I32
		if err := c.records.DeleteRecord(foreignKeyPath(t.dbID, t.id), row.Location); err != nil {
			return err
		}
		domRows, err := c.records.GetAllRecords(dominatePath(t.dbID, refTableID))
		if err != nil {
			return err
		}
		for _, dr := range domRows {
			v, _ := dr.Record.ByColumn(0)
			if v.I32 == t.id {
				return c.records.DeleteRecord(dominatePath(t.dbID, refTableID), dr.Location)
			}
		}
		return nil
	}
	return fmt.Errorf("catalog: no foreign key on %q referencing %q", table, refTableName)
}
