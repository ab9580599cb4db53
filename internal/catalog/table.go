package catalog

import (
	"fmt"
	"io"
	"sort"

	"godb/internal/record"
)

// FKSpec declares one foreign key: a local column tuple referencing
// another table's primary key tuple (same multiset, any order).
type FKSpec struct {
	LocalColumns []string
	RefTable     string
	RefColumns   []string
}

// tableMeta is everything CreateTable/DropTable and the DML layer need
// about one already-created table.
type tableMeta struct {
	dbID    int32
	id      int32
	name    string
	columns []record.Column
}

// TableColumns returns the active database's table's column metadata, for
// callers (such as the sql package) that need to bind column names and
// literal types before issuing a DDL/DML call.
func (c *Catalog) TableColumns(name string) ([]record.Column, error) {
	t, err := c.loadTable(name)
	if err != nil {
		return nil, err
	}
	return t.columns, nil
}

// LoadCSV bulk-loads delim-separated rows from r straight into name's
// heap file, the same direct path the CLI's --file flag uses. It does not
// run InsertIntoTable's constraint checks, matching the spec's CSV bulk
// load contract.
func (c *Catalog) LoadCSV(name string, r io.Reader, delim byte) (int, error) {
	t, err := c.loadTable(name)
	if err != nil {
		return 0, err
	}
	return c.records.LoadDelimited(recordPath(t.dbID, t.id), r, delim)
}

func (c *Catalog) loadTable(name string) (tableMeta, error) {
	dbID, err := c.requireActiveDB()
	if err != nil {
		return tableMeta{}, err
	}
	row, ok, err := c.findTable(dbID, name)
	if err != nil {
		return tableMeta{}, err
	}
	if !ok {
		return tableMeta{}, fmt.Errorf("catalog: table %q does not exist", name)
	}
	id := int32(row.Record.DataID)
	cols, err := c.records.GetColumnTypes(recordPath(dbID, id))
	if err != nil {
		return tableMeta{}, err
	}
	return tableMeta{dbID: dbID, id: id, name: name, columns: cols}, nil
}

func columnByName(cols []record.Column, name string) (record.Column, bool) {
	for _, c := range cols {
		if c.Name == name {
			return c, true
		}
	}
	return record.Column{}, false
}

// CreateTable validates and creates name with columns (ids assigned 0..n-1
// in declaration order), its primary key, its declared foreign keys, and
// the default indexes the spec requires (one on the PK tuple, one per FK
// local column tuple).
func (c *Catalog) CreateTable(name string, columns []record.Column, primaryKeys []string, foreignKeys []FKSpec) error {
	dbID, err := c.requireActiveDB()
	if err != nil {
		return err
	}
	if _, ok, err := c.findTable(dbID, name); err != nil {
		return err
	} else if ok {
		return fmt.Errorf("catalog: table %q already exists", name)
	}

	seen := make(map[string]bool, len(columns))
	for i := range columns {
		if seen[columns[i].Name] {
			return fmt.Errorf("catalog: duplicate column name %q", columns[i].Name)
		}
		seen[columns[i].Name] = true
		columns[i].ID = uint16(i)
	}

	var pkIDs []uint16
	for _, pkName := range primaryKeys {
		idx := -1
		for i := range columns {
			if columns[i].Name == pkName {
				idx = i
				break
			}
		}
		if idx == -1 {
			return fmt.Errorf("catalog: primary key column %q not declared", pkName)
		}
		if columns[idx].Type != record.TypeInt32 {
			return fmt.Errorf("catalog: primary key column %q must be INT", pkName)
		}
		columns[idx].NotNull = true
		pkIDs = append(pkIDs, columns[idx].ID)
	}

	for _, fk := range foreignKeys {
		if len(fk.LocalColumns) == 0 || len(fk.LocalColumns) != len(fk.RefColumns) {
			return fmt.Errorf("catalog: foreign key %q: local/ref column count mismatch", fk.RefTable)
		}
		for _, lc := range fk.LocalColumns {
			if _, ok := columnByName(columns, lc); !ok {
				return fmt.Errorf("catalog: foreign key local column %q not declared", lc)
			}
		}
		refTable, err := c.loadTable(fk.RefTable)
		if err != nil {
			return fmt.Errorf("catalog: foreign key references unknown table %q: %w", fk.RefTable, err)
		}
		refPKNames, err := c.primaryKeyColumnNames(refTable)
		if err != nil {
			return err
		}
		if !sameMultiset(refPKNames, fk.RefColumns) {
			return fmt.Errorf("catalog: foreign key columns do not match %q's primary key", fk.RefTable)
		}
	}

	loc, err := c.records.InsertRecord(allTablePath(dbID), record.Record{Values: []record.Value{stringValue(0, name)}})
	if err != nil {
		return err
	}
	row, err := c.records.GetRecord(allTablePath(dbID), loc)
	if err != nil {
		return err
	}
	tableID := int32(row.DataID)

	if err := c.store.CreateFolder(tableDir(dbID, tableID)); err != nil {
		return err
	}
	if err := c.store.CreateFolder(indexFilesDir(dbID, tableID)); err != nil {
		return err
	}
	if err := c.records.Initialize(recordPath(dbID, tableID), columns); err != nil {
		return err
	}
	if err := c.records.Initialize(primaryKeyPath(dbID, tableID), primaryKeySchema()); err != nil {
		return err
	}
	if err := c.records.Initialize(foreignKeyPath(dbID, tableID), foreignKeySchema()); err != nil {
		return err
	}
	if err := c.records.Initialize(dominatePath(dbID, tableID), dominateSchema()); err != nil {
		return err
	}
	if err := c.records.Initialize(indexInfoPath(dbID, tableID), indexInfoSchema()); err != nil {
		return err
	}

	for _, id := range pkIDs {
		if _, err := c.records.InsertRecord(primaryKeyPath(dbID, tableID), record.Record{Values: []record.Value{int32Value(0, int32(id))}}); err != nil {
			return err
		}
	}

	tbl := tableMeta{dbID: dbID, id: tableID, name: name, columns: columns}

	for _, fk := range foreignKeys {
		refTable, err := c.loadTable(fk.RefTable)
		if err != nil {
			return err
		}
		localIDs := columnNamesToIDs(columns, fk.LocalColumns)
		refIDs := columnNamesToIDs(refTable.columns, fk.RefColumns)
		if err := c.writeForeignKeyRow(tbl, refTable, localIDs, refIDs); err != nil {
			return err
		}
		if err := c.addDominate(refTable, tbl.id); err != nil {
			return err
		}
	}

	if len(pkIDs) > 0 {
		if _, err := c.createIndex(tbl, "", pkIDs, false); err != nil {
			return err
		}
	}
	for _, fk := range foreignKeys {
		localIDs := columnNamesToIDs(columns, fk.LocalColumns)
		if _, err := c.createIndex(tbl, "", localIDs, false); err != nil {
			return err
		}
	}
	return nil
}

func columnNamesToIDs(cols []record.Column, names []string) []uint16 {
	ids := make([]uint16, len(names))
	for i, n := range names {
		c, _ := columnByName(cols, n)
		ids[i] = c.ID
	}
	return ids
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa, sb := append([]string{}, a...), append([]string{}, b...)
	sort.Strings(sa)
	sort.Strings(sb)
	for i := range sa {
		if sa[i] != sb[i] {
			return false
		}
	}
	return true
}

func (c *Catalog) primaryKeyColumnNames(t tableMeta) ([]string, error) {
	ids, err := c.primaryKeyColumnIDs(t)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		col, _ := columnByID(t.columns, id)
		names[i] = col.Name
	}
	return names, nil
}

func (c *Catalog) primaryKeyColumnIDs(t tableMeta) ([]uint16, error) {
	rows, err := c.records.GetAllRecords(primaryKeyPath(t.dbID, t.id))
	if err != nil {
		return nil, err
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Record.DataID < rows[j].Record.DataID })
	ids := make([]uint16, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Record.ByColumn(0)
		ids = append(ids, uint16(v.I32))
	}
	return ids, nil
}

func columnByID(cols []record.Column, id uint16) (record.Column, bool) {
	for _, c := range cols {
		if c.ID == id {
			return c, true
		}
	}
	return record.Column{}, false
}

func (c *Catalog) writeForeignKeyRow(tbl, refTable tableMeta, localIDs, refIDs []uint16) error {
	values := []record.Value{int32Value(0, refTable.id)}
	for i := 0; i < maxFKColumns; i++ {
		col := uint16(1 + i)
		if i < len(localIDs) {
			values = append(values, int32Value(col, int32(localIDs[i])))
		} else {
			values = append(values, record.NullValue(col, record.TypeInt32))
		}
	}
	for i := 0; i < maxFKColumns; i++ {
		col := uint16(1+maxFKColumns+i)
		if i < len(refIDs) {
			values = append(values, int32Value(col, int32(refIDs[i])))
		} else {
			values = append(values, record.NullValue(col, record.TypeInt32))
		}
	}
	values = append(values, stringValue(uint16(1+2*maxFKColumns), refTable.name))
	_, err := c.records.InsertRecord(foreignKeyPath(tbl.dbID, tbl.id), record.Record{Values: values})
	return err
}

func (c *Catalog) addDominate(refTable tableMeta, dominatingTableID int32) error {
	_, err := c.records.InsertRecord(dominatePath(refTable.dbID, refTable.id), record.Record{
		Values: []record.Value{int32Value(0, dominatingTableID)},
	})
	return err
}

// DropTable refuses to drop a table still referenced by another table's
// foreign key (non-empty Dominate), and removes the dominance rows it
// owns in the tables its own foreign keys reference.
func (c *Catalog) DropTable(name string) error {
	tbl, err := c.loadTable(name)
	if err != nil {
		return err
	}
	dominators, err := c.records.GetAllRecords(dominatePath(tbl.dbID, tbl.id))
	if err != nil {
		return err
	}
	if len(dominators) > 0 {
		return fmt.Errorf("catalog: table %q is referenced by a foreign key and cannot be dropped", name)
	}

	fkRows, err := c.records.GetAllRecords(foreignKeyPath(tbl.dbID, tbl.id))
	if err != nil {
		return err
	}
	for _, row := range fkRows {
		refIDVal, _ := row.Record.ByColumn(0)
		refTableID := refIDVal.I32
		domRows, err := c.records.GetAllRecords(dominatePath(tbl.dbID, refTableID))
		if err != nil {
			continue
		}
		for _, dr := range domRows {
			v, _ := dr.Record.ByColumn(0)
			if v.I32 == tbl.id {
				_ = c.records.DeleteRecord(dominatePath(tbl.dbID, refTableID), dr.Location)
			}
		}
	}

	if err := c.store.DeleteFolder(tableDir(tbl.dbID, tbl.id)); err != nil {
		return err
	}
	allRows, err := c.records.GetAllRecords(allTablePath(tbl.dbID))
	if err != nil {
		return err
	}
	for _, row := range allRows {
		if int32(row.Record.DataID) == tbl.id {
			return c.records.DeleteRecord(allTablePath(tbl.dbID), row.Location)
		}
	}
	return nil
}
