package sql

import (
	"fmt"
	"strings"

	"godb/internal/catalog"
	"godb/internal/record"
)

// Result is what Execute returns for every statement kind: DDL and
// mutating DML report RowsAffected; SELECT also populates Columns/Rows.
type Result struct {
	Columns      []record.Column
	Rows         []record.LocatedRecord
	RowsAffected int
	Exit         bool
	SavedPath    string // set for SELECT ... INTO OUTFILE
}

// Execute binds stmt's column/literal names against c's active database
// and runs it. This is the whole of the "query engine": there is no
// separate planning step beyond what catalog.Search already does.
func Execute(c *catalog.Catalog, stmt Statement) (*Result, error) {
	switch s := stmt.(type) {
	case *ExitStmt:
		return &Result{Exit: true}, nil

	case *CreateDatabaseStmt:
		return &Result{}, c.CreateDatabase(s.Name)
	case *DropDatabaseStmt:
		return &Result{}, c.DropDatabase(s.Name)
	case *UseDatabaseStmt:
		return &Result{}, c.UseDatabase(s.Name)

	case *CreateTableStmt:
		return execCreateTable(c, s)
	case *DropTableStmt:
		return &Result{}, c.DropTable(s.TableName)

	case *CreateIndexStmt:
		return &Result{}, c.AddIndex(s.TableName, s.Columns, s.Name, s.Unique)
	case *DropIndexStmt:
		return &Result{}, c.DropIndex(s.TableName, s.Name)

	case *AlterTableStmt:
		return execAlterTable(c, s)

	case *InsertStmt:
		return execInsert(c, s)
	case *SelectStmt:
		return execSelect(c, s)
	case *UpdateStmt:
		return execUpdate(c, s)
	case *DeleteStmt:
		return execDelete(c, s)
	}
	return nil, fmt.Errorf("sql: unsupported statement %T", stmt)
}

func bindLiteral(col record.Column, raw string) (record.Value, error) {
	if strings.ToUpper(raw) == "NULL" {
		return record.NullValue(col.ID, col.Type), nil
	}
	forced := col
	forced.NotNull = true // force parseField to treat "" as an empty string, not NULL
	if s, quoted := stripQuotes(raw); quoted {
		return record.ParseLiteral(forced, s)
	}
	return record.ParseLiteral(forced, raw)
}

func execCreateTable(c *catalog.Catalog, s *CreateTableStmt) (*Result, error) {
	columns := make([]record.Column, len(s.Columns))
	for i, def := range s.Columns {
		col := record.Column{Name: def.Name, Type: def.Type, MaxLen: def.MaxLen, NotNull: def.NotNull}
		if def.HasDefault {
			if strings.ToUpper(def.Default) == "NULL" {
				col.HasDefault = true
				col.DefaultIsNull = true
			} else {
				v, err := bindLiteral(col, def.Default)
				if err != nil {
					return nil, fmt.Errorf("sql: column %q default: %w", def.Name, err)
				}
				col.HasDefault = true
				col.Default = v
			}
		}
		columns[i] = col
	}
	fks := make([]catalog.FKSpec, len(s.ForeignKeys))
	for i, fk := range s.ForeignKeys {
		fks[i] = catalog.FKSpec{LocalColumns: fk.LocalColumns, RefTable: fk.RefTable, RefColumns: fk.RefColumns}
	}
	return &Result{}, c.CreateTable(s.TableName, columns, s.PrimaryKey, fks)
}

func execAlterTable(c *catalog.Catalog, s *AlterTableStmt) (*Result, error) {
	switch s.Kind {
	case AlterAddPrimaryKey:
		return &Result{}, c.AddPrimaryKey(s.TableName, s.Columns)
	case AlterDropPrimaryKey:
		return &Result{}, c.DropPrimaryKey(s.TableName)
	case AlterAddForeignKey:
		return &Result{}, c.AddForeignKey(s.TableName, catalog.FKSpec{
			LocalColumns: s.ForeignKey.LocalColumns,
			RefTable:     s.ForeignKey.RefTable,
			RefColumns:   s.ForeignKey.RefColumns,
		})
	case AlterDropForeignKey:
		return &Result{}, c.DropForeignKey(s.TableName, s.RefTable)
	case AlterAddUnique:
		return &Result{}, c.AddUnique(s.TableName, s.Columns[0])
	}
	return nil, fmt.Errorf("sql: unsupported ALTER TABLE form")
}

func execInsert(c *catalog.Catalog, s *InsertStmt) (*Result, error) {
	cols, err := c.TableColumns(s.TableName)
	if err != nil {
		return nil, err
	}
	order := cols
	if len(s.Columns) > 0 {
		order = make([]record.Column, len(s.Columns))
		for i, name := range s.Columns {
			col, ok := findColumn(cols, name)
			if !ok {
				return nil, fmt.Errorf("sql: column %q not declared on %q", name, s.TableName)
			}
			order[i] = col
		}
	}

	rows := make([]record.Record, len(s.Rows))
	for r, raws := range s.Rows {
		if len(raws) != len(order) {
			return nil, fmt.Errorf("sql: INSERT: expected %d values, got %d", len(order), len(raws))
		}
		values := make([]record.Value, len(raws))
		for i, raw := range raws {
			v, err := bindLiteral(order[i], raw)
			if err != nil {
				return nil, fmt.Errorf("sql: INSERT: column %q: %w", order[i].Name, err)
			}
			values[i] = v
		}
		rows[r] = record.Record{Values: values}
	}
	if err := c.InsertIntoTable(s.TableName, rows); err != nil {
		return nil, err
	}
	return &Result{RowsAffected: len(rows)}, nil
}

func findColumn(cols []record.Column, name string) (record.Column, bool) {
	for _, c := range cols {
		if strings.EqualFold(c.Name, name) {
			return c, true
		}
	}
	return record.Column{}, false
}

func bindConstraints(cols []record.Column, comps []Comparison) ([]catalog.SearchConstraint, error) {
	constraints := make([]catalog.SearchConstraint, 0, len(comps))
	for _, cmp := range comps {
		col, ok := findColumn(cols, cmp.Column)
		if !ok {
			return nil, fmt.Errorf("sql: column %q not declared", cmp.Column)
		}
		pred := catalog.Predicate{Op: cmp.Op}
		switch {
		case cmp.Null:
			pred.Op = catalog.OpIsNull
		case cmp.NotNul:
			pred.Op = catalog.OpIsNotNull
		default:
			v, err := bindLiteral(col, cmp.Raw)
			if err != nil {
				return nil, fmt.Errorf("sql: column %q: %w", cmp.Column, err)
			}
			pred.Value = v
		}
		constraints = append(constraints, catalog.SearchConstraint{ColumnID: col.ID, Preds: []catalog.Predicate{pred}})
	}
	return constraints, nil
}

func execSelect(c *catalog.Catalog, s *SelectStmt) (*Result, error) {
	cols, err := c.TableColumns(s.TableName)
	if err != nil {
		return nil, err
	}
	constraints, err := bindConstraints(cols, s.Where)
	if err != nil {
		return nil, err
	}
	sortBy := int32(-1)
	if s.OrderBy != "" {
		col, ok := findColumn(cols, s.OrderBy)
		if !ok {
			return nil, fmt.Errorf("sql: ORDER BY column %q not declared", s.OrderBy)
		}
		sortBy = int32(col.ID)
	}

	if s.SaveFile != "" {
		path, n, err := c.SearchAndSave(s.TableName, constraints, sortBy)
		if err != nil {
			return nil, err
		}
		return &Result{Columns: cols, RowsAffected: n, SavedPath: path}, nil
	}

	rows, err := c.Search(s.TableName, constraints, sortBy)
	if err != nil {
		return nil, err
	}
	return &Result{Columns: cols, Rows: rows, RowsAffected: len(rows)}, nil
}

func execUpdate(c *catalog.Catalog, s *UpdateStmt) (*Result, error) {
	cols, err := c.TableColumns(s.TableName)
	if err != nil {
		return nil, err
	}
	constraints, err := bindConstraints(cols, s.Where)
	if err != nil {
		return nil, err
	}
	patch := record.Record{}
	for _, a := range s.Set {
		col, ok := findColumn(cols, a.Column)
		if !ok {
			return nil, fmt.Errorf("sql: column %q not declared", a.Column)
		}
		v, err := bindLiteral(col, a.Raw)
		if err != nil {
			return nil, fmt.Errorf("sql: column %q: %w", a.Column, err)
		}
		patch.Values = append(patch.Values, v)
	}
	n, err := c.UpdateRows(s.TableName, constraints, patch)
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: n}, nil
}

func execDelete(c *catalog.Catalog, s *DeleteStmt) (*Result, error) {
	cols, err := c.TableColumns(s.TableName)
	if err != nil {
		return nil, err
	}
	constraints, err := bindConstraints(cols, s.Where)
	if err != nil {
		return nil, err
	}
	n, err := c.DeleteRows(s.TableName, constraints)
	if err != nil {
		return nil, err
	}
	return &Result{RowsAffected: n}, nil
}
