package sql

import (
	"fmt"
	"strings"
)

func parseCreateTable(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	idx := strings.Index(upper, "TABLE")
	if idx == -1 {
		return nil, fmt.Errorf("CREATE TABLE: missing TABLE keyword")
	}
	rest := strings.TrimSpace(q[idx+len("TABLE"):])

	open := strings.Index(rest, "(")
	if open == -1 {
		return nil, fmt.Errorf("CREATE TABLE: missing '('")
	}
	tableName := strings.TrimSpace(rest[:open])
	if tableName == "" {
		return nil, fmt.Errorf("CREATE TABLE: missing table name")
	}

	body, err := parenContents(rest)
	if err != nil {
		return nil, fmt.Errorf("CREATE TABLE: %w", err)
	}

	stmt := &CreateTableStmt{TableName: tableName}
	for _, item := range splitCommaSeparated(body) {
		itemUpper := strings.ToUpper(item)
		switch {
		case strings.HasPrefix(itemUpper, "PRIMARY KEY"):
			cols, err := parenContents(item)
			if err != nil {
				return nil, fmt.Errorf("CREATE TABLE: PRIMARY KEY: %w", err)
			}
			stmt.PrimaryKey = identList(cols)
		case strings.HasPrefix(itemUpper, "FOREIGN KEY"):
			fk, err := parseForeignKeyClause(item)
			if err != nil {
				return nil, err
			}
			stmt.ForeignKeys = append(stmt.ForeignKeys, fk)
		default:
			col, err := parseColumnDef(item)
			if err != nil {
				return nil, err
			}
			stmt.Columns = append(stmt.Columns, col)
		}
	}
	if len(stmt.Columns) == 0 {
		return nil, fmt.Errorf("CREATE TABLE: no columns declared")
	}
	return stmt, nil
}

func parseColumnDef(def string) (ColumnDef, error) {
	fields := strings.Fields(def)
	if len(fields) < 2 {
		return ColumnDef{}, fmt.Errorf("CREATE TABLE: invalid column definition %q", def)
	}
	name := fields[0]
	dt, maxLen, err := parseColumnType(fields[1])
	if err != nil {
		return ColumnDef{}, fmt.Errorf("CREATE TABLE: column %q: %w", name, err)
	}
	col := ColumnDef{Name: name, Type: dt, MaxLen: maxLen}

	rest := strings.ToUpper(strings.Join(fields[2:], " "))
	if strings.Contains(rest, "NOT NULL") {
		col.NotNull = true
	}
	if idx := strings.Index(rest, "DEFAULT"); idx != -1 {
		raw := strings.TrimSpace(strings.Join(fields[2:], " ")[idx+len("DEFAULT"):])
		raw = strings.Fields(raw)[0]
		col.HasDefault = true
		col.Default = raw
	}
	return col, nil
}

// parseForeignKeyClause parses "FOREIGN KEY(a,b) REFERENCES t(x,y)".
func parseForeignKeyClause(item string) (ForeignKeyClause, error) {
	localCols, err := parenContents(item)
	if err != nil {
		return ForeignKeyClause{}, fmt.Errorf("FOREIGN KEY: %w", err)
	}
	upper := strings.ToUpper(item)
	refIdx := strings.Index(upper, "REFERENCES")
	if refIdx == -1 {
		return ForeignKeyClause{}, fmt.Errorf("FOREIGN KEY: missing REFERENCES")
	}
	refPart := strings.TrimSpace(item[refIdx+len("REFERENCES"):])
	openRef := strings.Index(refPart, "(")
	if openRef == -1 {
		return ForeignKeyClause{}, fmt.Errorf("FOREIGN KEY: missing referenced column list")
	}
	refTable := strings.TrimSpace(refPart[:openRef])
	refCols, err := parenContents(refPart)
	if err != nil {
		return ForeignKeyClause{}, fmt.Errorf("FOREIGN KEY: %w", err)
	}
	return ForeignKeyClause{
		LocalColumns: identList(localCols),
		RefTable:     refTable,
		RefColumns:   identList(refCols),
	}, nil
}
