package sql

import (
	"fmt"
	"strings"
)

// parseAlterTable covers the five forms the catalog's DDL surface needs:
//
//	ALTER TABLE t ADD PRIMARY KEY(cols)
//	ALTER TABLE t DROP PRIMARY KEY
//	ALTER TABLE t ADD FOREIGN KEY(cols) REFERENCES r(cols)
//	ALTER TABLE t DROP FOREIGN KEY r
//	ALTER TABLE t ADD UNIQUE(col)
func parseAlterTable(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	idx := strings.Index(upper, "TABLE")
	if idx == -1 {
		return nil, fmt.Errorf("ALTER TABLE: missing TABLE keyword")
	}
	rest := strings.TrimSpace(q[idx+len("TABLE"):])
	fields := strings.Fields(rest)
	if len(fields) < 2 {
		return nil, fmt.Errorf("ALTER TABLE: incomplete statement")
	}
	table := fields[0]
	afterTable := strings.TrimSpace(rest[len(table):])
	afterTableUpper := strings.ToUpper(afterTable)

	switch {
	case strings.HasPrefix(afterTableUpper, "ADD PRIMARY KEY"):
		cols, err := parenContents(afterTable)
		if err != nil {
			return nil, fmt.Errorf("ALTER TABLE: ADD PRIMARY KEY: %w", err)
		}
		return &AlterTableStmt{TableName: table, Kind: AlterAddPrimaryKey, Columns: identList(cols)}, nil

	case strings.HasPrefix(afterTableUpper, "DROP PRIMARY KEY"):
		return &AlterTableStmt{TableName: table, Kind: AlterDropPrimaryKey}, nil

	case strings.HasPrefix(afterTableUpper, "ADD FOREIGN KEY"):
		fk, err := parseForeignKeyClause(strings.TrimSpace(afterTable[len("ADD "):]))
		if err != nil {
			return nil, err
		}
		return &AlterTableStmt{TableName: table, Kind: AlterAddForeignKey, ForeignKey: &fk}, nil

	case strings.HasPrefix(afterTableUpper, "DROP FOREIGN KEY"):
		ref := strings.TrimSpace(afterTable[len("DROP FOREIGN KEY"):])
		if ref == "" {
			return nil, fmt.Errorf("ALTER TABLE: DROP FOREIGN KEY: missing referenced table")
		}
		return &AlterTableStmt{TableName: table, Kind: AlterDropForeignKey, RefTable: ref}, nil

	case strings.HasPrefix(afterTableUpper, "ADD UNIQUE"):
		cols, err := parenContents(afterTable)
		if err != nil {
			return nil, fmt.Errorf("ALTER TABLE: ADD UNIQUE: %w", err)
		}
		list := identList(cols)
		if len(list) != 1 {
			return nil, fmt.Errorf("ALTER TABLE: ADD UNIQUE supports exactly one column")
		}
		return &AlterTableStmt{TableName: table, Kind: AlterAddUnique, Columns: list}, nil

	default:
		return nil, fmt.Errorf("ALTER TABLE: unsupported clause %q", afterTable)
	}
}
