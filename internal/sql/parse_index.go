package sql

import (
	"fmt"
	"strings"
)

// parseCreateIndex parses "CREATE [UNIQUE] INDEX name ON table(col, ...)".
func parseCreateIndex(q string, unique bool) (Statement, error) {
	upper := strings.ToUpper(q)
	idx := strings.Index(upper, "INDEX")
	rest := strings.TrimSpace(q[idx+len("INDEX"):])

	onIdx := strings.Index(strings.ToUpper(rest), " ON ")
	if onIdx == -1 {
		return nil, fmt.Errorf("CREATE INDEX: missing ON clause")
	}
	name := strings.TrimSpace(rest[:onIdx])
	afterOn := strings.TrimSpace(rest[onIdx+len(" ON "):])

	open := strings.Index(afterOn, "(")
	if open == -1 {
		return nil, fmt.Errorf("CREATE INDEX: missing column list")
	}
	table := strings.TrimSpace(afterOn[:open])
	cols, err := parenContents(afterOn)
	if err != nil {
		return nil, fmt.Errorf("CREATE INDEX: %w", err)
	}
	return &CreateIndexStmt{Name: name, TableName: table, Columns: identList(cols), Unique: unique}, nil
}

// parseDropIndex parses "DROP INDEX name ON table".
func parseDropIndex(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	idx := strings.Index(upper, "INDEX")
	rest := strings.TrimSpace(q[idx+len("INDEX"):])

	onIdx := strings.Index(strings.ToUpper(rest), " ON ")
	if onIdx == -1 {
		return nil, fmt.Errorf("DROP INDEX: missing ON clause")
	}
	name := strings.TrimSpace(rest[:onIdx])
	table := strings.TrimSpace(rest[onIdx+len(" ON "):])
	return &DropIndexStmt{Name: name, TableName: table}, nil
}
