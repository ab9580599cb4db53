package sql

import (
	"fmt"
	"strings"
)

// parseUpdate parses "UPDATE t SET col=val[, col=val] [WHERE ...]".
func parseUpdate(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	setIdx := strings.Index(upper, "SET")
	if setIdx == -1 {
		return nil, fmt.Errorf("UPDATE: missing SET")
	}
	table := strings.TrimSpace(q[len("UPDATE"):setIdx])
	if table == "" {
		return nil, fmt.Errorf("UPDATE: missing table name")
	}
	rest := strings.TrimSpace(q[setIdx+len("SET"):])
	restUpper := strings.ToUpper(rest)

	stmt := &UpdateStmt{TableName: table}
	whereIdx := strings.Index(restUpper, "WHERE")
	setPart := rest
	if whereIdx != -1 {
		setPart = rest[:whereIdx]
		where, err := parseWhere(rest[whereIdx+len("WHERE"):])
		if err != nil {
			return nil, fmt.Errorf("UPDATE: %w", err)
		}
		stmt.Where = where
	}

	for _, assign := range splitCommaSeparated(setPart) {
		eq := strings.Index(assign, "=")
		if eq == -1 {
			return nil, fmt.Errorf("UPDATE: invalid assignment %q", assign)
		}
		col := strings.TrimSpace(assign[:eq])
		val := strings.TrimSpace(assign[eq+1:])
		if col == "" || val == "" {
			return nil, fmt.Errorf("UPDATE: invalid assignment %q", assign)
		}
		stmt.Set = append(stmt.Set, Assignment{Column: col, Raw: val})
	}
	if len(stmt.Set) == 0 {
		return nil, fmt.Errorf("UPDATE: no assignments")
	}
	return stmt, nil
}
