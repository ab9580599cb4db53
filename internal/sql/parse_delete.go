package sql

import (
	"fmt"
	"strings"
)

// parseDelete parses "DELETE FROM t [WHERE ...]".
func parseDelete(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	fromIdx := strings.Index(upper, "FROM")
	if fromIdx == -1 {
		return nil, fmt.Errorf("DELETE: missing FROM")
	}
	rest := strings.TrimSpace(q[fromIdx+len("FROM"):])
	restUpper := strings.ToUpper(rest)

	stmt := &DeleteStmt{}
	whereIdx := strings.Index(restUpper, "WHERE")
	if whereIdx == -1 {
		stmt.TableName = strings.TrimSpace(rest)
	} else {
		stmt.TableName = strings.TrimSpace(rest[:whereIdx])
		where, err := parseWhere(rest[whereIdx+len("WHERE"):])
		if err != nil {
			return nil, fmt.Errorf("DELETE: %w", err)
		}
		stmt.Where = where
	}
	if stmt.TableName == "" {
		return nil, fmt.Errorf("DELETE: missing table name")
	}
	return stmt, nil
}
