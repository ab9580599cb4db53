package sql

import (
	"fmt"
	"strings"
)

// parseSelect parses:
//
//	SELECT * FROM t [WHERE ...] [ORDER BY col] [INTO OUTFILE 'path']
func parseSelect(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	if !strings.HasPrefix(upper, "SELECT") {
		return nil, fmt.Errorf("SELECT: expected SELECT")
	}
	fromIdx := strings.Index(upper, "FROM")
	if fromIdx == -1 {
		return nil, fmt.Errorf("SELECT: missing FROM")
	}
	projection := strings.TrimSpace(q[len("SELECT"):fromIdx])
	if projection != "*" {
		return nil, fmt.Errorf("SELECT: only SELECT * is supported")
	}

	rest := strings.TrimSpace(q[fromIdx+len("FROM"):])
	restUpper := strings.ToUpper(rest)

	stmt := &SelectStmt{OrderBy: ""}

	outfileIdx := strings.Index(restUpper, "INTO OUTFILE")
	if outfileIdx != -1 {
		tail := strings.TrimSpace(rest[outfileIdx+len("INTO OUTFILE"):])
		if path, quoted := stripQuotes(strings.TrimSpace(tail)); quoted {
			stmt.SaveFile = path
		} else {
			stmt.SaveFile = tail
		}
		rest = strings.TrimSpace(rest[:outfileIdx])
		restUpper = strings.ToUpper(rest)
	}

	orderIdx := strings.Index(restUpper, "ORDER BY")
	if orderIdx != -1 {
		stmt.OrderBy = strings.TrimSpace(rest[orderIdx+len("ORDER BY"):])
		rest = strings.TrimSpace(rest[:orderIdx])
		restUpper = strings.ToUpper(rest)
	}

	whereIdx := strings.Index(restUpper, "WHERE")
	if whereIdx == -1 {
		stmt.TableName = strings.TrimSpace(rest)
	} else {
		stmt.TableName = strings.TrimSpace(rest[:whereIdx])
		where, err := parseWhere(rest[whereIdx+len("WHERE"):])
		if err != nil {
			return nil, fmt.Errorf("SELECT: %w", err)
		}
		stmt.Where = where
	}
	if stmt.TableName == "" {
		return nil, fmt.Errorf("SELECT: missing table name")
	}
	return stmt, nil
}
