package sql

import (
	"fmt"
	"strings"
)

// parseInsert parses "INSERT INTO t [(col,...)] VALUES (v,...)[,(v,...)]".
func parseInsert(q string) (Statement, error) {
	upper := strings.ToUpper(q)
	intoIdx := strings.Index(upper, "INTO")
	if intoIdx == -1 {
		return nil, fmt.Errorf("INSERT: missing INTO")
	}
	afterInto := strings.TrimSpace(q[intoIdx+len("INTO"):])

	valuesIdx := strings.Index(strings.ToUpper(afterInto), "VALUES")
	if valuesIdx == -1 {
		return nil, fmt.Errorf("INSERT: missing VALUES")
	}
	head := strings.TrimSpace(afterInto[:valuesIdx])
	tail := strings.TrimSpace(afterInto[valuesIdx+len("VALUES"):])

	stmt := &InsertStmt{}
	if open := strings.Index(head, "("); open != -1 {
		stmt.TableName = strings.TrimSpace(head[:open])
		cols, err := parenContents(head)
		if err != nil {
			return nil, fmt.Errorf("INSERT: %w", err)
		}
		stmt.Columns = identList(cols)
	} else {
		stmt.TableName = head
	}
	if stmt.TableName == "" {
		return nil, fmt.Errorf("INSERT: missing table name")
	}

	for _, group := range splitValueTuples(tail) {
		vals, err := parenContents(group)
		if err != nil {
			return nil, fmt.Errorf("INSERT: %w", err)
		}
		stmt.Rows = append(stmt.Rows, splitCommaSeparated(vals))
	}
	if len(stmt.Rows) == 0 {
		return nil, fmt.Errorf("INSERT: no VALUES tuples")
	}
	return stmt, nil
}

// splitValueTuples splits "(1,2),(3,4)" into ["(1,2)", "(3,4)"].
func splitValueTuples(s string) []string {
	var out []string
	depth := 0
	start := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			if depth == 0 {
				start = i
			}
			depth++
		case ')':
			depth--
			if depth == 0 && start != -1 {
				out = append(out, s[start:i+1])
				start = -1
			}
		}
	}
	return out
}
