package sql

import (
	"fmt"
	"strings"

	"godb/internal/catalog"
)

// parseWhere splits an "AND"-joined predicate list into Comparisons.
// Only conjunction is supported — no OR, no parentheses — matching the
// planner's single-column-constraint-set model.
func parseWhere(clause string) ([]Comparison, error) {
	clause = strings.TrimSpace(clause)
	if clause == "" {
		return nil, nil
	}
	parts := splitOnWordBoundary(clause, "AND")
	comps := make([]Comparison, 0, len(parts))
	for _, p := range parts {
		c, err := parseComparison(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		comps = append(comps, c)
	}
	return comps, nil
}

// splitOnWordBoundary splits s on sep as a whole uppercase word, ignoring
// occurrences inside single-quoted string literals.
func splitOnWordBoundary(s string, sep string) []string {
	upper := strings.ToUpper(s)
	var out []string
	inQuote := false
	start := 0
	i := 0
	for i < len(s) {
		if s[i] == '\'' {
			inQuote = !inQuote
			i++
			continue
		}
		if !inQuote && i+len(sep) <= len(upper) && upper[i:i+len(sep)] == sep {
			before := i == 0 || s[i-1] == ' '
			after := i+len(sep) == len(s) || s[i+len(sep)] == ' '
			if before && after {
				out = append(out, s[start:i])
				i += len(sep)
				start = i
				continue
			}
		}
		i++
	}
	out = append(out, s[start:])
	return out
}

func parseComparison(expr string) (Comparison, error) {
	upper := strings.ToUpper(expr)
	if strings.HasSuffix(upper, "IS NOT NULL") {
		return Comparison{Column: strings.TrimSpace(expr[:len(expr)-len("IS NOT NULL")]), NotNul: true}, nil
	}
	if strings.HasSuffix(upper, "IS NULL") {
		return Comparison{Column: strings.TrimSpace(expr[:len(expr)-len("IS NULL")]), Null: true}, nil
	}

	ops := []struct {
		text string
		op   catalog.Op
	}{
		{">=", catalog.OpGEQ},
		{"<=", catalog.OpLEQ},
		{"!=", catalog.OpNEQ},
		{"<>", catalog.OpNEQ},
		{">", catalog.OpGT},
		{"<", catalog.OpLT},
		{"=", catalog.OpEQ},
	}
	for _, o := range ops {
		if idx := strings.Index(expr, o.text); idx != -1 {
			col := strings.TrimSpace(expr[:idx])
			val := strings.TrimSpace(expr[idx+len(o.text):])
			if col == "" || val == "" {
				continue
			}
			return Comparison{Column: col, Op: o.op, Raw: val}, nil
		}
	}
	return Comparison{}, fmt.Errorf("unsupported WHERE predicate %q", expr)
}
