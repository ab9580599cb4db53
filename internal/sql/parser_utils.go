package sql

import (
	"fmt"
	"strings"

	"godb/internal/record"
)

// splitTopLevel splits s on sep, but never inside parentheses or
// single-quoted strings — "a INT, b VARCHAR(255)" splits on the comma
// after INT but not the one inside VARCHAR(255).
func splitTopLevel(s string, sep byte) []string {
	var out []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\'':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				depth++
			}
		case ')':
			if !inQuote {
				depth--
			}
		default:
			if s[i] == sep && depth == 0 && !inQuote {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	out = append(out, strings.TrimSpace(s[start:]))
	filtered := out[:0]
	for _, p := range out {
		if p != "" {
			filtered = append(filtered, p)
		}
	}
	return filtered
}

func splitCommaSeparated(s string) []string { return splitTopLevel(s, ',') }

// parenContents returns the text strictly between the first '(' and its
// matching ')'.
func parenContents(s string) (string, error) {
	open := strings.Index(s, "(")
	if open == -1 {
		return "", fmt.Errorf("expected '('")
	}
	depth := 0
	for i := open; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return s[open+1 : i], nil
			}
		}
	}
	return "", fmt.Errorf("unbalanced parentheses")
}

func parseColumnType(tok string) (record.DataType, uint16, error) {
	tok = strings.ToUpper(strings.TrimSpace(tok))
	if strings.HasPrefix(tok, "VARCHAR") {
		maxLen := uint16(255)
		if rest, err := parenContents(tok); err == nil {
			var n int
			if _, scanErr := fmt.Sscanf(strings.TrimSpace(rest), "%d", &n); scanErr == nil && n > 0 {
				maxLen = uint16(n)
			}
		}
		return record.TypeVarchar, maxLen, nil
	}
	switch tok {
	case "INT", "INTEGER", "INT32":
		return record.TypeInt32, 0, nil
	case "FLOAT", "FLOAT64", "DOUBLE", "REAL":
		return record.TypeFloat64, 0, nil
	case "DATE":
		return record.TypeDate, 0, nil
	default:
		return 0, 0, fmt.Errorf("unknown column type %q", tok)
	}
}

func stripQuotes(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return s[1 : len(s)-1], true
	}
	return s, false
}

func identList(s string) []string {
	parts := splitCommaSeparated(s)
	for i := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(parts[i]), "`\"")
	}
	return parts
}
