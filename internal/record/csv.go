package record

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// LoadDelimited bulk-loads rows from r into path, tokenizing each line on
// delim (a caller-supplied single byte, since the source data need not be
// comma-separated). DATE fields are parsed as YYYY-MM-DD, floats are
// parsed locale-independently via strconv, and VARCHAR fields are taken
// verbatim with no quote stripping. It returns the number of rows loaded.
func (m *Manager) LoadDelimited(path string, r io.Reader, delim byte) (int, error) {
	of, err := m.openFile(path)
	if err != nil {
		return 0, err
	}

	sep := string(delim)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	n := 0
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, sep)
		if len(fields) != len(of.schema.Columns) {
			return n, fmt.Errorf("record: load %q: line %d has %d fields, want %d", path, n+1, len(fields), len(of.schema.Columns))
		}

		rec := Record{Values: make([]Value, len(of.schema.Columns))}
		for i, c := range of.schema.Columns {
			v, err := parseField(c, fields[i])
			if err != nil {
				return n, fmt.Errorf("record: load %q: line %d: %w", path, n+1, err)
			}
			rec.Values[i] = v
		}
		if _, err := m.InsertRecord(path, rec); err != nil {
			return n, fmt.Errorf("record: load %q: line %d: %w", path, n+1, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, fmt.Errorf("record: load %q: %w", path, err)
	}
	return n, nil
}

// ParseLiteral converts a single already-unwrapped text token into a
// typed Value for column c, the same conversion LoadDelimited uses for
// each CSV field.
func ParseLiteral(c Column, raw string) (Value, error) {
	return parseField(c, raw)
}

func parseField(c Column, field string) (Value, error) {
	if field == "" && !c.NotNull {
		return NullValue(c.ID, c.Type), nil
	}
	switch c.Type {
	case TypeInt32:
		n, err := strconv.ParseInt(field, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("column %q: bad int32 %q: %w", c.Name, field, err)
		}
		return Value{ColumnID: c.ID, Type: c.Type, I32: int32(n)}, nil
	case TypeFloat64:
		f, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Value{}, fmt.Errorf("column %q: bad float64 %q: %w", c.Name, field, err)
		}
		return Value{ColumnID: c.ID, Type: c.Type, F64: f}, nil
	case TypeDate:
		d, err := parseDate(field)
		if err != nil {
			return Value{}, fmt.Errorf("column %q: bad date %q: %w", c.Name, field, err)
		}
		return Value{ColumnID: c.ID, Type: c.Type, D: d}, nil
	case TypeVarchar:
		return Value{ColumnID: c.ID, Type: c.Type, S: field}, nil
	default:
		return Value{}, fmt.Errorf("column %q: unsupported type %s", c.Name, c.Type)
	}
}

func parseDate(s string) (Date, error) {
	parts := strings.SplitN(s, "-", 3)
	if len(parts) != 3 {
		return Date{}, fmt.Errorf("expected YYYY-MM-DD")
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil {
		return Date{}, err
	}
	mo, err := strconv.Atoi(parts[1])
	if err != nil {
		return Date{}, err
	}
	day, err := strconv.Atoi(parts[2])
	if err != nil {
		return Date{}, err
	}
	return Date{Year: int16(y), Month: uint8(mo), Day: uint8(day)}, nil
}
