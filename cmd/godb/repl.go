package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	json "github.com/goccy/go-json"

	"godb/internal/catalog"
	"godb/internal/config"
	"godb/internal/record"
	"godb/internal/sql"
)

// runREPL reads statements terminated by ';' from in, echoing results to
// out, until EOF or an "exit"/"quit" statement.
func runREPL(c *catalog.Catalog, cfg config.Config, in io.Reader, out io.Writer) {
	fmt.Fprintln(out, "godb REPL. Statements are ';'-terminated. Meta commands: .tables .schema <t> .exit .help")
	reader := bufio.NewReader(in)
	var buffer strings.Builder

	for {
		prompt := "godb> "
		if buffer.Len() > 0 {
			prompt = "...> "
		}
		fmt.Fprint(out, prompt)

		line, err := reader.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) {
				fmt.Fprintln(out)
				return
			}
			fmt.Fprintln(out, "read error:", err)
			return
		}
		line = strings.TrimSpace(line)

		if buffer.Len() == 0 && line == "" {
			continue
		}
		if buffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if handleMetaCommand(line, c, out) {
				return
			}
			continue
		}

		if line != "" {
			if buffer.Len() > 0 {
				buffer.WriteString(" ")
			}
			buffer.WriteString(line)
		}

		if strings.HasSuffix(line, ";") {
			statement := buffer.String()
			buffer.Reset()
			if runStatement(c, statement, cfg, out) {
				return
			}
		}
	}
}

// runBatch reads one statement per line from in (no multi-line buffering)
// and emits "@ success"/"@ fail" per statement, per the --batch contract.
func runBatch(c *catalog.Catalog, cfg config.Config, in io.Reader, out io.Writer) {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.EqualFold(strings.TrimSuffix(line, ";"), "exit") || strings.EqualFold(strings.TrimSuffix(line, ";"), "quit") {
			return
		}
		if ok := execBatchLine(c, line, cfg, out); ok {
			fmt.Fprintln(out, "@ success")
		} else {
			fmt.Fprintln(out, "@ fail")
		}
	}
}

func execBatchLine(c *catalog.Catalog, line string, cfg config.Config, out io.Writer) bool {
	stmt, err := sql.Parse(line)
	if err != nil {
		fmt.Fprintln(out, "!ERROR")
		fmt.Fprintln(out, err)
		return false
	}
	res, err := sql.Execute(c, stmt)
	if err != nil {
		fmt.Fprintln(out, "!ERROR")
		fmt.Fprintln(out, err)
		return false
	}
	printResult(res, cfg, out)
	return true
}

// runStatement parses and executes one REPL statement, returning true if
// the REPL should now exit.
func runStatement(c *catalog.Catalog, statement string, cfg config.Config, out io.Writer) bool {
	stmt, err := sql.Parse(statement)
	if err != nil {
		fmt.Fprintln(out, "!ERROR")
		fmt.Fprintln(out, err)
		return false
	}
	res, err := sql.Execute(c, stmt)
	if err != nil {
		fmt.Fprintln(out, "!ERROR")
		fmt.Fprintln(out, err)
		return false
	}
	if res.Exit {
		return true
	}
	printResult(res, cfg, out)
	return false
}

func printResult(res *sql.Result, cfg config.Config, out io.Writer) {
	if cfg.BatchFormat == "json" {
		printResultJSON(res, out)
		return
	}
	if res.SavedPath != "" {
		fmt.Fprintln(out, "rows")
		fmt.Fprintln(out, res.RowsAffected)
		return
	}
	if len(res.Columns) > 0 {
		printResultSet(res.Columns, res.Rows, out)
		return
	}
	fmt.Fprintln(out, "rows")
	fmt.Fprintln(out, res.RowsAffected)
}

// jsonRow is what printResultJSON renders per row: column name to a
// formatted string value, since column types vary per statement.
type jsonRow map[string]string

func printResultJSON(res *sql.Result, out io.Writer) {
	doc := struct {
		RowsAffected int       `json:"rows_affected"`
		SavedPath    string    `json:"saved_path,omitempty"`
		Rows         []jsonRow `json:"rows,omitempty"`
	}{RowsAffected: res.RowsAffected, SavedPath: res.SavedPath}

	if len(res.Columns) > 0 {
		doc.Rows = make([]jsonRow, len(res.Rows))
		for i, r := range res.Rows {
			row := make(jsonRow, len(res.Columns))
			for _, c := range res.Columns {
				v, _ := r.Record.ByColumn(c.ID)
				row[c.Name] = formatValue(v)
			}
			doc.Rows[i] = row
		}
	}

	buf, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintln(out, "!ERROR")
		fmt.Fprintln(out, err)
		return
	}
	fmt.Fprintln(out, string(buf))
}

func printResultSet(cols []record.Column, rows []record.LocatedRecord, out io.Writer) {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	fmt.Fprintln(out, strings.Join(names, " | "))
	for _, r := range rows {
		parts := make([]string, len(cols))
		for i, c := range cols {
			v, _ := r.Record.ByColumn(c.ID)
			parts[i] = formatValue(v)
		}
		fmt.Fprintln(out, strings.Join(parts, " | "))
	}
	fmt.Fprintln(out, "rows")
	fmt.Fprintln(out, len(rows))
}

func formatValue(v record.Value) string {
	if v.Null {
		return "NULL"
	}
	switch v.Type {
	case record.TypeInt32:
		return fmt.Sprintf("%d", v.I32)
	case record.TypeFloat64:
		return fmt.Sprintf("%g", v.F64)
	case record.TypeVarchar:
		return v.S
	case record.TypeDate:
		return v.D.String()
	default:
		return "NULL"
	}
}

// handleMetaCommand processes dot-prefixed commands like .exit, .help,
// .tables, .schema. Returns true if the REPL should exit.
func handleMetaCommand(line string, c *catalog.Catalog, out io.Writer) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}
	switch strings.ToLower(parts[0]) {
	case ".exit", ".quit":
		return true
	case ".help":
		fmt.Fprintln(out, "Meta commands: .tables  .schema <table>  .help  .exit")
		return false
	case ".tables":
		names, err := c.ListTables()
		if err != nil {
			fmt.Fprintln(out, "!ERROR")
			fmt.Fprintln(out, err)
			return false
		}
		if len(names) == 0 {
			fmt.Fprintln(out, "(no tables)")
			return false
		}
		fmt.Fprintln(out, strings.Join(names, "\n"))
		return false
	case ".schema":
		if len(parts) < 2 {
			fmt.Fprintln(out, "usage: .schema <table>")
			return false
		}
		cols, err := c.TableColumns(parts[1])
		if err != nil {
			fmt.Fprintln(out, "!ERROR")
			fmt.Fprintln(out, err)
			return false
		}
		for _, col := range cols {
			fmt.Fprintf(out, "%s %s\n", col.Name, col.Type)
		}
		return false
	default:
		fmt.Fprintf(out, "unknown meta command: %s\n", parts[0])
		return false
	}
}
