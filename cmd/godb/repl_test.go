package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"godb/internal/catalog"
	"godb/internal/config"
	"godb/internal/record"
)

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
}

func usersSchema() []record.Column {
	return []record.Column{
		{Name: "id", Type: record.TypeInt32, NotNull: true},
		{Name: "name", Type: record.TypeVarchar, MaxLen: 16},
	}
}

func newTestCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Open(filepath.Join(t.TempDir(), "data"), 64)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBatchModeReportsSuccessAndFailurePerStatement(t *testing.T) {
	c := newTestCatalog(t)
	script := strings.Join([]string{
		"CREATE DATABASE shop;",
		"USE shop;",
		"CREATE TABLE t (id INT NOT NULL, name VARCHAR(16), PRIMARY KEY(id));",
		"INSERT INTO t VALUES (1, 'a');",
		"INSERT INTO t VALUES (1, 'b');", // duplicate PK, expect failure
		"exit",
	}, "\n")

	var out bytes.Buffer
	runBatch(c, config.Default(), strings.NewReader(script), &out)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	successes, failures := 0, 0
	for _, l := range lines {
		switch l {
		case "@ success":
			successes++
		case "@ fail":
			failures++
		}
	}
	require.Equal(t, 4, successes)
	require.Equal(t, 1, failures)
}

func TestREPLRunsCreateInsertAndSelect(t *testing.T) {
	c := newTestCatalog(t)
	script := "CREATE DATABASE shop;\nUSE shop;\nCREATE TABLE t (id INT NOT NULL, name VARCHAR(16), PRIMARY KEY(id));\nINSERT INTO t VALUES (1, 'a');\nSELECT * FROM t;\n.exit\n"

	var out bytes.Buffer
	runREPL(c, config.Default(), strings.NewReader(script), &out)

	require.Contains(t, out.String(), "id | name")
	require.Contains(t, out.String(), " a")
}

func TestLoadFileBulkLoadsCSVIntoTable(t *testing.T) {
	c := newTestCatalog(t)
	require.NoError(t, c.CreateDatabase("shop"))
	require.NoError(t, c.UseDatabase("shop"))

	dir := t.TempDir()
	csvPath := filepath.Join(dir, "rows.csv")
	writeFile(t, csvPath, "1,a\n2,b\n")

	columns := usersSchema()
	require.NoError(t, c.CreateTable("t", columns, nil, nil))

	err := loadFile(c, csvPath, "t")
	require.NoError(t, err)

	rows, err := c.Search("t", nil, -1)
	require.NoError(t, err)
	require.Len(t, rows, 2)
}
