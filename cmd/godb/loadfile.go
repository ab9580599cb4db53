package main

import (
	"fmt"
	"os"

	"godb/internal/catalog"
)

// loadFile implements --file/-t: a direct CSV bulk load into an
// already-created table, bypassing the SQL layer entirely.
func loadFile(c *catalog.Catalog, path, table string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %q: %w", path, err)
	}
	defer f.Close()

	n, err := c.LoadCSV(table, f, ',')
	if err != nil {
		fmt.Println("!ERROR")
		fmt.Println(err)
		return nil
	}
	fmt.Println("rows")
	fmt.Println(n)
	return nil
}
