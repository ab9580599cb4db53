package sql

import (
	"fmt"
	"strings"
)

func parseCreateDatabase(q string) (Statement, error) {
	name := lastField(q)
	if name == "" {
		return nil, fmt.Errorf("CREATE DATABASE: missing name")
	}
	return &CreateDatabaseStmt{Name: name}, nil
}

func parseDropDatabase(q string) (Statement, error) {
	name := lastField(q)
	if name == "" {
		return nil, fmt.Errorf("DROP DATABASE: missing name")
	}
	return &DropDatabaseStmt{Name: name}, nil
}

func parseUseDatabase(q string) (Statement, error) {
	name := lastField(q)
	if name == "" {
		return nil, fmt.Errorf("USE: missing database name")
	}
	return &UseDatabaseStmt{Name: name}, nil
}

func lastField(q string) string {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return ""
	}
	return fields[len(fields)-1]
}
