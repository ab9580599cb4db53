// Package catalog implements the Catalog/Executor (SystemManager): DDL,
// DML, and constraint enforcement layered over the record and index
// managers, plus the search planner that chooses between an index range
// scan and a full heap scan.
package catalog

import (
	"strconv"

	"godb/internal/record"
)

// maxFKColumns bounds the fixed-width sidecar schemas below at 10 columns
// each, per the spec's fk_col_0..fk_col_9 / idx_col_0..idx_col_9 layout.
const maxFKColumns = 10

// uniqueSuffix is appended to an index name when add_unique creates it,
// so drop_index can match either the bare name or this decorated form.
const uniqueSuffix = "_UNIQUE"

func varcharCol(id uint16, name string, maxLen uint16) record.Column {
	return record.Column{ID: id, Name: name, Type: record.TypeVarchar, MaxLen: maxLen}
}

func intCol(id uint16, name string, notNull bool) record.Column {
	return record.Column{ID: id, Name: name, Type: record.TypeInt32, NotNull: notNull}
}

// allDatabaseSchema backs ./data/global/ALLDatabase: one row per
// database, data_id is the database id.
func allDatabaseSchema() []record.Column {
	return []record.Column{varcharCol(0, "name", 255)}
}

// allTableSchema backs ./data/base/DB<id>/ALLTable: one row per table,
// data_id is the table id.
func allTableSchema() []record.Column {
	return []record.Column{varcharCol(0, "name", 255)}
}

// primaryKeySchema backs a table's PrimaryKey sidecar: one row per PK
// column, in declaration order (by ascending data id).
func primaryKeySchema() []record.Column {
	return []record.Column{{ID: 0, Name: "PRIMARY_KEY_IDS", Type: record.TypeInt32, NotNull: true, Unique: true}}
}

// foreignKeySchema backs a table's ForeignKey sidecar: one row per FK
// declaration. Local/referenced column tuples are fixed at 10 slots;
// unused slots hold NULL.
func foreignKeySchema() []record.Column {
	cols := []record.Column{intCol(0, "reference_table_id", true)}
	id := uint16(1)
	for i := 0; i < maxFKColumns; i++ {
		cols = append(cols, intCol(id, fkColName(i), false))
		id++
	}
	for i := 0; i < maxFKColumns; i++ {
		cols = append(cols, intCol(id, refColName(i), false))
		id++
	}
	cols = append(cols, varcharCol(id, "reference_table_name", 255))
	return cols
}

func fkColName(i int) string  { return "fk_col_" + strconv.Itoa(i) }
func refColName(i int) string { return "ref_col_" + strconv.Itoa(i) }
func idxColName(i int) string { return "idx_col_" + strconv.Itoa(i) }

// dominateSchema backs a table's Dominate sidecar: one row per table
// whose FK references this one.
func dominateSchema() []record.Column {
	return []record.Column{intCol(0, "dominate_table_id", true)}
}

// indexInfoSchema backs a table's IndexInfo sidecar: one row per declared
// index (up to maxFKColumns columns), with an optional display name.
func indexInfoSchema() []record.Column {
	cols := make([]record.Column, 0, maxFKColumns+1)
	id := uint16(0)
	for i := 0; i < maxFKColumns; i++ {
		cols = append(cols, intCol(id, idxColName(i), false))
		id++
	}
	cols = append(cols, varcharCol(id, "index_name", 255))
	return cols
}
