package catalog

import (
	"testing"

	"godb/internal/record"
)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(t.TempDir(), 64)
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func usersColumns() []record.Column {
	return []record.Column{
		{Name: "id", Type: record.TypeInt32, NotNull: true},
		{Name: "age", Type: record.TypeInt32},
		{Name: "name", Type: record.TypeVarchar, MaxLen: 64},
	}
}

func setupUsers(t *testing.T, c *Catalog) {
	t.Helper()
	if err := c.CreateDatabase("shop"); err != nil {
		t.Fatalf("create database: %v", err)
	}
	if err := c.UseDatabase("shop"); err != nil {
		t.Fatalf("use database: %v", err)
	}
	if err := c.CreateTable("users", usersColumns(), []string{"id"}, nil); err != nil {
		t.Fatalf("create table: %v", err)
	}
}

func TestCreateDatabaseAndTableRoundTrip(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	row := record.Record{Values: []record.Value{
		int32Value(0, 1),
		int32Value(1, 30),
		stringValue(2, "ada"),
	}}
	if err := c.InsertIntoTable("users", []record.Record{row}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	rows, err := c.Search("users", nil, -1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestInsertRejectsDuplicatePrimaryKey(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	mk := func(id int32) record.Record {
		return record.Record{Values: []record.Value{int32Value(0, id), int32Value(1, 1), stringValue(2, "x")}}
	}
	if err := c.InsertIntoTable("users", []record.Record{mk(1)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := c.InsertIntoTable("users", []record.Record{mk(1)}); err == nil {
		t.Fatalf("expected primary key violation")
	}
	if err := c.InsertIntoTable("users", []record.Record{mk(2), mk(2)}); err == nil {
		t.Fatalf("expected in-batch primary key violation")
	}
}

func TestForeignKeyEnforcement(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	ordersCols := []record.Column{
		{Name: "id", Type: record.TypeInt32, NotNull: true},
		{Name: "user_id", Type: record.TypeInt32},
	}
	fk := FKSpec{LocalColumns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}
	if err := c.CreateTable("orders", ordersCols, []string{"id"}, []FKSpec{fk}); err != nil {
		t.Fatalf("create orders: %v", err)
	}

	bad := record.Record{Values: []record.Value{int32Value(0, 1), int32Value(1, 99)}}
	if err := c.InsertIntoTable("orders", []record.Record{bad}); err == nil {
		t.Fatalf("expected foreign key violation")
	}

	user := record.Record{Values: []record.Value{int32Value(0, 99), int32Value(1, 1), stringValue(2, "grace")}}
	if err := c.InsertIntoTable("users", []record.Record{user}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	good := record.Record{Values: []record.Value{int32Value(0, 1), int32Value(1, 99)}}
	if err := c.InsertIntoTable("orders", []record.Record{good}); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	if err := c.DropTable("users"); err == nil {
		t.Fatalf("expected drop to be refused while referenced")
	}
}

func TestUpdateRejectsPrimaryKeyChangeWhileReferenced(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	ordersCols := []record.Column{
		{Name: "id", Type: record.TypeInt32, NotNull: true},
		{Name: "user_id", Type: record.TypeInt32},
	}
	fk := FKSpec{LocalColumns: []string{"user_id"}, RefTable: "users", RefColumns: []string{"id"}}
	if err := c.CreateTable("orders", ordersCols, []string{"id"}, []FKSpec{fk}); err != nil {
		t.Fatalf("create orders: %v", err)
	}

	user := record.Record{Values: []record.Value{int32Value(0, 1), int32Value(1, 30), stringValue(2, "grace")}}
	if err := c.InsertIntoTable("users", []record.Record{user}); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	order := record.Record{Values: []record.Value{int32Value(0, 1), int32Value(1, 1)}}
	if err := c.InsertIntoTable("orders", []record.Record{order}); err != nil {
		t.Fatalf("insert order: %v", err)
	}

	idConstraint := []SearchConstraint{{ColumnID: 0, Preds: []Predicate{{Op: OpEQ, Value: int32Value(0, 1)}}}}

	patch := record.Record{Values: []record.Value{int32Value(0, 2)}}
	if _, err := c.UpdateRows("users", idConstraint, patch); err == nil {
		t.Fatalf("expected update to be refused while the primary key is still referenced")
	}

	ageOnly := record.Record{Values: []record.Value{int32Value(1, 31)}}
	if n, err := c.UpdateRows("users", idConstraint, ageOnly); err != nil || n != 1 {
		t.Fatalf("expected unrelated column update to succeed, got n=%d err=%v", n, err)
	}
}

func TestIndexAssistedRangeSearch(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	for i := int32(0); i < 50; i++ {
		row := record.Record{Values: []record.Value{int32Value(0, i), int32Value(1, i%5), stringValue(2, "u")}}
		if err := c.InsertIntoTable("users", []record.Record{row}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	constraints := []SearchConstraint{{ColumnID: 0, Preds: []Predicate{
		{Op: OpGEQ, Value: record.Value{Type: record.TypeInt32, I32: 10}},
		{Op: OpLEQ, Value: record.Value{Type: record.TypeInt32, I32: 19}},
	}}}
	rows, err := c.Search("users", constraints, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows, got %d", len(rows))
	}
	for i, r := range rows {
		v, _ := r.Record.ByColumn(0)
		if v.I32 != int32(10+i) {
			t.Fatalf("out of order result at %d: %d", i, v.I32)
		}
	}
}

func TestUpdateMaintainsIndexAndDeleteRemovesRow(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	row := record.Record{Values: []record.Value{int32Value(0, 1), int32Value(1, 20), stringValue(2, "ann")}}
	if err := c.InsertIntoTable("users", []record.Record{row}); err != nil {
		t.Fatalf("insert: %v", err)
	}

	patch := record.Record{Values: []record.Value{int32Value(1, 21)}}
	n, err := c.UpdateRows("users", []SearchConstraint{{ColumnID: 0, Preds: []Predicate{{Op: OpEQ, Value: record.Value{Type: record.TypeInt32, I32: 1}}}}}, patch)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 updated row, got %d", n)
	}

	rows, err := c.Search("users", []SearchConstraint{{ColumnID: 0, Preds: []Predicate{{Op: OpEQ, Value: record.Value{Type: record.TypeInt32, I32: 1}}}}}, -1)
	if err != nil || len(rows) != 1 {
		t.Fatalf("search after update: %v rows=%d", err, len(rows))
	}
	if v, _ := rows[0].Record.ByColumn(1); v.I32 != 21 {
		t.Fatalf("update did not persist: got %d", v.I32)
	}

	deleted, err := c.DeleteRows("users", []SearchConstraint{{ColumnID: 0, Preds: []Predicate{{Op: OpEQ, Value: record.Value{Type: record.TypeInt32, I32: 1}}}}})
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if deleted != 1 {
		t.Fatalf("expected 1 deleted row, got %d", deleted)
	}
	rows, err = c.Search("users", nil, -1)
	if err != nil || len(rows) != 0 {
		t.Fatalf("expected 0 rows after delete, got %d (err=%v)", len(rows), err)
	}
}

func TestAddUniqueRejectsExistingDuplicates(t *testing.T) {
	c := newTestCatalog(t)
	setupUsers(t, c)

	mk := func(id, age int32) record.Record {
		return record.Record{Values: []record.Value{int32Value(0, id), int32Value(1, age), stringValue(2, "x")}}
	}
	if err := c.InsertIntoTable("users", []record.Record{mk(1, 30), mk(2, 30)}); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := c.AddUnique("users", "age"); err == nil {
		t.Fatalf("expected add_unique to reject pre-existing duplicates")
	}
}
