package record

import (
	"strings"
	"testing"

	"godb/internal/storage/bufferpool"
	"godb/internal/storage/filestore"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := filestore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	pool := bufferpool.New(store, 64)
	return NewManager(store, pool, 0)
}

func testColumns() []Column {
	return []Column{
		{ID: 0, Name: "id", Type: TypeInt32, NotNull: true, Unique: true},
		{ID: 1, Name: "name", Type: TypeVarchar, MaxLen: 16},
		{ID: 2, Name: "score", Type: TypeFloat64},
		{ID: 3, Name: "joined", Type: TypeDate},
	}
}

func TestInsertAndGetRecordRoundTrip(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("students", testColumns()); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	rec := Record{Values: []Value{
		{ColumnID: 0, Type: TypeInt32, I32: 7},
		{ColumnID: 1, Type: TypeVarchar, S: "Ada"},
		{ColumnID: 2, Type: TypeFloat64, F64: 98.5},
		{ColumnID: 3, Type: TypeDate, D: Date{Year: 2024, Month: 9, Day: 1}},
	}}
	loc, err := m.InsertRecord("students", rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := m.GetRecord("students", loc)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	want, err := normalize(mustSchema(t, m, "students"), rec)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want.DataID = got.DataID
	if !Equal(got, want) {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, want)
	}
}

func mustSchema(t *testing.T, m *Manager, path string) *Schema {
	t.Helper()
	of, err := m.openFile(path)
	if err != nil {
		t.Fatalf("openFile: %v", err)
	}
	return of.schema
}

func TestDeleteRecordFreesSlot(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("t", testColumns()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	rec := Record{Values: []Value{
		{ColumnID: 0, Type: TypeInt32, I32: 1},
		{ColumnID: 1, Type: TypeVarchar, S: "x"},
		{ColumnID: 2, Type: TypeFloat64, F64: 1},
		{ColumnID: 3, Type: TypeDate, D: Date{2024, 1, 1}},
	}}
	loc, err := m.InsertRecord("t", rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := m.DeleteRecord("t", loc); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.GetRecord("t", loc); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := m.DeleteRecord("t", loc); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound on double delete, got %v", err)
	}
}

func TestUpdateRecordRejectsTypeMismatchWithoutMutating(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("t", testColumns()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	rec := Record{Values: []Value{
		{ColumnID: 0, Type: TypeInt32, I32: 1},
		{ColumnID: 1, Type: TypeVarchar, S: "x"},
		{ColumnID: 2, Type: TypeFloat64, F64: 1},
		{ColumnID: 3, Type: TypeDate, D: Date{2024, 1, 1}},
	}}
	loc, err := m.InsertRecord("t", rec)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	badPatch := Record{Values: []Value{{ColumnID: 1, Type: TypeInt32, I32: 99}}}
	if err := m.UpdateRecord("t", loc, badPatch); err == nil {
		t.Fatalf("expected type-mismatch update to fail")
	}

	got, err := m.GetRecord("t", loc)
	if err != nil {
		t.Fatalf("get after failed update: %v", err)
	}
	v, _ := got.ByColumn(1)
	if v.S != "x" {
		t.Fatalf("record mutated despite failed validation: got %q", v.S)
	}

	okPatch := Record{Values: []Value{{ColumnID: 1, Type: TypeVarchar, S: "y"}}}
	if err := m.UpdateRecord("t", loc, okPatch); err != nil {
		t.Fatalf("valid update failed: %v", err)
	}
	got, err = m.GetRecord("t", loc)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	v, _ = got.ByColumn(1)
	if v.S != "y" {
		t.Fatalf("update did not apply: got %q", v.S)
	}
}

func TestGetAllWithConstraintFiltersAcrossPages(t *testing.T) {
	m := newTestManager(t)
	cols := []Column{{ID: 0, Name: "n", Type: TypeInt32}}
	if err := m.Initialize("nums", cols); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	of, err := m.openFile("nums")
	if err != nil {
		t.Fatalf("openFile: %v", err)
	}
	total := of.schema.SlotsPerPage*2 + 3
	for i := 0; i < total; i++ {
		_, err := m.InsertRecord("nums", Record{Values: []Value{{ColumnID: 0, Type: TypeInt32, I32: int32(i)}}})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	evens, err := m.GetAllWithConstraint("nums", func(r Record) bool {
		v, _ := r.ByColumn(0)
		return v.I32%2 == 0
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	want := (total + 1) / 2
	if len(evens) != want {
		t.Fatalf("expected %d even records spanning pages, got %d", want, len(evens))
	}
}

func TestLoadDelimited(t *testing.T) {
	m := newTestManager(t)
	cols := []Column{
		{ID: 0, Name: "id", Type: TypeInt32},
		{ID: 1, Name: "name", Type: TypeVarchar, MaxLen: 8},
		{ID: 2, Name: "gpa", Type: TypeFloat64},
		{ID: 3, Name: "dob", Type: TypeDate},
	}
	if err := m.Initialize("bulk", cols); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	data := "1|Ada|3.9|2001-05-06\n2|Kit|3.5|2002-07-08\n"
	n, err := m.LoadDelimited("bulk", strings.NewReader(data), '|')
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows loaded, got %d", n)
	}

	all, err := m.GetAllRecords("bulk")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 records, got %d", len(all))
	}
}

func TestDeleteRecordFileRemovesHeapFile(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("gone", []Column{{ID: 0, Name: "n", Type: TypeInt32}}); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.DeleteRecordFile("gone"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := m.GetColumnTypes("gone"); err == nil {
		t.Fatalf("expected error reading deleted file")
	}
}
