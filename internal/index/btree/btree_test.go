package btree

import (
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

func TestInsertSearchSingleColumn(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("idx", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	n := maxEntries(1)*3 + 7 // force several splits
	for i := 0; i < n; i++ {
		loc := Location{PageID: uint32(i / 10), SlotID: uint16(i % 10)}
		if err := m.Insert("idx", []int32{int32(i)}, loc); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < n; i++ {
		entries, err := m.Search("idx", []int32{int32(i)})
		if err != nil {
			t.Fatalf("search %d: %v", i, err)
		}
		if len(entries) != 1 {
			t.Fatalf("search %d: expected 1 entry, got %d", i, len(entries))
		}
		want := Location{PageID: uint32(i / 10), SlotID: uint16(i % 10)}
		if entries[0].Location != want {
			t.Fatalf("search %d: got location %+v, want %+v", i, entries[0].Location, want)
		}
	}
}

func TestRangeSearchOrderedAndComplete(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("idx", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	n := maxEntries(1)*2 + 3
	for i := n - 1; i >= 0; i-- { // insert in reverse to exercise sorted insertion
		if err := m.Insert("idx", []int32{int32(i)}, Location{PageID: uint32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	lo, hi := n/4, n/2
	entries, err := m.RangeSearch("idx", []int32{int32(lo)}, []int32{int32(hi)})
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	if len(entries) != hi-lo+1 {
		t.Fatalf("expected %d entries in [%d,%d], got %d", hi-lo+1, lo, hi, len(entries))
	}
	for i, e := range entries {
		want := int32(lo + i)
		if e.Key[0] != want {
			t.Fatalf("range result out of order at %d: got %d want %d", i, e.Key[0], want)
		}
	}
}

func TestDeleteRemovesEntryAndIsIdempotentOnMiss(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("idx", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}

	n := maxEntries(1)*2 + 5
	for i := 0; i < n; i++ {
		if err := m.Insert("idx", []int32{int32(i)}, Location{PageID: uint32(i)}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	for i := 0; i < n; i += 2 {
		if err := m.Delete("idx", []int32{int32(i)}, true, Location{PageID: uint32(i)}); err != nil {
			t.Fatalf("delete %d: %v", i, err)
		}
	}
	// Deleting an already-absent key/location is a no-op, not an error.
	if err := m.Delete("idx", []int32{int32(0)}, true, Location{PageID: uint32(0)}); err != nil {
		t.Fatalf("delete miss: %v", err)
	}

	entries, err := m.RangeSearch("idx", []int32{0}, []int32{int32(n - 1)})
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	want := n / 2
	if len(entries) != want {
		t.Fatalf("expected %d surviving entries, got %d", want, len(entries))
	}
	for _, e := range entries {
		if e.Key[0]%2 == 0 {
			t.Fatalf("found entry %d that should have been deleted", e.Key[0])
		}
	}
}

func TestCompositeKeyOrdering(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("idx", 2); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	pairs := [][2]int32{{1, 2}, {1, 1}, {2, 0}, {0, 5}, {1, 3}}
	for i, p := range pairs {
		if err := m.Insert("idx", []int32{p[0], p[1]}, Location{PageID: uint32(i)}); err != nil {
			t.Fatalf("insert %v: %v", p, err)
		}
	}
	entries, err := m.RangeSearch("idx", []int32{NullInt, NullInt}, []int32{2, 2})
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	if len(entries) != len(pairs) {
		t.Fatalf("expected %d entries, got %d", len(pairs), len(entries))
	}
	for i := 1; i < len(entries); i++ {
		if compare(entries[i-1].Key, entries[i].Key) > 0 {
			t.Fatalf("entries out of order at %d: %v then %v", i, entries[i-1].Key, entries[i].Key)
		}
	}
}

func TestDeleteFileRemovesIndex(t *testing.T) {
	m := newTestManager(t)
	if err := m.Initialize("gone", 1); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := m.DeleteFile("gone"); err != nil {
		t.Fatalf("delete file: %v", err)
	}
	if _, err := m.Search("gone", []int32{0}); err == nil {
		t.Fatalf("expected error searching deleted index")
	}
}
