package filestore

import (
	"bytes"
	"testing"
)

func TestPageRoundTrip(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := st.CreateFile("Record"); err != nil {
		t.Fatalf("create file: %v", err)
	}
	h, err := st.Open("Record")
	if err != nil {
		t.Fatalf("open handle: %v", err)
	}

	want := NewPage()
	for i := range want {
		want[i] = byte(i % 251)
	}
	if err := st.WritePage(h, 3, want); err != nil {
		t.Fatalf("write page: %v", err)
	}

	got := NewPage()
	if err := st.ReadPage(h, 3, got); err != nil {
		t.Fatalf("read page: %v", err)
	}
	if !bytes.Equal(want, got) {
		t.Fatalf("page round-trip mismatch")
	}
}

func TestReadUnwrittenPageIsZeroed(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.CreateFile("Record"); err != nil {
		t.Fatalf("create file: %v", err)
	}
	h, err := st.Open("Record")
	if err != nil {
		t.Fatalf("open handle: %v", err)
	}

	buf := make([]byte, PageSize)
	for i := range buf {
		buf[i] = 0xAA
	}
	if err := st.ReadPage(h, 7, buf); err != nil {
		t.Fatalf("read page: %v", err)
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %x", i, b)
		}
	}
}

func TestFolderLifecycle(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.CreateFolder("base/DB1/TB2"); err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if !st.ExistsFolder("base/DB1/TB2") {
		t.Fatalf("expected folder to exist")
	}
	if err := st.CreateFile("base/DB1/TB2/Record"); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := st.DeleteFolder("base/DB1"); err != nil {
		t.Fatalf("delete folder: %v", err)
	}
	if st.ExistsFolder("base/DB1") {
		t.Fatalf("expected folder to be gone")
	}
}

func TestHandlesAreNotReused(t *testing.T) {
	st, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := st.CreateFile("A"); err != nil {
		t.Fatalf("create A: %v", err)
	}
	if err := st.CreateFile("B"); err != nil {
		t.Fatalf("create B: %v", err)
	}
	h1, err := st.Open("A")
	if err != nil {
		t.Fatalf("open A: %v", err)
	}
	h2, err := st.Open("B")
	if err != nil {
		t.Fatalf("open B: %v", err)
	}
	if h1 == h2 {
		t.Fatalf("expected distinct handles, got %d and %d", h1, h2)
	}
	if err := st.Close(h1); err != nil {
		t.Fatalf("close h1: %v", err)
	}
	if _, err := st.file(h1); err == nil {
		t.Fatalf("expected closed handle to be unusable")
	}
}
