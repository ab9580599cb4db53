package bitops

import "testing"

func TestSetGetClearBit(t *testing.T) {
	buf := make([]byte, 8)
	SetBit(buf, 5)
	if !GetBit(buf, 5) {
		t.Fatalf("expected bit 5 set")
	}
	for i := 0; i < 64; i++ {
		if i == 5 {
			continue
		}
		if GetBit(buf, i) {
			t.Fatalf("bit %d unexpectedly set", i)
		}
	}
	ClearBit(buf, 5)
	if GetBit(buf, 5) {
		t.Fatalf("bit 5 still set after clear")
	}
}

func TestFindFirstZero(t *testing.T) {
	buf := make([]byte, 4)
	for i := 0; i < 32; i++ {
		SetBit(buf, i)
	}
	if got := FindFirstZero(buf, 32); got != -1 {
		t.Fatalf("expected -1, got %d", got)
	}
	ClearBit(buf, 17)
	if got := FindFirstZero(buf, 32); got != 17 {
		t.Fatalf("expected 17, got %d", got)
	}
}

func TestPackedScalars(t *testing.T) {
	buf := make([]byte, 16)
	PutInt32(buf, 0, -42)
	if got := GetInt32(buf, 0); got != -42 {
		t.Fatalf("int32 round-trip: got %d", got)
	}
	PutFloat64(buf, 4, 3.25)
	if got := GetFloat64(buf, 4); got != 3.25 {
		t.Fatalf("float64 round-trip: got %v", got)
	}
	PutUint16(buf, 12, 1000)
	if got := GetUint16(buf, 12); got != 1000 {
		t.Fatalf("uint16 round-trip: got %d", got)
	}
}
