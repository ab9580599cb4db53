package record

import (
	"fmt"

	"godb/internal/bitops"
)

const (
	heapBitmapBytes  = 64  // slot occupancy bitmap at the start of every heap page
	maxSlotsPerPage  = 512 // 64 bytes * 8 bits
	schemaPageID     = 0
	firstHeapPageID  = 1
)

// columnOffsets returns, for each column in declared order, the byte
// offset of its payload within a slot (after data_id + null bitmap).
func columnOffsets(s *Schema) []int {
	offs := make([]int, len(s.Columns))
	off := 4 + s.NullBitmapWords*4
	for i, c := range s.Columns {
		offs[i] = off
		off += columnWidth(c)
	}
	return offs
}

// encodeSlot packs rec into a SlotLen-byte buffer in schema column order.
// rec must already be validated against the schema (see validateRecord).
func encodeSlot(s *Schema, rec Record) ([]byte, error) {
	buf := make([]byte, s.SlotLen)
	bitops.PutUint32(buf, 0, rec.DataID)

	nullBitmap := buf[4 : 4+s.NullBitmapWords*4]
	offs := columnOffsets(s)

	for i, c := range s.Columns {
		v, ok := rec.ByColumn(c.ID)
		if !ok {
			return nil, fmt.Errorf("record: missing column %q (id %d) in record", c.Name, c.ID)
		}
		off := offs[i]
		if v.Null {
			bitops.SetBit(nullBitmap, i)
			continue
		}
		switch c.Type {
		case TypeInt32:
			bitops.PutInt32(buf, off, v.I32)
		case TypeDate:
			bitops.PutInt32(buf, off, v.D.Encode())
		case TypeFloat64:
			bitops.PutFloat64(buf, off, v.F64)
		case TypeVarchar:
			w := columnWidth(c)
			if len(v.S) > w-2 {
				return nil, fmt.Errorf("record: value for %q exceeds declared width", c.Name)
			}
			bitops.PutUint16(buf, off, uint16(len(v.S)))
			copy(buf[off+2:off+w], v.S)
		}
	}
	return buf, nil
}

// decodeSlot reads a slot buffer back into a Record.
func decodeSlot(s *Schema, buf []byte) Record {
	rec := Record{
		DataID: bitops.GetUint32(buf, 0),
		Values: make([]Value, len(s.Columns)),
	}
	nullBitmap := buf[4 : 4+s.NullBitmapWords*4]
	offs := columnOffsets(s)

	for i, c := range s.Columns {
		off := offs[i]
		if bitops.GetBit(nullBitmap, i) {
			rec.Values[i] = NullValue(c.ID, c.Type)
			continue
		}
		v := Value{ColumnID: c.ID, Type: c.Type}
		switch c.Type {
		case TypeInt32:
			v.I32 = bitops.GetInt32(buf, off)
		case TypeDate:
			v.D = DecodeDate(bitops.GetInt32(buf, off))
		case TypeFloat64:
			v.F64 = bitops.GetFloat64(buf, off)
		case TypeVarchar:
			l := int(bitops.GetUint16(buf, off))
			w := columnWidth(c)
			if l > w-2 {
				l = w - 2
			}
			v.S = string(buf[off+2 : off+2+l])
		}
		rec.Values[i] = v
	}
	return rec
}

// slotOccupancy returns the bitmap sub-slice at the head of a heap page.
func slotOccupancy(page []byte) []byte {
	return page[:heapBitmapBytes]
}

func slotOffset(slotID int, slotLen int) int {
	return heapBitmapBytes + slotID*slotLen
}

func readSlot(page []byte, slotID, slotLen int) []byte {
	off := slotOffset(slotID, slotLen)
	return page[off : off+slotLen]
}
