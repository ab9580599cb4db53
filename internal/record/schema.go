package record

import (
	"fmt"

	"godb/internal/bitops"
	"godb/internal/storage/filestore"
)

// Schema header layout (page 0), per spec section 4.4/6:
//
//	[0:16]   column-presence bitmap, one bit per column id slot (0..127)
//	[16:18]  next_column_id   uint16
//	[18:22]  live_page_count  uint32
//	[22:26]  next_data_id     uint32
//	[26:28]  null_bitmap_words uint16
//	[28:32]  reserved
//	[32:]    up to 102 column entries of 80 bytes each
const (
	headerPresenceBytes = 16
	headerFixedSize     = 32
	columnBlockSize     = 80
	maxColumns          = (filestore.PageSize - headerFixedSize) / columnBlockSize // 102

	colNameMax    = 32
	colBlockDefOf = 40 // offset of the default-value payload within a column block
	colBlockDefSz = columnBlockSize - colBlockDefOf
)

// Schema is a table's parsed column metadata plus the heap layout derived
// from it.
type Schema struct {
	Columns         []Column
	NextColumnID    uint16
	LivePageCount   uint32
	NextDataID      uint32
	NullBitmapWords int

	SlotLen      int
	SlotsPerPage int
}

func varcharWidth(maxLen int) int {
	n := 2*maxLen + 2
	return ((n + 3) / 4) * 4
}

func columnWidth(c Column) int {
	switch c.Type {
	case TypeInt32, TypeDate:
		return 4
	case TypeFloat64:
		return 8
	case TypeVarchar:
		return varcharWidth(int(c.MaxLen))
	default:
		return 0
	}
}

func computeLayout(columns []Column) (nullWords, slotLen int) {
	nullWords = bitops.WordsForBits(len(columns))
	slotLen = 4 + nullWords*4
	for _, c := range columns {
		slotLen += columnWidth(c)
	}
	return
}

func slotsPerPage(slotLen int) int {
	n := (filestore.PageSize - heapBitmapBytes) / slotLen
	if n > maxSlotsPerPage {
		n = maxSlotsPerPage
	}
	return n
}

// NewSchema builds a Schema from freshly declared columns (ids 0..n-1).
func NewSchema(columns []Column) (*Schema, error) {
	if len(columns) > maxColumns {
		return nil, fmt.Errorf("record: too many columns: %d (max %d)", len(columns), maxColumns)
	}
	nullWords, slotLen := computeLayout(columns)
	s := &Schema{
		Columns:         columns,
		NextColumnID:    uint16(len(columns)),
		LivePageCount:   0,
		NextDataID:      0,
		NullBitmapWords: nullWords,
		SlotLen:         slotLen,
		SlotsPerPage:    slotsPerPage(slotLen),
	}
	return s, nil
}

// encodeHeader writes the schema into page, a PageSize buffer.
func encodeHeader(page []byte, s *Schema) error {
	for i := range page {
		page[i] = 0
	}
	for _, c := range s.Columns {
		if int(c.ID) >= headerPresenceBytes*8 {
			return fmt.Errorf("record: column id %d exceeds presence bitmap width", c.ID)
		}
		bitops.SetBit(page[:headerPresenceBytes], int(c.ID))
	}
	bitops.PutUint16(page, 16, s.NextColumnID)
	bitops.PutUint32(page, 18, s.LivePageCount)
	bitops.PutUint32(page, 22, s.NextDataID)
	bitops.PutUint16(page, 26, uint16(s.NullBitmapWords))

	for i, c := range s.Columns {
		if i >= maxColumns {
			return fmt.Errorf("record: too many columns to encode")
		}
		off := headerFixedSize + i*columnBlockSize
		if err := encodeColumnBlock(page[off:off+columnBlockSize], c); err != nil {
			return err
		}
	}
	return nil
}

func encodeColumnBlock(b []byte, c Column) error {
	name := c.Name
	if len(name) > colNameMax {
		name = name[:colNameMax]
	}
	bitops.PutUint16(b, 0, uint16(len(name)))
	copy(b[2:2+colNameMax], name)

	bitops.PutUint8(b, 34, uint8(c.Type))
	bitops.PutUint16(b, 35, c.MaxLen)
	bitops.PutUint16(b, 37, uint16(columnWidth(c)))

	var flags uint8
	if c.NotNull {
		flags |= 1 << 0
	}
	if c.HasDefault {
		flags |= 1 << 1
	}
	if c.DefaultIsNull {
		flags |= 1 << 2
	}
	if c.Unique {
		flags |= 1 << 3
	}
	bitops.PutUint8(b, 39, flags)

	if c.HasDefault && !c.DefaultIsNull {
		def := b[colBlockDefOf : colBlockDefOf+colBlockDefSz]
		switch c.Type {
		case TypeInt32:
			bitops.PutInt32(def, 0, c.Default.I32)
		case TypeDate:
			bitops.PutInt32(def, 0, c.Default.D.Encode())
		case TypeFloat64:
			bitops.PutFloat64(def, 0, c.Default.F64)
		case TypeVarchar:
			s := c.Default.S
			if len(s) > colBlockDefSz-2 {
				return fmt.Errorf("record: default value for %q too long to encode", c.Name)
			}
			bitops.PutUint16(def, 0, uint16(len(s)))
			copy(def[2:], s)
		}
	}
	return nil
}

// decodeHeader parses a schema header page into a Schema.
func decodeHeader(page []byte) (*Schema, error) {
	s := &Schema{
		NextColumnID:    bitops.GetUint16(page, 16),
		LivePageCount:   bitops.GetUint32(page, 18),
		NextDataID:      bitops.GetUint32(page, 22),
		NullBitmapWords: int(bitops.GetUint16(page, 26)),
	}

	for i := 0; i < int(s.NextColumnID) && i < maxColumns; i++ {
		if !bitops.GetBit(page[:headerPresenceBytes], i) {
			continue
		}
		off := headerFixedSize + i*columnBlockSize
		block := page[off : off+columnBlockSize]
		c, err := decodeColumnBlock(block, uint16(i))
		if err != nil {
			return nil, err
		}
		s.Columns = append(s.Columns, c)
	}

	_, slotLen := computeLayout(s.Columns)
	s.SlotLen = slotLen
	s.SlotsPerPage = slotsPerPage(slotLen)
	return s, nil
}

func decodeColumnBlock(b []byte, id uint16) (Column, error) {
	nameLen := int(bitops.GetUint16(b, 0))
	if nameLen > colNameMax {
		nameLen = colNameMax
	}
	name := string(b[2 : 2+nameLen])

	c := Column{
		ID:     id,
		Name:   name,
		Type:   DataType(bitops.GetUint8(b, 34)),
		MaxLen: bitops.GetUint16(b, 35),
	}

	flags := bitops.GetUint8(b, 39)
	c.NotNull = flags&(1<<0) != 0
	c.HasDefault = flags&(1<<1) != 0
	c.DefaultIsNull = flags&(1<<2) != 0
	c.Unique = flags&(1<<3) != 0

	if c.HasDefault && !c.DefaultIsNull {
		def := b[colBlockDefOf : colBlockDefOf+colBlockDefSz]
		v := Value{ColumnID: id, Type: c.Type}
		switch c.Type {
		case TypeInt32:
			v.I32 = bitops.GetInt32(def, 0)
		case TypeDate:
			v.D = DecodeDate(bitops.GetInt32(def, 0))
		case TypeFloat64:
			v.F64 = bitops.GetFloat64(def, 0)
		case TypeVarchar:
			l := int(bitops.GetUint16(def, 0))
			if l > colBlockDefSz-2 {
				l = colBlockDefSz - 2
			}
			v.S = string(def[2 : 2+l])
		}
		c.Default = v
	}
	return c, nil
}
