package btree

import (
	"godb/internal/bitops"
	"godb/internal/storage/filestore"
)

// nodeHeaderSize is the fixed 16-byte node header:
// {prev_page_id, next_page_id, child_count, is_leaf}, each a uint32.
// prev/next hold -1 (stored as 0xFFFFFFFF) for "no sibling".
const nodeHeaderSize = 16

const noPage uint32 = 0xFFFFFFFF

type nodeHeader struct {
	prev, next uint32
	count      int
	isLeaf     bool
}

func readNodeHeader(buf []byte) nodeHeader {
	return nodeHeader{
		prev:   bitops.GetUint32(buf, 0),
		next:   bitops.GetUint32(buf, 4),
		count:  int(bitops.GetUint32(buf, 8)),
		isLeaf: bitops.GetUint32(buf, 12) != 0,
	}
}

func writeNodeHeader(buf []byte, h nodeHeader) {
	bitops.PutUint32(buf, 0, h.prev)
	bitops.PutUint32(buf, 4, h.next)
	bitops.PutUint32(buf, 8, uint32(h.count))
	leaf := uint32(0)
	if h.isLeaf {
		leaf = 1
	}
	bitops.PutUint32(buf, 12, leaf)
}

// entryWidth returns the fixed per-entry slot size for an index with
// keyCount integer columns: (key_count + 2) * 4 bytes, shared by leaf and
// internal entries so both fit the same fan-out arithmetic.
func entryWidth(keyCount int) int {
	return (keyCount + 2) * 4
}

// maxEntries is M: the largest steady-state entry count a node may hold,
// leaving room for one overflow entry before a split is required.
func maxEntries(keyCount int) int {
	w := entryWidth(keyCount)
	return (filestore.PageSize-nodeHeaderSize)/w - 1
}

func entryOffset(i, keyCount int) int {
	return nodeHeaderSize + i*entryWidth(keyCount)
}

// internalEntry is (child_page_id, max_key) for an internal node.
type internalEntry struct {
	child uint32
	max   []int32
}

func readInternalEntry(buf []byte, i, keyCount int) internalEntry {
	off := entryOffset(i, keyCount)
	e := internalEntry{child: bitops.GetUint32(buf, off), max: make([]int32, keyCount)}
	off += 4
	for k := 0; k < keyCount; k++ {
		e.max[k] = bitops.GetInt32(buf, off+k*4)
	}
	return e
}

func writeInternalEntry(buf []byte, i, keyCount int, e internalEntry) {
	off := entryOffset(i, keyCount)
	bitops.PutUint32(buf, off, e.child)
	off += 4
	for k := 0; k < keyCount; k++ {
		bitops.PutInt32(buf, off+k*4, e.max[k])
	}
}

func readInternalEntries(buf []byte, keyCount, count int) []internalEntry {
	out := make([]internalEntry, count)
	for i := 0; i < count; i++ {
		out[i] = readInternalEntry(buf, i, keyCount)
	}
	return out
}

func writeInternalNode(buf []byte, keyCount int, h nodeHeader, entries []internalEntry) {
	for i := range buf {
		buf[i] = 0
	}
	h.count = len(entries)
	h.isLeaf = false
	writeNodeHeader(buf, h)
	for i, e := range entries {
		writeInternalEntry(buf, i, keyCount, e)
	}
}

// leafEntry is (ref_page_id, ref_slot_id, key) for a leaf node.
type leafEntry struct {
	loc Location
	key []int32
}

func readLeafEntry(buf []byte, i, keyCount int) leafEntry {
	off := entryOffset(i, keyCount)
	e := leafEntry{
		loc: Location{PageID: bitops.GetUint32(buf, off), SlotID: uint16(bitops.GetUint32(buf, off+4))},
		key: make([]int32, keyCount),
	}
	off += 8
	for k := 0; k < keyCount; k++ {
		e.key[k] = bitops.GetInt32(buf, off+k*4)
	}
	return e
}

func writeLeafEntry(buf []byte, i, keyCount int, e leafEntry) {
	off := entryOffset(i, keyCount)
	bitops.PutUint32(buf, off, e.loc.PageID)
	bitops.PutUint32(buf, off+4, uint32(e.loc.SlotID))
	off += 8
	for k := 0; k < keyCount; k++ {
		bitops.PutInt32(buf, off+k*4, e.key[k])
	}
}

func readLeafEntries(buf []byte, keyCount, count int) []leafEntry {
	out := make([]leafEntry, count)
	for i := 0; i < count; i++ {
		out[i] = readLeafEntry(buf, i, keyCount)
	}
	return out
}

func writeLeafNode(buf []byte, keyCount int, h nodeHeader, entries []leafEntry) {
	for i := range buf {
		buf[i] = 0
	}
	h.count = len(entries)
	h.isLeaf = true
	writeNodeHeader(buf, h)
	for i, e := range entries {
		writeLeafEntry(buf, i, keyCount, e)
	}
}

// leafMax returns the maximum key held in a non-empty leaf's entries.
func leafMax(entries []leafEntry) []int32 {
	return entries[len(entries)-1].key
}

// internalMax returns the maximum key spanned by a non-empty internal
// node's entries (the max of its last, i.e. rightmost, child).
func internalMax(entries []internalEntry) []int32 {
	return entries[len(entries)-1].max
}
