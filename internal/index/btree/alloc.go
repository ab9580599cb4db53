package btree

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"

	"godb/internal/bitops"
	"godb/internal/storage/bufferpool"
	"godb/internal/storage/filestore"
)

const (
	headerPageID      = 0
	firstBitmapPageID = 1

	// bitmapBitBytes is the bits-only portion of a bitmap page; the
	// trailing 4 bytes hold the next bitmap page id (-1 = end of chain).
	bitmapBitBytes    = filestore.PageSize - 4
	bitmapCapacity    = bitmapBitBytes * 8
	bitmapNextFieldOf = bitmapBitBytes
)

// allocator tracks an index file's page-allocation bitmap chain, mirrored
// in memory by a roaring.Bitmap of currently-free (previously reclaimed)
// page ids so allocation doesn't need to rescan bitmap pages from
// scratch. The on-disk chain stays the bit-exact source of truth; the
// mirror is purely an accelerator rebuilt on open.
type allocator struct {
	pool   *bufferpool.Pool
	handle filestore.Handle

	free      *roaring.Bitmap
	highWater uint32 // highest page id ever handed out
}

// newAllocator builds a fresh allocator for a brand new index file: page 0
// is the header, page 1 the first (empty) bitmap page.
func newAllocator(pool *bufferpool.Pool, h filestore.Handle) (*allocator, error) {
	a := &allocator{pool: pool, handle: h, free: roaring.New(), highWater: firstBitmapPageID}

	buf, idx, err := pool.GetPage(h, firstBitmapPageID)
	if err != nil {
		return nil, fmt.Errorf("btree: alloc init: %w", err)
	}
	for i := range buf {
		buf[i] = 0
	}
	bitops.PutInt32(buf, bitmapNextFieldOf, -1)
	bitops.SetBit(buf[:bitmapBitBytes], int(headerPageID))
	bitops.SetBit(buf[:bitmapBitBytes], int(firstBitmapPageID))
	pool.MarkDirty(idx)
	return a, nil
}

// openAllocator rebuilds the in-memory mirror for an existing index file
// by walking its bitmap chain once: every cleared bit below the highest
// set bit is a reclaimed hole, added to the free mirror.
func openAllocator(pool *bufferpool.Pool, h filestore.Handle) (*allocator, error) {
	a := &allocator{pool: pool, handle: h, free: roaring.New()}

	bitmapPageID := uint32(firstBitmapPageID)
	block := uint32(0)
	for {
		buf, _, err := pool.GetPage(h, bitmapPageID)
		if err != nil {
			return nil, fmt.Errorf("btree: alloc scan: %w", err)
		}
		bits := buf[:bitmapBitBytes]
		base := block * bitmapCapacity
		for bit := 0; bit < bitmapCapacity; bit++ {
			pageID := base + uint32(bit)
			if bitops.GetBit(bits, bit) {
				if pageID > a.highWater {
					a.highWater = pageID
				}
			} else {
				a.free.Add(pageID)
			}
		}
		next := bitops.GetInt32(buf, bitmapNextFieldOf)
		if next == -1 {
			break
		}
		bitmapPageID = uint32(next)
		block++
	}
	// Trim mirror entries that turned out to be beyond the true high
	// water mark (virgin space past the last real page).
	a.free.RemoveRange(uint64(a.highWater)+1, uint64(^uint32(0)))
	return a, nil
}

// allocate returns a fresh page id, preferring a reclaimed hole from the
// mirror, and sets its bit in the on-disk chain.
func (a *allocator) allocate() (uint32, error) {
	var pageID uint32
	if !a.free.IsEmpty() {
		pageID = a.free.Minimum()
		a.free.Remove(pageID)
	} else {
		a.highWater++
		pageID = a.highWater
	}
	if err := a.setBit(pageID); err != nil {
		return 0, err
	}
	return pageID, nil
}

// release marks pageID free again, in both the bitmap and the mirror.
func (a *allocator) release(pageID uint32) error {
	if err := a.clearBit(pageID); err != nil {
		return err
	}
	a.free.Add(pageID)
	return nil
}

func (a *allocator) bitmapPageFor(pageID uint32, extend bool) (uint32, error) {
	target := pageID / bitmapCapacity
	bitmapPageID := uint32(firstBitmapPageID)
	block := uint32(0)
	for block < target {
		buf, idx, err := a.pool.GetPage(a.handle, bitmapPageID)
		if err != nil {
			return 0, err
		}
		next := bitops.GetInt32(buf, bitmapNextFieldOf)
		if next != -1 {
			bitmapPageID = uint32(next)
			block++
			continue
		}
		if !extend {
			return 0, fmt.Errorf("btree: bitmap chain does not reach page %d", pageID)
		}
		a.highWater++
		newBitmapPageID := a.highWater
		bitops.PutInt32(buf, bitmapNextFieldOf, int32(newBitmapPageID))
		a.pool.MarkDirty(idx)

		newBuf, newIdx, err := a.pool.GetPage(a.handle, newBitmapPageID)
		if err != nil {
			return 0, err
		}
		for i := range newBuf {
			newBuf[i] = 0
		}
		bitops.PutInt32(newBuf, bitmapNextFieldOf, -1)
		a.pool.MarkDirty(newIdx)

		bitmapPageID = newBitmapPageID
		block++
	}
	return bitmapPageID, nil
}

func (a *allocator) setBit(pageID uint32) error {
	bitmapPageID, err := a.bitmapPageFor(pageID, true)
	if err != nil {
		return err
	}
	buf, idx, err := a.pool.GetPage(a.handle, bitmapPageID)
	if err != nil {
		return err
	}
	bitops.SetBit(buf[:bitmapBitBytes], int(pageID%bitmapCapacity))
	a.pool.MarkDirty(idx)
	return nil
}

func (a *allocator) clearBit(pageID uint32) error {
	bitmapPageID, err := a.bitmapPageFor(pageID, false)
	if err != nil {
		return err
	}
	buf, idx, err := a.pool.GetPage(a.handle, bitmapPageID)
	if err != nil {
		return err
	}
	bitops.ClearBit(buf[:bitmapBitBytes], int(pageID%bitmapCapacity))
	a.pool.MarkDirty(idx)
	return nil
}
