package btree

import (
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"

	"godb/internal/bitops"
	"godb/internal/storage/bufferpool"
	"godb/internal/storage/filestore"
)

const openFileCacheSize = 10

type openIndexFile struct {
	path       string
	handle     filestore.Handle
	keyCount   int
	rootPageID uint32
	alloc      *allocator
}

// Manager is the IndexManager: a persistent B+ tree keyed on a fixed-width
// tuple of integer columns, with every page routed through a shared
// buffer pool.
type Manager struct {
	store *filestore.Store
	pool  *bufferpool.Pool
	files *lru.Cache[string, *openIndexFile]
}

// NewManager creates an IndexManager over store/pool, with an
// open-file cache sized cacheSize (falling back to the spec's default
// of 10 when cacheSize <= 0).
func NewManager(store *filestore.Store, pool *bufferpool.Pool, cacheSize int) *Manager {
	if cacheSize <= 0 {
		cacheSize = openFileCacheSize
	}
	m := &Manager{store: store, pool: pool}
	files, err := lru.NewWithEvict[string, *openIndexFile](cacheSize, func(_ string, of *openIndexFile) {
		_ = m.pool.Flush()
		_ = m.store.Close(of.handle)
	})
	if err != nil {
		panic(fmt.Sprintf("btree: building open-file cache: %v", err))
	}
	m.files = files
	return m
}

// Initialize creates path fresh: a header page, an empty bitmap page, and
// a root that is a single empty leaf.
func (m *Manager) Initialize(path string, keyCount int) error {
	if err := m.store.CreateFile(path); err != nil {
		return fmt.Errorf("btree: initialize %q: %w", path, err)
	}
	h, err := m.store.Open(path)
	if err != nil {
		return fmt.Errorf("btree: initialize %q: %w", path, err)
	}
	alloc, err := newAllocator(m.pool, h)
	if err != nil {
		return err
	}

	rootID, err := alloc.allocate()
	if err != nil {
		return err
	}
	buf, idx, err := m.pool.GetPage(h, rootID)
	if err != nil {
		return err
	}
	writeLeafNode(buf, keyCount, nodeHeader{prev: noPage, next: noPage}, nil)
	m.pool.MarkDirty(idx)

	hbuf, hidx, err := m.pool.GetPage(h, headerPageID)
	if err != nil {
		return err
	}
	writeIndexHeader(hbuf, keyCount, rootID)
	m.pool.MarkDirty(hidx)

	m.files.Add(path, &openIndexFile{path: path, handle: h, keyCount: keyCount, rootPageID: rootID, alloc: alloc})
	return nil
}

func (m *Manager) openFile(path string) (*openIndexFile, error) {
	if of, ok := m.files.Get(path); ok {
		return of, nil
	}
	h, err := m.store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("btree: open %q: %w", path, err)
	}
	buf, _, err := m.pool.GetPage(h, headerPageID)
	if err != nil {
		return nil, err
	}
	keyCount, rootID := readIndexHeader(buf)
	alloc, err := openAllocator(m.pool, h)
	if err != nil {
		return nil, err
	}
	of := &openIndexFile{path: path, handle: h, keyCount: keyCount, rootPageID: rootID, alloc: alloc}
	m.files.Add(path, of)
	return of, nil
}

func (m *Manager) setRoot(of *openIndexFile, pageID uint32) error {
	of.rootPageID = pageID
	buf, idx, err := m.pool.GetPage(of.handle, headerPageID)
	if err != nil {
		return err
	}
	writeIndexHeader(buf, of.keyCount, pageID)
	m.pool.MarkDirty(idx)
	return nil
}

func writeIndexHeader(buf []byte, keyCount int, rootID uint32) {
	bitops.PutUint32(buf, 0, uint32(keyCount))
	bitops.PutUint32(buf, 4, rootID)
}

func readIndexHeader(buf []byte) (keyCount int, rootID uint32) {
	return int(bitops.GetUint32(buf, 0)), bitops.GetUint32(buf, 4)
}

// descend walks from the root to the leaf where key belongs, following
// "first child whose max_key >= key, else the last child". It returns the
// full root-to-leaf path (path[len-1] is the leaf).
func (m *Manager) descend(of *openIndexFile, key []int32) ([]uint32, error) {
	path := []uint32{of.rootPageID}
	pageID := of.rootPageID
	for {
		buf, _, err := m.pool.GetPage(of.handle, pageID)
		if err != nil {
			return nil, err
		}
		hdr := readNodeHeader(buf)
		if hdr.isLeaf {
			return path, nil
		}
		entries := readInternalEntries(buf, of.keyCount, hdr.count)
		child := entries[len(entries)-1].child
		for _, e := range entries {
			if compare(e.max, key) >= 0 {
				child = e.child
				break
			}
		}
		pageID = child
		path = append(path, pageID)
	}
}

// Insert adds (key, loc) to the tree, splitting nodes and propagating as
// needed.
func (m *Manager) Insert(path string, key []int32, loc Location) error {
	of, err := m.openFile(path)
	if err != nil {
		return err
	}
	route, err := m.descend(of, key)
	if err != nil {
		return err
	}
	leafID := route[len(route)-1]

	buf, idx, err := m.pool.GetPage(of.handle, leafID)
	if err != nil {
		return err
	}
	hdr := readNodeHeader(buf)
	entries := readLeafEntries(buf, of.keyCount, hdr.count)
	pos := sort.Search(len(entries), func(i int) bool { return compare(entries[i].key, key) >= 0 })
	entries = append(entries, leafEntry{})
	copy(entries[pos+1:], entries[pos:])
	entries[pos] = leafEntry{loc: loc, key: cloneKey(key)}

	if len(entries) <= maxEntries(of.keyCount) {
		writeLeafNode(buf, of.keyCount, hdr, entries)
		m.pool.MarkDirty(idx)
		return m.fixupAncestors(of, route)
	}
	return m.splitLeaf(of, route, buf, hdr, entries)
}

func (m *Manager) splitLeaf(of *openIndexFile, route []uint32, buf []byte, hdr nodeHeader, entries []leafEntry) error {
	leafID := route[len(route)-1]
	total := len(entries)
	left := (total + 1) / 2
	leftEntries, rightEntries := entries[:left], entries[left:]

	rightID, err := of.alloc.allocate()
	if err != nil {
		return err
	}

	// allocate may have paged in bitmap frames and evicted the one backing
	// buf, so it must be re-fetched before any further write through it.
	oldNext := hdr.next
	buf, idx, err := m.pool.GetPage(of.handle, leafID)
	if err != nil {
		return err
	}
	writeLeafNode(buf, of.keyCount, nodeHeader{prev: hdr.prev, next: rightID}, leftEntries)
	m.pool.MarkDirty(idx)

	rbuf, ridx, err := m.pool.GetPage(of.handle, rightID)
	if err != nil {
		return err
	}
	writeLeafNode(rbuf, of.keyCount, nodeHeader{prev: leafID, next: oldNext}, rightEntries)
	m.pool.MarkDirty(ridx)

	if oldNext != noPage {
		nbuf, nidx, err := m.pool.GetPage(of.handle, oldNext)
		if err != nil {
			return err
		}
		nhdr := readNodeHeader(nbuf)
		nhdr.prev = rightID
		writeNodeHeader(nbuf, nhdr)
		m.pool.MarkDirty(nidx)
	}

	return m.insertIntoParent(of, route, leafID, rightID, leafMax(leftEntries), leafMax(rightEntries))
}

// insertIntoParent installs the (left, leftMax) / (right, rightMax) pair
// into the parent of leftID (creating a new root if leftID was the root),
// then fixes up max_key bookkeeping the rest of the way to the root.
func (m *Manager) insertIntoParent(of *openIndexFile, route []uint32, leftID, rightID uint32, leftMax, rightMax []int32) error {
	if len(route) == 1 {
		newRootID, err := of.alloc.allocate()
		if err != nil {
			return err
		}
		buf, idx, err := m.pool.GetPage(of.handle, newRootID)
		if err != nil {
			return err
		}
		writeInternalNode(buf, of.keyCount, nodeHeader{prev: noPage, next: noPage}, []internalEntry{
			{child: leftID, max: leftMax},
			{child: rightID, max: rightMax},
		})
		m.pool.MarkDirty(idx)
		return m.setRoot(of, newRootID)
	}

	parentID := route[len(route)-2]
	buf, idx, err := m.pool.GetPage(of.handle, parentID)
	if err != nil {
		return err
	}
	hdr := readNodeHeader(buf)
	entries := readInternalEntries(buf, of.keyCount, hdr.count)

	pos := -1
	for i, e := range entries {
		if e.child == leftID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return fmt.Errorf("btree: parent page %d does not reference child %d", parentID, leftID)
	}
	entries[pos] = internalEntry{child: leftID, max: leftMax}
	entries = append(entries, internalEntry{})
	copy(entries[pos+2:], entries[pos+1:])
	entries[pos+1] = internalEntry{child: rightID, max: rightMax}

	parentRoute := route[:len(route)-1]
	if len(entries) <= maxEntries(of.keyCount) {
		writeInternalNode(buf, of.keyCount, hdr, entries)
		m.pool.MarkDirty(idx)
		return m.fixupAncestors(of, parentRoute)
	}
	return m.splitInternal(of, parentRoute, buf, hdr, entries)
}

func (m *Manager) splitInternal(of *openIndexFile, route []uint32, buf []byte, hdr nodeHeader, entries []internalEntry) error {
	nodeID := route[len(route)-1]
	total := len(entries)
	left := (total + 1) / 2
	leftEntries, rightEntries := entries[:left], entries[left:]

	rightID, err := of.alloc.allocate()
	if err != nil {
		return err
	}
	// allocate may have paged in bitmap frames and evicted the one backing
	// buf, so it must be re-fetched before any further write through it.
	buf, idx, err := m.pool.GetPage(of.handle, nodeID)
	if err != nil {
		return err
	}
	writeInternalNode(buf, of.keyCount, nodeHeader{prev: noPage, next: noPage}, leftEntries)
	m.pool.MarkDirty(idx)

	rbuf, ridx, err := m.pool.GetPage(of.handle, rightID)
	if err != nil {
		return err
	}
	writeInternalNode(rbuf, of.keyCount, nodeHeader{prev: noPage, next: noPage}, rightEntries)
	m.pool.MarkDirty(ridx)

	return m.insertIntoParent(of, route, nodeID, rightID, internalMax(leftEntries), internalMax(rightEntries))
}

// fixupAncestors recomputes each ancestor's max_key entry for the child it
// took on the way down to route's last page, stopping if a value is
// already correct.
func (m *Manager) fixupAncestors(of *openIndexFile, route []uint32) error {
	for level := len(route) - 1; level > 0; level-- {
		childID := route[level]
		childMax, err := m.nodeMaxKey(of, childID)
		if err != nil {
			return err
		}
		parentID := route[level-1]
		buf, idx, err := m.pool.GetPage(of.handle, parentID)
		if err != nil {
			return err
		}
		hdr := readNodeHeader(buf)
		entries := readInternalEntries(buf, of.keyCount, hdr.count)
		changed := false
		for i := range entries {
			if entries[i].child == childID && compare(entries[i].max, childMax) != 0 {
				entries[i].max = childMax
				changed = true
			}
		}
		if !changed {
			return nil
		}
		writeInternalNode(buf, of.keyCount, hdr, entries)
		m.pool.MarkDirty(idx)
	}
	return nil
}

func (m *Manager) nodeMaxKey(of *openIndexFile, pageID uint32) ([]int32, error) {
	buf, _, err := m.pool.GetPage(of.handle, pageID)
	if err != nil {
		return nil, err
	}
	hdr := readNodeHeader(buf)
	if hdr.count == 0 {
		return nil, fmt.Errorf("btree: empty node %d has no max key", pageID)
	}
	if hdr.isLeaf {
		return leafMax(readLeafEntries(buf, of.keyCount, hdr.count)), nil
	}
	return internalMax(readInternalEntries(buf, of.keyCount, hdr.count)), nil
}

// Search returns every entry whose key equals key.
func (m *Manager) Search(path string, key []int32) ([]Entry, error) {
	return m.RangeSearch(path, key, key)
}

// RangeSearch returns every entry with low <= key <= high, by descending
// to low's leaf and forward-scanning the leaf chain.
func (m *Manager) RangeSearch(path string, low, high []int32) ([]Entry, error) {
	of, err := m.openFile(path)
	if err != nil {
		return nil, err
	}
	route, err := m.descend(of, low)
	if err != nil {
		return nil, err
	}
	leafID := route[len(route)-1]

	var out []Entry
	for leafID != noPage {
		buf, _, err := m.pool.GetPage(of.handle, leafID)
		if err != nil {
			return nil, err
		}
		hdr := readNodeHeader(buf)
		entries := readLeafEntries(buf, of.keyCount, hdr.count)
		done := false
		for _, e := range entries {
			if compare(e.key, low) < 0 {
				continue
			}
			if compare(e.key, high) > 0 {
				done = true
				break
			}
			out = append(out, Entry{Key: e.key, Location: e.loc})
		}
		if done {
			break
		}
		leafID = hdr.next
	}
	return out, nil
}

// minEntries is the floor a non-tail leaf's (or non-root internal node's)
// entry count must not drop below after a delete, per the spec's
// ceil((M+1)/2) underflow threshold.
func minEntries(keyCount int) int {
	m := maxEntries(keyCount)
	return (m + 2) / 2
}

// Delete removes the entry for key. If exactMatch, only the entry whose
// location equals loc is removed (scanning forward across equal keys
// within the same leaf to find it). A miss, whether the key is absent or
// no equal-key entry in that leaf has loc, is a no-op (see DESIGN.md).
func (m *Manager) Delete(path string, key []int32, exactMatch bool, loc Location) error {
	of, err := m.openFile(path)
	if err != nil {
		return err
	}
	route, err := m.descend(of, key)
	if err != nil {
		return err
	}
	leafID := route[len(route)-1]

	buf, idx, err := m.pool.GetPage(of.handle, leafID)
	if err != nil {
		return err
	}
	hdr := readNodeHeader(buf)
	entries := readLeafEntries(buf, of.keyCount, hdr.count)

	pos := sort.Search(len(entries), func(i int) bool { return compare(entries[i].key, key) >= 0 })
	if pos >= len(entries) || compare(entries[pos].key, key) != 0 {
		return nil // key absent: no-op
	}
	if exactMatch && entries[pos].loc != loc {
		found := -1
		for i := pos + 1; i < len(entries) && compare(entries[i].key, key) == 0; i++ {
			if entries[i].loc == loc {
				found = i
				break
			}
		}
		if found == -1 {
			return nil // location absent among equal keys: no-op
		}
		entries[pos].loc, entries[found].loc = entries[found].loc, entries[pos].loc
	}

	entries = append(entries[:pos], entries[pos+1:]...)
	writeLeafNode(buf, of.keyCount, hdr, entries)
	m.pool.MarkDirty(idx)

	return m.rebalanceLeaf(of, route, leafID, hdr, entries)
}

func (m *Manager) rebalanceLeaf(of *openIndexFile, route []uint32, leafID uint32, hdr nodeHeader, entries []leafEntry) error {
	if len(route) == 1 {
		// Leaf is the root: always allowed to shrink, even to empty.
		return nil
	}
	if len(entries) >= minEntries(of.keyCount) || hdr.next == noPage {
		// Tail leaves (and sufficiently full ones) are left as-is, unless
		// the tail leaf is now empty, in which case it is unlinked.
		if hdr.next == noPage && len(entries) == 0 {
			return m.unlinkTailLeaf(of, route, leafID, hdr)
		}
		return m.fixupAncestors(of, route)
	}

	rightID := hdr.next
	rbuf, ridx, err := m.pool.GetPage(of.handle, rightID)
	if err != nil {
		return err
	}
	rhdr := readNodeHeader(rbuf)
	rightEntries := readLeafEntries(rbuf, of.keyCount, rhdr.count)

	if len(entries)+len(rightEntries) <= maxEntries(of.keyCount) {
		merged := append(append([]leafEntry{}, entries...), rightEntries...)
		nbuf, nidx, err := m.pool.GetPage(of.handle, leafID)
		if err != nil {
			return err
		}
		writeLeafNode(nbuf, of.keyCount, nodeHeader{prev: hdr.prev, next: rhdr.next}, merged)
		m.pool.MarkDirty(nidx)

		if rhdr.next != noPage {
			nnbuf, nnidx, err := m.pool.GetPage(of.handle, rhdr.next)
			if err != nil {
				return err
			}
			nnhdr := readNodeHeader(nnbuf)
			nnhdr.prev = leafID
			writeNodeHeader(nnbuf, nnhdr)
			m.pool.MarkDirty(nnidx)
		}
		if err := of.alloc.release(rightID); err != nil {
			return err
		}
		if err := m.removeChildFromParent(of, route, rightID); err != nil {
			return err
		}
		return m.fixupAncestors(of, route)
	}

	// Redistribute: move one entry from the right sibling's front to
	// this leaf's tail.
	moved := rightEntries[0]
	rightEntries = rightEntries[1:]
	entries = append(entries, moved)

	nbuf, nidx, err := m.pool.GetPage(of.handle, leafID)
	if err != nil {
		return err
	}
	writeLeafNode(nbuf, of.keyCount, hdr, entries)
	m.pool.MarkDirty(nidx)
	writeLeafNode(rbuf, of.keyCount, rhdr, rightEntries)
	m.pool.MarkDirty(ridx)

	return m.fixupAncestors(of, route)
}

// unlinkTailLeaf removes an emptied tail leaf from its sibling chain and
// its parent's entry list, propagating underflow upward.
func (m *Manager) unlinkTailLeaf(of *openIndexFile, route []uint32, leafID uint32, hdr nodeHeader) error {
	if hdr.prev != noPage {
		pbuf, pidx, err := m.pool.GetPage(of.handle, hdr.prev)
		if err != nil {
			return err
		}
		phdr := readNodeHeader(pbuf)
		phdr.next = noPage
		writeNodeHeader(pbuf, phdr)
		m.pool.MarkDirty(pidx)
	}
	if err := of.alloc.release(leafID); err != nil {
		return err
	}
	return m.removeChildFromParent(of, route, leafID)
}

// removeChildFromParent deletes childID's entry from its parent (the
// second-to-last page in route) and recurses the same underflow handling
// one level up, down to a possible root collapse.
func (m *Manager) removeChildFromParent(of *openIndexFile, route []uint32, childID uint32) error {
	if len(route) == 1 {
		return nil
	}
	parentRoute := route[:len(route)-1]
	parentID := parentRoute[len(parentRoute)-1]

	buf, idx, err := m.pool.GetPage(of.handle, parentID)
	if err != nil {
		return err
	}
	hdr := readNodeHeader(buf)
	entries := readInternalEntries(buf, of.keyCount, hdr.count)
	pos := -1
	for i, e := range entries {
		if e.child == childID {
			pos = i
			break
		}
	}
	if pos == -1 {
		return fmt.Errorf("btree: parent page %d does not reference child %d", parentID, childID)
	}
	entries = append(entries[:pos], entries[pos+1:]...)
	writeInternalNode(buf, of.keyCount, hdr, entries)
	m.pool.MarkDirty(idx)

	if len(parentRoute) == 1 && len(entries) == 1 {
		// Root collapse: promote the sole remaining child.
		if err := of.alloc.release(parentID); err != nil {
			return err
		}
		return m.setRoot(of, entries[0].child)
	}

	return m.rebalanceInternal(of, parentRoute, parentID, hdr, entries)
}

func (m *Manager) rebalanceInternal(of *openIndexFile, route []uint32, nodeID uint32, hdr nodeHeader, entries []internalEntry) error {
	if len(route) == 1 || len(entries) >= minEntries(of.keyCount) {
		return m.fixupAncestors(of, route)
	}

	parentID := route[len(route)-2]
	pbuf, _, err := m.pool.GetPage(of.handle, parentID)
	if err != nil {
		return err
	}
	phdr := readNodeHeader(pbuf)
	pentries := readInternalEntries(pbuf, of.keyCount, phdr.count)

	pos := -1
	for i, e := range pentries {
		if e.child == nodeID {
			pos = i
			break
		}
	}
	if pos == -1 || pos+1 >= len(pentries) {
		// No right sibling at this level under the same parent; leave
		// the node under-full rather than reaching across subtrees.
		return m.fixupAncestors(of, route)
	}

	rightID := pentries[pos+1].child
	rbuf, ridx, err := m.pool.GetPage(of.handle, rightID)
	if err != nil {
		return err
	}
	rhdr := readNodeHeader(rbuf)
	rightEntries := readInternalEntries(rbuf, of.keyCount, rhdr.count)

	buf, idx, err := m.pool.GetPage(of.handle, nodeID)
	if err != nil {
		return err
	}

	if len(entries)+len(rightEntries) <= maxEntries(of.keyCount) {
		merged := append(append([]internalEntry{}, entries...), rightEntries...)
		writeInternalNode(buf, of.keyCount, hdr, merged)
		m.pool.MarkDirty(idx)
		if err := of.alloc.release(rightID); err != nil {
			return err
		}
		return m.removeChildFromParent(of, route, rightID)
	}

	moved := rightEntries[0]
	rightEntries = rightEntries[1:]
	entries = append(entries, moved)
	writeInternalNode(buf, of.keyCount, hdr, entries)
	m.pool.MarkDirty(idx)
	writeInternalNode(rbuf, of.keyCount, rhdr, rightEntries)
	m.pool.MarkDirty(ridx)

	return m.fixupAncestors(of, route)
}

// DeleteFile removes path entirely.
func (m *Manager) DeleteFile(path string) error {
	m.files.Remove(path)
	return m.store.DeleteFile(path)
}

// Close flushes every cached index file.
func (m *Manager) Close() error {
	m.files.Purge()
	return m.pool.Flush()
}
