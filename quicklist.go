package dyma

import "unsafe"

// quickList is one LIFO stack of exact-size free blocks. Unlike the
// segregated free lists, a quick list is singly-linked (only next is
// needed, since nothing is ever spliced out of the middle) and tracks its
// own depth so atCapacity can report when it must be flushed.
type quickList struct {
	length int
	first  unsafe.Pointer
}

// quickLists holds the twenty exact-size stacks, indexed by quickListIndex.
type quickLists [numQuickLists]quickList

// atCapacity reports whether quick list idx is full and must be flushed
// before another push.
func (ql *quickLists) atCapacity(idx int) bool {
	return ql[idx].length >= quickListCap
}

// push adds addr, a released block that keeps its allocated bit and is not
// coalesced, to the head of quick list idx, setting the in-quick-list bit
// on its header and footer. The caller must flush the list first if atCapacity reports
// true; push itself never flushes.
func (ql *quickLists) push(addr unsafe.Pointer, idx int) {
	q := &ql[idx]
	ln := blockLinks(addr)
	ln.next = q.first
	q.first = addr

	h := headerAt(addr) | flagInQuickList
	setHeaderAt(addr, h)
	setHeaderAt(footerAddr(addr, sizeOf(h)), h)

	q.length++
}

// pop removes and returns the most recently pushed block from the quick
// list for size, or (nil, false) if that list is empty.
func (ql *quickLists) pop(size uint64) (unsafe.Pointer, bool) {
	idx := quickListIndex(size)
	if idx < 0 {
		return nil, false
	}
	q := &ql[idx]
	if q.first == nil {
		return nil, false
	}
	addr := q.first
	q.first = blockLinks(addr).next
	q.length--

	h := headerAt(addr) &^ flagInQuickList
	setHeaderAt(addr, h)
	setHeaderAt(footerAddr(addr, sizeOf(h)), h)
	return addr, true
}

// drain removes every block from quick list idx, clearing each one's
// in-quick-list bit, and returns their addresses in pop order (most
// recently pushed first). It is the caller's responsibility to coalesce
// and re-home each one in the segregated free lists.
func (ql *quickLists) drain(idx int) []unsafe.Pointer {
	q := &ql[idx]
	blocks := make([]unsafe.Pointer, 0, q.length)
	for cur := q.first; cur != nil; {
		next := blockLinks(cur).next
		h := headerAt(cur) &^ flagInQuickList
		setHeaderAt(cur, h)
		setHeaderAt(footerAddr(cur, sizeOf(h)), h)
		blocks = append(blocks, cur)
		cur = next
	}
	q.first = nil
	q.length = 0
	return blocks
}

// count returns the current depth of quick list i, for diagnostics and
// tests.
func (ql *quickLists) count(i int) int {
	return ql[i].length
}
