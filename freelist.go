package dyma

import "unsafe"

// node is the shape of a doubly-linked list participant: either a real free
// block's link pointers (living at payloadAddr(blockAddr)) or one of the
// fixed sentinel nodes that anchor a segregated free-list class. Pointers
// stored in next/prev are always addresses of other nodes, never block
// addresses, so the two kinds of participant can be spliced generically;
// translating a non-sentinel node address back to its block's header
// address is payloadAddr's inverse, blockAddrFromPayload.
type node struct {
	next unsafe.Pointer
	prev unsafe.Pointer
}

func asNode(p unsafe.Pointer) *node { return (*node)(p) }

func blockLinks(addr unsafe.Pointer) *node { return asNode(payloadAddr(addr)) }

// freeLists holds the ten segregated size-class sentinels. The zero value is
// not ready for use; init must be called once per Heap.
type freeLists [numFreeLists]node

func (fl *freeLists) init() {
	for i := range fl {
		s := &fl[i]
		s.next = unsafe.Pointer(s)
		s.prev = unsafe.Pointer(s)
	}
}

// insert links the free block at addr at the head of its size class.
func (fl *freeLists) insert(addr unsafe.Pointer) {
	size := sizeOf(headerAt(addr))
	sentinel := &fl[freeListIndex(size)]
	ln := blockLinks(addr)
	head := sentinel.next
	ln.next = head
	ln.prev = unsafe.Pointer(sentinel)
	asNode(head).prev = unsafe.Pointer(ln)
	sentinel.next = unsafe.Pointer(ln)
}

// spliceOutIfLinked removes the node at addr from whatever free list
// currently holds it, if it is actually linked into one. A block is only
// ever unlinked (both fields nil) if it has never been inserted into a
// free list — freshly carved heap memory is zero-filled by every
// PageSource, and a block that was inserted and later spliced out has its
// links explicitly cleared to nil — so this is a reliable membership test,
// not a heuristic.
func spliceOutIfLinked(addr unsafe.Pointer) {
	ln := blockLinks(addr)
	if ln.next == nil || ln.prev == nil {
		return
	}
	prev := asNode(ln.prev)
	next := asNode(ln.next)
	prev.next = unsafe.Pointer(next)
	next.prev = unsafe.Pointer(prev)
	ln.next = nil
	ln.prev = nil
}

// spliceOut removes the node at addr from whatever free list currently
// holds it. Callers that know addr is linked (e.g. freeLists.search, which
// just found it by walking a list) use this directly.
func spliceOut(addr unsafe.Pointer) {
	ln := blockLinks(addr)
	prev := asNode(ln.prev)
	next := asNode(ln.next)
	prev.next = unsafe.Pointer(next)
	next.prev = unsafe.Pointer(prev)
	ln.next = nil
	ln.prev = nil
}

// search walks the free lists from the smallest class able to hold size
// upward, first-fit within a class, and splices out and returns the first
// match. The caller is responsible for splitting, marking allocated, and
// inserting any remainder.
func (fl *freeLists) search(size uint64) (unsafe.Pointer, bool) {
	for i := freeListIndex(size); i < numFreeLists; i++ {
		sentinel := &fl[i]
		for cur := sentinel.next; cur != unsafe.Pointer(sentinel); {
			addr := blockAddrFromPayload(cur)
			if sizeOf(headerAt(addr)) >= size {
				spliceOut(addr)
				return addr, true
			}
			cur = asNode(cur).next
		}
	}
	return nil, false
}

// count returns the number of blocks currently in free-list class i, for
// diagnostics and tests.
func (fl *freeLists) count(i int) int {
	sentinel := &fl[i]
	n := 0
	for cur := sentinel.next; cur != unsafe.Pointer(sentinel); cur = asNode(cur).next {
		n++
	}
	return n
}

// coalesceWithPrev merges the block at addr with its immediate predecessor,
// discovered via the boundary-tag footer just before addr. The caller only
// calls this when the previous-allocated bit is clear, i.e. the
// predecessor is free — but a free predecessor accumulated mid-grow (see
// Heap.grow) is not yet a free-list member, so the predecessor is spliced
// out only if it is actually linked into one. It returns the merged
// block's address; the merged block carries the predecessor's
// previous-allocated bit and is otherwise unlinked from any list.
func coalesceWithPrev(addr unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(headerAt(addr))
	prevFooter := headerAt(unsafe.Pointer(uintptr(addr) - rowSize))
	prevSize := sizeOf(prevFooter)
	prevAddr := unsafe.Pointer(uintptr(addr) - uintptr(prevSize))
	prevHeader := headerAt(prevAddr)
	prevAllocFlag := prevHeader & flagPrevAllocated

	spliceOutIfLinked(prevAddr)

	createBlock(prevAddr, size+prevSize)
	if prevAllocFlag != 0 {
		setHeaderAt(prevAddr, headerAt(prevAddr)|flagPrevAllocated)
	}
	return prevAddr
}

// coalesceWithNext merges the block at addr with its immediate successor,
// splicing it out of its free list if it is actually linked into one (see
// coalesceWithPrev). It returns the merged block's address, carrying
// addr's previous-allocated bit.
func coalesceWithNext(addr unsafe.Pointer) unsafe.Pointer {
	size := sizeOf(headerAt(addr))
	next := nextBlockAddr(addr, size)
	nextSize := sizeOf(headerAt(next))
	prevAllocFlag := headerAt(addr) & flagPrevAllocated

	spliceOutIfLinked(next)

	createBlock(addr, size+nextSize)
	if prevAllocFlag != 0 {
		setHeaderAt(addr, headerAt(addr)|flagPrevAllocated)
	}
	return addr
}
