package dyma

import (
	"unsafe"

	"github.com/cznic/mathutil"
)

// Allocate returns a pointer to a newly allocated, uninitialized region of
// at least size bytes, or nil on failure. Allocate(0) returns nil without
// setting an error. On out-of-memory, LastError reports ErrOutOfMemory.
func (h *Heap) Allocate(size uintptr) unsafe.Pointer {
	h.setErr(ErrNone)
	h.tracef("Allocate(%d)", size)
	if size == 0 {
		return nil
	}
	if !h.ensureInit() {
		h.tracef("Allocate(%d): out of memory", size)
		return nil
	}

	blockSize := calcBlockSize(size)

	if addr, ok := h.quick.pop(blockSize); ok {
		markAllocated(addr)
		h.tracef("Allocate(%d): quick-list hit at %p", size, addr)
		return payloadAddr(addr)
	}

	if addr, ok := h.free.search(blockSize); ok {
		if rem, split := splitBlock(addr, blockSize); split {
			h.free.insert(rem)
		}
		markAllocated(addr)
		h.tracef("Allocate(%d): free-list hit at %p", size, addr)
		return payloadAddr(addr)
	}

	addr := h.grow(blockSize)
	if addr == nil {
		h.tracef("Allocate(%d): out of memory after grow", size)
		return nil
	}
	if rem, split := splitBlock(addr, blockSize); split {
		h.free.insert(rem)
	}
	markAllocated(addr)
	h.tracef("Allocate(%d): grew heap, block at %p", size, addr)
	return payloadAddr(addr)
}

// Free releases the block backing ptr, a pointer previously returned by
// Allocate, Reallocate, or Memalign on this Heap and not already freed. A
// ptr that fails pointer validation — including nil — is a caller bug, not
// a recoverable condition, and Free panics with *InvalidPointerError
// rather than returning.
func (h *Heap) Free(ptr unsafe.Pointer) {
	h.setErr(ErrNone)
	h.tracef("Free(%p)", ptr)
	if !h.checkPointer(ptr) {
		panic(&InvalidPointerError{Ptr: ptr})
	}
	h.freeBlock(blockAddrFromPayload(ptr))
}

// freeBlock runs the shared release path: a block with a quick-list class
// is pushed onto that quick list, after flushing the list first if it is
// already at capacity; a block with no quick-list class takes the
// coalesce-and-insert free-list path.
func (h *Heap) freeBlock(addr unsafe.Pointer) {
	size := sizeOf(headerAt(addr))
	idx := quickListIndex(size)
	if idx >= 0 {
		if h.quick.atCapacity(idx) {
			h.flushQuickList(idx)
		}
		h.quick.push(addr, idx)
		return
	}
	h.freeToFreeList(addr)
}

// freeToFreeList performs the coalesce-with-prev, coalesce-with-next,
// mark-free, insert sequence used both directly by Free (for blocks with
// no quick-list class) and by flushQuickList.
func (h *Heap) freeToFreeList(addr unsafe.Pointer) {
	if !isPrevAllocated(headerAt(addr)) {
		addr = coalesceWithPrev(addr)
	}
	size := sizeOf(headerAt(addr))
	next := nextBlockAddr(addr, size)
	if !isAllocated(headerAt(next)) {
		addr = coalesceWithNext(addr)
	}
	markFree(addr)
	h.free.insert(addr)
}

// flushQuickList drains quick list i and sends every block it held through
// the free-list path, one at a time in drain order. A drained block keeps
// its allocated bit until its own turn, so it does not merge with siblings
// still waiting; but once freed it is an ordinary free-list block, and an
// adjacent sibling processed after it coalesces with it. Blocks may also
// coalesce with unrelated free-list neighbors.
func (h *Heap) flushQuickList(i int) {
	for _, addr := range h.quick.drain(i) {
		h.freeToFreeList(addr)
	}
}

// Reallocate resizes the block backing ptr to hold at least size bytes,
// preserving its contents up to the smaller of the old and new sizes, and
// returns the (possibly moved) payload pointer. Reallocate(ptr, 0) is
// equivalent to Free(ptr) followed by returning nil. An invalid ptr,
// including nil, returns nil with LastError set to ErrInvalidArgument and
// leaves any existing block untouched.
func (h *Heap) Reallocate(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	h.setErr(ErrNone)
	h.tracef("Reallocate(%p, %d)", ptr, size)
	if !h.checkPointer(ptr) {
		h.setErr(ErrInvalidArgument)
		return nil
	}
	if size == 0 {
		h.Free(ptr)
		return nil
	}

	addr := blockAddrFromPayload(ptr)
	oldSize := sizeOf(headerAt(addr))
	newBlockSize := calcBlockSize(size)

	switch {
	case newBlockSize > oldSize:
		newPtr := h.Allocate(size)
		if newPtr == nil {
			return nil
		}
		copySize := oldSize - rowSize
		copy(unsafe.Slice((*byte)(newPtr), copySize), unsafe.Slice((*byte)(ptr), copySize))
		h.Free(ptr)
		return newPtr

	case newBlockSize < oldSize:
		if rem, split := splitBlock(addr, newBlockSize); split {
			h.freeToFreeList(rem)
		}
		return ptr

	default:
		return ptr
	}
}

// Memalign returns a pointer to a newly allocated region of at least size
// bytes whose address is a multiple of align, or nil on failure. align
// must be a power of two no smaller than 8.
func (h *Heap) Memalign(size, align uintptr) unsafe.Pointer {
	h.setErr(ErrNone)
	h.tracef("Memalign(%d, %d)", size, align)
	if align < rowSize || align&(align-1) != 0 {
		h.setErr(ErrInvalidArgument)
		return nil
	}
	if size == 0 {
		return nil
	}

	raw := h.Allocate(size + align + minBlockSize + rowSize)
	if raw == nil {
		return nil
	}
	addr := blockAddrFromPayload(raw)

	if uintptr(raw)%align == 0 {
		h.shrinkTail(addr, calcBlockSize(size))
		return raw
	}

	blockAddr := addr
	target := roundUp(uintptr(blockAddr)+minBlockSize+rowSize, align)
	alignedBlockAddr := unsafe.Pointer(target - rowSize)

	leadSize := uint64(uintptr(alignedBlockAddr) - uintptr(blockAddr))
	h0 := headerAt(blockAddr)
	setHeaderAt(blockAddr, leadSize|(h0&flagMask))
	createBlock(alignedBlockAddr, sizeOf(h0)-leadSize)
	setHeaderAt(alignedBlockAddr, headerAt(alignedBlockAddr)|flagPrevAllocated)
	markAllocated(alignedBlockAddr)

	h.freeToFreeList(blockAddr)

	h.shrinkTail(alignedBlockAddr, calcBlockSize(size))
	return payloadAddr(alignedBlockAddr)
}

// shrinkTail splits off and frees the portion of the allocated block at
// addr beyond wanted bytes, if the remainder would be large enough to
// stand on its own.
func (h *Heap) shrinkTail(addr unsafe.Pointer, wanted uint64) {
	if rem, split := splitBlock(addr, wanted); split {
		h.freeToFreeList(rem)
	}
}

// Stats summarizes a Heap's current occupancy for diagnostics and tests.
type Stats struct {
	HeapBytes      int
	FreeListCounts [numFreeLists]int
	QuickListDepth [numQuickLists]int

	// FreeListClassBits holds, for each non-empty free-list class, the bit
	// length of that class's minimum block size (0 for an empty class),
	// from ClassBits.
	FreeListClassBits [numFreeLists]int
}

// Stats reports the current size of the managed heap and the occupancy of
// every free list and quick list.
func (h *Heap) Stats() Stats {
	var s Stats
	if h.initialized {
		s.HeapBytes = int(uintptr(h.heapEnd) - uintptr(h.heapStart))
	}
	for i := 0; i < numFreeLists; i++ {
		s.FreeListCounts[i] = h.free.count(i)
		if s.FreeListCounts[i] > 0 {
			s.FreeListClassBits[i] = ClassBits(int(classMinSize(i)))
		}
	}
	for i := 0; i < numQuickLists; i++ {
		s.QuickListDepth[i] = h.quick.count(i)
	}
	return s
}

// classMinSize returns the smallest block size that falls into free-list
// class i: one row above the power-of-two boundary (minBlockSize << (i-1))
// that freeListIndex uses to close class i-1.
func classMinSize(i int) uint64 {
	if i == 0 {
		return minBlockSize
	}
	return minBlockSize<<uint(i-1) + rowSize
}

// ClassBits returns the bit length of size, as used to describe which
// power-of-two neighborhood a free-list class occupies in diagnostic
// output.
func ClassBits(size int) int {
	return mathutil.BitLen(size)
}

// defaultHeap backs the package-level convenience functions below, in the
// style of a process-global allocator. It is initialized lazily so that
// programs which only ever construct their own *Heap never pay for it.
var defaultHeap *Heap

func heap() *Heap {
	if defaultHeap == nil {
		defaultHeap, _ = NewHeap()
	}
	return defaultHeap
}

// Allocate calls Allocate on the package's default Heap.
func Allocate(size uintptr) unsafe.Pointer { return heap().Allocate(size) }

// Free calls Free on the package's default Heap.
func Free(ptr unsafe.Pointer) { heap().Free(ptr) }

// Reallocate calls Reallocate on the package's default Heap.
func Reallocate(ptr unsafe.Pointer, size uintptr) unsafe.Pointer {
	return heap().Reallocate(ptr, size)
}

// Memalign calls Memalign on the package's default Heap.
func Memalign(size, align uintptr) unsafe.Pointer { return heap().Memalign(size, align) }

// LastError returns the package's default Heap's LastError.
func LastError() ErrNo { return heap().LastError() }
