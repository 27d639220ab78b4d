package dyma

import "unsafe"

// Every block begins with an 8-byte header at its address. A free block
// additionally carries an 8-byte footer, byte-identical to the header, at
// address+size-rowSize. The interior between header and footer holds either
// the user payload (allocated block) or free/quick-list link pointers.

func headerAt(addr unsafe.Pointer) uint64 {
	return *(*uint64)(addr)
}

func setHeaderAt(addr unsafe.Pointer, h uint64) {
	*(*uint64)(addr) = h
}

func footerAddr(addr unsafe.Pointer, size uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr) + uintptr(size) - rowSize)
}

// nextBlockAddr returns the address immediately following a block of the
// given size, i.e. its successor's header address.
func nextBlockAddr(addr unsafe.Pointer, size uint64) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr) + uintptr(size))
}

// payloadAddr returns the address a caller-visible pointer refers to for a
// block at addr; it is also where a free block's link pointers live.
func payloadAddr(addr unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(addr) + rowSize)
}

// blockAddrFromPayload reverses payloadAddr.
func blockAddrFromPayload(p unsafe.Pointer) unsafe.Pointer {
	return unsafe.Pointer(uintptr(p) - rowSize)
}

// roundUp rounds n up to the next multiple of m, m a power of two.
func roundUp(n, m uintptr) uintptr {
	return (n + m - 1) &^ (m - 1)
}

// calcBlockSize computes the block size needed to service a payload request
// of r bytes: enough for the header plus r bytes, at least minBlockSize,
// and a multiple of rowSize.
func calcBlockSize(r uintptr) uint64 {
	need := r + rowSize
	if need <= minBlockSize {
		return minBlockSize
	}
	return uint64(roundUp(need, rowSize))
}

// freeListIndex selects a segregated free-list class for a block of the
// given size. This is a direct port of the reference allocator's iterative
// search (dyma_utils.c: calc_min_free_list_index) rather than a closed-form
// log2 expression, which disagrees with it at class boundaries such as
// size == 2*minBlockSize; the reference implementation is authoritative
// where the two differ.
func freeListIndex(size uint64) int {
	if size <= minBlockSize {
		return 0
	}
	q := (size - 1) / minBlockSize
	for i := 1; i < numFreeLists; i++ {
		if q <= 1 {
			return i
		}
		q >>= 1
	}
	return numFreeLists - 1
}

// quickListIndex selects the quick-list stack holding blocks of exactly the
// given size, or -1 if no quick list holds that size.
func quickListIndex(size uint64) int {
	if size < minBlockSize {
		return -1
	}
	idx := (size - minBlockSize) / rowSize
	if idx >= numQuickLists {
		return -1
	}
	return int(idx)
}

// createBlock initializes a fresh header (with no flags set) and a matching
// footer at addr, for a block of the given size. It does not touch any
// neighboring block.
func createBlock(addr unsafe.Pointer, size uint64) {
	setHeaderAt(addr, size)
	setHeaderAt(footerAddr(addr, size), size)
}

// splitBlock splits a block of size GET_SIZE(addr) into a leading piece of
// exactly size bytes and a trailing remainder, provided the remainder would
// be at least minBlockSize. It returns the remainder's address and true, or
// (nil, false) if the block was left unsplit. The leading piece's flags
// (other than size) are preserved; the remainder is marked with its
// previous-allocated bit set, since splitBlock is only ever used to carve a
// piece destined to be marked allocated.
func splitBlock(addr unsafe.Pointer, size uint64) (unsafe.Pointer, bool) {
	h := headerAt(addr)
	total := sizeOf(h)
	if total-size < minBlockSize {
		return nil, false
	}
	remSize := total - size
	setHeaderAt(addr, size|(h&flagMask))
	remAddr := nextBlockAddr(addr, size)
	createBlock(remAddr, remSize)
	setHeaderAt(remAddr, headerAt(remAddr)|flagPrevAllocated)
	return remAddr, true
}

// markAllocated sets a block's allocated bit and fixes up its successor's
// previous-allocated bit. If the successor is itself a free block (not
// allocated and not zero-size, i.e. not the epilogue), its footer is
// refreshed to mirror the new header.
func markAllocated(addr unsafe.Pointer) {
	h := headerAt(addr)
	setHeaderAt(addr, h|flagThisAllocated)
	size := sizeOf(h)
	next := nextBlockAddr(addr, size)
	nh := headerAt(next) | flagPrevAllocated
	setHeaderAt(next, nh)
	if !isAllocated(nh) && sizeOf(nh) != 0 {
		setHeaderAt(footerAddr(next, sizeOf(nh)), nh)
	}
}

// markFree clears a block's allocated bit, writes its footer, and clears
// its successor's previous-allocated bit. The successor must not itself be
// free at this point; the caller is responsible for coalescing first.
func markFree(addr unsafe.Pointer) {
	h := headerAt(addr) &^ flagThisAllocated
	setHeaderAt(addr, h)
	size := sizeOf(h)
	setHeaderAt(footerAddr(addr, size), h)
	next := nextBlockAddr(addr, size)
	setHeaderAt(next, headerAt(next)&^flagPrevAllocated)
}
