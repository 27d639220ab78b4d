package dyma

import "unsafe"

// checkPointer validates a caller-supplied payload pointer against every
// invariant a live, allocated block must satisfy. Free and Reallocate run
// every caller pointer through it before touching that pointer's metadata;
// Memalign takes no caller pointer and frees its own lead piece without it.
func (h *Heap) checkPointer(ptr unsafe.Pointer) bool {
	if ptr == nil {
		return false
	}
	if uintptr(ptr)%rowSize != 0 {
		return false
	}

	addr := blockAddrFromPayload(ptr)
	if uintptr(addr) < uintptr(h.heapStart) || uintptr(addr) >= uintptr(h.heapEnd) {
		return false
	}

	header := headerAt(addr)
	size := sizeOf(header)
	if size < minBlockSize || size%rowSize != 0 {
		return false
	}
	if uintptr(addr)+uintptr(size) > uintptr(h.heapEnd) {
		return false
	}
	if !isAllocated(header) || isQuickListed(header) {
		return false
	}

	if !isPrevAllocated(header) {
		prevFooter := headerAt(unsafe.Pointer(uintptr(addr) - rowSize))
		if isAllocated(prevFooter) {
			return false
		}
	}

	return true
}
