package dyma

import (
	"fmt"
	"os"
	"unsafe"
)

// Heap is an instantiable segregated free-list allocator. The zero value
// is not usable; construct one with NewHeap. A Heap must not be shared
// across goroutines without external synchronization.
type Heap struct {
	pages       PageSource
	initialized bool

	heapStart unsafe.Pointer
	heapEnd   unsafe.Pointer

	free  freeLists
	quick quickLists

	lastErr ErrNo
	trace   bool
}

// Option configures a Heap at construction time.
type Option func(*Heap)

// WithPageSource sets the PageSource a Heap grows into. The default is a
// simulated source backed by a preallocated Go byte slice capped at 1024
// pages (4 MiB), matching the reference allocator's own test harness.
func WithPageSource(ps PageSource) Option {
	return func(h *Heap) { h.pages = ps }
}

// WithMaxPages caps the default simulated PageSource at n pages. It has no
// effect if WithPageSource is also given.
func WithMaxPages(n int) Option {
	return func(h *Heap) {
		if _, ok := h.pages.(*simulatedPageSource); h.pages == nil || ok {
			h.pages = newSimulatedPageSource(n)
		}
	}
}

// WithTrace enables debug tracing of every public operation to stderr.
func WithTrace(on bool) Option {
	return func(h *Heap) { h.trace = on }
}

const defaultMaxPages = 1024

// NewHeap constructs a Heap ready for use. The underlying page source is
// not touched until the first allocation.
func NewHeap(opts ...Option) (*Heap, error) {
	h := &Heap{}
	for _, opt := range opts {
		opt(h)
	}
	if h.pages == nil {
		h.pages = newSimulatedPageSource(defaultMaxPages)
	}
	return h, nil
}

// ErrNo is the allocator's last-error indicator, in the style of C's
// errno: the four public operations signal out-of-memory and
// invalid-argument conditions by setting this rather than returning a Go
// error, since their return types are payload pointers.
type ErrNo int

const (
	// ErrNone indicates the previous operation completed without error.
	ErrNone ErrNo = iota
	// ErrOutOfMemory indicates the page source was exhausted while
	// attempting to satisfy an allocation.
	ErrOutOfMemory
	// ErrInvalidArgument indicates a caller-supplied pointer or alignment
	// failed validation.
	ErrInvalidArgument
)

func (e ErrNo) String() string {
	switch e {
	case ErrNone:
		return "no error"
	case ErrOutOfMemory:
		return "out of memory"
	case ErrInvalidArgument:
		return "invalid argument"
	default:
		return fmt.Sprintf("ErrNo(%d)", int(e))
	}
}

// LastError returns the error set by the most recently called public
// operation, or ErrNone.
func (h *Heap) LastError() ErrNo { return h.lastErr }

func (h *Heap) setErr(e ErrNo) { h.lastErr = e }

func (h *Heap) tracef(format string, args ...any) {
	if h.trace {
		fmt.Fprintf(os.Stderr, "dyma: "+format+"\n", args...)
	}
}

// InvalidPointerError is the panic value raised by Free when handed a
// pointer that does not survive pointer validation. It is not recoverable
// by further allocator calls: a corrupt or foreign pointer passed to Free
// is a caller bug, not a transient condition.
type InvalidPointerError struct {
	Ptr unsafe.Pointer
}

func (e *InvalidPointerError) Error() string {
	return fmt.Sprintf("dyma: invalid pointer passed to Free: %p", e.Ptr)
}

// ensureInit performs first-use heap initialization: acquires one page,
// writes the prologue and epilogue sentinels, and seeds the free lists
// with the one free block spanning the space between them.
func (h *Heap) ensureInit() bool {
	if h.initialized {
		return true
	}
	pageStart := h.pages.Grow()
	if pageStart == nil {
		h.setErr(ErrOutOfMemory)
		return false
	}
	pageEnd := unsafe.Pointer(uintptr(pageStart) + pageSize)

	h.free.init()

	setHeaderAt(pageStart, minBlockSize|flagThisAllocated)
	epilogueAddr := unsafe.Pointer(uintptr(pageEnd) - rowSize)
	// The epilogue's previous-allocated bit describes the free block
	// created below, so it starts clear and is fixed up by markAllocated
	// once that block (or a piece of it) is actually allocated.
	setHeaderAt(epilogueAddr, flagThisAllocated)

	freeAddr := nextBlockAddr(pageStart, minBlockSize)
	freeSize := uint64(uintptr(epilogueAddr) - uintptr(freeAddr))
	createBlock(freeAddr, freeSize)
	setHeaderAt(freeAddr, headerAt(freeAddr)|flagPrevAllocated)
	h.free.insert(freeAddr)

	h.heapStart = pageStart
	h.heapEnd = pageEnd
	h.initialized = true
	return true
}

// grow extends the heap by whole pages, coalescing the new space with any
// free tail block, until the accumulated free region is at least
// needed bytes or the page source is exhausted. It returns the resulting
// free block's address (already spliced out of no list — the caller must
// split/mark/insert as appropriate) or nil on out-of-memory.
func (h *Heap) grow(needed uint64) unsafe.Pointer {
	var accumulated unsafe.Pointer

	for {
		oldEpilogue := unsafe.Pointer(uintptr(h.heapEnd) - rowSize)
		oldEpilogueHeader := headerAt(oldEpilogue)
		tailPrevAllocated := oldEpilogueHeader&flagPrevAllocated != 0

		pageStart := h.pages.Grow()
		if pageStart == nil {
			if accumulated != nil {
				size := sizeOf(headerAt(accumulated))
				setHeaderAt(footerAddr(accumulated, size), headerAt(accumulated))
				h.free.insert(accumulated)
			}
			h.setErr(ErrOutOfMemory)
			return nil
		}
		newHeapEnd := unsafe.Pointer(uintptr(pageStart) + pageSize)
		newEpilogueAddr := unsafe.Pointer(uintptr(newHeapEnd) - rowSize)
		// The block preceding the new epilogue is always free at this
		// point (it is the newly grown region, merged or not); its
		// previous-allocated bit is fixed up later by markAllocated once
		// the eventual split settles which block actually ends up there.
		setHeaderAt(newEpilogueAddr, flagThisAllocated)

		newRegionSize := uint64(uintptr(newEpilogueAddr) - uintptr(oldEpilogue))
		createBlock(oldEpilogue, newRegionSize)
		if tailPrevAllocated {
			setHeaderAt(oldEpilogue, headerAt(oldEpilogue)|flagPrevAllocated)
		}
		h.heapEnd = newHeapEnd

		var merged unsafe.Pointer
		if !tailPrevAllocated {
			merged = coalesceWithPrev(oldEpilogue)
		} else {
			merged = oldEpilogue
		}
		accumulated = merged

		if sizeOf(headerAt(accumulated)) >= needed {
			return accumulated
		}
	}
}
