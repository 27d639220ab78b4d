package dyma

import (
	"testing"
	"unsafe"
)

func TestCheckPointerNil(t *testing.T) {
	h := newTestHeap(t)
	if h.checkPointer(nil) {
		t.Error("checkPointer(nil) should fail")
	}
}

func TestCheckPointerMisaligned(t *testing.T) {
	h := newTestHeap(t)
	p := h.Allocate(64)
	misaligned := unsafe.Pointer(uintptr(p) + 1)
	if h.checkPointer(misaligned) {
		t.Error("checkPointer should reject a non-8-aligned pointer")
	}
}

func TestCheckPointerUndersizedBlock(t *testing.T) {
	h := newTestHeap(t)
	p := h.Allocate(64)
	addr := blockAddrFromPayload(p)
	orig := headerAt(addr)
	setHeaderAt(addr, 16|(orig&flagMask))
	if h.checkPointer(p) {
		t.Error("checkPointer should reject a block smaller than minBlockSize")
	}
	setHeaderAt(addr, orig)
}

func TestCheckPointerOutsideHeap(t *testing.T) {
	h := newTestHeap(t)
	_ = h.Allocate(64)
	var foreign int64
	if h.checkPointer(unsafe.Pointer(&foreign)) {
		t.Error("checkPointer should reject a pointer outside the managed heap")
	}
}

func TestCheckPointerNotAllocated(t *testing.T) {
	h := newTestHeap(t)
	p := h.Allocate(64)
	addr := blockAddrFromPayload(p)
	setHeaderAt(addr, headerAt(addr)&^flagThisAllocated)
	if h.checkPointer(p) {
		t.Error("checkPointer should reject a pointer to a free block")
	}
}

func TestCheckPointerQuickListed(t *testing.T) {
	h := newTestHeap(t)
	p := h.Allocate(64)
	addr := blockAddrFromPayload(p)
	setHeaderAt(addr, headerAt(addr)|flagInQuickList)
	if h.checkPointer(p) {
		t.Error("checkPointer should reject a quick-listed block")
	}
}

func TestCheckPointerValid(t *testing.T) {
	h := newTestHeap(t)
	p := h.Allocate(64)
	if !h.checkPointer(p) {
		t.Error("checkPointer should accept a freshly allocated block")
	}
}
