package dyma

import (
	"testing"
	"unsafe"
)

func TestQuickListPushPopLIFO(t *testing.T) {
	buf := make([]byte, 512)
	base := unsafe.Pointer(&buf[0])

	a := base
	createBlock(a, minBlockSize)
	setHeaderAt(a, headerAt(a)|flagThisAllocated)
	b := nextBlockAddr(a, minBlockSize)
	createBlock(b, minBlockSize)
	setHeaderAt(b, headerAt(b)|flagThisAllocated)

	var ql quickLists
	idx := quickListIndex(minBlockSize)

	ql.push(a, idx)
	ql.push(b, idx)
	if got := ql.count(idx); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if !isQuickListed(headerAt(a)) || !isQuickListed(headerAt(b)) {
		t.Error("pushed blocks should carry the in-quick-list bit")
	}

	got, ok := ql.pop(minBlockSize)
	if !ok || got != b {
		t.Fatalf("pop() = (%p, %v), want (%p, true) [LIFO order]", got, ok, b)
	}
	if isQuickListed(headerAt(b)) {
		t.Error("popped block should have the in-quick-list bit cleared")
	}

	got, ok = ql.pop(minBlockSize)
	if !ok || got != a {
		t.Fatalf("pop() = (%p, %v), want (%p, true)", got, ok, a)
	}

	if _, ok := ql.pop(minBlockSize); ok {
		t.Error("pop on an empty quick list should fail")
	}
}

func TestQuickListAtCapacity(t *testing.T) {
	buf := make([]byte, minBlockSize*(quickListCap+2))
	var ql quickLists
	idx := quickListIndex(minBlockSize)

	for i := 0; i < quickListCap; i++ {
		addr := unsafe.Pointer(uintptr(unsafe.Pointer(&buf[0])) + uintptr(i)*minBlockSize)
		createBlock(addr, minBlockSize)
		if ql.atCapacity(idx) {
			t.Fatalf("list reported at capacity before %d pushes", quickListCap)
		}
		ql.push(addr, idx)
	}

	if !ql.atCapacity(idx) {
		t.Fatal("list should report at capacity after quickListCap pushes")
	}
}

func TestQuickListDrain(t *testing.T) {
	buf := make([]byte, minBlockSize*3)
	var ql quickLists
	idx := quickListIndex(minBlockSize)

	addrs := make([]unsafe.Pointer, 3)
	for i := range addrs {
		addr := unsafe.Pointer(uintptr(unsafe.Pointer(&buf[0])) + uintptr(i)*minBlockSize)
		createBlock(addr, minBlockSize)
		addrs[i] = addr
		ql.push(addr, idx)
	}

	drained := ql.drain(idx)
	if len(drained) != 3 {
		t.Fatalf("drain returned %d blocks, want 3", len(drained))
	}
	for _, addr := range drained {
		if isQuickListed(headerAt(addr)) {
			t.Error("drained block should have the in-quick-list bit cleared")
		}
	}
	if ql.count(idx) != 0 {
		t.Error("quick list should be empty after drain")
	}
}
