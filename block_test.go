package dyma

import (
	"testing"
	"unsafe"
)

func TestCalcBlockSize(t *testing.T) {
	cases := []struct {
		request uintptr
		want    uint64
	}{
		{0, minBlockSize},
		{4, minBlockSize},
		{24, minBlockSize},
		{25, 40},
		{4096 - 8, 4096},
	}
	for _, c := range cases {
		if got := calcBlockSize(c.request); got != c.want {
			t.Errorf("calcBlockSize(%d) = %d, want %d", c.request, got, c.want)
		}
	}
}

func TestFreeListIndexBoundary(t *testing.T) {
	// minBlockSize itself and anything smaller belongs to class 0.
	if got := freeListIndex(minBlockSize); got != 0 {
		t.Errorf("freeListIndex(minBlockSize) = %d, want 0", got)
	}
	// Exactly 2*minBlockSize is the boundary case where the reference
	// allocator's iterative search and the closed-form log2 expression
	// disagree; the reference algorithm (class 1) is authoritative here.
	if got := freeListIndex(2 * minBlockSize); got != 1 {
		t.Errorf("freeListIndex(2*minBlockSize) = %d, want 1", got)
	}
	// A 4024-byte free block (the remainder after allocating a 4-byte
	// int out of one fresh page) lands in class 7.
	if got := freeListIndex(4024); got != 7 {
		t.Errorf("freeListIndex(4024) = %d, want 7", got)
	}
}

func TestQuickListIndex(t *testing.T) {
	if got := quickListIndex(minBlockSize); got != 0 {
		t.Errorf("quickListIndex(minBlockSize) = %d, want 0", got)
	}
	if got := quickListIndex(minBlockSize + rowSize); got != 1 {
		t.Errorf("quickListIndex(minBlockSize+rowSize) = %d, want 1", got)
	}
	if got := quickListIndex(minBlockSize - 1); got != -1 {
		t.Errorf("quickListIndex(minBlockSize-1) = %d, want -1", got)
	}
	tooLarge := minBlockSize + numQuickLists*rowSize
	if got := quickListIndex(tooLarge); got != -1 {
		t.Errorf("quickListIndex(%d) = %d, want -1", tooLarge, got)
	}
}

func TestCreateAndSplitBlock(t *testing.T) {
	buf := make([]byte, 256)
	base := unsafe.Pointer(&buf[0])

	createBlock(base, 128)
	if got := sizeOf(headerAt(base)); got != 128 {
		t.Fatalf("header size = %d, want 128", got)
	}
	if got := sizeOf(headerAt(footerAddr(base, 128))); got != 128 {
		t.Fatalf("footer size = %d, want 128", got)
	}

	rem, ok := splitBlock(base, 40)
	if !ok {
		t.Fatal("splitBlock reported no split for a 128-byte block taking 40")
	}
	if got := sizeOf(headerAt(base)); got != 40 {
		t.Errorf("lead size after split = %d, want 40", got)
	}
	if got := sizeOf(headerAt(rem)); got != 88 {
		t.Errorf("remainder size after split = %d, want 88", got)
	}
	if !isPrevAllocated(headerAt(rem)) {
		t.Error("remainder should carry previous-allocated bit set")
	}

	if _, ok := splitBlock(rem, 80); ok {
		t.Error("splitBlock should refuse a split leaving < minBlockSize remainder")
	}
}

func TestMarkAllocatedAndFree(t *testing.T) {
	buf := make([]byte, 256)
	base := unsafe.Pointer(&buf[0])
	createBlock(base, 64)
	next := nextBlockAddr(base, 64)
	createBlock(next, 64)

	markAllocated(base)
	if !isAllocated(headerAt(base)) {
		t.Error("block should be allocated")
	}
	if !isPrevAllocated(headerAt(next)) {
		t.Error("successor should have previous-allocated bit set")
	}

	markFree(base)
	if isAllocated(headerAt(base)) {
		t.Error("block should be free")
	}
	if headerAt(base) != headerAt(footerAddr(base, 64)) {
		t.Error("footer should mirror header after markFree")
	}
	if isPrevAllocated(headerAt(next)) {
		t.Error("successor's previous-allocated bit should be cleared")
	}
}
