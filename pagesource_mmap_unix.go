// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build darwin || dragonfly || freebsd || linux || openbsd || solaris || netbsd

// Modifications (c) 2024 The Dyma Authors.

package dyma

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

// osPageSource is a PageSource backed by real anonymous-mapped memory
// rather than a Go-managed slice, for callers who want a Heap whose
// address range is not also tracked by the garbage collector. Unlike
// simulatedPageSource, its capacity is reserved with a single mmap call
// and handed out page by page from that reservation, so growth never
// moves previously returned addresses.
type osPageSource struct {
	base     unsafe.Pointer
	reserved int
	maxPages int
	pages    int
}

// NewOSPageSource reserves (but does not commit) room for maxPages pages
// of real, anonymous-mapped memory and returns a PageSource that grows
// into it one page at a time.
func NewOSPageSource(maxPages int) (PageSource, error) {
	if maxPages <= 0 {
		return nil, fmt.Errorf("dyma: NewOSPageSource: maxPages must be positive, got %d", maxPages)
	}
	size := maxPages * pageSize
	b, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("dyma: NewOSPageSource: mmap: %w", err)
	}
	return &osPageSource{base: unsafe.Pointer(&b[0]), reserved: size, maxPages: maxPages}, nil
}

func (s *osPageSource) Start() unsafe.Pointer {
	if s.pages == 0 {
		return nil
	}
	return s.base
}

func (s *osPageSource) End() unsafe.Pointer {
	if s.pages == 0 {
		return nil
	}
	return unsafe.Pointer(uintptr(s.base) + uintptr(s.pages)*pageSize)
}

func (s *osPageSource) Grow() unsafe.Pointer {
	if s.pages >= s.maxPages {
		return nil
	}
	addr := unsafe.Pointer(uintptr(s.base) + uintptr(s.pages)*pageSize)
	s.pages++
	return addr
}

// Close releases the entire reservation back to the operating system. It
// must not be called while any Heap built on this source is still in use.
func (s *osPageSource) Close() error {
	b := unsafe.Slice((*byte)(s.base), s.reserved)
	return unix.Munmap(b)
}
