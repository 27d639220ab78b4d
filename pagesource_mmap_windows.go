// Copyright 2011 Evan Shaw. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE-MMAP-GO file.

//go:build windows

// Modifications (c) 2024 The Dyma Authors.

package dyma

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// osPageSource mirrors the Unix implementation but backs its reservation
// with a file mapping, since Windows has no direct anonymous-mmap
// equivalent to MAP_ANON.
type osPageSource struct {
	handle   windows.Handle
	base     unsafe.Pointer
	reserved int
	maxPages int
	pages    int
}

// NewOSPageSource reserves room for maxPages pages via a page-file-backed
// file mapping and returns a PageSource that grows into it one page at a
// time.
func NewOSPageSource(maxPages int) (PageSource, error) {
	if maxPages <= 0 {
		return nil, fmt.Errorf("dyma: NewOSPageSource: maxPages must be positive, got %d", maxPages)
	}
	size := maxPages * pageSize

	h, err := windows.CreateFileMapping(windows.InvalidHandle, nil, windows.PAGE_READWRITE, uint32(uint64(size)>>32), uint32(uint64(size)&0xFFFFFFFF), nil)
	if err != nil {
		return nil, fmt.Errorf("dyma: NewOSPageSource: CreateFileMapping: %w", err)
	}

	addr, err := windows.MapViewOfFile(h, windows.FILE_MAP_WRITE, 0, 0, uintptr(size))
	if err != nil {
		windows.CloseHandle(h)
		return nil, fmt.Errorf("dyma: NewOSPageSource: MapViewOfFile: %w", err)
	}

	return &osPageSource{handle: h, base: unsafe.Pointer(addr), reserved: size, maxPages: maxPages}, nil
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

// Close releases the entire reservation. It must not be called while any
// Heap built on this source is still in use.
func (s *osPageSource) Close() error {
	if err := windows.UnmapViewOfFile(uintptr(s.base)); err != nil {
		return err
	}
	return windows.CloseHandle(s.handle)
}
