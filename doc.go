// Copyright 2024 The Dyma Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dyma implements a segregated free-list memory allocator over a
// simulated, page-granular address range.
//
// A Heap services Allocate, Free, Reallocate and Memalign requests against
// memory handed out by a PageSource in fixed 4096-byte pages. Free blocks
// are tracked by ten size-segregated doubly-linked lists; recently freed
// blocks of common sizes are cached in twenty small LIFO quick lists to
// avoid the cost of coalescing on the common alloc/free/alloc cycle.
//
// The allocator is single-threaded: no *Heap method may be called
// concurrently with any other call against the same Heap.
package dyma
