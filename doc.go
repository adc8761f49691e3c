// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package malloc implements a segregated-fits dynamic memory allocator on
// top of an externally supplied, monotonically extensible byte region (see
// the Heap interface and the sandbox package for a concrete, OS-backed
// implementation of it).
//
// The allocator partitions its heap into variable-sized blocks, keeping
// free blocks on eleven size-classed doubly-linked lists, and reuses space
// via first-fit search, splitting and (on Realloc) forward and, for the
// double-linked variant, backward coalescing with boundary tags.
//
// Two layouts are available. NewSingle builds an allocator over an
// implicit, singly-linked heap: blocks carry a header only, and Realloc can
// only coalesce forward. NewDouble additionally writes a boundary-tag
// footer to every block, enabling O(1) backward traversal and bidirectional
// coalescing at the cost of one extra unit per block.
//
// An Allocator is not safe for concurrent use; callers share one across
// goroutines only under their own external lock, exactly as the host heap
// region itself is assumed to have a single writer at a time.
package malloc
