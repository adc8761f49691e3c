// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package sandbox provides an OS-backed implementation of malloc.Heap: a
// large span of virtual address space reserved up front and committed a
// page at a time as the allocator grows into it, so every address ever
// handed out stays valid and at a fixed location for the Sandbox's whole
// lifetime, independent of the Go runtime's own garbage-collected heap.
package sandbox

import (
	"errors"
	"fmt"
	"os"
)

var pageSize = os.Getpagesize()

// defaultReserve is the virtual address span set aside by New when no
// WithReserve option is given. Reserving is cheap: it costs page table
// entries, not physical memory, which is only committed as Grow is
// called.
const defaultReserve = 1 << 30

// Option configures a Sandbox at construction time.
type Option func(*Sandbox)

// WithReserve sets the total virtual address span to reserve. Grow fails
// once the allocator has committed this many bytes.
func WithReserve(bytes int) Option {
	return func(s *Sandbox) { s.reserve = bytes }
}

// Sandbox is a growable region of raw, non-GC-managed memory satisfying
// malloc.Heap. The zero value is not usable; construct one with New.
type Sandbox struct {
	reserve   int
	lo        uintptr
	mapped    int // bytes currently committed read-write, a page-rounded superset of committed
	committed int

	be backend
}

// backend is the one OS-specific seam: reserving address space, flipping
// pages between accessible and inaccessible, and releasing the
// reservation. heap_unix.go and heap_windows.go each supply a
// platformBackend satisfying it.
type backend interface {
	reserve(bytes int) (uintptr, error)
	commit(base uintptr, from, to int) error
	decommit(base uintptr, n int) error
	release(base uintptr, n int) error
}

// New reserves a fresh Sandbox. The reservation is address space only;
// no physical memory is committed until Grow is called.
func New(opts ...Option) (*Sandbox, error) {
	s := &Sandbox{reserve: defaultReserve, be: platformBackend{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.reserve <= 0 {
		return nil, errors.New("sandbox: reserve must be positive")
	}

	lo, err := s.be.reserve(s.reserve)
	if err != nil {
		return nil, fmt.Errorf("sandbox: reserve %d bytes: %w", s.reserve, err)
	}
	s.lo = lo
	return s, nil
}

func (s *Sandbox) Lo() uintptr { return s.lo }
func (s *Sandbox) Hi() uintptr { return s.lo + uintptr(s.committed) }
func (s *Sandbox) Size() int   { return s.committed }

// Grow commits bytes additional bytes at the current Hi, paging in fresh
// address space in pageSize-rounded chunks as needed, and returns the
// address of the first new byte.
func (s *Sandbox) Grow(bytes int) (uintptr, error) {
	if bytes < 0 {
		panic("sandbox: negative grow")
	}
	newCommitted := s.committed + bytes
	if newCommitted > s.reserve {
		return 0, fmt.Errorf("sandbox: grow to %d bytes exceeds %d byte reservation", newCommitted, s.reserve)
	}

	if needMapped := roundUp(newCommitted, pageSize); needMapped > s.mapped {
		if err := s.be.commit(s.lo, s.mapped, needMapped); err != nil {
			return 0, fmt.Errorf("sandbox: commit: %w", err)
		}
		s.mapped = needMapped
	}

	addr := s.lo + uintptr(s.committed)
	s.committed = newCommitted
	return addr, nil
}

// Reset decommits every page and shrinks Size back to zero, without
// releasing the underlying reservation: a later Grow can reuse it.
func (s *Sandbox) Reset() error {
	if s.mapped > 0 {
		if err := s.be.decommit(s.lo, s.mapped); err != nil {
			return fmt.Errorf("sandbox: decommit: %w", err)
		}
	}
	s.mapped = 0
	s.committed = 0
	return nil
}

// Close releases the reservation entirely. The Sandbox must not be used
// afterward.
func (s *Sandbox) Close() error {
	if err := s.Reset(); err != nil {
		return err
	}
	return s.be.release(s.lo, s.reserve)
}

func roundUp(n, m int) int { return (n + m - 1) &^ (m - 1) }
