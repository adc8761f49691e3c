// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build darwin || dragonfly || freebsd || linux || netbsd || openbsd || solaris

package sandbox

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// platformBackend reserves address space with a PROT_NONE mmap and pages
// it in and out with mprotect, rather than mmap/munmap per commit: a
// single reservation keeps the base address, and therefore every pointer
// the allocator has ever handed out, stable for the Sandbox's lifetime.
type platformBackend struct{}

func (platformBackend) reserve(bytes int) (uintptr, error) {
	b, err := unix.Mmap(-1, 0, bytes, unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return 0, err
	}
	return uintptr(unsafe.Pointer(&b[0])), nil
}

func (platformBackend) commit(base uintptr, from, to int) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base+uintptr(from))), to-from)
	return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
}

func (platformBackend) decommit(base uintptr, n int) error {
	if n == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
	return unix.Mprotect(b, unix.PROT_NONE)
}

func (platformBackend) release(base uintptr, n int) error {
	b := unsafe.Slice((*byte)(unsafe.Pointer(base)), n)
	return unix.Munmap(b)
}
