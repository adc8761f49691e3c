// Copyright 2017 The Memory Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package sandbox

import (
	"golang.org/x/sys/windows"
)

// platformBackend mirrors the unix backend's reserve-then-page-in shape
// using VirtualAlloc's MEM_RESERVE and MEM_COMMIT rather than mmap and
// mprotect.
type platformBackend struct{}

func (platformBackend) reserve(bytes int) (uintptr, error) {
	addr, err := windows.VirtualAlloc(0, uintptr(bytes), windows.MEM_RESERVE, windows.PAGE_NOACCESS)
	if err != nil {
		return 0, err
	}
	return addr, nil
}

func (platformBackend) commit(base uintptr, from, to int) error {
	_, err := windows.VirtualAlloc(base+uintptr(from), uintptr(to-from), windows.MEM_COMMIT, windows.PAGE_READWRITE)
	return err
}

func (platformBackend) decommit(base uintptr, n int) error {
	if n == 0 {
		return nil
	}
	return windows.VirtualFree(base, uintptr(n), windows.MEM_DECOMMIT)
}

func (platformBackend) release(base uintptr, n int) error {
	_ = n
	return windows.VirtualFree(base, 0, windows.MEM_RELEASE)
}
