// Copyright 2018 The gVisor Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

//go:build linux
// +build linux

// Package memutil provides utilities for working with memory that lives
// outside of the Go heap.
package memutil

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// MapAnonymous maps size bytes of private, zero-filled, read-write memory.
// The mapping is invisible to the garbage collector: its address never
// changes and it stays valid until UnmapSlice is called.
func MapAnonymous(size uintptr) (uintptr, error) {
	addr, _, errno := unix.RawSyscall6(
		unix.SYS_MMAP,
		0, // address
		size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS,
		^uintptr(0), // no file descriptor
		0,           // offset
	)
	if errno != 0 {
		return 0, errno
	}
	return addr, nil
}

// MapSlice is like MapAnonymous, but returns a slice instead of a uintptr.
func MapSlice(size uintptr) ([]byte, error) {
	addr, err := MapAnonymous(size)
	if err != nil {
		return nil, err
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), int(size)), nil
}

// UnmapSlice unmaps a mapping returned by MapSlice.
func UnmapSlice(slice []byte) error {
	ptr := unsafe.SliceData(slice)
	_, _, errno := unix.RawSyscall6(unix.SYS_MUNMAP, uintptr(unsafe.Pointer(ptr)), uintptr(cap(slice)), 0, 0, 0, 0)
	if errno != 0 {
		return errno
	}
	return nil
}
