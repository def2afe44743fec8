// Copyright 2026 The gVisor Authors.
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

//go:build linux && (amd64 || arm64)
// +build linux
// +build amd64 arm64

// Package hostarch describes the host's memory geometry: page size and
// native word size.
package hostarch

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// WordSize is the size in bytes of a native word (and of a pointer).
const WordSize = uintptr(unsafe.Sizeof(uintptr(0)))

// PageSize is the host page size. arm64 kernels may be configured with 4K,
// 16K or 64K pages, so it is read at startup rather than fixed at build time.
var PageSize = uintptr(unix.Getpagesize())

// PageRoundDown returns n rounded down to the nearest page boundary.
func PageRoundDown(n uintptr) uintptr {
	return n &^ (PageSize - 1)
}

// PageRoundUp returns n rounded up to the nearest page boundary.
// ok is true iff rounding up did not wrap around.
func PageRoundUp(n uintptr) (addr uintptr, ok bool) {
	addr = PageRoundDown(n + PageSize - 1)
	ok = addr >= n
	return
}

// AlignUp returns n rounded up to a multiple of align, which must be a power
// of two.
func AlignUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}
