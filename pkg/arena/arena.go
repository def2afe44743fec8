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

//go:build linux
// +build linux

// Package arena provides a call-scoped allocator for memory handed to the
// kernel.
//
// An Arena owns every transient buffer created while preparing the arguments
// of a single system call. Buffers live in anonymous mappings outside of the
// Go heap, so their addresses can be stored as plain words (including inside
// other arena buffers) without the garbage collector moving or freeing them.
// All buffers are released together by Release.
//
// An Arena must not be copied or shared between calls.
package arena

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"gvisor.dev/sysbridge/pkg/cleanup"
	"gvisor.dev/sysbridge/pkg/hostarch"
	"gvisor.dev/sysbridge/pkg/memutil"
)

// chunkPages is the size, in pages, of a regular chunk. Requests larger than
// a quarter of a chunk get a dedicated mapping.
const chunkPages = 4

// live counts mapped chunks across all arenas.
var live atomic.Int64

// Live returns the number of chunks currently mapped by all arenas in the
// process. It returns to its previous value once every arena created since
// has been released.
func Live() int64 {
	return live.Load()
}

// noCopy may be embedded into structs which must not be copied after first
// use; go vet's copylocks checker flags copies.
type noCopy struct{}

// Lock is a no-op used by go vet.
func (*noCopy) Lock() {}

// Unlock is a no-op used by go vet.
func (*noCopy) Unlock() {}

type chunk struct {
	mem []byte
	off uintptr
}

// Arena is a bump allocator over anonymous mappings.
//
// The zero value is ready to use.
type Arena struct {
	_ noCopy

	// cur is the chunk small requests are carved from.
	cur *chunk

	// chunks is every chunk mapped by this arena.
	chunks []*chunk

	// cu unmaps chunks on Release.
	cu cleanup.Cleanup

	released bool
}

// New returns an empty Arena. No memory is mapped until the first
// allocation.
func New() *Arena {
	return &Arena{}
}

// Bytes returns a zeroed buffer of n bytes whose lifetime is the arena's.
//
// A zero-length request still reserves one byte, so the returned slice
// always has a valid, distinct address.
func (a *Arena) Bytes(n int) []byte {
	if n < 0 {
		panic(fmt.Sprintf("arena: negative allocation size %d", n))
	}
	p := a.alloc(uintptr(max(n, 1)), 1)
	return unsafe.Slice((*byte)(p), n)
}

// Words returns a zeroed buffer of n native words whose lifetime is the
// arena's. The buffer is word aligned.
//
// As with Bytes, a zero-length request still reserves one slot.
func (a *Arena) Words(n int) []uintptr {
	if n < 0 {
		panic(fmt.Sprintf("arena: negative allocation size %d", n))
	}
	size := uintptr(max(n, 1))
	if size > ^uintptr(0)/hostarch.WordSize {
		panic(fmt.Sprintf("arena: allocation of %d words overflows", n))
	}
	p := a.alloc(size*hostarch.WordSize, hostarch.WordSize)
	return unsafe.Slice((*uintptr)(p), n)
}

// Contains reports whether addr points into memory owned by a.
func (a *Arena) Contains(addr uintptr) bool {
	for _, c := range a.chunks {
		base := uintptr(unsafe.Pointer(unsafe.SliceData(c.mem)))
		if addr >= base && addr < base+uintptr(len(c.mem)) {
			return true
		}
	}
	return false
}

// Chunks returns the number of chunks a currently holds.
func (a *Arena) Chunks() int {
	return len(a.chunks)
}

// Release unmaps every buffer handed out by a. Buffers must not be used
// afterwards. Release is idempotent; allocating from a released arena
// panics.
func (a *Arena) Release() {
	a.released = true
	a.cu.Clean()
	a.cur = nil
	a.chunks = nil
}

func (a *Arena) alloc(size, align uintptr) unsafe.Pointer {
	if a.released {
		panic("arena: allocation after Release")
	}
	if c := a.cur; c != nil {
		off := hostarch.AlignUp(c.off, align)
		if off <= uintptr(len(c.mem)) && size <= uintptr(len(c.mem))-off {
			c.off = off + size
			return unsafe.Pointer(&c.mem[off])
		}
	}

	chunkSize := chunkPages * hostarch.PageSize
	mapSize := chunkSize
	if size > chunkSize/4 {
		var ok bool
		if mapSize, ok = hostarch.PageRoundUp(size); !ok {
			panic(fmt.Sprintf("arena: allocation of %d bytes overflows", size))
		}
	}
	c := a.mapChunk(mapSize)
	// Mappings are page aligned, so offset zero satisfies any alignment.
	c.off = size
	if mapSize == chunkSize {
		// Only regular chunks take future small requests; a dedicated
		// chunk would strand the current chunk's free space.
		a.cur = c
	}
	return unsafe.Pointer(&c.mem[0])
}

func (a *Arena) mapChunk(size uintptr) *chunk {
	mem, err := memutil.MapSlice(size)
	if err != nil {
		// Out of memory is not recoverable at this layer.
		panic(fmt.Sprintf("arena: failed to map %d bytes: %v", size, err))
	}
	live.Add(1)
	c := &chunk{mem: mem}
	a.chunks = append(a.chunks, c)
	a.cu.Add(func() {
		if err := memutil.UnmapSlice(c.mem); err != nil {
			panic(fmt.Sprintf("arena: failed to unmap chunk at %p: %v", unsafe.SliceData(c.mem), err))
		}
		c.mem = nil
		live.Add(-1)
	})
	return c
}
