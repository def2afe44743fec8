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

// Package marshal reduces dynamic values to native words.
//
// Byte buffers are copied into arena memory before their address is taken
// (copy-in). Once the system call has returned, the bytes the kernel changed
// are copied back into the caller's slice (write-back), so the kernel never
// sees a Go heap address while its writes still reach the caller. Bytes the
// kernel did not change are never stored to, so a buffer that is only read,
// as by write(2), may be shared by concurrent calls.
package marshal

import (
	"bytes"
	"errors"
	"fmt"
	"unsafe"

	"gvisor.dev/sysbridge/pkg/arena"
	"gvisor.dev/sysbridge/pkg/value"
)

// copyBack records an arena copy of a caller buffer. orig holds the bytes as
// they were at copy-in.
type copyBack struct {
	dst  []byte
	src  []byte
	orig []byte
}

// Marshaller converts values for a single call. All memory it produces is
// owned by its arena.
type Marshaller struct {
	a         *arena.Arena
	writeBack []copyBack
}

// New returns a Marshaller allocating from a.
func New(a *arena.Arena) *Marshaller {
	return &Marshaller{a: a}
}

// ToNative reduces v to a native word:
//
//   - Empty becomes 0.
//   - Int is truncated to 32 bits and sign-extended.
//   - Bytes is copied into the arena; the word is the copy's address.
//   - Array is flattened into an arena buffer of words, each element
//     converted recursively; the word is the buffer's address.
//
// Arrays nested more than value.MaxDepth deep are rejected.
func (m *Marshaller) ToNative(v value.Value) (uintptr, error) {
	return m.toNative(v, nil)
}

func (m *Marshaller) toNative(v value.Value, path []int) (uintptr, error) {
	switch v := v.(type) {
	case nil, value.Empty:
		return 0, nil
	case value.Int:
		return v.Word(), nil
	case value.Bytes:
		return m.bytes(v), nil
	case value.Array:
		return m.array(v, path)
	default:
		return 0, &value.ArgumentTypeError{
			Path:   path,
			Type:   fmt.Sprintf("%T", v),
			Reason: "unknown value kind",
		}
	}
}

func (m *Marshaller) bytes(b value.Bytes) uintptr {
	buf := m.a.Bytes(len(b))
	copy(buf, b)
	if len(b) > 0 {
		orig := m.a.Bytes(len(b))
		copy(orig, buf)
		m.writeBack = append(m.writeBack, copyBack{dst: b, src: buf, orig: orig})
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

func (m *Marshaller) array(arr value.Array, path []int) (uintptr, error) {
	if len(path) >= value.MaxDepth {
		return 0, &value.ArgumentTypeError{
			Path:   path,
			Type:   fmt.Sprintf("%T", arr),
			Reason: fmt.Sprintf("arrays nested more than %d deep", value.MaxDepth),
		}
	}
	slots := m.a.Words(len(arr))
	for i, e := range arr {
		w, err := m.toNative(e, append(path[:len(path):len(path)], i))
		if err != nil {
			return 0, err
		}
		slots[i] = w
	}
	return uintptr(unsafe.Pointer(unsafe.SliceData(slots))), nil
}

// Args converts the arguments of one call. It stops at the first argument
// that cannot be converted and returns its error with Index set to the
// argument's position.
func (m *Marshaller) Args(vs []value.Value) ([]uintptr, error) {
	words := make([]uintptr, len(vs))
	for i, v := range vs {
		w, err := m.ToNative(v)
		if err != nil {
			var ate *value.ArgumentTypeError
			if errors.As(err, &ate) {
				ate.Index = i
			}
			return nil, err
		}
		words[i] = w
	}
	return words, nil
}

// Buffers returns the number of caller buffers copied into the arena so far.
func (m *Marshaller) Buffers() int {
	return len(m.writeBack)
}

// WriteBack copies the bytes the kernel changed in each arena copy back into
// the caller's slice. It must be called after the system call returns and
// before the arena is released.
func (m *Marshaller) WriteBack() {
	for _, cb := range m.writeBack {
		if bytes.Equal(cb.src, cb.orig) {
			continue
		}
		for i := 0; i < len(cb.src); {
			if cb.src[i] == cb.orig[i] {
				i++
				continue
			}
			j := i + 1
			for j < len(cb.src) && cb.src[j] != cb.orig[j] {
				j++
			}
			copy(cb.dst[i:j], cb.src[i:j])
			i = j
		}
	}
}
