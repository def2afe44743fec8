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

package marshal

import (
	"bytes"
	"errors"
	"math"
	"testing"
	"unsafe"

	"gvisor.dev/sysbridge/pkg/arena"
	"gvisor.dev/sysbridge/pkg/value"
)

// words views n native words at addr. addr must point into a live arena.
func words(addr uintptr, n int) []uintptr {
	return unsafe.Slice((*uintptr)(unsafe.Pointer(addr)), n)
}

// mem views n bytes at addr. addr must point into a live arena.
func mem(addr uintptr, n int) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(addr)), n)
}

func TestScalars(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)
	minInt32 := int64(math.MinInt32)

	for _, tc := range []struct {
		v    value.Value
		want uintptr
	}{
		{v: nil, want: 0},
		{v: value.Empty{}, want: 0},
		{v: value.Int(0), want: 0},
		{v: value.Int(12), want: 12},
		{v: value.Int(-1), want: ^uintptr(0)},
		{v: value.Int(math.MinInt32), want: uintptr(minInt32)},
		{v: value.Int(1<<32 + 3), want: 3},
	} {
		got, err := m.ToNative(tc.v)
		if err != nil {
			t.Fatalf("ToNative(%v) failed: %v", tc.v, err)
		}
		if got != tc.want {
			t.Errorf("ToNative(%v) = %#x, want %#x", tc.v, got, tc.want)
		}
	}
	if a.Chunks() != 0 {
		t.Errorf("scalars allocated %d arena chunks, want 0", a.Chunks())
	}
}

func TestBytesCopyIn(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)

	buf := []byte("copy me")
	addr, err := m.ToNative(value.Bytes(buf))
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}
	if addr == uintptr(unsafe.Pointer(unsafe.SliceData(buf))) {
		t.Fatalf("ToNative returned the caller's buffer address; want an arena copy")
	}
	if !a.Contains(addr) {
		t.Fatalf("address %#x is not owned by the arena", addr)
	}
	if got := mem(addr, len(buf)); !bytes.Equal(got, buf) {
		t.Errorf("arena copy = %q, want %q", got, buf)
	}

	// Changes to the caller's buffer after marshalling are not visible.
	buf[0] = 'C'
	if got := mem(addr, 1)[0]; got != 'c' {
		t.Errorf("arena copy changed with the caller's buffer: %q", got)
	}
}

func TestWriteBack(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)

	out := make([]byte, 5)
	inner := make([]byte, 3)
	addr, err := m.ToNative(value.Bytes(out))
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}
	arrAddr, err := m.ToNative(value.Array{value.Bytes(inner), value.Int(3)})
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}
	if got := m.Buffers(); got != 2 {
		t.Fatalf("Buffers() = %d, want 2", got)
	}

	// Simulate the kernel filling both buffers.
	copy(mem(addr, 5), "hello")
	copy(mem(words(arrAddr, 2)[0], 3), "abc")
	if !bytes.Equal(out, make([]byte, 5)) {
		t.Fatalf("caller buffer changed before WriteBack: %q", out)
	}

	m.WriteBack()
	if string(out) != "hello" {
		t.Errorf("out = %q after WriteBack, want %q", out, "hello")
	}
	if string(inner) != "abc" {
		t.Errorf("inner = %q after WriteBack, want %q", inner, "abc")
	}
}

func TestWriteBackOnlyChangedBytes(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)

	out := []byte("0123456789")
	ro := []byte("read only")
	addr, err := m.ToNative(value.Bytes(out))
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}
	if _, err := m.ToNative(value.Bytes(ro)); err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}

	// The kernel changes two runs; the caller changes other bytes meanwhile.
	copy(mem(addr, 10)[1:], "ab")
	copy(mem(addr, 10)[7:], "z")
	out[4], out[9] = 'X', 'Y'
	ro[0] = 'R'

	m.WriteBack()
	if got, want := string(out), "0ab3X56z8Y"; got != want {
		t.Errorf("out = %q after WriteBack, want %q", got, want)
	}
	if got, want := string(ro), "Read only"; got != want {
		t.Errorf("unchanged buffer = %q after WriteBack, want %q", got, want)
	}
}

func TestEmptyBytes(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)

	addr, err := m.ToNative(value.Bytes(nil))
	if err != nil {
		t.Fatalf("ToNative failed: %v", err)
	}
	if addr == 0 || !a.Contains(addr) {
		t.Errorf("empty buffer marshalled to %#x, want a valid arena address", addr)
	}
	if got := m.Buffers(); got != 0 {
		t.Errorf("Buffers() = %d for an empty buffer, want 0", got)
	}
}

// checkSlots verifies that the words at addr are the native forms of arr.
func checkSlots(t *testing.T, a *arena.Arena, addr uintptr, arr value.Array, depth int) {
	t.Helper()
	if !a.Contains(addr) {
		t.Fatalf("depth %d: array address %#x is not owned by the arena", depth, addr)
	}
	slots := words(addr, len(arr))
	for i, e := range arr {
		switch e := e.(type) {
		case value.Empty:
			if slots[i] != 0 {
				t.Errorf("depth %d slot %d = %#x, want 0", depth, i, slots[i])
			}
		case value.Int:
			if slots[i] != e.Word() {
				t.Errorf("depth %d slot %d = %#x, want %#x", depth, i, slots[i], e.Word())
			}
		case value.Bytes:
			if got := mem(slots[i], len(e)); !bytes.Equal(got, e) {
				t.Errorf("depth %d slot %d points at %q, want %q", depth, i, got, e)
			}
		case value.Array:
			checkSlots(t, a, slots[i], e, depth+1)
		}
	}
}

func TestArrays(t *testing.T) {
	deep := value.Value(value.Int(99))
	for i := 0; i < 8; i++ {
		deep = value.Array{value.Int(i), deep, value.Bytes{byte(i)}}
	}

	for _, tc := range []struct {
		name string
		arr  value.Array
	}{
		{name: "empty", arr: value.Array{}},
		{name: "ints", arr: value.Array{value.Int(1), value.Int(-2), value.Int(1 << 40)}},
		{name: "mixed", arr: value.Array{value.Empty{}, value.Bytes("buf"), value.Int(3)}},
		{name: "iovec", arr: value.Array{value.Bytes("ab"), value.Int(2), value.Bytes("cde"), value.Int(3)}},
		{name: "nested", arr: value.Array{value.Array{value.Int(1)}, value.Array{value.Array{value.Bytes("x")}}}},
		{name: "deep", arr: deep.(value.Array)},
	} {
		t.Run(tc.name, func(t *testing.T) {
			a := arena.New()
			defer a.Release()
			m := New(a)

			addr, err := m.ToNative(tc.arr)
			if err != nil {
				t.Fatalf("ToNative failed: %v", err)
			}
			checkSlots(t, a, addr, tc.arr, 0)
		})
	}
}

func TestArrayMemoryReleased(t *testing.T) {
	base := arena.Live()
	for i := 0; i < 200; i++ {
		a := arena.New()
		m := New(a)
		if _, err := m.ToNative(value.Array{value.Bytes(make([]byte, 1000)), value.Array{value.Int(i)}}); err != nil {
			t.Fatalf("ToNative failed: %v", err)
		}
		m.WriteBack()
		a.Release()
	}
	if got := arena.Live(); got != base {
		t.Fatalf("arena.Live() = %d, want %d", got, base)
	}
}

func TestArgs(t *testing.T) {
	a := arena.New()
	defer a.Release()
	m := New(a)

	vs := []value.Value{value.Int(-2), value.Empty{}, value.Bytes("ab"), value.Array{value.Int(7)}}
	got, err := m.Args(vs)
	if err != nil {
		t.Fatalf("Args failed: %v", err)
	}
	if len(got) != len(vs) {
		t.Fatalf("Args returned %d words, want %d", len(got), len(vs))
	}
	if got[0] != value.Int(-2).Word() || got[1] != 0 {
		t.Errorf("scalar words = %#x, %#x", got[0], got[1])
	}
	if b := mem(got[2], 2); string(b) != "ab" {
		t.Errorf("buffer word points at %q, want %q", b, "ab")
	}
	if w := words(got[3], 1); w[0] != 7 {
		t.Errorf("array word points at %v, want [7]", w)
	}
}

func TestArrayDepth(t *testing.T) {
	nest := func(n int) value.Value {
		v := value.Value(value.Int(1))
		for i := 0; i < n; i++ {
			v = value.Array{v}
		}
		return v
	}

	a := arena.New()
	defer a.Release()
	m := New(a)
	if _, err := m.ToNative(nest(value.MaxDepth)); err != nil {
		t.Fatalf("ToNative of %d nested arrays failed: %v", value.MaxDepth, err)
	}

	cyclic := value.Array{nil}
	cyclic[0] = cyclic
	for _, v := range []value.Value{nest(value.MaxDepth + 1), cyclic} {
		_, err := m.Args([]value.Value{value.Int(0), v})
		var ate *value.ArgumentTypeError
		if !errors.As(err, &ate) {
			t.Fatalf("Args error = %v, want *value.ArgumentTypeError", err)
		}
		if ate.Index != 1 || len(ate.Path) != value.MaxDepth {
			t.Errorf("error at argument %d depth %d, want argument 1 depth %d", ate.Index, len(ate.Path), value.MaxDepth)
		}
	}
}
