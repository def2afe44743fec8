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

// Package value defines the dynamically-typed argument model accepted by the
// syscall bridge, and its coercion from arbitrary Go values.
//
// A Value is exactly one of Int, Bytes, Array or Empty. The set is closed:
// Value cannot be implemented outside this package.
package value

import (
	"fmt"
	"strings"
)

// Value is a syscall argument before it is reduced to a native word.
type Value interface {
	// Kind returns the variant of the value.
	Kind() Kind

	isValue()
}

// Kind enumerates the Value variants.
type Kind int

// Value kinds.
const (
	KindEmpty Kind = iota
	KindInt
	KindBytes
	KindArray
)

// String implements fmt.Stringer.String.
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindInt:
		return "integer"
	case KindBytes:
		return "bytes"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Int is an integer argument.
type Int int64

// Bytes is a byte buffer borrowed from the caller. It is only read from and
// written back to for the duration of a call; no reference to it is kept
// afterwards.
type Bytes []byte

// Array is an ordered sequence of values, flattened into a buffer of native
// words.
type Array []Value

// Empty is an absent argument.
type Empty struct{}

// Kind implements Value.Kind.
func (Int) Kind() Kind { return KindInt }

// Kind implements Value.Kind.
func (Bytes) Kind() Kind { return KindBytes }

// Kind implements Value.Kind.
func (Array) Kind() Kind { return KindArray }

// Kind implements Value.Kind.
func (Empty) Kind() Kind { return KindEmpty }

func (Int) isValue()   {}
func (Bytes) isValue() {}
func (Array) isValue() {}
func (Empty) isValue() {}

// Word truncates i to a signed 32-bit integer and sign-extends it to the
// native word width.
func (i Int) Word() uintptr {
	return uintptr(int32(i))
}

// KindOf returns the kind of v. A nil Value is Empty.
func KindOf(v Value) Kind {
	if v == nil {
		return KindEmpty
	}
	return v.Kind()
}

// DefaultFormatLimit is the number of buffer bytes Format prints before
// eliding the rest.
const DefaultFormatLimit = 32

// Format renders v for traces, in the style of strace: integers in hex,
// buffers as quoted strings elided after limit bytes, arrays in brackets.
func Format(v Value, limit int) string {
	var b strings.Builder
	format(&b, v, limit)
	return b.String()
}

// FormatAll renders a list of values separated by commas.
func FormatAll(vs []Value, limit int) string {
	var b strings.Builder
	for i, v := range vs {
		if i > 0 {
			b.WriteString(", ")
		}
		format(&b, v, limit)
	}
	return b.String()
}

func format(b *strings.Builder, v Value, limit int) {
	switch v := v.(type) {
	case nil, Empty:
		b.WriteString("<empty>")
	case Int:
		if v < 0 {
			fmt.Fprintf(b, "-%#x", -int64(v))
		} else {
			fmt.Fprintf(b, "%#x", int64(v))
		}
	case Bytes:
		if limit >= 0 && len(v) > limit {
			fmt.Fprintf(b, "%q...", []byte(v[:limit]))
		} else {
			fmt.Fprintf(b, "%q", []byte(v))
		}
		fmt.Fprintf(b, " (%d bytes)", len(v))
	case Array:
		b.WriteByte('[')
		for i, e := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, e, limit)
		}
		b.WriteByte(']')
	default:
		fmt.Fprintf(b, "%v", v)
	}
}
