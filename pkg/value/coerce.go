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

package value

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// TrapIndex is the ArgumentTypeError index used for the trap number.
const TrapIndex = -1

// MaxDepth bounds how deeply arrays nest, and how long a chain of pointers
// may be, within one argument. Cyclic values exceed it.
const MaxDepth = 64

// ArgumentTypeError is returned when a value cannot be coerced into a
// syscall argument. It is always reported before any system call is made.
type ArgumentTypeError struct {
	// Index is the argument position, or TrapIndex for the trap number.
	Index int

	// Path locates the offending element inside nested arrays, outermost
	// first. It is empty when the argument itself is at fault.
	Path []int

	// Type is the Go type of the offending value.
	Type string

	// Reason describes why the value was rejected.
	Reason string
}

// Error implements error.Error.
func (e *ArgumentTypeError) Error() string {
	var b strings.Builder
	if e.Index == TrapIndex {
		b.WriteString("trap number")
	} else {
		b.WriteString("argument ")
		b.WriteString(strconv.Itoa(e.Index))
	}
	for _, p := range e.Path {
		fmt.Fprintf(&b, "[%d]", p)
	}
	fmt.Fprintf(&b, ": cannot convert %s: %s", e.Type, e.Reason)
	return b.String()
}

// From coerces x into a Value. See Coerce.
func From(x any) (Value, error) {
	return Coerce(0, x)
}

// Coerce coerces x, the argument at position index, into a Value:
//
//   - nil and nil pointers become Empty.
//   - Go integers of any width become Int; unsigned values keep their bit
//     pattern. bool becomes 0 or 1. Finite floats are truncated toward zero.
//     json.Number must parse as an integer or a finite float.
//   - []byte (and named byte slices) become Bytes, borrowing the storage.
//     So does a pointer to a byte array. A byte array passed by value becomes
//     Bytes over a copy, which system call writes never reach.
//   - Other slices and arrays become Array, element by element, nested at
//     most MaxDepth deep.
//   - Pointers are dereferenced. Value implementations are returned as is.
//
// Everything else, notably strings, maps, structs, channels, functions and
// raw pointers, fails with *ArgumentTypeError.
func Coerce(index int, x any) (Value, error) {
	return coerce(index, nil, x)
}

func coerce(index int, path []int, x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return Empty{}, nil
	case Value:
		return normalize(index, path, v)
	case int:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case uint:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case uint64:
		return Int(v), nil
	case uintptr:
		return Int(v), nil
	case bool:
		if v {
			return Int(1), nil
		}
		return Int(0), nil
	case float32:
		return fromFloat(index, path, x, float64(v))
	case float64:
		return fromFloat(index, path, x, v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return Int(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, typeError(index, path, x, "not a number")
		}
		return fromFloat(index, path, x, f)
	case []byte:
		return Bytes(v), nil
	case []any:
		if len(path) >= MaxDepth {
			return nil, tooDeep(index, path, x)
		}
		arr := make(Array, len(v))
		for i, e := range v {
			ev, err := coerce(index, appendPath(path, i), e)
			if err != nil {
				return nil, err
			}
			arr[i] = ev
		}
		return arr, nil
	case string:
		return nil, typeError(index, path, x, "strings are not buffers; pass a byte slice")
	}
	return coerceReflect(index, path, x)
}

// coerceReflect handles named and composite types the fast path misses.
func coerceReflect(index int, path []int, x any) (Value, error) {
	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Int(rv.Uint()), nil
	case reflect.Bool:
		if rv.Bool() {
			return Int(1), nil
		}
		return Int(0), nil
	case reflect.Float32, reflect.Float64:
		return fromFloat(index, path, x, rv.Float())
	case reflect.Pointer:
		return coercePointer(index, path, x, rv)
	case reflect.Slice:
		if rv.IsNil() {
			return Empty{}, nil
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return Bytes(rv.Bytes()), nil
		}
		return coerceSequence(index, path, rv)
	case reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			b := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(b), rv)
			return Bytes(b), nil
		}
		return coerceSequence(index, path, rv)
	case reflect.UnsafePointer:
		return nil, typeError(index, path, x, "raw pointers are not accepted; pass a byte slice")
	}
	return nil, typeError(index, path, x, fmt.Sprintf("unsupported kind %s", rv.Kind()))
}

// coercePointer follows a chain of pointers and interfaces from rv.
func coercePointer(index int, path []int, x any, rv reflect.Value) (Value, error) {
	for n := 0; ; n++ {
		switch k := rv.Kind(); {
		case (k == reflect.Pointer || k == reflect.Interface) && rv.IsNil():
			return Empty{}, nil
		case k == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 && rv.CanAddr():
			return Bytes(rv.Bytes()), nil
		case k != reflect.Pointer && k != reflect.Interface:
			return coerce(index, path, rv.Interface())
		case n >= MaxDepth:
			return nil, typeError(index, path, x, "pointers nested too deeply")
		}
		rv = rv.Elem()
	}
}

func coerceSequence(index int, path []int, rv reflect.Value) (Value, error) {
	if len(path) >= MaxDepth {
		return nil, tooDeep(index, path, rv.Interface())
	}
	arr := make(Array, rv.Len())
	for i := range arr {
		ev, err := coerce(index, appendPath(path, i), rv.Index(i).Interface())
		if err != nil {
			return nil, err
		}
		arr[i] = ev
	}
	return arr, nil
}

// normalize replaces nil elements of arrays built directly from Values with
// Empty, so that a coerced value never contains a nil Value.
func normalize(index int, path []int, v Value) (Value, error) {
	arr, ok := v.(Array)
	if !ok {
		return v, nil
	}
	if len(path) >= MaxDepth {
		return nil, tooDeep(index, path, v)
	}
	out := make(Array, len(arr))
	for i, e := range arr {
		if e == nil {
			out[i] = Empty{}
			continue
		}
		ne, err := normalize(index, appendPath(path, i), e)
		if err != nil {
			return nil, err
		}
		out[i] = ne
	}
	return out, nil
}

func fromFloat(index int, path []int, x any, f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, typeError(index, path, x, "not a finite number")
	}
	t := math.Trunc(f)
	if t < math.MinInt64 || t >= math.MaxInt64 {
		return nil, typeError(index, path, x, "out of integer range")
	}
	return Int(int64(t)), nil
}

func appendPath(path []int, i int) []int {
	p := make([]int, len(path)+1)
	copy(p, path)
	p[len(path)] = i
	return p
}

func tooDeep(index int, path []int, x any) *ArgumentTypeError {
	return typeError(index, path, x, fmt.Sprintf("arrays nested more than %d deep", MaxDepth))
}

func typeError(index int, path []int, x any, reason string) *ArgumentTypeError {
	return &ArgumentTypeError{
		Index:  index,
		Path:   path,
		Type:   fmt.Sprintf("%T", x),
		Reason: reason,
	}
}
