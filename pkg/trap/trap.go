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

// Package trap names Linux syscall numbers for the running architecture and
// classifies the few whose calling convention does not fit the generic
// single-result shape.
package trap

import (
	"fmt"
	"sort"
)

// Shape is the result shape of a trap. The set is closed; callers switch on
// it exhaustively.
type Shape int

const (
	// Generic traps go to the kernel as is and produce one result.
	Generic Shape = iota

	// ForkShape duplicates the calling process. It produces one result that
	// differs between parent and child.
	ForkShape

	// PipeShape creates a pipe. It produces two results: the read and write
	// descriptors.
	PipeShape
)

// String implements fmt.Stringer.String.
func (s Shape) String() string {
	switch s {
	case Generic:
		return "generic"
	case ForkShape:
		return "fork"
	case PipeShape:
		return "pipe"
	default:
		return fmt.Sprintf("Shape(%d)", int(s))
	}
}

// Dual reports whether traps of this shape produce two results.
func (s Shape) Dual() bool {
	return s == PipeShape
}

// ShapeOf returns the shape of trap nr.
func ShapeOf(nr int64) Shape {
	switch nr {
	case Fork:
		return ForkShape
	case Pipe:
		return PipeShape
	default:
		return Generic
	}
}

// Entry names one trap number.
type Entry struct {
	Name  string `json:"name"`
	Num   int64  `json:"num"`
	Shape Shape  `json:"-"`
}

var (
	byName = make(map[string]int64)
	byNum  = make(map[int64]string)
)

func init() {
	for _, tbl := range [][]Entry{common, archTable} {
		for _, e := range tbl {
			if _, ok := byName[e.Name]; ok {
				panic(fmt.Sprintf("duplicate trap name %q", e.Name))
			}
			if n, ok := byNum[e.Num]; ok {
				panic(fmt.Sprintf("trap %d named both %q and %q", e.Num, n, e.Name))
			}
			byName[e.Name] = e.Num
			byNum[e.Num] = e.Name
		}
	}
}

// Lookup returns the number of the trap called name.
func Lookup(name string) (int64, bool) {
	nr, ok := byName[name]
	return nr, ok
}

// Name returns the name of trap nr, or "sys_<nr>" if it is not in the table.
func Name(nr int64) string {
	if n, ok := byNum[nr]; ok {
		return n
	}
	return fmt.Sprintf("sys_%d", nr)
}

// All returns every named trap, sorted by number.
func All() []Entry {
	es := make([]Entry, 0, len(byNum))
	for nr, name := range byNum {
		es = append(es, Entry{Name: name, Num: nr, Shape: ShapeOf(nr)})
	}
	sort.Slice(es, func(i, j int) bool { return es[i].Num < es[j].Num })
	return es
}
