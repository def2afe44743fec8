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

//go:build linux && arm64
// +build linux,arm64

package trap

import "golang.org/x/sys/unix"

// Traps with a non-generic shape.
//
// arm64 uses the generic syscall table, which has neither fork nor pipe.
// The numbers below are the deprecated asm-generic __NR_fork and __NR_pipe;
// the kernel does not implement them, so they are always intercepted.
const (
	Fork = 1079
	Pipe = 1040
)

// archTable lists arm64-only traps.
var archTable = []Entry{
	{Name: "pipe", Num: Pipe},
	{Name: "fork", Num: Fork},
	{Name: "fstatat", Num: unix.SYS_FSTATAT},
}
