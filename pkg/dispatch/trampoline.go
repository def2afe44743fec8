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

package dispatch

import (
	"sync"
	"syscall"

	"golang.org/x/sys/unix"
)

// Trampoline is the boundary to the kernel. Arguments are native words that
// are already valid for the duration of the call.
type Trampoline interface {
	// Syscall invokes trap with three arguments.
	Syscall(trap, a1, a2, a3 uintptr) (r1 uintptr, errno unix.Errno)

	// Syscall6 invokes trap with six arguments.
	Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (r1 uintptr, errno unix.Errno)

	// Fork duplicates the calling process. It returns the child's pid in
	// the parent and 0 in the child.
	Fork() (pid int, errno unix.Errno)

	// Pipe creates a pipe and returns its read and write ends.
	Pipe() (r, w int, errno unix.Errno)
}

// Host is the Trampoline for the host kernel.
type Host struct{}

var _ Trampoline = Host{}

// Syscall implements Trampoline.Syscall. The calling goroutine may block; the
// scheduler is notified so other goroutines keep running.
func (Host) Syscall(trap, a1, a2, a3 uintptr) (uintptr, unix.Errno) {
	r1, _, errno := unix.Syscall(trap, a1, a2, a3)
	return r1, errno
}

// Syscall6 implements Trampoline.Syscall6.
func (Host) Syscall6(trap, a1, a2, a3, a4, a5, a6 uintptr) (uintptr, unix.Errno) {
	r1, _, errno := unix.Syscall6(trap, a1, a2, a3, a4, a5, a6)
	return r1, errno
}

// Fork implements Trampoline.Fork.
//
// The fork happens with syscall.ForkLock held for writing, so no descriptor
// is half-created while the address space is copied. The parent releases the
// lock. The child starts with a fresh lock: it runs with a single thread, so
// no other holder or waiter exists, and it should restrict itself to system
// calls, typically ending in execve or exit.
func (Host) Fork() (int, unix.Errno) {
	syscall.ForkLock.Lock()
	pid, errno := rawFork()
	if errno != 0 {
		syscall.ForkLock.Unlock()
		return -1, errno
	}
	if pid == 0 {
		syscall.ForkLock = sync.RWMutex{}
		return 0, 0
	}
	syscall.ForkLock.Unlock()
	return int(pid), 0
}

// Pipe implements Trampoline.Pipe.
//
// Like pipe(2), the descriptors are inheritable across execve. The fork lock
// is held for reading meanwhile, as for any descriptor created without
// O_CLOEXEC.
func (Host) Pipe() (int, int, unix.Errno) {
	var p [2]int
	syscall.ForkLock.RLock()
	err := unix.Pipe(p[:])
	syscall.ForkLock.RUnlock()
	if err != nil {
		errno, ok := err.(unix.Errno)
		if !ok {
			errno = unix.EINVAL
		}
		return -1, -1, errno
	}
	return p[0], p[1], 0
}
