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

package trap

import "golang.org/x/sys/unix"

// common lists traps with the same name on every supported architecture.
var common = []Entry{
	{Name: "read", Num: unix.SYS_READ},
	{Name: "write", Num: unix.SYS_WRITE},
	{Name: "close", Num: unix.SYS_CLOSE},
	{Name: "fstat", Num: unix.SYS_FSTAT},
	{Name: "lseek", Num: unix.SYS_LSEEK},
	{Name: "mmap", Num: unix.SYS_MMAP},
	{Name: "mprotect", Num: unix.SYS_MPROTECT},
	{Name: "munmap", Num: unix.SYS_MUNMAP},
	{Name: "brk", Num: unix.SYS_BRK},
	{Name: "ioctl", Num: unix.SYS_IOCTL},
	{Name: "pread64", Num: unix.SYS_PREAD64},
	{Name: "pwrite64", Num: unix.SYS_PWRITE64},
	{Name: "readv", Num: unix.SYS_READV},
	{Name: "writev", Num: unix.SYS_WRITEV},
	{Name: "sched_yield", Num: unix.SYS_SCHED_YIELD},
	{Name: "madvise", Num: unix.SYS_MADVISE},
	{Name: "dup", Num: unix.SYS_DUP},
	{Name: "dup3", Num: unix.SYS_DUP3},
	{Name: "nanosleep", Num: unix.SYS_NANOSLEEP},
	{Name: "getpid", Num: unix.SYS_GETPID},
	{Name: "socket", Num: unix.SYS_SOCKET},
	{Name: "connect", Num: unix.SYS_CONNECT},
	{Name: "accept", Num: unix.SYS_ACCEPT},
	{Name: "sendto", Num: unix.SYS_SENDTO},
	{Name: "recvfrom", Num: unix.SYS_RECVFROM},
	{Name: "shutdown", Num: unix.SYS_SHUTDOWN},
	{Name: "bind", Num: unix.SYS_BIND},
	{Name: "listen", Num: unix.SYS_LISTEN},
	{Name: "socketpair", Num: unix.SYS_SOCKETPAIR},
	{Name: "clone", Num: unix.SYS_CLONE},
	{Name: "execve", Num: unix.SYS_EXECVE},
	{Name: "exit", Num: unix.SYS_EXIT},
	{Name: "wait4", Num: unix.SYS_WAIT4},
	{Name: "kill", Num: unix.SYS_KILL},
	{Name: "uname", Num: unix.SYS_UNAME},
	{Name: "fcntl", Num: unix.SYS_FCNTL},
	{Name: "flock", Num: unix.SYS_FLOCK},
	{Name: "fsync", Num: unix.SYS_FSYNC},
	{Name: "ftruncate", Num: unix.SYS_FTRUNCATE},
	{Name: "getcwd", Num: unix.SYS_GETCWD},
	{Name: "chdir", Num: unix.SYS_CHDIR},
	{Name: "fchdir", Num: unix.SYS_FCHDIR},
	{Name: "fchmod", Num: unix.SYS_FCHMOD},
	{Name: "fchown", Num: unix.SYS_FCHOWN},
	{Name: "umask", Num: unix.SYS_UMASK},
	{Name: "gettimeofday", Num: unix.SYS_GETTIMEOFDAY},
	{Name: "getrlimit", Num: unix.SYS_GETRLIMIT},
	{Name: "getuid", Num: unix.SYS_GETUID},
	{Name: "getgid", Num: unix.SYS_GETGID},
	{Name: "setuid", Num: unix.SYS_SETUID},
	{Name: "setgid", Num: unix.SYS_SETGID},
	{Name: "geteuid", Num: unix.SYS_GETEUID},
	{Name: "getegid", Num: unix.SYS_GETEGID},
	{Name: "getppid", Num: unix.SYS_GETPPID},
	{Name: "setsid", Num: unix.SYS_SETSID},
	{Name: "getpgid", Num: unix.SYS_GETPGID},
	{Name: "sync", Num: unix.SYS_SYNC},
	{Name: "prctl", Num: unix.SYS_PRCTL},
	{Name: "gettid", Num: unix.SYS_GETTID},
	{Name: "tkill", Num: unix.SYS_TKILL},
	{Name: "futex", Num: unix.SYS_FUTEX},
	{Name: "getdents64", Num: unix.SYS_GETDENTS64},
	{Name: "clock_gettime", Num: unix.SYS_CLOCK_GETTIME},
	{Name: "exit_group", Num: unix.SYS_EXIT_GROUP},
	{Name: "tgkill", Num: unix.SYS_TGKILL},
	{Name: "openat", Num: unix.SYS_OPENAT},
	{Name: "mkdirat", Num: unix.SYS_MKDIRAT},
	{Name: "unlinkat", Num: unix.SYS_UNLINKAT},
	{Name: "readlinkat", Num: unix.SYS_READLINKAT},
	{Name: "faccessat", Num: unix.SYS_FACCESSAT},
	{Name: "pipe2", Num: unix.SYS_PIPE2},
	{Name: "epoll_create1", Num: unix.SYS_EPOLL_CREATE1},
	{Name: "eventfd2", Num: unix.SYS_EVENTFD2},
	{Name: "getrandom", Num: unix.SYS_GETRANDOM},
	{Name: "memfd_create", Num: unix.SYS_MEMFD_CREATE},
	{Name: "renameat2", Num: unix.SYS_RENAMEAT2},
	{Name: "epoll_pwait", Num: unix.SYS_EPOLL_PWAIT},
	{Name: "ppoll", Num: unix.SYS_PPOLL},
}
