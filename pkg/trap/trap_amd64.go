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

//go:build linux && amd64
// +build linux,amd64

package trap

import "golang.org/x/sys/unix"

// Traps with a non-generic shape.
const (
	Fork = unix.SYS_FORK
	Pipe = unix.SYS_PIPE
)

// archTable lists amd64-only traps, including the legacy calls arm64 lacks.
var archTable = []Entry{
	{Name: "open", Num: unix.SYS_OPEN},
	{Name: "stat", Num: unix.SYS_STAT},
	{Name: "lstat", Num: unix.SYS_LSTAT},
	{Name: "poll", Num: unix.SYS_POLL},
	{Name: "access", Num: unix.SYS_ACCESS},
	{Name: "pipe", Num: Pipe},
	{Name: "dup2", Num: unix.SYS_DUP2},
	{Name: "pause", Num: unix.SYS_PAUSE},
	{Name: "alarm", Num: unix.SYS_ALARM},
	{Name: "fork", Num: Fork},
	{Name: "vfork", Num: unix.SYS_VFORK},
	{Name: "rename", Num: unix.SYS_RENAME},
	{Name: "mkdir", Num: unix.SYS_MKDIR},
	{Name: "rmdir", Num: unix.SYS_RMDIR},
	{Name: "creat", Num: unix.SYS_CREAT},
	{Name: "link", Num: unix.SYS_LINK},
	{Name: "unlink", Num: unix.SYS_UNLINK},
	{Name: "symlink", Num: unix.SYS_SYMLINK},
	{Name: "readlink", Num: unix.SYS_READLINK},
	{Name: "chmod", Num: unix.SYS_CHMOD},
	{Name: "getpgrp", Num: unix.SYS_GETPGRP},
	{Name: "arch_prctl", Num: unix.SYS_ARCH_PRCTL},
	{Name: "time", Num: unix.SYS_TIME},
	{Name: "epoll_create", Num: unix.SYS_EPOLL_CREATE},
	{Name: "newfstatat", Num: unix.SYS_NEWFSTATAT},
}
