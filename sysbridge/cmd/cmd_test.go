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

package cmd

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/sysbridge/sysbridge/config"
)

func newConfig(t *testing.T, args ...string) *config.Config {
	t.Helper()
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	config.RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatal(err)
	}
	conf, err := config.NewFromFlags(fs)
	if err != nil {
		t.Fatal(err)
	}
	return conf
}

func run(t *testing.T, c subcommands.Command, conf *config.Config, args ...string) subcommands.ExitStatus {
	t.Helper()
	f := flag.NewFlagSet(c.Name(), flag.ContinueOnError)
	c.SetFlags(f)
	if err := f.Parse(args); err != nil {
		t.Fatalf("Parse(%v): %v", args, err)
	}
	return c.Execute(context.Background(), f, conf)
}

func hostPipe(t *testing.T, flags int) (r, w int) {
	t.Helper()
	var p [2]int
	if err := unix.Pipe2(p[:], flags|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe2: %v", err)
	}
	t.Cleanup(func() {
		unix.Close(p[0])
		unix.Close(p[1])
	})
	return p[0], p[1]
}

func TestCallWriteRead(t *testing.T) {
	r, w := hostPipe(t, 0)
	conf := newConfig(t)

	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, conf, "write", strconv.Itoa(w), "@str:hi", "2"); got != subcommands.ExitSuccess {
		t.Fatalf("call write = %v, output %q", got, out.String())
	}
	if want := "write = 2, 0, errno 0\n  arg 1: \"hi\" (2 bytes)\n"; out.String() != want {
		t.Errorf("call write output = %q, want %q", out.String(), want)
	}

	out.Reset()
	if got := run(t, &Call{out: &out}, conf, "-o", "json", "read", strconv.Itoa(r), "@buf:2", "2"); got != subcommands.ExitSuccess {
		t.Fatalf("call read = %v, output %q", got, out.String())
	}
	var co callOutput
	if err := json.Unmarshal(out.Bytes(), &co); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	if co.Trap != "read" || co.Primary != 2 || co.Errno != 0 {
		t.Errorf("call read = %+v, want 2 bytes read", co)
	}
	// The kernel wrote "hi" into the buffer.
	if got, want := co.Buffers["1"], "6869"; got != want {
		t.Errorf("buffer 1 = %q, want %q", got, want)
	}
}

func TestCallFailure(t *testing.T) {
	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, newConfig(t), "close", "-1"); got != subcommands.ExitFailure {
		t.Errorf("call close -1 = %v, want %v", got, subcommands.ExitFailure)
	}
	if !strings.Contains(out.String(), "EBADF") {
		t.Errorf("output %q does not mention EBADF", out.String())
	}
}

func TestCallRejectsArguments(t *testing.T) {
	for _, args := range [][]string{
		{"write", "1", `"text"`, "4"},
		{"write", "1", `{"a": 1}`, "4"},
		{"write", "1", "2", "3", "4", "5", "6", "7"},
		{"no_such_call"},
		{},
	} {
		var out bytes.Buffer
		if got := run(t, &Call{out: &out}, newConfig(t), args...); got != subcommands.ExitFailure {
			t.Errorf("call %v = %v, want %v", args, got, subcommands.ExitFailure)
		}
		if out.Len() != 0 {
			t.Errorf("call %v printed %q, want nothing", args, out.String())
		}
	}
}

func TestCallSix(t *testing.T) {
	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, newConfig(t, "--format=json"), "-6", "getpid"); got != subcommands.ExitSuccess {
		t.Fatalf("call -6 getpid = %v", got)
	}
	var co callOutput
	if err := json.Unmarshal(out.Bytes(), &co); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	if co.Primary != int64(os.Getpid()) {
		t.Errorf("getpid = %d, want %d", co.Primary, os.Getpid())
	}
}

func TestCallPipe(t *testing.T) {
	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, newConfig(t), "-o", "json", "pipe"); got != subcommands.ExitSuccess {
		t.Fatalf("call pipe = %v", got)
	}
	var co callOutput
	if err := json.Unmarshal(out.Bytes(), &co); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	defer unix.Close(int(co.Primary))
	defer unix.Close(int(co.Secondary))
	if co.Primary < 0 || co.Secondary < 0 || co.Primary == co.Secondary {
		t.Errorf("pipe = %+v, want two distinct descriptors", co)
	}
}

func TestCallArgsFile(t *testing.T) {
	r, w := hostPipe(t, 0)
	path := filepath.Join(t.TempDir(), "call.yaml")
	contents := "trap: writev\nargs: [" + strconv.Itoa(w) + ", [\"@str:hello \", 6, \"@str:world\", 5], 2]\n"
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, newConfig(t), "-args", path); got != subcommands.ExitSuccess {
		t.Fatalf("call -args = %v, output %q", got, out.String())
	}
	buf := make([]byte, 11)
	if _, err := unix.Read(r, buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf) != "hello world" {
		t.Errorf("pipe contents = %q, want %q", buf, "hello world")
	}

	// Arguments cannot come from both places.
	if got := run(t, &Call{out: &out}, newConfig(t), "-args", path, "writev", "1"); got != subcommands.ExitFailure {
		t.Errorf("call -args with positional arguments = %v, want %v", got, subcommands.ExitFailure)
	}
}

func TestCallRetryGivesUp(t *testing.T) {
	r, _ := hostPipe(t, unix.O_NONBLOCK)
	conf := newConfig(t, "--retry-eintr", "--retry-max-elapsed=100ms")

	var out bytes.Buffer
	start := time.Now()
	if got := run(t, &Call{out: &out}, conf, "read", strconv.Itoa(r), "@buf:1", "1"); got != subcommands.ExitFailure {
		t.Errorf("call read on an empty pipe = %v, want %v", got, subcommands.ExitFailure)
	}
	if elapsed := time.Since(start); elapsed < 100*time.Millisecond {
		t.Errorf("gave up after %v, want at least 100ms of retries", elapsed)
	}
	if !strings.Contains(out.String(), "EAGAIN") {
		t.Errorf("output %q does not mention EAGAIN", out.String())
	}
}

func TestCallRetrySucceeds(t *testing.T) {
	r, w := hostPipe(t, unix.O_NONBLOCK)
	conf := newConfig(t, "--retry-eintr", "--retry-max-elapsed=30s")
	timer := time.AfterFunc(50*time.Millisecond, func() {
		unix.Write(w, []byte("z"))
	})
	defer timer.Stop()

	var out bytes.Buffer
	if got := run(t, &Call{out: &out}, conf, "read", strconv.Itoa(r), "@buf:1", "1"); got != subcommands.ExitSuccess {
		t.Fatalf("call read = %v, output %q", got, out.String())
	}
	if !strings.Contains(out.String(), "\"z\" (1 bytes)") {
		t.Errorf("output %q does not show the byte read", out.String())
	}
}

func TestSyscallsOutput(t *testing.T) {
	var out bytes.Buffer
	if got := run(t, &Syscalls{out: &out}, newConfig(t)); got != subcommands.ExitSuccess {
		t.Fatalf("syscalls = %v", got)
	}
	// Not a terminal, so the default is JSON.
	var info ArchInfo
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("decoding %q: %v", out.String(), err)
	}
	found := map[string]SyscallDoc{}
	for _, sc := range info.Syscalls {
		found[sc.Name] = sc
	}
	if sc := found["write"]; sc.Num != unix.SYS_WRITE || sc.Shape != "generic" {
		t.Errorf("write entry = %+v", sc)
	}
	if sc := found["pipe"]; sc.Shape != "pipe" {
		t.Errorf("pipe entry = %+v", sc)
	}
	if sc := found["fork"]; sc.Shape != "fork" {
		t.Errorf("fork entry = %+v", sc)
	}

	out.Reset()
	if got := run(t, &Syscalls{out: &out}, newConfig(t), "-o", "csv"); got != subcommands.ExitSuccess {
		t.Fatalf("syscalls -o csv = %v", got)
	}
	rows, err := csv.NewReader(&out).ReadAll()
	if err != nil {
		t.Fatalf("reading csv: %v", err)
	}
	if len(rows) != len(info.Syscalls)+1 || rows[0][0] != "Arch" {
		t.Errorf("csv has %d rows starting with %v, want %d", len(rows), rows[0], len(info.Syscalls)+1)
	}

	out.Reset()
	if got := run(t, &Syscalls{out: &out}, newConfig(t), "-o", "table"); got != subcommands.ExitSuccess {
		t.Fatalf("syscalls -o table = %v", got)
	}
	if !strings.Contains(out.String(), "NUM") || !strings.Contains(out.String(), "write") {
		t.Errorf("table output %q lacks header or entries", out.String())
	}

	if got := run(t, &Syscalls{out: &out}, newConfig(t), "-o", "xml"); got != subcommands.ExitFailure {
		t.Errorf("syscalls -o xml = %v, want %v", got, subcommands.ExitFailure)
	}
}

func TestStress(t *testing.T) {
	var out bytes.Buffer
	if got := run(t, &Stress{out: &out}, newConfig(t), "-n", "64", "-workers", "4", "-size", "1024"); got != subcommands.ExitSuccess {
		t.Fatalf("stress = %v, output %q", got, out.String())
	}
	if !strings.Contains(out.String(), "arena chunks leaked: 0\n") {
		t.Errorf("stress output %q does not report zero leaked chunks", out.String())
	}

	if got := run(t, &Stress{out: &out}, newConfig(t), "-size", "0"); got != subcommands.ExitUsageError {
		t.Errorf("stress -size 0 = %v, want %v", got, subcommands.ExitUsageError)
	}
}
