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
	"flag"
	"fmt"
	"io"
	"runtime"
	"time"

	"github.com/google/subcommands"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"gvisor.dev/sysbridge/pkg/arena"
	"gvisor.dev/sysbridge/pkg/dispatch"
	"gvisor.dev/sysbridge/pkg/trap"
	"gvisor.dev/sysbridge/sysbridge/cmd/util"
	"gvisor.dev/sysbridge/sysbridge/config"
)

// maxStressSize keeps a round within the pipe buffer, so writes never block.
const maxStressSize = 32 << 10

// Stress implements subcommands.Command for the "stress" command.
type Stress struct {
	calls   int
	workers int
	size    int

	// out is where the report is written, os.Stdout if nil.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Stress) Name() string {
	return "stress"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Stress) Synopsis() string {
	return "issue many concurrent calls and check that no call memory is retained"
}

// Usage implements subcommands.Command.Usage.
func (*Stress) Usage() string {
	return `stress [flags] - issue concurrent pipe, writev, read and close calls,
verify the data that comes back, and report arena memory still mapped
afterwards, which must be none.

Flags:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Stress) SetFlags(f *flag.FlagSet) {
	f.IntVar(&s.calls, "n", 1000, "number of rounds, each one making five calls.")
	f.IntVar(&s.workers, "workers", runtime.GOMAXPROCS(0), "number of concurrent workers.")
	f.IntVar(&s.size, "size", 4096, fmt.Sprintf("bytes written per round, at most %d.", maxStressSize))
}

// Execute implements subcommands.Command.Execute.
func (s *Stress) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)
	if s.calls < 0 || s.workers <= 0 || s.size <= 0 || s.size > maxStressSize {
		f.Usage()
		return subcommands.ExitUsageError
	}

	e := newEngine(conf)
	base := arena.Live()
	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < s.workers; w++ {
		rounds := s.calls / s.workers
		if w < s.calls%s.workers {
			rounds++
		}
		w := w
		g.Go(func() error {
			for i := 0; i < rounds; i++ {
				if err := ctx.Err(); err != nil {
					return err
				}
				if err := stressRound(e, w, i, s.size); err != nil {
					return fmt.Errorf("worker %d round %d: %w", w, i, err)
				}
			}
			return nil
		})
	}
	err := g.Wait()
	elapsed := time.Since(start)
	runtime.GC()
	runtime.ReadMemStats(&after)
	leaked := arena.Live() - base

	fmt.Fprintf(stdout(s.out), "rounds: %d\nworkers: %d\nelapsed: %v\narena chunks leaked: %d\nheap growth: %d bytes\n",
		s.calls, s.workers, elapsed, leaked, int64(after.HeapAlloc)-int64(before.HeapAlloc))
	if err != nil {
		return util.Errorf("stress failed: %v", err)
	}
	if leaked != 0 {
		return util.Errorf("%d arena chunks still mapped after all calls returned", leaked)
	}
	return subcommands.ExitSuccess
}

// stressRound sends size bytes through a fresh pipe in two iovecs and reads
// them back.
func stressRound(e *dispatch.Engine, worker, round, size int) error {
	res, err := e.Invoke3(trap.Pipe, [3]any{})
	if err != nil {
		return err
	}
	if err := res.Err(); err != nil {
		return fmt.Errorf("pipe: %w", err)
	}
	r, w := res.Primary, res.Secondary
	defer func() {
		e.Invoke3(unix.SYS_CLOSE, [3]any{r})
		e.Invoke3(unix.SYS_CLOSE, [3]any{w})
	}()

	head := []byte(fmt.Sprintf("%d/%d:", worker, round))
	bodyLen := size - len(head)
	if bodyLen < 0 {
		bodyLen = 0
	}
	body := bytes.Repeat([]byte{byte('a' + (worker+round)%26)}, bodyLen)
	want := append(append([]byte(nil), head...), body...)

	res, err = e.Invoke3(unix.SYS_WRITEV, [3]any{w, []any{head, len(head), body, len(body)}, 2})
	if err != nil {
		return err
	}
	if res.Primary != int64(len(want)) {
		return fmt.Errorf("writev = %v, want %d", res, len(want))
	}

	got := make([]byte, len(want))
	for n := 0; n < len(got); {
		chunk := make([]byte, len(got)-n)
		res, err := e.Invoke3(unix.SYS_READ, [3]any{r, chunk, len(chunk)})
		if err != nil {
			return err
		}
		if res.Primary <= 0 {
			return fmt.Errorf("read = %v after %d bytes", res, n)
		}
		n += copy(got[n:], chunk[:res.Primary])
	}
	if !bytes.Equal(got, want) {
		return fmt.Errorf("read back %q, want %q", abbrev(got), abbrev(want))
	}
	return nil
}

// abbrev shortens b for error messages.
func abbrev(b []byte) []byte {
	if len(b) > 32 {
		return b[:32]
	}
	return b
}
