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
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"

	"github.com/cenkalti/backoff"
	"github.com/google/subcommands"
	"golang.org/x/sys/unix"
	"gvisor.dev/sysbridge/pkg/dispatch"
	"gvisor.dev/sysbridge/pkg/log"
	"gvisor.dev/sysbridge/pkg/trap"
	"gvisor.dev/sysbridge/pkg/value"
	"gvisor.dev/sysbridge/sysbridge/cmd/util"
	"gvisor.dev/sysbridge/sysbridge/config"
)

// Call implements subcommands.Command for the "call" command.
type Call struct {
	six      bool
	argsFile string
	output   string

	// out is where results are written, os.Stdout if nil.
	out io.Writer
}

// Name implements subcommands.Command.Name.
func (*Call) Name() string {
	return "call"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Call) Synopsis() string {
	return "invoke a system call with dynamically-typed arguments"
}

// Usage implements subcommands.Command.Usage.
func (*Call) Usage() string {
	return `call [flags] TRAP [ARG...] - invoke system call TRAP.

TRAP is a system call name (see "syscalls") or number. Each ARG is a JSON
value (a number, null, or an array of arguments) or a buffer literal:

  @str:TEXT   a buffer holding TEXT
  @hex:HEX    a buffer holding the hex-encoded bytes
  @buf:N      a zeroed buffer of N bytes

Buffer literals may also appear as strings inside JSON arrays. Buffers are
printed after the call, so data written by the kernel is shown.

Examples:
  call write 1 @str:hello 5
  call writev 1 '["@str:a", 1, "@str:b\n", 2]' 2
  call -args call.yaml

Flags:
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (c *Call) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.six, "6", false, "always use the six-argument form. Fork and pipe are then passed to the kernel as is.")
	f.StringVar(&c.argsFile, "args", "", "YAML or JSON file with the trap and its arguments.")
	f.StringVar(&c.output, "o", "", "output format: text or json. Defaults to --format.")
}

// Execute implements subcommands.Command.Execute.
func (c *Call) Execute(ctx context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	conf := args[0].(*config.Config)

	nr, callArgs, err := c.parse(f.Args())
	if err != nil {
		f.Usage()
		return util.Errorf("%v", err)
	}
	format := c.output
	if format == "" {
		format = conf.OutputFormat
	}
	if format != config.FormatText && format != config.FormatJSON {
		return util.Errorf("unsupported output format %q", format)
	}

	res, err := invoke(ctx, newEngine(conf), conf, nr, callArgs, c.six)
	if err != nil {
		return util.Errorf("%v", err)
	}
	if !c.six && trap.ShapeOf(nr) == trap.ForkShape {
		if res.Primary == 0 && res.Errno == 0 {
			// Child. Leave before the runtime notices it lost its threads.
			unix.RawSyscall(unix.SYS_EXIT_GROUP, 0, 0, 0)
		}
		reap(int(res.Primary))
	}

	if err := printResult(stdout(c.out), format, nr, callArgs, res); err != nil {
		return util.Errorf("writing output: %v", err)
	}
	if res.Errno != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

// parse returns the trap and arguments from the command line or -args file.
func (c *Call) parse(posArgs []string) (int64, []any, error) {
	var (
		trapName string
		callArgs []any
	)
	if c.argsFile != "" {
		cf, err := loadCallFile(c.argsFile)
		if err != nil {
			return 0, nil, err
		}
		trapName, callArgs = cf.Trap, cf.Args
		switch {
		case len(posArgs) == 1:
			trapName = posArgs[0]
		case len(posArgs) > 1:
			return 0, nil, fmt.Errorf("arguments must not be given both on the command line and with -args")
		}
	} else {
		if len(posArgs) == 0 {
			return 0, nil, fmt.Errorf("missing trap")
		}
		trapName = posArgs[0]
		for _, s := range posArgs[1:] {
			a, err := parseArg(s)
			if err != nil {
				return 0, nil, err
			}
			callArgs = append(callArgs, a)
		}
	}
	if trapName == "" {
		return 0, nil, fmt.Errorf("missing trap")
	}
	nr, err := parseTrap(trapName)
	if err != nil {
		return 0, nil, err
	}
	return nr, callArgs, nil
}

// invoke calls nr, re-issuing it on EINTR and EAGAIN if conf asks for it.
// When retries run out, the last result is returned.
func invoke(ctx context.Context, e *dispatch.Engine, conf *config.Config, nr int64, args []any, six bool) (dispatch.Result, error) {
	call := func() (dispatch.Result, error) {
		if !six {
			return e.Invoke(nr, args...)
		}
		if len(args) > dispatch.MaxArgs {
			return dispatch.Result{}, fmt.Errorf("%d arguments given, at most %d are supported", len(args), dispatch.MaxArgs)
		}
		var a [6]any
		copy(a[:], args)
		return e.Invoke6(nr, a)
	}
	if !conf.RetryEINTR {
		return call()
	}

	var res dispatch.Result
	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = conf.RetryMaxElapsed
	op := func() error {
		var err error
		res, err = call()
		if err != nil {
			return backoff.Permanent(err)
		}
		if res.Errno == unix.EINTR || res.Errno == unix.EAGAIN {
			log.Debugf("%s: %s, retrying", trap.Name(nr), unix.ErrnoName(res.Errno))
			return res.Errno
		}
		return nil
	}
	if err := backoff.Retry(op, backoff.WithContext(b, ctx)); err != nil {
		var errno unix.Errno
		if errors.As(err, &errno) && errno == res.Errno {
			return res, nil
		}
		return dispatch.Result{}, err
	}
	return res, nil
}

// reap waits for a child created by "call fork".
func reap(pid int) {
	if pid <= 0 {
		return
	}
	var ws unix.WaitStatus
	if _, err := unix.Wait4(pid, &ws, 0, nil); err != nil {
		log.Warningf("wait4(%d): %v", pid, err)
		return
	}
	log.Infof("Child %d exited with status %d", pid, ws.ExitStatus())
}

// callOutput is the JSON form of a call's outcome.
type callOutput struct {
	Trap string `json:"trap"`
	Num  int64  `json:"num"`
	dispatch.Result
	ErrnoName string `json:"errno_name,omitempty"`

	// Buffers holds the final contents of top-level buffer arguments,
	// hex-encoded and keyed by argument index.
	Buffers map[string]string `json:"buffers,omitempty"`
}

func printResult(w io.Writer, format string, nr int64, args []any, res dispatch.Result) error {
	if format == config.FormatJSON {
		out := callOutput{
			Trap:   trap.Name(nr),
			Num:    nr,
			Result: res,
		}
		if res.Errno != 0 {
			out.ErrnoName = unix.ErrnoName(res.Errno)
		}
		for i, a := range args {
			if b, ok := a.([]byte); ok {
				if out.Buffers == nil {
					out.Buffers = make(map[string]string)
				}
				out.Buffers[strconv.Itoa(i)] = hex.EncodeToString(b)
			}
		}
		e := json.NewEncoder(w)
		e.SetIndent("", "  ")
		return e.Encode(out)
	}

	if _, err := fmt.Fprintf(w, "%s = %s\n", trap.Name(nr), res); err != nil {
		return err
	}
	for i, a := range args {
		if b, ok := a.([]byte); ok {
			if _, err := fmt.Fprintf(w, "  arg %d: %s\n", i, value.Format(value.Bytes(b), len(b))); err != nil {
				return err
			}
		}
	}
	return nil
}
