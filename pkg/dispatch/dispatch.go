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

// Package dispatch invokes host system calls with dynamically-typed
// arguments.
//
// Each call marshals its arguments into native words using an arena owned by
// that call alone, invokes the kernel, and reports the raw result together
// with the error number. Marshalling is all-or-nothing: if any argument
// cannot be converted, no system call is made and an
// *value.ArgumentTypeError is returned. A failing system call is not an
// error at this level; it is reported through a negative Result.Primary and
// Result.Errno.
package dispatch

import (
	"fmt"
	"time"

	"golang.org/x/sys/unix"
	"gvisor.dev/sysbridge/pkg/arena"
	"gvisor.dev/sysbridge/pkg/log"
	"gvisor.dev/sysbridge/pkg/marshal"
	"gvisor.dev/sysbridge/pkg/trap"
	"gvisor.dev/sysbridge/pkg/value"
)

// MaxArgs is the largest number of arguments a system call takes.
const MaxArgs = 6

// Result is the outcome of a system call.
type Result struct {
	// Primary is the return value; negative on failure.
	Primary int64 `json:"primary"`

	// Secondary is the second result of dual-result traps (the write end of
	// a pipe), and 0 otherwise.
	Secondary int64 `json:"secondary"`

	// Errno is the error number. It is only set when Primary is negative.
	Errno unix.Errno `json:"errno"`
}

// Err returns Errno as an error, or nil if the call succeeded.
func (r Result) Err() error {
	if r.Errno == 0 {
		return nil
	}
	return r.Errno
}

// Tuple returns the result as (primary, secondary, errno).
func (r Result) Tuple() [3]int64 {
	return [3]int64{r.Primary, r.Secondary, int64(r.Errno)}
}

// String implements fmt.Stringer.String.
func (r Result) String() string {
	if r.Errno != 0 {
		return fmt.Sprintf("%d, %d, errno %d (%s)", r.Primary, r.Secondary, int(r.Errno), unix.ErrnoName(r.Errno))
	}
	return fmt.Sprintf("%d, %d, errno 0", r.Primary, r.Secondary)
}

func makeResult(primary, secondary int64, errno unix.Errno) Result {
	if primary >= 0 {
		errno = 0
	}
	return Result{Primary: primary, Secondary: secondary, Errno: errno}
}

// Engine invokes system calls through a Trampoline. An Engine holds no
// per-call state and may be used from any number of goroutines.
type Engine struct {
	tramp      Trampoline
	logger     log.Logger
	trace      bool
	traceLimit int
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrampoline makes the engine call t instead of the host kernel.
func WithTrampoline(t Trampoline) Option {
	return func(e *Engine) {
		e.tramp = t
	}
}

// WithLogger sets the logger used for traces.
func WithLogger(l log.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithTrace enables logging of every call at Debug level. Byte buffers are
// printed up to limit bytes.
func WithTrace(enabled bool, limit int) Option {
	return func(e *Engine) {
		e.trace = enabled
		e.traceLimit = limit
	}
}

// New returns an Engine calling the host kernel.
func New(opts ...Option) *Engine {
	e := &Engine{
		tramp:      Host{},
		traceLimit: value.DefaultFormatLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = log.RateLimitedLogger(log.Global(), 10*time.Millisecond, 100)
	}
	return e
}

// Invoke3 invokes trap nr with three arguments. Fork and pipe traps are
// handled specially and ignore their arguments.
func (e *Engine) Invoke3(nr any, args [3]any) (Result, error) {
	t, err := trapNumber(nr)
	if err != nil {
		return Result{}, err
	}
	switch s := trap.ShapeOf(t); s {
	case trap.Generic:
		return e.generic(t, args[:])
	case trap.ForkShape:
		return e.fork(t), nil
	case trap.PipeShape:
		return e.pipe(t), nil
	default:
		panic(fmt.Sprintf("unhandled trap shape %v", s))
	}
}

// Invoke6 invokes trap nr with six arguments. It never special-cases a trap:
// fork and pipe numbers go to the kernel like any other.
func (e *Engine) Invoke6(nr any, args [6]any) (Result, error) {
	t, err := trapNumber(nr)
	if err != nil {
		return Result{}, err
	}
	return e.generic(t, args[:])
}

// Invoke invokes trap nr with up to six arguments, using Invoke3 when three
// suffice and Invoke6 otherwise. Missing arguments are Empty.
func (e *Engine) Invoke(nr any, args ...any) (Result, error) {
	switch {
	case len(args) <= 3:
		var a [3]any
		copy(a[:], args)
		return e.Invoke3(nr, a)
	case len(args) <= MaxArgs:
		var a [6]any
		copy(a[:], args)
		return e.Invoke6(nr, a)
	default:
		return Result{}, fmt.Errorf("%d arguments given, at most %d are supported", len(args), MaxArgs)
	}
}

func trapNumber(nr any) (int64, error) {
	v, err := value.Coerce(value.TrapIndex, nr)
	if err != nil {
		return 0, err
	}
	i, ok := v.(value.Int)
	if !ok {
		return 0, &value.ArgumentTypeError{
			Index:  value.TrapIndex,
			Type:   fmt.Sprintf("%T", nr),
			Reason: fmt.Sprintf("trap number must be an integer, not %s", value.KindOf(v)),
		}
	}
	// The kernel reads the trap number as a 32-bit int.
	return int64(int32(i)), nil
}

// generic marshals args, three or six of them, and calls the kernel.
func (e *Engine) generic(nr int64, args []any) (Result, error) {
	vals := make([]value.Value, len(args))
	for i, x := range args {
		v, err := value.Coerce(i, x)
		if err != nil {
			return Result{}, fmt.Errorf("%s: %w", trap.Name(nr), err)
		}
		vals[i] = v
	}

	a := arena.New()
	defer a.Release()
	m := marshal.New(a)
	w, err := m.Args(vals)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", trap.Name(nr), err)
	}

	var (
		r1    uintptr
		errno unix.Errno
	)
	if len(w) == MaxArgs {
		r1, errno = e.tramp.Syscall6(uintptr(nr), w[0], w[1], w[2], w[3], w[4], w[5])
	} else {
		r1, errno = e.tramp.Syscall(uintptr(nr), w[0], w[1], w[2])
	}
	m.WriteBack()

	res := makeResult(int64(r1), 0, errno)
	e.traceCall(nr, vals, res)
	return res, nil
}

func (e *Engine) fork(nr int64) Result {
	pid, errno := e.tramp.Fork()
	if errno != 0 {
		res := makeResult(-1, 0, errno)
		e.traceCall(nr, nil, res)
		return res
	}
	if pid == 0 {
		// Child. Nothing but raw system calls is safe here.
		return Result{}
	}
	res := Result{Primary: int64(pid)}
	e.traceCall(nr, nil, res)
	return res
}

func (e *Engine) pipe(nr int64) Result {
	r, w, errno := e.tramp.Pipe()
	res := Result{Primary: int64(r), Secondary: int64(w)}
	if errno != 0 {
		res = makeResult(-1, 0, errno)
	}
	e.traceCall(nr, nil, res)
	return res
}

func (e *Engine) traceCall(nr int64, args []value.Value, res Result) {
	if !e.trace || !e.logger.IsLogging(log.Debug) {
		return
	}
	e.logger.Debugf("%s(%s) = %s", trap.Name(nr), value.FormatAll(args, e.traceLimit), res)
}

var hostEngine = New()

// Syscall invokes trap nr on the host kernel with three arguments.
func Syscall(nr, a1, a2, a3 any) (Result, error) {
	return hostEngine.Invoke3(nr, [3]any{a1, a2, a3})
}

// Syscall6 invokes trap nr on the host kernel with six arguments.
func Syscall6(nr, a1, a2, a3, a4, a5, a6 any) (Result, error) {
	return hostEngine.Invoke6(nr, [6]any{a1, a2, a3, a4, a5, a6})
}
