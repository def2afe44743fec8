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

// Package cmd holds implementations of the sysbridge commands.
package cmd

import (
	"io"
	"os"

	"gvisor.dev/sysbridge/pkg/dispatch"
	"gvisor.dev/sysbridge/sysbridge/config"
)

// newEngine returns an engine configured by conf. Traces are only emitted
// when debug logging is enabled.
func newEngine(conf *config.Config) *dispatch.Engine {
	return dispatch.New(dispatch.WithTrace(conf.Trace, conf.TraceBufferLimit))
}

// stdout returns w, or os.Stdout if w is nil.
func stdout(w io.Writer) io.Writer {
	if w == nil {
		return os.Stdout
	}
	return w
}
