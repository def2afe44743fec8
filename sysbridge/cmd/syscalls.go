// Copyright 2019 The gVisor Authors.
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
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"strconv"
	"text/tabwriter"

	"github.com/google/subcommands"
	"golang.org/x/term"
	"gvisor.dev/sysbridge/pkg/trap"
	"gvisor.dev/sysbridge/sysbridge/cmd/util"
)

// Syscalls implements subcommands.Command for the "syscalls" command.
type Syscalls struct {
	output string

	// out is where the table is written, os.Stdout if nil.
	out io.Writer
}

// ArchInfo is the trap table of an architecture.
type ArchInfo struct {
	Arch     string       `json:"arch"`
	Syscalls []SyscallDoc `json:"syscalls"`
}

// SyscallDoc represents a single trap.
type SyscallDoc struct {
	Name  string `json:"name"`
	Num   int64  `json:"num"`
	Shape string `json:"shape"`
}

type outputFunc func(io.Writer, ArchInfo) error

// A map of output type names to output functions.
var outputMap = map[string]outputFunc{
	"table": outputTable,
	"json":  outputJSON,
	"csv":   outputCSV,
}

// Name implements subcommands.Command.Name.
func (*Syscalls) Name() string {
	return "syscalls"
}

// Synopsis implements subcommands.Command.Synopsis.
func (*Syscalls) Synopsis() string {
	return "Print the system calls known by name."
}

// Usage implements subcommands.Command.Usage.
func (*Syscalls) Usage() string {
	return `syscalls [options] - Print the system calls known by name, with their numbers and result shapes.
`
}

// SetFlags implements subcommands.Command.SetFlags.
func (s *Syscalls) SetFlags(f *flag.FlagSet) {
	f.StringVar(&s.output, "o", "", "Output format (table, csv, json). Defaults to table on a terminal and json otherwise.")
}

// Execute implements subcommands.Command.Execute.
func (s *Syscalls) Execute(_ context.Context, f *flag.FlagSet, args ...any) subcommands.ExitStatus {
	format := s.output
	if format == "" {
		format = "json"
		if s.out == nil && term.IsTerminal(int(os.Stdout.Fd())) {
			format = "table"
		}
	}
	out, ok := outputMap[format]
	if !ok {
		return util.Errorf("Unsupported output format %q", format)
	}
	if err := out(stdout(s.out), archInfo()); err != nil {
		return util.Errorf("Error writing output: %v", err)
	}
	return subcommands.ExitSuccess
}

// archInfo returns the trap table of the running architecture.
func archInfo() ArchInfo {
	info := ArchInfo{Arch: runtime.GOARCH}
	for _, e := range trap.All() {
		info.Syscalls = append(info.Syscalls, SyscallDoc{
			Name:  e.Name,
			Num:   e.Num,
			Shape: e.Shape.String(),
		})
	}
	return info
}

// outputTable outputs the syscall info in tabular format.
func outputTable(w io.Writer, info ArchInfo) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintf(w, "linux/%s:\n\n", info.Arch)

	// Write the header
	if _, err := fmt.Fprintf(tw, "%s\t%s\t%s\n", "NUM", "NAME", "SHAPE"); err != nil {
		return err
	}

	// Write each syscall entry
	for _, sc := range info.Syscalls {
		if _, err := fmt.Fprintf(tw, "%d\t%s\t%s\n", sc.Num, sc.Name, sc.Shape); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// outputJSON outputs the syscall info in JSON format.
func outputJSON(w io.Writer, info ArchInfo) error {
	e := json.NewEncoder(w)
	e.SetIndent("", "  ")
	return e.Encode(info)
}

// outputCSV outputs the syscall info in CSV format.
func outputCSV(w io.Writer, info ArchInfo) error {
	csvWriter := csv.NewWriter(w)

	// Write the header
	if err := csvWriter.Write([]string{"Arch", "Num", "Name", "Shape"}); err != nil {
		return err
	}

	// Write each syscall entry
	for _, sc := range info.Syscalls {
		err := csvWriter.Write([]string{
			info.Arch,
			strconv.FormatInt(sc.Num, 10),
			sc.Name,
			sc.Shape,
		})
		if err != nil {
			return err
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
