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
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
	"gvisor.dev/sysbridge/pkg/trap"
)

// Buffer literals. Anywhere an argument is expected, a string with one of
// these prefixes stands for a byte buffer.
const (
	strPrefix = "@str:"
	hexPrefix = "@hex:"
	bufPrefix = "@buf:"
)

// maxBuffer bounds the size of @buf literals.
const maxBuffer = 1 << 24

// parseTrap resolves a trap name or number.
func parseTrap(s string) (int64, error) {
	if nr, ok := trap.Lookup(s); ok {
		return nr, nil
	}
	nr, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("unknown trap %q: not a known name or a number", s)
	}
	return nr, nil
}

// parseArg parses one command line argument: a buffer literal, or a JSON
// value whose strings may themselves be buffer literals.
func parseArg(s string) (any, error) {
	if strings.HasPrefix(s, "@") {
		return parseBuffer(s)
	}
	d := json.NewDecoder(strings.NewReader(s))
	d.UseNumber()
	var v any
	if err := d.Decode(&v); err != nil {
		return nil, fmt.Errorf("argument %q is neither JSON nor a buffer literal: %w", s, err)
	}
	if d.More() {
		return nil, fmt.Errorf("argument %q has trailing data", s)
	}
	return resolveBuffers(v)
}

func parseBuffer(s string) ([]byte, error) {
	switch {
	case strings.HasPrefix(s, strPrefix):
		return []byte(s[len(strPrefix):]), nil
	case strings.HasPrefix(s, hexPrefix):
		b, err := hex.DecodeString(s[len(hexPrefix):])
		if err != nil {
			return nil, fmt.Errorf("buffer literal %q: %w", s, err)
		}
		return b, nil
	case strings.HasPrefix(s, bufPrefix):
		n, err := strconv.Atoi(s[len(bufPrefix):])
		if err != nil || n < 0 || n > maxBuffer {
			return nil, fmt.Errorf("buffer literal %q: size must be between 0 and %d", s, maxBuffer)
		}
		return make([]byte, n), nil
	default:
		return nil, fmt.Errorf("unknown buffer literal %q, want %sTEXT, %sHEX or %sSIZE", s, strPrefix, hexPrefix, bufPrefix)
	}
}

// resolveBuffers replaces buffer literals inside a decoded value. Other
// strings are kept, to be rejected when the call is marshalled.
func resolveBuffers(v any) (any, error) {
	switch v := v.(type) {
	case string:
		if strings.HasPrefix(v, "@") {
			return parseBuffer(v)
		}
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			r, err := resolveBuffers(e)
			if err != nil {
				return nil, err
			}
			out[i] = r
		}
		return out, nil
	default:
		return v, nil
	}
}

// callFile is the format of files given to "call -args". YAML and JSON are
// both accepted.
//
//	trap: writev
//	args: [1, ["@str:hello ", 6, "@str:world", 5], 2]
type callFile struct {
	Trap string `yaml:"trap"`
	Args []any  `yaml:"args"`
}

func loadCallFile(path string) (*callFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := yaml.NewDecoder(f)
	d.SetStrict(true)
	var cf callFile
	if err := d.Decode(&cf); err != nil {
		return nil, fmt.Errorf("decoding %q: %w", path, err)
	}
	for i, a := range cf.Args {
		r, err := resolveBuffers(a)
		if err != nil {
			return nil, fmt.Errorf("%q: argument %d: %w", path, i, err)
		}
		cf.Args[i] = r
	}
	return &cf, nil
}
