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

// Package config provides basic infrastructure to set configuration settings
// for sysbridge. Each setting is tied to a flag, and may also be given in a
// TOML file named by --config. Flags set explicitly on the command line
// always win over the file.
package config

import (
	"fmt"
	"reflect"
	"time"

	"gvisor.dev/sysbridge/pkg/log"
)

// Config holds configuration that is not part of any single command.
//
// Follow these steps to add a new flag:
//  1. Create a new field in Config.
//  2. Add a field tag with the flag name, and a toml tag if the setting may
//     come from the configuration file.
//  3. Register a new flag in flags.go, with name and description.
//  4. Add any necessary validation into validate().
type Config struct {
	// ConfigFile is the path of an optional TOML file with defaults for the
	// other settings.
	ConfigFile string `flag:"config" toml:"-"`

	// LogFilename is the filename to log to, if not empty.
	LogFilename string `flag:"log" toml:"log"`

	// LogFormat is the log format: text or json.
	LogFormat string `flag:"log-format" toml:"log-format"`

	// Debug indicates that debug logging should be enabled.
	Debug bool `flag:"debug" toml:"debug"`

	// Trace indicates that every system call should be logged at debug level.
	Trace bool `flag:"trace" toml:"trace"`

	// TraceBufferLimit is the number of bytes of each buffer argument shown in
	// traces.
	TraceBufferLimit int `flag:"trace-buffer-limit" toml:"trace-buffer-limit"`

	// RetryEINTR makes commands re-issue calls that fail with EINTR or
	// EAGAIN.
	RetryEINTR bool `flag:"retry-eintr" toml:"retry-eintr"`

	// RetryMaxElapsed bounds the total time spent retrying. Zero means no
	// bound.
	RetryMaxElapsed time.Duration `flag:"retry-max-elapsed" toml:"retry-max-elapsed"`

	// OutputFormat is the default output format of commands: text or json.
	OutputFormat string `flag:"format" toml:"format"`
}

func (c *Config) validate() error {
	switch c.LogFormat {
	case log.FormatText, log.FormatJSON:
	default:
		return fmt.Errorf("invalid log format %q, must be %q or %q", c.LogFormat, log.FormatText, log.FormatJSON)
	}
	switch c.OutputFormat {
	case FormatText, FormatJSON:
	default:
		return fmt.Errorf("invalid output format %q, must be %q or %q", c.OutputFormat, FormatText, FormatJSON)
	}
	if c.TraceBufferLimit < 0 {
		return fmt.Errorf("trace-buffer-limit must be >= 0, got %d", c.TraceBufferLimit)
	}
	if c.RetryMaxElapsed < 0 {
		return fmt.Errorf("retry-max-elapsed must be >= 0, got %v", c.RetryMaxElapsed)
	}
	return nil
}

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Log logs every setting to the global logger.
func (c *Config) Log() {
	log.Infof("Config:")
	obj := reflect.ValueOf(c).Elem()
	st := obj.Type()
	for i := 0; i < st.NumField(); i++ {
		name, ok := st.Field(i).Tag.Lookup("flag")
		if !ok {
			continue
		}
		log.Infof("\t%s: %s", name, getVal(obj.Field(i)))
	}
}
