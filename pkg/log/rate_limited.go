// Copyright 2022 The gVisor Authors.
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

package log

import (
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitedLogger throttles each level independently, so a flood of debug
// traces never hides a warning.
type rateLimitedLogger struct {
	logger  Logger
	limits  [Debug + 1]*rate.Limiter
	dropped atomic.Uint64
}

func (rl *rateLimitedLogger) allow(level Level) bool {
	if rl.limits[level].Allow() {
		return true
	}
	rl.dropped.Add(1)
	return false
}

func (rl *rateLimitedLogger) Debugf(format string, v ...any) {
	if rl.logger.IsLogging(Debug) && rl.allow(Debug) {
		rl.logger.Debugf(format, v...)
	}
}

func (rl *rateLimitedLogger) Infof(format string, v ...any) {
	if rl.logger.IsLogging(Info) && rl.allow(Info) {
		rl.logger.Infof(format, v...)
	}
}

func (rl *rateLimitedLogger) Warningf(format string, v ...any) {
	if rl.logger.IsLogging(Warning) && rl.allow(Warning) {
		rl.logger.Warningf(format, v...)
	}
}

func (rl *rateLimitedLogger) IsLogging(level Level) bool {
	return rl.logger.IsLogging(level)
}

// Dropped returns the number of messages suppressed so far.
func (rl *rateLimitedLogger) Dropped() uint64 {
	return rl.dropped.Load()
}

// DropCounter is implemented by rate-limited loggers.
type DropCounter interface {
	Dropped() uint64
}

// BasicRateLimitedLogger returns a Logger that logs to the global logger no
// more than once per the provided duration, per level.
func BasicRateLimitedLogger(every time.Duration) Logger {
	return RateLimitedLogger(Global(), every, 1)
}

// RateLimitedLogger returns a Logger that logs to the provided logger at most
// once per the provided duration per level, allowing bursts of up to burst
// messages.
func RateLimitedLogger(logger Logger, every time.Duration, burst int) Logger {
	rl := &rateLimitedLogger{logger: logger}
	for i := range rl.limits {
		rl.limits[i] = rate.NewLimiter(rate.Every(every), burst)
	}
	return rl
}
