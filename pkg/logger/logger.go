// Copyright 2025 Kadir Pekel
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

// Package logger configures the process-wide slog logger. Init installs a
// handler that renders leveled, optionally colored lines and suppresses
// records emitted by third-party modules unless the level is debug, so a
// chatty dependency cannot drown the runtime's own output.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
)

// modulePrefix identifies first-party callers; records whose program
// counter resolves outside this prefix are dropped above debug level.
const modulePrefix = "github.com/flowpilot/agentcore"

var defaultLogger *slog.Logger

// ParseLevel maps a config string (debug, info, warn, error) onto a
// slog.Level. Unknown strings fall back to warn rather than erroring so a
// typo in a config file degrades loudly-enough instead of failing startup.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelWarn, nil
	}
}

// Init installs the process-wide default logger. format selects between
// "simple" (LEVEL message k=v) and "verbose" (timestamp first); anything
// else keeps the stock slog text format. ANSI color is applied only when
// output is a terminal. Third-party slog records are filtered out unless
// level is debug.
func Init(level slog.Level, output *os.File, format string) {
	base := slog.NewTextHandler(output, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: normalizeLevelAttr,
	})

	var handler slog.Handler = base
	switch format {
	case "simple", "":
		handler = &lineHandler{
			inner:     base,
			w:         output,
			color:     isTerminal(output),
			timestamp: false,
		}
	case "verbose":
		if isTerminal(output) {
			handler = &lineHandler{inner: base, w: output, color: true, timestamp: true}
		}
	}

	defaultLogger = slog.New(&firstPartyFilter{inner: handler, min: level})
	slog.SetDefault(defaultLogger)
}

// Default returns the logger installed by Init, initializing with info
// level and simple format on first use.
func Default() *slog.Logger {
	if defaultLogger == nil {
		Init(slog.LevelInfo, os.Stderr, "simple")
	}
	return defaultLogger
}

// GetLogger is an alias for Default kept for callers written against the
// older name.
func GetLogger() *slog.Logger { return Default() }

// OpenLogFile opens path for appending, creating it if absent. The second
// return value closes the file.
func OpenLogFile(path string) (*os.File, func(), error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func normalizeLevelAttr(groups []string, a slog.Attr) slog.Attr {
	if a.Key == slog.LevelKey && a.Value.String() == "WARNING" {
		return slog.String(slog.LevelKey, "WARN")
	}
	return a
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// firstPartyFilter drops records from outside this module unless the
// configured level is debug. The caller check happens in Handle rather
// than Enabled because only the record carries the program counter.
type firstPartyFilter struct {
	inner slog.Handler
	min   slog.Level
}

func (h *firstPartyFilter) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.min && h.inner.Enabled(ctx, level)
}

func (h *firstPartyFilter) Handle(ctx context.Context, record slog.Record) error {
	if h.min <= slog.LevelDebug || fromThisModule(record.PC) {
		return h.inner.Handle(ctx, record)
	}
	return nil
}

func (h *firstPartyFilter) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &firstPartyFilter{inner: h.inner.WithAttrs(attrs), min: h.min}
}

func (h *firstPartyFilter) WithGroup(name string) slog.Handler {
	return &firstPartyFilter{inner: h.inner.WithGroup(name), min: h.min}
}

func fromThisModule(pc uintptr) bool {
	if pc == 0 {
		return false
	}
	fn := runtime.FuncForPC(pc)
	if fn == nil {
		return false
	}
	file, _ := fn.FileLine(pc)
	return strings.Contains(fn.Name(), modulePrefix) ||
		strings.Contains(file, "agentcore/")
}

// lineHandler renders one record per line: optional timestamp, upper-case
// level (colored on terminals), message, then k=v attributes.
type lineHandler struct {
	inner     slog.Handler
	w         io.Writer
	color     bool
	timestamp bool
}

func (h *lineHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *lineHandler) Handle(ctx context.Context, record slog.Record) error {
	var b strings.Builder

	if h.timestamp && !record.Time.IsZero() {
		b.WriteString(record.Time.Format("2006/01/02 15:04:05 "))
	}

	level := strings.ToUpper(record.Level.String())
	if level == "WARNING" {
		level = "WARN"
	}
	if h.color {
		b.WriteString(levelColor(record.Level))
		b.WriteString(level)
		b.WriteString("\033[0m")
	} else {
		b.WriteString(level)
	}

	b.WriteString(" ")
	b.WriteString(record.Message)
	record.Attrs(func(a slog.Attr) bool {
		b.WriteString(" ")
		b.WriteString(a.Key)
		b.WriteString("=")
		b.WriteString(a.Value.String())
		return true
	})
	b.WriteString("\n")

	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &lineHandler{inner: h.inner.WithAttrs(attrs), w: h.w, color: h.color, timestamp: h.timestamp}
}

func (h *lineHandler) WithGroup(name string) slog.Handler {
	return &lineHandler{inner: h.inner.WithGroup(name), w: h.w, color: h.color, timestamp: h.timestamp}
}

func levelColor(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return "\033[31m"
	case level >= slog.LevelWarn:
		return "\033[33m"
	case level >= slog.LevelInfo:
		return "\033[36m"
	default:
		return "\033[90m"
	}
}
