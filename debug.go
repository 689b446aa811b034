// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
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

package nfcctl

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Logger is the diagnostic sink handed to a Channel and everything it
// creates. Implementations must be safe to call from the goroutine that
// owns the channel.
type Logger interface {
	Debugf(format string, args ...any)
}

type nopLogger struct{}

func (nopLogger) Debugf(string, ...any) {}

// NopLogger discards all diagnostics.
func NopLogger() Logger { return nopLogger{} }

// WriterLogger writes timestamped debug lines to an io.Writer.
type WriterLogger struct {
	w  io.Writer
	mu syncutil.Mutex
}

// NewWriterLogger returns a Logger writing to w.
func NewWriterLogger(w io.Writer) *WriterLogger {
	return &WriterLogger{w: w}
}

// Debugf writes one line prefixed with a millisecond timestamp.
func (l *WriterLogger) Debugf(format string, args ...any) {
	message := fmt.Sprintf(format, args...)
	timestamp := time.Now().Format("15:04:05.000")

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = fmt.Fprintf(l.w, "%s DEBUG: %s\n", timestamp, message)
}

// LoggerFromEnv returns a stderr logger when NFCCTL_DEBUG or DEBUG is set
// and a no-op logger otherwise.
func LoggerFromEnv() Logger {
	if os.Getenv("NFCCTL_DEBUG") != "" || os.Getenv("DEBUG") != "" {
		return NewWriterLogger(os.Stderr)
	}
	return NopLogger()
}

// SlogLogger forwards diagnostics to an slog.Logger at debug level.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger creates a Logger backed by logger.
func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	return &SlogLogger{logger: logger}
}

// Debugf logs the formatted message at slog.LevelDebug.
func (l *SlogLogger) Debugf(format string, args ...any) {
	if !l.logger.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.logger.LogAttrs(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...),
		slog.String("component", "nfcctl"))
}

// MultiLogger fans diagnostics out to several sinks.
type MultiLogger []Logger

// Debugf forwards to every sink.
func (m MultiLogger) Debugf(format string, args ...any) {
	for _, l := range m {
		l.Debugf(format, args...)
	}
}
