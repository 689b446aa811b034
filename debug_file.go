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
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// SessionLog is a Logger backed by a per-run log file.
type SessionLog struct {
	*WriterLogger
	file *os.File
	path string
}

// OpenSessionLog creates nfcctl_<timestamp>.log in dir ("" means the
// current directory) and writes a session header to it.
func OpenSessionLog(dir string) (*SessionLog, error) {
	filename := fmt.Sprintf("nfcctl_%s.log", time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, filename)

	logFile, err := os.Create(path) //nolint:gosec // filename is constructed internally
	if err != nil {
		return nil, fmt.Errorf("failed to create session log: %w", err)
	}

	writeSessionHeader(logFile)

	return &SessionLog{
		WriterLogger: NewWriterLogger(logFile),
		file:         logFile,
		path:         path,
	}, nil
}

// Path returns the log file path.
func (s *SessionLog) Path() string {
	return s.path
}

// Close writes the session footer and closes the file.
func (s *SessionLog) Close() error {
	if s.file == nil {
		return nil
	}
	timestamp := time.Now().Format("15:04:05.000")
	_, _ = fmt.Fprintf(s.file, "\n%s === Session ended ===\n", timestamp)

	err := s.file.Close()
	s.file = nil
	if err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	return nil
}

func writeSessionHeader(writer io.Writer) {
	_, _ = fmt.Fprint(writer, "=== nfcctl Debug Session Log ===\n")
	_, _ = fmt.Fprintf(writer, "Started: %s\n", time.Now().Format(time.RFC3339))
	_, _ = fmt.Fprintf(writer, "PID: %d\n", os.Getpid())
	_, _ = fmt.Fprintf(writer, "OS: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	_, _ = fmt.Fprintf(writer, "Go Version: %s\n", runtime.Version())
	_, _ = fmt.Fprintf(writer, "Command Line: %s\n", strings.Join(os.Args, " "))
	_, _ = fmt.Fprint(writer, "================================\n\n")
}
