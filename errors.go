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
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// Error categories. Every error returned by this package matches one of
// these with errors.Is.
var (
	// Control channel setup
	ErrConnect       = errors.New("control transport connect failed")
	ErrResolveFamily = errors.New("nfc family resolution failed")
	ErrResolveGroup  = errors.New("nfc events group resolution failed")
	ErrSubscribe     = errors.New("events group subscription failed")

	// Control channel I/O
	ErrSend    = errors.New("message send failed")
	ErrReceive = errors.New("message receive failed")
	ErrDecode  = errors.New("message decode failed")
	ErrClosed  = errors.New("channel is closed")
	ErrTimeout = errors.New("operation timed out")

	// Target sessions and tag I/O
	ErrTargetConnect    = errors.New("target connect failed")
	ErrSessionBusy      = errors.New("a target session is already open")
	ErrProtocolMismatch = errors.New("target protocol mismatch")
	ErrTagStatus        = errors.New("tag returned non-zero status")
	ErrTagIO            = errors.New("tag I/O failed")
	ErrInvalidLength    = errors.New("invalid tag data length")

	// Data errors
	ErrInvalidParameter = errors.New("invalid parameter")
)

// OpError describes a failed operation. Kind is one of the package error
// categories, Errno is the POSIX-style code the failure maps to.
type OpError struct {
	Err   error      // Underlying error, may be nil
	Kind  error      // Error category
	Op    string     // Operation that failed
	Errno unix.Errno // Mapped POSIX error code
}

func (e *OpError) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	switch {
	case e.Err != nil:
		msg += ": " + e.Err.Error()
	case e.Errno != 0:
		msg += ": " + e.Errno.Error()
	}
	return msg
}

// Unwrap exposes the category, the errno and the cause to errors.Is/As.
func (e *OpError) Unwrap() []error {
	errs := make([]error, 0, 3)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Errno != 0 {
		errs = append(errs, e.Errno)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Timeout reports whether the operation gave up waiting.
func (e *OpError) Timeout() bool {
	return errors.Is(e.Kind, ErrTimeout) || e.Errno == unix.EAGAIN || e.Errno == unix.ETIMEDOUT
}

func newOpError(op string, kind, err error) *OpError {
	return &OpError{
		Op:    op,
		Kind:  kind,
		Err:   err,
		Errno: mapErrno(err),
	}
}

// mapErrno maps a transport failure onto the POSIX error vocabulary. This is
// the only place transport-specific failures are translated.
func mapErrno(err error) unix.Errno {
	if err == nil {
		return 0
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}

	switch {
	case errors.Is(err, os.ErrDeadlineExceeded):
		return unix.EAGAIN
	case errors.Is(err, net.ErrClosed), errors.Is(err, os.ErrClosed), errors.Is(err, ErrClosed):
		return unix.EBADF
	case errors.Is(err, os.ErrNotExist):
		return unix.ENOENT
	case errors.Is(err, os.ErrExist):
		return unix.EEXIST
	case errors.Is(err, os.ErrPermission):
		return unix.EACCES
	case errors.Is(err, ErrInvalidParameter), errors.Is(err, ErrInvalidLength):
		return unix.EINVAL
	case errors.Is(err, ErrSessionBusy):
		return unix.EBUSY
	case errors.Is(err, ErrProtocolMismatch):
		return unix.EPROTONOSUPPORT
	default:
		return unix.EIO
	}
}

// Errno returns the POSIX error code carried by err, or 0.
func Errno(err error) unix.Errno {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Errno
	}
	var errno unix.Errno
	if errors.As(err, &errno) {
		return errno
	}
	return 0
}

// DecodeError reports a reply or event that lacks a required attribute or
// carries a malformed one.
type DecodeError struct {
	Err     error
	Reason  string
	Command uint8
	Attr    uint16
}

func (e *DecodeError) Error() string {
	base := fmt.Sprintf("decode command %d", e.Command)
	if e.Attr != 0 {
		base += fmt.Sprintf(" attribute %d", e.Attr)
	}
	base += ": " + e.Reason
	if e.Err != nil {
		base += ": " + e.Err.Error()
	}
	return base
}

func (e *DecodeError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrDecode, e.Err}
	}
	return []error{ErrDecode}
}

// IsTimeout reports whether err is a timed out wait.
func IsTimeout(err error) bool {
	var oe *OpError
	if errors.As(err, &oe) {
		return oe.Timeout()
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, os.ErrDeadlineExceeded)
}

// IsFatal reports whether err means the channel or session can no longer be
// used and must be reopened.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrClosed) {
		return true
	}
	switch Errno(err) {
	case unix.EBADF, unix.ENODEV, unix.ENXIO:
		return true
	default:
		return false
	}
}
