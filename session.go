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
	"time"

	"golang.org/x/sys/unix"
)

// Session is a raw data socket connected to one (device, target, protocol)
// triple. It owns the descriptor exclusively.
type Session struct {
	logger  Logger
	onClose func(*Session)
	fd      int
	timeout time.Duration
	device  uint32
	target  uint32
	proto   Protocol
	closed  bool
}

// OpenTarget connects a raw data socket to target on device using proto.
// Only one session per channel may be open at a time; it is closed together
// with the channel.
func (c *Channel) OpenTarget(device, target uint32, proto Protocol) (*Session, error) {
	if !proto.Valid() {
		return nil, &OpError{
			Op:    "open target",
			Kind:  ErrProtocolMismatch,
			Errno: unix.EPROTONOSUPPORT,
			Err:   fmt.Errorf("unknown protocol %d", uint32(proto)),
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &OpError{Op: "open target", Kind: ErrClosed, Errno: unix.EBADF}
	}
	if c.session != nil {
		return nil, &OpError{Op: "open target", Kind: ErrSessionBusy, Errno: unix.EBUSY}
	}

	fd, err := dialTarget(device, target, proto)
	if err != nil {
		c.logger.Debugf("connect to device %d target %d (%s): %v", device, target, proto, err)
		return nil, newOpError("open target", ErrTargetConnect, err)
	}

	s := newSession(fd, device, target, proto, c.logger, c.config.sessionTimeout)
	s.onClose = c.releaseSession
	c.session = s
	c.logger.Debugf("opened session fd %d to device %d target %d (%s)", fd, device, target, proto)
	return s, nil
}

func (c *Channel) releaseSession(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == s {
		c.session = nil
	}
}

func newSession(fd int, device, target uint32, proto Protocol, logger Logger, timeout time.Duration) *Session {
	if logger == nil {
		logger = NopLogger()
	}
	return &Session{
		fd:      fd,
		device:  device,
		target:  target,
		proto:   proto,
		logger:  logger,
		timeout: timeout,
	}
}

// Fd returns the session descriptor for caller-side multiplexing.
func (s *Session) Fd() int {
	return s.fd
}

// Device returns the device index the session is bound to.
func (s *Session) Device() uint32 {
	return s.device
}

// Target returns the target index the session is bound to.
func (s *Session) Target() uint32 {
	return s.target
}

// Protocol returns the protocol the session was connected with.
func (s *Session) Protocol() Protocol {
	return s.proto
}

// SetTimeout bounds each readiness wait. Zero waits forever.
func (s *Session) SetTimeout(timeout time.Duration) error {
	if timeout < 0 {
		return ErrInvalidParameter
	}
	s.timeout = timeout
	return nil
}

// Mifare returns a Mifare transport over the session. The session must have
// been opened with ProtocolMifare.
func (s *Session) Mifare() (*MifareTag, error) {
	if s.proto != ProtocolMifare {
		return nil, &OpError{
			Op:    "mifare",
			Kind:  ErrProtocolMismatch,
			Errno: unix.EPROTONOSUPPORT,
			Err:   fmt.Errorf("session protocol is %s", s.proto),
		}
	}
	return NewMifareTag(s, s.logger), nil
}

// Send waits until the socket is writable and sends frame as one packet.
func (s *Session) Send(frame []byte) error {
	if s.closed {
		return &OpError{Op: "send", Kind: ErrClosed, Errno: unix.EBADF}
	}
	if err := s.waitReady(unix.POLLOUT); err != nil {
		return err
	}

	n, err := unix.Write(s.fd, frame)
	s.logger.Debugf("send(%d, % x) = %d", s.fd, frame, n)
	if err != nil {
		return newOpError("send", ErrTagIO, err)
	}
	if n != len(frame) {
		return &OpError{
			Op:    "send",
			Kind:  ErrTagIO,
			Errno: unix.EIO,
			Err:   fmt.Errorf("short send: %d of %d bytes", n, len(frame)),
		}
	}
	return nil
}

// Recv waits until the socket is readable and receives one packet into buf.
func (s *Session) Recv(buf []byte) (int, error) {
	if s.closed {
		return 0, &OpError{Op: "recv", Kind: ErrClosed, Errno: unix.EBADF}
	}
	if err := s.waitReady(unix.POLLIN); err != nil {
		return 0, err
	}

	n, err := unix.Read(s.fd, buf)
	s.logger.Debugf("recv(%d, %d) = %d", s.fd, len(buf), n)
	if err != nil {
		return 0, newOpError("recv", ErrTagIO, err)
	}
	return n, nil
}

// waitReady polls the descriptor for exactly the requested event. Interrupted
// polls are restarted; any other wakeup is an I/O error.
func (s *Session) waitReady(events int16) error {
	timeoutMs := pollTimeout(s.timeout)

	fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}} //nolint:gosec // fd fits in int32
	for {
		fds[0].Revents = 0
		n, err := unix.Poll(fds, timeoutMs)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			s.logger.Debugf("poll error: %v", err)
			return newOpError("poll", ErrTagIO, err)
		}
		if n == 0 {
			return &OpError{Op: "poll", Kind: ErrTimeout, Errno: unix.ETIMEDOUT}
		}
		if fds[0].Revents != events {
			s.logger.Debugf("poll error revents=0x%x", fds[0].Revents)
			return &OpError{
				Op:    "poll",
				Kind:  ErrTagIO,
				Errno: unix.EIO,
				Err:   fmt.Errorf("unexpected revents 0x%x", fds[0].Revents),
			}
		}
		return nil
	}
}

// pollTimeout converts d to a poll(2) timeout in milliseconds, rounding up
// so that a sub-millisecond timeout still waits. Zero means no timeout.
func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return -1
	}
	return int((d + time.Millisecond - 1) / time.Millisecond)
}

// Close closes the data socket. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.onClose != nil {
		s.onClose(s)
	}
	if err := unix.Close(s.fd); err != nil {
		return newOpError("close session", ErrTagIO, err)
	}
	return nil
}
