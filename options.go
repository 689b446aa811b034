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
	"syscall"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// Conn is the generic netlink connection a Channel drives. It is satisfied
// by *genetlink.Conn.
type Conn interface {
	GetFamily(name string) (genetlink.Family, error)
	JoinGroup(group uint32) error
	Execute(m genetlink.Message, family uint16, flags netlink.HeaderFlags) ([]genetlink.Message, error)
	Receive() ([]genetlink.Message, []netlink.Message, error)
	SetReadDeadline(t time.Time) error
	SyscallConn() (syscall.RawConn, error)
	Close() error
}

// DialFunc opens the control transport.
type DialFunc func() (Conn, error)

func dialGenetlink() (Conn, error) {
	conn, err := genetlink.Dial(nil)
	if err != nil {
		return nil, err //nolint:wrapcheck // wrapped by Open
	}
	return conn, nil
}

// Option configures a Channel.
type Option func(*channelConfig) error

type channelConfig struct {
	logger         Logger
	dial           DialFunc
	sessionTimeout time.Duration
}

func defaultChannelConfig() *channelConfig {
	return &channelConfig{
		logger: NopLogger(),
		dial:   dialGenetlink,
	}
}

// WithLogger sets the diagnostic sink for the channel and the sessions it
// opens.
func WithLogger(logger Logger) Option {
	return func(c *channelConfig) error {
		if logger == nil {
			logger = NopLogger()
		}
		c.logger = logger
		return nil
	}
}

// WithDialer replaces the generic netlink dialer.
func WithDialer(dial DialFunc) Option {
	return func(c *channelConfig) error {
		if dial == nil {
			return ErrInvalidParameter
		}
		c.dial = dial
		return nil
	}
}

// WithSessionTimeout bounds each readiness wait of the target sessions opened
// by the channel. Zero, the default, waits forever.
func WithSessionTimeout(timeout time.Duration) Option {
	return func(c *channelConfig) error {
		if timeout < 0 {
			return ErrInvalidParameter
		}
		c.sessionTimeout = timeout
		return nil
	}
}
