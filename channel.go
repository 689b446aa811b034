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

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Channel is a connection to the kernel NFC generic netlink family,
// subscribed to its events multicast group.
//
// A Channel is meant to be driven from one goroutine. Close may be called
// from another goroutine to abort a blocked Wait.
type Channel struct {
	conn    Conn
	logger  Logger
	session *Session
	pending []genetlink.Message
	family  genetlink.Family
	config  channelConfig
	groupID uint32
	mu      syncutil.Mutex
	closed  bool
}

// Open connects to the control transport, resolves the "nfc" family and its
// "events" group and subscribes to it. On failure everything acquired so far
// is released.
func Open(opts ...Option) (*Channel, error) {
	cfg := defaultChannelConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("invalid channel option: %w", err)
		}
	}

	conn, err := cfg.dial()
	if err != nil {
		cfg.logger.Debugf("error connecting to generic netlink: %v", err)
		return nil, newOpError("connect", ErrConnect, err)
	}

	ch := &Channel{
		conn:   conn,
		logger: cfg.logger,
		config: *cfg,
	}
	if err := ch.subscribe(); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			cfg.logger.Debugf("closing control transport after failed setup: %v", closeErr)
		}
		return nil, err
	}

	ch.logger.Debugf("nfc family id %d, events group id %d", ch.family.ID, ch.groupID)
	return ch, nil
}

func (c *Channel) subscribe() error {
	family, err := c.conn.GetFamily(abi.FamilyName)
	if err != nil {
		c.logger.Debugf("error resolving genl NFC family: %v", err)
		return newOpError("resolve family", ErrResolveFamily, err)
	}
	if family.ID == 0 {
		return &OpError{Op: "resolve family", Kind: ErrResolveFamily, Errno: unix.ENOENT}
	}
	c.family = family

	for _, group := range family.Groups {
		if group.Name == abi.EventsGroup {
			c.groupID = group.ID
			break
		}
	}
	if c.groupID == 0 {
		c.logger.Debugf("family %q has no usable %q group", abi.FamilyName, abi.EventsGroup)
		return &OpError{Op: "resolve group", Kind: ErrResolveGroup, Errno: unix.ENOENT}
	}

	if err := c.conn.JoinGroup(c.groupID); err != nil {
		c.logger.Debugf("error joining group %d: %v", c.groupID, err)
		return newOpError("subscribe", ErrSubscribe, err)
	}
	return nil
}

// Close releases the control transport and any open target session. It is
// safe to call more than once.
func (c *Channel) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	session := c.session
	c.session = nil
	c.mu.Unlock()

	var errs []error
	if session != nil {
		if err := session.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := c.conn.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close control transport: %w", err))
	}
	return errors.Join(errs...)
}

// FamilyID returns the resolved generic netlink family id.
func (c *Channel) FamilyID() uint16 {
	return c.family.ID
}

// GroupID returns the resolved events multicast group id.
func (c *Channel) GroupID() uint32 {
	return c.groupID
}

// Fd returns the control socket descriptor so callers can multiplex several
// channels. The descriptor stays owned by the channel.
func (c *Channel) Fd() (int, error) {
	conn, err := c.activeConn("fd")
	if err != nil {
		return -1, err
	}

	raw, err := conn.SyscallConn()
	if err != nil {
		return -1, newOpError("fd", ErrReceive, err)
	}

	fd := -1
	if err := raw.Control(func(s uintptr) { fd = int(s) }); err != nil {
		return -1, newOpError("fd", ErrReceive, err)
	}
	return fd, nil
}

func (c *Channel) activeConn(op string) (Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, &OpError{Op: op, Kind: ErrClosed, Errno: unix.EBADF}
	}
	return c.conn, nil
}

// execute sends one request and collects its replies.
func (c *Channel) execute(op string, cmd uint8, build func(*netlink.AttributeEncoder),
	flags netlink.HeaderFlags,
) ([]genetlink.Message, error) {
	conn, err := c.activeConn(op)
	if err != nil {
		return nil, err
	}

	req, err := encodeRequest(cmd, build)
	if err != nil {
		return nil, newOpError(op, ErrSend, err)
	}

	msgs, err := conn.Execute(req, c.family.ID, flags)
	if err != nil {
		c.logger.Debugf("%s: %v", op, err)
		kind := ErrReceive
		var nerr *netlink.OpError
		if errors.As(err, &nerr) && nerr.Op == "send" {
			kind = ErrSend
		}
		return nil, newOpError(op, kind, err)
	}
	return msgs, nil
}
