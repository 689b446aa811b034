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
	"errors"
	"os"
	"time"

	"github.com/mdlayher/genetlink"
	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Action tells Wait whether to keep dispatching the targets of an event.
type Action int

const (
	// Continue dispatches the next target of the current event.
	Continue Action = iota
	// Stop skips the remaining targets of the current event.
	Stop
)

// TargetHandler is called once per discovered target, in the order the
// kernel listed them. The target is only valid during the call.
type TargetHandler func(device uint32, target Target) Action

// Wait blocks until a targets-found event arrives and calls handler for its
// targets. It returns after one event has been dispatched; call it again to
// wait for the next one.
//
// The context bounds the wait. Without a deadline Wait blocks until an event
// arrives or the channel is closed. Messages that are not targets-found
// events are ignored. A malformed event makes Wait return a *DecodeError;
// the channel stays usable.
func (c *Channel) Wait(ctx context.Context, handler TargetHandler) error {
	if handler == nil {
		return ErrInvalidParameter
	}
	conn, err := c.activeConn("wait")
	if err != nil {
		return err
	}

	deadline, _ := ctx.Deadline()
	if err := conn.SetReadDeadline(deadline); err != nil {
		return newOpError("wait", ErrReceive, err)
	}

	// the cancel callback may still be running when Wait returns; done
	// keeps it from touching the deadline of a later call
	var (
		mu   syncutil.Mutex
		done bool
	)
	stop := context.AfterFunc(ctx, func() {
		mu.Lock()
		defer mu.Unlock()
		if !done {
			_ = conn.SetReadDeadline(time.Unix(1, 0))
		}
	})
	defer func() {
		stop()
		mu.Lock()
		done = true
		_ = conn.SetReadDeadline(time.Time{})
		mu.Unlock()
	}()

	for {
		msg, err := c.nextMessage(ctx, conn)
		if err != nil {
			return err
		}
		if msg.Header.Command != abi.EventTargetsFound {
			c.logger.Debugf("ignoring message with command %d", msg.Header.Command)
			continue
		}

		ev, err := decodeTargetsFound(msg.Data)
		if err != nil {
			c.logger.Debugf("dropping targets found event: %v", err)
			return err
		}
		for _, skipped := range ev.Skipped {
			c.logger.Debugf("device %d: %v", ev.Device, skipped)
		}

		c.logger.Debugf("device %d found %d target(s)", ev.Device, len(ev.Targets))
		for _, target := range ev.Targets {
			if handler(ev.Device, target) == Stop {
				break
			}
		}
		return nil
	}
}

// nextMessage returns the oldest unprocessed message, receiving more from
// the transport when none are buffered.
func (c *Channel) nextMessage(ctx context.Context, conn Conn) (genetlink.Message, error) {
	for len(c.pending) == 0 {
		msgs, _, err := conn.Receive()
		if err == nil {
			c.pending = append(c.pending, msgs...)
			continue
		}

		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, os.ErrDeadlineExceeded):
			cause := ctx.Err()
			if cause == nil {
				cause = err
			}
			return genetlink.Message{}, &OpError{Op: "wait", Kind: ErrTimeout, Errno: unix.EAGAIN, Err: cause}
		}

		if _, closedErr := c.activeConn("wait"); closedErr != nil {
			return genetlink.Message{}, closedErr
		}
		return genetlink.Message{}, newOpError("wait", ErrReceive, err)
	}

	msg := c.pending[0]
	c.pending = c.pending[1:]
	return msg, nil
}
