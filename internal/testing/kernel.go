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

package testing

import (
	"errors"
	"net"
	"os"
	"syscall"
	"time"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Default ids handed out by a fresh Kernel.
const (
	DefaultFamilyID uint16 = 0x1c
	DefaultGroupID  uint32 = 0x07
	DefaultFd              = 42
)

// Request records one command executed against the fake kernel.
type Request struct {
	Attrs   map[uint16]uint32
	Flags   netlink.HeaderFlags
	Family  uint16
	Command uint8
}

// Target describes a target placed in a fake targets-found event.
type Target struct {
	Index     uint32
	Protocols uint32
}

// Kernel is an in-memory stand-in for the kernel side of the "nfc" generic
// netlink family. Connections are opened with Dial.
type Kernel struct {
	dialErr   error
	familyErr error
	joinErr   error
	results   map[uint8][]error
	devices   map[uint32][]byte
	events    chan []genetlink.Message
	family    genetlink.Family
	dump      [][]byte
	requests  []Request
	open      int
	dials     int
	mu        syncutil.Mutex
}

// NewKernel returns a kernel exposing the nfc family with an events group.
func NewKernel() *Kernel {
	return &Kernel{
		family: genetlink.Family{
			ID:      DefaultFamilyID,
			Version: abi.FamilyVersion,
			Name:    abi.FamilyName,
			Groups: []genetlink.MulticastGroup{
				{ID: DefaultGroupID, Name: abi.EventsGroup},
			},
		},
		results: make(map[uint8][]error),
		devices: make(map[uint32][]byte),
		events:  make(chan []genetlink.Message, 16),
	}
}

// SetDialError makes the next dials fail with err (nil clears it).
func (k *Kernel) SetDialError(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dialErr = err
}

// SetFamilyError makes family resolution fail with err (nil clears it).
func (k *Kernel) SetFamilyError(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.familyErr = err
}

// SetJoinError makes group subscription fail with err (nil clears it).
func (k *Kernel) SetJoinError(err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.joinErr = err
}

// SetGroupID changes the id reported for the events group. Zero reports an
// unusable group.
func (k *Kernel) SetGroupID(id uint32) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.family.Groups = []genetlink.MulticastGroup{{ID: id, Name: abi.EventsGroup}}
}

// RemoveGroups drops every multicast group from the family.
func (k *Kernel) RemoveGroups() {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.family.Groups = nil
}

// AddDevice registers a well-formed device; it shows up in dumps and in
// single-device requests.
func (k *Kernel) AddDevice(index uint32, name string, protocols uint32) {
	data := EncodeDevice(index, name, protocols)

	k.mu.Lock()
	defer k.mu.Unlock()
	k.dump = append(k.dump, data)
	k.devices[index] = data
}

// AddRawDeviceRecord appends an arbitrary attribute payload to the dump.
func (k *Kernel) AddRawDeviceRecord(data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dump = append(k.dump, data)
}

// SetRawDevice makes a single-device request for index reply with data.
func (k *Kernel) SetRawDevice(index uint32, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.devices[index] = data
}

// QueueResult scripts the outcome of the next execution of cmd. Results are
// consumed in order; once exhausted, commands succeed.
func (k *Kernel) QueueResult(cmd uint8, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.results[cmd] = append(k.results[cmd], err)
}

// Requests returns the commands executed so far.
func (k *Kernel) Requests() []Request {
	k.mu.Lock()
	defer k.mu.Unlock()
	out := make([]Request, len(k.requests))
	copy(out, k.requests)
	return out
}

// Commands returns the command codes executed so far, in order.
func (k *Kernel) Commands() []uint8 {
	reqs := k.Requests()
	out := make([]uint8, len(reqs))
	for i, r := range reqs {
		out[i] = r.Command
	}
	return out
}

// OpenConns returns the number of connections not yet closed.
func (k *Kernel) OpenConns() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.open
}

// Dials returns the number of successful dials.
func (k *Kernel) Dials() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.dials
}

// EmitTargetsFound pushes a targets-found event to subscribed connections.
func (k *Kernel) EmitTargetsFound(device uint32, targets ...Target) {
	k.Emit(TargetsFoundMessage(device, targets...))
}

// Emit pushes messages to subscribed connections as one receive batch.
func (k *Kernel) Emit(msgs ...genetlink.Message) {
	k.events <- msgs
}

// Dial opens a connection to the fake kernel.
func (k *Kernel) Dial() (*Conn, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.dialErr != nil {
		return nil, k.dialErr
	}
	k.open++
	k.dials++
	return &Conn{
		k:    k,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}, nil
}

func (k *Kernel) popResult(cmd uint8) error {
	queue := k.results[cmd]
	if len(queue) == 0 {
		return nil
	}
	k.results[cmd] = queue[1:]
	return queue[0]
}

// Conn is one fake generic netlink connection. It satisfies the channel's
// connection interface.
type Conn struct {
	deadline time.Time
	k        *Kernel
	wake     chan struct{}
	done     chan struct{}
	joined   []uint32
	mu       syncutil.Mutex
	closed   bool
}

// GetFamily resolves the fake family by name.
func (c *Conn) GetFamily(name string) (genetlink.Family, error) {
	if err := c.checkOpen("receive"); err != nil {
		return genetlink.Family{}, err
	}

	c.k.mu.Lock()
	defer c.k.mu.Unlock()
	if c.k.familyErr != nil {
		return genetlink.Family{}, c.k.familyErr
	}
	if name != c.k.family.Name {
		return genetlink.Family{}, &netlink.OpError{Op: "receive", Err: unix.ENOENT}
	}
	family := c.k.family
	family.Groups = append([]genetlink.MulticastGroup(nil), c.k.family.Groups...)
	return family, nil
}

// JoinGroup subscribes the connection to a multicast group.
func (c *Conn) JoinGroup(group uint32) error {
	if err := c.checkOpen("join-group"); err != nil {
		return err
	}

	c.k.mu.Lock()
	joinErr := c.k.joinErr
	c.k.mu.Unlock()
	if joinErr != nil {
		return joinErr
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, group)
	return nil
}

// Joined returns the groups the connection subscribed to.
func (c *Conn) Joined() []uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]uint32(nil), c.joined...)
}

// Execute records the request and answers it like the kernel would.
func (c *Conn) Execute(m genetlink.Message, family uint16, flags netlink.HeaderFlags) ([]genetlink.Message, error) {
	if err := c.checkOpen("send"); err != nil {
		return nil, err
	}

	attrs, err := decodeU32Attrs(m.Data)
	if err != nil {
		return nil, &netlink.OpError{Op: "receive", Err: unix.EINVAL}
	}

	k := c.k
	k.mu.Lock()
	defer k.mu.Unlock()

	k.requests = append(k.requests, Request{
		Command: m.Header.Command,
		Flags:   flags,
		Family:  family,
		Attrs:   attrs,
	})

	if family != k.family.ID {
		return nil, &netlink.OpError{Op: "receive", Err: unix.ENOENT}
	}
	if err := k.popResult(m.Header.Command); err != nil {
		return nil, err
	}

	if m.Header.Command != abi.CmdGetDevice {
		return nil, nil
	}

	if flags&netlink.Dump != 0 {
		replies := make([]genetlink.Message, 0, len(k.dump))
		for _, data := range k.dump {
			replies = append(replies, reply(abi.CmdGetDevice, data))
		}
		return replies, nil
	}

	data, ok := k.devices[attrs[abi.AttrDeviceIndex]]
	if !ok {
		return nil, &netlink.OpError{Op: "receive", Err: unix.ENODEV}
	}
	return []genetlink.Message{reply(abi.CmdGetDevice, data)}, nil
}

// Receive blocks until an event batch is available for a subscribed
// connection, the read deadline passes or the connection is closed.
func (c *Conn) Receive() ([]genetlink.Message, []netlink.Message, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, nil, &netlink.OpError{Op: "receive", Err: net.ErrClosed}
		}
		deadline := c.deadline
		var events chan []genetlink.Message
		if len(c.joined) > 0 {
			events = c.k.events
		}
		c.mu.Unlock()

		var timeout <-chan time.Time
		var timer *time.Timer
		if !deadline.IsZero() {
			wait := time.Until(deadline)
			if wait <= 0 {
				return nil, nil, &netlink.OpError{Op: "receive", Err: os.ErrDeadlineExceeded}
			}
			timer = time.NewTimer(wait)
			timeout = timer.C
		}

		select {
		case msgs := <-events:
			stopTimer(timer)
			return msgs, make([]netlink.Message, len(msgs)), nil
		case <-timeout:
		case <-c.wake:
			stopTimer(timer)
		case <-c.done:
			stopTimer(timer)
		}
	}
}

// SetReadDeadline sets the deadline for Receive and wakes a blocked call.
func (c *Conn) SetReadDeadline(t time.Time) error {
	c.mu.Lock()
	c.deadline = t
	c.mu.Unlock()

	select {
	case c.wake <- struct{}{}:
	default:
	}
	return nil
}

// SyscallConn exposes a fake descriptor.
func (c *Conn) SyscallConn() (syscall.RawConn, error) {
	if err := c.checkOpen("syscall-conn"); err != nil {
		return nil, err
	}
	return rawConn{fd: DefaultFd}, nil
}

// Close releases the connection.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return errors.New("use of closed fake netlink connection")
	}
	c.closed = true
	close(c.done)
	c.mu.Unlock()

	c.k.mu.Lock()
	c.k.open--
	c.k.mu.Unlock()
	return nil
}

func (c *Conn) checkOpen(op string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &netlink.OpError{Op: op, Err: net.ErrClosed}
	}
	return nil
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

type rawConn struct {
	fd uintptr
}

func (r rawConn) Control(f func(fd uintptr)) error {
	f(r.fd)
	return nil
}

func (rawConn) Read(func(fd uintptr) bool) error {
	return errors.New("fake raw conn does not read")
}

func (rawConn) Write(func(fd uintptr) bool) error {
	return errors.New("fake raw conn does not write")
}

func reply(cmd uint8, data []byte) genetlink.Message {
	return genetlink.Message{
		Header: genetlink.Header{Command: cmd, Version: abi.FamilyVersion},
		Data:   data,
	}
}

func decodeU32Attrs(data []byte) (map[uint16]uint32, error) {
	attrs := make(map[uint16]uint32)
	if len(data) == 0 {
		return attrs, nil
	}
	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return nil, err //nolint:wrapcheck // test fixture
	}
	for ad.Next() {
		if len(ad.Bytes()) == 4 {
			attrs[ad.Type()] = ad.Uint32()
		}
	}
	return attrs, ad.Err() //nolint:wrapcheck // test fixture
}

// EncodeDevice encodes a GET_DEVICE reply payload.
func EncodeDevice(index uint32, name string, protocols uint32) []byte {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(abi.AttrDeviceIndex, index)
	ae.String(abi.AttrDeviceName, name)
	ae.Uint32(abi.AttrProtocols, protocols)
	return mustEncode(ae)
}

// EncodeAttrs encodes u32 attributes in the given order. Use it to build
// records with missing or extra attributes.
func EncodeAttrs(attrs ...Attr) []byte {
	ae := netlink.NewAttributeEncoder()
	for _, a := range attrs {
		switch v := a.Value.(type) {
		case uint32:
			ae.Uint32(a.Type, v)
		case string:
			ae.String(a.Type, v)
		case []byte:
			ae.Bytes(a.Type, v)
		}
	}
	return mustEncode(ae)
}

// Attr is one attribute for EncodeAttrs. Value is a uint32, string or
// []byte.
type Attr struct {
	Value any
	Type  uint16
}

// TargetsFoundMessage builds a TARGETS_FOUND event for device.
func TargetsFoundMessage(device uint32, targets ...Target) genetlink.Message {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(abi.AttrDeviceIndex, device)
	ae.Nested(abi.AttrTargets, func(nae *netlink.AttributeEncoder) error {
		for i, t := range targets {
			nae.Nested(uint16(i+1), func(tae *netlink.AttributeEncoder) error { //nolint:gosec // small test lists
				tae.Uint32(abi.TargetAttrTargetIndex, t.Index)
				tae.Uint32(abi.TargetAttrSupportedProtocols, t.Protocols)
				return nil
			})
		}
		return nil
	})
	return reply(abi.EventTargetsFound, mustEncode(ae))
}

// EventMessage wraps an arbitrary payload as a message with command cmd.
func EventMessage(cmd uint8, data []byte) genetlink.Message {
	return reply(cmd, data)
}

func mustEncode(ae *netlink.AttributeEncoder) []byte {
	b, err := ae.Encode()
	if err != nil {
		panic(err)
	}
	return b
}
