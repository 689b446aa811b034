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
	"fmt"

	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Virtual tag geometry: 16 blocks of 4 bytes.
const (
	TagBlockSize = 4
	TagBlocks    = 16
	TagSize      = TagBlockSize * TagBlocks

	tagCmdRead  = 0x30
	tagCmdWrite = 0xA2
)

// ErrNoReply is returned by VirtualTag.Recv when no reply is queued.
var ErrNoReply = errors.New("virtual tag: no reply queued")

// Frame is one frame observed by a VirtualTag, together with the number of
// replies the caller had consumed when it was sent.
type Frame struct {
	Data     []byte
	Consumed int
}

// VirtualTag simulates a Mifare Ultralight style tag behind a raw data
// socket. Every frame sent queues one reply; Recv hands replies out in
// order. It satisfies the frame endpoint used by the Mifare transport.
type VirtualTag struct {
	sendErrs map[int]error
	recvErrs map[int]error
	statuses map[int]byte
	replies  [][]byte
	frames   []Frame
	memory   [TagSize]byte
	consumed int
	mu       syncutil.Mutex
}

// NewVirtualTag returns a tag whose memory is zeroed.
func NewVirtualTag() *VirtualTag {
	return &VirtualTag{
		sendErrs: make(map[int]error),
		recvErrs: make(map[int]error),
		statuses: make(map[int]byte),
	}
}

// Load copies data into memory starting at block.
func (v *VirtualTag) Load(block int, data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	copy(v.memory[block*TagBlockSize:], data)
}

// Memory returns a copy of the tag memory.
func (v *VirtualTag) Memory() []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]byte, TagSize)
	copy(out, v.memory[:])
	return out
}

// Frames returns the frames sent so far.
func (v *VirtualTag) Frames() []Frame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Frame, len(v.frames))
	copy(out, v.frames)
	return out
}

// FailSend makes the n-th Send (0-based) fail with err without queueing a
// reply.
func (v *VirtualTag) FailSend(n int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.sendErrs[n] = err
}

// FailRecv makes the n-th Recv (0-based) fail with err. The reply it would
// have returned is dropped.
func (v *VirtualTag) FailRecv(n int, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.recvErrs[n] = err
}

// SetStatus makes the n-th reply (0-based) carry status instead of 0. A
// failed WRITE leaves memory untouched.
func (v *VirtualTag) SetStatus(n int, status byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.statuses[n] = status
}

// Send processes one command frame.
func (v *VirtualTag) Send(frame []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	index := len(v.frames)
	v.frames = append(v.frames, Frame{
		Data:     append([]byte(nil), frame...),
		Consumed: v.consumed,
	})
	if err, ok := v.sendErrs[index]; ok {
		return err
	}
	if len(frame) < 2 {
		return fmt.Errorf("virtual tag: frame too short: % x", frame)
	}

	status := v.statuses[len(v.replies)+v.consumed]
	block := int(frame[1])

	switch frame[0] {
	case tagCmdRead:
		if block >= TagBlocks {
			return fmt.Errorf("virtual tag: read of block %d", block)
		}
		out := make([]byte, 1+4*TagBlockSize)
		out[0] = status
		if status == 0 {
			for i := range 4 * TagBlockSize {
				// READ wraps around to block 0 past the last block
				out[1+i] = v.memory[(block*TagBlockSize+i)%TagSize]
			}
		}
		v.replies = append(v.replies, out)
	case tagCmdWrite:
		if len(frame) != 2+TagBlockSize || block >= TagBlocks {
			return fmt.Errorf("virtual tag: bad write frame % x", frame)
		}
		if status == 0 {
			copy(v.memory[block*TagBlockSize:], frame[2:])
		}
		v.replies = append(v.replies, []byte{status})
	default:
		return fmt.Errorf("virtual tag: unknown command 0x%02x", frame[0])
	}
	return nil
}

// Recv returns the oldest queued reply.
func (v *VirtualTag) Recv(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(v.replies) == 0 {
		return 0, ErrNoReply
	}
	next := v.replies[0]
	v.replies = v.replies[1:]
	index := v.consumed
	v.consumed++

	if err, ok := v.recvErrs[index]; ok {
		return 0, err
	}
	return copy(buf, next), nil
}
