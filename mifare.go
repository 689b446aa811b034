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

	"golang.org/x/sys/unix"
)

// Tag memory is 16 blocks of 4 bytes. Blocks 0-3 hold the UID, lock and
// capability bytes and are never addressed here; blocks 4-15 are the data
// region read and written by MifareTag.

// MIFARE commands
const (
	mifareCmdRead  = 0x30
	mifareCmdWrite = 0xA2
)

// MIFARE memory structure
const (
	mifareBlockSize      = 4
	mifareDataBlockStart = 4
	mifareDataBlockEnd   = 15
	mifareReadBlocks     = 4 // blocks returned by one READ
	mifareReadSize       = mifareReadBlocks * mifareBlockSize
	mifareStatusSize     = 1

	// MifareMaxSize is the size of the data region in bytes.
	MifareMaxSize = (mifareDataBlockEnd - mifareDataBlockStart + 1) * mifareBlockSize
)

// Endpoint carries tag frames. Send and Recv block until the underlying
// descriptor is ready; *Session is the production implementation.
type Endpoint interface {
	Send(frame []byte) error
	Recv(buf []byte) (int, error)
}

// MifareTag reads and writes the data region of a Mifare-family tag.
type MifareTag struct {
	ep     Endpoint
	logger Logger
}

// NewMifareTag returns a transport over ep. A nil logger discards
// diagnostics.
func NewMifareTag(ep Endpoint, logger Logger) *MifareTag {
	if logger == nil {
		logger = NopLogger()
	}
	return &MifareTag{ep: ep, logger: logger}
}

// Read fills p from the start of the data region. len(p) must not exceed
// MifareMaxSize.
//
// All READ commands are sent before the first reply is consumed. If a reply
// carries a non-zero status or cannot be received, Read stops and returns
// the bytes already copied with a nil error; the error is only returned
// when nothing was copied.
func (t *MifareTag) Read(p []byte) (int, error) {
	length := len(p)
	if length > MifareMaxSize {
		return 0, errInvalidLength("mifare read", length)
	}
	if length == 0 {
		return 0, nil
	}

	groups := (length + mifareReadSize - 1) / mifareReadSize

	block := byte(mifareDataBlockStart)
	for range groups {
		if err := t.ep.Send([]byte{mifareCmdRead, block}); err != nil {
			t.logger.Debugf("mifare read: send READ block %d: %v", block, err)
			return 0, err
		}
		block += mifareReadBlocks
	}

	reply := make([]byte, mifareStatusSize+mifareReadSize)
	copied := 0
	for group := range groups {
		n, err := t.ep.Recv(reply)
		if err == nil && n != len(reply) {
			err = shortReply("mifare read", n, len(reply))
		}
		if err != nil {
			return t.partial("read", copied, err)
		}
		if reply[0] != 0 {
			return t.partial("read", copied, errStatus("mifare read", reply[0],
				mifareDataBlockStart+group*mifareReadBlocks))
		}

		chunk := min(mifareReadSize, length-copied)
		copy(p[copied:copied+chunk], reply[mifareStatusSize:mifareStatusSize+chunk])
		copied += chunk
	}
	return copied, nil
}

// Write stores p at the start of the data region, one 4-byte block per WRITE
// command. Each block is confirmed by a status reply before the next one is
// sent. A short final block is zero padded, so the tag bytes after len(p)
// in that block are overwritten with zeros. len(p) must not exceed
// MifareMaxSize.
//
// On a failed block Write returns the bytes already confirmed with a nil
// error; the error is only returned when no block was confirmed.
func (t *MifareTag) Write(p []byte) (int, error) {
	length := len(p)
	if length > MifareMaxSize {
		return 0, errInvalidLength("mifare write", length)
	}

	frame := make([]byte, 2+mifareBlockSize)
	reply := make([]byte, mifareStatusSize+mifareReadSize)
	written := 0
	for block := mifareDataBlockStart; written < length; block++ {
		chunk := min(mifareBlockSize, length-written)

		clear(frame)
		frame[0] = mifareCmdWrite
		frame[1] = byte(block)
		copy(frame[2:], p[written:written+chunk])

		if err := t.ep.Send(frame); err != nil {
			return t.partial("write", written, err)
		}

		n, err := t.ep.Recv(reply)
		if err == nil && n < mifareStatusSize {
			err = shortReply("mifare write", n, mifareStatusSize)
		}
		if err != nil {
			return t.partial("write", written, err)
		}
		if reply[0] != 0 {
			return t.partial("write", written, errStatus("mifare write", reply[0], block))
		}

		written += chunk
	}
	return written, nil
}

// partial applies the partial-result rule: progress wins over the error.
func (t *MifareTag) partial(op string, done int, err error) (int, error) {
	if done > 0 {
		t.logger.Debugf("mifare %s stopped after %d bytes: %v", op, done, err)
		return done, nil
	}
	return 0, err
}

func errInvalidLength(op string, length int) *OpError {
	return &OpError{
		Op:    op,
		Kind:  ErrInvalidLength,
		Errno: unix.EINVAL,
		Err:   fmt.Errorf("%d bytes requested, data region holds %d", length, MifareMaxSize),
	}
}

func errStatus(op string, status byte, block int) *OpError {
	return &OpError{
		Op:    op,
		Kind:  ErrTagStatus,
		Errno: unix.EIO,
		Err:   fmt.Errorf("status 0x%02x at block %d", status, block),
	}
}

func shortReply(op string, got, want int) *OpError {
	return &OpError{
		Op:    op,
		Kind:  ErrTagIO,
		Errno: unix.EIO,
		Err:   fmt.Errorf("reply is %d bytes, expected %d", got, want),
	}
}
