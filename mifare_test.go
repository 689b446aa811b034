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
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	testutil "github.com/ZaparooProject/go-nfcctl/internal/testing"
)

func pattern(n int) []byte {
	out := make([]byte, n)
	for i := range out {
		out[i] = byte(0x10 + i)
	}
	return out
}

func newLoadedTag(data []byte) (*testutil.VirtualTag, *MifareTag) {
	vt := testutil.NewVirtualTag()
	vt.Load(mifareDataBlockStart, data)
	return vt, NewMifareTag(vt, nil)
}

func TestMifareMaxSize(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 48, MifareMaxSize)
}

func TestMifareRead_PipelinesAllRequests(t *testing.T) {
	t.Parallel()

	data := pattern(MifareMaxSize)
	vt, tag := newLoadedTag(data)

	buf := make([]byte, MifareMaxSize)
	n, err := tag.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, MifareMaxSize, n)
	assert.Equal(t, data, buf)

	frames := vt.Frames()
	require.Len(t, frames, 3)
	for i, block := range []byte{4, 8, 12} {
		assert.Equal(t, []byte{0x30, block}, frames[i].Data)
		assert.Equal(t, 0, frames[i].Consumed, "frame %d sent after a reply was consumed", i)
	}
}

func TestMifareRead_Lengths(t *testing.T) {
	t.Parallel()

	tests := []struct {
		length int
		frames int
	}{
		{length: 1, frames: 1},
		{length: 4, frames: 1},
		{length: 16, frames: 1},
		{length: 17, frames: 2},
		{length: 32, frames: 2},
		{length: 33, frames: 3},
		{length: 48, frames: 3},
	}

	for _, tt := range tests {
		t.Run("", func(t *testing.T) {
			t.Parallel()

			data := pattern(MifareMaxSize)
			vt, tag := newLoadedTag(data)

			// guard bytes past the request must stay untouched
			buf := bytes.Repeat([]byte{0xEE}, tt.length+4)
			n, err := tag.Read(buf[:tt.length])
			require.NoError(t, err)
			assert.Equal(t, tt.length, n)
			assert.Equal(t, data[:tt.length], buf[:tt.length])
			assert.Equal(t, []byte{0xEE, 0xEE, 0xEE, 0xEE}, buf[tt.length:])
			assert.Len(t, vt.Frames(), tt.frames)
		})
	}
}

func TestMifareRead_Empty(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	n, err := tag.Read(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, vt.Frames())
}

func TestMifareRead_TooLong(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	n, err := tag.Read(make([]byte, MifareMaxSize+1))
	require.ErrorIs(t, err, ErrInvalidLength)
	assert.Equal(t, unix.EINVAL, Errno(err))
	assert.Equal(t, 0, n)
	assert.Empty(t, vt.Frames())
}

func TestMifareRead_PartialOnStatus(t *testing.T) {
	t.Parallel()

	data := pattern(MifareMaxSize)
	vt, tag := newLoadedTag(data)
	vt.SetStatus(1, 0x04)

	buf := make([]byte, MifareMaxSize)
	n, err := tag.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, data[:16], buf[:16])
}

func TestMifareRead_FirstReplyFails(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(pattern(16))
	vt.SetStatus(0, 0x01)

	n, err := tag.Read(make([]byte, 16))
	require.ErrorIs(t, err, ErrTagStatus)
	assert.Equal(t, unix.EIO, Errno(err))
	assert.Equal(t, 0, n)
}

func TestMifareRead_SendFailure(t *testing.T) {
	t.Parallel()

	errGone := errors.New("tag gone")
	vt, tag := newLoadedTag(nil)
	vt.FailSend(1, errGone)

	n, err := tag.Read(make([]byte, 32))
	require.ErrorIs(t, err, errGone)
	assert.Equal(t, 0, n)
}

func TestMifareRead_RecvFailureAfterProgress(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(pattern(MifareMaxSize))
	vt.FailRecv(2, errors.New("timeout"))

	n, err := tag.Read(make([]byte, MifareMaxSize))
	require.NoError(t, err)
	assert.Equal(t, 32, n)
}

type shortEndpoint struct {
	reply []byte
}

func (shortEndpoint) Send([]byte) error { return nil }

func (s shortEndpoint) Recv(buf []byte) (int, error) {
	return copy(buf, s.reply), nil
}

func TestMifareRead_ShortReply(t *testing.T) {
	t.Parallel()

	tag := NewMifareTag(shortEndpoint{reply: []byte{0, 1, 2, 3}}, nil)
	n, err := tag.Read(make([]byte, 8))
	require.ErrorIs(t, err, ErrTagIO)
	assert.Equal(t, 0, n)
}

func TestMifareWrite_OneBlockPerFrame(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	data := pattern(12)

	n, err := tag.Write(data)
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	frames := vt.Frames()
	require.Len(t, frames, 3)
	for i, f := range frames {
		block := byte(mifareDataBlockStart + i)
		assert.Equal(t, append([]byte{0xA2, block}, data[i*4:i*4+4]...), f.Data)
		assert.Equal(t, i, f.Consumed, "write %d sent before the previous reply", i)
	}
}

func TestMifareWrite_PadsFinalBlock(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)

	n, err := tag.Write([]byte{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, 5, n)

	frames := vt.Frames()
	require.Len(t, frames, 2)
	assert.Equal(t, []byte{0xA2, 5, 5, 0, 0, 0}, frames[1].Data)
}

func TestMifareWrite_ShortBlockClearsRestOfBlock(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag([]byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE})

	n, err := tag.Write([]byte{0x11})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	region := vt.Memory()[mifareDataBlockStart*mifareBlockSize:]
	assert.Equal(t, []byte{0x11, 0, 0, 0}, region[:4])
	assert.Equal(t, byte(0xEE), region[4], "next block is untouched")
}

func TestMifare_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, length := range []int{1, 4, 5, 16, 47, 48} {
		vt, tag := newLoadedTag(nil)
		data := pattern(length)

		n, err := tag.Write(data)
		require.NoError(t, err)
		require.Equal(t, length, n)

		buf := make([]byte, length)
		n, err = tag.Read(buf)
		require.NoError(t, err)
		require.Equal(t, length, n)
		assert.Equal(t, data, buf, "length %d", length)

		// blocks 0-3 are never touched
		assert.Equal(t, make([]byte, 16), vt.Memory()[:16])
	}
}

func TestMifareWrite_TooLong(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	n, err := tag.Write(make([]byte, 49))
	require.ErrorIs(t, err, ErrInvalidLength)
	assert.Equal(t, unix.EINVAL, Errno(err))
	assert.Equal(t, 0, n)
	assert.Empty(t, vt.Frames())
}

func TestMifareWrite_PartialOnStatus(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	vt.SetStatus(2, 0x01)

	n, err := tag.Write(pattern(16))
	require.NoError(t, err)
	assert.Equal(t, 8, n)
	assert.Len(t, vt.Frames(), 3)

	mem := vt.Memory()
	assert.Equal(t, pattern(8), mem[16:24])
	assert.Equal(t, make([]byte, 8), mem[24:32])
}

func TestMifareWrite_FirstBlockFails(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	vt.SetStatus(0, 0x01)

	n, err := tag.Write(pattern(8))
	require.ErrorIs(t, err, ErrTagStatus)
	assert.Equal(t, 0, n)
	assert.Len(t, vt.Frames(), 1)
}

func TestMifareWrite_SendFailureAfterProgress(t *testing.T) {
	t.Parallel()

	vt, tag := newLoadedTag(nil)
	vt.FailSend(1, errors.New("gone"))

	n, err := tag.Write(pattern(8))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestMifare_WithJitter(t *testing.T) {
	t.Parallel()

	vt := testutil.NewVirtualTag()
	ep := testutil.NewJitteryEndpoint(vt, testutil.DefaultJitterConfig())
	tag := NewMifareTag(ep, nil)

	data := pattern(MifareMaxSize)
	n, err := tag.Write(data)
	require.NoError(t, err)
	require.Equal(t, MifareMaxSize, n)

	buf := make([]byte, MifareMaxSize)
	n, err = tag.Read(buf)
	require.NoError(t, err)
	require.Equal(t, MifareMaxSize, n)
	assert.Equal(t, data, buf)
}
