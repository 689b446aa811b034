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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVirtualTag_ReadReturnsStatusAndFourBlocks(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	tag.Load(4, []byte{1, 2, 3, 4, 5, 6, 7, 8})

	require.NoError(t, tag.Send([]byte{tagCmdRead, 4}))

	buf := make([]byte, 32)
	n, err := tag.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6, 7, 8}, buf[1:9])
}

func TestVirtualTag_ReadWrapsPastLastBlock(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	tag.Load(0, []byte{0xAA})
	tag.Load(15, []byte{0x0F})

	require.NoError(t, tag.Send([]byte{tagCmdRead, 15}))
	buf := make([]byte, 17)
	_, err := tag.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x0F), buf[1])
	assert.Equal(t, byte(0xAA), buf[5])
}

func TestVirtualTag_WriteUpdatesMemory(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	require.NoError(t, tag.Send([]byte{tagCmdWrite, 5, 9, 8, 7, 6}))

	buf := make([]byte, 17)
	n, err := tag.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, byte(0), buf[0])
	assert.Equal(t, []byte{9, 8, 7, 6}, tag.Memory()[20:24])
}

func TestVirtualTag_StatusInjectionSkipsWrite(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	tag.SetStatus(0, 0x01)
	require.NoError(t, tag.Send([]byte{tagCmdWrite, 4, 1, 1, 1, 1}))

	buf := make([]byte, 1)
	_, err := tag.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, byte(0x01), buf[0])
	assert.Equal(t, make([]byte, 4), tag.Memory()[16:20])
}

func TestVirtualTag_FramesRecordConsumedReplies(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	require.NoError(t, tag.Send([]byte{tagCmdRead, 4}))
	require.NoError(t, tag.Send([]byte{tagCmdRead, 8}))
	_, err := tag.Recv(make([]byte, 17))
	require.NoError(t, err)
	require.NoError(t, tag.Send([]byte{tagCmdRead, 12}))

	frames := tag.Frames()
	require.Len(t, frames, 3)
	assert.Equal(t, 0, frames[0].Consumed)
	assert.Equal(t, 0, frames[1].Consumed)
	assert.Equal(t, 1, frames[2].Consumed)
}

func TestVirtualTag_Failures(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")

	t.Run("send", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualTag()
		tag.FailSend(0, errBoom)
		require.ErrorIs(t, tag.Send([]byte{tagCmdRead, 4}), errBoom)
		_, err := tag.Recv(make([]byte, 17))
		require.ErrorIs(t, err, ErrNoReply)
	})

	t.Run("recv", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualTag()
		tag.FailRecv(0, errBoom)
		require.NoError(t, tag.Send([]byte{tagCmdRead, 4}))
		_, err := tag.Recv(make([]byte, 17))
		require.ErrorIs(t, err, errBoom)
	})

	t.Run("unknown command", func(t *testing.T) {
		t.Parallel()
		tag := NewVirtualTag()
		require.Error(t, tag.Send([]byte{0x60, 0}))
	})
}

func TestJitteryEndpoint_PassesFramesThrough(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	tag.Load(4, []byte{0x42})
	ep := NewJitteryEndpoint(tag, JitterConfig{MaxLatency: 0, Seed: 7})

	require.NoError(t, ep.Send([]byte{tagCmdRead, 4}))
	buf := make([]byte, 17)
	n, err := ep.Recv(buf)
	require.NoError(t, err)
	assert.Equal(t, 17, n)
	assert.Equal(t, byte(0x42), buf[1])
}

func TestJitteryEndpoint_DropsEveryNthReply(t *testing.T) {
	t.Parallel()

	tag := NewVirtualTag()
	ep := NewJitteryEndpoint(tag, JitterConfig{Seed: 1, FailRecvEvery: 2})

	for range 2 {
		require.NoError(t, ep.Send([]byte{tagCmdRead, 4}))
	}
	_, err := ep.Recv(make([]byte, 17))
	require.NoError(t, err)
	_, err = ep.Recv(make([]byte, 17))
	require.ErrorIs(t, err, ErrJitterDrop)
}
