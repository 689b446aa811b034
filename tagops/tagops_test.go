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

package tagops_test

import (
	"context"
	"errors"
	"testing"

	"github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZaparooProject/go-nfcctl"
	testutil "github.com/ZaparooProject/go-nfcctl/internal/testing"
	"github.com/ZaparooProject/go-nfcctl/tagops"
)

// dataBlock is the first block of the Mifare data region.
const dataBlock = 4

func newOps() (*testutil.VirtualTag, *tagops.TagOperations) {
	vt := testutil.NewVirtualTag()
	return vt, tagops.New(nfcctl.NewMifareTag(vt, nil))
}

func TestNew_Capacity(t *testing.T) {
	t.Parallel()
	_, ops := newOps()
	assert.Equal(t, nfcctl.MifareMaxSize, ops.Capacity())
}

func TestWriteText_RoundTrip(t *testing.T) {
	t.Parallel()

	_, ops := newOps()
	ctx := context.Background()

	require.NoError(t, ops.WriteText(ctx, "hello"))

	text, err := ops.ReadText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hello", text)

	_, err = ops.ReadURI(ctx)
	require.ErrorIs(t, err, tagops.ErrNoRecord)
}

func TestWriteURI_RoundTrip(t *testing.T) {
	t.Parallel()

	_, ops := newOps()
	ctx := context.Background()

	require.NoError(t, ops.WriteURI(ctx, "https://zaparoo.org"))

	uri, err := ops.ReadURI(ctx)
	require.NoError(t, err)
	assert.Equal(t, "https://zaparoo.org", uri)
}

func TestWriteNDEF_StoresTLV(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	msg := ndef.NewMessageFromRecords(ndef.NewTextRecord("hi", "en"))
	payload, err := msg.Marshal()
	require.NoError(t, err)

	require.NoError(t, ops.WriteNDEF(context.Background(), msg))

	region := vt.Memory()[dataBlock*testutil.TagBlockSize:]
	assert.Equal(t, byte(tagops.TLVTypeNDEF), region[0])
	assert.Equal(t, byte(len(payload)), region[1])
	assert.Equal(t, payload, region[2:2+len(payload)])
	assert.Equal(t, byte(tagops.TLVTypeTerminator), region[2+len(payload)])
}

func TestWriteNDEF_TooLarge(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	long := make([]byte, 64)
	for i := range long {
		long[i] = 'a'
	}

	err := ops.WriteText(context.Background(), string(long))
	require.ErrorIs(t, err, tagops.ErrMessageTooLarge)
	assert.Empty(t, vt.Frames(), "nothing may reach the tag")
}

func TestWriteRaw_ShortWrite(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	vt.SetStatus(2, 0x01)

	err := ops.WriteRaw(context.Background(), make([]byte, 16))
	require.ErrorIs(t, err, tagops.ErrShortWrite)
	assert.Contains(t, err.Error(), "8 of 16")
}

func TestWriteRaw_FirstBlockFails(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	sendErr := errors.New("radio off")
	vt.FailSend(0, sendErr)

	err := ops.WriteRaw(context.Background(), []byte{1, 2, 3, 4})
	require.ErrorIs(t, err, sendErr)
}

func TestReadNDEF_Empty(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("blank tag", func(t *testing.T) {
		t.Parallel()
		_, ops := newOps()
		_, err := ops.ReadNDEF(ctx)
		require.ErrorIs(t, err, tagops.ErrNoNDEF)
	})

	t.Run("formatted tag", func(t *testing.T) {
		t.Parallel()
		_, ops := newOps()
		require.NoError(t, ops.Format(ctx))
		_, err := ops.ReadNDEF(ctx)
		require.ErrorIs(t, err, tagops.ErrNoNDEF)
	})
}

func TestErase(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	ctx := context.Background()
	require.NoError(t, ops.WriteText(ctx, "gone soon"))
	require.NoError(t, ops.Erase(ctx))

	region := vt.Memory()[dataBlock*testutil.TagBlockSize:]
	assert.Equal(t, make([]byte, nfcctl.MifareMaxSize), region[:nfcctl.MifareMaxSize])
}

func TestReadRaw_Partial(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	vt.Load(dataBlock, []byte{0x03, 0x00, 0xFE})
	vt.SetStatus(1, 0x01)

	data, err := ops.ReadRaw(context.Background())
	require.NoError(t, err)
	assert.Len(t, data, 16)
	assert.Equal(t, []byte{0x03, 0x00, 0xFE}, data[:3])
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()

	vt, ops := newOps()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ops.ReadNDEF(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.ErrorIs(t, ops.WriteText(ctx, "x"), context.Canceled)
	assert.Empty(t, vt.Frames())
}

func TestRecordSummary(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `text: "hello"`, tagops.RecordSummary(ndef.NewTextRecord("hello", "en")))
	assert.Equal(t, "uri: https://zaparoo.org", tagops.RecordSummary(ndef.NewURIRecord("https://zaparoo.org")))
	assert.Contains(t, tagops.RecordSummary(ndef.NewMediaRecord("application/octet-stream", []byte{1, 2, 3})),
		"3 bytes")
}
