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

package tagops

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanForNDEFTLV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		wantErr error
		want    *NDEFLocation
		name    string
		data    []byte
	}{
		{
			name: "short form",
			data: []byte{0x03, 0x02, 0xD0, 0x00, 0xFE},
			want: &NDEFLocation{Offset: 2, Length: 2, HeaderSize: 2},
		},
		{
			name: "leading null padding",
			data: []byte{0x00, 0x00, 0x03, 0x01, 0xAA, 0xFE},
			want: &NDEFLocation{Offset: 4, Length: 1, HeaderSize: 2},
		},
		{
			name: "lock control skipped",
			data: []byte{0x01, 0x03, 0xA0, 0x0C, 0x34, 0x03, 0x01, 0xAA, 0xFE},
			want: &NDEFLocation{Offset: 7, Length: 1, HeaderSize: 2},
		},
		{
			name: "long form",
			data: []byte{0x03, 0xFF, 0x01, 0x00},
			want: &NDEFLocation{Offset: 4, Length: 256, HeaderSize: 4},
		},
		{
			name:    "terminator first",
			data:    []byte{0xFE, 0x03, 0x01, 0xAA},
			wantErr: ErrNoNDEF,
		},
		{
			name:    "blank",
			data:    make([]byte, 16),
			wantErr: ErrNoNDEF,
		},
		{
			name:    "missing length",
			data:    []byte{0x03},
			wantErr: ErrTLVDataTooShort,
		},
		{
			name:    "truncated long length",
			data:    []byte{0x03, 0xFF, 0x01},
			wantErr: ErrTLVInvalidLength,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			loc, err := ScanForNDEFTLV(tt.data)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, loc)
		})
	}
}

func TestExtractNDEFFromTLV(t *testing.T) {
	t.Parallel()

	msg, err := ExtractNDEFFromTLV([]byte{0x03, 0x03, 0xD1, 0x00, 0x00, 0xFE, 0x00})
	require.NoError(t, err)
	assert.Equal(t, []byte{0xD1, 0x00, 0x00}, msg)

	_, err = ExtractNDEFFromTLV([]byte{0x03, 0x10, 0xD1})
	require.ErrorIs(t, err, ErrTLVInvalidLength)
}

func TestEncodeNDEFTLV(t *testing.T) {
	t.Parallel()

	out, err := EncodeNDEFTLV([]byte{0xAA, 0xBB})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0x02, 0xAA, 0xBB, 0xFE}, out)

	long := bytes.Repeat([]byte{0x55}, 300)
	out, err = EncodeNDEFTLV(long)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x03, 0xFF, 0x01, 0x2C}, out[:4])
	assert.Equal(t, byte(0xFE), out[len(out)-1])

	got, err := ExtractNDEFFromTLV(out)
	require.NoError(t, err)
	assert.Equal(t, long, got)
}

func TestTLVDebugInfo(t *testing.T) {
	t.Parallel()

	info := TLVDebugInfo([]byte{0x00, 0x01, 0x03, 0xA0, 0x0C, 0x34, 0x03, 0x01, 0xAA, 0xFE})
	assert.Equal(t, "  1: lock control, 3 bytes\n  6: NDEF message, 1 bytes\n  9: terminator\n", info)
}
