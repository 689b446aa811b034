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
	"encoding/binary"
	"errors"
	"fmt"
	"strings"
)

// TLV types of the Type 2 tag data area
const (
	TLVTypeNull          = 0x00 // padding, no length field
	TLVTypeLockControl   = 0x01
	TLVTypeMemoryControl = 0x02
	TLVTypeNDEF          = 0x03
	TLVTypeProprietary   = 0xFD
	TLVTypeTerminator    = 0xFE // end of data area, no length field
)

// TLV parsing errors
var (
	ErrTLVDataTooShort  = errors.New("TLV data too short")
	ErrTLVInvalidLength = errors.New("TLV invalid length format")
)

// NDEFLocation is the position of the NDEF message inside the data area
type NDEFLocation struct {
	Offset     int // first byte of the message
	Length     int
	HeaderSize int // 2 for the short length form, 4 for the long one
}

// ScanForNDEFTLV walks the TLV blocks of data and returns the location of
// the first NDEF Message TLV. NULL, control and proprietary TLVs are
// skipped; a terminator before any NDEF TLV yields ErrNoNDEF.
func ScanForNDEFTLV(data []byte) (*NDEFLocation, error) {
	offset := 0
	for offset < len(data) {
		switch tlvType := data[offset]; tlvType {
		case TLVTypeNull:
			offset++
		case TLVTypeTerminator:
			return nil, ErrNoNDEF
		case TLVTypeNDEF:
			length, header, err := tlvLength(data, offset)
			if err != nil {
				return nil, err
			}
			return &NDEFLocation{Offset: offset + header, Length: length, HeaderSize: header}, nil
		default:
			length, header, err := tlvLength(data, offset)
			if err != nil {
				return nil, err
			}
			offset += header + length
		}
	}
	return nil, ErrNoNDEF
}

// tlvLength decodes the length field of the TLV at offset.
func tlvLength(data []byte, offset int) (length, header int, err error) {
	if offset+1 >= len(data) {
		return 0, 0, ErrTLVDataTooShort
	}
	if data[offset+1] != 0xFF {
		return int(data[offset+1]), 2, nil
	}
	if offset+3 >= len(data) {
		return 0, 0, fmt.Errorf("%w: incomplete long length at offset %d", ErrTLVInvalidLength, offset)
	}
	return int(binary.BigEndian.Uint16(data[offset+2 : offset+4])), 4, nil
}

// ExtractNDEFFromTLV returns the NDEF message bytes held in data.
func ExtractNDEFFromTLV(data []byte) ([]byte, error) {
	loc, err := ScanForNDEFTLV(data)
	if err != nil {
		return nil, err
	}
	if loc.Offset+loc.Length > len(data) {
		return nil, fmt.Errorf("%w: NDEF length %d exceeds data size %d",
			ErrTLVInvalidLength, loc.Length, len(data)-loc.Offset)
	}
	return data[loc.Offset : loc.Offset+loc.Length], nil
}

// EncodeNDEFTLV wraps an NDEF message in an NDEF TLV followed by a
// terminator.
func EncodeNDEFTLV(msg []byte) ([]byte, error) {
	if len(msg) > 0xFFFE {
		return nil, fmt.Errorf("%w: %d bytes", ErrMessageTooLarge, len(msg))
	}

	out := make([]byte, 0, len(msg)+5)
	out = append(out, TLVTypeNDEF)
	if len(msg) < 0xFF {
		out = append(out, byte(len(msg)))
	} else {
		out = append(out, 0xFF)
		out = binary.BigEndian.AppendUint16(out, uint16(len(msg))) //nolint:gosec // bounds-checked above
	}
	out = append(out, msg...)
	return append(out, TLVTypeTerminator), nil
}

// TLVDebugInfo describes the TLV blocks in data, one per line.
func TLVDebugInfo(data []byte) string {
	var b strings.Builder
	offset := 0
	for offset < len(data) {
		tlvType := data[offset]
		switch tlvType {
		case TLVTypeNull:
			offset++
			continue
		case TLVTypeTerminator:
			fmt.Fprintf(&b, "%3d: terminator\n", offset)
			return b.String()
		}

		length, header, err := tlvLength(data, offset)
		if err != nil {
			fmt.Fprintf(&b, "%3d: type 0x%02x: %v\n", offset, tlvType, err)
			return b.String()
		}
		fmt.Fprintf(&b, "%3d: %s, %d bytes\n", offset, tlvName(tlvType), length)
		offset += header + length
	}
	return b.String()
}

func tlvName(t byte) string {
	switch t {
	case TLVTypeLockControl:
		return "lock control"
	case TLVTypeMemoryControl:
		return "memory control"
	case TLVTypeNDEF:
		return "NDEF message"
	case TLVTypeProprietary:
		return "proprietary"
	default:
		return fmt.Sprintf("type 0x%02x", t)
	}
}
