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
	"context"
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// WriteRaw writes data at the start of the data region.
func (t *TagOperations) WriteRaw(ctx context.Context, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(data) > t.capacity {
		return fmt.Errorf("%w: %d bytes, tag holds %d", ErrMessageTooLarge, len(data), t.capacity)
	}

	n, err := t.tag.Write(data)
	if err != nil {
		return fmt.Errorf("failed to write tag: %w", err)
	}
	if n < len(data) {
		return fmt.Errorf("%w: %d of %d bytes", ErrShortWrite, n, len(data))
	}
	return nil
}

// WriteNDEF writes msg wrapped in an NDEF TLV.
func (t *TagOperations) WriteNDEF(ctx context.Context, msg *ndef.Message) error {
	payload, err := msg.Marshal()
	if err != nil {
		return fmt.Errorf("failed to marshal NDEF message: %w", err)
	}

	data, err := EncodeNDEFTLV(payload)
	if err != nil {
		return err
	}
	return t.WriteRaw(ctx, data)
}

// WriteText writes a message holding a single Text record
func (t *TagOperations) WriteText(ctx context.Context, text string) error {
	return t.WriteNDEF(ctx, ndef.NewMessageFromRecords(ndef.NewTextRecord(text, "en")))
}

// WriteURI writes a message holding a single URI record
func (t *TagOperations) WriteURI(ctx context.Context, uri string) error {
	return t.WriteNDEF(ctx, ndef.NewMessageFromRecords(ndef.NewURIRecord(uri)))
}

// Format writes an empty NDEF TLV so the tag reads as NDEF formatted.
func (t *TagOperations) Format(ctx context.Context) error {
	return t.WriteRaw(ctx, []byte{TLVTypeNDEF, 0x00, TLVTypeTerminator})
}

// Erase zeroes the whole data region.
func (t *TagOperations) Erase(ctx context.Context) error {
	return t.WriteRaw(ctx, make([]byte, t.capacity))
}
