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
	"errors"
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// ReadRaw reads the whole data region. A tag that stops answering part way
// yields the bytes read so far.
func (t *TagOperations) ReadRaw(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	buf := make([]byte, t.capacity)
	n, err := t.tag.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read tag: %w", err)
	}
	return buf[:n], nil
}

// ReadNDEF reads and parses the NDEF message stored on the tag
func (t *TagOperations) ReadNDEF(ctx context.Context) (*ndef.Message, error) {
	data, err := t.ReadRaw(ctx)
	if err != nil {
		return nil, err
	}

	payload, err := ExtractNDEFFromTLV(data)
	if err != nil {
		return nil, err
	}
	if len(payload) == 0 {
		return nil, ErrNoNDEF
	}

	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(payload); err != nil {
		return nil, fmt.Errorf("failed to parse NDEF message: %w", err)
	}
	if len(msg.Records) == 0 {
		return nil, ErrNoNDEF
	}
	return msg, nil
}

// ReadText returns the text of the first Text record on the tag.
func (t *TagOperations) ReadText(ctx context.Context) (string, error) {
	payload, err := t.firstWellKnown(ctx, "T")
	if err != nil {
		return "", err
	}
	return parseTextPayload(payload)
}

// ReadURI returns the URI of the first URI record on the tag.
func (t *TagOperations) ReadURI(ctx context.Context) (string, error) {
	payload, err := t.firstWellKnown(ctx, "U")
	if err != nil {
		return "", err
	}
	return parseURIPayload(payload)
}

func (t *TagOperations) firstWellKnown(ctx context.Context, recordType string) ([]byte, error) {
	msg, err := t.ReadNDEF(ctx)
	if err != nil {
		return nil, err
	}

	for _, rec := range msg.Records {
		if rec.TNF() != ndef.NFCForumWellKnownType || rec.Type() != recordType {
			continue
		}
		payload, err := rec.Payload()
		if err != nil {
			return nil, fmt.Errorf("failed to get NDEF record payload: %w", err)
		}
		return payload.Marshal(), nil
	}
	return nil, fmt.Errorf("%w: type %q", ErrNoRecord, recordType)
}

// parseTextPayload parses a text record payload
func parseTextPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errors.New("text payload too short")
	}

	// status byte: bit 7 UTF-16, bits 0-5 language code length
	langLen := int(payload[0] & 0x3F)
	if len(payload) < 1+langLen {
		return "", errors.New("invalid text payload length")
	}
	return string(payload[1+langLen:]), nil
}

// URI identifier codes of the NFC Forum URI record type
var uriPrefixes = []string{
	"",
	"http://www.",
	"https://www.",
	"http://",
	"https://",
	"tel:",
	"mailto:",
	"ftp://anonymous:anonymous@",
	"ftp://ftp.",
	"ftps://",
	"sftp://",
	"smb://",
	"nfs://",
	"ftp://",
	"dav://",
	"news:",
	"telnet://",
	"imap:",
	"rtsp://",
	"urn:",
	"pop:",
	"sip:",
	"sips:",
	"tftp:",
	"btspp://",
	"btl2cap://",
	"btgoep://",
	"tcpobex://",
	"irdaobex://",
	"file://",
	"urn:epc:id:",
	"urn:epc:tag:",
	"urn:epc:pat:",
	"urn:epc:raw:",
	"urn:epc:",
	"urn:nfc:",
}

// parseURIPayload parses a URI record payload
func parseURIPayload(payload []byte) (string, error) {
	if len(payload) < 1 {
		return "", errors.New("URI payload too short")
	}

	code := int(payload[0])
	if code >= len(uriPrefixes) {
		return "", fmt.Errorf("invalid URI prefix code: %d", code)
	}
	return uriPrefixes[code] + string(payload[1:]), nil
}

// RecordSummary returns a one-line description of rec. Text and URI
// records show their decoded content, other records their type and
// payload size.
func RecordSummary(rec *ndef.Record) string {
	payload, err := rec.Payload()
	if err != nil {
		return fmt.Sprintf("tnf=%d type=%q: %v", rec.TNF(), rec.Type(), err)
	}
	data := payload.Marshal()

	if rec.TNF() == ndef.NFCForumWellKnownType {
		switch rec.Type() {
		case "T":
			if text, err := parseTextPayload(data); err == nil {
				return fmt.Sprintf("text: %q", text)
			}
		case "U":
			if uri, err := parseURIPayload(data); err == nil {
				return "uri: " + uri
			}
		}
	}
	return fmt.Sprintf("tnf=%d type=%q, %d bytes", rec.TNF(), rec.Type(), len(data))
}
