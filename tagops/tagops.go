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

// Package tagops reads and writes NDEF data on tags reached through a raw
// target session.
package tagops

import (
	"errors"

	"github.com/ZaparooProject/go-nfcctl"
)

var (
	// ErrNoNDEF indicates the tag holds no NDEF message
	ErrNoNDEF = errors.New("no NDEF message on tag")
	// ErrMessageTooLarge indicates the encoded message does not fit the tag
	ErrMessageTooLarge = errors.New("NDEF message exceeds tag capacity")
	// ErrShortWrite indicates the tag stopped accepting data part way
	ErrShortWrite = errors.New("tag accepted only part of the data")
	// ErrNoRecord indicates the message has no record of the wanted type
	ErrNoRecord = errors.New("no matching NDEF record")
)

// Tag is a byte transport over the data region of a tag. *nfcctl.MifareTag
// implements it.
type Tag interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
}

// TagOperations provides NDEF level operations on a tag
type TagOperations struct {
	tag      Tag
	capacity int
}

// New creates a TagOperations over a Mifare data region.
func New(tag Tag) *TagOperations {
	return NewWithCapacity(tag, nfcctl.MifareMaxSize)
}

// NewWithCapacity creates a TagOperations for a data region of capacity
// bytes.
func NewWithCapacity(tag Tag, capacity int) *TagOperations {
	return &TagOperations{tag: tag, capacity: capacity}
}

// Capacity returns the size of the data region in bytes.
func (t *TagOperations) Capacity() int {
	return t.capacity
}
