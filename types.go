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
	"strings"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
)

// Protocol is a contactless protocol number as used in socket addresses.
type Protocol uint32

// Supported protocols.
const (
	ProtocolJewel    Protocol = Protocol(abi.ProtoJewel)
	ProtocolMifare   Protocol = Protocol(abi.ProtoMifare)
	ProtocolFelica   Protocol = Protocol(abi.ProtoFelica)
	ProtocolISO14443 Protocol = Protocol(abi.ProtoISO14443)
	ProtocolNFCDEP   Protocol = Protocol(abi.ProtoNFCDEP)
)

var protocolNames = [...]string{
	ProtocolJewel:    "jewel",
	ProtocolMifare:   "mifare",
	ProtocolFelica:   "felica",
	ProtocolISO14443: "iso14443",
	ProtocolNFCDEP:   "nfc-dep",
}

// Valid reports whether p is a protocol number known to the kernel ABI.
func (p Protocol) Valid() bool {
	return uint32(p) < abi.ProtoMax
}

// Mask returns the single-bit mask for p.
func (p Protocol) Mask() ProtocolMask {
	return ProtocolMask(1) << p
}

func (p Protocol) String() string {
	if !p.Valid() {
		return fmt.Sprintf("protocol(%d)", uint32(p))
	}
	return protocolNames[p]
}

// ProtocolMask is a bitwise OR of Protocol masks.
type ProtocolMask uint32

// Common protocol masks.
const (
	MaskJewel    = ProtocolMask(1 << abi.ProtoJewel)
	MaskMifare   = ProtocolMask(1 << abi.ProtoMifare)
	MaskFelica   = ProtocolMask(1 << abi.ProtoFelica)
	MaskISO14443 = ProtocolMask(1 << abi.ProtoISO14443)
	MaskNFCDEP   = ProtocolMask(1 << abi.ProtoNFCDEP)

	MaskAll = MaskJewel | MaskMifare | MaskFelica | MaskISO14443 | MaskNFCDEP
)

// Has reports whether p is set in m.
func (m ProtocolMask) Has(p Protocol) bool {
	return p.Valid() && m&p.Mask() != 0
}

// Protocols lists the protocols set in m in ascending order.
func (m ProtocolMask) Protocols() []Protocol {
	var out []Protocol
	for p := range Protocol(abi.ProtoMax) {
		if m.Has(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m ProtocolMask) String() string {
	if m == 0 {
		return "none"
	}
	protos := m.Protocols()
	names := make([]string, 0, len(protos)+1)
	for _, p := range protos {
		names = append(names, p.String())
	}
	if rest := m &^ MaskAll; rest != 0 {
		names = append(names, fmt.Sprintf("0x%x", uint32(rest)))
	}
	return strings.Join(names, "|")
}

// ParseProtocolMask parses a comma or pipe separated list of protocol names,
// e.g. "mifare,felica". The name "all" selects every protocol.
func ParseProtocolMask(s string) (ProtocolMask, error) {
	var m ProtocolMask
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '|' || r == ' ' })
	if len(fields) == 0 {
		return 0, fmt.Errorf("%w: empty protocol list", ErrInvalidParameter)
	}
	for _, f := range fields {
		name := strings.ToLower(f)
		if name == "all" {
			m |= MaskAll
			continue
		}
		found := false
		for i, n := range protocolNames {
			if n == name {
				m |= Protocol(i).Mask()
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("%w: unknown protocol %q", ErrInvalidParameter, f)
		}
	}
	return m, nil
}

// Device is a snapshot of one NFC adapter as reported by the kernel.
type Device struct {
	Name      string
	Index     uint32
	Protocols ProtocolMask
}

func (d Device) String() string {
	return fmt.Sprintf("%d\t%s\t0x%x", d.Index, d.Name, uint32(d.Protocols))
}

// Target is a tag or peer found by a polling device. It is only valid for
// the duration of the handler call that received it.
type Target struct {
	Index     uint32
	Protocols ProtocolMask
}
