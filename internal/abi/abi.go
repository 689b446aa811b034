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

// Package abi mirrors the numeric identifiers of the kernel NFC generic
// netlink interface (include/linux/nfc.h, version 1). Encoder, decoder and
// test fixtures all read the values from here and nowhere else.
package abi

// Generic netlink family.
const (
	FamilyName    = "nfc"
	FamilyVersion = 1

	// EventsGroup is the multicast group carrying targets-found events.
	EventsGroup = "events"
)

// Commands and events (enum nfc_commands).
const (
	CmdUnspec uint8 = iota
	CmdGetDevice
	CmdStartPoll
	CmdStopPoll
	CmdResetDevice
	EventTargetsFound
)

// Top-level attributes (enum nfc_attrs).
const (
	AttrUnspec uint16 = iota
	AttrDeviceIndex
	AttrDeviceName
	AttrProtocols
	AttrTargets
)

// Per-target attributes nested inside AttrTargets (enum nfc_target_attr).
const (
	TargetAttrUnspec uint16 = iota
	TargetAttrTargetIndex
	TargetAttrSupportedProtocols
)

// DeviceNameMaxSize is NFC_DEVICE_NAME_MAXSIZE.
const DeviceNameMaxSize = 8

// Protocol numbers. Masks are 1 << number.
const (
	ProtoJewel uint32 = iota
	ProtoMifare
	ProtoFelica
	ProtoISO14443
	ProtoNFCDEP

	// ProtoMax is one past the last defined protocol.
	ProtoMax
)

// SockProtoRaw is NFC_SOCKPROTO_RAW, the only socket protocol of version 1.
const SockProtoRaw = 0
