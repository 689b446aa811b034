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

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
)

// encodeRequest builds a generic netlink request for cmd. The family id and
// the request/dump flags are supplied when the message is executed.
func encodeRequest(cmd uint8, build func(ae *netlink.AttributeEncoder)) (genetlink.Message, error) {
	ae := netlink.NewAttributeEncoder()
	if build != nil {
		build(ae)
	}

	data, err := ae.Encode()
	if err != nil {
		return genetlink.Message{}, fmt.Errorf("encode command %d: %w", cmd, err)
	}

	return genetlink.Message{
		Header: genetlink.Header{
			Command: cmd,
			Version: abi.FamilyVersion,
		},
		Data: data,
	}, nil
}

func encodeDeviceIndex(device uint32) func(ae *netlink.AttributeEncoder) {
	return func(ae *netlink.AttributeEncoder) {
		ae.Uint32(abi.AttrDeviceIndex, device)
	}
}

func encodeStartPoll(device uint32, protocols ProtocolMask) func(ae *netlink.AttributeEncoder) {
	return func(ae *netlink.AttributeEncoder) {
		ae.Uint32(abi.AttrDeviceIndex, device)
		ae.Uint32(abi.AttrProtocols, uint32(protocols))
	}
}

// decodeDevice decodes one GET_DEVICE reply. Index, name and protocols are
// all required.
func decodeDevice(data []byte) (Device, error) {
	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return Device{}, &DecodeError{Command: abi.CmdGetDevice, Reason: "malformed attributes", Err: err}
	}

	var (
		dev                           Device
		haveIndex, haveName, haveProt bool
	)
	for ad.Next() {
		switch ad.Type() {
		case abi.AttrDeviceIndex:
			dev.Index = ad.Uint32()
			haveIndex = true
		case abi.AttrDeviceName:
			dev.Name = ad.String()
			haveName = true
		case abi.AttrProtocols:
			dev.Protocols = ProtocolMask(ad.Uint32())
			haveProt = true
		}
	}
	if err := ad.Err(); err != nil {
		return Device{}, &DecodeError{Command: abi.CmdGetDevice, Reason: "malformed attribute", Err: err}
	}

	switch {
	case !haveIndex:
		return Device{}, missingAttr(abi.CmdGetDevice, abi.AttrDeviceIndex)
	case !haveName:
		return Device{}, missingAttr(abi.CmdGetDevice, abi.AttrDeviceName)
	case !haveProt:
		return Device{}, missingAttr(abi.CmdGetDevice, abi.AttrProtocols)
	case len(dev.Name) > abi.DeviceNameMaxSize:
		return Device{}, &DecodeError{
			Command: abi.CmdGetDevice,
			Attr:    abi.AttrDeviceName,
			Reason:  fmt.Sprintf("name is %d bytes, limit %d", len(dev.Name), abi.DeviceNameMaxSize),
		}
	}
	return dev, nil
}

// targetsFound is a decoded TARGETS_FOUND event. Skipped holds one error per
// target sub-record that failed validation.
type targetsFound struct {
	Targets []Target
	Skipped []error
	Device  uint32
}

// decodeTargetsFound decodes a TARGETS_FOUND event. A missing device index
// or target list rejects the whole event; a malformed target sub-record is
// reported in Skipped and the remaining targets are kept.
func decodeTargetsFound(data []byte) (targetsFound, error) {
	var ev targetsFound

	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return ev, &DecodeError{Command: abi.EventTargetsFound, Reason: "malformed attributes", Err: err}
	}

	var haveIndex, haveTargets bool
	for ad.Next() {
		switch ad.Type() {
		case abi.AttrDeviceIndex:
			ev.Device = ad.Uint32()
			haveIndex = true
		case abi.AttrTargets:
			haveTargets = true
			ad.Nested(func(nad *netlink.AttributeDecoder) error {
				for nad.Next() {
					target, err := decodeTarget(nad.Bytes())
					if err != nil {
						ev.Skipped = append(ev.Skipped, fmt.Errorf("target record %d: %w", nad.Type(), err))
						continue
					}
					ev.Targets = append(ev.Targets, target)
				}
				return nil
			})
		}
	}
	if err := ad.Err(); err != nil {
		return targetsFound{}, &DecodeError{Command: abi.EventTargetsFound, Reason: "malformed attribute", Err: err}
	}

	if !haveIndex {
		return targetsFound{}, missingAttr(abi.EventTargetsFound, abi.AttrDeviceIndex)
	}
	if !haveTargets {
		return targetsFound{}, missingAttr(abi.EventTargetsFound, abi.AttrTargets)
	}
	return ev, nil
}

// decodeTarget decodes one nested target record on its own decoder so a bad
// record cannot poison its siblings.
func decodeTarget(data []byte) (Target, error) {
	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return Target{}, &DecodeError{Command: abi.EventTargetsFound, Attr: abi.AttrTargets, Reason: "malformed target", Err: err}
	}

	var (
		target              Target
		haveIndex, haveProt bool
	)
	for ad.Next() {
		switch ad.Type() {
		case abi.TargetAttrTargetIndex:
			target.Index = ad.Uint32()
			haveIndex = true
		case abi.TargetAttrSupportedProtocols:
			target.Protocols = ProtocolMask(ad.Uint32())
			haveProt = true
		}
	}
	if err := ad.Err(); err != nil {
		return Target{}, &DecodeError{Command: abi.EventTargetsFound, Attr: abi.AttrTargets, Reason: "malformed target", Err: err}
	}
	if !haveIndex || !haveProt {
		return Target{}, &DecodeError{
			Command: abi.EventTargetsFound,
			Attr:    abi.AttrTargets,
			Reason:  "target record lacks index or supported protocols",
		}
	}
	return target, nil
}

func missingAttr(cmd uint8, attr uint16) *DecodeError {
	return &DecodeError{Command: cmd, Attr: attr, Reason: "missing required attribute"}
}
