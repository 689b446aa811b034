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
	"errors"
	"fmt"

	"github.com/mdlayher/netlink"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
)

// Devices dumps the kernel's NFC devices and returns at most capacity of
// them in reply order. Records beyond capacity are dropped without error;
// malformed records are logged and skipped.
func (c *Channel) Devices(capacity int) ([]Device, error) {
	if capacity < 0 {
		return nil, fmt.Errorf("%w: negative device capacity %d", ErrInvalidParameter, capacity)
	}

	msgs, err := c.execute("get devices", abi.CmdGetDevice, nil, netlink.Request|netlink.Dump)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, 0, min(capacity, len(msgs)))
	for i, msg := range msgs {
		dev, err := decodeDevice(msg.Data)
		if err != nil {
			c.logger.Debugf("skipping device record %d: %v", i, err)
			continue
		}
		if len(devices) == capacity {
			c.logger.Debugf("device list full (%d), discarding device %d (%s)", capacity, dev.Index, dev.Name)
			continue
		}
		devices = append(devices, dev)
	}
	return devices, nil
}

// Device requests a single device by index.
func (c *Channel) Device(index uint32) (Device, error) {
	msgs, err := c.execute("get device", abi.CmdGetDevice, encodeDeviceIndex(index), netlink.Request)
	if err != nil {
		return Device{}, err
	}
	if len(msgs) == 0 {
		return Device{}, &DecodeError{Command: abi.CmdGetDevice, Reason: "empty reply"}
	}

	dev, err := decodeDevice(msgs[0].Data)
	if err != nil {
		c.logger.Debugf("get device %d: %v", index, err)
		return Device{}, err
	}
	return dev, nil
}

// StartPoll asks device to scan for targets speaking any protocol in mask.
// If the request fails, polling is stopped and the request is sent exactly
// once more; the error of the second attempt is returned.
func (c *Channel) StartPoll(device uint32, protocols ProtocolMask) error {
	err := c.startPoll(device, protocols)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrClosed) {
		return err
	}

	c.logger.Debugf("start poll on device %d (%s) failed: %v; stopping and retrying once", device, protocols, err)
	if stopErr := c.StopPoll(device); stopErr != nil {
		c.logger.Debugf("stop poll on device %d before retry: %v", device, stopErr)
	}

	return c.startPoll(device, protocols)
}

func (c *Channel) startPoll(device uint32, protocols ProtocolMask) error {
	_, err := c.execute("start poll", abi.CmdStartPoll, encodeStartPoll(device, protocols),
		netlink.Request|netlink.Acknowledge)
	return err
}

// StopPoll stops scanning on device.
func (c *Channel) StopPoll(device uint32) error {
	_, err := c.execute("stop poll", abi.CmdStopPoll, encodeDeviceIndex(device),
		netlink.Request|netlink.Acknowledge)
	return err
}
