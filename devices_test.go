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
	"bytes"
	"fmt"
	"testing"

	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
	testutil "github.com/ZaparooProject/go-nfcctl/internal/testing"
)

func addDevices(k *testutil.Kernel, n int) {
	for i := range n {
		k.AddDevice(uint32(i), fmt.Sprintf("nfc%d", i), 0x1f) //nolint:gosec // small test counts
	}
}

func TestDevices_CapacityBound(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		devices  int
		capacity int
		want     int
	}{
		{name: "fewer than capacity", devices: 2, capacity: 4, want: 2},
		{name: "exactly capacity", devices: 4, capacity: 4, want: 4},
		{name: "more than capacity", devices: 6, capacity: 4, want: 4},
		{name: "zero capacity", devices: 3, capacity: 0, want: 0},
		{name: "no devices", devices: 0, capacity: 4, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			k := testutil.NewKernel()
			addDevices(k, tt.devices)
			ch := openTestChannel(t, k)

			devices, err := ch.Devices(tt.capacity)
			require.NoError(t, err)
			require.Len(t, devices, tt.want)
			for i, dev := range devices {
				assert.Equal(t, uint32(i), dev.Index) //nolint:gosec // small test counts
				assert.Equal(t, fmt.Sprintf("nfc%d", i), dev.Name)
				assert.Equal(t, MaskAll, dev.Protocols)
			}
		})
	}
}

func TestDevices_SendsDumpRequest(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	ch := openTestChannel(t, k)

	_, err := ch.Devices(4)
	require.NoError(t, err)

	reqs := k.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, abi.CmdGetDevice, reqs[0].Command)
	assert.Equal(t, netlink.Request|netlink.Dump, reqs[0].Flags)
	assert.Equal(t, testutil.DefaultFamilyID, reqs[0].Family)
	assert.Empty(t, reqs[0].Attrs)
}

func TestDevices_SkipsMalformedRecords(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	k.AddDevice(0, "nfc0", 0x02)
	k.AddRawDeviceRecord(testutil.EncodeAttrs(testutil.Attr{Type: abi.AttrDeviceIndex, Value: uint32(1)}))
	k.AddRawDeviceRecord(testutil.EncodeDevice(2, "much-too-long", 0x02))
	k.AddDevice(3, "nfc3", 0x04)

	var logs bytes.Buffer
	ch := openTestChannel(t, k, WithLogger(NewWriterLogger(&logs)))

	devices, err := ch.Devices(4)
	require.NoError(t, err)
	assert.Equal(t, []Device{
		{Index: 0, Name: "nfc0", Protocols: MaskMifare},
		{Index: 3, Name: "nfc3", Protocols: MaskFelica},
	}, devices)
	assert.Contains(t, logs.String(), "skipping device record 1")
	assert.Contains(t, logs.String(), "skipping device record 2")
}

func TestDevices_MalformedRecordsDoNotCountTowardCapacity(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	k.AddRawDeviceRecord([]byte{0xff})
	k.AddDevice(5, "nfc5", 0x02)
	ch := openTestChannel(t, k)

	devices, err := ch.Devices(1)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, uint32(5), devices[0].Index)
}

func TestDevices_NegativeCapacity(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	ch := openTestChannel(t, k)

	_, err := ch.Devices(-1)
	require.ErrorIs(t, err, ErrInvalidParameter)
	assert.Empty(t, k.Requests())
}

func TestDevices_KernelError(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	k.QueueResult(abi.CmdGetDevice, &netlink.OpError{Op: "receive", Err: unix.EPERM})
	ch := openTestChannel(t, k)

	_, err := ch.Devices(4)
	require.ErrorIs(t, err, ErrReceive)
	assert.Equal(t, unix.EPERM, Errno(err))
}

func TestDevice_Single(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	addDevices(k, 3)
	ch := openTestChannel(t, k)

	dev, err := ch.Device(2)
	require.NoError(t, err)
	assert.Equal(t, Device{Index: 2, Name: "nfc2", Protocols: MaskAll}, dev)

	reqs := k.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, netlink.Request, reqs[0].Flags)
	assert.Equal(t, uint32(2), reqs[0].Attrs[abi.AttrDeviceIndex])
}

func TestDevice_Errors(t *testing.T) {
	t.Parallel()

	k := testutil.NewKernel()
	k.SetRawDevice(1, testutil.EncodeAttrs(testutil.Attr{Type: abi.AttrDeviceName, Value: "nfc1"}))
	ch := openTestChannel(t, k)

	_, err := ch.Device(7)
	assert.Equal(t, unix.ENODEV, Errno(err))
	assert.True(t, IsFatal(err))

	_, err = ch.Device(1)
	require.ErrorIs(t, err, ErrDecode)
}
