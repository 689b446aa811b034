//go:build linux

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
	"golang.org/x/sys/unix"

	"github.com/ZaparooProject/go-nfcctl/internal/abi"
)

// dialTarget creates an AF_NFC sequenced-packet socket and connects it to
// the target.
func dialTarget(device, target uint32, proto Protocol) (int, error) {
	fd, err := unix.Socket(unix.AF_NFC, unix.SOCK_SEQPACKET|unix.SOCK_CLOEXEC, abi.SockProtoRaw)
	if err != nil {
		return -1, err //nolint:wrapcheck // wrapped by OpenTarget
	}

	addr := &unix.SockaddrNFC{
		DeviceIdx:   device,
		TargetIdx:   target,
		NFCProtocol: uint32(proto),
	}
	if err := unix.Connect(fd, addr); err != nil {
		_ = unix.Close(fd)
		return -1, err //nolint:wrapcheck // wrapped by OpenTarget
	}
	return fd, nil
}
