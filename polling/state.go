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

package polling

import (
	"time"

	"github.com/ZaparooProject/go-nfcctl"
)

// DeviceState is the polling state of one device
type DeviceState int

const (
	// StateIdle means the device is not polling.
	StateIdle DeviceState = iota
	// StatePolling means a start poll request was accepted.
	StatePolling
	// StateTargetFound means the kernel reported targets and left polling
	// mode; the targets are being handled.
	StateTargetFound
	// StateFailed means the device could not be armed.
	StateFailed
)

func (s DeviceState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePolling:
		return "polling"
	case StateTargetFound:
		return "target-found"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DeviceStatus tracks one armed device
type DeviceStatus struct {
	LastSeen    time.Time
	LastErr     error
	Device      nfcctl.Device
	LastTargets []nfcctl.Target
	Mask        nfcctl.ProtocolMask
	State       DeviceState
	Rearms      int
}

// TransitionToPolling records an accepted start poll request
func (ds *DeviceStatus) TransitionToPolling() {
	if ds.State == StateTargetFound {
		ds.Rearms++
	}
	ds.State = StatePolling
	ds.LastErr = nil
}

// TransitionToTargetFound records the targets of one event
func (ds *DeviceStatus) TransitionToTargetFound(targets []nfcctl.Target) {
	ds.State = StateTargetFound
	ds.LastSeen = time.Now()
	ds.LastTargets = append(ds.LastTargets[:0], targets...)
}

// TransitionToFailed records a failed start poll request
func (ds *DeviceStatus) TransitionToFailed(err error) {
	ds.State = StateFailed
	ds.LastErr = err
}

// TransitionToIdle resets to idle state
func (ds *DeviceStatus) TransitionToIdle() {
	ds.State = StateIdle
	ds.LastTargets = nil
}

// clone returns a copy that shares no slices with ds.
func (ds *DeviceStatus) clone() DeviceStatus {
	out := *ds
	out.LastTargets = append([]nfcctl.Target(nil), ds.LastTargets...)
	return out
}
