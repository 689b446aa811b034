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

// RecoveryConfig configures reopening the control channel after a fatal
// error, e.g. when the adapter is unplugged and plugged back in.
type RecoveryConfig struct {
	// Enabled turns recovery on. Without it a fatal error ends Run.
	Enabled bool

	// MaxAttempts is the number of reopen attempts before giving up.
	// Default: 3
	MaxAttempts int

	// Backoff is the delay between attempts.
	Backoff time.Duration
}

// DefaultRecoveryConfig returns sensible defaults for channel recovery
func DefaultRecoveryConfig() RecoveryConfig {
	return RecoveryConfig{
		Enabled:     true,
		MaxAttempts: 3,
		Backoff:     500 * time.Millisecond,
	}
}

// Config holds monitor configuration options
type Config struct {
	// Protocols is the set of protocols each device is asked to poll for.
	// It is intersected with what the device supports.
	Protocols nfcctl.ProtocolMask
	// DeviceCapacity bounds how many devices are armed.
	DeviceCapacity int
	// WaitTimeout bounds a single wait for events so that the monitor
	// periodically regains control. Zero waits until the context ends.
	WaitTimeout time.Duration
	// RearmDelay is the pause between handling a target and polling the
	// device again. The kernel leaves polling mode once targets are found.
	RearmDelay time.Duration
	Recovery   RecoveryConfig
}

// DefaultConfig returns the default monitor configuration
func DefaultConfig() *Config {
	return &Config{
		Protocols:      nfcctl.MaskAll,
		DeviceCapacity: 4,
		WaitTimeout:    time.Second,
		RearmDelay:     250 * time.Millisecond,
		Recovery:       DefaultRecoveryConfig(),
	}
}
