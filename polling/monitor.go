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
	"context"
	"errors"
	"fmt"
	"slices"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-nfcctl"
	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Monitor errors
var (
	ErrNoDevices      = errors.New("no device supports the requested protocols")
	ErrAlreadyRunning = errors.New("monitor is already running")
)

// TargetFunc handles one discovered target. The channel is the one the
// event arrived on and may be used to open a session to the target; the
// session must be closed before returning.
type TargetFunc func(ctx context.Context, ch *nfcctl.Channel, device uint32, target nfcctl.Target) error

// Metrics counts monitor activity
type Metrics struct {
	Events     int64 // Targets-found events handled
	Targets    int64 // Targets passed to OnTarget
	Rearms     int64 // Start poll requests sent after an event
	Recoveries int64 // Successful channel reopens
	Errors     int64 // Errors reported to OnError
}

type found struct {
	target nfcctl.Target
	device uint32
}

// Monitor keeps every matching device polling and hands discovered
// targets to OnTarget. The kernel stops polling a device once it reports
// targets, so the monitor re-arms the device after each event.
//
// The monitor owns its channel from NewMonitor on; Close releases it.
type Monitor struct {
	OnTarget   TargetFunc
	OnError    func(err error)
	recoverer  Recoverer
	logger     nfcctl.Logger
	ch         *nfcctl.Channel
	config     *Config
	devices    map[uint32]*DeviceStatus
	order      []uint32
	events     atomic.Int64
	targets    atomic.Int64
	rearms     atomic.Int64
	recoveries atomic.Int64
	errs       atomic.Int64
	mu         syncutil.Mutex
	running    atomic.Bool
}

// NewMonitor creates a monitor driving ch. A nil config selects
// DefaultConfig.
func NewMonitor(ch *nfcctl.Channel, config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		ch:      ch,
		config:  config,
		logger:  nfcctl.NopLogger(),
		devices: make(map[uint32]*DeviceStatus),
	}
}

// SetLogger sets the diagnostic sink.
func (m *Monitor) SetLogger(logger nfcctl.Logger) {
	if logger == nil {
		logger = nfcctl.NopLogger()
	}
	m.logger = logger
}

// SetRecoverer enables recovery from fatal channel errors. It only takes
// effect when Config.Recovery.Enabled is set.
func (m *Monitor) SetRecoverer(r Recoverer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recoverer = r
}

// Channel returns the channel currently in use. It changes after a
// recovery.
func (m *Monitor) Channel() *nfcctl.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ch
}

// Devices returns a snapshot of the armed devices in index order of
// discovery.
func (m *Monitor) Devices() []DeviceStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]DeviceStatus, 0, len(m.order))
	for _, idx := range m.order {
		out = append(out, m.devices[idx].clone())
	}
	return out
}

// Metrics returns the activity counters.
func (m *Monitor) Metrics() Metrics {
	return Metrics{
		Events:     m.events.Load(),
		Targets:    m.targets.Load(),
		Rearms:     m.rearms.Load(),
		Recoveries: m.recoveries.Load(),
		Errors:     m.errs.Load(),
	}
}

// Close releases the channel.
func (m *Monitor) Close() error {
	m.mu.Lock()
	ch := m.ch
	m.mu.Unlock()
	if ch == nil {
		return nil
	}
	if err := ch.Close(); err != nil {
		return fmt.Errorf("failed to close monitor channel: %w", err)
	}
	return nil
}

// Run arms every device and dispatches targets until ctx ends or an
// unrecoverable error occurs. Polling is stopped on all armed devices
// before Run returns. A cancelled context is reported as ctx.Err().
func (m *Monitor) Run(ctx context.Context) error {
	if !m.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer m.running.Store(false)

	if err := m.arm(); err != nil {
		return err
	}
	defer m.disarm()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch, err := m.wait(ctx)
		if err == nil {
			err = m.dispatch(ctx, batch)
		}
		if err == nil {
			continue
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := m.handleError(ctx, err); err != nil {
			return err
		}
	}
}

// wait blocks for one targets-found event, bounded by WaitTimeout.
func (m *Monitor) wait(ctx context.Context) ([]found, error) {
	waitCtx := ctx
	if m.config.WaitTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, m.config.WaitTimeout)
		defer cancel()
	}

	var batch []found
	err := m.Channel().Wait(waitCtx, func(device uint32, target nfcctl.Target) nfcctl.Action {
		batch = append(batch, found{device: device, target: target})
		return nfcctl.Continue
	})
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// dispatch hands the targets of one event to OnTarget and re-arms the
// devices that reported them.
func (m *Monitor) dispatch(ctx context.Context, batch []found) error {
	m.events.Add(1)

	var fired []uint32
	byDevice := make(map[uint32][]nfcctl.Target)
	for _, f := range batch {
		if !slices.Contains(fired, f.device) {
			fired = append(fired, f.device)
		}
		byDevice[f.device] = append(byDevice[f.device], f.target)
	}
	// an event with no usable targets still ends polling on its device
	if len(batch) == 0 {
		m.logger.Debugf("targets found event without usable targets")
	}

	m.mu.Lock()
	for _, idx := range fired {
		if st, ok := m.devices[idx]; ok {
			st.TransitionToTargetFound(byDevice[idx])
		}
	}
	m.mu.Unlock()

	ch := m.Channel()
	for _, f := range batch {
		m.targets.Add(1)
		if m.OnTarget == nil {
			continue
		}
		if err := m.OnTarget(ctx, ch, f.device, f.target); err != nil {
			m.report(fmt.Errorf("device %d target %d: %w", f.device, f.target.Index, err))
		}
	}

	var lastErr error
	for _, idx := range fired {
		err := m.rearm(ctx, idx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil || nfcctl.IsFatal(err) {
			return err
		}
		m.report(fmt.Errorf("re-arm device %d: %w", idx, err))
		lastErr = err
	}
	if lastErr != nil && !m.anyPolling() {
		return fmt.Errorf("no device left polling: %w", lastErr)
	}
	return nil
}

func (m *Monitor) anyPolling() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, st := range m.devices {
		if st.State == StatePolling {
			return true
		}
	}
	return false
}

func (m *Monitor) rearm(ctx context.Context, device uint32) error {
	m.mu.Lock()
	st, ok := m.devices[device]
	m.mu.Unlock()
	if !ok {
		m.logger.Debugf("event from unarmed device %d", device)
		return nil
	}

	if m.config.RearmDelay > 0 {
		timer := time.NewTimer(m.config.RearmDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.rearms.Add(1)
	err := m.Channel().StartPoll(device, st.Mask)

	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		st.TransitionToFailed(err)
		return err
	}
	st.TransitionToPolling()
	return nil
}

// arm lists the devices and starts polling on every one that supports at
// least one requested protocol.
func (m *Monitor) arm() error {
	ch := m.Channel()
	devices, err := ch.Devices(m.config.DeviceCapacity)
	if err != nil {
		return fmt.Errorf("failed to list devices: %w", err)
	}

	m.mu.Lock()
	m.devices = make(map[uint32]*DeviceStatus)
	m.order = m.order[:0]
	m.mu.Unlock()

	var lastErr error
	armed := 0
	for _, dev := range devices {
		mask := dev.Protocols & m.config.Protocols
		if mask == 0 {
			m.logger.Debugf("device %d (%s) supports none of %s", dev.Index, dev.Name, m.config.Protocols)
			continue
		}

		st := &DeviceStatus{Device: dev, Mask: mask}
		if err := ch.StartPoll(dev.Index, mask); err != nil {
			m.logger.Debugf("start poll on device %d: %v", dev.Index, err)
			st.TransitionToFailed(err)
			m.report(fmt.Errorf("device %d: %w", dev.Index, err))
			lastErr = err
		} else {
			st.TransitionToPolling()
			armed++
		}

		m.mu.Lock()
		m.devices[dev.Index] = st
		m.order = append(m.order, dev.Index)
		m.mu.Unlock()
	}

	switch {
	case armed > 0:
		return nil
	case lastErr != nil:
		return fmt.Errorf("failed to start polling: %w", lastErr)
	default:
		return ErrNoDevices
	}
}

// disarm stops polling on every device still in polling state.
func (m *Monitor) disarm() {
	ch := m.Channel()

	m.mu.Lock()
	var polling []uint32
	for _, idx := range m.order {
		if m.devices[idx].State == StatePolling {
			polling = append(polling, idx)
		}
	}
	m.mu.Unlock()

	for _, idx := range polling {
		if err := ch.StopPoll(idx); err != nil {
			m.logger.Debugf("stop poll on device %d: %v", idx, err)
		}
		m.mu.Lock()
		m.devices[idx].TransitionToIdle()
		m.mu.Unlock()
	}
}

// handleError decides whether Run can continue after err.
func (m *Monitor) handleError(ctx context.Context, err error) error {
	switch {
	case nfcctl.IsTimeout(err):
		return nil
	case errors.Is(err, nfcctl.ErrDecode):
		m.report(err)
		return nil
	case nfcctl.IsFatal(err):
		return m.recover(ctx, err)
	default:
		return err
	}
}

func (m *Monitor) recover(ctx context.Context, cause error) error {
	m.mu.Lock()
	recoverer := m.recoverer
	m.mu.Unlock()
	if !m.config.Recovery.Enabled || recoverer == nil {
		return cause
	}

	m.logger.Debugf("channel failed (%v), reopening", cause)
	if err := m.Channel().Close(); err != nil {
		m.logger.Debugf("closing failed channel: %v", err)
	}

	ch, err := recoverer.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recovery after %w failed: %w", cause, err)
	}

	m.mu.Lock()
	m.ch = ch
	m.mu.Unlock()

	if err := m.arm(); err != nil {
		return err
	}
	m.recoveries.Add(1)
	return nil
}

func (m *Monitor) report(err error) {
	m.errs.Add(1)
	if m.OnError != nil {
		m.OnError(err)
	}
}
