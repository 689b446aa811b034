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

package testing

import (
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// Endpoint is the frame endpoint shape shared by VirtualTag and the Mifare
// transport.
type Endpoint interface {
	Send(frame []byte) error
	Recv(buf []byte) (int, error)
}

// ErrJitterDrop is returned by a JitteryEndpoint when it drops a reply.
var ErrJitterDrop = errors.New("jittery endpoint: reply dropped")

// JitterConfig configures a JitteryEndpoint.
type JitterConfig struct {
	MaxLatency time.Duration
	Seed       uint64
	// FailRecvEvery makes every n-th Recv return ErrJitterDrop. Zero
	// disables it.
	FailRecvEvery int
}

// DefaultJitterConfig returns a small random latency with no failures.
func DefaultJitterConfig() JitterConfig {
	return JitterConfig{MaxLatency: 2 * time.Millisecond}
}

// JitteryEndpoint wraps an Endpoint with random per-frame latency, the way a
// slow controller answers on a real data socket.
type JitteryEndpoint struct {
	backend Endpoint
	rng     *rand.Rand
	config  JitterConfig
	recvs   int
	mu      syncutil.Mutex
}

// NewJitteryEndpoint wraps backend.
func NewJitteryEndpoint(backend Endpoint, config JitterConfig) *JitteryEndpoint {
	seed := config.Seed
	if seed == 0 {
		seed = rand.Uint64() //nolint:gosec // test code
	}
	return &JitteryEndpoint{
		backend: backend,
		config:  config,
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)), //nolint:gosec // test code
	}
}

// Send delays, then forwards the frame.
func (j *JitteryEndpoint) Send(frame []byte) error {
	j.sleep()
	return j.backend.Send(frame) //nolint:wrapcheck // pass-through wrapper
}

// Recv delays, then forwards the read.
func (j *JitteryEndpoint) Recv(buf []byte) (int, error) {
	j.sleep()

	j.mu.Lock()
	j.recvs++
	drop := j.config.FailRecvEvery > 0 && j.recvs%j.config.FailRecvEvery == 0
	j.mu.Unlock()

	n, err := j.backend.Recv(buf)
	if err == nil && drop {
		return 0, ErrJitterDrop
	}
	return n, err //nolint:wrapcheck // pass-through wrapper
}

func (j *JitteryEndpoint) sleep() {
	if j.config.MaxLatency <= 0 {
		return
	}
	j.mu.Lock()
	delay := time.Duration(j.rng.Int64N(int64(j.config.MaxLatency) + 1))
	j.mu.Unlock()
	time.Sleep(delay)
}
