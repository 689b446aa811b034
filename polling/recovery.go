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
	"time"

	"github.com/ZaparooProject/go-nfcctl"
	"github.com/ZaparooProject/go-nfcctl/internal/syncutil"
)

// ErrRecoveryDisabled is returned by a Recoverer that cannot reopen.
var ErrRecoveryDisabled = errors.New("channel recovery disabled")

// Recoverer replaces a control channel that can no longer be used.
type Recoverer interface {
	// Recover returns a freshly opened channel. The broken one has already
	// been closed by the caller.
	Recover(ctx context.Context) (*nfcctl.Channel, error)
}

// ReopenFunc opens a new control channel.
type ReopenFunc func() (*nfcctl.Channel, error)

// DefaultRecoverer retries a ReopenFunc with a fixed backoff.
type DefaultRecoverer struct {
	reopen      ReopenFunc
	backoff     time.Duration
	maxAttempts int
	attempts    int
	mu          syncutil.Mutex
}

// NewDefaultRecoverer creates a recoverer around reopen. Non-positive
// values select the defaults of DefaultRecoveryConfig.
func NewDefaultRecoverer(reopen ReopenFunc, backoff time.Duration, maxAttempts int) *DefaultRecoverer {
	defaults := DefaultRecoveryConfig()
	if maxAttempts <= 0 {
		maxAttempts = defaults.MaxAttempts
	}
	if backoff <= 0 {
		backoff = defaults.Backoff
	}
	return &DefaultRecoverer{
		reopen:      reopen,
		backoff:     backoff,
		maxAttempts: maxAttempts,
	}
}

// Recover calls the reopen function until it succeeds, the attempts are
// used up or ctx ends.
func (r *DefaultRecoverer) Recover(ctx context.Context) (*nfcctl.Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.reopen == nil {
		return nil, ErrRecoveryDisabled
	}

	var lastErr error
	for attempt := range r.maxAttempts {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.backoff):
			}
		}

		r.attempts++
		ch, err := r.reopen()
		if err == nil {
			return ch, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("reopen failed after %d attempts: %w", r.maxAttempts, lastErr)
}

// Attempts returns the number of reopen calls made so far.
func (r *DefaultRecoverer) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}
