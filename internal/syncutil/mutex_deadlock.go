//go:build deadlock

// Package syncutil provides the mutex used by the channel and log sinks.
// This file is compiled with -tags=deadlock and reports lock-order
// inversions and long waits through go-deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex.
type Mutex struct {
	deadlock.Mutex
}
