// Package lifecycle tracks whether the process is draining before shutdown.
package lifecycle

import (
	"sync/atomic"
	"time"
)

var (
	draining   atomic.Bool
	drainStart atomic.Int64
)

// BeginDrain marks the process as draining. Call when SIGTERM/SIGINT is received.
// /health answers 503 while draining so load balancers stop routing new requests.
func BeginDrain() {
	if draining.CompareAndSwap(false, true) {
		drainStart.Store(time.Now().UnixNano())
	}
}

// IsDraining reports whether BeginDrain has been called.
func IsDraining() bool {
	return draining.Load()
}

// DrainingSince returns when draining started, or the zero time.
func DrainingSince() time.Time {
	if !draining.Load() {
		return time.Time{}
	}
	return time.Unix(0, drainStart.Load())
}

// Reset clears the draining flag. For tests only.
func Reset() {
	draining.Store(false)
	drainStart.Store(0)
}
