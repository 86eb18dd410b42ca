// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import "time"

// Clock is the time capability injected into components that read the
// current time or run on a cadence. Code that calls time.Now or
// time.NewTicker directly cannot be tested without real waiting, so
// the core packages accept a Clock instead.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// After returns a channel that receives the current time once
	// duration d has elapsed. If d <= 0 the channel receives
	// immediately.
	After(d time.Duration) <-chan time.Time

	// NewTicker returns a Ticker delivering ticks on C every d.
	// Panics if d <= 0.
	NewTicker(d time.Duration) *Ticker
}

// Ticker delivers periodic ticks on C. Call Stop to release it; Stop
// does not close C. C is buffered with capacity 1, so a slow consumer
// drops ticks rather than queueing them, matching time.Ticker.
type Ticker struct {
	C <-chan time.Time

	stopFunc func()
}

// Stop turns off the ticker. No ticks are delivered after Stop returns.
func (t *Ticker) Stop() { t.stopFunc() }
