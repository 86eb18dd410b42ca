// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

func TestFakeNowFrozen(t *testing.T) {
	start := time.Date(2024, 1, 3, 12, 0, 0, 0, time.UTC)
	c := Fake(start)

	if got := c.Now(); !got.Equal(start) {
		t.Fatalf("Now() = %v, want %v", got, start)
	}
	c.Advance(90 * time.Second)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Second)) {
		t.Fatalf("Now() after Advance = %v, want %v", got, start.Add(90*time.Second))
	}
}

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ch := c.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("After fired before the clock advanced")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case <-ch:
	default:
		t.Fatal("After did not fire after the clock advanced past its deadline")
	}
}

func TestFakeAfterNonPositiveFiresImmediately(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	select {
	case <-c.After(0):
	default:
		t.Fatal("After(0) did not fire immediately")
	}
}

func TestFakeTickerFiresPerInterval(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	ticks := 0
	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		select {
		case <-ticker.C:
			ticks++
		default:
			t.Fatalf("no tick delivered after advance %d", i+1)
		}
	}
	if ticks != 3 {
		t.Fatalf("got %d ticks, want 3", ticks)
	}
}

func TestFakeTickerStop(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(5 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker delivered a tick")
	default:
	}
	if got := c.PendingWaiters(); got != 0 {
		t.Fatalf("PendingWaiters = %d after Stop, want 0", got)
	}
}

func TestFakeTickerDropsOverflowTicks(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Span three intervals without draining: the one-slot buffer
	// keeps a single tick.
	c.Advance(3 * time.Second)
	drained := 0
	for {
		select {
		case <-ticker.C:
			drained++
			continue
		default:
		}
		break
	}
	if drained != 1 {
		t.Fatalf("drained %d ticks, want 1 (overflow dropped)", drained)
	}
}

func TestFakeWaitForWaiters(t *testing.T) {
	c := Fake(time.Unix(0, 0))
	done := make(chan struct{})
	go func() {
		c.NewTicker(time.Second)
		close(done)
	}()

	c.WaitForWaiters(1)
	<-done
	if got := c.PendingWaiters(); got != 1 {
		t.Fatalf("PendingWaiters = %d, want 1", got)
	}
}
