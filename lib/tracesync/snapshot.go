// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracesync

import (
	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// Snapshot is the loop's published view: everything the presentation
// layer reads. It is immutable once published.
type Snapshot struct {
	// Days lists every known date, most recent first. Today is
	// always present.
	Days []DayView

	// InitialError aggregates the failures of the most recent
	// combined load (activation or manual refresh-all), or nil.
	// Steady-state polling failures never appear here.
	InitialError error

	// OpError is the failure of the most recent manual backend
	// operation (currently only clear-live), or nil.
	OpError error
}

// DayView is one day's rendered state. For today, Traces is the
// live/historical merge; for past days it is the archive alone.
type DayView struct {
	Date    tracestore.DayKey
	State   tracestore.LoadState
	Traces  []tracestore.Trace
	IsToday bool
}

// TraceCount returns the total traces across all days in the
// snapshot.
func (s Snapshot) TraceCount() int {
	total := 0
	for _, day := range s.Days {
		total += len(day.Traces)
	}
	return total
}

// Day returns the view for a date and whether it is present.
func (s Snapshot) Day(date tracestore.DayKey) (DayView, bool) {
	for _, day := range s.Days {
		if day.Date == date {
			return day, true
		}
	}
	return DayView{}, false
}

// publish rebuilds the snapshot from the store and wakes readers.
// Called only from the event goroutine.
func (l *Loop) publish() {
	today := l.today()
	dates := l.store.KnownDates(today)

	days := make([]DayView, 0, len(dates))
	for _, date := range dates {
		days = append(days, DayView{
			Date:    date,
			State:   l.store.DayState(date),
			Traces:  l.store.EffectiveTraces(date, today),
			IsToday: date == today,
		})
	}

	l.mu.Lock()
	l.snapshot = Snapshot{
		Days:         days,
		InitialError: l.initialErr,
		OpError:      l.opError,
	}
	l.mu.Unlock()

	select {
	case l.updates <- struct{}{}:
	default:
	}
}
