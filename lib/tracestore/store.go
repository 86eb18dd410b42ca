// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore

import (
	"slices"
)

// LoadState is the load status of a day bucket. It only advances
// (Unloaded → Loading → Loaded); the one sanctioned regression is an
// explicit refresh, which moves Loaded back to Loading and then to
// Loaded again with fresh data. Failed behaves like Unloaded for
// retry purposes: a later expand or refresh re-attempts the fetch.
type LoadState int

const (
	// Unloaded is the default for any date the store has never seen.
	Unloaded LoadState = iota
	// Loading means a fetch for the bucket is in flight.
	Loading
	// Loaded means the bucket holds the result of a successful fetch.
	Loaded
	// Failed means the last fetch for the bucket failed. Any data
	// from an earlier successful fetch is retained.
	Failed
)

// String returns the lowercase state name.
func (s LoadState) String() string {
	switch s {
	case Unloaded:
		return "unloaded"
	case Loading:
		return "loading"
	case Loaded:
		return "loaded"
	case Failed:
		return "failed"
	default:
		return "invalid"
	}
}

// Store is the reconciled trace view. It is not safe for concurrent
// use: the sync loop is the single writer, and readers receive
// copies, so no locking happens here.
type Store struct {
	live       []Trace
	days       map[DayKey]*dayBucket
	knownDates []DayKey
}

type dayBucket struct {
	state  LoadState
	traces []Trace
}

// New returns an empty store.
func New() *Store {
	return &Store{days: make(map[DayKey]*dayBucket)}
}

// ReplaceLive wholesale-replaces the live set. Input order is
// preserved; duplicate IDs within the input collapse to the first
// occurrence.
func (s *Store) ReplaceLive(traces []Trace) {
	s.live = dedupeByID(traces)
}

// ClearLive empties the live set.
func (s *Store) ClearLive() {
	s.live = nil
}

// Live returns a copy of the live set in fetch order.
func (s *Store) Live() []Trace {
	return slices.Clone(s.live)
}

// ReplaceDay wholesale-replaces a day bucket's traces and marks it
// Loaded.
func (s *Store) ReplaceDay(day DayKey, traces []Trace) {
	bucket := s.bucket(day)
	bucket.traces = dedupeByID(traces)
	bucket.state = Loaded
}

// MarkDayLoading moves a bucket to Loading. Existing traces are kept
// so a refresh shows stale data instead of a blank bucket.
func (s *Store) MarkDayLoading(day DayKey) {
	s.bucket(day).state = Loading
}

// MarkDayFailed moves a bucket to Failed, keeping any prior data.
func (s *Store) MarkDayFailed(day DayKey) {
	s.bucket(day).state = Failed
}

// LoadedDays returns the days currently in the Loaded state, in no
// particular order. The sync loop uses this to bound a full refresh
// to the buckets the operator has actually expanded.
func (s *Store) LoadedDays() []DayKey {
	var days []DayKey
	for day, bucket := range s.days {
		if bucket.state == Loaded {
			days = append(days, day)
		}
	}
	return days
}

// DayState returns the bucket's load state; dates never seen report
// Unloaded.
func (s *Store) DayState(day DayKey) LoadState {
	if bucket, ok := s.days[day]; ok {
		return bucket.state
	}
	return Unloaded
}

// SetKnownDates records the backend-provided list of dates that have
// historical data. Invalid keys are dropped.
func (s *Store) SetKnownDates(dates []DayKey) {
	valid := make([]DayKey, 0, len(dates))
	for _, date := range dates {
		if date.Valid() {
			valid = append(valid, date)
		}
	}
	s.knownDates = valid
}

// KnownDates returns the dates known to have data, most recent first.
// today is always included even when the backend omits it: the
// current day may have live traces and no archived ones yet.
func (s *Store) KnownDates(today DayKey) []DayKey {
	seen := make(map[DayKey]struct{}, len(s.knownDates)+1)
	dates := make([]DayKey, 0, len(s.knownDates)+1)
	for _, date := range append([]DayKey{today}, s.knownDates...) {
		if _, ok := seen[date]; ok {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}
	slices.Sort(dates)
	slices.Reverse(dates)
	return dates
}

// EffectiveTraces returns the rendered trace list for a day, sorted
// by StartTime descending with stable ties. For today this is the
// live set merged with today's historical bucket, deduplicated by ID
// with the live copy winning on collision; for any other day it is
// that day's bucket alone.
func (s *Store) EffectiveTraces(day, today DayKey) []Trace {
	var historical []Trace
	if bucket, ok := s.days[day]; ok {
		historical = bucket.traces
	}

	var merged []Trace
	if day == today {
		merged = mergeByID(s.live, historical)
	} else {
		merged = slices.Clone(historical)
	}

	slices.SortStableFunc(merged, func(a, b Trace) int {
		// Descending start time; stable sort preserves fetch order
		// on ties.
		switch {
		case a.StartTime > b.StartTime:
			return -1
		case a.StartTime < b.StartTime:
			return 1
		default:
			return 0
		}
	})
	return merged
}

func (s *Store) bucket(day DayKey) *dayBucket {
	if bucket, ok := s.days[day]; ok {
		return bucket
	}
	bucket := &dayBucket{}
	s.days[day] = bucket
	return bucket
}

// mergeByID concatenates two trace lists with first-seen-wins dedup:
// every ID from first is recorded, then entries of second append only
// when their ID is new. O(n) in the combined length.
func mergeByID(first, second []Trace) []Trace {
	merged := make([]Trace, 0, len(first)+len(second))
	seen := make(map[string]struct{}, len(first)+len(second))
	for _, list := range [2][]Trace{first, second} {
		for _, trace := range list {
			if _, ok := seen[trace.ID]; ok {
				continue
			}
			seen[trace.ID] = struct{}{}
			merged = append(merged, trace)
		}
	}
	return merged
}

// dedupeByID collapses duplicate IDs to their first occurrence,
// preserving order. Returns a copy.
func dedupeByID(traces []Trace) []Trace {
	return mergeByID(traces, nil)
}
