// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore

import (
	"encoding/json"
	"fmt"
	"time"
)

// Trace is a single execution trace as reported by the backend.
// Identity is the ID alone: two traces with the same ID are the same
// trace regardless of other field differences. Fields beyond ID and
// StartTime are opaque to the console and pass through unmodified in
// Extra, keyed by their wire name.
type Trace struct {
	// ID is unique within the live set and within a day bucket.
	ID string

	// StartTime is the trace start as epoch milliseconds. It is the
	// sort key for every rendered list (descending).
	StartTime int64

	// Extra holds all other wire fields, undecoded.
	Extra map[string]json.RawMessage
}

// StartedAt returns StartTime as a time.Time.
func (t Trace) StartedAt() time.Time {
	return time.UnixMilli(t.StartTime)
}

// UnmarshalJSON decodes the two known fields and keeps everything
// else raw in Extra.
func (t *Trace) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("tracestore: trace is not a JSON object: %w", err)
	}

	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &t.ID); err != nil {
			return fmt.Errorf("tracestore: trace id: %w", err)
		}
		delete(fields, "id")
	}
	if raw, ok := fields["startTime"]; ok {
		if err := json.Unmarshal(raw, &t.StartTime); err != nil {
			return fmt.Errorf("tracestore: trace startTime: %w", err)
		}
		delete(fields, "startTime")
	}
	if len(fields) > 0 {
		t.Extra = fields
	} else {
		t.Extra = nil
	}
	return nil
}

// MarshalJSON re-emits the trace with its opaque fields intact.
func (t Trace) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(t.Extra)+2)
	for key, value := range t.Extra {
		fields[key] = value
	}

	id, err := json.Marshal(t.ID)
	if err != nil {
		return nil, fmt.Errorf("tracestore: trace id: %w", err)
	}
	fields["id"] = id

	startTime, err := json.Marshal(t.StartTime)
	if err != nil {
		return nil, fmt.Errorf("tracestore: trace startTime: %w", err)
	}
	fields["startTime"] = startTime

	return json.Marshal(fields)
}

// DayKey is a calendar date in local time, formatted YYYY-MM-DD.
// It is the bucket key for historical traces and the wire form of
// dates in the backend's date list.
type DayKey string

// dayKeyLayout is the time.Format layout producing a DayKey.
const dayKeyLayout = "2006-01-02"

// DayOf returns the DayKey for the calendar date of t in t's location.
func DayOf(t time.Time) DayKey {
	return DayKey(t.Format(dayKeyLayout))
}

// Valid reports whether the key parses as a YYYY-MM-DD date.
func (k DayKey) Valid() bool {
	_, err := time.Parse(dayKeyLayout, string(k))
	return err == nil
}

// Time returns the midnight instant of the day in the local zone.
// Invalid keys return the zero time.
func (k DayKey) Time() time.Time {
	t, err := time.ParseInLocation(dayKeyLayout, string(k), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}
