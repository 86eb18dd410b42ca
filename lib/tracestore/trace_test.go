// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTraceUnmarshalKeepsOpaqueFields(t *testing.T) {
	wire := []byte(`{"id":"t-1","startTime":1704240000000,"model":"small","tokens":42}`)

	var tr Trace
	if err := json.Unmarshal(wire, &tr); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tr.ID != "t-1" || tr.StartTime != 1704240000000 {
		t.Fatalf("decoded ID=%q StartTime=%d", tr.ID, tr.StartTime)
	}
	if len(tr.Extra) != 2 {
		t.Fatalf("Extra has %d fields, want 2: %v", len(tr.Extra), tr.Extra)
	}
	if string(tr.Extra["model"]) != `"small"` {
		t.Fatalf("Extra[model] = %s", tr.Extra["model"])
	}

	// Re-emitting restores every field.
	out, err := json.Marshal(tr)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var round map[string]any
	if err := json.Unmarshal(out, &round); err != nil {
		t.Fatalf("re-decode: %v", err)
	}
	if round["id"] != "t-1" || round["tokens"] != float64(42) {
		t.Fatalf("round trip lost fields: %v", round)
	}
}

func TestTraceStartedAt(t *testing.T) {
	tr := Trace{StartTime: 1704240000000}
	want := time.UnixMilli(1704240000000)
	if !tr.StartedAt().Equal(want) {
		t.Fatalf("StartedAt = %v, want %v", tr.StartedAt(), want)
	}
}

func TestDayKeyValid(t *testing.T) {
	cases := []struct {
		key  DayKey
		want bool
	}{
		{"2024-01-03", true},
		{"2024-1-3", false},
		{"yesterday", false},
		{"", false},
	}
	for _, c := range cases {
		if got := c.key.Valid(); got != c.want {
			t.Errorf("Valid(%q) = %v, want %v", c.key, got, c.want)
		}
	}
}

func TestDayOf(t *testing.T) {
	moment := time.Date(2024, 1, 3, 23, 59, 0, 0, time.UTC)
	if got := DayOf(moment); got != "2024-01-03" {
		t.Fatalf("DayOf = %q, want 2024-01-03", got)
	}
}
