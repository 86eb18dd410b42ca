// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package tracestore

import (
	"fmt"
	"testing"
)

const (
	today     = DayKey("2024-01-03")
	yesterday = DayKey("2024-01-02")
)

func trace(id string, startTime int64) Trace {
	return Trace{ID: id, StartTime: startTime}
}

func ids(traces []Trace) []string {
	out := make([]string, len(traces))
	for i, t := range traces {
		out[i] = t.ID
	}
	return out
}

func TestEffectiveTracesMergesTodayWithoutDuplicates(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("a", 100)})
	s.ReplaceDay(today, []Trace{trace("a", 100), trace("b", 50)})

	got := s.EffectiveTraces(today, today)
	if len(got) != 2 {
		t.Fatalf("effective view has %d traces, want 2: %v", len(got), ids(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("effective view order = %v, want [a b]", ids(got))
	}
}

func TestEffectiveTracesLiveWinsOnCollision(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("a", 200)})
	// Same ID with a different start time in the archive: the live
	// copy takes precedence.
	s.ReplaceDay(today, []Trace{trace("a", 100)})

	got := s.EffectiveTraces(today, today)
	if len(got) != 1 {
		t.Fatalf("effective view has %d traces, want 1", len(got))
	}
	if got[0].StartTime != 200 {
		t.Fatalf("collision kept StartTime %d, want the live copy's 200", got[0].StartTime)
	}
}

func TestEffectiveTracesMergeIsIdempotent(t *testing.T) {
	s := New()
	live := []Trace{trace("a", 300), trace("b", 200)}
	archived := []Trace{trace("b", 200), trace("c", 100)}
	s.ReplaceLive(live)
	s.ReplaceDay(today, archived)

	first := s.EffectiveTraces(today, today)
	second := s.EffectiveTraces(today, today)
	if len(first) != 3 || len(second) != 3 {
		t.Fatalf("merge sizes = %d, %d; want 3, 3", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("repeated merge differs at %d: %v vs %v", i, ids(first), ids(second))
		}
	}
}

func TestEffectiveTracesSortedDescendingStableTies(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("old", 10), trace("tie1", 50), trace("tie2", 50)})
	s.ReplaceDay(today, []Trace{trace("new", 90)})

	got := s.EffectiveTraces(today, today)
	for i := 0; i+1 < len(got); i++ {
		if got[i].StartTime < got[i+1].StartTime {
			t.Fatalf("not descending at %d: %v", i, got)
		}
	}
	// Ties keep original fetch order: tie1 before tie2.
	if got[1].ID != "tie1" || got[2].ID != "tie2" {
		t.Fatalf("tie order = %v, want tie1 before tie2", ids(got))
	}
}

func TestEffectiveTracesPastDayIgnoresLive(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("live", 500)})
	s.ReplaceDay(yesterday, []Trace{trace("x", 100)})

	got := s.EffectiveTraces(yesterday, today)
	if len(got) != 1 || got[0].ID != "x" {
		t.Fatalf("past day view = %v, want [x]", ids(got))
	}
}

func TestKnownDatesInjectsToday(t *testing.T) {
	s := New()
	s.SetKnownDates([]DayKey{"2024-01-02"})

	got := s.KnownDates("2024-01-03")
	want := []DayKey{"2024-01-03", "2024-01-02"}
	if len(got) != len(want) {
		t.Fatalf("KnownDates = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("KnownDates = %v, want %v", got, want)
		}
	}
}

func TestKnownDatesDeduplicatesAndDropsInvalid(t *testing.T) {
	s := New()
	s.SetKnownDates([]DayKey{"2024-01-03", "2024-01-01", "not-a-date"})

	got := s.KnownDates("2024-01-03")
	want := []DayKey{"2024-01-03", "2024-01-01"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Fatalf("KnownDates = %v, want %v", got, want)
	}
}

func TestDayStateLifecycle(t *testing.T) {
	s := New()
	day := DayKey("2024-01-01")

	if got := s.DayState(day); got != Unloaded {
		t.Fatalf("fresh day state = %v, want unloaded", got)
	}
	s.MarkDayLoading(day)
	if got := s.DayState(day); got != Loading {
		t.Fatalf("state after MarkDayLoading = %v, want loading", got)
	}
	s.ReplaceDay(day, []Trace{trace("a", 1)})
	if got := s.DayState(day); got != Loaded {
		t.Fatalf("state after ReplaceDay = %v, want loaded", got)
	}
}

func TestMarkDayFailedKeepsPriorData(t *testing.T) {
	s := New()
	day := DayKey("2024-01-01")
	s.ReplaceDay(day, []Trace{trace("a", 1)})

	// A refresh that fails leaves the stale data in place.
	s.MarkDayLoading(day)
	s.MarkDayFailed(day)

	if got := s.DayState(day); got != Failed {
		t.Fatalf("state = %v, want failed", got)
	}
	if got := s.EffectiveTraces(day, today); len(got) != 1 || got[0].ID != "a" {
		t.Fatalf("failed refresh dropped data: %v", ids(got))
	}
}

func TestRefreshKeepsStaleDataWhileLoading(t *testing.T) {
	s := New()
	day := DayKey("2024-01-01")
	s.ReplaceDay(day, []Trace{trace("a", 1)})
	s.MarkDayLoading(day)

	if got := s.EffectiveTraces(day, today); len(got) != 1 {
		t.Fatalf("loading bucket dropped stale data: %v", ids(got))
	}
}

func TestReplaceLiveCollapsesDuplicateIDs(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("a", 100), trace("a", 50), trace("b", 10)})

	got := s.Live()
	if len(got) != 2 {
		t.Fatalf("live set has %d traces, want 2", len(got))
	}
	if got[0].StartTime != 100 {
		t.Fatalf("duplicate collapse kept StartTime %d, want first occurrence's 100", got[0].StartTime)
	}
}

func TestClearLiveLeavesHistoricalAlone(t *testing.T) {
	s := New()
	s.ReplaceLive([]Trace{trace("live", 500)})
	s.ReplaceDay(today, []Trace{trace("archived", 100)})

	s.ClearLive()
	if got := s.Live(); len(got) != 0 {
		t.Fatalf("live set not empty after ClearLive: %v", ids(got))
	}
	if got := s.EffectiveTraces(today, today); len(got) != 1 || got[0].ID != "archived" {
		t.Fatalf("ClearLive touched the historical bucket: %v", ids(got))
	}
}
