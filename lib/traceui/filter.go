// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/junegunn/fzf/src/util"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// FilterModel implements fzf-style fuzzy matching over the trace list.
// The day grouping chooses the base set; the filter narrows every
// group client-side without touching the backend.
type FilterModel struct {
	// Input is the current filter query text.
	Input string

	// Active is true when the filter input has keyboard focus (the
	// user pressed / to start typing).
	Active bool
}

// ScoredTrace is a trace that survived the filter, with its relevance
// score and the matched rune positions for highlighting. With an
// empty filter the score is zero and positions are nil.
type ScoredTrace struct {
	Trace tracestore.Trace

	Score          int
	IDPositions    []int
	LabelPositions []int
}

// ApplyFuzzy filters traces against the current query, matching the
// trace ID and the extracted display label. Results are ordered by
// descending score (stable, so equal scores keep snapshot order). An
// empty query passes everything through unscored.
func (filter *FilterModel) ApplyFuzzy(traces []tracestore.Trace) []ScoredTrace {
	if filter.Input == "" {
		scored := make([]ScoredTrace, len(traces))
		for i, trace := range traces {
			scored[i] = ScoredTrace{Trace: trace}
		}
		return scored
	}

	pattern := []rune(filter.Input)
	slab := util.MakeSlab(100*1024, 2048)

	var scored []ScoredTrace
	for _, trace := range traces {
		idMatch := fuzzyMatch(trace.ID, pattern, slab)
		labelMatch := fuzzyMatch(traceLabel(trace), pattern, slab)
		if idMatch.Score == 0 && labelMatch.Score == 0 {
			continue
		}
		scored = append(scored, ScoredTrace{
			Trace:          trace,
			Score:          max(idMatch.Score, labelMatch.Score),
			IDPositions:    idMatch.Positions,
			LabelPositions: labelMatch.Positions,
		})
	}

	slices.SortStableFunc(scored, func(a, b ScoredTrace) int {
		return b.Score - a.Score
	})
	return scored
}

// HandleRune processes a character typed while the filter is active.
func (filter *FilterModel) HandleRune(character rune) {
	filter.Input += string(character)
}

// HandleBackspace removes the last character from the filter input.
// Returns true if the input changed.
func (filter *FilterModel) HandleBackspace() bool {
	if len(filter.Input) == 0 {
		return false
	}
	runes := []rune(filter.Input)
	filter.Input = string(runes[:len(runes)-1])
	return true
}

// Clear resets the filter input and deactivates it.
func (filter *FilterModel) Clear() {
	filter.Input = ""
	filter.Active = false
}

// View renders the filter bar. When active, shows the input with a
// cursor. When inactive with text, shows the filter as a subtle
// indicator. When inactive and empty, returns the empty string.
func (filter *FilterModel) View(theme Theme, width int) string {
	if !filter.Active && filter.Input == "" {
		return ""
	}

	style := lipgloss.NewStyle().
		Foreground(theme.NormalText).
		Width(width)

	if filter.Active {
		cursor := lipgloss.NewStyle().
			Foreground(theme.HeaderForeground).
			Bold(true).
			Render("▎")
		return style.Render(" / " + filter.Input + cursor)
	}

	dimStyle := lipgloss.NewStyle().
		Foreground(theme.FaintText).
		Width(width)
	return dimStyle.Render(" filter: " + filter.Input)
}
