// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// Row is a single rendered line in the trace list: either a day group
// header or a trace entry beneath one.
type Row struct {
	// IsHeader is true for day group headers and false for trace rows.
	IsHeader bool

	// For headers.
	Day       tracestore.DayKey
	State     tracestore.LoadState
	IsToday   bool
	Count     int
	Collapsed bool

	// For trace rows.
	Trace          tracestore.Trace
	IDPositions    []int
	LabelPositions []int
}

// rebuildRows regenerates the flat row list from the current snapshot,
// filter, and collapse state, then re-anchors the cursor on the
// previously selected trace if it is still visible.
func (model *Model) rebuildRows() {
	model.rows = model.rows[:0]

	for _, day := range model.snapshot.Days {
		scored := model.filter.ApplyFuzzy(day.Traces)
		if model.filter.Input != "" && len(scored) == 0 && !day.IsToday {
			// Filtered-out past days drop from view entirely; today
			// stays as an anchor so the live badge never disappears.
			continue
		}

		collapsed := model.collapsed[day.Date]
		model.rows = append(model.rows, Row{
			IsHeader:  true,
			Day:       day.Date,
			State:     day.State,
			IsToday:   day.IsToday,
			Count:     len(scored),
			Collapsed: collapsed,
		})
		if collapsed {
			continue
		}
		for _, entry := range scored {
			model.rows = append(model.rows, Row{
				Trace:          entry.Trace,
				IDPositions:    entry.IDPositions,
				LabelPositions: entry.LabelPositions,
			})
		}
	}

	model.restoreSelection()
	model.syncDetailPane()
}

// restoreSelection moves the cursor back onto the trace it was on
// before a rebuild, or clamps it into range when that trace is gone.
func (model *Model) restoreSelection() {
	if model.selectedID != "" {
		for index, row := range model.rows {
			if !row.IsHeader && row.Trace.ID == model.selectedID {
				model.cursor = index
				model.ensureCursorVisible()
				return
			}
		}
	}
	if model.cursor >= len(model.rows) {
		model.cursor = len(model.rows) - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	model.updateSelectedID()
	model.ensureCursorVisible()
}

// updateSelectedID records the trace under the cursor for stable
// focus across rebuilds. Headers clear the selection.
func (model *Model) updateSelectedID() {
	if model.cursor >= 0 && model.cursor < len(model.rows) && !model.rows[model.cursor].IsHeader {
		model.selectedID = model.rows[model.cursor].Trace.ID
	} else {
		model.selectedID = ""
	}
}

// selectedTrace returns the trace under the cursor, or nil when a
// header (or nothing) is selected.
func (model *Model) selectedTrace() *tracestore.Trace {
	if model.cursor < 0 || model.cursor >= len(model.rows) {
		return nil
	}
	row := model.rows[model.cursor]
	if row.IsHeader {
		return nil
	}
	return &row.Trace
}

// renderRow renders one list row to exactly width columns.
func (model *Model) renderRow(row Row, width int, selected bool) string {
	var line string
	if row.IsHeader {
		line = model.renderHeaderRow(row)
	} else {
		line = model.renderTraceRow(row)
	}

	line = ansi.Truncate(line, width, "…")
	if padding := width - lipgloss.Width(line); padding > 0 {
		line += strings.Repeat(" ", padding)
	}

	if selected {
		return lipgloss.NewStyle().
			Background(model.theme.SelectedBackground).
			Foreground(model.theme.SelectedForeground).
			Render(ansi.Strip(line))
	}
	return line
}

func (model *Model) renderHeaderRow(row Row) string {
	arrow := "▾"
	if row.Collapsed {
		arrow = "▸"
	}

	header := lipgloss.NewStyle().Foreground(model.theme.DayHeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	var parts []string
	parts = append(parts, header.Render(fmt.Sprintf("%s %s", arrow, row.Day)))
	if row.IsToday {
		badge := lipgloss.NewStyle().Foreground(model.theme.LiveBadge).Bold(true)
		parts = append(parts, badge.Render("live"))
	}
	parts = append(parts, faint.Render(fmt.Sprintf("%d traces", row.Count)))

	switch row.State {
	case tracestore.Loading:
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.StateLoading).Render("loading…"))
	case tracestore.Failed:
		parts = append(parts, lipgloss.NewStyle().Foreground(model.theme.StateFailed).Render("failed"))
	case tracestore.Unloaded:
		if !row.IsToday {
			parts = append(parts, faint.Render("press → to load"))
		}
	}

	return " " + strings.Join(parts, faint.Render(" · "))
}

func (model *Model) renderTraceRow(row Row) string {
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)
	normal := lipgloss.NewStyle().Foreground(model.theme.NormalText)
	match := lipgloss.NewStyle().
		Foreground(model.theme.NormalText).
		Background(model.theme.MatchBackground)

	timestamp := faint.Render(row.Trace.StartedAt().Format("15:04:05"))
	id := highlightPositions(row.Trace.ID, row.IDPositions, normal, match)

	line := "   " + timestamp + "  " + id
	if label := traceLabel(row.Trace); label != "" {
		line += "  " + highlightPositions(label, row.LabelPositions, faint, match)
	}
	return line
}

// highlightPositions styles text rune-by-rune, using the match style
// for runes at the given positions and the base style elsewhere.
// Adjacent runes with the same style render as one styled span.
func highlightPositions(text string, positions []int, base, match lipgloss.Style) string {
	if len(positions) == 0 {
		return base.Render(text)
	}

	matched := make(map[int]struct{}, len(positions))
	for _, position := range positions {
		matched[position] = struct{}{}
	}

	var out strings.Builder
	var span []rune
	var spanMatched bool

	flush := func() {
		if len(span) == 0 {
			return
		}
		if spanMatched {
			out.WriteString(match.Render(string(span)))
		} else {
			out.WriteString(base.Render(string(span)))
		}
		span = span[:0]
	}

	for index, character := range []rune(text) {
		_, isMatch := matched[index]
		if len(span) > 0 && isMatch != spanMatched {
			flush()
		}
		spanMatched = isMatch
		span = append(span, character)
	}
	flush()
	return out.String()
}
