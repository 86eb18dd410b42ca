// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"

	"github.com/alecthomas/chroma/v2/quick"
	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// DetailPane renders the selected trace as pretty-printed,
// syntax-highlighted JSON in a scrollable viewport.
type DetailPane struct {
	theme    Theme
	viewport viewport.Model
	trace    *tracestore.Trace
	width    int
	ready    bool

	// lipRenderer carries a forced ANSI256 color profile so styles
	// render identically with or without a detected TTY (tests run
	// without one).
	lipRenderer *lipgloss.Renderer
}

// NewDetailPane creates an empty detail pane.
func NewDetailPane(theme Theme) DetailPane {
	renderer := lipgloss.NewRenderer(os.Stderr, termenv.WithProfile(termenv.ANSI256))
	renderer.SetColorProfile(termenv.ANSI256)
	return DetailPane{theme: theme, lipRenderer: renderer}
}

// SetSize resizes the viewport. Content reflows on the next SetTrace.
func (pane *DetailPane) SetSize(width, height int) {
	pane.width = width
	if !pane.ready {
		pane.viewport = viewport.New(width, height)
		pane.ready = true
	} else {
		pane.viewport.Width = width
		pane.viewport.Height = height
	}
	pane.render()
}

// SetTrace replaces the displayed trace. A nil trace blanks the pane.
// The scroll position resets when the trace identity changes and is
// preserved when the same trace is re-set (snapshot refresh).
func (pane *DetailPane) SetTrace(trace *tracestore.Trace) {
	sameTrace := trace != nil && pane.trace != nil && trace.ID == pane.trace.ID
	pane.trace = trace
	offset := pane.viewport.YOffset
	pane.render()
	if sameTrace {
		pane.viewport.SetYOffset(offset)
	} else {
		pane.viewport.GotoTop()
	}
}

// ScrollUp moves the viewport up by the given number of lines.
func (pane *DetailPane) ScrollUp(lines int) { pane.viewport.LineUp(lines) }

// ScrollDown moves the viewport down by the given number of lines.
func (pane *DetailPane) ScrollDown(lines int) { pane.viewport.LineDown(lines) }

// PageUp scrolls up one viewport height.
func (pane *DetailPane) PageUp() { pane.viewport.ViewUp() }

// PageDown scrolls down one viewport height.
func (pane *DetailPane) PageDown() { pane.viewport.ViewDown() }

// GotoTop jumps to the start of the content.
func (pane *DetailPane) GotoTop() { pane.viewport.GotoTop() }

// GotoBottom jumps to the end of the content.
func (pane *DetailPane) GotoBottom() { pane.viewport.GotoBottom() }

// View renders the pane.
func (pane *DetailPane) View() string {
	if !pane.ready {
		return ""
	}
	return pane.viewport.View()
}

func (pane *DetailPane) render() {
	if !pane.ready {
		return
	}
	if pane.trace == nil {
		empty := pane.lipRenderer.NewStyle().Foreground(pane.theme.FaintText)
		pane.viewport.SetContent(empty.Render(" no trace selected"))
		return
	}

	var lines []string

	header := pane.lipRenderer.NewStyle().
		Foreground(pane.theme.HeaderForeground).
		Bold(true)
	faint := pane.lipRenderer.NewStyle().Foreground(pane.theme.FaintText)
	lines = append(lines,
		header.Render(" "+pane.trace.ID),
		faint.Render(" started "+pane.trace.StartedAt().Format("2006-01-02 15:04:05.000")),
		"",
	)

	lines = append(lines, strings.Split(pane.renderJSON(), "\n")...)
	pane.viewport.SetContent(strings.Join(lines, "\n"))
}

// renderJSON pretty-prints the full trace (id, startTime, and every
// opaque field) and highlights it with chroma. Falls back to plain
// text when marshalling or highlighting fails.
func (pane *DetailPane) renderJSON() string {
	raw, err := json.Marshal(pane.trace)
	if err != nil {
		return " " + err.Error()
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, " ", "  "); err != nil {
		return " " + string(raw)
	}

	var highlighted strings.Builder
	if err := quick.Highlight(&highlighted, " "+pretty.String(), "json", "terminal256", "monokai"); err != nil {
		plain := pane.lipRenderer.NewStyle().Foreground(pane.theme.NormalText)
		return plain.Render(" " + pretty.String())
	}
	return strings.TrimRight(highlighted.String(), "\n")
}
