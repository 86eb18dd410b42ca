// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/tracedeck/tracedeck/lib/tracestore"
	"github.com/tracedeck/tracedeck/lib/tracesync"
)

// FocusRegion identifies where keyboard input routes.
type FocusRegion int

const (
	// FocusList means navigation keys move the trace list cursor.
	FocusList FocusRegion = iota
	// FocusDetail means navigation keys scroll the detail viewport.
	FocusDetail
	// FocusFilter means keystrokes go to the filter input.
	FocusFilter
	// FocusConnections means the connection picker overlay is active
	// and receives all input until dismissed.
	FocusConnections
)

// Split ratio bounds and step size.
const (
	splitRatioMin  = 0.20
	splitRatioMax  = 0.80
	splitRatioStep = 0.05
)

// noticeFadeDelay is how long transient status notices stay visible.
const noticeFadeDelay = 3 * time.Second

// Syncer is the slice of the sync loop the model consumes. It is
// implemented by *tracesync.Loop; tests substitute a fake.
type Syncer interface {
	Snapshot() tracesync.Snapshot
	Updates() <-chan struct{}
	Expand(day tracestore.DayKey)
	RefreshAll()
	ClearLive()
}

// snapshotMsg wraps a fresh sync loop snapshot for delivery through
// the bubbletea message loop.
type snapshotMsg struct {
	snapshot tracesync.Snapshot
}

// noticeFadeMsg is sent after a delay to clear the status bar notice.
type noticeFadeMsg struct{}

// Model is the top-level bubbletea model for the trace console.
type Model struct {
	syncer      Syncer
	connections ConnectionSwitcher
	theme       Theme
	keys        KeyMap

	// serverLabel identifies the backend in the header bar, set from
	// the handshake's server info.
	serverLabel string

	// Terminal dimensions (set by WindowSizeMsg).
	width  int
	height int
	ready  bool

	// Data state.
	snapshot  tracesync.Snapshot
	collapsed map[tracestore.DayKey]bool
	filter    FilterModel

	// List state.
	rows         []Row
	cursor       int
	scrollOffset int
	selectedID   string // Stable focus: track selection by trace ID.

	// Two-pane layout.
	focusRegion FocusRegion
	splitRatio  float64 // Fraction of width for the list pane.
	detailPane  DetailPane

	// Connection picker overlay. Nil when closed.
	picker *connectionPicker

	// Transient status bar notice.
	notice string
}

// NewModel creates a Model reading from the given sync loop. The loop
// must already be started.
func NewModel(syncer Syncer) Model {
	model := Model{
		syncer:     syncer,
		theme:      DefaultTheme,
		keys:       DefaultKeyMap,
		splitRatio: 0.55,
		detailPane: NewDetailPane(DefaultTheme),
		collapsed:  make(map[tracestore.DayKey]bool),
		snapshot:   syncer.Snapshot(),
	}
	model.rebuildRows()
	return model
}

// SetConnectionSwitcher enables the connection picker. Call after
// NewModel when the handshake advertised candidate selection; leave
// unset otherwise and the picker stays unavailable.
func (model *Model) SetConnectionSwitcher(switcher ConnectionSwitcher) {
	model.connections = switcher
}

// SetServerLabel sets the backend identity shown in the header bar.
func (model *Model) SetServerLabel(label string) {
	model.serverLabel = label
}

// Init implements tea.Model.
func (model Model) Init() tea.Cmd {
	return listenForUpdate(model.syncer)
}

// listenForUpdate returns a tea.Cmd that blocks until the sync loop
// signals a change, then delivers the fresh snapshot.
func listenForUpdate(syncer Syncer) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-syncer.Updates(); !ok {
			return nil
		}
		return snapshotMsg{snapshot: syncer.Snapshot()}
	}
}

// Update implements tea.Model. Routes keyboard events based on the
// current focus region and handles layout changes.
func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.KeyMsg:
		if model.focusRegion == FocusFilter {
			return model.handleFilterKeys(message)
		}
		if model.focusRegion == FocusConnections {
			return model.handleConnectionKeys(message)
		}

		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit

		case key.Matches(message, model.keys.FocusToggle):
			if model.focusRegion == FocusList {
				model.focusRegion = FocusDetail
			} else {
				model.focusRegion = FocusList
			}

		case key.Matches(message, model.keys.SplitGrow):
			model.splitRatio = min(model.splitRatio+splitRatioStep, splitRatioMax)
			model.updatePaneSizes()

		case key.Matches(message, model.keys.SplitShrink):
			model.splitRatio = max(model.splitRatio-splitRatioStep, splitRatioMin)
			model.updatePaneSizes()

		case key.Matches(message, model.keys.Refresh):
			model.syncer.RefreshAll()
			return model.withNotice("refreshing")

		case key.Matches(message, model.keys.ClearLive):
			model.syncer.ClearLive()
			return model.withNotice("live traces cleared")

		case key.Matches(message, model.keys.Connections):
			if model.connections == nil {
				return model.withNotice("connection switching not supported by this server")
			}
			model.picker = &connectionPicker{loading: true}
			model.focusRegion = FocusConnections
			return model, fetchConnections(model.connections)

		case key.Matches(message, model.keys.FilterActivate):
			model.focusRegion = FocusFilter
			model.filter.Active = true
			model.cursor = 0
			model.scrollOffset = 0
			model.rebuildRows()

		case key.Matches(message, model.keys.FilterClear):
			if model.filter.Input != "" {
				model.filter.Clear()
				model.rebuildRows()
			}

		default:
			if model.focusRegion == FocusList {
				model.handleListKeys(message)
			} else {
				model.handleDetailKeys(message)
			}
		}

	case tea.WindowSizeMsg:
		model.width = message.Width
		model.height = message.Height
		model.ready = true
		model.updatePaneSizes()
		model.ensureCursorVisible()

	case snapshotMsg:
		model.snapshot = message.snapshot
		model.rebuildRows()
		return model, listenForUpdate(model.syncer)

	case connectionsMsg:
		if model.picker != nil {
			model.picker.loading = false
			model.picker.connections = message.connections
			model.picker.err = message.err
		}

	case switchResultMsg:
		if message.err != nil {
			if model.picker != nil {
				model.picker.err = message.err
			}
			return model, nil
		}
		model.picker = nil
		model.focusRegion = FocusList
		model.syncer.RefreshAll()
		return model.withNotice(switchedNotice(message.name))

	case noticeFadeMsg:
		model.notice = ""
	}

	return model, nil
}

// withNotice sets a transient status bar notice and schedules its
// removal.
func (model Model) withNotice(notice string) (tea.Model, tea.Cmd) {
	model.notice = notice
	return model, tea.Tick(noticeFadeDelay, func(time.Time) tea.Msg {
		return noticeFadeMsg{}
	})
}

// handleFilterKeys processes input while the filter has focus.
func (model Model) handleFilterKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.FilterClear):
		model.filter.Clear()
		model.focusRegion = FocusList
		model.rebuildRows()

	case message.Type == tea.KeyEnter:
		// Confirm: keep the filter text, return focus to the list.
		model.filter.Active = false
		model.focusRegion = FocusList

	case message.Type == tea.KeyBackspace:
		if model.filter.HandleBackspace() {
			model.cursor = 0
			model.scrollOffset = 0
			model.rebuildRows()
		}

	case message.Type == tea.KeyRunes:
		for _, character := range message.Runes {
			model.filter.HandleRune(character)
		}
		model.cursor = 0
		model.scrollOffset = 0
		model.rebuildRows()
	}
	return model, nil
}

// handleConnectionKeys processes input while the connection picker is
// open.
func (model Model) handleConnectionKeys(message tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(message, model.keys.FilterClear), key.Matches(message, model.keys.Quit):
		model.picker = nil
		model.focusRegion = FocusList

	case key.Matches(message, model.keys.Up):
		if model.picker != nil {
			model.picker.moveCursor(-1)
		}

	case key.Matches(message, model.keys.Down):
		if model.picker != nil {
			model.picker.moveCursor(1)
		}

	case message.Type == tea.KeyEnter:
		if model.picker == nil || model.picker.loading {
			return model, nil
		}
		if connection, ok := model.picker.selected(); ok {
			return model, switchConnection(model.connections, connection)
		}
	}
	return model, nil
}

// handleListKeys processes navigation while the list has focus.
func (model *Model) handleListKeys(message tea.KeyMsg) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.moveCursor(-1)

	case key.Matches(message, model.keys.Down):
		model.moveCursor(1)

	case key.Matches(message, model.keys.PageUp):
		model.moveCursor(-model.listHeight())

	case key.Matches(message, model.keys.PageDown):
		model.moveCursor(model.listHeight())

	case key.Matches(message, model.keys.Home):
		model.moveCursor(-len(model.rows))

	case key.Matches(message, model.keys.End):
		model.moveCursor(len(model.rows))

	case key.Matches(message, model.keys.Right):
		model.expandCurrent()

	case key.Matches(message, model.keys.Left):
		model.collapseCurrent()
	}
}

// handleDetailKeys scrolls the detail viewport.
func (model *Model) handleDetailKeys(message tea.KeyMsg) {
	switch {
	case key.Matches(message, model.keys.Up):
		model.detailPane.ScrollUp(1)
	case key.Matches(message, model.keys.Down):
		model.detailPane.ScrollDown(1)
	case key.Matches(message, model.keys.PageUp):
		model.detailPane.PageUp()
	case key.Matches(message, model.keys.PageDown):
		model.detailPane.PageDown()
	case key.Matches(message, model.keys.Home):
		model.detailPane.GotoTop()
	case key.Matches(message, model.keys.End):
		model.detailPane.GotoBottom()
	}
}

func (model *Model) moveCursor(delta int) {
	model.cursor += delta
	if model.cursor < 0 {
		model.cursor = 0
	}
	if model.cursor >= len(model.rows) {
		model.cursor = len(model.rows) - 1
	}
	if model.cursor < 0 {
		model.cursor = 0
	}
	model.updateSelectedID()
	model.ensureCursorVisible()
	model.syncDetailPane()
}

// expandCurrent opens the day group under the cursor. An unloaded or
// failed day also gets a fetch; a loaded one just unfolds.
func (model *Model) expandCurrent() {
	if model.cursor < 0 || model.cursor >= len(model.rows) {
		return
	}
	row := model.rows[model.cursor]
	if !row.IsHeader {
		return
	}

	if row.Collapsed {
		delete(model.collapsed, row.Day)
		model.rebuildRows()
	}
	if row.State == tracestore.Unloaded || row.State == tracestore.Failed {
		model.syncer.Expand(row.Day)
	}
}

// collapseCurrent folds the day group under the cursor. On a trace
// row, the cursor jumps to the owning header first.
func (model *Model) collapseCurrent() {
	if model.cursor < 0 || model.cursor >= len(model.rows) {
		return
	}
	if !model.rows[model.cursor].IsHeader {
		for index := model.cursor; index >= 0; index-- {
			if model.rows[index].IsHeader {
				model.cursor = index
				break
			}
		}
	}
	row := model.rows[model.cursor]
	if !row.IsHeader {
		return
	}
	model.collapsed[row.Day] = true
	model.selectedID = ""
	model.rebuildRows()
}

// syncDetailPane pushes the currently selected trace into the detail
// viewport.
func (model *Model) syncDetailPane() {
	model.detailPane.SetTrace(model.selectedTrace())
}

// --- Layout ---

func (model *Model) listWidth() int {
	width := int(float64(model.width) * model.splitRatio)
	if width < 20 {
		width = 20
	}
	if width > model.width-1 {
		width = model.width - 1
	}
	return width
}

func (model *Model) detailWidth() int {
	return model.width - model.listWidth() - 1
}

// listHeight is the number of content rows between the header (plus
// optional error banner) and the bottom bar.
func (model *Model) listHeight() int {
	height := model.height - 2 - model.bannerLines()
	if height < 1 {
		height = 1
	}
	return height
}

func (model *Model) bannerLines() int {
	if model.bannerText() == "" {
		return 0
	}
	return 1
}

// bannerText returns the error line shown under the header: the
// aggregated load failure first, then the most recent failed
// operation.
func (model *Model) bannerText() string {
	if model.snapshot.InitialError != nil {
		return "load failed: " + model.snapshot.InitialError.Error()
	}
	if model.snapshot.OpError != nil {
		return model.snapshot.OpError.Error()
	}
	return ""
}

func (model *Model) updatePaneSizes() {
	if !model.ready {
		return
	}
	model.detailPane.SetSize(model.detailWidth(), model.listHeight())
	model.syncDetailPane()
}

func (model *Model) ensureCursorVisible() {
	height := model.listHeight()
	if height <= 0 {
		return
	}
	if model.cursor < model.scrollOffset {
		model.scrollOffset = model.cursor
	}
	if model.cursor >= model.scrollOffset+height {
		model.scrollOffset = model.cursor - height + 1
	}
	if model.scrollOffset < 0 {
		model.scrollOffset = 0
	}
}

// --- Rendering ---

// View implements tea.Model.
func (model Model) View() string {
	if !model.ready {
		return "initializing…"
	}

	var sections []string
	sections = append(sections, model.renderHeaderBar())
	if banner := model.bannerText(); banner != "" {
		sections = append(sections, model.renderBanner(banner))
	}

	if model.picker != nil {
		sections = append(sections, model.picker.view(model.theme, model.width, model.listHeight()))
	} else {
		sections = append(sections, model.renderPanes())
	}

	sections = append(sections, model.renderBottomBar())
	return strings.Join(sections, "\n")
}

func (model *Model) renderHeaderBar() string {
	title := lipgloss.NewStyle().
		Foreground(model.theme.HeaderForeground).
		Bold(true).
		Render(" tracedeck")
	faint := lipgloss.NewStyle().Foreground(model.theme.FaintText)

	left := title
	if model.serverLabel != "" {
		left += faint.Render(" · " + model.serverLabel)
	}
	right := faint.Render(fmt.Sprintf("%d traces ", model.snapshot.TraceCount()))

	gap := model.width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return ansi.Truncate(left, model.width, "…")
	}
	return left + strings.Repeat(" ", gap) + right
}

func (model *Model) renderBanner(text string) string {
	style := lipgloss.NewStyle().
		Foreground(model.theme.ErrorForeground).
		Background(model.theme.ErrorBackground).
		Width(model.width)
	return style.Render(ansi.Truncate(" "+text, model.width, "…"))
}

func (model *Model) renderPanes() string {
	height := model.listHeight()
	listWidth := model.listWidth()

	lines := make([]string, 0, height)
	for offset := 0; offset < height; offset++ {
		index := model.scrollOffset + offset
		if index >= len(model.rows) {
			lines = append(lines, strings.Repeat(" ", listWidth))
			continue
		}
		selected := index == model.cursor && model.focusRegion != FocusDetail
		lines = append(lines, model.renderRow(model.rows[index], listWidth, selected))
	}
	listBlock := strings.Join(lines, "\n")

	dividerStyle := lipgloss.NewStyle().Foreground(model.theme.BorderColor)
	dividerLines := make([]string, height)
	for index := range dividerLines {
		dividerLines[index] = dividerStyle.Render("│")
	}
	dividerBlock := strings.Join(dividerLines, "\n")

	return lipgloss.JoinHorizontal(lipgloss.Top, listBlock, dividerBlock, model.detailPane.View())
}

func (model *Model) renderBottomBar() string {
	if filterBar := model.filter.View(model.theme, model.width); filterBar != "" {
		return filterBar
	}

	help := lipgloss.NewStyle().Foreground(model.theme.HelpText)
	bar := help.Render(" j/k move · →/← expand/collapse · / filter · r refresh · x clear live · c connections · Tab detail · q quit")
	if model.notice != "" {
		notice := lipgloss.NewStyle().
			Foreground(model.theme.NoticeForeground).
			Render(" · " + model.notice)
		bar += notice
	}
	return ansi.Truncate(bar, model.width, "…")
}
