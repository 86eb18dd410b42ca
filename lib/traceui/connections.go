// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/tracedeck/tracedeck/lib/bicp"
)

// connectionCallTimeout bounds the list and switch calls issued from
// the connection picker.
const connectionCallTimeout = 10 * time.Second

// ConnectionSwitcher is the slice of the BICP session the connection
// picker consumes. Nil when the server did not advertise candidate
// selection; the picker is then unavailable.
type ConnectionSwitcher interface {
	ListConnections(ctx context.Context) ([]bicp.Connection, error)
	SwitchConnection(ctx context.Context, id string) error
}

// connectionPicker is the modal overlay listing the backend's
// configured connections.
type connectionPicker struct {
	loading     bool
	err         error
	connections []bicp.Connection
	cursor      int
}

// connectionsMsg delivers the result of a list-connections call.
type connectionsMsg struct {
	connections []bicp.Connection
	err         error
}

// switchResultMsg delivers the result of a switch-connection call.
type switchResultMsg struct {
	name string
	err  error
}

func fetchConnections(switcher ConnectionSwitcher) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectionCallTimeout)
		defer cancel()
		connections, err := switcher.ListConnections(ctx)
		return connectionsMsg{connections: connections, err: err}
	}
}

func switchConnection(switcher ConnectionSwitcher, connection bicp.Connection) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), connectionCallTimeout)
		defer cancel()
		err := switcher.SwitchConnection(ctx, connection.ID)
		return switchResultMsg{name: connection.Name, err: err}
	}
}

// view renders the picker as a bordered box centered in the given
// content area.
func (picker *connectionPicker) view(theme Theme, width, height int) string {
	var body strings.Builder

	title := lipgloss.NewStyle().Foreground(theme.HeaderForeground).Bold(true)
	faint := lipgloss.NewStyle().Foreground(theme.FaintText)
	body.WriteString(title.Render("Connections") + "\n\n")

	switch {
	case picker.loading:
		body.WriteString(faint.Render("loading…"))
	case picker.err != nil:
		errStyle := lipgloss.NewStyle().Foreground(theme.StateFailed)
		body.WriteString(errStyle.Render("error: " + picker.err.Error()))
	case len(picker.connections) == 0:
		body.WriteString(faint.Render("no connections configured"))
	default:
		for index, connection := range picker.connections {
			label := connection.Name
			if label == "" {
				label = connection.ID
			}
			marker := "  "
			if connection.Active {
				marker = "● "
			}
			line := marker + label
			if index == picker.cursor {
				line = lipgloss.NewStyle().
					Background(theme.SelectedBackground).
					Foreground(theme.SelectedForeground).
					Render("> " + line)
			} else {
				line = lipgloss.NewStyle().Foreground(theme.NormalText).Render("  " + line)
			}
			body.WriteString(line + "\n")
		}
	}

	body.WriteString("\n" + faint.Render("enter: switch · esc: close"))

	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(theme.BorderColor).
		Padding(0, 2).
		Render(body.String())

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, box)
}

// moveCursor shifts the picker selection, clamped to the list.
func (picker *connectionPicker) moveCursor(delta int) {
	picker.cursor += delta
	if picker.cursor < 0 {
		picker.cursor = 0
	}
	if picker.cursor >= len(picker.connections) {
		picker.cursor = len(picker.connections) - 1
	}
	if picker.cursor < 0 {
		picker.cursor = 0
	}
}

// selected returns the connection under the picker cursor.
func (picker *connectionPicker) selected() (bicp.Connection, bool) {
	if picker.cursor < 0 || picker.cursor >= len(picker.connections) {
		return bicp.Connection{}, false
	}
	return picker.connections[picker.cursor], true
}

// switchedNotice formats the status bar notice after a successful
// connection switch.
func switchedNotice(name string) string {
	return fmt.Sprintf("switched to %s", name)
}
