// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// Theme defines the color palette for the trace console. All colors
// use lipgloss ANSI 256-color codes for broad terminal compatibility.
type Theme struct {
	// Text colors.
	NormalText lipgloss.Color
	FaintText  lipgloss.Color

	// Selected row.
	SelectedBackground lipgloss.Color
	SelectedForeground lipgloss.Color

	// Day group headers and the live badge on today's group.
	DayHeaderForeground lipgloss.Color
	LiveBadge           lipgloss.Color

	// Load state annotations on day headers.
	StateLoading lipgloss.Color
	StateFailed  lipgloss.Color

	// UI chrome.
	HeaderForeground lipgloss.Color
	BorderColor      lipgloss.Color
	HelpText         lipgloss.Color

	// Error banner for failed loads and failed operations.
	ErrorForeground lipgloss.Color
	ErrorBackground lipgloss.Color

	// Transient status notices ("live traces cleared", ...).
	NoticeForeground lipgloss.Color

	// Filter match highlighting.
	MatchBackground lipgloss.Color
}

// StateColor returns the annotation color for a day load state.
// Loaded and unloaded states carry no annotation and render faint.
func (theme Theme) StateColor(state tracestore.LoadState) lipgloss.Color {
	switch state {
	case tracestore.Loading:
		return theme.StateLoading
	case tracestore.Failed:
		return theme.StateFailed
	default:
		return theme.FaintText
	}
}

// DefaultTheme is the built-in dark-terminal color scheme. Designed
// for 256-color terminals with a dark background.
var DefaultTheme = Theme{
	NormalText: lipgloss.Color("252"),
	FaintText:  lipgloss.Color("245"),

	SelectedBackground: lipgloss.Color("236"),
	SelectedForeground: lipgloss.Color("255"),

	DayHeaderForeground: lipgloss.Color("110"), // soft blue
	LiveBadge:           lipgloss.Color("114"), // green

	StateLoading: lipgloss.Color("220"), // amber
	StateFailed:  lipgloss.Color("196"), // red

	HeaderForeground: lipgloss.Color("255"),
	BorderColor:      lipgloss.Color("240"),
	HelpText:         lipgloss.Color("241"),

	ErrorForeground: lipgloss.Color("255"),
	ErrorBackground: lipgloss.Color("52"), // dark red

	NoticeForeground: lipgloss.Color("114"),

	MatchBackground: lipgloss.Color("58"), // dark amber
}
