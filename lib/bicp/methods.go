// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"context"
	"fmt"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// TraceScope selects which trace set a list call targets.
type TraceScope string

const (
	// ScopeLive is the current, still-accumulating trace set.
	ScopeLive TraceScope = "live"
	// ScopeHistorical is a completed day's archive; calls with this
	// scope require a date.
	ScopeHistorical TraceScope = "historical"
)

// TraceDates is the backend's answer to a date-list call. Dates must
// not be trusted unless Enabled is true: a server with archiving
// turned off answers with an empty, disabled list.
type TraceDates struct {
	Enabled bool                `json:"enabled"`
	Dates   []tracestore.DayKey `json:"dates"`
}

// Connection is one configured backend connection. The console can
// switch among them over the same channel.
type Connection struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type listTracesParams struct {
	Scope TraceScope        `json:"scope"`
	Date  tracestore.DayKey `json:"date,omitempty"`
}

type listTracesResult struct {
	Traces []tracestore.Trace `json:"traces"`
}

type listConnectionsResult struct {
	Connections []Connection `json:"connections"`
}

type switchConnectionParams struct {
	ID string `json:"id"`
}

// ListLiveTraces fetches the live trace set.
func (s *Session) ListLiveTraces(ctx context.Context) ([]tracestore.Trace, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	result, err := Call[listTracesResult](ctx, s.client, methodListTraces, listTracesParams{Scope: ScopeLive})
	if err != nil {
		return nil, err
	}
	return result.Traces, nil
}

// ListHistoricalTraces fetches the archive for one day.
func (s *Session) ListHistoricalTraces(ctx context.Context, date tracestore.DayKey) ([]tracestore.Trace, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	if !date.Valid() {
		return nil, fmt.Errorf("bicp: invalid historical date %q", date)
	}
	result, err := Call[listTracesResult](ctx, s.client, methodListTraces, listTracesParams{
		Scope: ScopeHistorical,
		Date:  date,
	})
	if err != nil {
		return nil, err
	}
	return result.Traces, nil
}

// ListTraceDates fetches the list of days known to have archived
// traces. Callers must check TraceDates.Enabled before trusting the
// list.
func (s *Session) ListTraceDates(ctx context.Context) (TraceDates, error) {
	if err := s.guard(); err != nil {
		return TraceDates{}, err
	}
	return Call[TraceDates](ctx, s.client, methodListTraceDates, struct{}{})
}

// ClearTraces asks the backend to drop the live trace set.
func (s *Session) ClearTraces(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	_, err := Call[struct{}](ctx, s.client, methodClearTraces, struct{}{})
	return err
}

// ListConnections fetches the configured backend connections.
func (s *Session) ListConnections(ctx context.Context) ([]Connection, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	result, err := Call[listConnectionsResult](ctx, s.client, methodListConnections, struct{}{})
	if err != nil {
		return nil, err
	}
	return result.Connections, nil
}

// SwitchConnection makes the named connection active. Trace data
// fetched before a switch describes the old connection; callers
// refresh after a successful switch.
func (s *Session) SwitchConnection(ctx context.Context, id string) error {
	if err := s.guard(); err != nil {
		return err
	}
	if id == "" {
		return fmt.Errorf("bicp: connection id is required")
	}
	_, err := Call[struct{}](ctx, s.client, methodSwitchConnection, switchConnectionParams{ID: id})
	return err
}
