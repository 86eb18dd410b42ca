// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

func readyHandshake() func(json.RawMessage) (any, *errorPayload) {
	return func(params json.RawMessage) (any, *errorPayload) {
		return initializeResult{
			ProtocolVersion: ProtocolVersion,
			ServerInfo:      ServerInfo{Name: "bicpd", Version: "3.1.0"},
		}, nil
	}
}

func newTestSession(t *testing.T) (*fakeBackend, *Session) {
	t.Helper()
	backend, client := newFakeBackend(t)
	session, err := NewSession(SessionConfig{
		Client:        client,
		ClientName:    "tracedeck",
		ClientVersion: "test",
	})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return backend, session
}

func TestInitializeRecordsServerIdentity(t *testing.T) {
	backend, session := newTestSession(t)
	backend.handle(methodInitialize, func(params json.RawMessage) (any, *errorPayload) {
		var p initializeParams
		if err := json.Unmarshal(params, &p); err != nil {
			t.Errorf("initialize params: %v", err)
		}
		if p.ProtocolVersion != ProtocolVersion {
			t.Errorf("declared protocol version %q, want %q", p.ProtocolVersion, ProtocolVersion)
		}
		if p.ClientInfo.Name != "tracedeck" {
			t.Errorf("client name %q", p.ClientInfo.Name)
		}
		if !p.Capabilities.Streaming || !p.Capabilities.CandidateSelection ||
			!p.Capabilities.SemanticSearch || !p.Capabilities.Refinement {
			t.Errorf("capability set incomplete: %+v", p.Capabilities)
		}
		return initializeResult{
			ProtocolVersion: "1.1",
			ServerInfo:      ServerInfo{Name: "bicpd", Version: "3.1.0"},
		}, nil
	})

	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if !session.Ready() {
		t.Fatal("session not ready after successful handshake")
	}
	info, ok := session.ServerInfo()
	if !ok || info.Name != "bicpd" || info.Version != "3.1.0" {
		t.Fatalf("ServerInfo = %+v, %v", info, ok)
	}
	if got := session.NegotiatedVersion(); got != "1.1" {
		t.Fatalf("NegotiatedVersion = %q, want the server's 1.1", got)
	}
}

func TestInitializeFailureLeavesSessionNotReady(t *testing.T) {
	backend, session := newTestSession(t)
	backend.handle(methodInitialize, func(json.RawMessage) (any, *errorPayload) {
		return nil, &errorPayload{Code: 500, Message: "unavailable"}
	})

	err := session.Initialize(context.Background())
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) || remoteErr.Message != "unavailable" {
		t.Fatalf("err = %v, want RemoteError(unavailable)", err)
	}
	if session.Ready() {
		t.Fatal("session ready after failed handshake")
	}
	if _, ok := session.ServerInfo(); ok {
		t.Fatal("ServerInfo available after failed handshake")
	}
	if session.Err() == nil {
		t.Fatal("Err() empty after failed handshake")
	}
}

func TestInitializeRetryAfterFailure(t *testing.T) {
	backend, session := newTestSession(t)
	attempts := 0
	backend.handle(methodInitialize, func(params json.RawMessage) (any, *errorPayload) {
		attempts++
		if attempts == 1 {
			return nil, &errorPayload{Code: 503, Message: "starting up"}
		}
		return readyHandshake()(params)
	})

	if err := session.Initialize(context.Background()); err == nil {
		t.Fatal("first handshake unexpectedly succeeded")
	}
	// Manual reconnect: a second Initialize re-attempts.
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if !session.Ready() || session.Err() != nil {
		t.Fatal("session not clean after successful retry")
	}
}

func TestInitializeIsIdempotentWhileInFlight(t *testing.T) {
	backend, session := newTestSession(t)

	release := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	backend.handle(methodInitialize, func(params json.RawMessage) (any, *errorPayload) {
		once.Do(func() { close(started) })
		<-release
		return readyHandshake()(params)
	})

	done := make(chan error, 1)
	go func() { done <- session.Initialize(context.Background()) }()
	<-started

	// Re-entrant call while the handshake is in flight: no-op.
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("re-entrant Initialize: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	// Already ready: still a no-op.
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize when ready: %v", err)
	}

	handshakes := 0
	for _, request := range backend.requestLog() {
		if request.Method == methodInitialize {
			handshakes++
		}
	}
	if handshakes != 1 {
		t.Fatalf("backend saw %d handshakes, want exactly 1", handshakes)
	}
}

func TestMethodsGatedOnHandshake(t *testing.T) {
	_, session := newTestSession(t)
	ctx := context.Background()

	if _, err := session.ListLiveTraces(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ListLiveTraces before ready = %v, want ErrNotReady", err)
	}
	if _, err := session.ListHistoricalTraces(ctx, "2024-01-02"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ListHistoricalTraces before ready = %v, want ErrNotReady", err)
	}
	if _, err := session.ListTraceDates(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ListTraceDates before ready = %v, want ErrNotReady", err)
	}
	if err := session.ClearTraces(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ClearTraces before ready = %v, want ErrNotReady", err)
	}
	if _, err := session.ListConnections(ctx); !errors.Is(err, ErrNotReady) {
		t.Fatalf("ListConnections before ready = %v, want ErrNotReady", err)
	}
	if err := session.SwitchConnection(ctx, "a"); !errors.Is(err, ErrNotReady) {
		t.Fatalf("SwitchConnection before ready = %v, want ErrNotReady", err)
	}
}

func TestInvalidateTearsDownSession(t *testing.T) {
	backend, session := newTestSession(t)
	backend.handle(methodInitialize, readyHandshake())

	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	cause := errors.New("connection reset")
	session.Invalidate(cause)
	if session.Ready() {
		t.Fatal("session ready after Invalidate")
	}
	if !errors.Is(session.Err(), cause) {
		t.Fatalf("Err = %v, want the invalidation cause", session.Err())
	}

	// Re-establish by retrying the handshake.
	if err := session.Initialize(context.Background()); err != nil {
		t.Fatalf("re-Initialize: %v", err)
	}
	if !session.Ready() {
		t.Fatal("session not ready after re-handshake")
	}
}

func TestListTraceMethods(t *testing.T) {
	backend, session := newTestSession(t)
	backend.handle(methodInitialize, readyHandshake())
	backend.handle(methodListTraces, func(params json.RawMessage) (any, *errorPayload) {
		var p listTracesParams
		if err := json.Unmarshal(params, &p); err != nil {
			t.Errorf("list params: %v", err)
		}
		switch p.Scope {
		case ScopeLive:
			if p.Date != "" {
				t.Errorf("live list carries date %q", p.Date)
			}
			return listTracesResult{Traces: []tracestore.Trace{{ID: "live-1", StartTime: 100}}}, nil
		case ScopeHistorical:
			if p.Date != "2024-01-02" {
				t.Errorf("historical list date = %q", p.Date)
			}
			return listTracesResult{Traces: []tracestore.Trace{{ID: "old-1", StartTime: 50}}}, nil
		default:
			t.Errorf("unexpected scope %q", p.Scope)
			return nil, &errorPayload{Code: 400, Message: "bad scope"}
		}
	})
	backend.handle(methodListTraceDates, func(json.RawMessage) (any, *errorPayload) {
		return TraceDates{Enabled: true, Dates: []tracestore.DayKey{"2024-01-02"}}, nil
	})
	backend.handle(methodClearTraces, func(json.RawMessage) (any, *errorPayload) {
		return struct{}{}, nil
	})

	ctx := context.Background()
	if err := session.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	live, err := session.ListLiveTraces(ctx)
	if err != nil || len(live) != 1 || live[0].ID != "live-1" {
		t.Fatalf("ListLiveTraces = %v, %v", live, err)
	}

	historical, err := session.ListHistoricalTraces(ctx, "2024-01-02")
	if err != nil || len(historical) != 1 || historical[0].ID != "old-1" {
		t.Fatalf("ListHistoricalTraces = %v, %v", historical, err)
	}

	if _, err := session.ListHistoricalTraces(ctx, "not-a-date"); err == nil {
		t.Fatal("invalid date accepted")
	}

	dates, err := session.ListTraceDates(ctx)
	if err != nil || !dates.Enabled || len(dates.Dates) != 1 {
		t.Fatalf("ListTraceDates = %+v, %v", dates, err)
	}

	if err := session.ClearTraces(ctx); err != nil {
		t.Fatalf("ClearTraces: %v", err)
	}
}

func TestConnectionMethods(t *testing.T) {
	backend, session := newTestSession(t)
	backend.handle(methodInitialize, readyHandshake())
	backend.handle(methodListConnections, func(json.RawMessage) (any, *errorPayload) {
		return listConnectionsResult{Connections: []Connection{
			{ID: "local", Name: "Local", Active: true},
			{ID: "staging", Name: "Staging"},
		}}, nil
	})
	backend.handle(methodSwitchConnection, func(params json.RawMessage) (any, *errorPayload) {
		var p switchConnectionParams
		if err := json.Unmarshal(params, &p); err != nil || p.ID != "staging" {
			t.Errorf("switch params = %s (%v)", params, err)
		}
		return struct{}{}, nil
	})

	ctx := context.Background()
	if err := session.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}

	connections, err := session.ListConnections(ctx)
	if err != nil || len(connections) != 2 || !connections[0].Active {
		t.Fatalf("ListConnections = %v, %v", connections, err)
	}
	if err := session.SwitchConnection(ctx, "staging"); err != nil {
		t.Fatalf("SwitchConnection: %v", err)
	}
	if err := session.SwitchConnection(ctx, ""); err == nil {
		t.Fatal("empty connection id accepted")
	}
}
