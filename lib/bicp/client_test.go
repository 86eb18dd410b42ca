// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeBackend is an httptest-backed BICP server. Each method maps to
// a handler producing the result payload or an error payload.
type fakeBackend struct {
	t        *testing.T
	handlers map[string]func(params json.RawMessage) (any, *errorPayload)

	mu sync.Mutex
	// requests records every decoded envelope in arrival order.
	requests []envelope
}

// requestLog returns a copy of the envelopes received so far.
func (b *fakeBackend) requestLog() []envelope {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]envelope(nil), b.requests...)
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	backend := &fakeBackend{
		t:        t,
		handlers: make(map[string]func(params json.RawMessage) (any, *errorPayload)),
	}
	server := httptest.NewServer(backend)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{EndpointURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return backend, client
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var request struct {
		envelope
		Params json.RawMessage `json:"params"`
	}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		b.t.Errorf("backend received malformed request: %v", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	b.mu.Lock()
	b.requests = append(b.requests, request.envelope)
	b.mu.Unlock()

	handler, ok := b.handlers[request.Method]
	if !ok {
		b.t.Errorf("backend received unexpected method %q", request.Method)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	result, errPayload := handler(request.Params)
	response := map[string]any{
		"protocolEnvelopeVersion": EnvelopeVersion,
		"id":                      request.ID,
	}
	if errPayload != nil {
		response["error"] = errPayload
	} else {
		response["result"] = result
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		b.t.Errorf("backend encode: %v", err)
	}
}

func (b *fakeBackend) handle(method string, handler func(params json.RawMessage) (any, *errorPayload)) {
	b.handlers[method] = handler
}

func TestCallDecodesResult(t *testing.T) {
	backend, client := newFakeBackend(t)
	backend.handle("ping", func(json.RawMessage) (any, *errorPayload) {
		return map[string]string{"pong": "yes"}, nil
	})

	result, err := Call[map[string]string](context.Background(), client, "ping", struct{}{})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if result["pong"] != "yes" {
		t.Fatalf("result = %v", result)
	}
}

func TestCallCorrelationIDsStrictlyIncrease(t *testing.T) {
	backend, client := newFakeBackend(t)
	backend.handle("ping", func(json.RawMessage) (any, *errorPayload) {
		return struct{}{}, nil
	})

	for i := 0; i < 5; i++ {
		if _, err := Call[struct{}](context.Background(), client, "ping", struct{}{}); err != nil {
			t.Fatalf("call %d: %v", i, err)
		}
	}

	requests := backend.requestLog()
	if len(requests) != 5 {
		t.Fatalf("backend saw %d requests, want 5", len(requests))
	}
	for i, request := range requests {
		if want := int64(i + 1); request.ID != want {
			t.Fatalf("request %d has id %d, want %d (ids start at 1 and strictly increase)", i, request.ID, want)
		}
		if request.EnvelopeVersion != EnvelopeVersion {
			t.Fatalf("request %d has envelope version %q", i, request.EnvelopeVersion)
		}
	}
}

func TestCallRemoteError(t *testing.T) {
	backend, client := newFakeBackend(t)
	backend.handle("ping", func(json.RawMessage) (any, *errorPayload) {
		return nil, &errorPayload{Code: 500, Message: "unavailable"}
	})

	_, err := Call[struct{}](context.Background(), client, "ping", struct{}{})
	var remoteErr *RemoteError
	if !errors.As(err, &remoteErr) {
		t.Fatalf("err = %v, want *RemoteError", err)
	}
	if remoteErr.Code != 500 || remoteErr.Message != "unavailable" {
		t.Fatalf("remote error = %+v", remoteErr)
	}
}

func TestCallNonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{EndpointURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = Call[struct{}](context.Background(), client, "ping", struct{}{})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if transportErr.Status != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", transportErr.Status)
	}
}

func TestCallNetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse all connections

	client, err := NewClient(ClientConfig{EndpointURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = Call[struct{}](context.Background(), client, "ping", struct{}{})
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("err = %v, want *TransportError", err)
	}
	if transportErr.Status != 0 {
		t.Fatalf("status = %d, want 0 for a connection-level failure", transportErr.Status)
	}
}

func TestCallDiscardsMismatchedCorrelationID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Answer with a correlation id that matches no request.
		_, _ = w.Write([]byte(`{"protocolEnvelopeVersion":"2.0","result":{},"id":9999}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{EndpointURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = Call[struct{}](context.Background(), client, "ping", struct{}{})
	if err == nil {
		t.Fatal("mismatched correlation id was not rejected")
	}
}

func TestCallMissingResultAndError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"protocolEnvelopeVersion":"2.0","id":1}`))
	}))
	defer server.Close()

	client, err := NewClient(ClientConfig{EndpointURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = Call[struct{}](context.Background(), client, "ping", struct{}{})
	if err == nil {
		t.Fatal("reply without result or error was accepted")
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	if _, err := NewClient(ClientConfig{}); err == nil {
		t.Fatal("NewClient accepted an empty endpoint")
	}
}

func TestIndependentClientsNumberIndependently(t *testing.T) {
	backend, clientA := newFakeBackend(t)
	backend.handle("ping", func(json.RawMessage) (any, *errorPayload) {
		return struct{}{}, nil
	})
	backendB, clientB := newFakeBackend(t)
	backendB.handle("ping", func(json.RawMessage) (any, *errorPayload) {
		return struct{}{}, nil
	})

	if _, err := Call[struct{}](context.Background(), clientA, "ping", struct{}{}); err != nil {
		t.Fatalf("clientA: %v", err)
	}
	if _, err := Call[struct{}](context.Background(), clientB, "ping", struct{}{}); err != nil {
		t.Fatalf("clientB: %v", err)
	}

	// Each instance owns its counter: both start at 1.
	first, firstB := backend.requestLog(), backendB.requestLog()
	if first[0].ID != 1 || firstB[0].ID != 1 {
		t.Fatalf("first ids = %d, %d; want 1, 1", first[0].ID, firstB[0].ID)
	}
}
