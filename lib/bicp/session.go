// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"context"
	"log/slog"
	"sync"
)

// Session is the handshake state machine on top of a Client. It is
// created once per process and lazily initialized: the first
// successful Initialize records the server identity and flips the
// session ready; every backend method is gated on that.
//
// Session is safe for concurrent use.
type Session struct {
	client     *Client
	logger     *slog.Logger
	clientName string
	clientVer  string

	mu         sync.Mutex
	inFlight   bool
	ready      bool
	serverInfo ServerInfo
	negotiated string
	lastErr    error
}

// SessionConfig holds configuration for creating a Session.
type SessionConfig struct {
	// Client is the transport the session runs over. Required.
	Client *Client
	// ClientName and ClientVersion identify this console in the
	// handshake.
	ClientName    string
	ClientVersion string
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// NewSession creates an uninitialized session.
func NewSession(config SessionConfig) (*Session, error) {
	if config.Client == nil {
		return nil, errConfigClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		client:     config.Client,
		logger:     logger,
		clientName: config.ClientName,
		clientVer:  config.ClientVersion,
	}, nil
}

// Initialize performs the handshake. It is idempotent-guarded: while
// one handshake is in flight, re-entrant calls return immediately
// without issuing a second one, and a session that is already ready
// is left alone. On failure the error is recorded, the session stays
// not-ready, and nothing retries automatically — the caller decides
// when to invoke Initialize again (a manual reconnect).
func (s *Session) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.ready || s.inFlight {
		s.mu.Unlock()
		return nil
	}
	s.inFlight = true
	s.mu.Unlock()

	result, err := Call[initializeResult](ctx, s.client, methodInitialize, initializeParams{
		ProtocolVersion: ProtocolVersion,
		ClientInfo:      clientInfo{Name: s.clientName, Version: s.clientVer},
		Capabilities: clientCapabilities{
			Streaming:          true,
			CandidateSelection: true,
			SemanticSearch:     true,
			Refinement:         true,
		},
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false
	if err != nil {
		s.lastErr = err
		s.logger.Error("handshake failed", "error", err)
		return err
	}

	s.ready = true
	s.lastErr = nil
	s.serverInfo = result.ServerInfo
	s.negotiated = result.ProtocolVersion
	s.logger.Info("session ready",
		"server", result.ServerInfo.Name,
		"serverVersion", result.ServerInfo.Version,
		"protocolVersion", result.ProtocolVersion)
	return nil
}

// Ready reports whether the handshake has succeeded.
func (s *Session) Ready() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ready
}

// ServerInfo returns the server identity recorded by the handshake.
// The second return is false before the session is ready.
func (s *Session) ServerInfo() (ServerInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo, s.ready
}

// NegotiatedVersion returns the protocol version the server settled
// on, or "" before the session is ready.
func (s *Session) NegotiatedVersion() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.negotiated
}

// Err returns the error from the most recent failed handshake, or
// nil. Cleared by a later successful Initialize.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Invalidate tears the session down (ready=false) after a transport
// failure so the next Initialize re-establishes it. Recorded state
// from the old handshake is discarded.
func (s *Session) Invalidate(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = false
	s.serverInfo = ServerInfo{}
	s.negotiated = ""
	s.lastErr = err
}

// guard returns ErrNotReady when the handshake has not succeeded.
// Backend methods call this first: issuing a call before ready is a
// caller error, not a transport error.
func (s *Session) guard() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.ready {
		return ErrNotReady
	}
	return nil
}
