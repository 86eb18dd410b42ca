// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"encoding/json"
	"errors"
	"fmt"
)

// TransportError is a network- or HTTP-level failure: the call never
// produced a usable BICP reply. Not attributable to the remote
// application logic.
//
//	var transportErr *bicp.TransportError
//	if errors.As(err, &transportErr) { ... }
type TransportError struct {
	// Status is the HTTP status code when a response arrived with a
	// non-2xx status; zero when the request failed before any
	// response (connection refused, timeout, malformed body).
	Status int
	// Err is the underlying cause, when there is one.
	Err error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("bicp: transport failure (HTTP %d)", e.Status)
	}
	return fmt.Sprintf("bicp: transport failure: %v", e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteError is an explicit rejection by the backend: the reply
// carried an error payload instead of a result.
type RemoteError struct {
	// Code is the machine-readable error code from the server.
	Code int
	// Message is the human-readable description from the server.
	Message string
	// Data is optional structured detail, passed through raw.
	Data json.RawMessage
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("bicp: remote error %d: %s", e.Code, e.Message)
}

// ErrNotReady is returned by Session methods invoked before the
// handshake has succeeded. This is a caller error, not a transport
// error: nothing may be trusted over the channel until initialize
// completes.
var ErrNotReady = errors.New("bicp: session not initialized")

// errConfigClient reports a SessionConfig without a transport.
var errConfigClient = errors.New("bicp: SessionConfig.Client is required")
