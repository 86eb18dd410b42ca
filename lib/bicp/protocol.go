// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import "encoding/json"

// EnvelopeVersion is the BICP envelope version stamped on every
// request and expected on every response.
const EnvelopeVersion = "2.0"

// ProtocolVersion is the BICP protocol version this console speaks.
// It is declared during the handshake; the server answers with the
// version it negotiated, which may differ.
const ProtocolVersion = "1.2"

// Backend method names. These are an external contract with the
// server — renaming them breaks the wire protocol.
const (
	methodInitialize       = "initialize"
	methodListTraces       = "traces/list"
	methodListTraceDates   = "traces/listDates"
	methodClearTraces      = "traces/clear"
	methodListConnections  = "connections/list"
	methodSwitchConnection = "connections/switch"
)

// envelope is a BICP request. The ID is the correlation identifier
// generated by the Client; it is unique per client instance and never
// reused.
type envelope struct {
	EnvelopeVersion string `json:"protocolEnvelopeVersion"`
	Method          string `json:"method"`
	Params          any    `json:"params,omitempty"`
	ID              int64  `json:"id"`
}

// reply is a BICP response. Exactly one of Result and Error is set.
// ID is a pointer because the server answers protocol-level failures
// (unparseable request) with a null id.
type reply struct {
	EnvelopeVersion string          `json:"protocolEnvelopeVersion"`
	Result          json.RawMessage `json:"result,omitempty"`
	Error           *errorPayload   `json:"error,omitempty"`
	ID              *int64          `json:"id"`
}

// errorPayload is the error object inside a reply.
type errorPayload struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// --- handshake types ---

// initializeParams is sent once per session. The capability set is
// fixed: capabilities are negotiated at handshake time and never
// renegotiated per call.
type initializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	ClientInfo      clientInfo         `json:"clientInfo"`
	Capabilities    clientCapabilities `json:"capabilities"`
}

// clientInfo identifies this console to the server.
type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// clientCapabilities declares the optional protocol features the
// console understands.
type clientCapabilities struct {
	Streaming          bool `json:"streaming"`
	CandidateSelection bool `json:"candidateSelection"`
	SemanticSearch     bool `json:"semanticSearch"`
	Refinement         bool `json:"refinement"`
}

// initializeResult is the server's handshake answer.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// ServerInfo identifies the backend, as reported in the handshake.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
