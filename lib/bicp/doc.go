// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package bicp implements the client side of the BICP channel: a
// correlated JSON request/response exchange over a single HTTP POST
// endpoint.
//
// Client is the transport — it numbers requests, builds envelopes,
// and turns transport and remote failures into typed errors. Session
// layers the one-time initialize handshake on top and exposes the
// typed backend methods (traces, dates, connections), all gated on a
// successful handshake.
package bicp
