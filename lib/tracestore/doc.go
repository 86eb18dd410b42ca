// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracestore holds the reconciled trace view: the live set
// plus one bucket per calendar day of historical data. It is pure
// data and algorithms — no I/O, no clock, no goroutines. The sync
// loop (lib/tracesync) is the only writer; readers get copies.
//
// The interesting part is the today view: the current calendar day is
// served from two independently fetched sources, the live set and
// today's historical bucket, merged with first-seen-wins dedup by
// trace ID and sorted by start time descending.
package tracestore
