// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package tracesync reconciles the backend's trace data into the
// local store. A single event-loop goroutine owns every store
// mutation; fetches run in child goroutines and deliver their results
// back to the loop as messages, so completions never race on the
// store no matter how many are in flight.
//
// Stale responses are handled with per-scope generation counters:
// each issued fetch captures the current generation for its scope
// (live, dates, or one day), and a completion whose generation is no
// longer current is dropped. Clearing the live set bumps the live
// generation, which is what guarantees a pre-clear fetch still in
// flight cannot resurrect cleared traces.
package tracesync
