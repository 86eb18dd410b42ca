// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package traceui implements the tracedeck terminal UI: a two-pane
// bubbletea application with the day-grouped trace list on the left
// and a JSON detail view of the selected trace on the right.
//
// The model is purely presentational. All data flows in through the
// Syncer interface (implemented by tracesync.Loop): the model listens
// for update signals, re-reads the published snapshot, and posts
// expand/refresh/clear commands back. It never touches the store or
// the transport directly.
package traceui
