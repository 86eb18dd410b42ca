// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package traceui

import (
	"encoding/json"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// labelKeys are the opaque trace fields tried, in order, when picking
// a human-readable row label. The wire schema only guarantees id and
// startTime; everything else is backend-specific, so this is a
// heuristic over the common field names.
var labelKeys = [...]string{"name", "title", "method", "operation", "label"}

// traceLabel extracts a display label from a trace's opaque fields.
// Returns the empty string when no known field holds a string value.
func traceLabel(trace tracestore.Trace) string {
	for _, key := range labelKeys {
		raw, ok := trace.Extra[key]
		if !ok {
			continue
		}
		var value string
		if err := json.Unmarshal(raw, &value); err == nil && value != "" {
			return value
		}
	}
	return ""
}
