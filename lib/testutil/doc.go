// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides channel helpers for tests that
// synchronize with background goroutines. Each helper encapsulates
// the timeout safety valve so individual tests never hang.
package testutil
