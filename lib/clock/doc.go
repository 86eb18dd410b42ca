// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock abstracts time for the sync loop and anything else
// that polls. Production code injects Real(); tests inject Fake()
// and advance time deterministically.
package clock
