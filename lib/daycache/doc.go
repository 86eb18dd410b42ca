// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

// Package daycache persists completed day archives on disk so the
// console can expand a past day without a backend round trip. A
// completed day's archive never changes on the server, which is what
// makes caching it safe; the current day is never cached.
//
// Each day is one file: a small header with a BLAKE3 checksum,
// followed by the zstd-compressed CBOR encoding of the day's traces.
// Any mismatch — bad magic, short file, checksum failure, undecodable
// payload — is treated as a cache miss, never an error surfaced to
// the operator.
package daycache
