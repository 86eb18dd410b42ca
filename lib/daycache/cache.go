// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package daycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"
	"github.com/zeebo/blake3"

	"github.com/tracedeck/tracedeck/lib/tracestore"
)

// magic identifies a day cache file. The trailing byte is the format
// version; bumping it invalidates every existing cache file.
var magic = []byte{'T', 'D', 'A', 'Y', 1}

// checksumSize is the BLAKE3 digest length in the header.
const checksumSize = 32

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding: the same traces always produce identical bytes, so the
// checksum is stable across rewrites.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	if encMode, err = cbor.CoreDetEncOptions().EncMode(); err != nil {
		panic("daycache: CBOR encoder initialization failed: " + err.Error())
	}
	if decMode, err = (cbor.DecOptions{}).DecMode(); err != nil {
		panic("daycache: CBOR decoder initialization failed: " + err.Error())
	}
}

// entry is the payload stored per day.
type entry struct {
	Date    tracestore.DayKey `cbor:"date"`
	SavedAt int64             `cbor:"savedAt"`
	Traces  []record          `cbor:"traces"`
}

// record is the cached form of a trace. Extra keeps the raw JSON of
// each opaque wire field, byte-for-byte.
type record struct {
	ID        string            `cbor:"id"`
	StartTime int64             `cbor:"startTime"`
	Extra     map[string][]byte `cbor:"extra,omitempty"`
}

// Cache is a directory of per-day archive files. A nil *Cache is a
// valid no-op cache: Get always misses and Put discards.
type Cache struct {
	dir     string
	logger  *slog.Logger
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open creates the cache directory if needed and returns a Cache
// over it.
func Open(dir string, logger *slog.Logger) (*Cache, error) {
	if dir == "" {
		return nil, fmt.Errorf("daycache: directory is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("daycache: create %s: %w", dir, err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("daycache: zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("daycache: zstd decoder: %w", err)
	}

	return &Cache{dir: dir, logger: logger, encoder: encoder, decoder: decoder}, nil
}

// Get returns the cached traces for a day. The second return is
// false on any miss, including corruption.
func (c *Cache) Get(day tracestore.DayKey) ([]tracestore.Trace, bool) {
	if c == nil || !day.Valid() {
		return nil, false
	}

	data, err := os.ReadFile(c.path(day))
	if err != nil {
		return nil, false
	}
	if len(data) < len(magic)+checksumSize || !bytes.Equal(data[:len(magic)], magic) {
		c.logger.Debug("day cache file has bad header", "day", day)
		return nil, false
	}

	var checksum [checksumSize]byte
	copy(checksum[:], data[len(magic):len(magic)+checksumSize])
	compressed := data[len(magic)+checksumSize:]
	if blake3.Sum256(compressed) != checksum {
		c.logger.Debug("day cache checksum mismatch", "day", day)
		return nil, false
	}

	payload, err := c.decoder.DecodeAll(compressed, nil)
	if err != nil {
		c.logger.Debug("day cache decompression failed", "day", day, "error", err)
		return nil, false
	}

	var e entry
	if err := decMode.Unmarshal(payload, &e); err != nil {
		c.logger.Debug("day cache decode failed", "day", day, "error", err)
		return nil, false
	}
	if e.Date != day {
		c.logger.Debug("day cache file holds wrong day", "day", day, "found", e.Date)
		return nil, false
	}

	traces := make([]tracestore.Trace, len(e.Traces))
	for i, r := range e.Traces {
		traces[i] = fromRecord(r)
	}
	return traces, true
}

// Put writes a day's traces to the cache, replacing any existing
// file. The write goes through a temp file and rename so a crash
// never leaves a half-written archive behind.
func (c *Cache) Put(day tracestore.DayKey, savedAt int64, traces []tracestore.Trace) error {
	if c == nil {
		return nil
	}
	if !day.Valid() {
		return fmt.Errorf("daycache: invalid day %q", day)
	}

	e := entry{Date: day, SavedAt: savedAt, Traces: make([]record, len(traces))}
	for i, trace := range traces {
		e.Traces[i] = toRecord(trace)
	}

	payload, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("daycache: encode %s: %w", day, err)
	}
	compressed := c.encoder.EncodeAll(payload, nil)
	checksum := blake3.Sum256(compressed)

	var file bytes.Buffer
	file.Write(magic)
	file.Write(checksum[:])
	file.Write(compressed)

	target := c.path(day)
	temp := target + ".tmp"
	if err := os.WriteFile(temp, file.Bytes(), 0o644); err != nil {
		return fmt.Errorf("daycache: write %s: %w", day, err)
	}
	if err := os.Rename(temp, target); err != nil {
		return fmt.Errorf("daycache: rename %s: %w", day, err)
	}
	return nil
}

func (c *Cache) path(day tracestore.DayKey) string {
	return filepath.Join(c.dir, string(day)+".day")
}

func toRecord(trace tracestore.Trace) record {
	r := record{ID: trace.ID, StartTime: trace.StartTime}
	if len(trace.Extra) > 0 {
		r.Extra = make(map[string][]byte, len(trace.Extra))
		for key, value := range trace.Extra {
			r.Extra[key] = value
		}
	}
	return r
}

func fromRecord(r record) tracestore.Trace {
	trace := tracestore.Trace{ID: r.ID, StartTime: r.StartTime}
	if len(r.Extra) > 0 {
		trace.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for key, value := range r.Extra {
			trace.Extra[key] = value
		}
	}
	return trace
}
