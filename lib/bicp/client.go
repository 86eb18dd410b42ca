// Copyright 2026 The Tracedeck Authors
// SPDX-License-Identifier: Apache-2.0

package bicp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// EndpointURL is the single BICP endpoint, e.g.
	// "http://127.0.0.1:8632/bicp". Every call POSTs here.
	EndpointURL string
	// HTTPClient is used for all requests. If nil, http.DefaultClient
	// is used.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default()
	// is used.
	Logger *slog.Logger
}

// Client is the BICP transport. Each instance owns its correlation
// counter, so independent clients (and tests) never share request-id
// state. Concurrent calls are independent: there is no queueing or
// coalescing, and no retries — retry policy belongs to callers.
//
// Client is safe for concurrent use.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger

	// nextID numbers requests starting at 1. Monotonic, never reused,
	// never reset for the lifetime of the Client.
	nextID atomic.Int64
}

// NewClient creates a BICP client for the given endpoint.
func NewClient(config ClientConfig) (*Client, error) {
	if config.EndpointURL == "" {
		return nil, fmt.Errorf("bicp: EndpointURL is required")
	}
	if _, err := url.Parse(config.EndpointURL); err != nil {
		return nil, fmt.Errorf("bicp: invalid EndpointURL %q: %w", config.EndpointURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   config.EndpointURL,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Call sends one named request and decodes its result into T.
//
// Failures map onto the package's error taxonomy: *TransportError for
// network or non-2xx outcomes, *RemoteError when the reply carries an
// error payload. The result is decoded into T without further schema
// validation — shape assumptions are the caller's trust boundary with
// the backend.
func Call[T any](ctx context.Context, client *Client, method string, params any) (T, error) {
	var result T
	raw, err := client.call(ctx, method, params)
	if err != nil {
		return result, err
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return result, fmt.Errorf("bicp: %s result: %w", method, err)
	}
	return result, nil
}

// call performs one correlated request/response exchange and returns
// the raw result payload.
func (c *Client) call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	id := c.nextID.Add(1)

	body, err := json.Marshal(envelope{
		EnvelopeVersion: EnvelopeVersion,
		Method:          method,
		Params:          params,
		ID:              id,
	})
	if err != nil {
		return nil, fmt.Errorf("bicp: encode %s request: %w", method, err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bicp: build %s request: %w", method, err)
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, &TransportError{Status: response.StatusCode, Err: err}
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, &TransportError{Status: response.StatusCode}
	}

	var r reply
	if err := json.Unmarshal(responseBody, &r); err != nil {
		return nil, &TransportError{Status: response.StatusCode, Err: fmt.Errorf("malformed reply: %w", err)}
	}

	// A reply correlated to some other request is discarded. With one
	// exchange per HTTP round trip this only happens against a
	// non-conforming server.
	if r.ID == nil || *r.ID != id {
		c.logger.Warn("discarding reply with mismatched correlation id",
			"method", method, "sent", id, "received", r.ID)
		return nil, &TransportError{Err: fmt.Errorf("reply correlation id does not match request %d", id)}
	}

	if r.Error != nil {
		return nil, &RemoteError{Code: r.Error.Code, Message: r.Error.Message, Data: r.Error.Data}
	}
	if r.Result == nil {
		return nil, &TransportError{Err: fmt.Errorf("reply %d carries neither result nor error", id)}
	}
	return r.Result, nil
}
