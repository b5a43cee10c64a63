// ABOUTME: Dispatcher client that forwards one JSON-RPC request to the database-resident handler
// ABOUTME: Acquires a scoped connection, runs the dispatch query, and returns the raw envelope

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/2389/pgmcp-gateway/internal/auth"
)

// DefaultQuery calls the backend dispatcher and selects the envelope column of its result.
const DefaultQuery = `SELECT (api.mcp_handle_request($1::jsonb, $2::jsonb)).envelope`

// Config holds configuration for the dispatcher client.
type Config struct {
	Connector Connector
	Query     string        // defaults to DefaultQuery
	Timeout   time.Duration // bounds acquire + query; 0 means no timeout
	Logger    *slog.Logger
}

// Client forwards requests to the backend dispatcher.
// It holds no per-request state and is safe for concurrent use.
type Client struct {
	connector Connector
	query     string
	timeout   time.Duration
	logger    *slog.Logger
}

// NewClient creates a dispatcher client with the given configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Connector == nil {
		return nil, errors.New("connector is required")
	}

	query := cfg.Query
	if query == "" {
		query = DefaultQuery
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		connector: cfg.Connector,
		query:     query,
		timeout:   cfg.Timeout,
		logger:    logger,
	}, nil
}

// Dispatch makes exactly one backend call for request with the given identity.
// An empty identity is sent as SQL NULL, not as an empty object.
// All failures are returned as *BackendError; the connection is released before returning.
func (c *Client) Dispatch(ctx context.Context, request json.RawMessage, ident auth.Identity) (json.RawMessage, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	identJSON, err := ident.JSON()
	if err != nil {
		return nil, &BackendError{Op: "encode context", Err: err}
	}
	var identArg any
	if identJSON != nil {
		identArg = string(identJSON)
	}

	start := time.Now()
	conn, release, err := c.connector.Acquire(ctx)
	if err != nil {
		return nil, &BackendError{Op: "connect", Err: err}
	}
	defer release()

	var envelope []byte
	err = conn.QueryRow(ctx, c.query, string(request), identArg).Scan(&envelope)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, &BackendError{Op: "dispatch", Err: ErrNoResult}
	case err != nil:
		return nil, &BackendError{Op: "dispatch", Err: err}
	}

	c.logger.Debug("dispatch complete",
		"duration", time.Since(start),
		"has_context", identArg != nil,
		"envelope_bytes", len(envelope),
	)

	// A NULL envelope (e.g. for notifications) is relayed as JSON null.
	if envelope == nil {
		return json.RawMessage("null"), nil
	}
	if !json.Valid(envelope) {
		return nil, &BackendError{Op: "dispatch", Err: ErrMalformedResult}
	}
	return json.RawMessage(envelope), nil
}
