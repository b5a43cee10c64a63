// ABOUTME: HTTP bridge that relays MCP JSON-RPC requests to a database dispatcher.
// ABOUTME: Routes POST /mcp and GET /health, synthesizes transport-level error envelopes.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/2389/pgmcp-gateway/internal/auth"
	"github.com/2389/pgmcp-gateway/internal/store"
)

// DefaultMaxBodyBytes bounds request bodies when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 4 << 20

// HeaderRequestID carries the per-request correlation id on responses.
const HeaderRequestID = "X-Request-Id"

// Route paths.
const (
	PathMCP    = "/mcp"
	PathHealth = "/health"
)

var healthBody = []byte(`{"status":"healthy"}`)

// Dispatcher forwards one request envelope and caller identity to the backend
// and returns the backend's response envelope.
type Dispatcher interface {
	Dispatch(ctx context.Context, request json.RawMessage, ident auth.Identity) (json.RawMessage, error)
}

// Config holds configuration for the MCP bridge server.
type Config struct {
	Dispatcher   Dispatcher
	Audit        store.Store // optional; nil disables dispatch auditing
	Logger       *slog.Logger
	MaxBodyBytes int64 // 0 means DefaultMaxBodyBytes
	RedactErrors bool  // replace backend failure text with "Internal error"
}

// Server relays MCP requests to the dispatcher. It holds no per-request state
// and is safe for concurrent use.
type Server struct {
	dispatcher   Dispatcher
	audit        store.Store
	logger       *slog.Logger
	maxBodyBytes int64
	redactErrors bool
}

// NewServer creates a new MCP bridge server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if cfg.MaxBodyBytes < 0 {
		return nil, errors.New("max body bytes must not be negative")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	maxBody := cfg.MaxBodyBytes
	if maxBody == 0 {
		maxBody = DefaultMaxBodyBytes
	}

	return &Server{
		dispatcher:   cfg.Dispatcher,
		audit:        cfg.Audit,
		logger:       logger.With("component", "mcp"),
		maxBodyBytes: maxBody,
		redactErrors: cfg.RedactErrors,
	}, nil
}

// ServeHTTP routes on exact method and path. Anything other than POST /mcp and
// GET /health is a 404, including known paths with the wrong method.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.Method == http.MethodPost && r.URL.Path == PathMCP:
		s.handleMCP(w, r)
	case r.Method == http.MethodGet && r.URL.Path == PathHealth:
		s.writeJSON(w, http.StatusOK, healthBody)
	default:
		http.NotFound(w, r)
	}
}

// handleMCP reads, parses and dispatches a single JSON-RPC request.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.New().String()
	w.Header().Set(HeaderRequestID, requestID)
	logger := s.logger.With("request_id", requestID)

	body, err := io.ReadAll(io.LimitReader(r.Body, s.maxBodyBytes+1))
	if err != nil {
		logger.Debug("failed to read request body", "error", err)
		s.sendError(w, http.StatusBadRequest, nil, JSONRPCParseError, MessageParseError)
		return
	}
	if int64(len(body)) > s.maxBodyBytes {
		logger.Debug("request body too large", "limit", s.maxBodyBytes)
		s.sendError(w, http.StatusRequestEntityTooLarge, nil, JSONRPCInvalidRequest, "Request body too large")
		return
	}

	req, err := ParseRequest(body)
	if err != nil {
		logger.Debug("rejected unparseable request", "error", err, "bytes", len(body))
		s.sendError(w, http.StatusBadRequest, nil, JSONRPCParseError, MessageParseError)
		return
	}

	ident := auth.FromHeaders(r.Header)

	start := time.Now()
	envelope, err := s.dispatcher.Dispatch(r.Context(), req.Raw, ident)
	elapsed := time.Since(start)

	s.record(r.Context(), requestID, req, ident, elapsed, err)

	if err != nil {
		logger.Warn("dispatch failed",
			"method", req.Method,
			"user_id", ident.UserID,
			"tenant_id", ident.TenantID,
			"duration", elapsed,
			"error", err,
		)
		message := err.Error()
		if s.redactErrors {
			message = MessageInternalError
		}
		s.sendError(w, http.StatusInternalServerError, req.IDOrNull(), JSONRPCInternalError, message)
		return
	}

	logger.Debug("dispatched request",
		"method", req.Method,
		"duration", elapsed,
		"bytes", len(envelope),
	)
	s.writeJSON(w, http.StatusOK, envelope)
}

// record appends a dispatch audit entry. Failures are logged only.
func (s *Server) record(ctx context.Context, requestID string, req *Request, ident auth.Identity, elapsed time.Duration, dispatchErr error) {
	if s.audit == nil {
		return
	}

	rec := &store.DispatchRecord{
		RequestID: requestID,
		Method:    req.Method,
		RPCID:     string(req.ID),
		UserID:    ident.UserID,
		TenantID:  ident.TenantID,
		Outcome:   store.OutcomeOK,
		Duration:  elapsed,
	}
	if dispatchErr != nil {
		rec.Outcome = store.OutcomeError
		rec.Error = dispatchErr.Error()
	}

	// The audit write should land even if the client has gone away.
	if err := s.audit.AppendDispatch(context.WithoutCancel(ctx), rec); err != nil {
		s.logger.Warn("failed to record dispatch", "request_id", requestID, "error", err)
	}
}

// sendError writes a synthesized JSON-RPC error envelope.
func (s *Server) sendError(w http.ResponseWriter, status int, id json.RawMessage, code int, message string) {
	body, err := Marshal(NewErrorResponse(id, code, message))
	if err != nil {
		// Every field is a string, int or valid RawMessage; this cannot fail in practice.
		s.logger.Error("failed to encode JSON-RPC error", "error", err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, status, body)
}

// writeJSON writes body with JSON content headers.
func (s *Server) writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		s.logger.Debug("failed to write response", "error", err)
	}
}
