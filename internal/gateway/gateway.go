// ABOUTME: Gateway orchestrates the MCP bridge HTTP server and its backend connections
// ABOUTME: Wires config into connector, dispatcher, audit store and server lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"

	"github.com/2389/pgmcp-gateway/internal/config"
	"github.com/2389/pgmcp-gateway/internal/dispatch"
	"github.com/2389/pgmcp-gateway/internal/mcp"
	"github.com/2389/pgmcp-gateway/internal/store"
)

// Gateway owns the HTTP server and the resources behind it.
type Gateway struct {
	config     *config.Config
	logger     *slog.Logger
	connector  dispatch.Connector
	store      store.Store // nil when auditing is disabled
	mcpServer  *mcp.Server
	httpServer *http.Server
}

// newConnector picks the per-request or pooled connector.
func newConnector(cfg *config.Config, logger *slog.Logger) (dispatch.Connector, error) {
	if cfg.Database.Pool {
		// pgxpool connects lazily, so construction does not need a live database.
		return dispatch.NewPoolConnector(context.Background(), dispatch.PoolConfig{
			ConnString: cfg.Database.URL,
			MaxConns:   cfg.Database.MaxConns,
			Logger:     logger,
		})
	}
	return dispatch.NewDirectConnector(cfg.Database.URL, logger)
}

// initStore opens the audit store when audit.path is set.
func initStore(cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	if cfg.Audit.Path == "" {
		return nil, nil
	}
	s, err := store.NewSQLiteStore(cfg.Audit.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("initializing audit store: %w", err)
	}
	return s, nil
}

// New creates a gateway from validated configuration. No database connection
// is made until the first request.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	connector, err := newConnector(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating database connector: %w", err)
	}

	client, err := dispatch.NewClient(dispatch.Config{
		Connector: connector,
		Query:     cfg.Database.DispatchQuery,
		Timeout:   cfg.Database.DispatchTimeout,
		Logger:    logger,
	})
	if err != nil {
		connector.Close()
		return nil, fmt.Errorf("creating dispatcher: %w", err)
	}

	auditStore, err := initStore(cfg, logger)
	if err != nil {
		connector.Close()
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Dispatcher:   client,
		Audit:        auditStore,
		Logger:       logger,
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
		RedactErrors: cfg.Backend.RedactErrors,
	})
	if err != nil {
		connector.Close()
		if auditStore != nil {
			_ = auditStore.Close()
		}
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	gw := &Gateway{
		config:    cfg,
		logger:    logger,
		connector: connector,
		store:     auditStore,
		mcpServer: mcpServer,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           mcpServer,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	return gw, nil
}

// Handler returns the HTTP handler serving /mcp and /health.
func (g *Gateway) Handler() http.Handler {
	return g.mcpServer
}

// startServer starts the HTTP server in a goroutine, returning an error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// Run binds the configured address, serves until ctx is canceled, then shuts
// down gracefully. Returns nil on a clean shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	g.logger.Info("starting gateway",
		"addr", g.httpServer.Addr,
		"database", g.config.RedactedDatabaseURL(),
		"pool", g.config.Database.Pool,
		"audit", g.store != nil,
	)

	ln, err := net.Listen("tcp", g.httpServer.Addr)
	if err != nil {
		_ = g.closeResources()
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// gracefulShutdown performs shutdown with a fresh context and timeout.
// The caller's context is already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), g.config.Server.ShutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// closeResources releases the connector and audit store.
func (g *Gateway) closeResources() error {
	g.connector.Close()
	if g.store != nil {
		return g.store.Close()
	}
	return nil
}

// Shutdown stops accepting requests, waits for in-flight ones until ctx
// expires, then releases backend resources.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.closeResources())

	return errors.Join(errs...)
}
