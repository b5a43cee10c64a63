// ABOUTME: Scoped PostgreSQL connection acquisition for dispatch calls
// ABOUTME: Per-request pgx connections by default, pgxpool-backed acquisition when pooling is enabled

package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// closeTimeout bounds how long releasing a per-request connection may take.
const closeTimeout = 5 * time.Second

// Querier is the subset of a pgx connection used by the client.
// Both *pgx.Conn and *pgxpool.Conn satisfy it.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Connector hands out request-scoped connections.
// The returned release func must be called exactly once, on every path.
type Connector interface {
	Acquire(ctx context.Context) (Querier, func(), error)
	Close()
}

// noticeLogger forwards backend NOTICE messages (RAISE NOTICE) to the logger.
func noticeLogger(logger *slog.Logger) pgconn.NoticeHandler {
	return func(_ *pgconn.PgConn, n *pgconn.Notice) {
		logger.Debug("backend notice", "severity", n.Severity, "message", n.Message)
	}
}

// DirectConnector opens a fresh connection for every Acquire and closes it on release.
type DirectConnector struct {
	config *pgx.ConnConfig
}

// NewDirectConnector parses connString once; connections are opened lazily per request.
func NewDirectConnector(connString string, logger *slog.Logger) (*DirectConnector, error) {
	cfg, err := pgx.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg.OnNotice = noticeLogger(logger)
	return &DirectConnector{config: cfg}, nil
}

// Acquire opens a new connection to the backend.
func (c *DirectConnector) Acquire(ctx context.Context) (Querier, func(), error) {
	conn, err := pgx.ConnectConfig(ctx, c.config.Copy())
	if err != nil {
		return nil, nil, err
	}
	release := func() {
		// The request context may already be done; closing still needs to reach the server.
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancel()
		_ = conn.Close(closeCtx)
	}
	return conn, release, nil
}

// Close is a no-op; DirectConnector holds no open connections between requests.
func (c *DirectConnector) Close() {}

// PoolConfig holds settings for the pooled connector.
type PoolConfig struct {
	ConnString string
	MaxConns   int32 // 0 keeps the pgxpool default
	Logger     *slog.Logger
}

// PoolConnector acquires connections from a pgxpool.Pool and releases them back.
type PoolConnector struct {
	pool *pgxpool.Pool
}

// NewPoolConnector creates the pool. No connection is opened until first use.
func NewPoolConnector(ctx context.Context, cfg PoolConfig) (*PoolConnector, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parsing database url: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poolCfg.ConnConfig.OnNotice = noticeLogger(logger)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	return &PoolConnector{pool: pool}, nil
}

// Acquire checks a connection out of the pool.
func (c *PoolConnector) Acquire(ctx context.Context) (Querier, func(), error) {
	conn, err := c.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	return conn, conn.Release, nil
}

// Close closes the pool and all idle connections.
func (c *PoolConnector) Close() {
	c.pool.Close()
}
