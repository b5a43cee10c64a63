// Package gateway orchestrates the pgmcp-gateway server components.
//
// # Overview
//
// The gateway package turns a validated config.Config into a running HTTP
// service. It owns:
//
//	type Gateway struct {
//	    connector  dispatch.Connector // per-request pgx.Conn or pgxpool.Pool
//	    store      store.Store        // dispatch audit log, nil when disabled
//	    mcpServer  *mcp.Server        // POST /mcp, GET /health
//	    httpServer *http.Server
//	}
//
// # Lifecycle
//
//	gw, err := gateway.New(cfg, logger)
//	if err != nil { ... }
//	err = gw.Run(ctx) // blocks until ctx is canceled
//
// New makes no database connection; the first connection is opened by the
// first /mcp request. Run binds server.host:server.port, serves until ctx is
// canceled, then calls Shutdown with server.shutdown_timeout to drain
// in-flight requests before closing the connector and audit store.
package gateway
