// Package dispatch forwards JSON-RPC requests to the dispatcher function that
// lives inside PostgreSQL.
//
// # Overview
//
// The gateway does not implement any MCP method itself. Every request is handed
// to a single SQL entry point, by default:
//
//	SELECT (api.mcp_handle_request($1::jsonb, $2::jsonb)).envelope
//
// $1 is the request exactly as the caller sent it. $2 is the caller identity as a
// JSON object, or NULL when no identity headers were present. The backend can
// therefore tell "no identity asserted" apart from "identity with no fields".
//
// # Connections
//
// A Connector hands out one connection per dispatch and a release func that the
// Client always calls before returning:
//
//   - DirectConnector opens a new pgx connection per request and closes it.
//   - PoolConnector checks a connection out of a pgxpool.Pool and returns it.
//
// # Errors
//
// Dispatch returns either the raw envelope or a *BackendError. A query that yields
// no row is reported as ErrNoResult; a row whose envelope is SQL NULL is relayed
// as the JSON literal null.
//
// # Usage
//
//	connector, err := dispatch.NewDirectConnector(os.Getenv("DATABASE_URL"), logger)
//	client, err := dispatch.NewClient(dispatch.Config{Connector: connector})
//	envelope, err := client.Dispatch(ctx, req.Raw, auth.FromHeaders(r.Header))
package dispatch
