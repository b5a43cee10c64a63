// Package mcp implements the HTTP side of the MCP bridge.
//
// # Overview
//
// MCP (Model Context Protocol) clients speak JSON-RPC 2.0. This package accepts
// those requests over HTTP and hands each one, untouched, to a Dispatcher that
// runs the real protocol logic inside PostgreSQL. The gateway does not
// understand MCP methods; it only moves envelopes.
//
// # Endpoints
//
//   - POST /mcp    - relay one JSON-RPC request to the dispatcher
//   - GET  /health - liveness, returns {"status":"healthy"} without touching the backend
//
// Every other method and path combination is answered with a plain 404.
//
// # Relay
//
// The request body must be well-formed JSON. Its exact bytes are passed on, so
// batches, notifications and unknown members all reach the backend as sent.
// On success the backend envelope is written back verbatim with status 200.
//
// # Synthesized Errors
//
// The gateway only builds an envelope itself when it cannot relay:
//
//	400 {"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"Parse error"}}
//	413 {"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Request body too large"}}
//	500 {"jsonrpc":"2.0","id":<request id>,"error":{"code":-32603,"message":"<backend failure>"}}
//
// With Config.RedactErrors set, the 500 message is always "Internal error".
//
// # Identity
//
// X-User-Id and X-Tenant-Id are read with auth.FromHeaders and passed to the
// dispatcher alongside the request.
//
// # Auditing
//
// When Config.Audit is set, one store.DispatchRecord is appended per dispatch.
// Audit failures are logged and never change the response.
package mcp
