// Package config handles configuration loading for pgmcp-gateway.
//
// # Overview
//
// Configuration is assembled from, in increasing precedence:
//
//  1. Built-in defaults (Default)
//  2. An optional YAML or TOML file
//  3. A .env file in the working directory
//  4. Environment variables
//
// Variables from .env never override ones already set in the process
// environment.
//
// # Configuration File
//
// The file path comes from the --config flag, else the PGMCP_CONFIG
// environment variable. With neither set, no file is read. The format is
// chosen by extension: .yaml/.yml or .toml.
//
// # Environment Variable Expansion
//
// Values in the file can reference environment variables:
//
//	database:
//	  url: "postgres://app:${PGPASSWORD}@db:5432/mcp"
//
// Unset variables expand to the empty string.
//
// # Environment Overrides
//
//	DATABASE_URL  database.url
//	HOST          server.host
//	PORT          server.port
//	LOG_LEVEL     logging.level
//	LOG_FORMAT    logging.format
//
// # Configuration Sections
//
//	server:
//	  host: "0.0.0.0"
//	  port: 8080
//	  max_body_bytes: 4194304
//	  read_header_timeout: "10s"
//	  shutdown_timeout: "5s"
//
//	database:
//	  url: "${DATABASE_URL}"
//	  dispatch_query: "SELECT (api.mcp_handle_request($1::jsonb, $2::jsonb)).envelope"
//	  dispatch_timeout: "0s"   # 0 disables the bound
//	  pool: false              # true shares a pgxpool across requests
//	  max_conns: 0             # pool only; 0 keeps the pgxpool default
//
//	backend:
//	  redact_errors: false     # true hides backend failure text from callers
//
//	audit:
//	  path: ""                 # SQLite file; empty disables the dispatch audit log
//
//	logging:
//	  level: "info"            # debug, info, warn, error
//	  format: "text"           # text, json
//
// # Validation
//
// Load only fails on unreadable input. Validate, called before serving,
// requires a database URL, a port in 1..65535, a positive body limit,
// non-negative max_conns and dispatch_timeout, and a known log format.
package config
