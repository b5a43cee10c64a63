// ABOUTME: Tests for the pgmcp-gateway command tree
// ABOUTME: Runs health, probe, audit, version and serve against httptest servers and temp stores

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/pgmcp-gateway/internal/auth"
	"github.com/2389/pgmcp-gateway/internal/config"
	gwmcp "github.com/2389/pgmcp-gateway/internal/mcp"
	"github.com/2389/pgmcp-gateway/internal/store"
)

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// isolateEnv keeps host configuration out of the command under test.
func isolateEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{config.EnvConfigPath, config.EnvDatabaseURL, config.EnvHost, config.EnvPort, config.EnvLogLevel, config.EnvLogFormat} {
		t.Setenv(k, "")
	}
	t.Chdir(t.TempDir())
}

// scriptedDispatcher answers initialize and tools/list like a minimal MCP backend.
type scriptedDispatcher struct {
	mu        sync.Mutex
	lastIdent auth.Identity
	noTools   bool
}

func (d *scriptedDispatcher) identity() auth.Identity {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastIdent
}

func (d *scriptedDispatcher) Dispatch(_ context.Context, request json.RawMessage, ident auth.Identity) (json.RawMessage, error) {
	d.mu.Lock()
	d.lastIdent = ident
	d.mu.Unlock()

	var req struct {
		ID     json.RawMessage `json:"id"`
		Method string          `json:"method"`
	}
	if err := json.Unmarshal(request, &req); err != nil {
		return nil, err
	}

	var result string
	switch req.Method {
	case "initialize":
		result = `{"protocolVersion":"2025-06-18","capabilities":{"tools":{}},"serverInfo":{"name":"pg-mcp","version":"1.2.3"}}`
	case "tools/list":
		if d.noTools {
			return json.RawMessage(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)), nil
		}
		result = `{"tools":[{"name":"query_orders","description":"Look up orders","inputSchema":{"type":"object"}},{"name":"refund","description":"Issue a refund","inputSchema":{"type":"object"}}]}`
	default:
		return json.RawMessage(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"error":{"code":-32601,"message":"Method not found"}}`, req.ID)), nil
	}
	return json.RawMessage(fmt.Sprintf(`{"jsonrpc":"2.0","id":%s,"result":%s}`, req.ID, result)), nil
}

func newBridge(t *testing.T, d gwmcp.Dispatcher) *httptest.Server {
	t.Helper()
	srv, err := gwmcp.NewServer(gwmcp.Config{Dispatcher: d})
	require.NoError(t, err)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pgmcp-gateway dev\n", out)
}

func TestServe_MissingDatabaseURL(t *testing.T) {
	isolateEnv(t)

	for _, args := range [][]string{{}, {"serve"}} {
		out, err := execute(t, args...)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "DATABASE_URL")
		assert.NotContains(t, out, "version:", "banner must not print when config is invalid")
	}
}

func TestServe_BadConfigFile(t *testing.T) {
	isolateEnv(t)

	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loading config")
}

func TestHealth(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		ts := newBridge(t, &scriptedDispatcher{})
		out, err := execute(t, "health", "--url", ts.URL+"/")
		require.NoError(t, err)
		assert.Equal(t, "healthy\n", out)
	})

	t.Run("unhealthy status", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		t.Cleanup(ts.Close)

		_, err := execute(t, "health", "--url", ts.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable", func(t *testing.T) {
		_, err := execute(t, "health", "--url", "http://127.0.0.1:1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "health check failed")
	})

	t.Run("address from config", func(t *testing.T) {
		isolateEnv(t)
		ts := newBridge(t, &scriptedDispatcher{})
		port := ts.Listener.Addr().String()[strings.LastIndex(ts.Listener.Addr().String(), ":")+1:]
		t.Setenv(config.EnvPort, port)

		out, err := execute(t, "health")
		require.NoError(t, err)
		assert.Equal(t, "healthy\n", out)
	})
}

func TestGatewayURL(t *testing.T) {
	cfg := config.Default()
	assert.Equal(t, "http://127.0.0.1:8080", gatewayURL("", cfg))

	cfg.Server.Host = "::"
	assert.Equal(t, "http://[::1]:8080", gatewayURL("", cfg))

	cfg.Server.Host = "gw.internal"
	cfg.Server.Port = 9000
	assert.Equal(t, "http://gw.internal:9000", gatewayURL("", cfg))

	assert.Equal(t, "https://x.example", gatewayURL("https://x.example/", cfg))
}

func TestProbe(t *testing.T) {
	t.Run("lists tools", func(t *testing.T) {
		d := &scriptedDispatcher{}
		ts := newBridge(t, d)

		out, err := execute(t, "probe", "--url", ts.URL, "--user", "u1", "--tenant", "t9")
		require.NoError(t, err)

		assert.Contains(t, out, "pg-mcp 1.2.3")
		assert.Contains(t, out, "2025-06-18")
		assert.Contains(t, out, "2 tool(s)")
		assert.Contains(t, out, "query_orders")
		assert.Contains(t, out, "Issue a refund")
		assert.Equal(t, auth.Identity{UserID: "u1", TenantID: "t9"}, d.identity())
	})

	t.Run("tools/list not implemented", func(t *testing.T) {
		ts := newBridge(t, &scriptedDispatcher{noTools: true})

		out, err := execute(t, "probe", "--url", ts.URL)
		require.NoError(t, err)
		assert.Contains(t, out, "does not implement tools/list")
	})

	t.Run("backend failure", func(t *testing.T) {
		ts := newBridge(t, failingDispatcher{})

		_, err := execute(t, "probe", "--url", ts.URL)
		require.Error(t, err)

		var rpcErr *RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, http.StatusInternalServerError, rpcErr.Status)
		assert.Equal(t, gwmcp.JSONRPCInternalError, rpcErr.Code)
		assert.Equal(t, "database is down", rpcErr.Msg)
	})

	t.Run("not a gateway", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("<html>"))
		}))
		t.Cleanup(ts.Close)

		_, err := execute(t, "probe", "--url", ts.URL)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "undecodable")
	})
}

type failingDispatcher struct{}

func (failingDispatcher) Dispatch(context.Context, json.RawMessage, auth.Identity) (json.RawMessage, error) {
	return nil, fmt.Errorf("database is down")
}

func seedAudit(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.db")
	s, err := store.NewSQLiteStore(path, slog.Default())
	require.NoError(t, err)
	defer s.Close()

	now := time.Now().UTC()
	records := []store.DispatchRecord{
		{RequestID: "req-old", Method: "initialize", UserID: "u1", Outcome: store.OutcomeOK, Timestamp: now.Add(-2 * time.Hour)},
		{RequestID: "req-ok", Method: "tools/list", UserID: "u1", TenantID: "t1", Outcome: store.OutcomeOK, Duration: 3 * time.Millisecond, Timestamp: now.Add(-time.Minute)},
		{RequestID: "req-err", Method: "tools/call", UserID: "u2", Outcome: store.OutcomeError, Error: "no result", Timestamp: now},
	}
	for i := range records {
		require.NoError(t, s.AppendDispatch(context.Background(), &records[i]))
	}
	return path
}

func TestAudit(t *testing.T) {
	path := seedAudit(t)

	t.Run("all records", func(t *testing.T) {
		out, err := execute(t, "audit", "--db", path)
		require.NoError(t, err)
		assert.Contains(t, out, "req-old")
		assert.Contains(t, out, "req-ok")
		assert.Contains(t, out, "req-err")
		assert.Contains(t, out, "3 record(s)")
		assert.Less(t, strings.Index(out, "req-err"), strings.Index(out, "req-old"), "newest first")
	})

	t.Run("filters", func(t *testing.T) {
		out, err := execute(t, "audit", "--db", path, "--outcome", "error")
		require.NoError(t, err)
		assert.Contains(t, out, "req-err")
		assert.NotContains(t, out, "req-ok")

		out, err = execute(t, "audit", "--db", path, "--user", "u1", "--since", "1h")
		require.NoError(t, err)
		assert.Contains(t, out, "req-ok")
		assert.NotContains(t, out, "req-old")
		assert.Contains(t, out, "1 record(s)")

		out, err = execute(t, "audit", "--db", path, "--tenant", "nobody")
		require.NoError(t, err)
		assert.Contains(t, out, "No dispatch records.")

		out, err = execute(t, "audit", "--db", path, "-n", "1")
		require.NoError(t, err)
		assert.Contains(t, out, "req-err")
		assert.Contains(t, out, "1 record(s)")
	})

	t.Run("invalid outcome", func(t *testing.T) {
		_, err := execute(t, "audit", "--db", path, "--outcome", "maybe")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "--outcome")
	})

	t.Run("missing database", func(t *testing.T) {
		missing := filepath.Join(t.TempDir(), "nope.db")
		_, err := execute(t, "audit", "--db", missing)
		require.Error(t, err)
		assert.NoFileExists(t, missing)
	})

	t.Run("no path configured", func(t *testing.T) {
		isolateEnv(t)
		_, err := execute(t, "audit")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "audit.path")
	})
}

func TestSetupLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

		logger.Info("hidden")
		logger.Warn("shown", "request_id", "r1")

		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		require.Len(t, lines, 1)
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
		assert.Equal(t, "shown", entry["msg"])
		assert.Equal(t, "r1", entry["request_id"])
	})

	t.Run("color text", func(t *testing.T) {
		var buf bytes.Buffer
		logger := setupLogger(config.LoggingConfig{Level: "debug", Format: "text"}, &buf)

		logger.With("component", "mcp").WithGroup("db").Debug("dispatched", "ms", 3)

		out := buf.String()
		assert.Contains(t, out, "DBG")
		assert.Contains(t, out, "dispatched")
		assert.Contains(t, out, "component=")
		assert.Contains(t, out, "mcp")
		assert.Contains(t, out, "db.ms=")
	})
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
