// ABOUTME: Client-side subcommands that talk to a running gateway over HTTP
// ABOUTME: health checks /health, probe runs initialize and tools/list through /mcp

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/2389/pgmcp-gateway/internal/auth"
	"github.com/2389/pgmcp-gateway/internal/config"
	gwmcp "github.com/2389/pgmcp-gateway/internal/mcp"
)

const clientTimeout = 10 * time.Second

// clientOptions are the flags shared by health and probe.
type clientOptions struct {
	url      string
	userID   string
	tenantID string
}

// gatewayURL returns the base URL of the gateway, preferring an explicit --url.
// Wildcard listen hosts are dialed on loopback.
func gatewayURL(explicit string, cfg *config.Config) string {
	if explicit != "" {
		return strings.TrimSuffix(explicit, "/")
	}
	host := cfg.Server.Host
	switch host {
	case "", "0.0.0.0":
		host = "127.0.0.1"
	case "::", "[::]":
		host = "::1"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(cfg.Server.Port))
}

func (o *clientOptions) baseURL(root *rootOptions) (string, error) {
	if o.url != "" {
		return gatewayURL(o.url, nil), nil
	}
	cfg, _, err := root.loadConfig()
	if err != nil {
		return "", err
	}
	return gatewayURL("", cfg), nil
}

func newHealthCmd(root *rootOptions) *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := opts.baseURL(root)
			if err != nil {
				return err
			}
			return runHealth(cmd.Context(), cmd.OutOrStdout(), base)
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "gateway base URL (default from config)")
	return cmd
}

func runHealth(ctx context.Context, out io.Writer, baseURL string) error {
	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+gwmcp.PathHealth, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Fprintln(out, "healthy")
	return nil
}

func newProbeCmd(root *rootOptions) *cobra.Command {
	opts := &clientOptions{}

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Run initialize and tools/list through the gateway and print the result",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			base, err := opts.baseURL(root)
			if err != nil {
				return err
			}
			p := &prober{
				baseURL:  base,
				userID:   opts.userID,
				tenantID: opts.tenantID,
				client:   http.DefaultClient,
			}
			return p.run(cmd.Context(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.url, "url", "", "gateway base URL (default from config)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "value for the "+auth.HeaderUserID+" header")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "value for the "+auth.HeaderTenantID+" header")
	return cmd
}

// rpcRequest is the outgoing JSON-RPC request shape.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcResponse is the incoming JSON-RPC response shape.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *gwmcp.Error    `json:"error"`
}

// RPCError is a JSON-RPC error returned through the gateway.
type RPCError struct {
	Method string
	Status int
	Code   int
	Msg    string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("%s: HTTP %d, JSON-RPC error %d: %s", e.Method, e.Status, e.Code, e.Msg)
}

type prober struct {
	baseURL  string
	userID   string
	tenantID string
	client   *http.Client
	nextID   int
}

// call sends one request and decodes its result into v.
func (p *prober) call(ctx context.Context, method string, params, v any) error {
	p.nextID++
	body, err := json.Marshal(rpcRequest{
		JSONRPC: mcp.JSONRPC_VERSION,
		ID:      p.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", method, err)
	}

	ctx, cancel := context.WithTimeout(ctx, clientTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+gwmcp.PathMCP, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.userID != "" {
		req.Header.Set(auth.HeaderUserID, p.userID)
	}
	if p.tenantID != "" {
		req.Header.Set(auth.HeaderTenantID, p.tenantID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: reading response: %w", method, err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(raw, &rpcResp); err != nil {
		return fmt.Errorf("%s: HTTP %d, undecodable response: %w", method, resp.StatusCode, err)
	}
	if rpcResp.Error != nil {
		return &RPCError{Method: method, Status: resp.StatusCode, Code: rpcResp.Error.Code, Msg: rpcResp.Error.Message}
	}
	if len(rpcResp.Result) == 0 {
		return fmt.Errorf("%s: HTTP %d, response has no result", method, resp.StatusCode)
	}
	if err := json.Unmarshal(rpcResp.Result, v); err != nil {
		return fmt.Errorf("%s: decoding result: %w", method, err)
	}
	return nil
}

func (p *prober) run(ctx context.Context, out io.Writer) error {
	var initResult mcp.InitializeResult
	err := p.call(ctx, string(mcp.MethodInitialize), mcp.InitializeParams{
		ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
		ClientInfo:      mcp.Implementation{Name: "pgmcp-gateway-probe", Version: version},
	}, &initResult)
	if err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Fprint(out, "▶ ")
	fmt.Fprintf(out, "Server:    %s %s\n", initResult.ServerInfo.Name, initResult.ServerInfo.Version)
	green.Fprint(out, "▶ ")
	fmt.Fprintf(out, "Protocol:  %s\n", initResult.ProtocolVersion)
	if initResult.Instructions != "" {
		green.Fprint(out, "▶ ")
		fmt.Fprintf(out, "Notes:     %s\n", initResult.Instructions)
	}

	var tools mcp.ListToolsResult
	if err := p.call(ctx, string(mcp.MethodToolsList), nil, &tools); err != nil {
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == mcp.METHOD_NOT_FOUND {
			fmt.Fprintln(out, "\nServer does not implement tools/list")
			return nil
		}
		return err
	}

	fmt.Fprintf(out, "\n%d tool(s)\n", len(tools.Tools))
	if len(tools.Tools) == 0 {
		return nil
	}

	rows := make([][]string, 0, len(tools.Tools))
	for _, t := range tools.Tools {
		rows = append(rows, []string{t.Name, t.Description})
	}

	table := tablewriter.NewWriter(out)
	table.Header("Name", "Description")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("building tool table: %w", err)
	}
	return table.Render()
}
