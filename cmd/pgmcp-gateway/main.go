// ABOUTME: Entry point for pgmcp-gateway, the HTTP bridge from MCP clients to PostgreSQL
// ABOUTME: Defines the cobra command tree: serve (default), health, probe, audit, version

package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/pgmcp-gateway/internal/config"
	"github.com/2389/pgmcp-gateway/internal/gateway"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                                                  _
 _ __   __ _ _ __ ___   ___ _ __         __ _  __ _| |_ _____      ____ _ _   _
| '_ \ / _' | '_ ' _ \ / __| '_ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
| |_) | (_| | | | | | | (__| |_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
| .__/ \__, |_| |_| |_|\___| .__/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
|_|    |___/               |_|          |___/                             |___/
`

// getConfigPath returns the config file path.
// Priority: --config flag > PGMCP_CONFIG env var > none.
func getConfigPath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(config.EnvConfigPath)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

// rootOptions carries flags shared by every subcommand.
type rootOptions struct {
	configPath string
}

// loadConfig resolves and loads configuration without validating it.
func (o *rootOptions) loadConfig() (*config.Config, string, error) {
	path := getConfigPath(o.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "pgmcp-gateway",
		Short:         "HTTP gateway relaying MCP JSON-RPC requests to a PostgreSQL dispatcher",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "",
		"config file (.yaml, .yml or .toml); defaults to $"+config.EnvConfigPath)

	rootCmd.AddCommand(
		newServeCmd(opts),
		newHealthCmd(opts),
		newProbeCmd(opts),
		newAuditCmd(opts),
		newVersionCmd(),
	)

	return rootCmd
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), cmd.OutOrStdout(), opts)
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pgmcp-gateway %s\n", version)
		},
	}
}

func runServe(ctx context.Context, out io.Writer, opts *rootOptions) error {
	cfg, configPath, err := opts.loadConfig()
	if err != nil {
		return err
	}

	// Fail before printing anything or binding a port.
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	printBanner(out, cfg, configPath)

	logger := setupLogger(cfg.Logging, os.Stdout)

	logger.Info("starting pgmcp-gateway",
		"version", version,
		"config", configPath,
		"addr", cfg.Server.Addr(),
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

// printBanner writes the startup banner and a summary of the effective config.
func printBanner(out io.Writer, cfg *config.Config, configPath string) {
	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	cyan.Fprint(out, banner)
	gray.Fprintf(out, "    version: %s\n\n", version)

	if configPath == "" {
		configPath = "(none, defaults and environment)"
	}

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.Addr())
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s", cfg.RedactedDatabaseURL())
	if cfg.Database.Pool {
		gray.Fprintf(out, " (pooled)")
	}
	fmt.Fprintln(out)

	if cfg.Audit.Path != "" {
		green.Fprint(out, "    ▶ ")
		fmt.Fprintf(out, "Audit:     %s\n", cfg.Audit.Path)
	}
	if cfg.Backend.RedactErrors {
		yellow.Fprint(out, "    ▶ ")
		fmt.Fprintln(out, "Backend errors are redacted")
	}

	fmt.Fprintln(out)
}
