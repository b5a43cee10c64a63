// ABOUTME: audit subcommand listing recent dispatch audit records
// ABOUTME: Reads the SQLite audit log directly and renders it as a table

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/2389/pgmcp-gateway/internal/store"
)

type auditOptions struct {
	path     string
	userID   string
	tenantID string
	outcome  string
	since    time.Duration
	limit    int
}

// filter converts the flags into a store.DispatchFilter.
func (o *auditOptions) filter(now time.Time) (store.DispatchFilter, error) {
	f := store.DispatchFilter{Limit: o.limit}
	if o.userID != "" {
		f.UserID = &o.userID
	}
	if o.tenantID != "" {
		f.TenantID = &o.tenantID
	}
	if o.outcome != "" {
		oc := store.Outcome(o.outcome)
		if oc != store.OutcomeOK && oc != store.OutcomeError {
			return f, fmt.Errorf("--outcome must be %q or %q, got %q", store.OutcomeOK, store.OutcomeError, o.outcome)
		}
		f.Outcome = &oc
	}
	if o.since < 0 {
		return f, errors.New("--since must not be negative")
	}
	if o.since > 0 {
		t := now.Add(-o.since)
		f.Since = &t
	}
	return f, nil
}

func newAuditCmd(root *rootOptions) *cobra.Command {
	opts := &auditOptions{}

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "List recent dispatch audit records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := opts.path
			if path == "" {
				cfg, _, err := root.loadConfig()
				if err != nil {
					return err
				}
				path = cfg.Audit.Path
			}
			if path == "" {
				return errors.New("no audit database: set audit.path in config or pass --db")
			}

			f, err := opts.filter(time.Now())
			if err != nil {
				return err
			}
			return runAudit(cmd.Context(), cmd.OutOrStdout(), path, f)
		},
	}

	cmd.Flags().StringVar(&opts.path, "db", "", "audit database path (default audit.path from config)")
	cmd.Flags().StringVar(&opts.userID, "user", "", "only records for this user id")
	cmd.Flags().StringVar(&opts.tenantID, "tenant", "", "only records for this tenant id")
	cmd.Flags().StringVar(&opts.outcome, "outcome", "", "only records with this outcome (ok|error)")
	cmd.Flags().DurationVar(&opts.since, "since", 0, "only records newer than this (e.g. 1h)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 50, "maximum records to show (max 1000)")
	return cmd
}

func runAudit(ctx context.Context, out io.Writer, path string, f store.DispatchFilter) error {
	// Store startup logging is noise for a one-shot listing.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Opening would otherwise create an empty database.
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}

	s, err := store.NewSQLiteStore(path, quiet)
	if err != nil {
		return fmt.Errorf("opening audit database: %w", err)
	}
	defer s.Close()

	records, err := s.ListDispatches(ctx, f)
	if err != nil {
		return fmt.Errorf("listing dispatches: %w", err)
	}

	if len(records) == 0 {
		fmt.Fprintln(out, "No dispatch records.")
		return nil
	}

	rows := make([][]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, []string{
			r.Timestamp.Local().Format("2006-01-02 15:04:05"),
			r.RequestID,
			r.Method,
			r.UserID,
			r.TenantID,
			string(r.Outcome),
			r.Duration.Round(time.Microsecond).String(),
			r.Error,
		})
	}

	table := tablewriter.NewWriter(out)
	table.Header("Time", "Request", "Method", "User", "Tenant", "Outcome", "Duration", "Error")
	if err := table.Bulk(rows); err != nil {
		return fmt.Errorf("building audit table: %w", err)
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(out, "%d record(s)\n", len(records))
	return nil
}
