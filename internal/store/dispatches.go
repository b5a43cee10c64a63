// ABOUTME: Dispatch audit log store methods
// ABOUTME: Records who called which JSON-RPC method and how the backend call ended

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// tsLayout is fixed-width so that lexical order in SQLite matches time order.
const tsLayout = "2006-01-02T15:04:05.000000Z"

// AppendDispatch appends a new record to the dispatch log.
// Generates ID and Timestamp if not set.
func (s *SQLiteStore) AppendDispatch(ctx context.Context, rec *DispatchRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.Outcome == "" {
		return fmt.Errorf("dispatch record outcome is required")
	}

	query := `
		INSERT INTO dispatch_log (dispatch_id, request_id, method, rpc_id, user_id, tenant_id, outcome, error, duration_us, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID,
		rec.RequestID,
		rec.Method,
		nullString(rec.RPCID),
		nullString(rec.UserID),
		nullString(rec.TenantID),
		string(rec.Outcome),
		nullString(rec.Error),
		rec.Duration.Microseconds(),
		rec.Timestamp.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting dispatch record: %w", err)
	}

	s.logger.Debug("appended dispatch record",
		"id", rec.ID,
		"request_id", rec.RequestID,
		"method", rec.Method,
		"outcome", rec.Outcome,
	)
	return nil
}

// normalizeLimit applies default (100) and cap (1000) to a list limit.
func normalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// scanDispatchRecord scans a row into a DispatchRecord.
func scanDispatchRecord(scanner interface{ Scan(dest ...any) error }) (DispatchRecord, error) {
	var rec DispatchRecord
	var rpcID, userID, tenantID, errText sql.NullString
	var outcome, tsStr string
	var durationUS int64

	if err := scanner.Scan(
		&rec.ID,
		&rec.RequestID,
		&rec.Method,
		&rpcID,
		&userID,
		&tenantID,
		&outcome,
		&errText,
		&durationUS,
		&tsStr,
	); err != nil {
		return rec, fmt.Errorf("scanning dispatch record: %w", err)
	}

	rec.RPCID = rpcID.String
	rec.UserID = userID.String
	rec.TenantID = tenantID.String
	rec.Outcome = Outcome(outcome)
	rec.Error = errText.String
	rec.Duration = time.Duration(durationUS) * time.Microsecond

	var err error
	rec.Timestamp, err = time.Parse(tsLayout, tsStr)
	if err != nil {
		return rec, fmt.Errorf("parsing timestamp: %w", err)
	}
	return rec, nil
}

const dispatchLogQuery = `
	SELECT dispatch_id, request_id, method, rpc_id, user_id, tenant_id, outcome, error, duration_us, ts
	FROM dispatch_log
	WHERE (? IS NULL OR ts >= ?)
	  AND (? IS NULL OR user_id = ?)
	  AND (? IS NULL OR tenant_id = ?)
	  AND (? IS NULL OR outcome = ?)
	ORDER BY ts DESC
	LIMIT ?
`

// ListDispatches returns dispatch records matching the filter criteria.
// Results are returned newest first.
func (s *SQLiteStore) ListDispatches(ctx context.Context, f DispatchFilter) ([]DispatchRecord, error) {
	limit := normalizeLimit(f.Limit)

	var sinceStr, outcomeStr *string
	if f.Since != nil {
		v := f.Since.UTC().Format(tsLayout)
		sinceStr = &v
	}
	if f.Outcome != nil {
		v := string(*f.Outcome)
		outcomeStr = &v
	}

	rows, err := s.db.QueryContext(ctx, dispatchLogQuery,
		sinceStr, sinceStr,
		f.UserID, f.UserID,
		f.TenantID, f.TenantID,
		outcomeStr, outcomeStr,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying dispatch log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []DispatchRecord
	for rows.Next() {
		rec, err := scanDispatchRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating dispatch records: %w", err)
	}

	if records == nil {
		records = []DispatchRecord{}
	}
	return records, nil
}
