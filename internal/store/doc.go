// Package store provides the optional dispatch audit log, persisted in SQLite.
//
// # Overview
//
// When audit.path is configured, the gateway appends one DispatchRecord for every
// request that reaches the backend dispatcher. Parse failures and unknown routes
// never reach the dispatcher and are not recorded.
//
// The log is write-only from the HTTP side. It is read through the "audit"
// subcommand of the gateway binary.
//
// # Schema
//
//	dispatch_log(dispatch_id, request_id, method, rpc_id, user_id, tenant_id,
//	             outcome, error, duration_us, ts)
//
// Timestamps are stored as fixed-width UTC strings so ORDER BY ts is
// chronological.
//
// # Usage
//
//	s, err := store.NewSQLiteStore("/var/lib/pgmcp/audit.db", logger)
//	defer s.Close()
//
//	err = s.AppendDispatch(ctx, &store.DispatchRecord{
//	    RequestID: requestID,
//	    Method:    "tools/call",
//	    Outcome:   store.OutcomeOK,
//	})
//
//	failed := store.OutcomeError
//	recs, err := s.ListDispatches(ctx, store.DispatchFilter{Outcome: &failed, Limit: 20})
package store
