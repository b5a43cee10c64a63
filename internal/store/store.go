// ABOUTME: Store interface and data types for the dispatch audit log
// ABOUTME: Defines DispatchRecord, DispatchFilter and the Store interface

package store

import (
	"context"
	"time"
)

// Outcome is the result class of a dispatch.
type Outcome string

const (
	OutcomeOK    Outcome = "ok"    // backend returned an envelope
	OutcomeError Outcome = "error" // dispatch failed, a -32603 envelope was sent
)

// DispatchRecord is one audited backend dispatch.
type DispatchRecord struct {
	ID        string        // UUID v4, generated if empty
	RequestID string        // gateway correlation id (X-Request-Id)
	Method    string        // JSON-RPC method, empty if the request had none
	RPCID     string        // raw JSON text of the request id, empty if absent
	UserID    string        // X-User-Id as forwarded
	TenantID  string        // X-Tenant-Id as forwarded
	Outcome   Outcome       // ok | error
	Error     string        // failure text for OutcomeError
	Duration  time.Duration // wall time of the dispatch call
	Timestamp time.Time     // generated if zero
}

// DispatchFilter specifies filtering options for listing dispatch records.
type DispatchFilter struct {
	Since    *time.Time // records at or after this time
	UserID   *string
	TenantID *string
	Outcome  *Outcome
	Limit    int // max results (default 100, max 1000)
}

// Store persists dispatch audit records.
type Store interface {
	AppendDispatch(ctx context.Context, rec *DispatchRecord) error
	ListDispatches(ctx context.Context, f DispatchFilter) ([]DispatchRecord, error)
	Close() error
}
