// Package storage defines the tenant transaction ledger: ingested financial
// transactions and the reconciliation mismatches recorded against them.
//
// Backends implement [Store]. storage/bun is the PostgreSQL production
// backend; storage/memory is the in-memory backend for development and
// testing.
package storage

import (
	"context"
	"time"
)

// Transaction is a single ingested financial transaction. The
// (TenantID, TxnID) pair is unique: re-ingesting the same row is a
// non-error skip, which is what makes CSV ingest safe to re-run.
type Transaction struct {
	ID                  int64      `json:"id"`
	TenantID            string     `json:"tenant_id"`
	Source              string     `json:"source"`
	TxnID               string     `json:"txn_id"`
	ReferenceID         string     `json:"reference_id,omitempty"`
	AccountID           string     `json:"account_id,omitempty"`
	CounterpartyAccount string     `json:"counterparty_account,omitempty"`
	VPAOrIFSC           string     `json:"vpa_or_ifsc,omitempty"`
	Amount              float64    `json:"amount"`
	Currency            string     `json:"currency"`
	Status              string     `json:"status,omitempty"`
	TxnTimestamp        *time.Time `json:"txn_timestamp,omitempty"`
	RawRow              []byte     `json:"raw_row,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
}

// Reconciliation records a mismatch found while comparing an internal
// transaction against an external statement row.
type Reconciliation struct {
	ID            int64     `json:"id"`
	TenantID      string    `json:"tenant_id"`
	InternalTxnID string    `json:"internal_txn_id"`
	ExternalTxnID string    `json:"external_txn_id"`
	MismatchType  string    `json:"mismatch_type"`
	Notes         string    `json:"notes,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ListOpts filters and pages transaction listings.
type ListOpts struct {
	Limit  int
	Offset int
	Source string
	Status string
}

// DailySummaryRow is one day's transaction aggregate for a tenant.
type DailySummaryRow struct {
	Day   string  `json:"day"` // YYYY-MM-DD
	Count int64   `json:"count"`
	Total float64 `json:"total"`
}

// SourceSummaryRow is one source's transaction aggregate for a tenant.
type SourceSummaryRow struct {
	Source string  `json:"source"`
	Count  int64   `json:"count"`
	Total  float64 `json:"total"`
}

// ReconciliationSummaryRow is the mismatch count per mismatch type.
type ReconciliationSummaryRow struct {
	MismatchType string `json:"mismatch_type"`
	Count        int64  `json:"count"`
}

// Store is the transaction ledger persistence contract.
type Store interface {
	// InsertTransaction persists a transaction. It reports whether a row
	// was actually inserted: a duplicate (tenant_id, txn_id) is skipped
	// and returns (false, nil), not an error.
	InsertTransaction(ctx context.Context, txn *Transaction) (bool, error)

	// ListTransactions returns a tenant's transactions, newest first.
	ListTransactions(ctx context.Context, tenantID string, opts ListOpts) ([]*Transaction, error)

	// InsertReconciliation records a reconciliation mismatch.
	InsertReconciliation(ctx context.Context, rec *Reconciliation) error

	// CountReconciliations returns the number of mismatches recorded for
	// a tenant.
	CountReconciliations(ctx context.Context, tenantID string) (int64, error)

	// DailySummary aggregates a tenant's transactions per day.
	DailySummary(ctx context.Context, tenantID string) ([]DailySummaryRow, error)

	// SourceSummary aggregates a tenant's transactions per source.
	SourceSummary(ctx context.Context, tenantID string) ([]SourceSummaryRow, error)

	// ReconciliationSummary aggregates a tenant's mismatches per type.
	ReconciliationSummary(ctx context.Context, tenantID string) ([]ReconciliationSummaryRow, error)

	// Migrate prepares the backend schema.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the backend connection.
	Close() error
}
