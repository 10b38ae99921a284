package bunstorage

import (
	"context"
	"fmt"
	"time"

	"github.com/mtask/mtask/storage"
)

// InsertTransaction persists a transaction. The (tenant_id, txn_id) unique
// constraint turns a duplicate into an ON CONFLICT DO NOTHING skip, reported
// as (false, nil).
func (s *Store) InsertTransaction(ctx context.Context, txn *storage.Transaction) (bool, error) {
	m := toTransactionModel(txn)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	if m.Currency == "" {
		m.Currency = "INR"
	}

	res, err := s.db.NewInsert().Model(m).
		On("CONFLICT (tenant_id, txn_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("mtask/bun: insert transaction: %w", err)
	}
	rows, _ := res.RowsAffected() //nolint:errcheck // driver always returns nil
	return rows > 0, nil
}

// ListTransactions returns a tenant's transactions, newest first.
func (s *Store) ListTransactions(ctx context.Context, tenantID string, opts storage.ListOpts) ([]*storage.Transaction, error) {
	var models []transactionModel
	q := s.db.NewSelect().Model(&models).
		Where("tenant_id = ?", tenantID).
		OrderExpr("created_at DESC")

	if opts.Source != "" {
		q = q.Where("source = ?", opts.Source)
	}
	if opts.Status != "" {
		q = q.Where("status = ?", opts.Status)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("mtask/bun: list transactions: %w", err)
	}

	txns := make([]*storage.Transaction, 0, len(models))
	for i := range models {
		txns = append(txns, fromTransactionModel(&models[i]))
	}
	return txns, nil
}

// DailySummary aggregates a tenant's transactions per day, preferring the
// transaction's own timestamp over ingest time.
func (s *Store) DailySummary(ctx context.Context, tenantID string) ([]storage.DailySummaryRow, error) {
	var rows []storage.DailySummaryRow
	err := s.db.NewSelect().
		TableExpr("fintech_transactions").
		ColumnExpr("to_char(COALESCE(txn_timestamp, created_at), 'YYYY-MM-DD') AS day").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ?", tenantID).
		GroupExpr("to_char(COALESCE(txn_timestamp, created_at), 'YYYY-MM-DD')").
		OrderExpr("day ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("mtask/bun: daily summary: %w", err)
	}
	return rows, nil
}

// SourceSummary aggregates a tenant's transactions per source.
func (s *Store) SourceSummary(ctx context.Context, tenantID string) ([]storage.SourceSummaryRow, error) {
	var rows []storage.SourceSummaryRow
	err := s.db.NewSelect().
		TableExpr("fintech_transactions").
		ColumnExpr("source").
		ColumnExpr("COUNT(*) AS count").
		ColumnExpr("COALESCE(SUM(amount), 0) AS total").
		Where("tenant_id = ?", tenantID).
		GroupExpr("source").
		OrderExpr("source ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("mtask/bun: source summary: %w", err)
	}
	return rows, nil
}
