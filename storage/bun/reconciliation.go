package bunstorage

import (
	"context"
	"fmt"
	"time"

	"github.com/mtask/mtask/storage"
)

// InsertReconciliation records a reconciliation mismatch.
func (s *Store) InsertReconciliation(ctx context.Context, rec *storage.Reconciliation) error {
	m := toReconciliationModel(rec)
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.NewInsert().Model(m).Exec(ctx)
	if err != nil {
		return fmt.Errorf("mtask/bun: insert reconciliation: %w", err)
	}
	return nil
}

// CountReconciliations returns the number of mismatches recorded for a tenant.
func (s *Store) CountReconciliations(ctx context.Context, tenantID string) (int64, error) {
	count, err := s.db.NewSelect().
		Model((*reconciliationModel)(nil)).
		Where("tenant_id = ?", tenantID).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("mtask/bun: count reconciliations: %w", err)
	}
	return int64(count), nil
}

// ReconciliationSummary aggregates a tenant's mismatches per type.
func (s *Store) ReconciliationSummary(ctx context.Context, tenantID string) ([]storage.ReconciliationSummaryRow, error) {
	var rows []storage.ReconciliationSummaryRow
	err := s.db.NewSelect().
		TableExpr("reconciliations").
		ColumnExpr("COALESCE(mismatch_type, '') AS mismatch_type").
		ColumnExpr("COUNT(*) AS count").
		Where("tenant_id = ?", tenantID).
		GroupExpr("COALESCE(mismatch_type, '')").
		OrderExpr("mismatch_type ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("mtask/bun: reconciliation summary: %w", err)
	}
	return rows, nil
}
