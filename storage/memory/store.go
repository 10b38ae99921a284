// Package memory is an in-memory implementation of storage.Store with the
// same (tenant_id, txn_id) uniqueness semantics as the PostgreSQL backend.
// Intended for unit testing and development.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/mtask/mtask/storage"
)

var _ storage.Store = (*Store)(nil)

// Store holds transactions and reconciliations in mutex-guarded maps.
type Store struct {
	mu sync.RWMutex

	nextTxnID int64
	nextRecID int64

	// txns is keyed by "tenant:txn_id" to enforce uniqueness.
	txns map[string]*storage.Transaction
	recs []*storage.Reconciliation
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		txns: make(map[string]*storage.Transaction),
	}
}

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

func txnKey(tenantID, txnID string) string { return tenantID + ":" + txnID }

// InsertTransaction persists a transaction. A duplicate (tenant_id, txn_id)
// is skipped and reported as (false, nil).
func (m *Store) InsertTransaction(_ context.Context, txn *storage.Transaction) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := txnKey(txn.TenantID, txn.TxnID)
	if _, exists := m.txns[key]; exists {
		return false, nil
	}

	m.nextTxnID++
	cp := *txn
	cp.ID = m.nextTxnID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	if cp.Currency == "" {
		cp.Currency = "INR"
	}
	m.txns[key] = &cp
	return true, nil
}

// ListTransactions returns a tenant's transactions, newest first.
func (m *Store) ListTransactions(_ context.Context, tenantID string, opts storage.ListOpts) ([]*storage.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*storage.Transaction, 0, len(m.txns))
	for _, t := range m.txns {
		if t.TenantID != tenantID {
			continue
		}
		if opts.Source != "" && t.Source != opts.Source {
			continue
		}
		if opts.Status != "" && t.Status != opts.Status {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.After(result[k].CreatedAt)
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(result) {
			return nil, nil
		}
		result = result[opts.Offset:]
	}
	if opts.Limit > 0 && len(result) > opts.Limit {
		result = result[:opts.Limit]
	}

	return result, nil
}

// InsertReconciliation records a reconciliation mismatch.
func (m *Store) InsertReconciliation(_ context.Context, rec *storage.Reconciliation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextRecID++
	cp := *rec
	cp.ID = m.nextRecID
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	m.recs = append(m.recs, &cp)
	return nil
}

// CountReconciliations returns the number of mismatches for a tenant.
func (m *Store) CountReconciliations(_ context.Context, tenantID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.recs {
		if r.TenantID == tenantID {
			count++
		}
	}
	return count, nil
}

// DailySummary aggregates a tenant's transactions per day.
func (m *Store) DailySummary(_ context.Context, tenantID string) ([]storage.DailySummaryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byDay := make(map[string]*storage.DailySummaryRow)
	for _, t := range m.txns {
		if t.TenantID != tenantID {
			continue
		}
		day := t.CreatedAt.UTC().Format("2006-01-02")
		if t.TxnTimestamp != nil {
			day = t.TxnTimestamp.UTC().Format("2006-01-02")
		}
		row, ok := byDay[day]
		if !ok {
			row = &storage.DailySummaryRow{Day: day}
			byDay[day] = row
		}
		row.Count++
		row.Total += t.Amount
	}

	result := make([]storage.DailySummaryRow, 0, len(byDay))
	for _, row := range byDay {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].Day < result[k].Day
	})
	return result, nil
}

// SourceSummary aggregates a tenant's transactions per source.
func (m *Store) SourceSummary(_ context.Context, tenantID string) ([]storage.SourceSummaryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bySource := make(map[string]*storage.SourceSummaryRow)
	for _, t := range m.txns {
		if t.TenantID != tenantID {
			continue
		}
		row, ok := bySource[t.Source]
		if !ok {
			row = &storage.SourceSummaryRow{Source: t.Source}
			bySource[t.Source] = row
		}
		row.Count++
		row.Total += t.Amount
	}

	result := make([]storage.SourceSummaryRow, 0, len(bySource))
	for _, row := range bySource {
		result = append(result, *row)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].Source < result[k].Source
	})
	return result, nil
}

// ReconciliationSummary aggregates a tenant's mismatches per type.
func (m *Store) ReconciliationSummary(_ context.Context, tenantID string) ([]storage.ReconciliationSummaryRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byType := make(map[string]int64)
	for _, r := range m.recs {
		if r.TenantID != tenantID {
			continue
		}
		byType[r.MismatchType]++
	}

	result := make([]storage.ReconciliationSummaryRow, 0, len(byType))
	for mt, count := range byType {
		result = append(result, storage.ReconciliationSummaryRow{MismatchType: mt, Count: count})
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].MismatchType < result[k].MismatchType
	})
	return result, nil
}
