package memory

import (
	"context"
	"testing"
	"time"

	"github.com/mtask/mtask/storage"
)

func newTxn(tenant, source, txnID string, amount float64) *storage.Transaction {
	return &storage.Transaction{
		TenantID: tenant,
		Source:   source,
		TxnID:    txnID,
		Amount:   amount,
		Currency: "INR",
		Status:   "SUCCESS",
	}
}

func TestInsertTransactionUniqueness(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	inserted, err := s.InsertTransaction(ctx, newTxn("acme", "upi", "txn-1", 100))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("first insert should report inserted=true")
	}

	// Same (tenant, txn_id) again: skip, not error.
	inserted, err = s.InsertTransaction(ctx, newTxn("acme", "upi", "txn-1", 100))
	if err != nil {
		t.Fatal(err)
	}
	if inserted {
		t.Fatal("duplicate insert should report inserted=false")
	}

	// Same txn_id under another tenant is a distinct row.
	inserted, err = s.InsertTransaction(ctx, newTxn("globex", "upi", "txn-1", 100))
	if err != nil {
		t.Fatal(err)
	}
	if !inserted {
		t.Fatal("same txn_id for another tenant should insert")
	}
}

func TestListTransactions(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	txns := []*storage.Transaction{
		newTxn("acme", "upi", "txn-1", 100),
		newTxn("acme", "neft", "txn-2", 250),
		newTxn("globex", "upi", "txn-3", 75),
	}
	failed := newTxn("acme", "upi", "txn-4", 10)
	failed.Status = "FAILED"
	txns = append(txns, failed)

	for _, txn := range txns {
		if _, err := s.InsertTransaction(ctx, txn); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name      string
		tenant    string
		opts      storage.ListOpts
		wantCount int
	}{
		{"all for tenant", "acme", storage.ListOpts{}, 3},
		{"filter source", "acme", storage.ListOpts{Source: "upi"}, 2},
		{"filter status", "acme", storage.ListOpts{Status: "FAILED"}, 1},
		{"with limit", "acme", storage.ListOpts{Limit: 1}, 1},
		{"other tenant", "globex", storage.ListOpts{}, 1},
		{"unknown tenant", "initech", storage.ListOpts{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListTransactions(ctx, tt.tenant, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(got) != tt.wantCount {
				t.Fatalf("got %d, want %d", len(got), tt.wantCount)
			}
		})
	}
}

func TestReconciliations(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	recs := []*storage.Reconciliation{
		{TenantID: "acme", InternalTxnID: "txn-1", ExternalTxnID: "ext-1", MismatchType: "amount_mismatch"},
		{TenantID: "acme", InternalTxnID: "txn-2", ExternalTxnID: "ext-2", MismatchType: "amount_mismatch"},
		{TenantID: "acme", InternalTxnID: "txn-3", ExternalTxnID: "ext-3", MismatchType: "status_mismatch"},
		{TenantID: "globex", InternalTxnID: "txn-4", ExternalTxnID: "ext-4", MismatchType: "missing"},
	}
	for _, r := range recs {
		if err := s.InsertReconciliation(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	count, err := s.CountReconciliations(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	summary, err := s.ReconciliationSummary(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(summary) != 2 {
		t.Fatalf("got %d summary rows, want 2", len(summary))
	}
	if summary[0].MismatchType != "amount_mismatch" || summary[0].Count != 2 {
		t.Fatalf("unexpected first row: %+v", summary[0])
	}
}

func TestDailySummary(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	day1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	day2 := time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC)

	t1 := newTxn("acme", "upi", "txn-1", 100)
	t1.TxnTimestamp = &day1
	t2 := newTxn("acme", "upi", "txn-2", 50)
	t2.TxnTimestamp = &day1
	t3 := newTxn("acme", "neft", "txn-3", 200)
	t3.TxnTimestamp = &day2

	for _, txn := range []*storage.Transaction{t1, t2, t3} {
		if _, err := s.InsertTransaction(ctx, txn); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := s.DailySummary(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	if rows[0].Day != "2025-03-01" || rows[0].Count != 2 || rows[0].Total != 150 {
		t.Fatalf("unexpected day 1 row: %+v", rows[0])
	}
	if rows[1].Day != "2025-03-02" || rows[1].Count != 1 || rows[1].Total != 200 {
		t.Fatalf("unexpected day 2 row: %+v", rows[1])
	}
}

func TestSourceSummary(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	for i, txn := range []*storage.Transaction{
		newTxn("acme", "upi", "txn-1", 100),
		newTxn("acme", "upi", "txn-2", 50),
		newTxn("acme", "neft", "txn-3", 200),
	} {
		if _, err := s.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	rows, err := s.SourceSummary(ctx, "acme")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	// Sorted by source: neft before upi.
	if rows[0].Source != "neft" || rows[0].Total != 200 {
		t.Fatalf("unexpected neft row: %+v", rows[0])
	}
	if rows[1].Source != "upi" || rows[1].Count != 2 || rows[1].Total != 150 {
		t.Fatalf("unexpected upi row: %+v", rows[1])
	}
}
