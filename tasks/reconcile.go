package tasks

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mtask/mtask/storage"
	"github.com/mtask/mtask/task"
)

// TaskReconcile is the registered name of the reconciliation task.
const TaskReconcile = "reconcile"

// ReconcilePayload selects the tenant (and optionally one source) to
// reconcile.
type ReconcilePayload struct {
	TenantID string `json:"tenant_id"`
	Source   string `json:"source,omitempty"`
}

// ReconcileResult summarizes one reconciliation sweep.
type ReconcileResult struct {
	Status     string `json:"status"`
	Scanned    int    `json:"scanned"`
	Mismatches int    `json:"mismatches"`
}

// Reconcile sweeps a tenant's transactions and records a mismatch row
// for every transaction that did not settle.
type Reconcile struct {
	store  storage.Store
	logger *slog.Logger
}

// NewReconcile creates the reconcile task body.
func NewReconcile(store storage.Store, logger *slog.Logger) *Reconcile {
	return &Reconcile{store: store, logger: logger}
}

// Definition returns the typed task definition for registration.
func (rc *Reconcile) Definition() *task.Definition[ReconcilePayload] {
	return task.NewDefinition(TaskReconcile, rc.Run)
}

// Run scans the tenant's transactions in pages. Any status other than
// SUCCESS is recorded as a mismatch. Storage errors fail the task
// outright; the sweep is safe to resubmit once the backend recovers.
func (rc *Reconcile) Run(ctx context.Context, p ReconcilePayload) task.Outcome {
	const pageSize = 500

	var result ReconcileResult
	for offset := 0; ; offset += pageSize {
		txns, err := rc.store.ListTransactions(ctx, p.TenantID, storage.ListOpts{
			Limit:  pageSize,
			Offset: offset,
			Source: p.Source,
		})
		if err != nil {
			return task.Fail(fmt.Errorf("reconcile: list transactions: %w", err))
		}
		if len(txns) == 0 {
			break
		}

		for _, txn := range txns {
			result.Scanned++
			if txn.Status == "SUCCESS" {
				continue
			}
			rec := &storage.Reconciliation{
				TenantID:      p.TenantID,
				InternalTxnID: txn.TxnID,
				ExternalTxnID: txn.ReferenceID,
				MismatchType:  "status_mismatch",
				Notes:         fmt.Sprintf("status=%s source=%s", txn.Status, txn.Source),
			}
			if err := rc.store.InsertReconciliation(ctx, rec); err != nil {
				return task.Fail(fmt.Errorf("reconcile: record mismatch for %s: %w", txn.TxnID, err))
			}
			result.Mismatches++
		}

		if len(txns) < pageSize {
			break
		}
	}

	result.Status = "ok"
	rc.logger.Info("reconcile finished",
		slog.String("tenant_id", p.TenantID),
		slog.Int("scanned", result.Scanned),
		slog.Int("mismatches", result.Mismatches),
	)
	return task.Success(result)
}
