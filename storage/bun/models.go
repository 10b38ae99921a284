package bunstorage

import (
	"time"

	"github.com/uptrace/bun"

	"github.com/mtask/mtask/storage"
)

// ── Transaction model ─────────────────────────────────────────────

type transactionModel struct {
	bun.BaseModel `bun:"table:fintech_transactions"`

	ID                  int64      `bun:"id,pk,autoincrement"`
	TenantID            string     `bun:"tenant_id,notnull"`
	Source              string     `bun:"source,notnull"`
	TxnID               string     `bun:"txn_id,notnull"`
	ReferenceID         string     `bun:"reference_id"`
	AccountID           string     `bun:"account_id"`
	CounterpartyAccount string     `bun:"counterparty_account"`
	VPAOrIFSC           string     `bun:"vpa_or_ifsc"`
	Amount              float64    `bun:"amount,notnull"`
	Currency            string     `bun:"currency,default:'INR'"`
	Status              string     `bun:"status"`
	TxnTimestamp        *time.Time `bun:"txn_timestamp"`
	RawRow              []byte     `bun:"raw_row,type:jsonb"`
	CreatedAt           time.Time  `bun:"created_at,notnull,default:current_timestamp"`
}

func toTransactionModel(t *storage.Transaction) *transactionModel {
	return &transactionModel{
		ID:                  t.ID,
		TenantID:            t.TenantID,
		Source:              t.Source,
		TxnID:               t.TxnID,
		ReferenceID:         t.ReferenceID,
		AccountID:           t.AccountID,
		CounterpartyAccount: t.CounterpartyAccount,
		VPAOrIFSC:           t.VPAOrIFSC,
		Amount:              t.Amount,
		Currency:            t.Currency,
		Status:              t.Status,
		TxnTimestamp:        t.TxnTimestamp,
		RawRow:              t.RawRow,
		CreatedAt:           t.CreatedAt,
	}
}

func fromTransactionModel(m *transactionModel) *storage.Transaction {
	return &storage.Transaction{
		ID:                  m.ID,
		TenantID:            m.TenantID,
		Source:              m.Source,
		TxnID:               m.TxnID,
		ReferenceID:         m.ReferenceID,
		AccountID:           m.AccountID,
		CounterpartyAccount: m.CounterpartyAccount,
		VPAOrIFSC:           m.VPAOrIFSC,
		Amount:              m.Amount,
		Currency:            m.Currency,
		Status:              m.Status,
		TxnTimestamp:        m.TxnTimestamp,
		RawRow:              m.RawRow,
		CreatedAt:           m.CreatedAt,
	}
}

// ── Reconciliation model ──────────────────────────────────────────

type reconciliationModel struct {
	bun.BaseModel `bun:"table:reconciliations"`

	ID            int64     `bun:"id,pk,autoincrement"`
	TenantID      string    `bun:"tenant_id,notnull"`
	InternalTxnID string    `bun:"internal_txn_id,notnull"`
	ExternalTxnID string    `bun:"external_txn_id,notnull"`
	MismatchType  string    `bun:"mismatch_type"`
	Notes         string    `bun:"notes"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp"`
}

func toReconciliationModel(r *storage.Reconciliation) *reconciliationModel {
	return &reconciliationModel{
		ID:            r.ID,
		TenantID:      r.TenantID,
		InternalTxnID: r.InternalTxnID,
		ExternalTxnID: r.ExternalTxnID,
		MismatchType:  r.MismatchType,
		Notes:         r.Notes,
		CreatedAt:     r.CreatedAt,
	}
}
