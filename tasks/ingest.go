package tasks

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mtask/mtask/storage"
	"github.com/mtask/mtask/task"
)

// TaskIngest is the registered name of the CSV ingest task.
const TaskIngest = "ingest"

// txnIDColumns is the ordered set of source-specific column names that
// may carry the transaction identifier. First non-empty wins.
var txnIDColumns = []string{"txn_id", "transaction_id", "utr", "rrn", "reference_id"}

// timestampLayouts are tried in order when parsing txn_timestamp.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// IngestPayload identifies the file to ingest for a tenant.
type IngestPayload struct {
	TenantID string `json:"tenant_id"`
	Path     string `json:"path"`
	Source   string `json:"source"`
}

// IngestResult summarizes one ingest run. Skipped counts rows absorbed
// by the (tenant_id, txn_id) uniqueness constraint; Failed counts rows
// that could not be parsed or inserted. A row failure never aborts the
// batch.
type IngestResult struct {
	Status   string `json:"status"`
	Rows     int    `json:"rows"`
	Inserted int    `json:"inserted"`
	Skipped  int    `json:"skipped"`
	Failed   int    `json:"failed"`
}

// Ingest reads tenant transaction CSV files into storage.
type Ingest struct {
	store  storage.Store
	logger *slog.Logger
}

// NewIngest creates the ingest task body.
func NewIngest(store storage.Store, logger *slog.Logger) *Ingest {
	return &Ingest{store: store, logger: logger}
}

// Definition returns the typed task definition for registration.
func (in *Ingest) Definition() *task.Definition[IngestPayload] {
	return task.NewDefinition(TaskIngest, in.Run)
}

// Run ingests the file row by row. A missing source file is
// non-retryable; individual bad rows are counted and skipped.
func (in *Ingest) Run(ctx context.Context, p IngestPayload) task.Outcome {
	f, err := os.Open(p.Path)
	if err != nil {
		return task.Fail(fmt.Errorf("ingest: open %s: %w", p.Path, err))
	}
	defer f.Close() //nolint:errcheck // read-only file

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err != nil {
		return task.Fail(fmt.Errorf("ingest: read header from %s: %w", p.Path, err))
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}

	var result IngestResult
	for {
		record, readErr := r.Read()
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			// Malformed line: count it and keep going.
			result.Rows++
			result.Failed++
			continue
		}
		result.Rows++

		txn, rowErr := in.rowToTransaction(p, cols, record)
		if rowErr != nil {
			in.logger.Debug("ingest row failed",
				slog.String("tenant_id", p.TenantID),
				slog.Int("row", result.Rows),
				slog.String("error", rowErr.Error()),
			)
			result.Failed++
			continue
		}

		inserted, insErr := in.store.InsertTransaction(ctx, txn)
		if insErr != nil {
			in.logger.Warn("ingest insert failed",
				slog.String("tenant_id", p.TenantID),
				slog.String("txn_id", txn.TxnID),
				slog.String("error", insErr.Error()),
			)
			result.Failed++
			continue
		}
		if inserted {
			result.Inserted++
		} else {
			result.Skipped++
		}
	}

	result.Status = "ok"
	in.logger.Info("ingest finished",
		slog.String("tenant_id", p.TenantID),
		slog.String("path", p.Path),
		slog.Int("rows", result.Rows),
		slog.Int("inserted", result.Inserted),
		slog.Int("skipped", result.Skipped),
		slog.Int("failed", result.Failed),
	)
	return task.Success(result)
}

// rowToTransaction maps one CSV record to a Transaction. The transaction
// id comes from the first non-empty candidate column; a missing id or an
// unparsable amount fails the row.
func (in *Ingest) rowToTransaction(p IngestPayload, cols map[string]int, record []string) (*storage.Transaction, error) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var txnID string
	for _, name := range txnIDColumns {
		if v := field(name); v != "" {
			txnID = v
			break
		}
	}
	if txnID == "" {
		return nil, fmt.Errorf("no transaction id in any of %v", txnIDColumns)
	}

	amountStr := field("amount")
	amount, err := strconv.ParseFloat(amountStr, 64)
	if err != nil {
		return nil, fmt.Errorf("parse amount %q: %w", amountStr, err)
	}

	source := field("source")
	if source == "" {
		source = p.Source
	}

	txn := &storage.Transaction{
		TenantID:            p.TenantID,
		Source:              source,
		TxnID:               txnID,
		ReferenceID:         field("reference_id"),
		AccountID:           field("account_id"),
		CounterpartyAccount: field("counterparty_account"),
		VPAOrIFSC:           field("vpa_or_ifsc"),
		Amount:              amount,
		Currency:            field("currency"),
		Status:              field("status"),
	}

	if ts := field("txn_timestamp"); ts != "" {
		for _, layout := range timestampLayouts {
			if parsed, parseErr := time.Parse(layout, ts); parseErr == nil {
				txn.TxnTimestamp = &parsed
				break
			}
		}
	}

	raw := make(map[string]string, len(cols))
	for name, i := range cols {
		if i < len(record) {
			raw[name] = record[i]
		}
	}
	txn.RawRow, _ = json.Marshal(raw) //nolint:errcheck // map of strings always marshals

	return txn, nil
}
