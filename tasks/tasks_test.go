package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mtask/mtask/storage"
	storagemem "github.com/mtask/mtask/storage/memory"
	"github.com/mtask/mtask/task"
	"github.com/mtask/mtask/tasks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "txns.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func TestIngest_CountsRowFailuresWithoutAborting(t *testing.T) {
	store := storagemem.New()
	body := tasks.NewIngest(store, testLogger())

	path := writeCSV(t, strings.Join([]string{
		"txn_id,amount,currency,status,source",
		"T-1,100.50,INR,SUCCESS,bank_a",
		"T-2,not-a-number,INR,SUCCESS,bank_a",
		"T-3,75.00,INR,PENDING,bank_a",
		"T-4,12.25,INR,SUCCESS,bank_a",
		"",
	}, "\n"))

	out := body.Run(context.Background(), tasks.IngestPayload{
		TenantID: "acme", Path: path, Source: "bank_a",
	})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Status(), out.Err())
	}
	result := out.Details().(tasks.IngestResult)
	if result.Inserted != 3 {
		t.Errorf("expected 3 inserted, got %d", result.Inserted)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", result.Failed)
	}
	if result.Skipped != 0 {
		t.Errorf("expected 0 skipped, got %d", result.Skipped)
	}

	txns, err := store.ListTransactions(context.Background(), "acme", storage.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(txns) != 3 {
		t.Fatalf("expected 3 stored transactions, got %d", len(txns))
	}
}

func TestIngest_DuplicateRowsSkipped(t *testing.T) {
	store := storagemem.New()
	body := tasks.NewIngest(store, testLogger())

	path := writeCSV(t, strings.Join([]string{
		"txn_id,amount",
		"T-1,10.00",
		"T-1,10.00",
		"T-2,20.00",
		"",
	}, "\n"))

	out := body.Run(context.Background(), tasks.IngestPayload{TenantID: "acme", Path: path})
	result := out.Details().(tasks.IngestResult)
	if result.Inserted != 2 || result.Skipped != 1 || result.Failed != 0 {
		t.Fatalf("expected inserted=2 skipped=1 failed=0, got %+v", result)
	}
}

func TestIngest_RerunIsIdempotent(t *testing.T) {
	store := storagemem.New()
	body := tasks.NewIngest(store, testLogger())

	path := writeCSV(t, strings.Join([]string{
		"txn_id,amount",
		"T-1,10.00",
		"T-2,20.00",
		"T-3,30.00",
		"",
	}, "\n"))
	payload := tasks.IngestPayload{TenantID: "acme", Path: path}

	first := body.Run(context.Background(), payload).Details().(tasks.IngestResult)
	if first.Inserted != 3 {
		t.Fatalf("first run: expected 3 inserted, got %d", first.Inserted)
	}

	second := body.Run(context.Background(), payload).Details().(tasks.IngestResult)
	if second.Inserted != 0 || second.Skipped != 3 {
		t.Fatalf("second run: expected inserted=0 skipped=3, got %+v", second)
	}

	txns, _ := store.ListTransactions(context.Background(), "acme", storage.ListOpts{})
	if len(txns) != 3 {
		t.Fatalf("expected 3 rows after rerun, got %d", len(txns))
	}
}

func TestIngest_TxnIDColumnFallback(t *testing.T) {
	store := storagemem.New()
	body := tasks.NewIngest(store, testLogger())

	// No txn_id column: utr carries the identifier.
	path := writeCSV(t, strings.Join([]string{
		"utr,rrn,amount",
		"UTR-9,RRN-1,42.00",
		",,13.00",
		"",
	}, "\n"))

	out := body.Run(context.Background(), tasks.IngestPayload{TenantID: "acme", Path: path})
	result := out.Details().(tasks.IngestResult)
	if result.Inserted != 1 {
		t.Errorf("expected 1 inserted, got %d", result.Inserted)
	}
	if result.Failed != 1 {
		t.Errorf("expected 1 failed for the id-less row, got %d", result.Failed)
	}

	txns, _ := store.ListTransactions(context.Background(), "acme", storage.ListOpts{})
	if len(txns) != 1 || txns[0].TxnID != "UTR-9" {
		t.Fatalf("expected one transaction with id UTR-9, got %+v", txns)
	}
}

func TestIngest_MissingFileIsTerminal(t *testing.T) {
	body := tasks.NewIngest(storagemem.New(), testLogger())
	out := body.Run(context.Background(), tasks.IngestPayload{
		TenantID: "acme", Path: "/nonexistent/txns.csv",
	})
	if out.Status() != task.StatusFail {
		t.Fatalf("expected fail for missing file, got %s", out.Status())
	}
}

func TestReconcile_RecordsMismatches(t *testing.T) {
	store := storagemem.New()
	ctx := context.Background()
	for _, txn := range []*storage.Transaction{
		{TenantID: "acme", Source: "bank_a", TxnID: "T-1", Status: "SUCCESS", Amount: 10},
		{TenantID: "acme", Source: "bank_a", TxnID: "T-2", Status: "PENDING", Amount: 20},
		{TenantID: "acme", Source: "bank_a", TxnID: "T-3", Status: "FAILED", Amount: 30},
		{TenantID: "globex", Source: "bank_b", TxnID: "T-1", Status: "FAILED", Amount: 40},
	} {
		if _, err := store.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	body := tasks.NewReconcile(store, testLogger())
	out := body.Run(ctx, tasks.ReconcilePayload{TenantID: "acme"})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Status(), out.Err())
	}
	result := out.Details().(tasks.ReconcileResult)
	if result.Scanned != 3 {
		t.Errorf("expected 3 scanned, got %d", result.Scanned)
	}
	if result.Mismatches != 2 {
		t.Errorf("expected 2 mismatches, got %d", result.Mismatches)
	}

	count, err := store.CountReconciliations(ctx, "acme")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 recorded mismatches, got %d", count)
	}
	if other, _ := store.CountReconciliations(ctx, "globex"); other != 0 {
		t.Errorf("expected 0 mismatches for other tenant, got %d", other)
	}
}

func TestReport_DailySummary(t *testing.T) {
	store := storagemem.New()
	ctx := context.Background()
	for _, txn := range []*storage.Transaction{
		{TenantID: "acme", Source: "bank_a", TxnID: "T-1", Amount: 10},
		{TenantID: "acme", Source: "bank_a", TxnID: "T-2", Amount: 20},
	} {
		if _, err := store.InsertTransaction(ctx, txn); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	dir := t.TempDir()
	body := tasks.NewReport(store, tasks.DirWriter{Dir: dir}, testLogger())
	out := body.Run(ctx, tasks.ReportPayload{TenantID: "acme", Kind: tasks.ReportDailySummary})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Status(), out.Err())
	}
	result := out.Details().(tasks.ReportResult)
	if result.Rows != 1 {
		t.Errorf("expected 1 summary row, got %d", result.Rows)
	}

	raw, err := os.ReadFile(result.Document)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("document is not json: %v", err)
	}
	if doc["kind"] != tasks.ReportDailySummary {
		t.Errorf("expected kind %s in document, got %v", tasks.ReportDailySummary, doc["kind"])
	}
}

// unavailableStore fails every aggregate query; the rest of the Store
// surface is the embedded in-memory implementation.
type unavailableStore struct {
	storage.Store
	err error
}

func (u unavailableStore) DailySummary(context.Context, string) ([]storage.DailySummaryRow, error) {
	return nil, u.err
}

// failWriter rejects every document.
type failWriter struct{ err error }

func (w failWriter) WriteDocument(context.Context, string, []byte) (string, error) {
	return "", w.err
}

func TestReport_StoreFailureIsTerminal(t *testing.T) {
	store := unavailableStore{Store: storagemem.New(), err: errors.New("connection refused")}
	body := tasks.NewReport(store, tasks.DirWriter{Dir: t.TempDir()}, testLogger())

	out := body.Run(context.Background(), tasks.ReportPayload{TenantID: "acme", Kind: tasks.ReportDailySummary})
	if out.Status() != task.StatusFail {
		t.Fatalf("expected fail, got %s (%v)", out.Status(), out.Err())
	}
}

func TestReport_WriterFailureIsTerminal(t *testing.T) {
	body := tasks.NewReport(storagemem.New(), failWriter{err: errors.New("disk full")}, testLogger())

	out := body.Run(context.Background(), tasks.ReportPayload{TenantID: "acme", Kind: tasks.ReportDailySummary})
	if out.Status() != task.StatusFail {
		t.Fatalf("expected fail, got %s (%v)", out.Status(), out.Err())
	}
}

func TestReport_UnknownKindStillProducesDocument(t *testing.T) {
	dir := t.TempDir()
	body := tasks.NewReport(storagemem.New(), tasks.DirWriter{Dir: dir}, testLogger())
	out := body.Run(context.Background(), tasks.ReportPayload{TenantID: "acme", Kind: "quarterly_vibes"})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success for unknown kind, got %s (%v)", out.Status(), out.Err())
	}
	result := out.Details().(tasks.ReportResult)
	raw, err := os.ReadFile(result.Document)
	if err != nil {
		t.Fatalf("read document: %v", err)
	}
	if !strings.Contains(string(raw), "quarterly_vibes") {
		t.Errorf("placeholder document should name the unknown kind")
	}
}

type stubSender struct {
	err   error
	calls atomic.Int32
}

func (s *stubSender) Send(_ context.Context, _, _, _, _ string) error {
	s.calls.Add(1)
	return s.err
}

func TestEmail_DeliverySuccess(t *testing.T) {
	sender := &stubSender{}
	body := tasks.NewEmail(sender, "noreply@mtask.dev", testLogger())
	out := body.Run(context.Background(), tasks.EmailPayload{
		TenantID: "acme", To: "ops@acme.example", Subject: "hi", Body: "hello",
	})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Status(), out.Err())
	}
	if sender.calls.Load() != 1 {
		t.Errorf("expected 1 send, got %d", sender.calls.Load())
	}
}

func TestEmail_TransientErrorRetries(t *testing.T) {
	sender := &stubSender{err: errors.New("relay unavailable")}
	body := tasks.NewEmail(sender, "noreply@mtask.dev", testLogger())
	out := body.Run(context.Background(), tasks.EmailPayload{TenantID: "acme", To: "ops@acme.example"})
	if out.Status() != task.StatusRetry {
		t.Fatalf("expected retry on delivery error, got %s", out.Status())
	}
}

func TestEmail_EmptyRecipientIsTerminal(t *testing.T) {
	body := tasks.NewEmail(&stubSender{}, "noreply@mtask.dev", testLogger())
	out := body.Run(context.Background(), tasks.EmailPayload{TenantID: "acme"})
	if out.Status() != task.StatusFail {
		t.Fatalf("expected fail for empty recipient, got %s", out.Status())
	}
}

func TestWebhook_DeliverySuccess(t *testing.T) {
	var received atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received.Add(1)
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected json content type, got %q", ct)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	body := tasks.NewWebhook(srv.Client(), testLogger())
	out := body.Run(context.Background(), tasks.WebhookPayload{
		TenantID: "acme", URL: srv.URL, Event: "report.ready",
	})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("expected success, got %s (%v)", out.Status(), out.Err())
	}
	if received.Load() != 1 {
		t.Errorf("expected exactly 1 request, got %d", received.Load())
	}
	result := out.Details().(tasks.WebhookResult)
	if result.StatusCode != http.StatusOK {
		t.Errorf("expected 200 recorded, got %d", result.StatusCode)
	}
}

func TestWebhook_ServerErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	body := tasks.NewWebhook(srv.Client(), testLogger())
	out := body.Run(context.Background(), tasks.WebhookPayload{TenantID: "acme", URL: srv.URL})
	if out.Status() != task.StatusRetry {
		t.Fatalf("expected retry on 500, got %s", out.Status())
	}
}

func TestWebhook_ConnectionErrorRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	body := tasks.NewWebhook(nil, testLogger())
	out := body.Run(context.Background(), tasks.WebhookPayload{TenantID: "acme", URL: url})
	if out.Status() != task.StatusRetry {
		t.Fatalf("expected retry on connection error, got %s", out.Status())
	}
}
