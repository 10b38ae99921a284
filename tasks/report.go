package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/mtask/mtask/storage"
	"github.com/mtask/mtask/task"
)

// TaskReport is the registered name of the report task.
const TaskReport = "report"

// Report kinds.
const (
	ReportDailySummary          = "daily_summary"
	ReportSourceSummary         = "source_summary"
	ReportReconciliationSummary = "reconciliation_summary"
)

// ReportPayload selects the tenant and the report kind to generate.
type ReportPayload struct {
	TenantID string `json:"tenant_id"`
	Kind     string `json:"kind"`
}

// ReportResult records where the generated document landed.
type ReportResult struct {
	Status   string `json:"status"`
	Kind     string `json:"kind"`
	Document string `json:"document"`
	Rows     int    `json:"rows"`
}

// DocumentWriter persists a generated report document and returns a
// locator for it.
type DocumentWriter interface {
	WriteDocument(ctx context.Context, name string, body []byte) (string, error)
}

// DirWriter writes report documents as files under a directory.
type DirWriter struct {
	Dir string
}

// WriteDocument writes the document to Dir and returns its path.
func (w DirWriter) WriteDocument(_ context.Context, name string, body []byte) (string, error) {
	if err := os.MkdirAll(w.Dir, 0o755); err != nil {
		return "", fmt.Errorf("report: create %s: %w", w.Dir, err)
	}
	path := filepath.Join(w.Dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", fmt.Errorf("report: write %s: %w", path, err)
	}
	return path, nil
}

// Report generates aggregate report documents from the transaction
// ledger.
type Report struct {
	store  storage.Store
	writer DocumentWriter
	logger *slog.Logger
	now    func() time.Time
}

// NewReport creates the report task body.
func NewReport(store storage.Store, writer DocumentWriter, logger *slog.Logger) *Report {
	return &Report{store: store, writer: writer, logger: logger, now: time.Now}
}

// Definition returns the typed task definition for registration.
func (r *Report) Definition() *task.Definition[ReportPayload] {
	return task.NewDefinition(TaskReport, r.Run)
}

// Run builds the requested report. An unknown kind still produces a
// document, a placeholder naming the kind, so the task always has an
// artifact to point at. Aggregation and write failures are terminal:
// a report is regenerated on its next schedule, not redelivered.
func (r *Report) Run(ctx context.Context, p ReportPayload) task.Outcome {
	var (
		doc  any
		rows int
	)

	switch p.Kind {
	case ReportDailySummary:
		summary, err := r.store.DailySummary(ctx, p.TenantID)
		if err != nil {
			return task.Fail(fmt.Errorf("report: daily summary: %w", err))
		}
		doc, rows = summary, len(summary)

	case ReportSourceSummary:
		summary, err := r.store.SourceSummary(ctx, p.TenantID)
		if err != nil {
			return task.Fail(fmt.Errorf("report: source summary: %w", err))
		}
		doc, rows = summary, len(summary)

	case ReportReconciliationSummary:
		summary, err := r.store.ReconciliationSummary(ctx, p.TenantID)
		if err != nil {
			return task.Fail(fmt.Errorf("report: reconciliation summary: %w", err))
		}
		doc, rows = summary, len(summary)

	default:
		doc = map[string]string{
			"note": fmt.Sprintf("no generator for report kind %q", p.Kind),
		}
	}

	body, err := json.MarshalIndent(map[string]any{
		"tenant_id":    p.TenantID,
		"kind":         p.Kind,
		"generated_at": r.now().UTC().Format(time.RFC3339),
		"data":         doc,
	}, "", "  ")
	if err != nil {
		return task.Fail(fmt.Errorf("report: marshal document: %w", err))
	}

	name := fmt.Sprintf("%s-%s-%s.json", p.TenantID, p.Kind, r.now().UTC().Format("20060102T150405"))
	locator, err := r.writer.WriteDocument(ctx, name, body)
	if err != nil {
		return task.Fail(fmt.Errorf("report: write document: %w", err))
	}

	r.logger.Info("report generated",
		slog.String("tenant_id", p.TenantID),
		slog.String("kind", p.Kind),
		slog.String("document", locator),
	)
	return task.Success(ReportResult{Status: "ok", Kind: p.Kind, Document: locator, Rows: rows})
}
