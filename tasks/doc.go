// Package tasks contains the built-in task bodies: CSV transaction
// ingest, reconciliation, report generation, email delivery, and webhook
// delivery.
//
// Each body is a constructor taking its collaborators (storage backend,
// delivery sink) and returning a typed [task.Definition]. Bodies never
// talk to the queue directly: they report a [task.Outcome] and the
// executor handles claims, retries, and the DLQ.
//
// Transient failures (SMTP, HTTP) come back as task.Retry; input errors
// (missing file) as task.Fail; per-row problems during ingest are counted
// in the result, never escalated.
package tasks
