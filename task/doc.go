// Package task defines the task entity, the dispatch state machine,
// typed definitions, the handler outcome type, and the queue-substrate
// store interface.
//
// # Task Entity
//
// A [Task] represents one unit of tenant-scoped work. It embeds
// [mtask.Entity] for timestamps, carries a JSON payload, an optional
// idempotency request key, and progresses through a state machine:
//
//	pending → running → completed
//	pending → running → skipped          (duplicate request key)
//	pending → running → retrying → running → ...
//	pending → running → failed           (budget exhausted / non-retryable)
//
// Fields of note:
//   - TenantID: the tenant this work belongs to
//   - RequestKey: idempotency key; empty disables dedup for the task
//   - MaxAttempts / Attempt: total attempt budget, counting the first
//     delivery
//   - RunAt: earliest time the task may be dequeued (retry delays are
//     expressed by advancing it)
//   - Timeout: per-task execution deadline (zero = unlimited)
//
// # Outcomes
//
// Handlers return an [Outcome] instead of raising to signal retry:
// Success, Retry (transient failure, redeliver after a delay), or Fail
// (terminal). The worker executor interprets the outcome; handlers never
// talk to the queue directly.
//
// # Defining a Task
//
// Use [Definition] with a typed handler. The payload is JSON-serialized
// at enqueue time and deserialized before the handler runs:
//
//	var SendEmail = task.NewDefinition("send_email",
//	    func(ctx context.Context, input EmailInput) task.Outcome {
//	        if err := mailer.Send(ctx, input); err != nil {
//	            return task.Retry(err)
//	        }
//	        return task.Success(nil)
//	    },
//	)
//
// The engine package provides higher-level engine.Register,
// engine.Enqueue, and Engine.Submit wrappers.
package task
