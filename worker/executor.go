// Package worker provides the task execution engine — an Executor that
// runs dequeued tasks through middleware and the registered handler
// under the dispatch contract, and a Pool that manages concurrent
// worker goroutines polling for tasks.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mtask/mtask/backoff"
	"github.com/mtask/mtask/dedup"
	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/middleware"
	"github.com/mtask/mtask/task"
)

// Executor runs a single task delivery through the dispatch contract:
// first-attempt idempotency claim, middleware, the registered handler,
// then outcome interpretation — completion, retry scheduling against
// the attempt budget, or DLQ.
type Executor struct {
	registry   *task.Registry
	store      task.Store
	dlqService *dlq.Service
	ledger     dedup.Ledger
	claimTTL   time.Duration
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor with the given dependencies. ledger may
// be nil, in which case request keys are ignored and every delivery runs
// the body.
func NewExecutor(
	registry *task.Registry,
	store task.Store,
	dlqService *dlq.Service,
	ledger dedup.Ledger,
	claimTTL time.Duration,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	return &Executor{
		registry:   registry,
		store:      store,
		dlqService: dlqService,
		ledger:     ledger,
		claimTTL:   claimTTL,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs one delivery of a task.
//
// A task carrying a request key claims it in the dedup ledger before the
// body runs, on the first attempt only: a redelivered retry already owns
// the claim and must not be blocked by it. A lost claim means another
// delivery already ran the body, so the task resolves as skipped with no
// side effects.
//
// The handler's outcome drives the rest: success completes the task,
// retry consumes an attempt and reschedules (or fails to the DLQ once
// the budget is spent), fail is terminal immediately.
func (e *Executor) Execute(ctx context.Context, t *task.Task) error {
	handler, ok := e.registry.Get(t.Name)
	if !ok {
		return fmt.Errorf("no handler registered for task %q", t.Name)
	}

	if t.RequestKey != "" && t.Attempt == 0 && e.ledger != nil {
		claimed, claimErr := e.ledger.ClaimOnce(ctx, t.RequestKey, e.claimTTL)
		if claimErr != nil {
			// Fail closed: without a ledger answer the body must not run,
			// and the attempt is not consumed. Park the delivery and let
			// the queue redeliver once the ledger is reachable.
			return e.parkDelivery(ctx, t, claimErr)
		}
		if !claimed {
			return e.resolveDuplicate(ctx, t)
		}
	}

	start := time.Now()

	// The terminal handler that calls the registered task handler.
	terminal := func(ctx context.Context) task.Outcome {
		return handler(ctx, t.Payload)
	}

	outcome := e.mw(ctx, t, terminal)
	elapsed := time.Since(start)

	now := time.Now().UTC()
	t.UpdatedAt = now

	switch outcome.Status() {
	case task.StatusSuccess:
		return e.handleSuccess(ctx, t, outcome, now, elapsed)
	case task.StatusFail:
		return e.sendToDLQ(ctx, t, outcome.Err())
	default:
		return e.handleRetry(ctx, t, outcome, now)
	}
}

// resolveDuplicate marks the task skipped without running the body.
func (e *Executor) resolveDuplicate(ctx context.Context, t *task.Task) error {
	now := time.Now().UTC()
	t.State = task.StateSkipped
	t.CompletedAt = &now
	t.Result = []byte(`{"status":"duplicate"}`)

	if updateErr := e.store.UpdateTask(ctx, t); updateErr != nil {
		e.logger.Error("failed to update task as skipped",
			slog.String("task_id", t.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Info("duplicate request key, task skipped",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.String("request_key", t.RequestKey),
	)
	return nil
}

// parkDelivery returns the task to the queue without consuming an
// attempt, used when the dedup ledger is unreachable.
func (e *Executor) parkDelivery(ctx context.Context, t *task.Task, cause error) error {
	t.State = task.StatePending
	t.RunAt = time.Now().UTC().Add(e.backoff.Delay(1))
	t.LastError = cause.Error()

	if updateErr := e.store.UpdateTask(ctx, t); updateErr != nil {
		e.logger.Error("failed to park task after ledger error",
			slog.String("task_id", t.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Warn("dedup ledger unavailable, delivery parked",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.String("error", cause.Error()),
	)
	return fmt.Errorf("dedup ledger unavailable for task %s: %w", t.ID, cause)
}

// handleSuccess marks the task as completed and records the result.
func (e *Executor) handleSuccess(ctx context.Context, t *task.Task, outcome task.Outcome, now time.Time, elapsed time.Duration) error {
	t.State = task.StateCompleted
	t.CompletedAt = &now

	if details := outcome.Details(); details != nil {
		result, marshalErr := json.Marshal(details)
		if marshalErr != nil {
			e.logger.Warn("failed to marshal task result",
				slog.String("task_id", t.ID.String()),
				slog.String("error", marshalErr.Error()),
			)
		} else {
			t.Result = result
		}
	}

	if updateErr := e.store.UpdateTask(ctx, t); updateErr != nil {
		e.logger.Error("failed to update task after success",
			slog.String("task_id", t.ID.String()),
			slog.String("task_name", t.Name),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Debug("task completed",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.Duration("elapsed", elapsed),
	)
	return nil
}

// handleRetry consumes an attempt and either reschedules or sends to DLQ.
func (e *Executor) handleRetry(ctx context.Context, t *task.Task, outcome task.Outcome, now time.Time) error {
	t.Attempt++
	if err := outcome.Err(); err != nil {
		t.LastError = err.Error()
	}

	if t.Attempt < t.MaxAttempts {
		return e.scheduleRetry(ctx, t, outcome, now)
	}

	return e.sendToDLQ(ctx, t, outcome.Err())
}

// scheduleRetry sets the task to StateRetrying with a backoff delay.
func (e *Executor) scheduleRetry(ctx context.Context, t *task.Task, outcome task.Outcome, now time.Time) error {
	delay := outcome.Delay()
	if delay <= 0 {
		delay = e.backoff.Delay(t.Attempt)
	}
	t.RunAt = now.Add(delay)
	t.State = task.StateRetrying

	if updateErr := e.store.UpdateTask(ctx, t); updateErr != nil {
		e.logger.Error("failed to update task for retry",
			slog.String("task_id", t.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	e.logger.Info("task scheduled for retry",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.Int("attempt", t.Attempt),
		slog.Int("max_attempts", t.MaxAttempts),
		slog.Duration("delay", delay),
	)

	return fmt.Errorf("task %s attempt %d/%d: %s", t.Name, t.Attempt, t.MaxAttempts, t.LastError)
}

// sendToDLQ marks the task as failed and pushes it to the DLQ.
func (e *Executor) sendToDLQ(ctx context.Context, t *task.Task, handlerErr error) error {
	if handlerErr == nil {
		handlerErr = fmt.Errorf("task %s failed", t.Name)
	}
	t.State = task.StateFailed
	t.LastError = handlerErr.Error()

	if updateErr := e.store.UpdateTask(ctx, t); updateErr != nil {
		e.logger.Error("failed to update task as failed",
			slog.String("task_id", t.ID.String()),
			slog.String("error", updateErr.Error()),
		)
		return updateErr
	}

	if e.dlqService != nil {
		if dlqErr := e.dlqService.Push(ctx, t, handlerErr); dlqErr != nil {
			e.logger.Error("failed to push task to DLQ",
				slog.String("task_id", t.ID.String()),
				slog.String("error", dlqErr.Error()),
			)
		}
	}

	e.logger.Warn("task failed",
		slog.String("task_id", t.ID.String()),
		slog.String("task_name", t.Name),
		slog.Int("attempt", t.Attempt),
		slog.String("error", handlerErr.Error()),
	)

	return handlerErr
}
