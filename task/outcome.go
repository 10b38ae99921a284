package task

import "time"

// Status classifies the result of one execution attempt.
type Status string

const (
	// StatusSuccess means the body completed and the task is done.
	StatusSuccess Status = "success"
	// StatusRetry means the body hit a transient failure and asks the
	// queue to redeliver after a delay, subject to the attempt budget.
	StatusRetry Status = "retry"
	// StatusFail means the failure is not retryable; the task is
	// terminal regardless of remaining budget.
	StatusFail Status = "fail"
)

// Outcome is the explicit result a handler returns to the dispatch
// envelope. It replaces raise-to-retry control flow: the executor, not
// the handler, talks to the queue.
type Outcome struct {
	status Status
	err    error

	// details is an optional JSON-serializable summary of what the
	// body did (row counts, delivery status, document path).
	details any

	// delay overrides the engine's backoff strategy when positive.
	delay time.Duration
}

// Success returns a terminal success outcome. details may be nil or any
// JSON-serializable value recorded on the task.
func Success(details any) Outcome {
	return Outcome{status: StatusSuccess, details: details}
}

// Retry returns a transient-failure outcome. The executor redelivers
// after the backoff delay while the attempt budget lasts, then fails
// the task.
func Retry(err error) Outcome {
	return Outcome{status: StatusRetry, err: err}
}

// RetryAfter is Retry with an explicit redelivery delay that overrides
// the engine's backoff strategy.
func RetryAfter(err error, delay time.Duration) Outcome {
	return Outcome{status: StatusRetry, err: err, delay: delay}
}

// Fail returns a terminal non-retryable failure outcome.
func Fail(err error) Outcome {
	return Outcome{status: StatusFail, err: err}
}

// Status returns the outcome classification.
func (o Outcome) Status() Status { return o.status }

// Err returns the failure, if any.
func (o Outcome) Err() error { return o.err }

// Details returns the success details, if any.
func (o Outcome) Details() any { return o.details }

// Delay returns the explicit redelivery delay, or zero when the
// engine's backoff strategy should decide.
func (o Outcome) Delay() time.Duration { return o.delay }
