// Package middleware provides composable middleware for task execution.
// Middleware wraps handler calls synchronously and can modify execution
// (recover from panics, log, enforce deadlines, add tracing).
package middleware

import (
	"context"

	"github.com/mtask/mtask/task"
)

// Handler is the terminal function that executes task logic and reports
// its outcome.
type Handler func(ctx context.Context) task.Outcome

// Middleware wraps a Handler with cross-cutting logic.
// It receives the current context, the task being executed, and the
// next handler to call. Middleware MUST call next to continue the chain
// (unless short-circuiting with a terminal outcome).
type Middleware func(ctx context.Context, t *task.Task, next Handler) task.Outcome

// Chain composes multiple middleware into a single Middleware.
// Middleware are applied right-to-left: the first middleware in the
// list is the outermost wrapper.
//
// Example: Chain(logging, recover, timeout) executes as:
//
//	logging → recover → timeout → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) task.Outcome {
		// Build the chain from the end backwards.
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) task.Outcome {
				return mw(ctx, t, prev)
			}
		}
		return h(ctx)
	}
}
