package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/mtask/mtask/task"
)

// Recover returns middleware that recovers from panics in the handler
// chain. Panics are converted to terminal failures and logged with a
// stack trace — a panicking body is not redelivered.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (out task.Outcome) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				logger.Error("task handler panicked",
					slog.String("task_name", t.Name),
					slog.String("task_id", t.ID.String()),
					slog.Any("panic", r),
					slog.String("stack", stack),
				)
				out = task.Fail(fmt.Errorf("panic in task %s: %v", t.Name, r))
			}
		}()
		return next(ctx)
	}
}
