package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/mtask/mtask/task"
)

// Logging returns middleware that logs task start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) task.Outcome {
		logger.Info("task started",
			slog.String("task_name", t.Name),
			slog.String("task_id", t.ID.String()),
			slog.String("tenant_id", t.TenantID),
			slog.String("queue", t.Queue),
			slog.Int("attempt", t.Attempt+1),
		)

		start := time.Now()
		out := next(ctx)
		elapsed := time.Since(start)

		switch out.Status() {
		case task.StatusSuccess:
			logger.Info("task completed",
				slog.String("task_name", t.Name),
				slog.String("task_id", t.ID.String()),
				slog.Duration("elapsed", elapsed),
			)
		case task.StatusRetry:
			logger.Warn("task hit transient failure",
				slog.String("task_name", t.Name),
				slog.String("task_id", t.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", out.Err().Error()),
			)
		case task.StatusFail:
			logger.Error("task failed",
				slog.String("task_name", t.Name),
				slog.String("task_id", t.ID.String()),
				slog.Duration("elapsed", elapsed),
				slog.String("error", out.Err().Error()),
			)
		}

		return out
	}
}
