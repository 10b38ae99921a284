package middleware_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/middleware"
	"github.com/mtask/mtask/task"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTask() *task.Task {
	return &task.Task{
		ID:       id.NewTaskID(),
		Name:     "test-task",
		Queue:    "default",
		TenantID: "tenantA",
	}
}

func TestChain_Order(t *testing.T) {
	var order []string

	mw := func(name string) middleware.Middleware {
		return func(ctx context.Context, _ *task.Task, next middleware.Handler) task.Outcome {
			order = append(order, name+":before")
			out := next(ctx)
			order = append(order, name+":after")
			return out
		}
	}

	chain := middleware.Chain(mw("outer"), mw("inner"))
	out := chain(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		order = append(order, "handler")
		return task.Success(nil)
	})

	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v", out.Status())
	}

	want := []string{"outer:before", "inner:before", "handler", "inner:after", "outer:after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestChain_Empty(t *testing.T) {
	chain := middleware.Chain()
	called := false
	out := chain(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		called = true
		return task.Success(nil)
	})
	if !called {
		t.Fatal("handler not called through empty chain")
	}
	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v", out.Status())
	}
}

func TestRecover_ConvertsPanicToFail(t *testing.T) {
	mw := middleware.Recover(discardLogger())

	out := mw(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		panic("boom")
	})

	if out.Status() != task.StatusFail {
		t.Fatalf("panic should produce a terminal failure, got %v", out.Status())
	}
	if out.Err() == nil {
		t.Fatal("expected error in outcome")
	}
}

func TestRecover_PassesThroughOutcome(t *testing.T) {
	mw := middleware.Recover(discardLogger())
	want := errors.New("transient")

	out := mw(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		return task.Retry(want)
	})

	if out.Status() != task.StatusRetry {
		t.Fatalf("outcome = %v, want retry", out.Status())
	}
	if !errors.Is(out.Err(), want) {
		t.Fatalf("err = %v, want %v", out.Err(), want)
	}
}

func TestTimeout_CancelsContext(t *testing.T) {
	mw := middleware.Timeout(discardLogger())

	tk := newTask()
	tk.Timeout = 10 * time.Millisecond

	out := mw(context.Background(), tk, func(ctx context.Context) task.Outcome {
		select {
		case <-ctx.Done():
			return task.Retry(ctx.Err())
		case <-time.After(time.Second):
			return task.Success(nil)
		}
	})

	if out.Status() != task.StatusRetry {
		t.Fatalf("expected deadline to fire, got %v", out.Status())
	}
	if !errors.Is(out.Err(), context.DeadlineExceeded) {
		t.Fatalf("err = %v, want DeadlineExceeded", out.Err())
	}
}

func TestTimeout_ZeroMeansNoDeadline(t *testing.T) {
	mw := middleware.Timeout(discardLogger())

	out := mw(context.Background(), newTask(), func(ctx context.Context) task.Outcome {
		if _, ok := ctx.Deadline(); ok {
			return task.Fail(errors.New("unexpected deadline"))
		}
		return task.Success(nil)
	})

	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v (%v)", out.Status(), out.Err())
	}
}

func TestLogging_PassesThrough(t *testing.T) {
	mw := middleware.Logging(discardLogger())

	out := mw(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		return task.Success(map[string]int{"rows": 1})
	})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v", out.Status())
	}
}

func TestMetrics_PassesThroughWithNoopMeter(t *testing.T) {
	mw := middleware.Metrics()

	out := mw(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		return task.Success(nil)
	})
	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v", out.Status())
	}
}

func TestTracing_PassesThroughWithNoopTracer(t *testing.T) {
	mw := middleware.Tracing()

	want := errors.New("terminal")
	out := mw(context.Background(), newTask(), func(_ context.Context) task.Outcome {
		return task.Fail(want)
	})
	if out.Status() != task.StatusFail || !errors.Is(out.Err(), want) {
		t.Fatalf("unexpected outcome: %v (%v)", out.Status(), out.Err())
	}
}
