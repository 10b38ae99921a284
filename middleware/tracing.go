package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mtask/mtask/task"
)

// tracerName is the instrumentation scope name for mtask tracing.
const tracerName = "github.com/mtask/mtask"

// Tracing returns middleware that wraps task execution in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: mtask.task.id, mtask.task.name, mtask.queue,
// mtask.tenant_id, mtask.attempt. On a fail outcome, the span status is
// set to codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) task.Outcome {
		ctx, span := tracer.Start(ctx, "mtask.task.execute",
			trace.WithAttributes(
				attribute.String("mtask.task.id", t.ID.String()),
				attribute.String("mtask.task.name", t.Name),
				attribute.String("mtask.queue", t.Queue),
				attribute.String("mtask.tenant_id", t.TenantID),
				attribute.Int("mtask.attempt", t.Attempt),
			),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out := next(ctx)
		if err := out.Err(); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return out
	}
}
