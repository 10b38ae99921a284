// Package engine wires all mtask subsystems together. It creates the
// task registry, middleware chain, admission controller, dedup ledger,
// DLQ service, and worker pool, and provides the Register/Submit
// operations.
//
// This package exists to break the import cycle: the root mtask package
// defines Entity (imported by task, dlq, etc.) and so cannot import
// those packages back. The engine package sits above all subsystem
// packages and below the application layer.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/admission"
	"github.com/mtask/mtask/backoff"
	"github.com/mtask/mtask/dedup"
	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/id"
	mw "github.com/mtask/mtask/middleware"
	"github.com/mtask/mtask/queue"
	"github.com/mtask/mtask/task"
	"github.com/mtask/mtask/worker"
)

// Engine wraps a Service with typed subsystem access.
// Use Build() to create one from a Service.
type Engine struct {
	svc        *mtask.Service
	registry   *task.Registry
	taskStore  task.Store
	dlqService *dlq.Service
	limiter    admission.Limiter
	ledger     dedup.Ledger
	bo         backoff.Strategy
	pool       *worker.Pool
	mws        []mw.Middleware
	logger     *slog.Logger

	// Queue subsystem (worker-local throttling).
	queueConfigs []queue.Config
	queueManager *queue.Manager

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithMiddleware adds middleware to the engine's chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithBackoff sets the retry backoff strategy for the engine.
// If not set, a constant delay from the service config is used.
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithAdmission sets the admission controller consulted on every
// submission. If not set, every submission is admitted.
func WithAdmission(l admission.Limiter) Option {
	return func(eng *Engine) {
		eng.limiter = l
	}
}

// WithLedger sets the idempotency claim ledger consulted before side
// effects run. If not set, every delivery runs the body.
func WithLedger(l dedup.Ledger) Option {
	return func(eng *Engine) {
		eng.ledger = l
	}
}

// WithQueueConfig registers queue-level rate limiting and concurrency
// configurations. Queues not listed have no limits.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(eng *Engine) {
		eng.queueConfigs = append(eng.queueConfigs, configs...)
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the engine.
// If not set, the global otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the engine.
// If not set, the global otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build creates an Engine from an existing Service.
// The Service's store must implement task.Store and dlq.Store.
func Build(svc *mtask.Service, opts ...Option) (*Engine, error) {
	logger := svc.Logger()
	store := svc.Store()

	if store == nil {
		return nil, mtask.ErrNoStore
	}

	ts, ok := store.(task.Store)
	if !ok {
		return nil, fmt.Errorf("mtask: store does not implement task.Store")
	}
	ds, ok := store.(dlq.Store)
	if !ok {
		return nil, fmt.Errorf("mtask: store does not implement dlq.Store")
	}

	eng := &Engine{
		svc:       svc,
		registry:  task.NewRegistry(),
		taskStore: ts,
		logger:    logger,
	}

	for _, opt := range opts {
		opt(eng)
	}

	config := svc.Config()

	// Default backoff: fixed delay from the service config.
	if eng.bo == nil {
		eng.bo = backoff.NewConstant(config.RetryDelay)
	}

	eng.dlqService = dlq.NewService(ds, ts)

	// Build tracing middleware (custom provider or global).
	var tracingMw mw.Middleware
	if eng.tracerProvider != nil {
		tracer := eng.tracerProvider.Tracer("github.com/mtask/mtask")
		tracingMw = mw.TracingWithTracer(tracer)
	} else {
		tracingMw = mw.Tracing()
	}

	// Build metrics middleware (custom provider or global).
	var metricsMw mw.Middleware
	if eng.meterProvider != nil {
		meter := eng.meterProvider.Meter("github.com/mtask/mtask")
		metricsMw = mw.MetricsWithMeter(meter)
	} else {
		metricsMw = mw.Metrics()
	}

	// Default middleware stack: recover → tracing → metrics → logging → timeout.
	defaultMws := []mw.Middleware{
		mw.Recover(logger),
		tracingMw,
		metricsMw,
		mw.Logging(logger),
		mw.Timeout(logger),
	}
	allMws := make([]mw.Middleware, 0, len(defaultMws)+len(eng.mws))
	allMws = append(allMws, defaultMws...)
	allMws = append(allMws, eng.mws...)

	executor := worker.NewExecutor(
		eng.registry,
		eng.taskStore,
		eng.dlqService,
		eng.ledger,
		config.ClaimTTL,
		eng.bo,
		logger,
		allMws...,
	)

	poolOpts := []worker.PoolOption{
		worker.WithPoolConcurrency(config.Concurrency),
		worker.WithPoolQueues(config.Queues),
		worker.WithPollInterval(config.PollInterval),
		worker.WithHeartbeatInterval(config.HeartbeatInterval),
		worker.WithStaleTaskThreshold(config.StaleTaskThreshold),
	}

	if len(eng.queueConfigs) > 0 {
		eng.queueManager = queue.NewManager(eng.queueConfigs...)
		poolOpts = append(poolOpts, worker.WithQueueManager(eng.queueManager))
	}

	eng.pool = worker.NewPool(eng.taskStore, executor, logger, poolOpts...)

	// Wire back into the Service.
	svc.SetPool(eng.pool)

	return eng, nil
}

// Register registers a typed task definition with the engine.
func Register[T any](eng *Engine, def *task.Definition[T]) {
	task.RegisterDefinition(eng.registry, def)
}

// Submit creates and enqueues a task, passing admission control first.
// A denied submission returns mtask.ErrOverQuota and nothing is
// enqueued.
func Submit[T any](ctx context.Context, eng *Engine, name string, payload T, opts ...task.Option) (*task.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload for task %q: %w", name, err)
	}
	return eng.SubmitRaw(ctx, name, data, opts...)
}

// SubmitRaw enqueues a task with a pre-serialized payload.
//
// The tenant's token bucket is consumed synchronously before the task is
// persisted: an admission failure is surfaced to the caller as
// mtask.ErrOverQuota, never deferred to the worker. A submission without
// a request key gets a generated one, so resubmitting the SAME key is
// the only way to express "this is the same logical request".
func (eng *Engine) SubmitRaw(ctx context.Context, name string, payload []byte, opts ...task.Option) (*task.Task, error) {
	taskOpts := task.DefaultOptions()
	for _, opt := range opts {
		opt(&taskOpts)
	}

	if eng.limiter != nil {
		ok, err := eng.limiter.TryConsume(ctx, taskOpts.TenantID, 1)
		if err != nil {
			return nil, fmt.Errorf("admission check for tenant %q: %w", taskOpts.TenantID, err)
		}
		if !ok {
			return nil, mtask.ErrOverQuota
		}
	}

	requestKey := taskOpts.RequestKey
	if requestKey == "" {
		requestKey = fmt.Sprintf("%s:%s:%s", taskOpts.TenantID, name, uuid.NewString())
	}

	now := time.Now().UTC()
	t := &task.Task{
		Entity:      mtask.NewEntity(),
		ID:          id.NewTaskID(),
		Name:        name,
		Queue:       taskOpts.Queue,
		TenantID:    taskOpts.TenantID,
		RequestKey:  requestKey,
		Payload:     payload,
		State:       task.StatePending,
		MaxAttempts: taskOpts.MaxAttempts,
		Timeout:     taskOpts.Timeout,
		RunAt:       now,
	}
	if !taskOpts.RunAt.IsZero() {
		t.RunAt = taskOpts.RunAt
	}

	if err := eng.taskStore.EnqueueTask(ctx, t); err != nil {
		return nil, err
	}

	eng.logger.Debug("task submitted",
		slog.String("task_id", t.ID.String()),
		slog.String("name", t.Name),
		slog.String("tenant_id", t.TenantID),
		slog.String("request_key", t.RequestKey),
	)
	return t, nil
}

// Start begins task processing by starting the worker pool.
func (eng *Engine) Start(ctx context.Context) error {
	return eng.svc.Start(ctx)
}

// Stop gracefully shuts down the engine.
func (eng *Engine) Stop(ctx context.Context) error {
	return eng.svc.Stop(ctx)
}

// Registry returns the task registry.
func (eng *Engine) Registry() *task.Registry { return eng.registry }

// TaskStore returns the task store.
func (eng *Engine) TaskStore() task.Store { return eng.taskStore }

// DLQ returns the DLQ service.
func (eng *Engine) DLQ() *dlq.Service { return eng.dlqService }

// QueueManager returns the queue manager, or nil when no queue configs
// were provided.
func (eng *Engine) QueueManager() *queue.Manager { return eng.queueManager }

// Pool returns the worker pool.
func (eng *Engine) Pool() *worker.Pool { return eng.pool }
