package task

import "time"

// Options configures per-task behavior such as the attempt budget,
// queue, tenant scope, and idempotency key.
type Options struct {
	// MaxAttempts is the total attempt budget, counting the first
	// delivery. When exhausted the task moves to the DLQ.
	MaxAttempts int

	// Queue is the queue name this task should be enqueued to.
	Queue string

	// TenantID scopes the task to a tenant.
	TenantID string

	// RequestKey is the idempotency key. Empty disables dedup.
	RequestKey string

	// Timeout is the maximum duration a task may run before its context
	// is cancelled.
	Timeout time.Duration

	// RunAt schedules the task for future delivery. Zero means
	// immediate.
	RunAt time.Time
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxAttempts: 3,
		Queue:       "default",
		Timeout:     5 * time.Minute,
	}
}

// Option is a functional option for configuring a task.
type Option func(*Options)

// WithMaxAttempts sets the total attempt budget.
func WithMaxAttempts(n int) Option {
	return func(o *Options) {
		o.MaxAttempts = n
	}
}

// WithQueue sets the queue name for the task.
func WithQueue(q string) Option {
	return func(o *Options) {
		o.Queue = q
	}
}

// WithTenant scopes the task to a tenant.
func WithTenant(tenantID string) Option {
	return func(o *Options) {
		o.TenantID = tenantID
	}
}

// WithRequestKey sets the idempotency key for the task.
func WithRequestKey(key string) Option {
	return func(o *Options) {
		o.RequestKey = key
	}
}

// WithTimeout sets the maximum execution duration for the task.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) {
		o.Timeout = d
	}
}

// WithRunAt schedules the task for delivery at a specific time.
func WithRunAt(t time.Time) Option {
	return func(o *Options) {
		o.RunAt = t
	}
}
