package mtask

import "time"

// Config holds configuration for the Service.
type Config struct {
	// Concurrency is the maximum number of tasks processed concurrently.
	Concurrency int

	// Queues is the list of queues this service will poll.
	Queues []string

	// PollInterval is how often to poll for new tasks.
	PollInterval time.Duration

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration

	// HeartbeatInterval is how often running tasks send heartbeats.
	HeartbeatInterval time.Duration

	// StaleTaskThreshold is how long before a running task without a
	// heartbeat is considered orphaned and redelivered.
	StaleTaskThreshold time.Duration

	// ClaimTTL is the retention window for idempotency claims. A request
	// key replayed after the window is treated as a new logical request.
	ClaimTTL time.Duration

	// MaxAttempts is the default total attempt budget per task,
	// counting the first delivery.
	MaxAttempts int

	// RetryDelay is the default fixed delay before a transient failure
	// is redelivered.
	RetryDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency:        10,
		Queues:             []string{"default"},
		PollInterval:       1 * time.Second,
		ShutdownTimeout:    30 * time.Second,
		HeartbeatInterval:  10 * time.Second,
		StaleTaskThreshold: 30 * time.Second,
		ClaimTTL:           time.Hour,
		MaxAttempts:        3,
		RetryDelay:         5 * time.Second,
	}
}
