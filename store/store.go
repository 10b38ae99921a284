package store

import (
	"context"

	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/task"
)

// Store is the aggregate queue-substrate interface. Each subsystem
// (task, dlq) defines its own store interface; the composite Store
// composes them. A single backend (memory, redis) implements all of
// them.
type Store interface {
	task.Store
	dlq.Store

	// Migrate prepares any backend schema. No-op for schemaless backends.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
