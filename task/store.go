package task

import (
	"context"
	"time"

	"github.com/mtask/mtask/id"
)

// ListOpts controls pagination and filtering for task list queries.
type ListOpts struct {
	// Limit is the maximum number of tasks to return. Zero means no limit.
	Limit int
	// Offset is the number of tasks to skip.
	Offset int
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// TenantID filters by tenant. Empty means all tenants.
	TenantID string
}

// CountOpts controls filtering for task count queries.
type CountOpts struct {
	// Queue filters by queue name. Empty means all queues.
	Queue string
	// State filters by task state. Empty means all states.
	State State
	// TenantID filters by tenant. Empty means all tenants.
	TenantID string
}

// Store is the queue-substrate contract: at-least-once delivery with
// attempt tracking and scheduled redelivery.
type Store interface {
	// EnqueueTask persists a new task in pending state.
	EnqueueTask(ctx context.Context, t *Task) error

	// DequeueTasks atomically claims up to limit deliverable tasks
	// (pending or retrying, RunAt due) from the given queues, sets them
	// to running, and returns them. No two workers receive the same
	// delivery.
	DequeueTasks(ctx context.Context, queues []string, limit int) ([]*Task, error)

	// GetTask retrieves a task by ID.
	GetTask(ctx context.Context, taskID id.TaskID) (*Task, error)

	// UpdateTask persists changes to an existing task. Redelivery after
	// a delay is expressed by setting State to retrying and advancing
	// RunAt.
	UpdateTask(ctx context.Context, t *Task) error

	// DeleteTask removes a task by ID.
	DeleteTask(ctx context.Context, taskID id.TaskID) error

	// ListTasksByState returns tasks matching the given state.
	ListTasksByState(ctx context.Context, state State, opts ListOpts) ([]*Task, error)

	// HeartbeatTask updates the heartbeat timestamp for a running task,
	// indicating the worker is still alive.
	HeartbeatTask(ctx context.Context, taskID id.TaskID, workerID id.WorkerID) error

	// ReapStaleTasks returns running tasks whose last heartbeat is older
	// than the given threshold, indicating the worker may have crashed.
	// The substrate redelivers them — this is the at-least-once edge.
	ReapStaleTasks(ctx context.Context, threshold time.Duration) ([]*Task, error)

	// CountTasks returns the number of tasks matching the given options.
	CountTasks(ctx context.Context, opts CountOpts) (int64, error)
}
