package task

import (
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/id"
)

// State represents the lifecycle state of a task.
type State string

const (
	// StatePending means the task is waiting to be picked up by a worker.
	StatePending State = "pending"
	// StateRunning means a worker is currently executing the task.
	StateRunning State = "running"
	// StateCompleted means the task finished successfully.
	StateCompleted State = "completed"
	// StateSkipped means the task's request key was already claimed; the
	// body never ran. This is a terminal, non-error outcome.
	StateSkipped State = "skipped"
	// StateFailed means the task failed and will not be redelivered.
	StateFailed State = "failed"
	// StateRetrying means the task hit a transient failure and is
	// scheduled for redelivery.
	StateRetrying State = "retrying"
)

// Task represents a unit of tenant-scoped work delivered at-least-once
// by the queue substrate.
type Task struct {
	mtask.Entity

	ID       id.TaskID `json:"id"`
	Name     string    `json:"name"`
	Queue    string    `json:"queue"`
	TenantID string    `json:"tenant_id"`

	// RequestKey identifies the logical request for dedup. Empty
	// disables dedup for this task — an explicit opt-out, not an error.
	RequestKey string `json:"request_key,omitempty"`

	Payload []byte `json:"payload"`
	State   State  `json:"state"`

	// Attempt counts completed delivery attempts; MaxAttempts is the
	// total budget including the first delivery.
	Attempt     int    `json:"attempt"`
	MaxAttempts int    `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`

	// Result carries the JSON-encoded success details, if any.
	Result []byte `json:"result,omitempty"`

	WorkerID    id.WorkerID   `json:"worker_id,omitempty"`
	RunAt       time.Time     `json:"run_at"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`
	HeartbeatAt *time.Time    `json:"heartbeat_at,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// Terminal reports whether the task is in a terminal state.
func (t *Task) Terminal() bool {
	switch t.State {
	case StateCompleted, StateSkipped, StateFailed:
		return true
	default:
		return false
	}
}
