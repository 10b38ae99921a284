package dlq

import (
	"time"

	"github.com/mtask/mtask/id"
)

// Entry represents a task that reached a terminal failure and was moved
// to the dead letter queue for inspection or replay.
type Entry struct {
	ID          id.DLQID   `json:"id"`
	TaskID      id.TaskID  `json:"task_id"`
	TaskName    string     `json:"task_name"`
	Queue       string     `json:"queue"`
	TenantID    string     `json:"tenant_id"`
	RequestKey  string     `json:"request_key,omitempty"`
	Payload     []byte     `json:"payload"`
	Error       string     `json:"error"`
	Attempt     int        `json:"attempt"`
	MaxAttempts int        `json:"max_attempts"`
	FailedAt    time.Time  `json:"failed_at"`
	ReplayedAt  *time.Time `json:"replayed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
