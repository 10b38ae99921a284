package dlq

import (
	"context"
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/task"
)

// Replay re-enqueues a DLQ entry as a new pending task and marks the
// entry as replayed. The new task gets a fresh ID, zero attempts, and
// runs immediately. The request key is preserved: a replay inside the
// claim TTL of a completed sibling resolves as a duplicate.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*task.Task, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	t := &task.Task{
		Entity:      mtask.NewEntity(),
		ID:          id.NewTaskID(),
		Name:        entry.TaskName,
		Queue:       entry.Queue,
		TenantID:    entry.TenantID,
		RequestKey:  entry.RequestKey,
		Payload:     entry.Payload,
		State:       task.StatePending,
		MaxAttempts: entry.MaxAttempts,
		RunAt:       now,
	}

	if err := s.taskStore.EnqueueTask(ctx, t); err != nil {
		return nil, err
	}

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The task is already enqueued. Return it along with the error.
		return t, err
	}

	return t, nil
}
