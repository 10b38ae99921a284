package dlq_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/dlq"
	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/store/memory"
	"github.com/mtask/mtask/task"
)

func newFailedTask() *task.Task {
	return &task.Task{
		Entity:      mtask.NewEntity(),
		ID:          id.NewTaskID(),
		Name:        "deliver_webhook",
		Queue:       "default",
		TenantID:    "acme",
		RequestKey:  "acme:webhook:1",
		Payload:     []byte(`{"url":"https://example.com/hook"}`),
		State:       task.StateFailed,
		Attempt:     3,
		MaxAttempts: 3,
		RunAt:       time.Now().UTC(),
	}
}

func TestPushCapturesTask(t *testing.T) {
	st := memory.New()
	svc := dlq.NewService(st, st)
	ctx := context.Background()

	failed := newFailedTask()
	if err := svc.Push(ctx, failed, errors.New("endpoint responded 503")); err != nil {
		t.Fatalf("push: %v", err)
	}

	entries, err := st.ListDLQ(ctx, dlq.ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]
	if entry.TaskID != failed.ID {
		t.Errorf("entry task id = %s, want %s", entry.TaskID, failed.ID)
	}
	if entry.TaskName != failed.Name || entry.TenantID != failed.TenantID {
		t.Errorf("entry does not capture task identity: %+v", entry)
	}
	if entry.RequestKey != failed.RequestKey {
		t.Errorf("request key not preserved: %q", entry.RequestKey)
	}
	if entry.Error != "endpoint responded 503" {
		t.Errorf("error not captured: %q", entry.Error)
	}
	if entry.FailedAt.IsZero() {
		t.Error("FailedAt not set")
	}
}

func TestReplayReEnqueues(t *testing.T) {
	st := memory.New()
	svc := dlq.NewService(st, st)
	ctx := context.Background()

	failed := newFailedTask()
	if err := svc.Push(ctx, failed, errors.New("budget exhausted")); err != nil {
		t.Fatalf("push: %v", err)
	}
	entries, _ := st.ListDLQ(ctx, dlq.ListOpts{})

	replayed, err := svc.Replay(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if replayed.ID == failed.ID {
		t.Error("replayed task must get a fresh ID")
	}
	if replayed.State != task.StatePending {
		t.Errorf("replayed state = %s, want pending", replayed.State)
	}
	if replayed.Attempt != 0 {
		t.Errorf("replayed attempt = %d, want 0", replayed.Attempt)
	}
	if replayed.RequestKey != failed.RequestKey {
		t.Errorf("replay must preserve the request key, got %q", replayed.RequestKey)
	}
	if replayed.MaxAttempts != failed.MaxAttempts {
		t.Errorf("replay budget = %d, want %d", replayed.MaxAttempts, failed.MaxAttempts)
	}

	// The new task is actually in the queue substrate.
	got, err := st.GetTask(ctx, replayed.ID)
	if err != nil {
		t.Fatalf("get replayed task: %v", err)
	}
	if got.Name != failed.Name {
		t.Errorf("replayed name = %q, want %q", got.Name, failed.Name)
	}

	// The entry is marked replayed.
	entry, err := st.GetDLQ(ctx, entries[0].ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.ReplayedAt == nil {
		t.Error("entry not marked replayed")
	}
}

func TestReplayUnknownEntry(t *testing.T) {
	st := memory.New()
	svc := dlq.NewService(st, st)

	_, err := svc.Replay(context.Background(), id.NewDLQID())
	if !errors.Is(err, mtask.ErrDLQNotFound) {
		t.Fatalf("expected ErrDLQNotFound, got %v", err)
	}
}
