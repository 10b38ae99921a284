package task_test

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/mtask/mtask/task"
)

type emailPayload struct {
	TenantID string `json:"tenant_id"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := task.NewRegistry()

	var got emailPayload
	def := task.NewDefinition("send_email", func(_ context.Context, p emailPayload) task.Outcome {
		got = p
		return task.Success(nil)
	})

	task.RegisterDefinition(r, def)

	h, ok := r.Get("send_email")
	if !ok {
		t.Fatal("expected handler to be registered")
	}

	payload, _ := json.Marshal(emailPayload{TenantID: "tenantA", To: "alice@example.com", Subject: "Hello"})
	out := h(context.Background(), payload)
	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v (%v)", out.Status(), out.Err())
	}
	if got.To != "alice@example.com" {
		t.Errorf("To = %q, want %q", got.To, "alice@example.com")
	}
	if got.TenantID != "tenantA" {
		t.Errorf("TenantID = %q, want %q", got.TenantID, "tenantA")
	}
}

func TestRegistry_GetUnknown(t *testing.T) {
	r := task.NewRegistry()
	_, ok := r.Get("nonexistent")
	if ok {
		t.Fatal("expected no handler for unregistered task")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := task.NewRegistry()

	task.RegisterDefinition(r, task.NewDefinition("task-a", func(_ context.Context, _ struct{}) task.Outcome { return task.Success(nil) }))
	task.RegisterDefinition(r, task.NewDefinition("task-b", func(_ context.Context, _ struct{}) task.Outcome { return task.Success(nil) }))
	task.RegisterDefinition(r, task.NewDefinition("task-c", func(_ context.Context, _ struct{}) task.Outcome { return task.Success(nil) }))

	names := r.Names()
	sort.Strings(names)
	if len(names) != 3 {
		t.Fatalf("expected 3 names, got %d", len(names))
	}
	expected := []string{"task-a", "task-b", "task-c"}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestRegistry_InvalidJSONFailsWithoutRetry(t *testing.T) {
	r := task.NewRegistry()
	task.RegisterDefinition(r, task.NewDefinition("typed", func(_ context.Context, _ emailPayload) task.Outcome {
		t.Fatal("handler should not be called with invalid JSON")
		return task.Success(nil)
	}))

	h, _ := r.Get("typed")
	out := h(context.Background(), []byte(`{invalid json`))
	if out.Status() != task.StatusFail {
		t.Fatalf("malformed payload should be a non-retryable failure, got %v", out.Status())
	}
	if out.Err() == nil {
		t.Fatal("expected error in outcome")
	}
}

func TestRegistry_EmptyPayload(t *testing.T) {
	r := task.NewRegistry()
	called := false
	task.RegisterDefinition(r, task.NewDefinition("no-payload", func(_ context.Context, _ struct{}) task.Outcome {
		called = true
		return task.Success(nil)
	}))

	h, _ := r.Get("no-payload")
	out := h(context.Background(), nil)
	if out.Status() != task.StatusSuccess {
		t.Fatalf("unexpected outcome: %v", out.Status())
	}
	if !called {
		t.Fatal("handler not called with empty payload")
	}
}

func TestRegistry_OverwriteHandler(t *testing.T) {
	r := task.NewRegistry()

	task.RegisterDefinition(r, task.NewDefinition("overwrite", func(_ context.Context, _ struct{}) task.Outcome {
		return task.Fail(errors.New("old"))
	}))
	task.RegisterDefinition(r, task.NewDefinition("overwrite", func(_ context.Context, _ struct{}) task.Outcome {
		return task.Fail(errors.New("new"))
	}))

	h, _ := r.Get("overwrite")
	out := h(context.Background(), nil)
	if out.Err() == nil || out.Err().Error() != "new" {
		t.Fatalf("expected 'new' error, got %v", out.Err())
	}
}

func TestOutcome_Constructors(t *testing.T) {
	if s := task.Success(map[string]int{"rows": 3}); s.Status() != task.StatusSuccess || s.Err() != nil {
		t.Error("Success outcome malformed")
	}

	retryErr := errors.New("smtp temporary error")
	if r := task.Retry(retryErr); r.Status() != task.StatusRetry || !errors.Is(r.Err(), retryErr) {
		t.Error("Retry outcome malformed")
	}
	if r := task.RetryAfter(retryErr, 7*time.Second); r.Delay() != 7*time.Second {
		t.Errorf("RetryAfter delay = %v, want 7s", r.Delay())
	}

	failErr := errors.New("missing source file")
	if f := task.Fail(failErr); f.Status() != task.StatusFail || !errors.Is(f.Err(), failErr) {
		t.Error("Fail outcome malformed")
	}
}

func TestTask_Terminal(t *testing.T) {
	tests := []struct {
		state task.State
		want  bool
	}{
		{task.StatePending, false},
		{task.StateRunning, false},
		{task.StateRetrying, false},
		{task.StateCompleted, true},
		{task.StateSkipped, true},
		{task.StateFailed, true},
	}
	for _, tt := range tests {
		tk := &task.Task{State: tt.state}
		if got := tk.Terminal(); got != tt.want {
			t.Errorf("Terminal() for %q = %v, want %v", tt.state, got, tt.want)
		}
	}
}
