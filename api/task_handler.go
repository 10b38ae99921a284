package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/id"
	"github.com/mtask/mtask/task"
)

// SubmitTaskRequest is the body of POST /v1/tasks/{name}.
type SubmitTaskRequest struct {
	TenantID    string          `json:"tenant_id"`
	RequestKey  string          `json:"request_key,omitempty"`
	Queue       string          `json:"queue,omitempty"`
	MaxAttempts int             `json:"max_attempts,omitempty"`
	RunAt       *time.Time      `json:"run_at,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

func (a *API) submitTask(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req SubmitTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.TenantID == "" {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	opts := []task.Option{task.WithTenant(req.TenantID)}
	if req.RequestKey != "" {
		opts = append(opts, task.WithRequestKey(req.RequestKey))
	}
	if req.Queue != "" {
		opts = append(opts, task.WithQueue(req.Queue))
	}
	if req.MaxAttempts > 0 {
		opts = append(opts, task.WithMaxAttempts(req.MaxAttempts))
	}
	if req.RunAt != nil {
		opts = append(opts, task.WithRunAt(*req.RunAt))
	}

	t, err := a.eng.SubmitRaw(r.Context(), name, req.Payload, opts...)
	if err != nil {
		if errors.Is(err, mtask.ErrOverQuota) {
			writeError(w, http.StatusTooManyRequests, "tenant over quota")
			return
		}
		a.logger.Error("submit failed",
			slog.String("task", name),
			slog.String("tenant_id", req.TenantID),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "submit failed")
		return
	}

	writeJSON(w, http.StatusAccepted, t)
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	state := task.State(q.Get("state"))
	if state == "" {
		state = task.StatePending
	}

	tasks, err := a.eng.TaskStore().ListTasksByState(r.Context(), state, task.ListOpts{
		Limit:    parseLimit(q.Get("limit")),
		Offset:   parseOffset(q.Get("offset")),
		Queue:    q.Get("queue"),
		TenantID: q.Get("tenant_id"),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list tasks failed")
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := id.ParseTaskID(r.PathValue("taskId"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}

	t, err := a.eng.TaskStore().GetTask(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, mtask.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "get task failed")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// parseLimit parses a limit query value, defaulting to 50 and capping
// at 500.
func parseLimit(s string) int {
	if s == "" {
		return 50
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 50
	}
	if n > 500 {
		return 500
	}
	return n
}

func parseOffset(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
