package api

import (
	"net/http"

	"github.com/mtask/mtask/task"
)

// TaskCounts is the per-state task breakdown in a StatsResponse.
type TaskCounts struct {
	Pending   int64 `json:"pending"`
	Running   int64 `json:"running"`
	Completed int64 `json:"completed"`
	Skipped   int64 `json:"skipped"`
	Failed    int64 `json:"failed"`
	Retrying  int64 `json:"retrying"`
}

// StatsResponse is the body of GET /v1/stats.
type StatsResponse struct {
	Tasks TaskCounts `json:"tasks"`
	DLQ   int64      `json:"dlq"`
}

func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	tenantID := r.URL.Query().Get("tenant_id")

	var counts TaskCounts
	for _, state := range []task.State{
		task.StatePending, task.StateRunning, task.StateCompleted,
		task.StateSkipped, task.StateFailed, task.StateRetrying,
	} {
		count, err := a.eng.TaskStore().CountTasks(ctx, task.CountOpts{State: state, TenantID: tenantID})
		if err != nil {
			writeError(w, http.StatusInternalServerError, "count tasks failed")
			return
		}
		switch state {
		case task.StatePending:
			counts.Pending = count
		case task.StateRunning:
			counts.Running = count
		case task.StateCompleted:
			counts.Completed = count
		case task.StateSkipped:
			counts.Skipped = count
		case task.StateFailed:
			counts.Failed = count
		case task.StateRetrying:
			counts.Retrying = count
		}
	}

	dlqCount, err := a.eng.DLQ().DLQStore().CountDLQ(ctx)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "count dlq failed")
		return
	}

	writeJSON(w, http.StatusOK, StatsResponse{Tasks: counts, DLQ: dlqCount})
}
