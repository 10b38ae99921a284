// Package api exposes the mtask system over HTTP: task submission with
// admission control, task and DLQ inspection, and per-tenant stats.
// Routes are registered on a standard net/http ServeMux.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/mtask/mtask/engine"
)

// API wires the HTTP handlers for the mtask system.
type API struct {
	eng     *engine.Engine
	health  func() error
	tenants []Tenant
	logger  *slog.Logger
}

// Option configures an API.
type Option func(*API)

// WithHealthCheck sets the function consulted by /v1/healthz. A nil
// check always reports healthy.
func WithHealthCheck(check func() error) Option {
	return func(a *API) {
		a.health = check
	}
}

// New creates an API from an Engine.
func New(eng *engine.Engine, logger *slog.Logger, opts ...Option) *API {
	a := &API{eng: eng, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Handler returns the fully assembled http.Handler with all routes.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/healthz", a.handleHealth)
	mux.HandleFunc("GET /v1/tenants", a.listTenants)

	mux.HandleFunc("POST /v1/tasks/{name}", a.submitTask)
	mux.HandleFunc("GET /v1/tasks", a.listTasks)
	mux.HandleFunc("GET /v1/tasks/{taskId}", a.getTask)

	mux.HandleFunc("GET /v1/dlq", a.listDLQ)
	mux.HandleFunc("GET /v1/dlq/{entryId}", a.getDLQ)
	mux.HandleFunc("POST /v1/dlq/{entryId}/replay", a.replayDLQ)

	mux.HandleFunc("GET /v1/stats", a.stats)
	return mux
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if a.health != nil {
		if err := a.health(); err != nil {
			writeError(w, http.StatusServiceUnavailable, "not_serving")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) //nolint:errcheck // headers already sent
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
