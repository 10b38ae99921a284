package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mtask/mtask"
	"github.com/mtask/mtask/admission"
	"github.com/mtask/mtask/api"
	"github.com/mtask/mtask/engine"
	storemem "github.com/mtask/mtask/store/memory"
	"github.com/mtask/mtask/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAPI(t *testing.T, opts ...engine.Option) (*api.API, *engine.Engine, *storemem.Store) {
	t.Helper()
	st := storemem.New()
	svc, err := mtask.New(mtask.WithStore(st), mtask.WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	eng, err := engine.Build(svc, opts...)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return api.New(eng, testLogger()), eng, st
}

func TestHealthz(t *testing.T) {
	a, _, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestHealthzUnavailable(t *testing.T) {
	st := storemem.New()
	svc, _ := mtask.New(mtask.WithStore(st), mtask.WithLogger(testLogger()))
	eng, err := engine.Build(svc)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	a := api.New(eng, testLogger(), api.WithHealthCheck(func() error {
		return errors.New("backend down")
	}))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestSubmitTask(t *testing.T) {
	a, _, st := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	body := `{"tenant_id":"acme","request_key":"acme:report:1","payload":{"tenant_id":"acme","kind":"daily_summary"}}`
	resp, err := http.Post(srv.URL+"/v1/tasks/report", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", resp.StatusCode)
	}

	var submitted task.Task
	if err := json.NewDecoder(resp.Body).Decode(&submitted); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if submitted.Name != "report" || submitted.TenantID != "acme" {
		t.Errorf("unexpected task: %+v", submitted)
	}
	if submitted.RequestKey != "acme:report:1" {
		t.Errorf("request key not preserved: %q", submitted.RequestKey)
	}

	count, err := st.CountTasks(context.Background(), task.CountOpts{TenantID: "acme"})
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 enqueued task, got %d", count)
	}
}

func TestSubmitTaskMissingTenant(t *testing.T) {
	a, _, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/v1/tasks/report", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestSubmitTaskOverQuota(t *testing.T) {
	clock := time.Now()
	limiter := admission.NewMemory(
		admission.Config{Capacity: 1, RefillRate: 1},
		admission.WithMemoryClock(func() time.Time { return clock }),
	)
	a, _, _ := newAPI(t, engine.WithAdmission(limiter))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	post := func() int {
		resp, err := http.Post(srv.URL+"/v1/tasks/report", "application/json",
			strings.NewReader(`{"tenant_id":"acme"}`))
		if err != nil {
			t.Fatalf("post: %v", err)
		}
		defer resp.Body.Close()
		return resp.StatusCode
	}

	if code := post(); code != http.StatusAccepted {
		t.Fatalf("first submit: expected 202, got %d", code)
	}
	if code := post(); code != http.StatusTooManyRequests {
		t.Fatalf("drained bucket: expected 429, got %d", code)
	}
}

func TestGetTask(t *testing.T) {
	a, eng, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	submitted, err := engine.Submit(context.Background(), eng, "report", struct{}{}, task.WithTenant("acme"))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	resp, err := http.Get(srv.URL + "/v1/tasks/" + submitted.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var got task.Task
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.ID != submitted.ID {
		t.Errorf("expected task %s, got %s", submitted.ID, got.ID)
	}
}

func TestGetTaskInvalidID(t *testing.T) {
	a, _, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/tasks/not-an-id")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestListTasksByTenant(t *testing.T) {
	a, eng, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for _, tenant := range []string{"acme", "acme", "globex"} {
		if _, err := engine.Submit(context.Background(), eng, "report", struct{}{}, task.WithTenant(tenant)); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/v1/tasks?state=pending&tenant_id=acme")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got []*task.Task
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 acme tasks, got %d", len(got))
	}
}

func TestStats(t *testing.T) {
	a, eng, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	for range 3 {
		if _, err := engine.Submit(context.Background(), eng, "report", struct{}{}, task.WithTenant("acme")); err != nil {
			t.Fatalf("submit: %v", err)
		}
	}

	resp, err := http.Get(srv.URL + "/v1/stats")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var stats api.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Tasks.Pending != 3 {
		t.Errorf("expected 3 pending, got %d", stats.Tasks.Pending)
	}
	if stats.DLQ != 0 {
		t.Errorf("expected empty DLQ, got %d", stats.DLQ)
	}
}

func TestListTenants(t *testing.T) {
	st := storemem.New()
	svc, _ := mtask.New(mtask.WithStore(st), mtask.WithLogger(testLogger()))
	eng, err := engine.Build(svc)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	a := api.New(eng, testLogger(), api.WithTenants([]api.Tenant{
		{TenantID: "acme", Name: "Acme Corp"},
		{TenantID: "globex", Name: "Globex"},
	}))
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/tenants")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var got []api.Tenant
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 || got[0].TenantID != "acme" {
		t.Fatalf("unexpected directory: %+v", got)
	}
}

func TestDLQEndpoints(t *testing.T) {
	a, _, _ := newAPI(t)
	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/dlq")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	replay, err := http.Post(srv.URL+"/v1/dlq/bogus/replay", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer replay.Body.Close()
	if replay.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed id, got %d", replay.StatusCode)
	}
}
