package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/finsense/config"
	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/agent/workers"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
)

func newTestHandler(t *testing.T) (*echo.Echo, *RunsHandler) {
	t.Helper()
	store := marketdata.NewMemoryStore(marketdata.DefaultQuotes()...)
	registry, err := workers.NewRegistry(store, memory.NewBank(), nil)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	cfg := config.AgentsConfig{AgentTimeout: 5 * time.Second, MaxStateRepeats: 3, MaxConcurrentRuns: 4}
	orch, err := core.NewOrchestrator(cfg, registry, workers.DefaultPolicy(), nil, nil)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	e := echo.New()
	h := NewRunsHandler(orch, nil, nil)
	h.Register(e.Group("/api"))
	return e, h
}

func createRunForInput(t *testing.T, e *echo.Echo, input string) string {
	t.Helper()
	body := strings.NewReader(`{"input":` + jsonString(input) + `}`)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("create run status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid create response: %v", err)
	}
	if resp["run_id"] == "" {
		t.Fatal("expected a run id")
	}
	return resp["run_id"]
}

func jsonString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func waitForRun(t *testing.T, h *RunsHandler, id string) {
	t.Helper()
	rec, ok := h.lookup(id)
	if !ok {
		t.Fatalf("run %s not registered", id)
	}
	select {
	case <-rec.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("run %s did not finish", id)
	}
}

func TestCreateAndGetRun(t *testing.T) {
	e, h := newTestHandler(t)
	id := createRunForInput(t, e, "GOOGL")
	waitForRun(t, h, id)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get run status = %d", rec.Code)
	}
	var resp runResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid run response: %v", err)
	}
	if resp.Status != runStatusSucceeded {
		t.Fatalf("status = %s, want succeeded (error: %s)", resp.Status, resp.Error)
	}
	if len(resp.Steps) != 4 {
		t.Fatalf("expected 4 steps for the bullish path, got %d", len(resp.Steps))
	}
	if resp.Final == nil || !strings.Contains(resp.Final.Payload, "ORDER_FILL") {
		t.Fatalf("unexpected final outcome: %+v", resp.Final)
	}
}

func TestCreateRunRejectsEmptyInput(t *testing.T) {
	e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodPost, "/api/runs", strings.NewReader(`{"input":"  "}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGetRunNotFound(t *testing.T) {
	e, _ := newTestHandler(t)
	req := httptest.NewRequest(http.MethodGet, "/api/runs/nope", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	e, h := newTestHandler(t)
	id := createRunForInput(t, e, "TSLA")
	waitForRun(t, h, id)

	req := httptest.NewRequest(http.MethodGet, "/api/runs", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var resp []map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid list response: %v", err)
	}
	if len(resp) != 1 || resp[0]["run_id"] != id {
		t.Fatalf("unexpected list: %v", resp)
	}
}

func TestStreamEventsEndsWithSummary(t *testing.T) {
	e, h := newTestHandler(t)
	id := createRunForInput(t, e, "GOOGL")
	waitForRun(t, h, id)

	req := httptest.NewRequest(http.MethodGet, "/api/runs/"+id+"/events", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("stream status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: trace\n") {
		t.Fatalf("expected trace events in stream:\n%s", body)
	}
	if !strings.Contains(body, "event: end\n") {
		t.Fatalf("expected a final end event:\n%s", body)
	}
	if !strings.Contains(rec.Header().Get(echo.HeaderContentType), "text/event-stream") {
		t.Fatalf("content type = %s", rec.Header().Get(echo.HeaderContentType))
	}
}
