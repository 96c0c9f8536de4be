package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/finsense/internal/agent/core"
)

// Run lifecycle states exposed by the API.
const (
	runStatusRunning   = "running"
	runStatusSucceeded = "succeeded"
	runStatusFailed    = "failed"
)

// runRecord holds one run's live trace and final result for the process
// lifetime. Nothing is persisted across restarts.
type runRecord struct {
	mu     sync.RWMutex
	id     string
	input  string
	status string
	sink   *core.BufferSink
	result core.RunResult
	errMsg string
	done   chan struct{}
}

func (r *runRecord) finish(result core.RunResult, err error) {
	r.mu.Lock()
	r.result = result
	if err != nil {
		r.status = runStatusFailed
		r.errMsg = err.Error()
	} else {
		r.status = runStatusSucceeded
	}
	r.mu.Unlock()
	close(r.done)
}

func (r *runRecord) snapshot() runResponse {
	r.mu.RLock()
	defer r.mu.RUnlock()
	resp := runResponse{
		RunID:  r.id,
		Input:  r.input,
		Status: r.status,
		Error:  r.errMsg,
	}
	if r.status != runStatusRunning {
		resp.Steps = r.result.Steps
		if len(r.result.Steps) > 0 {
			final := r.result.Final
			resp.Final = &final
		}
	}
	return resp
}

type runResponse struct {
	RunID  string          `json:"run_id"`
	Input  string          `json:"input"`
	Status string          `json:"status"`
	Steps  []core.WorkStep `json:"steps,omitempty"`
	Final  *core.Outcome   `json:"final,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// RunsHandler exposes run management over HTTP.
type RunsHandler struct {
	orch   *core.Orchestrator
	mirror core.TraceSink
	logger *log.Logger

	mu   sync.RWMutex
	runs map[string]*runRecord
}

// NewRunsHandler creates the handler. mirror may be nil.
func NewRunsHandler(orch *core.Orchestrator, mirror core.TraceSink, logger *log.Logger) *RunsHandler {
	if logger == nil {
		logger = log.New(log.Writer(), "[RUNS] ", log.LstdFlags)
	}
	return &RunsHandler{orch: orch, mirror: mirror, logger: logger, runs: make(map[string]*runRecord)}
}

// Register mounts the run routes on g.
func (h *RunsHandler) Register(g *echo.Group) {
	g.POST("/runs", h.createRun)
	g.GET("/runs", h.listRuns)
	g.GET("/runs/:id", h.getRun)
	g.GET("/runs/:id/events", h.streamEvents)
}

type createRunRequest struct {
	Input string `json:"input"`
}

// createRun starts a new orchestration run and returns immediately with its
// id; the trace is consumed via the events stream or the run resource.
func (h *RunsHandler) createRun(c echo.Context) error {
	var req createRunRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}
	input := strings.TrimSpace(req.Input)
	if input == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "input is required")
	}

	rec := &runRecord{
		id:     uuid.NewString(),
		input:  input,
		status: runStatusRunning,
		sink:   &core.BufferSink{},
		done:   make(chan struct{}),
	}
	h.mu.Lock()
	h.runs[rec.id] = rec
	h.mu.Unlock()

	var sink core.TraceSink = rec.sink
	if h.mirror != nil {
		sink = core.MultiSink{rec.sink, h.mirror}
	}

	go func() {
		result, err := h.orch.Run(context.Background(), core.RunRequest{ID: rec.id, Input: input}, sink)
		if err != nil {
			h.logger.Printf("run %s failed: %v", rec.id, err)
		}
		rec.finish(result, err)
	}()

	return c.JSON(http.StatusAccepted, map[string]string{"run_id": rec.id})
}

func (h *RunsHandler) lookup(id string) (*runRecord, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	rec, ok := h.runs[id]
	return rec, ok
}

func (h *RunsHandler) getRun(c echo.Context) error {
	rec, ok := h.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}
	return c.JSON(http.StatusOK, rec.snapshot())
}

func (h *RunsHandler) listRuns(c echo.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]map[string]string, 0, len(h.runs))
	for _, rec := range h.runs {
		rec.mu.RLock()
		out = append(out, map[string]string{
			"run_id": rec.id,
			"input":  rec.input,
			"status": rec.status,
		})
		rec.mu.RUnlock()
	}
	return c.JSON(http.StatusOK, out)
}

// streamEvents streams a run's trace via Server-Sent Events: one `trace`
// event per trace entry, then a final `end` event. The stream is finite and
// not replayable beyond the buffered trace.
func (h *RunsHandler) streamEvents(c echo.Context) error {
	rec, ok := h.lookup(c.Param("id"))
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "run not found")
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set(echo.HeaderCacheControl, "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)
	flusher, ok := resp.Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "streaming unsupported")
	}

	ctx := c.Request().Context()
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	cursor := 0
	send := func() error {
		for _, event := range rec.sink.Events(cursor) {
			data, err := json.Marshal(event)
			if err != nil {
				return err
			}
			if _, err := resp.Write([]byte("event: trace\n")); err != nil {
				return err
			}
			if _, err := resp.Write([]byte("data: " + string(data) + "\n\n")); err != nil {
				return err
			}
			cursor++
		}
		flusher.Flush()
		return nil
	}

	for {
		if err := send(); err != nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-rec.done:
			if err := send(); err != nil {
				return nil
			}
			final := rec.snapshot()
			data, err := json.Marshal(final)
			if err != nil {
				return nil
			}
			_, _ = resp.Write([]byte("event: end\n"))
			_, _ = resp.Write([]byte("data: " + string(data) + "\n\n"))
			flusher.Flush()
			return nil
		case <-ticker.C:
		}
	}
}
