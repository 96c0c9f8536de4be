package telemetry

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/finsense/config"
)

func TestRecordRunEventAggregates(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	ctx := context.Background()

	tele.RecordRunEvent(ctx, RunEvent{ID: "r1", Duration: 2 * time.Second, Success: true})
	tele.RecordRunEvent(ctx, RunEvent{ID: "r2", Duration: 4 * time.Second, Success: false, Error: "boom"})

	m := tele.Snapshot()
	if m.TotalRuns != 2 || m.SuccessfulRuns != 1 || m.FailedRuns != 1 {
		t.Fatalf("unexpected run counts: %+v", m)
	}
	if m.AverageRunTime != 3*time.Second {
		t.Fatalf("average run time = %v, want 3s", m.AverageRunTime)
	}
}

func TestRecordAgentEventAggregates(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	ctx := context.Background()

	tele.RecordAgentEvent(ctx, AgentEvent{AgentID: "data_fetcher", Status: "SUCCESS", Duration: 10 * time.Millisecond, Success: true})
	tele.RecordAgentEvent(ctx, AgentEvent{AgentID: "data_fetcher", Duration: 30 * time.Millisecond, Error: "timeout"})

	m := tele.Snapshot()
	if m.AgentExecutions["data_fetcher"] != 2 {
		t.Fatalf("executions = %d, want 2", m.AgentExecutions["data_fetcher"])
	}
	if m.AgentFailures["data_fetcher"] != 1 {
		t.Fatalf("failures = %d, want 1", m.AgentFailures["data_fetcher"])
	}
	if m.AgentAverageTimes["data_fetcher"] != 20*time.Millisecond {
		t.Fatalf("average = %v, want 20ms", m.AgentAverageTimes["data_fetcher"])
	}
}

func TestDisabledTelemetryRecordsNothing(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: false})
	tele.RecordRunEvent(context.Background(), RunEvent{ID: "r1", Success: true})

	if m := tele.Snapshot(); m.TotalRuns != 0 {
		t.Fatalf("disabled telemetry must not aggregate, got %+v", m)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	tele := NewTelemetry(config.TelemetryConfig{Enabled: true})
	tele.RecordRunEvent(context.Background(), RunEvent{ID: "r1", Duration: time.Second, Success: true})

	rec := httptest.NewRecorder()
	tele.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "finsense_runs_total") {
		t.Fatal("expected the runs counter in scrape output")
	}
}
