package workers

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mohammad-safakhou/finsense/config"
	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
)

func newPipeline(t *testing.T) *core.Orchestrator {
	t.Helper()
	store := marketdata.NewMemoryStore(marketdata.DefaultQuotes()...)
	registry, err := NewRegistry(store, memory.NewBank(), nil)
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	cfg := config.AgentsConfig{
		AgentTimeout:      5 * time.Second,
		MaxStateRepeats:   3,
		MaxConcurrentRuns: 4,
	}
	orch, err := core.NewOrchestrator(cfg, registry, DefaultPolicy(), nil, nil)
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return orch
}

func agentSequence(steps []core.WorkStep) []core.AgentID {
	ids := make([]core.AgentID, len(steps))
	for i, s := range steps {
		ids[i] = s.AgentID
	}
	return ids
}

func assertSequence(t *testing.T, got, want []core.AgentID) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("agent sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("agent sequence = %v, want %v", got, want)
		}
	}
}

func TestPipelineBullishTicker(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: "GOOGL"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentValuationCritic, AgentRiskManager, AgentExecutionBot,
	})
	if !strings.Contains(res.Final.Payload, "ORDER_FILL") {
		t.Fatalf("expected a filled order, got %q", res.Final.Payload)
	}
}

func TestPipelineBearishTickerSkipsExecution(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: "TSLA"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// The sell review passes compliance without the approval marker, so the
	// run ends at risk review rather than placing an order.
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentValuationCritic, AgentRiskManager,
	})
	if strings.Contains(res.Final.Payload, "ORDER_FILL") {
		t.Fatalf("sell path must not execute a buy, got %q", res.Final.Payload)
	}
}

func TestPipelineSelfCorrection(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: TriggerPolicyReject}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentValuationCritic, AgentRiskManager,
		AgentFractionalizer, AgentRiskManager, AgentExecutionBot,
	})
	if res.Steps[2].Outcome.Status != core.StatusPolicyReject {
		t.Fatalf("first risk review should reject, got %+v", res.Steps[2].Outcome)
	}
	if !strings.Contains(res.Steps[4].Outcome.Payload, core.MarkerApproved) {
		t.Fatalf("re-sized review should approve, got %q", res.Steps[4].Outcome.Payload)
	}
	if !strings.Contains(res.Final.Payload, "ORDER_FILL") {
		t.Fatalf("expected a filled order after resizing, got %q", res.Final.Payload)
	}
}

func TestPipelineMarketFreezeLiquidates(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: TriggerMarketFreeze}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentNewsAnalysis, AgentLiquidation,
	})
	// Liquidation acts on the run's original subject, not on the diagnostic
	// text from news analysis.
	if res.Steps[2].Input != TriggerMarketFreeze {
		t.Fatalf("liquidation input = %q, want the original input", res.Steps[2].Input)
	}
	if !strings.Contains(res.Final.Payload, "EMERGENCY_PROTOCOL") {
		t.Fatalf("expected emergency liquidation, got %q", res.Final.Payload)
	}
}

func TestPipelineDataErrorFallsBack(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: TriggerUnavailable}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentFallback,
	})
	if res.Steps[1].Input != TriggerUnavailable {
		t.Fatalf("fallback input = %q, want the original input", res.Steps[1].Input)
	}
	if res.Steps[1].NextAgentID != core.Terminal {
		t.Fatalf("fallback must end the run, got next %s", res.Steps[1].NextAgentID)
	}
}

func TestPipelineSlowValuationTakesFastPath(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: TriggerSlowProcess}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentValuationCritic, AgentSimpleValuation,
	})
	if res.Steps[1].Outcome.Status != core.StatusProcessSlow {
		t.Fatalf("valuation should report PROCESS_SLOW, got %+v", res.Steps[1].Outcome)
	}
	if !strings.Contains(res.Final.Payload, "HEURISTIC_CHECK") {
		t.Fatalf("expected the heuristic fast path, got %q", res.Final.Payload)
	}
}

func TestPipelineUnknownTickerFallsBack(t *testing.T) {
	orch := newPipeline(t)

	res, err := orch.Run(context.Background(), core.RunRequest{Input: "ZZZZ"}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertSequence(t, agentSequence(res.Steps), []core.AgentID{
		AgentDataFetcher, AgentFallback,
	})
}
