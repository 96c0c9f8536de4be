// Package workers holds the concrete work units behind the orchestration
// engine. Their bodies are deterministic mocks keyed on input substrings; the
// engine only ever sees their ids and outcomes.
package workers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
)

// Demo-scenario triggers recognized in the external input.
const (
	TriggerPolicyReject = "POLICY_REJECT_DEMO"
	TriggerMarketFreeze = "MARKET_FREEZE_DEMO"
	TriggerSlowProcess  = "SLOW_PROCESS_DEMO"
	TriggerUnavailable  = "UNAVAILABLE"
)

func mockOutput(name, input string) string {
	return fmt.Sprintf("[Mock Output from %s] Processed: %s", name, input)
}

// DataFetcher retrieves price and P/E figures from the quote store.
type DataFetcher struct {
	store  marketdata.Store
	logger *log.Logger
}

func NewDataFetcher(store marketdata.Store, logger *log.Logger) *DataFetcher {
	if logger == nil {
		logger = log.New(log.Writer(), "[DATA_FETCHER] ", log.LstdFlags)
	}
	return &DataFetcher{store: store, logger: logger}
}

func (a *DataFetcher) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	switch {
	case strings.Contains(input, TriggerPolicyReject):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "DATA: Ticker=HIGH_RISK_ETF | Price=$500.00 | Volatility=High | SIGNAL: " + TriggerPolicyReject,
		}, nil
	case strings.Contains(input, TriggerMarketFreeze):
		return core.Outcome{
			Status:  core.StatusMarketFreeze,
			Payload: "MARKET_HALT: LUDP (Limit Up-Limit Down) Pause Triggered. Volatility spike > 10%.",
		}, nil
	case strings.Contains(input, TriggerSlowProcess):
		// Pass the slow-process signal through so the valuation stage can
		// exhibit its latency reroute.
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "DATA: Ticker=DEMO | Price=$100.00 | P/E=15.0 | SIGNAL: " + TriggerSlowProcess,
		}, nil
	case strings.Contains(input, TriggerUnavailable):
		return core.Outcome{
			Status:  core.StatusDataError,
			Payload: "API_ERROR: 404 Not Found. Data source unreachable.",
		}, nil
	}

	ticker := strings.ToUpper(strings.TrimSpace(input))
	a.logger.Printf("fetching quote for %s", ticker)
	quote, ok, err := a.store.Get(ctx, ticker)
	if err != nil {
		return core.Outcome{
			Status:  core.StatusDataError,
			Payload: "API_ERROR: 404 Not Found. Data source unreachable.",
		}, nil
	}
	if !ok {
		return core.Outcome{
			Status:  core.StatusDataError,
			Payload: "API_ERROR: Ticker symbol invalid.",
		}, nil
	}
	return core.Outcome{
		Status: core.StatusSuccess,
		Payload: fmt.Sprintf("DATA: Ticker=%s | Price=$%.2f | P/E=%.1f | Sector=%s",
			quote.Ticker, quote.Price, quote.PE, quote.Sector),
	}, nil
}

// ValuationCritic compares fundamentals against historical context and
// recommends BUY or SELL.
type ValuationCritic struct {
	bank   *memory.Bank
	logger *log.Logger
}

func NewValuationCritic(bank *memory.Bank, logger *log.Logger) *ValuationCritic {
	if logger == nil {
		logger = log.New(log.Writer(), "[VALUATION] ", log.LstdFlags)
	}
	return &ValuationCritic{bank: bank, logger: logger}
}

func (a *ValuationCritic) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	if a.bank != nil {
		a.logger.Printf("memory recall: %s", a.bank.Recall(input))
	}

	// Policy-reject demo signal travels through valuation untouched.
	signal := ""
	if strings.Contains(input, TriggerPolicyReject) {
		signal = " | SIGNAL: " + TriggerPolicyReject
	}

	switch {
	case strings.Contains(input, "24.0"):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "VALUATION_MODEL: UNDERVALUED. Target=$210. REC: BUY." + signal,
		}, nil
	case strings.Contains(input, "60.0"):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "VALUATION_MODEL: OVERVALUED. Mean Reversion likely. REC: SELL." + signal,
		}, nil
	case strings.Contains(input, TriggerSlowProcess):
		return core.Outcome{
			Status:  core.StatusProcessSlow,
			Payload: "LATENCY_WARNING: DCF Model computation > 5000ms. Optimization required.",
		}, nil
	}
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "VALUATION_MODEL: BUY (Strong Conviction)." + signal,
	}, nil
}

// SimpleValuation is the fast-path substitute when the primary critic is too
// slow.
type SimpleValuation struct{}

func (SimpleValuation) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "HEURISTIC_CHECK: Quick Ratio > 1.0. Momentum Positive. Proceeding.",
	}, nil
}

// RiskManager reviews recommendations against risk policy.
type RiskManager struct{}

func (RiskManager) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	switch {
	case strings.Contains(input, core.MarkerSell):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "COMPLIANCE_CHECK: PASSED. De-risking execution authorized.",
		}, nil
	case strings.Contains(input, TriggerPolicyReject):
		return core.Outcome{
			Status:  core.StatusPolicyReject,
			Payload: "RISK_VIOLATION: Notional Value ($500k) > Daily Alloc Limit ($150k). REJECTED.",
		}, nil
	case strings.Contains(input, "ALGO_OPTIMIZATION"), strings.Contains(input, "RE-CALCULATED"):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "COMPLIANCE_CHECK: PASSED. Modified Notional ($125k) < Daily Alloc Limit ($150k). APPROVED.",
		}, nil
	case strings.Contains(input, core.MarkerBuy):
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "COMPLIANCE_CHECK: PASSED. Fundamentals strong. Exposure within VAR limits. APPROVED.",
		}, nil
	}
	return core.Outcome{Status: core.StatusSuccess, Payload: mockOutput("RiskManager", input)}, nil
}

// ExecutionBot places the approved order.
type ExecutionBot struct{}

func (ExecutionBot) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "ORDER_FILL: Market Buy Executed. Route: SMART. Time: 14ms. Portfolio Updated.",
	}, nil
}

// Fallback activates the secondary data feed and places a watch order.
type Fallback struct{}

func (Fallback) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "FALLBACK_PROTOCOL: Secondary data feed activated. Watch order placed.",
	}, nil
}

// Fractionalizer reduces the trade size to fit within policy limits.
type Fractionalizer struct{}

func (Fractionalizer) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "ALGO_OPTIMIZATION: Input Size: 1,000. Limit Constraint: 25%. Target: 250. Status: RE-CALCULATED.",
	}, nil
}

// NewsAnalysis assesses whether a market halt is a fundamental shift or a
// transient glitch.
type NewsAnalysis struct{}

func (NewsAnalysis) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	if strings.Contains(input, "TSLA") ||
		strings.Contains(input, TriggerMarketFreeze) ||
		strings.Contains(input, "MARKET_HALT") {
		return core.Outcome{
			Status:  core.StatusSuccess,
			Payload: "SENTIMENT_ANALYSIS: CONFIRMED Black Swan. Regulatory Action detected. ACTION: Fundamental Change.",
		}, nil
	}
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "SENTIMENT_ANALYSIS: Noise detected. No fundamental shift. ACTION: Temporary Glitch.",
	}, nil
}

// Liquidation urgently exits high-risk positions.
type Liquidation struct{}

func (Liquidation) Invoke(ctx context.Context, input string) (core.Outcome, error) {
	return core.Outcome{
		Status:  core.StatusSuccess,
		Payload: "EMERGENCY_PROTOCOL: Liquidating positions. Order Type: IOC (Immediate or Cancel).",
	}, nil
}
