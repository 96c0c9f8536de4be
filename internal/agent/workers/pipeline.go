package workers

import (
	"log"

	"github.com/mohammad-safakhou/finsense/internal/agent/core"
	"github.com/mohammad-safakhou/finsense/internal/marketdata"
	"github.com/mohammad-safakhou/finsense/internal/memory"
)

// Canonical agent ids for the quant-analysis pipeline.
const (
	AgentDataFetcher     core.AgentID = "data_fetcher"
	AgentValuationCritic core.AgentID = "valuation_critic"
	AgentSimpleValuation core.AgentID = "simple_valuation"
	AgentRiskManager     core.AgentID = "risk_manager"
	AgentExecutionBot    core.AgentID = "execution_bot"
	AgentFallback        core.AgentID = "fallback"
	AgentFractionalizer  core.AgentID = "fractionalizer"
	AgentNewsAnalysis    core.AgentID = "news_analysis"
	AgentLiquidation     core.AgentID = "liquidation"
)

// DefaultPolicy binds the decision engine's roles to the pipeline agents.
func DefaultPolicy() core.Policy {
	return core.Policy{
		Entry:          AgentDataFetcher,
		Valuation:      AgentValuationCritic,
		FastValuation:  AgentSimpleValuation,
		RiskReview:     AgentRiskManager,
		Execution:      AgentExecutionBot,
		Fallback:       AgentFallback,
		Fractionalizer: AgentFractionalizer,
		NewsAnalysis:   AgentNewsAnalysis,
		Liquidation:    AgentLiquidation,
	}
}

// NewRegistry builds the full pipeline registry over the given collaborators.
func NewRegistry(store marketdata.Store, bank *memory.Bank, logger *log.Logger) (*core.Registry, error) {
	return core.NewRegistry(map[core.AgentID]core.Agent{
		AgentDataFetcher:     NewDataFetcher(store, logger),
		AgentValuationCritic: NewValuationCritic(bank, logger),
		AgentSimpleValuation: SimpleValuation{},
		AgentRiskManager:     RiskManager{},
		AgentExecutionBot:    ExecutionBot{},
		AgentFallback:        Fallback{},
		AgentFractionalizer:  Fractionalizer{},
		AgentNewsAnalysis:    NewsAnalysis{},
		AgentLiquidation:     Liquidation{},
	})
}
