package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus indicates an outcome carried a status code outside the
// closed enumeration. The engine refuses to route it rather than defaulting to
// success-like fallthrough.
var ErrUnknownStatus = errors.New("unrecognized status code")

// Payload markers the policy table keys on. Matching is case-sensitive
// substring containment; keeping that exact semantics is a compatibility
// requirement of the policy table.
const (
	MarkerBuy         = "BUY"
	MarkerSell        = "SELL"
	MarkerApproved    = "APPROVED"
	MarkerFundamental = "Fundamental Change"
)

// Policy is the decision engine's fixed routing table: a set of role bindings
// consulted by Decide. It is a value type, read-only after construction, and
// safe to share between concurrent runs.
type Policy struct {
	Entry          AgentID
	Valuation      AgentID
	FastValuation  AgentID
	RiskReview     AgentID
	Execution      AgentID
	Fallback       AgentID
	Fractionalizer AgentID
	NewsAnalysis   AgentID
	Liquidation    AgentID
}

// Validate checks that every role is bound and none of them is the Terminal
// sentinel.
func (p Policy) Validate() error {
	roles := map[string]AgentID{
		"entry":          p.Entry,
		"valuation":      p.Valuation,
		"fast_valuation": p.FastValuation,
		"risk_review":    p.RiskReview,
		"execution":      p.Execution,
		"fallback":       p.Fallback,
		"fractionalizer": p.Fractionalizer,
		"news_analysis":  p.NewsAnalysis,
		"liquidation":    p.Liquidation,
	}
	for role, id := range roles {
		if id == "" {
			return fmt.Errorf("policy role %s is unbound", role)
		}
		if id == Terminal {
			return fmt.Errorf("policy role %s must not be the terminal sentinel", role)
		}
	}
	return nil
}

// Decide maps the last agent's identity and outcome to the next agent, or
// Terminal when the run is finished. It is pure and deterministic; the
// precedence of its checks is part of the contract, since several predicates
// could otherwise conflict.
func (p Policy) Decide(last AgentID, out Outcome) (AgentID, error) {
	if !out.Status.Known() {
		return Terminal, fmt.Errorf("%w: %q from agent %q", ErrUnknownStatus, out.Status, last)
	}

	// 1. Cross-cutting failure reroutes, regardless of which agent reported.
	switch out.Status {
	case StatusDataError, StatusUnavailable:
		return p.Fallback, nil
	case StatusPolicyReject:
		return p.Fractionalizer, nil
	case StatusMarketFreeze:
		return p.NewsAnalysis, nil
	case StatusProcessSlow:
		// Scoped to the primary valuation agent; a slow report from anyone
		// else falls through to the primary-path transitions.
		if last == p.Valuation {
			return p.FastValuation, nil
		}
	}

	// 2. Primary-path transitions.
	switch last {
	case p.Entry:
		return p.Valuation, nil
	case p.Valuation, p.FastValuation:
		if strings.Contains(out.Payload, MarkerBuy) || strings.Contains(out.Payload, MarkerSell) {
			return p.RiskReview, nil
		}
		return Terminal, nil
	case p.RiskReview:
		if strings.Contains(out.Payload, MarkerApproved) {
			return p.Execution, nil
		}

	// 3. Self-correction resumption.
	case p.Fractionalizer:
		return p.RiskReview, nil
	case p.NewsAnalysis:
		if strings.Contains(out.Payload, MarkerFundamental) {
			return p.Liquidation, nil
		}
		return p.Fallback, nil
	}

	// 4. Default: covers execution completion and any unmatched state.
	return Terminal, nil
}

// Bindings returns every agent id the policy can name, for registry checks.
func (p Policy) Bindings() []AgentID {
	return []AgentID{
		p.Entry, p.Valuation, p.FastValuation, p.RiskReview, p.Execution,
		p.Fallback, p.Fractionalizer, p.NewsAnalysis, p.Liquidation,
	}
}

// IsTerminalCorrective reports whether id names a corrective agent that, once
// chosen, runs a single final time against the run's original input before the
// run ends.
func (p Policy) IsTerminalCorrective(id AgentID) bool {
	return id == p.Fallback || id == p.Liquidation
}
