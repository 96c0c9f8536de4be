package core

import (
	"context"
	"time"
)

// AgentID identifies a registered work unit. IDs are opaque strings and
// immutable once defined.
type AgentID string

// Terminal is the reserved sentinel the decision engine returns when a run is
// finished. It can never be registered as an agent.
const Terminal AgentID = "END"

// StatusCode classifies the outcome of a single agent invocation. The set is
// closed: a code outside it is a hard engine error, never treated as success.
type StatusCode string

const (
	StatusSuccess      StatusCode = "SUCCESS"
	StatusDataError    StatusCode = "DATA_ERROR"
	StatusUnavailable  StatusCode = "UNAVAILABLE"
	StatusPolicyReject StatusCode = "POLICY_REJECT"
	StatusMarketFreeze StatusCode = "MARKET_FREEZE"
	StatusProcessSlow  StatusCode = "PROCESS_SLOW"
)

// Known reports whether the status code belongs to the closed enumeration.
func (s StatusCode) Known() bool {
	switch s {
	case StatusSuccess, StatusDataError, StatusUnavailable,
		StatusPolicyReject, StatusMarketFreeze, StatusProcessSlow:
		return true
	}
	return false
}

// Outcome is the structured result every work unit returns: a status code plus
// a free-text payload. The payload feeds the next invocation's input.
type Outcome struct {
	Status  StatusCode `json:"status"`
	Payload string     `json:"payload"`
}

// Agent is the sole contract between the engine and a work unit. The engine
// never inspects an implementation beyond its AgentID and Outcome.
type Agent interface {
	Invoke(ctx context.Context, input string) (Outcome, error)
}

// AgentFunc adapts a plain function to the Agent interface.
type AgentFunc func(ctx context.Context, input string) (Outcome, error)

func (f AgentFunc) Invoke(ctx context.Context, input string) (Outcome, error) {
	return f(ctx, input)
}

// WorkStep records one iteration of the run loop. Steps are immutable once
// appended to the trace.
type WorkStep struct {
	Seq         int       `json:"seq"`
	AgentID     AgentID   `json:"agent_id"`
	Input       string    `json:"input"`
	Outcome     Outcome   `json:"outcome"`
	NextAgentID AgentID   `json:"next_agent_id"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunRequest describes one orchestration run to start. ID is generated when
// empty.
type RunRequest struct {
	ID    string `json:"id,omitempty"`
	Input string `json:"input"`
}

// RunResult is the ordered sequence of work steps for one run plus its final
// outcome. It is held only for the run's lifetime; nothing is persisted across
// process restarts.
type RunResult struct {
	ID          string     `json:"id"`
	Input       string     `json:"input"`
	Steps       []WorkStep `json:"steps"`
	Final       Outcome    `json:"final"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
}
