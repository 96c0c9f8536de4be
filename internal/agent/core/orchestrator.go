package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mohammad-safakhou/finsense/config"
	"github.com/mohammad-safakhou/finsense/internal/agent/telemetry"
)

var orchestratorTracer trace.Tracer = otel.Tracer("finsense/internal/agent/core")

var (
	// ErrUnknownAgent indicates the decision engine named an agent absent from
	// the registry. Fatal to the run; reported, not retried.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrCycleDetected indicates the same (agent, status) pair was revisited
	// beyond the configured repeat bound within one run.
	ErrCycleDetected = errors.New("cycle detected")

	// ErrRunCancelled indicates the run was aborted between steps.
	ErrRunCancelled = errors.New("run cancelled")
)

// Orchestrator drives runs through the registry under the decision policy.
// A run is a single logical thread of control; multiple runs may execute in
// parallel sharing only the read-only registry and policy.
type Orchestrator struct {
	cfg       config.AgentsConfig
	logger    *log.Logger
	telemetry *telemetry.Telemetry
	registry  *Registry
	policy    Policy

	// Concurrency control
	semaphore chan struct{}
}

// NewOrchestrator creates a new orchestrator instance. Registry membership is
// checked per step by the run loop, not up front: a policy naming an
// unregistered agent halts the run that reaches it.
func NewOrchestrator(cfg config.AgentsConfig, registry *Registry, policy Policy, logger *log.Logger, tele *telemetry.Telemetry) (*Orchestrator, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if err := policy.Validate(); err != nil {
		return nil, fmt.Errorf("invalid policy: %w", err)
	}
	if logger == nil {
		logger = log.New(log.Writer(), "[ORCHESTRATOR] ", log.LstdFlags)
	}
	maxRuns := cfg.MaxConcurrentRuns
	if maxRuns < 1 {
		maxRuns = 1
	}
	return &Orchestrator{
		cfg:       cfg,
		logger:    logger,
		telemetry: tele,
		registry:  registry,
		policy:    policy,
		semaphore: make(chan struct{}, maxRuns),
	}, nil
}

// Policy exposes the orchestrator's decision policy.
func (o *Orchestrator) Policy() Policy { return o.policy }

// Registry exposes the orchestrator's agent registry.
func (o *Orchestrator) Registry() *Registry { return o.registry }

type stateKey struct {
	agent  AgentID
	status StatusCode
}

// Run drives one run from the external input until the policy returns
// Terminal or a halt condition fires. It emits one or more trace events per
// step to sink and always returns either a terminal outcome with a full trace
// or an error with the partial trace showing how far execution progressed.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest, sink TraceSink) (RunResult, error) {
	if sink == nil {
		sink = NopSink{}
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ctx, span := orchestratorTracer.Start(ctx, "agent.run",
		trace.WithAttributes(
			attribute.String("run.id", req.ID),
			attribute.String("run.input", req.Input),
		))
	defer span.End()

	// Bound concurrent runs
	select {
	case o.semaphore <- struct{}{}:
		defer func() { <-o.semaphore }()
	case <-ctx.Done():
		return RunResult{ID: req.ID, Input: req.Input}, ctx.Err()
	}

	res := RunResult{ID: req.ID, Input: req.Input, StartedAt: time.Now()}
	seq := 0
	emit := func(kind EventKind, agent AgentID, format string, args ...interface{}) {
		sink.Emit(TraceEvent{
			RunID:     req.ID,
			Seq:       seq,
			Kind:      kind,
			AgentID:   agent,
			Message:   fmt.Sprintf(format, args...),
			Timestamp: time.Now(),
		})
		seq++
	}

	runEvent := telemetry.RunEvent{ID: req.ID, Input: req.Input, StartTime: res.StartedAt}
	defer func() {
		runEvent.EndTime = time.Now()
		runEvent.Duration = runEvent.EndTime.Sub(runEvent.StartTime)
		runEvent.Steps = len(res.Steps)
		if o.telemetry != nil {
			o.telemetry.RecordRunEvent(ctx, runEvent)
		}
	}()

	fail := func(err error, format string, args ...interface{}) (RunResult, error) {
		emit(EventError, "", format, args...)
		runEvent.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		res.CompletedAt = time.Now()
		return res, err
	}

	o.logger.Printf("starting run %s for input: %s", req.ID, req.Input)
	emit(EventSystem, "", "starting analysis for: %s", req.Input)
	emit(EventSystem, "", "initial plan: start with data gathering")

	current := o.policy.Entry
	currentInput := req.Input
	visits := make(map[stateKey]int)
	finalPass := false

	for current != Terminal {
		select {
		case <-ctx.Done():
			emit(EventCancelled, "", "run cancelled before invoking %s", current)
			err := fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())
			runEvent.Error = err.Error()
			span.SetStatus(codes.Error, err.Error())
			res.CompletedAt = time.Now()
			return res, err
		default:
		}

		agent, ok := o.registry.Lookup(current)
		if !ok {
			return fail(fmt.Errorf("%w: %s", ErrUnknownAgent, current),
				"unknown agent %q, halting", current)
		}

		if finalPass {
			emit(EventStep, current, "running final corrective action with input: %s", currentInput)
		} else {
			emit(EventStep, current, "running with input: %s", currentInput)
		}

		out, err := o.invoke(ctx, current, agent, currentInput)
		if err != nil {
			return fail(fmt.Errorf("agent %s failed: %w", current, err),
				"agent %s failed: %v", current, err)
		}
		if !out.Status.Known() {
			return fail(fmt.Errorf("%w: %q from agent %q", ErrUnknownStatus, out.Status, current),
				"agent %s reported unrecognized status %q, halting", current, out.Status)
		}

		emit(EventStep, current, "output status: %s", out.Status)
		emit(EventStep, current, "output: %s", out.Payload)

		var next AgentID
		if finalPass {
			// The corrective agent acted on the original input; its outcome is
			// final and is not routed again.
			next = Terminal
		} else {
			key := stateKey{agent: current, status: out.Status}
			visits[key]++
			if visits[key] > o.cfg.MaxStateRepeats {
				res.Steps = append(res.Steps, WorkStep{
					Seq: len(res.Steps), AgentID: current, Input: currentInput,
					Outcome: out, NextAgentID: Terminal, Timestamp: time.Now(),
				})
				res.Final = out
				return fail(fmt.Errorf("%w: agent %s repeated status %s %d times", ErrCycleDetected, current, out.Status, visits[key]),
					"cycle detected at agent %s (status %s), halting", current, out.Status)
			}
			next, err = o.policy.Decide(current, out)
			if err != nil {
				res.Steps = append(res.Steps, WorkStep{
					Seq: len(res.Steps), AgentID: current, Input: currentInput,
					Outcome: out, NextAgentID: Terminal, Timestamp: time.Now(),
				})
				res.Final = out
				return fail(err, "decision failed after agent %s: %v", current, err)
			}
		}

		res.Steps = append(res.Steps, WorkStep{
			Seq:         len(res.Steps),
			AgentID:     current,
			Input:       currentInput,
			Outcome:     out,
			NextAgentID: next,
			Timestamp:   time.Now(),
		})
		res.Final = out
		runEvent.AgentsUsed = append(runEvent.AgentsUsed, string(current))

		emit(EventDecision, "", "next agent: %s", next)

		if next != Terminal && o.policy.IsTerminalCorrective(next) {
			// Corrective agents act on the run's original subject, not on the
			// intermediate diagnostic text, and end the run after one pass.
			current = next
			currentInput = req.Input
			finalPass = true
			continue
		}

		current = next
		currentInput = out.Payload
	}

	emit(EventDone, "", "sequence complete")
	runEvent.Success = true
	res.CompletedAt = time.Now()
	span.SetAttributes(attribute.Int("run.steps", len(res.Steps)))
	span.SetStatus(codes.Ok, "completed")
	o.logger.Printf("completed run %s in %v (%d steps)", req.ID, res.CompletedAt.Sub(res.StartedAt), len(res.Steps))
	return res, nil
}

// invoke executes a single work unit under the configured timeout.
func (o *Orchestrator) invoke(ctx context.Context, id AgentID, agent Agent, input string) (Outcome, error) {
	if o.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.AgentTimeout)
		defer cancel()
	}

	ctx, span := orchestratorTracer.Start(ctx, "agent.invoke",
		trace.WithAttributes(attribute.String("agent.id", string(id))))
	defer span.End()

	start := time.Now()
	out, err := agent.Invoke(ctx, input)

	event := telemetry.AgentEvent{
		AgentID:   string(id),
		StartTime: start,
		EndTime:   time.Now(),
		Duration:  time.Since(start),
	}
	if err != nil {
		event.Error = err.Error()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		event.Success = true
		event.Status = string(out.Status)
		span.SetAttributes(attribute.String("agent.status", string(out.Status)))
		span.SetStatus(codes.Ok, "completed")
	}
	if o.telemetry != nil {
		o.telemetry.RecordAgentEvent(ctx, event)
	}
	return out, err
}
