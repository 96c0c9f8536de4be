package core

import (
	"log"
	"sync"
	"time"
)

// EventKind distinguishes trace event classes so a presentation layer can
// render them differently.
type EventKind string

const (
	EventSystem    EventKind = "system"
	EventStep      EventKind = "step"
	EventDecision  EventKind = "decision"
	EventError     EventKind = "error"
	EventCancelled EventKind = "cancelled"
	EventDone      EventKind = "done"
)

// TraceEvent is one timestamped, human-readable entry in a run's trace. The
// trace is finite: one or more events per work step plus a final completion or
// error marker.
type TraceEvent struct {
	RunID     string    `json:"run_id"`
	Seq       int       `json:"seq"`
	Kind      EventKind `json:"kind"`
	AgentID   AgentID   `json:"agent_id,omitempty"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceSink receives trace events as the run loop emits them. Implementations
// must tolerate concurrent runs each writing to their own sink.
type TraceSink interface {
	Emit(event TraceEvent)
}

// NopSink discards all events.
type NopSink struct{}

func (NopSink) Emit(TraceEvent) {}

// LoggerSink writes each event as a log line.
type LoggerSink struct {
	Logger *log.Logger
}

func (s LoggerSink) Emit(event TraceEvent) {
	if s.Logger == nil {
		return
	}
	if event.AgentID != "" {
		s.Logger.Printf("[%s] %s", event.AgentID, event.Message)
		return
	}
	s.Logger.Printf("%s", event.Message)
}

// BufferSink accumulates events in memory, preserving order. Safe for a
// concurrent reader polling Events while the run appends.
type BufferSink struct {
	mu     sync.Mutex
	events []TraceEvent
}

func (s *BufferSink) Emit(event TraceEvent) {
	s.mu.Lock()
	s.events = append(s.events, event)
	s.mu.Unlock()
}

// Events returns a snapshot of events appended since offset.
func (s *BufferSink) Events(offset int) []TraceEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if offset < 0 || offset >= len(s.events) {
		return nil
	}
	out := make([]TraceEvent, len(s.events)-offset)
	copy(out, s.events[offset:])
	return out
}

// Len returns the number of events emitted so far.
func (s *BufferSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// MultiSink fans each event out to every child sink in order.
type MultiSink []TraceSink

func (m MultiSink) Emit(event TraceEvent) {
	for _, s := range m {
		if s != nil {
			s.Emit(event)
		}
	}
}
