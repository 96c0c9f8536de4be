// Package stream mirrors trace events onto a Redis stream for external
// observability. It is optional and disabled by default; the in-memory trace
// remains the run's source of truth.
package stream

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/finsense/internal/agent/core"
)

// Envelope is the wire representation of one trace event.
type Envelope struct {
	EventID    string    `json:"event_id"`
	RunID      string    `json:"run_id"`
	Kind       string    `json:"kind"`
	AgentID    string    `json:"agent_id,omitempty"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ValidateBasic checks the envelope's required fields.
func (e Envelope) ValidateBasic() error {
	if e.RunID == "" {
		return fmt.Errorf("run_id is required")
	}
	if e.Kind == "" {
		return fmt.Errorf("kind is required")
	}
	return nil
}

// Publisher appends envelopes to a Redis stream.
type Publisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// PublishOption configures Redis XADD behaviour.
type PublishOption func(*redis.XAddArgs)

// WithMaxLenApprox sets an approximate max length for the stream.
func WithMaxLenApprox(maxLen int64) PublishOption {
	return func(args *redis.XAddArgs) {
		if maxLen > 0 {
			args.MaxLen = maxLen
			args.Approx = true
		}
	}
}

// NewPublisher creates a Publisher for the named stream.
func NewPublisher(client *redis.Client, stream string, maxLen int64) *Publisher {
	return &Publisher{client: client, stream: stream, maxLen: maxLen}
}

// Publish validates the envelope and appends it to the stream.
func (p *Publisher) Publish(ctx context.Context, envelope Envelope, opts ...PublishOption) (string, error) {
	if p.stream == "" {
		return "", fmt.Errorf("stream name is required")
	}
	if envelope.EventID == "" {
		envelope.EventID = uuid.NewString()
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = time.Now().UTC()
	}
	if err := envelope.ValidateBasic(); err != nil {
		return "", err
	}

	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: map[string]interface{}{
			"event_id":    envelope.EventID,
			"run_id":      envelope.RunID,
			"kind":        envelope.Kind,
			"agent_id":    envelope.AgentID,
			"message":     envelope.Message,
			"occurred_at": envelope.OccurredAt.Format(time.RFC3339Nano),
		},
	}
	WithMaxLenApprox(p.maxLen)(args)
	for _, opt := range opts {
		opt(args)
	}

	return p.client.XAdd(ctx, args).Result()
}

// Sink adapts the publisher to the run loop's trace sink contract. Publish
// failures are logged and dropped so the mirror can never stall a run.
type Sink struct {
	publisher *Publisher
	logger    *log.Logger
}

// NewSink wraps a publisher as a core.TraceSink.
func NewSink(publisher *Publisher, logger *log.Logger) *Sink {
	if logger == nil {
		logger = log.New(log.Writer(), "[STREAM] ", log.LstdFlags)
	}
	return &Sink{publisher: publisher, logger: logger}
}

func (s *Sink) Emit(event core.TraceEvent) {
	env := Envelope{
		RunID:      event.RunID,
		Kind:       string(event.Kind),
		AgentID:    string(event.AgentID),
		Message:    event.Message,
		OccurredAt: event.Timestamp,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := s.publisher.Publish(ctx, env); err != nil {
		s.logger.Printf("trace mirror publish failed: %v", err)
	}
}
