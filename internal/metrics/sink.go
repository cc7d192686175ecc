package metrics

import (
	"context"

	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/telemetry"
)

// Sink persists generation telemetry as execution metrics so daily usage and
// failure counts survive restarts. Retry events are not stored; the outcome
// of the request already carries the attempt count.
type Sink struct {
	store *Store
}

// NewSink creates a Sink writing to store.
func NewSink(store *Store) *Sink {
	return &Sink{store: store}
}

func (s *Sink) RecordEvent(ctx context.Context, e telemetry.Event) error {
	if e.Name == telemetry.EventGenerationRetry {
		return nil
	}
	return s.store.Record(ctx, toMetric(e))
}

func (s *Sink) RecordError(ctx context.Context, e telemetry.Event, _ error) error {
	return s.RecordEvent(ctx, e)
}

// FailureEvents are the event names counted as failures in DailyUsage.
var FailureEvents = []string{
	telemetry.EventGenerationExhausted,
	telemetry.EventValidationFailed,
	telemetry.EventProviderFatal,
}

func toMetric(e telemetry.Event) ExecutionMetric {
	var usage shared.TokenUsage
	if e.Usage != nil {
		usage = *e.Usage
	}
	m := MapUsage(e.Agent, usage, e.Latency)
	m.Event = e.Name
	m.Timestamp = e.At
	if n, ok := e.Fields["attempts"].(int); ok {
		m.Attempts = n
	}
	return m
}
