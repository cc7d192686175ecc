// Package telemetry carries advisory events from the generation pipeline to
// observability backends. Delivery never affects the caller: sinks are
// invoked through Async, which runs them in the background.
package telemetry

import (
	"context"
	"errors"
	"time"

	"ai-fitness-coach/internal/shared"
)

// Level is the severity of an event.
type Level string

const (
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Event names emitted by the pipeline.
const (
	EventGenerationSucceeded = "plan.generation.succeeded"
	EventGenerationRetry     = "plan.generation.retry"
	EventGenerationExhausted = "plan.generation.exhausted"
	EventValidationFailed    = "plan.validation_failed"
	EventProviderFatal       = "plan.generation.provider_fatal"
)

// Event is a single breadcrumb.
type Event struct {
	Name    string
	Level   Level
	Agent   string
	Fields  map[string]any
	Usage   *shared.TokenUsage
	Latency time.Duration
	At      time.Time
}

// Sink receives events. RecordError is used for events that describe a
// failure, with the underlying error attached.
type Sink interface {
	RecordEvent(ctx context.Context, e Event) error
	RecordError(ctx context.Context, e Event, err error) error
}

// Nop discards everything.
type Nop struct{}

func (Nop) RecordEvent(context.Context, Event) error        { return nil }
func (Nop) RecordError(context.Context, Event, error) error { return nil }

// Multi fans an event out to every sink and joins their errors.
type Multi []Sink

func (m Multi) RecordEvent(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.RecordEvent(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) RecordError(ctx context.Context, e Event, err error) error {
	var errs []error
	for _, s := range m {
		if serr := s.RecordError(ctx, e, err); serr != nil {
			errs = append(errs, serr)
		}
	}
	return errors.Join(errs...)
}
