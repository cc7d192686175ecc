package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink counts events and token usage.
type PrometheusSink struct {
	events  *prometheus.CounterVec
	tokens  *prometheus.CounterVec
	latency *prometheus.HistogramVec
}

// NewPrometheusSink registers the pipeline collectors on reg.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	s := &PrometheusSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_plan_events_total",
				Help: "Plan generation pipeline events by name and level",
			},
			[]string{"event", "level"},
		),
		tokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_llm_tokens_total",
				Help: "Tokens consumed by successful generations",
			},
			[]string{"model", "type"},
		),
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_plan_generation_duration_seconds",
				Help:    "End-to-end duration of successful generations",
				Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80},
			},
			[]string{"agent"},
		),
	}
	for _, c := range []prometheus.Collector{s.events, s.tokens, s.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PrometheusSink) RecordEvent(_ context.Context, e Event) error {
	s.events.WithLabelValues(e.Name, string(e.Level)).Inc()
	if u := e.Usage; u != nil {
		s.tokens.WithLabelValues(u.Model, "prompt").Add(float64(u.PromptTokens))
		s.tokens.WithLabelValues(u.Model, "completion").Add(float64(u.CompletionTokens))
	}
	if e.Latency > 0 && e.Name == EventGenerationSucceeded {
		s.latency.WithLabelValues(e.Agent).Observe(e.Latency.Seconds())
	}
	return nil
}

func (s *PrometheusSink) RecordError(_ context.Context, e Event, _ error) error {
	s.events.WithLabelValues(e.Name, string(e.Level)).Inc()
	return nil
}
