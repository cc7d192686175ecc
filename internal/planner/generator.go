package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/prompt"
	"ai-fitness-coach/internal/retry"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/telemetry"
)

// Params are the generation parameters applied to every provider call.
type Params struct {
	Temperature     float32
	MaxOutputTokens int
	// AttemptTimeout bounds a single provider call. Zero disables it.
	AttemptTimeout time.Duration
	Retry          retry.Policy
}

// DefaultParams returns temperature 0.7, 8192 output tokens, a 60s attempt
// timeout and the default retry policy.
func DefaultParams() Params {
	return Params{
		Temperature:     0.7,
		MaxOutputTokens: 8192,
		AttemptTimeout:  60 * time.Second,
		Retry:           retry.DefaultPolicy(),
	}
}

// Output is a provider response that parsed as JSON.
type Output struct {
	Content  []byte
	Usage    shared.TokenUsage
	Attempts int
	Latency  time.Duration
}

// Generator calls a structured-output provider under a retry policy.
type Generator struct {
	provider  llm.StructuredGenerator
	params    Params
	telemetry telemetry.Sink
	retryOpts []retry.Option
}

// GeneratorOption customizes a Generator.
type GeneratorOption func(*Generator)

// WithRetryOptions passes extra options to the retry loop, e.g. a fake sleep
// in tests.
func WithRetryOptions(opts ...retry.Option) GeneratorOption {
	return func(g *Generator) { g.retryOpts = append(g.retryOpts, opts...) }
}

// NewGenerator creates a Generator. A nil sink discards telemetry.
func NewGenerator(provider llm.StructuredGenerator, params Params, sink telemetry.Sink, opts ...GeneratorOption) *Generator {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	g := &Generator{provider: provider, params: params, telemetry: sink}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate obtains a JSON document constrained to schema. Transient failures,
// including output that is not JSON, are retried; a rejected request fails
// with *ProviderConfigError and an exhausted budget with
// *GenerationExhaustedError.
func (g *Generator) Generate(ctx context.Context, agent string, kind plan.Kind, p prompt.Prompt, schema plan.Schema) (Output, error) {
	start := time.Now()
	req := llm.StructuredRequest{
		System:          p.System,
		User:            p.User,
		SchemaName:      schema.Name,
		Schema:          schema.JSON,
		Temperature:     g.params.Temperature,
		MaxOutputTokens: g.params.MaxOutputTokens,
	}

	var (
		usage    shared.TokenUsage
		attempts int
	)
	op := func(ctx context.Context, attempt int) ([]byte, error) {
		attempts = attempt
		actx := ctx
		if g.params.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			actx, cancel = context.WithTimeout(ctx, g.params.AttemptTimeout)
			defer cancel()
		}

		resp, err := g.provider.GenerateStructured(actx, req)
		usage = usage.Add(resp.Usage)
		if err != nil {
			return nil, err
		}

		content := []byte(plan.CleanJSON(resp.Content))
		if !json.Valid(content) {
			return nil, &llm.ProviderError{Provider: "provider", Retryable: true, Err: errors.New("malformed JSON output")}
		}
		return content, nil
	}

	onRetry := retry.OnRetry(func(a retry.Attempt) {
		_ = g.telemetry.RecordError(ctx, telemetry.Event{
			Name:  telemetry.EventGenerationRetry,
			Level: telemetry.LevelWarn,
			Agent: agent,
			Fields: map[string]any{
				"kind":    string(kind),
				"attempt": a.Number,
				"delay":   a.Delay.String(),
			},
		}, a.Err)
	})
	opts := append([]retry.Option{retry.WithRetryable(llm.IsRetryable), onRetry}, g.retryOpts...)

	content, err := retry.Do(ctx, g.params.Retry, op, opts...)
	out := Output{Content: content, Usage: usage, Attempts: attempts, Latency: time.Since(start)}
	if err == nil {
		_ = g.telemetry.RecordEvent(ctx, telemetry.Event{
			Name:    telemetry.EventGenerationSucceeded,
			Level:   telemetry.LevelInfo,
			Agent:   agent,
			Usage:   &out.Usage,
			Latency: out.Latency,
			Fields:  map[string]any{"kind": string(kind), "attempts": attempts},
		})
		return out, nil
	}

	var exhausted *retry.ExhaustedError
	switch {
	case errors.As(err, &exhausted):
		_ = g.telemetry.RecordError(ctx, telemetry.Event{
			Name:    telemetry.EventGenerationExhausted,
			Level:   telemetry.LevelError,
			Agent:   agent,
			Usage:   &out.Usage,
			Latency: out.Latency,
			Fields:  map[string]any{"kind": string(kind), "attempts": exhausted.Attempts},
		}, exhausted.Last)
		return out, &GenerationExhaustedError{Kind: kind, Attempts: exhausted.Attempts, Last: exhausted.Last}

	case ctx.Err() != nil:
		return out, fmt.Errorf("%s plan generation abandoned: %w", kind, err)

	default:
		_ = g.telemetry.RecordError(ctx, telemetry.Event{
			Name:   telemetry.EventProviderFatal,
			Level:  telemetry.LevelError,
			Agent:  agent,
			Fields: map[string]any{"kind": string(kind), "attempts": attempts},
		}, err)
		return out, &ProviderConfigError{Err: err}
	}
}
