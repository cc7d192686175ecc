package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/prompt"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/telemetry"

	"go.uber.org/zap"
)

const (
	AgentMealPlanner    = "MealPlanner"
	AgentWorkoutPlanner = "WorkoutPlanner"
)

// maxPayloadTelemetry caps the offending payload attached to a validation
// failure event.
const maxPayloadTelemetry = 2048

// Result is a validated plan. Exactly one of Meal and Workout is set.
type Result struct {
	Kind     plan.Kind
	Meal     *plan.MealPlan
	Workout  *plan.WorkoutPlan
	JSON     []byte
	Language prompt.Language
	Days     int
	Meta     shared.AgentMeta
}

// Planner runs the generation pipeline: build the prompt, call the provider
// under the retry policy, and re-validate the result. It holds no per-request
// state and may be shared across goroutines.
type Planner struct {
	gen       *Generator
	validator *plan.Validator
	telemetry telemetry.Sink
	log       *zap.Logger
}

// NewPlanner creates a new Planner instance. A nil validator selects the
// default one built from the embedded schemas.
func NewPlanner(gen *Generator, validator *plan.Validator, sink telemetry.Sink, log *zap.Logger) *Planner {
	if validator == nil {
		validator = plan.DefaultValidator()
	}
	if sink == nil {
		sink = telemetry.Nop{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Planner{gen: gen, validator: validator, telemetry: sink, log: log}
}

// Generate produces a validated plan for req. Nothing is persisted; on error
// no partial plan is returned.
func (p *Planner) Generate(ctx context.Context, req prompt.GenerationRequest) (*Result, error) {
	schema, err := plan.SchemaFor(req.Kind)
	if err != nil {
		return nil, err
	}
	agent := agentName(req.Kind)
	log := p.log.With(zap.String("agent", agent), zap.String("subject", req.Profile.SubjectID))

	start := time.Now()
	out, err := p.gen.Generate(ctx, agent, req.Kind, prompt.Build(req), schema)
	if err != nil {
		log.Warn("plan generation failed", zap.Int("attempts", out.Attempts), zap.Error(err))
		return nil, err
	}

	res := &Result{
		Kind:     req.Kind,
		Language: req.Language,
		Days:     req.Days(),
		Meta: shared.AgentMeta{
			AgentName: agent,
			Usage:     out.Usage,
			Latency:   time.Since(start),
			Attempts:  out.Attempts,
		},
	}

	var (
		doc    any
		issues []plan.Issue
	)
	switch req.Kind {
	case plan.KindMeal:
		o := p.validator.MealPlan(out.Content)
		res.Meal, issues, doc = o.Document, o.Issues, o.Document
	case plan.KindWorkout:
		o := p.validator.WorkoutPlan(out.Content)
		res.Workout, issues, doc = o.Document, o.Issues, o.Document
	}

	if len(issues) > 0 {
		_ = p.telemetry.RecordError(ctx, telemetry.Event{
			Name:  telemetry.EventValidationFailed,
			Level: telemetry.LevelError,
			Agent: agent,
			Usage: &out.Usage,
			Fields: map[string]any{
				"kind":        string(req.Kind),
				"issue_count": len(issues),
				"issues":      issueStrings(issues),
				"payload":     truncate(string(out.Content), maxPayloadTelemetry),
			},
		}, fmt.Errorf("%d validation issue(s)", len(issues)))
		log.Warn("plan failed validation", zap.Int("issues", len(issues)))
		return nil, &ValidationFailedError{Kind: req.Kind, Issues: issues}
	}

	res.JSON, err = json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s plan: %w", req.Kind, err)
	}

	log.Info("plan generated",
		zap.Int("attempts", out.Attempts),
		zap.Int("total_tokens", out.Usage.TotalTokens),
		zap.Duration("latency", res.Meta.Latency),
	)
	return res, nil
}

// GenerateMealPlan generates and validates a meal plan.
func (p *Planner) GenerateMealPlan(ctx context.Context, req prompt.GenerationRequest) (*plan.MealPlan, shared.AgentMeta, error) {
	req.Kind = plan.KindMeal
	res, err := p.Generate(ctx, req)
	if err != nil {
		return nil, shared.AgentMeta{}, err
	}
	return res.Meal, res.Meta, nil
}

// GenerateWorkoutPlan generates and validates a workout plan.
func (p *Planner) GenerateWorkoutPlan(ctx context.Context, req prompt.GenerationRequest) (*plan.WorkoutPlan, shared.AgentMeta, error) {
	req.Kind = plan.KindWorkout
	res, err := p.Generate(ctx, req)
	if err != nil {
		return nil, shared.AgentMeta{}, err
	}
	return res.Workout, res.Meta, nil
}

func agentName(kind plan.Kind) string {
	if kind == plan.KindWorkout {
		return AgentWorkoutPlanner
	}
	return AgentMealPlanner
}

func issueStrings(issues []plan.Issue) []string {
	out := make([]string, len(issues))
	for i, is := range issues {
		out[i] = is.String()
	}
	return out
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "…"
}
