package app

import (
	"context"
	"path/filepath"
	"testing"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/prompt"
	"ai-fitness-coach/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRuntime(t *testing.T) {
	ctx := context.Background()
	cfg := &config.Config{
		LLMProvider:     config.ProviderGroq,
		GroqAPIKey:      "test-key",
		GroqModel:       "llama-3.3-70b-versatile",
		GroqBaseURL:     "http://127.0.0.1:1",
		MaxAttempts:     3,
		DefaultLanguage: "xx",
		DatabasePath:    filepath.Join(t.TempDir(), "data", "coach.db"),
	}

	rt, err := NewRuntime(ctx, cfg, nil, telemetry.Nop{})
	require.NoError(t, err)

	assert.Equal(t, prompt.English, rt.App.opts.DefaultLanguage)
	assert.Equal(t, prompt.DefaultPlanDays, rt.App.opts.DefaultPlanDays)

	_, err = rt.App.CurrentPlan(ctx, "nobody", plan.KindMeal)
	assert.ErrorIs(t, err, planner.ErrPlanNotFound)

	families, err := rt.Registry.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)

	require.NoError(t, rt.Close(ctx))
}

func TestNewRuntime_UnknownProvider(t *testing.T) {
	cfg := &config.Config{LLMProvider: "openai", DatabasePath: filepath.Join(t.TempDir(), "coach.db")}
	_, err := NewRuntime(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "unknown LLM provider")
}
