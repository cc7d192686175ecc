package llm

import (
	"testing"

	"ai-fitness-coach/internal/plan"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiSchema_MealPlan(t *testing.T) {
	s, err := plan.SchemaFor(plan.KindMeal)
	require.NoError(t, err)

	gs, err := GeminiSchema(s.JSON)
	require.NoError(t, err)
	assert.Equal(t, genai.TypeObject, gs.Type)
	assert.Equal(t, []string{"notes", "weeklyPlan", "weeklyTotals"}, gs.Required)

	weekly := gs.Properties["weeklyPlan"]
	require.NotNil(t, weekly)
	assert.Len(t, weekly.Properties, 7)
	assert.Empty(t, weekly.Required)

	monday := weekly.Properties["monday"]
	require.NotNil(t, monday)
	meals := monday.Properties["meals"]
	require.NotNil(t, meals)
	assert.Equal(t, genai.TypeArray, meals.Type)

	meal := meals.Items
	require.NotNil(t, meal)
	assert.Contains(t, meal.Required, "ingredients")
	assert.Equal(t, []string{"breakfast", "lunch", "dinner", "snack"}, meal.Properties["type"].Enum)
	assert.Equal(t, genai.TypeNumber, meal.Properties["calories"].Type)
	assert.Equal(t, genai.TypeString, meal.Properties["ingredients"].Items.Type)
}

func TestGeminiSchema_WorkoutPlan(t *testing.T) {
	s, err := plan.SchemaFor(plan.KindWorkout)
	require.NoError(t, err)

	gs, err := GeminiSchema(s.JSON)
	require.NoError(t, err)

	day := gs.Properties["weeklyPlan"].Properties["sunday"]
	require.NotNil(t, day)
	assert.Equal(t, genai.TypeBoolean, day.Properties["restDay"].Type)
	assert.Equal(t, genai.TypeInteger, day.Properties["exercises"].Items.Properties["sets"].Type)
	assert.NotContains(t, day.Required, "exercises")
}

func TestGeminiSchema_Errors(t *testing.T) {
	_, err := GeminiSchema([]byte(`{"type":"object","properties":{"a":{"$ref":"#/definitions/missing"}}}`))
	assert.ErrorContains(t, err, "unresolved schema reference")

	_, err = GeminiSchema([]byte(`{"type":"tuple"}`))
	assert.ErrorContains(t, err, "unsupported schema type")

	_, err = GeminiSchema([]byte(`not json`))
	assert.Error(t, err)

	// A self-referencing definition must not recurse forever.
	_, err = GeminiSchema([]byte(`{"$ref":"#/definitions/loop","definitions":{"loop":{"$ref":"#/definitions/loop"}}}`))
	assert.ErrorContains(t, err, "nesting")
}
