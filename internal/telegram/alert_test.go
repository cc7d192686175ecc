package telegram

import (
	"context"
	"errors"
	"testing"

	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/telemetry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlertSink(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{}
	sink := NewAlertSink(sender, 99)

	require.NoError(t, sink.RecordEvent(ctx, telemetry.Event{Name: telemetry.EventGenerationSucceeded, Level: telemetry.LevelInfo,
		Usage: &shared.TokenUsage{PromptTokens: 1200}}))
	require.NoError(t, sink.RecordError(ctx, telemetry.Event{Name: telemetry.EventGenerationRetry, Level: telemetry.LevelWarn}, errors.New("503")))
	assert.Empty(t, sender.texts())

	require.NoError(t, sink.RecordError(ctx, telemetry.Event{
		Name:  telemetry.EventValidationFailed,
		Level: telemetry.LevelError,
		Agent: "MealPlanner",
		Fields: map[string]any{
			"kind":        "meal",
			"issue_count": 2,
			"issues":      []string{"weeklyPlan.monday.meals.0.calories: must be greater than 0", "notes: required"},
			"payload":     `{"weeklyPlan": {}}`,
		},
	}, errors.New("2 validation issue(s)")))

	require.NoError(t, sink.RecordEvent(ctx, telemetry.Event{Name: telemetry.EventGenerationSucceeded, Level: telemetry.LevelInfo,
		Agent: "WorkoutPlanner", Usage: &shared.TokenUsage{PromptTokens: 5200, Model: "llama"}}))

	texts := sender.texts()
	require.Len(t, texts, 2)
	assert.Contains(t, texts[0], "MealPlanner")
	assert.Contains(t, texts[0], "issue\\_count: 2")
	assert.Contains(t, texts[0], "First issue: weeklyPlan.monday.meals.0.calories")
	assert.NotContains(t, texts[0], "payload")
	assert.Contains(t, texts[1], "Context Bloat Alert")
	assert.Contains(t, texts[1], "Prompt Tokens: 5200")

	msg, ok := sender.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, int64(99), msg.ChatID)
}

func TestAlertSink_NoAdmin(t *testing.T) {
	sender := &fakeSender{}
	sink := NewAlertSink(sender, 0)
	require.NoError(t, sink.RecordError(context.Background(), telemetry.Event{Level: telemetry.LevelError}, errors.New("boom")))
	assert.Empty(t, sender.sent)
}

func TestAlertSink_SendFailure(t *testing.T) {
	sender := &fakeSender{err: errors.New("chat not found")}
	sink := NewAlertSink(sender, 99)
	err := sink.RecordError(context.Background(), telemetry.Event{Level: telemetry.LevelError}, errors.New("boom"))
	assert.ErrorContains(t, err, "chat not found")
}
