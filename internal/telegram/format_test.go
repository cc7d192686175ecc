package telegram

import (
	"strings"
	"testing"

	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatMealPlan(t *testing.T) {
	mp := &plan.MealPlan{
		WeeklyPlan: map[string]plan.MealDay{
			"tuesday": {
				Meals:       []plan.Meal{{Name: "Chicken_rice *bowl*", Type: plan.MealType("lunch"), Time: "13:00", Calories: 620, Protein: 48, Carbs: 70, Fat: 14}},
				DailyTotals: plan.Macros{Calories: 620},
			},
			"monday": {
				Meals:       []plan.Meal{{Name: "Oats", Type: plan.MealType("breakfast"), Time: "07:30", Calories: 380}},
				DailyTotals: plan.Macros{Calories: 380},
			},
		},
		WeeklyTotals: plan.Macros{Calories: 1000},
		Notes:        "Drink water",
	}

	out := formatMealPlan(mp, "Mar 2 to Mar 8")
	assert.Less(t, strings.Index(out, "*Monday*"), strings.Index(out, "*Tuesday*"))
	assert.Contains(t, out, "• 13:00 Lunch: Chicken\\_rice \\*bowl\\* (620 kcal, P 48g C 70g F 14g)")
	assert.Contains(t, out, "_Drink water_")
	assert.Contains(t, out, "📊 *Week*: 1000 kcal")
}

func TestFormatRecord_UndecodablePlan(t *testing.T) {
	parts := formatRecord(&planner.PlanRecord{Kind: plan.KindMeal, PlanData: []byte("{")})
	assert.Equal(t, []string{"❌ " + planner.UserMessage}, parts)
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitMessage("short\n", 100))

	var sb strings.Builder
	for i := 0; i < 50; i++ {
		sb.WriteString("line of text number xx\n")
		if i%10 == 9 {
			sb.WriteString("\n")
		}
	}
	parts := splitMessage(sb.String(), 200)
	assert.Greater(t, len(parts), 1)
	total := 0
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 200)
		assert.False(t, strings.HasPrefix(p, "\n"))
		total += strings.Count(p, "line of text")
	}
	assert.Equal(t, 50, total)

	long := strings.Repeat("é", 150)
	parts = splitMessage(long, 101)
	for _, p := range parts {
		assert.LessOrEqual(t, len(p), 101)
	}
	assert.Equal(t, long, strings.Join(parts, ""))
}

func TestSplitMessage_KeepsEscapesTogether(t *testing.T) {
	line := strings.Repeat("a", 99) + `\_` + strings.Repeat("b", 50)
	parts := splitMessage(line, 100)
	require.Len(t, parts, 2)
	assert.Equal(t, strings.Repeat("a", 99), parts[0])
	assert.False(t, strings.HasSuffix(parts[0], `\`))
	assert.True(t, strings.HasPrefix(parts[1], `\_`), parts[1])
	assert.Equal(t, line, strings.Join(parts, ""))

	// An escaped backslash is a complete pair and may end a chunk.
	line = strings.Repeat("a", 98) + `\\` + strings.Repeat("b", 50)
	parts = splitMessage(line, 100)
	require.Len(t, parts, 2)
	assert.Len(t, parts[0], 100)
	assert.Equal(t, line, strings.Join(parts, ""))
}

func TestCutPoint(t *testing.T) {
	assert.Equal(t, 2, cutPoint(`ab\_cd`, 3))
	assert.Equal(t, 4, cutPoint(`ab\\cd`, 4))
	assert.Equal(t, 3, cutPoint("abcdef", 3))
}
