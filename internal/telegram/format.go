package telegram

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// maxMessageLen stays under Telegram's 4096 character limit.
const maxMessageLen = 4000

func esc(s string) string {
	return tgbotapi.EscapeText(tgbotapi.ModeMarkdown, s)
}

func dayTitle(day string) string {
	if day == "" {
		return day
	}
	return strings.ToUpper(day[:1]) + day[1:]
}

// formatRecord renders a stored plan as one or more Markdown messages.
func formatRecord(rec *planner.PlanRecord) []string {
	period := fmt.Sprintf("%s to %s", rec.PeriodStart.Format("Jan 2"), rec.PeriodEnd.Format("Jan 2"))

	var text string
	switch rec.Kind {
	case plan.KindMeal:
		var mp plan.MealPlan
		if err := json.Unmarshal(rec.PlanData, &mp); err != nil {
			return []string{"❌ " + planner.UserMessage}
		}
		text = formatMealPlan(&mp, period)
	case plan.KindWorkout:
		var wp plan.WorkoutPlan
		if err := json.Unmarshal(rec.PlanData, &wp); err != nil {
			return []string{"❌ " + planner.UserMessage}
		}
		text = formatWorkoutPlan(&wp, period)
	default:
		return []string{"❌ " + planner.UserMessage}
	}
	return splitMessage(text, maxMessageLen)
}

func formatMealPlan(mp *plan.MealPlan, period string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📅 *Meal Plan* (%s)\n", period)

	for _, day := range plan.OrderedDays(mp.WeeklyPlan) {
		d := mp.WeeklyPlan[day]
		fmt.Fprintf(&sb, "\n*%s* (%.0f kcal)\n", dayTitle(day), d.DailyTotals.Calories)
		for _, m := range d.Meals {
			fmt.Fprintf(&sb, "• %s %s: %s (%.0f kcal, P %.0fg C %.0fg F %.0fg)\n",
				esc(m.Time), dayTitle(string(m.Type)), esc(m.Name), m.Calories, m.Protein, m.Carbs, m.Fat)
		}
	}

	t := mp.WeeklyTotals
	fmt.Fprintf(&sb, "\n📊 *Week*: %.0f kcal, P %.0fg C %.0fg F %.0fg\n", t.Calories, t.Protein, t.Carbs, t.Fat)
	if n := strings.TrimSpace(mp.Notes); n != "" {
		fmt.Fprintf(&sb, "\n_%s_\n", esc(n))
	}
	return sb.String()
}

func formatWorkoutPlan(wp *plan.WorkoutPlan, period string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🏋️ *Workout Plan* (%s)\n", period)

	for _, day := range plan.OrderedDays(wp.WeeklyPlan) {
		d := wp.WeeklyPlan[day]
		if d.RestDay {
			fmt.Fprintf(&sb, "\n*%s*: %s 😴\n", dayTitle(day), esc(d.WorkoutName))
			continue
		}
		fmt.Fprintf(&sb, "\n*%s*: %s (%d min)\n", dayTitle(day), esc(d.WorkoutName), d.Duration)
		if len(d.Warmup) > 0 {
			fmt.Fprintf(&sb, "Warmup: %s\n", esc(timedNames(d.Warmup)))
		}
		for _, e := range d.Exercises {
			fmt.Fprintf(&sb, "• %s: %d × %s, rest %ds\n", esc(e.Name), e.Sets, esc(e.Reps), e.Rest)
		}
		if len(d.Cooldown) > 0 {
			fmt.Fprintf(&sb, "Cooldown: %s\n", esc(timedNames(d.Cooldown)))
		}
	}

	if n := strings.TrimSpace(wp.ProgressionNotes); n != "" {
		fmt.Fprintf(&sb, "\n📈 %s\n", esc(n))
	}
	if len(wp.SafetyTips) > 0 {
		sb.WriteString("\n⚠️ *Safety*\n")
		for _, tip := range wp.SafetyTips {
			fmt.Fprintf(&sb, "• %s\n", esc(tip))
		}
	}
	return sb.String()
}

func timedNames(items []plan.TimedExercise) string {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name
	}
	return strings.Join(names, ", ")
}

func formatShoppingList(items []string) []string {
	var sb strings.Builder
	sb.WriteString("🛒 *Shopping List*\n\n")
	for _, item := range items {
		fmt.Fprintf(&sb, "• %s\n", esc(item))
	}
	return splitMessage(sb.String(), maxMessageLen)
}

func formatUsage(r *app.UsageReport) string {
	var sb strings.Builder
	sb.WriteString("📊 *Usage & Health Report*\n\n")

	sb.WriteString("🗓 *Recent LLM Activity*\n")
	if len(r.Daily) == 0 {
		sb.WriteString("_No data yet_\n")
	}
	for _, d := range r.Daily {
		fmt.Fprintf(&sb, "• *%s*: %d tokens (%d execs, %d failed)\n",
			d.Date, d.TotalPrompt+d.TotalCompletion, d.TotalExecution, d.Failures)
	}

	h := r.Health
	sb.WriteString("\n🧠 *System Health*\n")
	fmt.Fprintf(&sb, "• RAM: %dMB (Alloc) / %dMB (Sys)\n", h.AllocMB, h.SysMB)
	fmt.Fprintf(&sb, "• Goroutines: %d\n", h.Goroutines)
	if h.Uptime > 0 {
		fmt.Fprintf(&sb, "• Uptime: %s\n", h.Uptime)
	}
	fmt.Fprintf(&sb, "• Disk Data: %s\n", h.DataDiskSize)
	return sb.String()
}

// splitMessage cuts text into chunks of at most limit bytes, preferring
// paragraph and then line boundaries.
func splitMessage(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= limit {
		return []string{text}
	}

	var (
		parts []string
		cur   strings.Builder
	)
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			parts = append(parts, s)
		}
		cur.Reset()
	}
	for _, line := range strings.SplitAfter(text, "\n") {
		for len(line) > limit {
			flush()
			cut := cutPoint(line, limit)
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		if cur.Len()+len(line) > limit {
			flush()
		}
		// Start a new chunk at a paragraph break once the current one is large.
		if line == "\n" && cur.Len() > limit*3/4 {
			flush()
			continue
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

// cutPoint returns the largest index <= limit at which s can be cut without
// splitting a UTF-8 sequence or separating an escaping backslash from the
// character it escapes.
func cutPoint(s string, limit int) int {
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	backslashes := 0
	for i := cut - 1; i >= 0 && s[i] == '\\'; i-- {
		backslashes++
	}
	if backslashes%2 == 1 && cut > 1 {
		cut--
	}
	return cut
}
