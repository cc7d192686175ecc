// Package prompt renders the system and user instructions a plan is generated
// from. Building a prompt never fails: missing values render as an explicit
// "None" placeholder.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strconv"
	"strings"
	"text/template"

	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/profile"
)

// DefaultPlanDays is used when a request does not name a plan length.
const DefaultPlanDays = 7

const none = "None"

//go:embed templates/*.md
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.md"))

// GenerationRequest is everything needed to build a prompt for one plan. It is
// built per call and discarded afterwards.
type GenerationRequest struct {
	Kind             plan.Kind
	Profile          profile.Profile
	Assessment       profile.Assessment
	CheckIn          *profile.CheckIn
	Language         Language
	PlanDurationDays int
	// CoachGuidelines is optional free text appended as its own block.
	CoachGuidelines string
}

// Days returns the plan length, applying the default.
func (r GenerationRequest) Days() int {
	if r.PlanDurationDays <= 0 {
		return DefaultPlanDays
	}
	return r.PlanDurationDays
}

// Prompt is a rendered system and user instruction pair.
type Prompt struct {
	System string
	User   string
}

type kindRules struct {
	Role  string
	Label string
	Rules []string
}

var kinds = map[plan.Kind]kindRules{
	plan.KindMeal: {
		Role:  "an experienced sports nutritionist",
		Label: "meal plan",
		Rules: []string{
			"Every day has at least one meal. Each meal has a type (breakfast, lunch, dinner or snack), a time such as 08:00, calories above zero and protein, carbs and fat in grams, never negative.",
			"List every ingredient with its quantity and give at least one instruction step per meal. Add alternatives only when they are useful.",
			"dailyTotals sums the meals of the day and weeklyTotals sums the whole plan.",
			"Respect every allergy and dietary restriction without exception.",
			"Use notes for short guidance on hydration, meal prep or timing.",
		},
	},
	plan.KindWorkout: {
		Role:  "an experienced strength and conditioning coach",
		Label: "workout plan",
		Rules: []string{
			"Training days have a workoutName, a duration in minutes above zero, the targetMuscles of the session, a warmup, at least one main exercise and a cooldown.",
			"Warmup and cooldown movements give a duration in seconds above zero and at least one instruction.",
			"Main exercises give sets as a whole number above zero, reps as text such as \"10-12\" or \"30 seconds\", rest in seconds and at least one target muscle.",
			"Mark recovery days with restDay true, duration 0 and no exercises.",
			"Never program movements that load a listed injury or medical condition.",
			"Describe weekly progression in progressionNotes and give at least one safety tip.",
		},
	},
}

type systemView struct {
	Role                string
	KindLabel           string
	Days                int
	DayKeys             string
	Rules               []string
	LanguageName        string
	LanguageInstruction string
}

type checkInView struct {
	Date           string
	Weight         string
	EnergyLevel    string
	SleepQuality   string
	AdherenceLabel string
	Adherence      string
	NewInjuries    string
	Notes          string
}

type userView struct {
	IsMeal    bool
	KindLabel string
	Days      int

	Name       string
	Age        string
	Goals      string
	Weight     string
	Height     string
	Experience string

	FoodPreferences     string
	Allergies           string
	DietaryRestrictions string

	ScheduleAvailability string
	MedicalConditions    string
	Injuries             string
	ExerciseHistory      string

	CheckIn    *checkInView
	Guidelines string
}

// Build renders the prompt pair for req. It performs no I/O.
func Build(req GenerationRequest) Prompt {
	kr, ok := kinds[req.Kind]
	if !ok {
		kr = kinds[plan.KindMeal]
		req.Kind = plan.KindMeal
	}
	lang := rulesFor(req.Language)
	days := req.Days()

	sys := systemView{
		Role:                kr.Role,
		KindLabel:           kr.Label,
		Days:                days,
		DayKeys:             strings.Join(plan.Weekdays, ", "),
		Rules:               kr.Rules,
		LanguageName:        lang.Name,
		LanguageInstruction: lang.Instruction,
	}

	p, a := req.Profile, req.Assessment
	user := userView{
		IsMeal:    req.Kind == plan.KindMeal,
		KindLabel: kr.Label,
		Days:      days,

		Name:       text(p.Name),
		Age:        positiveInt(p.Age, ""),
		Goals:      list(p.Goals),
		Weight:     measure(p.WeightKg, "kg"),
		Height:     measure(p.HeightCm, "cm"),
		Experience: text(p.ExperienceLevel),

		FoodPreferences:     list(a.FoodPreferences),
		Allergies:           list(a.Allergies),
		DietaryRestrictions: list(a.DietaryRestrictions),

		ScheduleAvailability: text(a.ScheduleAvailability),
		MedicalConditions:    list(a.MedicalConditions),
		Injuries:             list(a.Injuries),
		ExerciseHistory:      text(a.ExerciseHistory),

		Guidelines: strings.TrimSpace(req.CoachGuidelines),
	}
	if c := req.CheckIn; c != nil {
		ci := &checkInView{
			Date:         none,
			Weight:       optionalMeasure(c.WeightKg, "kg"),
			EnergyLevel:  score(c.EnergyLevel),
			SleepQuality: score(c.SleepQuality),
			NewInjuries:  list(c.NewInjuries),
			Notes:        text(c.Notes),
		}
		if !c.SubmittedAt.IsZero() {
			ci.Date = c.SubmittedAt.UTC().Format("2006-01-02")
		}
		if user.IsMeal {
			ci.AdherenceLabel, ci.Adherence = "Dietary adherence", score(c.DietaryAdherence)
		} else {
			ci.AdherenceLabel, ci.Adherence = "Workout performance", score(c.WorkoutPerformance)
		}
		user.CheckIn = ci
	}

	return Prompt{
		System: render("system_prompt.md", sys),
		User:   render("user_prompt.md", user),
	}
}

// render executes a parsed template over a view made only of strings, ints
// and slices, so execution cannot fail short of a template bug.
func render(name string, data any) string {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		panic(fmt.Sprintf("prompt: render %s: %v", name, err))
	}
	return strings.TrimSpace(buf.String())
}

func text(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return none
	}
	return s
}

func list(items []string) string {
	var kept []string
	for _, it := range items {
		if it = strings.TrimSpace(it); it != "" {
			kept = append(kept, it)
		}
	}
	if len(kept) == 0 {
		return none
	}
	return strings.Join(kept, ", ")
}

func positiveInt(n int, unit string) string {
	if n <= 0 {
		return none
	}
	return strings.TrimSpace(strconv.Itoa(n) + " " + unit)
}

func measure(v float64, unit string) string {
	if v <= 0 {
		return none
	}
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + unit
}

func optionalMeasure(v *float64, unit string) string {
	if v == nil {
		return none
	}
	return measure(*v, unit)
}

func score(v *int) string {
	if v == nil {
		return none
	}
	return fmt.Sprintf("%d/10", *v)
}
