// Package plan defines the weekly meal and workout plan documents produced by
// the generation pipeline and validates untrusted provider output against
// their schemas.
package plan

import "fmt"

// Kind identifies a plan document type.
type Kind string

const (
	KindMeal    Kind = "meal"
	KindWorkout Kind = "workout"
)

// ParseKind maps user input onto a Kind.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindMeal, KindWorkout:
		return Kind(s), nil
	}
	return "", fmt.Errorf("unknown plan kind %q", s)
}

// Weekdays lists the day keys a weekly plan may use, in calendar order.
var Weekdays = []string{"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday"}

// MealType is the slot a meal occupies in a day.
type MealType string

const (
	MealBreakfast MealType = "breakfast"
	MealLunch     MealType = "lunch"
	MealDinner    MealType = "dinner"
	MealSnack     MealType = "snack"
)

// Macros is a calorie and macronutrient total.
type Macros struct {
	Calories float64 `json:"calories"`
	Protein  float64 `json:"protein"`
	Carbs    float64 `json:"carbs"`
	Fat      float64 `json:"fat"`
}

type Meal struct {
	Name         string   `json:"name"`
	Type         MealType `json:"type"`
	Time         string   `json:"time"`
	Calories     float64  `json:"calories"`
	Protein      float64  `json:"protein"`
	Carbs        float64  `json:"carbs"`
	Fat          float64  `json:"fat"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Alternatives []string `json:"alternatives,omitempty"`
}

type MealDay struct {
	Meals       []Meal `json:"meals"`
	DailyTotals Macros `json:"dailyTotals"`
}

// MealPlan is a weekly meal plan keyed by lowercase weekday name.
type MealPlan struct {
	WeeklyPlan   map[string]MealDay `json:"weeklyPlan"`
	WeeklyTotals Macros             `json:"weeklyTotals"`
	Notes        string             `json:"notes"`
}

// TimedExercise is a warmup or cooldown movement measured in seconds.
type TimedExercise struct {
	Name         string   `json:"name"`
	Duration     int      `json:"duration"`
	Instructions []string `json:"instructions"`
}

// Exercise is a main-block movement.
type Exercise struct {
	Name          string   `json:"name"`
	Sets          int      `json:"sets"`
	Reps          string   `json:"reps"`
	Rest          int      `json:"rest"`
	TargetMuscles []string `json:"targetMuscles"`
	Notes         string   `json:"notes,omitempty"`
	Equipment     []string `json:"equipment,omitempty"`
}

type WorkoutDay struct {
	WorkoutName   string          `json:"workoutName"`
	Duration      int             `json:"duration"`
	TargetMuscles []string        `json:"targetMuscles"`
	Warmup        []TimedExercise `json:"warmup,omitempty"`
	Exercises     []Exercise      `json:"exercises,omitempty"`
	Cooldown      []TimedExercise `json:"cooldown,omitempty"`
	RestDay       bool            `json:"restDay,omitempty"`
}

// WorkoutPlan is a weekly training plan keyed by lowercase weekday name.
type WorkoutPlan struct {
	WeeklyPlan       map[string]WorkoutDay `json:"weeklyPlan"`
	ProgressionNotes string                `json:"progressionNotes"`
	SafetyTips       []string              `json:"safetyTips"`
}

// OrderedDays returns the keys of a weekly map in calendar order.
func OrderedDays[T any](weekly map[string]T) []string {
	days := make([]string, 0, len(weekly))
	for _, d := range Weekdays {
		if _, ok := weekly[d]; ok {
			days = append(days, d)
		}
	}
	return days
}
