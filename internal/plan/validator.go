package plan

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

const rootPath = "(root)"

// Issue is a single field-level validation failure.
type Issue struct {
	Path    string `json:"path"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s", i.Path, i.Message)
}

// Outcome is the result of validating a plan document: either a decoded
// document with no issues, or the full list of issues found.
type Outcome[T any] struct {
	Document *T
	Issues   []Issue
}

// Valid reports whether the document was accepted.
func (o Outcome[T]) Valid() bool {
	return o.Document != nil && len(o.Issues) == 0
}

// Validator re-validates provider output against the compiled plan schemas.
// It holds no mutable state and is safe for concurrent use.
type Validator struct {
	schemas map[Kind]*gojsonschema.Schema
}

// NewValidator compiles the embedded schemas.
func NewValidator() (*Validator, error) {
	v := &Validator{schemas: make(map[Kind]*gojsonschema.Schema)}
	for _, kind := range []Kind{KindMeal, KindWorkout} {
		s, err := SchemaFor(kind)
		if err != nil {
			return nil, err
		}
		compiled, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(s.JSON))
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s schema: %w", kind, err)
		}
		v.schemas[kind] = compiled
	}
	return v, nil
}

var defaultValidator = sync.OnceValues(NewValidator)

// DefaultValidator returns a process-wide validator built from the embedded
// schemas.
func DefaultValidator() *Validator {
	v, err := defaultValidator()
	if err != nil {
		// The schemas are embedded at build time; failing to compile them is
		// a programming error caught by the package tests.
		panic(err)
	}
	return v
}

// MealPlan validates raw JSON as a meal plan.
func (v *Validator) MealPlan(raw []byte) Outcome[MealPlan] {
	return validateAs[MealPlan](v, KindMeal, raw)
}

// WorkoutPlan validates raw JSON as a workout plan.
func (v *Validator) WorkoutPlan(raw []byte) Outcome[WorkoutPlan] {
	return validateAs[WorkoutPlan](v, KindWorkout, raw)
}

// MealPlanFromText cleans a raw provider string (possibly fenced) and
// validates it as a meal plan.
func (v *Validator) MealPlanFromText(s string) Outcome[MealPlan] {
	return v.MealPlan([]byte(CleanJSON(s)))
}

// WorkoutPlanFromText cleans a raw provider string (possibly fenced) and
// validates it as a workout plan.
func (v *Validator) WorkoutPlanFromText(s string) Outcome[WorkoutPlan] {
	return v.WorkoutPlan([]byte(CleanJSON(s)))
}

// Check returns every issue found in raw for the given kind without decoding
// it into a typed document.
func (v *Validator) Check(kind Kind, raw []byte) []Issue {
	schema, ok := v.schemas[kind]
	if !ok {
		return []Issue{{Path: rootPath, Rule: "kind", Message: fmt.Sprintf("unknown plan kind %q", kind)}}
	}

	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return []Issue{{Path: rootPath, Rule: "syntax", Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return []Issue{{Path: rootPath, Rule: "schema", Message: err.Error()}}
	}

	var issues []Issue
	for _, re := range result.Errors() {
		issues = append(issues, Issue{
			Path:    issuePath(re),
			Rule:    re.Type(),
			Message: re.Description(),
		})
	}

	if kind == KindWorkout {
		issues = append(issues, workoutRules(generic)...)
	}

	sort.SliceStable(issues, func(i, j int) bool {
		if issues[i].Path != issues[j].Path {
			return issues[i].Path < issues[j].Path
		}
		return issues[i].Rule < issues[j].Rule
	})
	return issues
}

func validateAs[T any](v *Validator, kind Kind, raw []byte) Outcome[T] {
	if issues := v.Check(kind, raw); len(issues) > 0 {
		return Outcome[T]{Issues: issues}
	}

	normalized, err := normalizeNumbers(raw)
	if err != nil {
		return Outcome[T]{Issues: []Issue{{Path: rootPath, Rule: "decode", Message: err.Error()}}}
	}
	var doc T
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return Outcome[T]{Issues: []Issue{{Path: rootPath, Rule: "decode", Message: err.Error()}}}
	}
	return Outcome[T]{Document: &doc}
}

// normalizeNumbers rewrites integral numbers such as 45.0 or 4.5e1 as plain
// integers. The schema's "integer" type accepts them, but encoding/json does
// not decode them into int fields.
func normalizeNumbers(raw []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return json.Marshal(integralNumbers(v))
}

func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integralNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integralNumbers(e)
		}
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return t
		}
		f, err := t.Float64()
		if err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return json.Number(strconv.FormatInt(int64(f), 10))
		}
	}
	return v
}

// issuePath turns a gojsonschema error location into a dotted field path,
// e.g. weeklyPlan.monday.meals.0.ingredients.
func issuePath(re gojsonschema.ResultError) string {
	p := strings.TrimPrefix(re.Context().String(), rootPath)
	p = strings.TrimPrefix(p, ".")

	switch re.Type() {
	case "required", "invalid_property_name":
		if prop, ok := re.Details()["property"].(string); ok && prop != "" {
			p = joinPath(p, prop)
		}
	}
	if p == "" {
		return rootPath
	}
	return p
}

func joinPath(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" && p != rootPath {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return rootPath
	}
	return strings.Join(out, ".")
}

// workoutRules enforces the constraints the JSON Schema cannot express:
// training days need a positive duration and at least one main exercise, and
// at least one safety tip must be non-blank. Rest days are exempt from the
// exercise rules.
func workoutRules(doc any) []Issue {
	root, ok := doc.(map[string]any)
	if !ok {
		return nil
	}

	var issues []Issue
	if weekly, ok := root["weeklyPlan"].(map[string]any); ok {
		for day, raw := range weekly {
			entry, ok := raw.(map[string]any)
			if !ok {
				continue
			}
			if rest, _ := entry["restDay"].(bool); rest {
				continue
			}
			if d, ok := entry["duration"].(float64); ok && d <= 0 {
				issues = append(issues, Issue{
					Path:    joinPath("weeklyPlan", day, "duration"),
					Rule:    "training_day_duration",
					Message: "Duration must be greater than 0 on a training day",
				})
			}
			missing := false
			switch ex := entry["exercises"].(type) {
			case nil:
				missing = true
			case []any:
				missing = len(ex) == 0
			}
			if missing {
				issues = append(issues, Issue{
					Path:    joinPath("weeklyPlan", day, "exercises"),
					Rule:    "training_day_exercises",
					Message: "A training day needs at least one main exercise",
				})
			}
		}
	}

	if tips, ok := root["safetyTips"].([]any); ok && len(tips) > 0 {
		nonBlank := false
		for _, t := range tips {
			if s, ok := t.(string); ok && strings.TrimSpace(s) != "" {
				nonBlank = true
				break
			}
		}
		if !nonBlank {
			issues = append(issues, Issue{
				Path:    "safetyTips",
				Rule:    "non_blank",
				Message: "At least one safety tip must contain text",
			})
		}
	}
	return issues
}
