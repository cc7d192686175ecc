package app

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/knowledge"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"
	"ai-fitness-coach/internal/shared"
	"ai-fitness-coach/internal/telemetry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	requests []prompt.GenerationRequest
	err      error
}

func (s *stubGenerator) Generate(_ context.Context, req prompt.GenerationRequest) (*planner.Result, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	res := &planner.Result{
		Kind:     req.Kind,
		Language: req.Language,
		Days:     req.Days(),
		Meta: shared.AgentMeta{
			AgentName: "MealPlanner",
			Usage:     shared.TokenUsage{PromptTokens: 10, CompletionTokens: 90, TotalTokens: 100, Model: "stub"},
			Attempts:  1,
		},
	}
	var doc any
	if req.Kind == plan.KindMeal {
		res.Meal = &plan.MealPlan{
			WeeklyPlan: map[string]plan.MealDay{
				"monday": {Meals: []plan.Meal{{Name: "Oats", Ingredients: []string{"oats", "milk"}}}},
				"friday": {Meals: []plan.Meal{{Name: "Porridge", Ingredients: []string{"Oats", "honey"}}}},
			},
		}
		doc = res.Meal
	} else {
		res.Workout = &plan.WorkoutPlan{SafetyTips: []string{"Warm up"}}
		doc = res.Workout
	}
	res.JSON, _ = json.Marshal(doc)
	return res, nil
}

type staticGuidelines string

func (g staticGuidelines) ActiveText(context.Context) (string, error) { return string(g), nil }

type testEnv struct {
	app      *App
	gen      *stubGenerator
	profiles *profile.Repository
	plans    *planner.PlanRepository
	store    *metrics.Store
}

func newTestEnv(t *testing.T, guidelines GuidelineSource) *testEnv {
	t.Helper()
	dir := t.TempDir()
	db, err := database.NewDB(filepath.Join(dir, "coach.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		gen:      &stubGenerator{},
		profiles: profile.NewRepository(db.SQL),
		plans:    planner.NewPlanRepository(db.SQL),
		store:    metrics.NewStore(db.SQL),
	}
	env.app = NewApp(env.gen, env.profiles, env.plans, guidelines, env.store,
		Options{DefaultLanguage: prompt.English, DefaultPlanDays: 7, DataDir: dir}, nil)
	env.app.now = func() time.Time { return time.Date(2026, 3, 4, 15, 30, 0, 0, time.UTC) }
	return env
}

func saveTestSubject(t *testing.T, env *testEnv, language string) {
	t.Helper()
	require.NoError(t, env.app.SaveSubject(context.Background(), &profile.Subject{
		Profile: profile.Profile{
			SubjectID: "subj-1", Name: "Lina", Age: 28, WeightKg: 60, HeightCm: 165,
			Goals: []string{"build muscle"}, ExperienceLevel: "beginner", Language: language,
		},
		Assessment: profile.Assessment{Allergies: []string{"lactose"}},
	}))
}

func TestGeneratePlan_StoresAndSupersedes(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, staticGuidelines("Prefer whole foods."))
	saveTestSubject(t, env, "ar")

	energy := 7
	require.NoError(t, env.app.AddCheckIn(ctx, &profile.CheckIn{SubjectID: "subj-1", EnergyLevel: &energy}))

	first, err := env.app.GeneratePlan(ctx, PlanRequest{SubjectID: "subj-1", Kind: plan.KindMeal})
	require.NoError(t, err)

	require.Len(t, env.gen.requests, 1)
	req := env.gen.requests[0]
	assert.Equal(t, prompt.Arabic, req.Language)
	assert.Equal(t, 7, req.PlanDurationDays)
	assert.Equal(t, "Prefer whole foods.", req.CoachGuidelines)
	require.NotNil(t, req.CheckIn)
	assert.Equal(t, 7, *req.CheckIn.EnergyLevel)
	assert.Equal(t, []string{"lactose"}, req.Assessment.Allergies)

	rec := first.Record
	assert.Equal(t, "2026-03-04", rec.PeriodStart.Format(database.DateLayout))
	assert.Equal(t, "2026-03-10", rec.PeriodEnd.Format(database.DateLayout))
	assert.Equal(t, "ar", rec.Language)
	assert.Equal(t, []string{"oats", "milk", "honey"}, first.ShoppingList)

	current, err := env.app.CurrentPlan(ctx, "subj-1", plan.KindMeal)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, current.ID)

	second, err := env.app.GeneratePlan(ctx, PlanRequest{SubjectID: "subj-1", Kind: plan.KindMeal, Language: prompt.English, Days: 14})
	require.NoError(t, err)
	assert.Equal(t, prompt.English, env.gen.requests[1].Language)
	assert.Equal(t, "2026-03-17", second.Record.PeriodEnd.Format(database.DateLayout))

	history, err := env.app.PlanHistory(ctx, "subj-1", plan.KindMeal, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	for _, h := range history {
		assert.Equal(t, h.ID == second.Record.ID, h.Current(), h.ID)
	}
}

func TestGeneratePlan_FailureStoresNothing(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	saveTestSubject(t, env, "")
	env.gen.err = &planner.ValidationFailedError{Kind: plan.KindWorkout, Issues: []plan.Issue{{Path: "safetyTips", Message: "required"}}}

	_, err := env.app.GeneratePlan(ctx, PlanRequest{SubjectID: "subj-1", Kind: plan.KindWorkout})
	var vErr *planner.ValidationFailedError
	require.ErrorAs(t, err, &vErr)

	history, err := env.app.PlanHistory(ctx, "subj-1", "", 10)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = env.app.CurrentPlan(ctx, "subj-1", plan.KindWorkout)
	assert.ErrorIs(t, err, planner.ErrPlanNotFound)
}

func TestGeneratePlan_Defaults(t *testing.T) {
	env := newTestEnv(t, nil)
	saveTestSubject(t, env, "")

	res, err := env.app.GeneratePlan(context.Background(), PlanRequest{SubjectID: "subj-1", Kind: plan.KindWorkout})
	require.NoError(t, err)
	assert.Nil(t, res.ShoppingList)

	req := env.gen.requests[0]
	assert.Equal(t, prompt.English, req.Language)
	assert.Empty(t, req.CoachGuidelines)
	assert.Nil(t, req.CheckIn)

	_, err = env.app.GeneratePlan(context.Background(), PlanRequest{SubjectID: "nobody", Kind: plan.KindMeal})
	assert.ErrorIs(t, err, profile.ErrSubjectNotFound)
}

func TestSaveSubjectAndCheckInValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)

	err := env.app.SaveSubject(ctx, &profile.Subject{Profile: profile.Profile{SubjectID: "s", Language: "fr"}})
	assert.Error(t, err)

	saveTestSubject(t, env, "en")
	bad := 11
	assert.Error(t, env.app.AddCheckIn(ctx, &profile.CheckIn{SubjectID: "subj-1", SleepQuality: &bad}))
	assert.ErrorIs(t, env.app.AddCheckIn(ctx, &profile.CheckIn{SubjectID: "nobody"}), profile.ErrSubjectNotFound)

	require.NoError(t, env.app.LinkTelegram(ctx, "subj-1", 99))
	s, err := env.app.SubjectByTelegram(ctx, 99)
	require.NoError(t, err)
	assert.Equal(t, "Lina", s.Profile.Name)
}

func TestUsage(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t, nil)
	sink := metrics.NewSink(env.store)
	require.NoError(t, sink.RecordEvent(ctx, telemetry.Event{
		Name:  telemetry.EventGenerationSucceeded,
		Agent: "MealPlanner",
		Usage: &shared.TokenUsage{PromptTokens: 40, CompletionTokens: 60},
		At:    time.Now().UTC(),
	}))

	report, err := env.app.Usage(ctx, 7)
	require.NoError(t, err)
	require.Len(t, report.Daily, 1)
	assert.Equal(t, 40, report.Daily[0].TotalPrompt)
	assert.Positive(t, report.Health.Goroutines)
}

type stubImporter map[string]*knowledge.Guideline

func (s stubImporter) Import(_ context.Context, url string) (*knowledge.Guideline, error) {
	g, ok := s[url]
	if !ok {
		return nil, errors.New("status 404")
	}
	return g, nil
}

func TestImportGuidelines(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "coach.db"))
	require.NoError(t, err)
	defer db.Close()
	repo := knowledge.NewRepository(db.SQL)

	imp := stubImporter{
		"https://coach.example/a": {SourceURL: "https://coach.example/a", Title: "Recovery", Body: "Sleep well.", Active: true},
	}
	n, err := ImportGuidelines(ctx, imp, repo, []string{"https://coach.example/a", "https://coach.example/missing"}, nil)
	assert.Equal(t, 1, n)
	assert.ErrorContains(t, err, "https://coach.example/missing")

	text, err := repo.ActiveText(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Recovery\nSleep well.", text)
}
