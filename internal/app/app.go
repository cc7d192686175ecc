package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"

	"go.uber.org/zap"
)

// PlanGenerator runs the generation pipeline for one request.
type PlanGenerator interface {
	Generate(ctx context.Context, req prompt.GenerationRequest) (*planner.Result, error)
}

// GuidelineSource supplies the optional coach guidelines block.
type GuidelineSource interface {
	ActiveText(ctx context.Context) (string, error)
}

// Options are the defaults applied to plan requests.
type Options struct {
	DefaultLanguage prompt.Language
	DefaultPlanDays int
	// DataDir is reported in system health snapshots.
	DataDir string
}

// App holds the application's dependencies.
type App struct {
	generator    PlanGenerator
	profiles     *profile.Repository
	plans        *planner.PlanRepository
	guidelines   GuidelineSource
	metricsStore *metrics.Store
	opts         Options
	log          *zap.Logger
	now          func() time.Time
}

// NewApp creates and initializes a new App instance. guidelines and
// metricsStore may be nil.
func NewApp(
	generator PlanGenerator,
	profiles *profile.Repository,
	plans *planner.PlanRepository,
	guidelines GuidelineSource,
	metricsStore *metrics.Store,
	opts Options,
	log *zap.Logger,
) *App {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = prompt.English
	}
	if opts.DefaultPlanDays <= 0 {
		opts.DefaultPlanDays = prompt.DefaultPlanDays
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		generator:    generator,
		profiles:     profiles,
		plans:        plans,
		guidelines:   guidelines,
		metricsStore: metricsStore,
		opts:         opts,
		log:          log,
		now:          time.Now,
	}
}

// PlanRequest asks for a new plan. Empty fields fall back to the subject's
// profile and then to the application defaults.
type PlanRequest struct {
	SubjectID string
	Kind      plan.Kind
	Language  prompt.Language
	Days      int
}

// GeneratedPlan is a validated, stored plan.
type GeneratedPlan struct {
	Record       *planner.PlanRecord
	Result       *planner.Result
	ShoppingList []string
}

// SaveSubject stores a subject's profile and assessment.
func (a *App) SaveSubject(ctx context.Context, s *profile.Subject) error {
	if s.Profile.Language != "" {
		if _, err := prompt.ParseLanguage(s.Profile.Language); err != nil {
			return err
		}
	}
	return a.profiles.SaveSubject(ctx, s)
}

// Subject loads a subject.
func (a *App) Subject(ctx context.Context, subjectID string) (*profile.Subject, error) {
	return a.profiles.GetSubject(ctx, subjectID)
}

// SubjectByTelegram loads the subject linked to a Telegram user.
func (a *App) SubjectByTelegram(ctx context.Context, telegramUserID int64) (*profile.Subject, error) {
	return a.profiles.GetByTelegramID(ctx, telegramUserID)
}

// LinkTelegram links a Telegram user to a subject.
func (a *App) LinkTelegram(ctx context.Context, subjectID string, telegramUserID int64) error {
	return a.profiles.LinkTelegram(ctx, subjectID, telegramUserID)
}

// AddCheckIn stores a progress check-in. The subject must exist.
func (a *App) AddCheckIn(ctx context.Context, c *profile.CheckIn) error {
	for name, score := range map[string]*int{
		"energyLevel":        c.EnergyLevel,
		"sleepQuality":       c.SleepQuality,
		"dietaryAdherence":   c.DietaryAdherence,
		"workoutPerformance": c.WorkoutPerformance,
	} {
		if score != nil && (*score < 1 || *score > 10) {
			return fmt.Errorf("%s must be between 1 and 10, got %d", name, *score)
		}
	}
	if _, err := a.profiles.GetSubject(ctx, c.SubjectID); err != nil {
		return err
	}
	return a.profiles.AddCheckIn(ctx, c)
}

// GeneratePlan builds the generation request from stored data, runs the
// pipeline and stores the validated plan, superseding any current plan of the
// same kind for the new period. Nothing is stored when generation fails.
func (a *App) GeneratePlan(ctx context.Context, r PlanRequest) (*GeneratedPlan, error) {
	subject, err := a.profiles.GetSubject(ctx, r.SubjectID)
	if err != nil {
		return nil, err
	}
	checkIn, err := a.profiles.LatestCheckIn(ctx, r.SubjectID)
	if err != nil {
		return nil, err
	}

	req := prompt.GenerationRequest{
		Kind:             r.Kind,
		Profile:          subject.Profile,
		Assessment:       subject.Assessment,
		CheckIn:          checkIn,
		Language:         a.language(r.Language, subject.Profile.Language),
		PlanDurationDays: r.Days,
	}
	if req.PlanDurationDays <= 0 {
		req.PlanDurationDays = a.opts.DefaultPlanDays
	}
	if a.guidelines != nil {
		text, err := a.guidelines.ActiveText(ctx)
		if err != nil {
			// The guidelines block is optional; a plan without it is still useful.
			a.log.Warn("failed to load coach guidelines", zap.Error(err))
		}
		req.CoachGuidelines = text
	}

	res, err := a.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	start := a.today()
	rec := &planner.PlanRecord{
		SubjectID:   r.SubjectID,
		Kind:        res.Kind,
		Language:    string(res.Language),
		PeriodStart: start,
		PeriodEnd:   start.AddDate(0, 0, res.Days-1),
		PlanData:    res.JSON,
		Usage:       res.Meta.Usage,
		Attempts:    res.Meta.Attempts,
	}
	if err := a.plans.Save(ctx, rec); err != nil {
		return nil, err
	}

	out := &GeneratedPlan{Record: rec, Result: res}
	if res.Meal != nil {
		out.ShoppingList = plan.ShoppingList(res.Meal)
	}
	a.log.Info("plan stored",
		zap.String("subject", r.SubjectID),
		zap.String("kind", string(res.Kind)),
		zap.String("plan_id", rec.ID),
	)
	return out, nil
}

// CurrentPlan returns the subject's plan of kind covering today.
func (a *App) CurrentPlan(ctx context.Context, subjectID string, kind plan.Kind) (*planner.PlanRecord, error) {
	return a.plans.Current(ctx, subjectID, kind, a.today())
}

// PlanHistory lists stored plans, newest first. An empty kind lists all.
func (a *App) PlanHistory(ctx context.Context, subjectID string, kind plan.Kind, limit int) ([]planner.PlanRecord, error) {
	return a.plans.History(ctx, subjectID, kind, limit)
}

// UsageReport summarizes recent token usage and the process health.
type UsageReport struct {
	Daily  []metrics.DailyUsage
	Health metrics.SysHealth
}

// Usage returns the usage of the last days.
func (a *App) Usage(ctx context.Context, days int) (*UsageReport, error) {
	if a.metricsStore == nil {
		return nil, errors.New("metrics store not configured")
	}
	daily, err := a.metricsStore.GetDailyUsage(ctx, days, metrics.FailureEvents...)
	if err != nil {
		return nil, err
	}
	return &UsageReport{Daily: daily, Health: metrics.GetSysHealth(a.opts.DataDir)}, nil
}

func (a *App) language(requested prompt.Language, stored string) prompt.Language {
	if requested != "" {
		return requested
	}
	if l, err := prompt.ParseLanguage(stored); err == nil && stored != "" {
		return l
	}
	return a.opts.DefaultLanguage
}

func (a *App) today() time.Time {
	y, m, d := a.now().UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
