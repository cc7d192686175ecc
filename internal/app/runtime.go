package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/knowledge"
	"ai-fitness-coach/internal/llm"
	"ai-fitness-coach/internal/metrics"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"
	"ai-fitness-coach/internal/retry"
	"ai-fitness-coach/internal/telemetry"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// Runtime is a fully wired App together with the resources it owns.
type Runtime struct {
	App        *App
	DB         *database.DB
	Registry   *prometheus.Registry
	Guidelines *knowledge.Repository
	Metrics    *metrics.Store

	telemetry *telemetry.Async
	provider  llm.StructuredGenerator
	log       *zap.Logger
}

// NewRuntime opens the database, selects the configured provider and builds
// the generation pipeline. Extra sinks (e.g. admin alerts) receive the same
// events as the built-in log, Prometheus and metrics-store sinks.
func NewRuntime(ctx context.Context, cfg *config.Config, log *zap.Logger, extra ...telemetry.Sink) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := database.NewDB(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	provider, err := newProvider(ctx, cfg)
	if err != nil {
		db.Close()
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	promSink, err := telemetry.NewPrometheusSink(reg)
	if err != nil {
		db.Close()
		return nil, err
	}

	store := metrics.NewStore(db.SQL)
	sinks := telemetry.Multi{telemetry.NewLogSink(log), promSink, metrics.NewSink(store)}
	sinks = append(sinks, extra...)
	async := telemetry.NewAsync(sinks, log, 0)

	params := planner.Params{
		Temperature:     cfg.Temperature,
		MaxOutputTokens: cfg.MaxOutputTokens,
		AttemptTimeout:  cfg.AttemptTimeout,
		Retry: retry.Policy{
			MaxAttempts: cfg.MaxAttempts,
			BaseDelay:   cfg.RetryBaseDelay,
			Multiplier:  2,
			MaxDelay:    cfg.RetryMaxDelay,
			Jitter:      0.2,
		},
	}
	gen := planner.NewGenerator(provider, params, async)
	p := planner.NewPlanner(gen, nil, async, log.Named("planner"))

	lang, err := prompt.ParseLanguage(cfg.DefaultLanguage)
	if err != nil {
		log.Warn("unsupported default language, using English", zap.String("language", cfg.DefaultLanguage))
		lang = prompt.English
	}

	guidelines := knowledge.NewRepository(db.SQL)
	application := NewApp(
		p,
		profile.NewRepository(db.SQL),
		planner.NewPlanRepository(db.SQL),
		guidelines,
		store,
		Options{DefaultLanguage: lang, DefaultPlanDays: cfg.DefaultPlanDays, DataDir: filepath.Dir(cfg.DatabasePath)},
		log.Named("app"),
	)

	return &Runtime{
		App:        application,
		DB:         db,
		Registry:   reg,
		Guidelines: guidelines,
		Metrics:    store,
		telemetry:  async,
		provider:   provider,
		log:        log,
	}, nil
}

func newProvider(ctx context.Context, cfg *config.Config) (llm.StructuredGenerator, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		return llm.NewGeminiClient(ctx, cfg)
	case config.ProviderGroq:
		return llm.NewGroqClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
	}
}

// Close drains pending telemetry, then releases the provider and the
// database. ctx bounds the telemetry drain.
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	if err := r.telemetry.Wait(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry drain: %w", err))
	}
	if c, ok := r.provider.(llm.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := r.DB.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
