package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/auth"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/database"
	"ai-fitness-coach/internal/knowledge"
	"ai-fitness-coach/internal/logger"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/prompt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ai-fitness-coach",
		Short:         "Operator tools for the AI fitness coach",
		Long:          "Generates meal and workout plans, imports coach guidelines and manages access tokens and metrics.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		newGenerateCmd(),
		newImportGuidelinesCmd(),
		newIssueTokenCmd(),
		newMetricsCleanupCmd(),
		newMigrateCmd(),
	)
	return root
}

// setup loads the configuration and builds the logger.
func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return cfg, log, nil
}

// withRuntime runs fn against a wired runtime and releases it afterwards.
func withRuntime(ctx context.Context, fn func(rt *app.Runtime, log *zap.Logger) error) error {
	cfg, log, err := setup()
	if err != nil {
		return err
	}
	defer log.Sync()

	rt, err := app.NewRuntime(ctx, cfg, log)
	if err != nil {
		return err
	}
	runErr := fn(rt, log)

	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := rt.Close(closeCtx); err != nil {
		log.Warn("shutdown incomplete", zap.Error(err))
	}
	return runErr
}

func newGenerateCmd() *cobra.Command {
	var (
		subject string
		kind    string
		lang    string
		days    int
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate and store a plan for a subject",
		RunE: func(cmd *cobra.Command, _ []string) error {
			k, err := plan.ParseKind(kind)
			if err != nil {
				return err
			}
			var l prompt.Language
			if lang != "" {
				if l, err = prompt.ParseLanguage(lang); err != nil {
					return err
				}
			}

			return withRuntime(cmd.Context(), func(rt *app.Runtime, _ *zap.Logger) error {
				gen, err := rt.App.GeneratePlan(cmd.Context(), app.PlanRequest{SubjectID: subject, Kind: k, Language: l, Days: days})
				if err != nil {
					return fmt.Errorf("plan generation failed: %w", err)
				}
				return printPlan(cmd, gen)
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject id")
	cmd.Flags().StringVar(&kind, "kind", "", "Plan kind: meal or workout")
	cmd.Flags().StringVar(&lang, "lang", "", "Output language: en or ar (default: the subject's language)")
	cmd.Flags().IntVar(&days, "days", 0, "Plan length in days (default from DEFAULT_PLAN_DAYS)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("kind")
	return cmd
}

func printPlan(cmd *cobra.Command, gen *app.GeneratedPlan) error {
	rec := gen.Record
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Stored %s plan %s (%s to %s, %d attempt(s))\n", rec.Kind, rec.ID,
		rec.PeriodStart.Format(database.DateLayout), rec.PeriodEnd.Format(database.DateLayout), rec.Attempts)

	var doc any
	if err := json.Unmarshal(rec.PlanData, &doc); err != nil {
		return fmt.Errorf("stored plan is not JSON: %w", err)
	}
	pretty, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(pretty))

	if len(gen.ShoppingList) > 0 {
		fmt.Fprintln(out, "\nShopping list:")
		for _, item := range gen.ShoppingList {
			fmt.Fprintf(out, "  - %s\n", item)
		}
	}
	return nil
}

func newImportGuidelinesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-guidelines <url>...",
		Short: "Fetch coach guideline pages and store their text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd.Context(), func(rt *app.Runtime, log *zap.Logger) error {
				n, err := app.ImportGuidelines(cmd.Context(), knowledge.NewImporter(nil), rt.Guidelines, args, log)
				fmt.Fprintf(cmd.OutOrStdout(), "Imported %d of %d guideline page(s).\n", n, len(args))
				return err
			})
		},
	}
}

func newIssueTokenCmd() *cobra.Command {
	var (
		subject string
		role    string
	)
	cmd := &cobra.Command{
		Use:   "issue-token",
		Short: "Issue an API access token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := auth.Role(role)
			if r == auth.RoleClient && subject == "" {
				return fmt.Errorf("--subject is required for client tokens")
			}
			cfg, _, err := setup()
			if err != nil {
				return err
			}
			issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTTTL)
			if err != nil {
				return err
			}
			token, err := issuer.Issue(subject, r)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "Subject id the token is bound to")
	cmd.Flags().StringVar(&role, "role", string(auth.RoleClient), "Role: client, coach or admin")
	return cmd
}

func newMetricsCleanupCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "metrics-cleanup",
		Short: "Remove old metric records",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if days < 1 {
				return fmt.Errorf("--days must be at least 1, got %d", days)
			}
			return withRuntime(cmd.Context(), func(rt *app.Runtime, _ *zap.Logger) error {
				affected, err := rt.Metrics.Cleanup(cmd.Context(), days)
				if err != nil {
					return fmt.Errorf("cleanup failed: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Successfully removed %d old metric records.\n", affected)
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 30, "Keep records for the last N days")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := setup()
			if err != nil {
				return err
			}
			db, err := database.NewDB(cfg.DatabasePath)
			if err != nil {
				return err
			}
			log.Info("database is up to date", zap.String("path", cfg.DatabasePath))
			return db.Close()
		},
	}
}
