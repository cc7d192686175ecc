package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/auth"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/httpapi"
	"ai-fitness-coach/internal/logger"
	"ai-fitness-coach/internal/telegram"
	"ai-fitness-coach/internal/telemetry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.NewFromEnv()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	issuer, err := auth.NewIssuer(cfg.JWTSecret, cfg.JWTAudience, cfg.JWTTTL)
	if err != nil {
		return err
	}

	// The Telegram client exists before the runtime so admin alerts can be
	// part of the telemetry fan-out.
	var extraSinks []telemetry.Sink
	var tg *telegramParts
	if cfg.TelegramBotToken != "" {
		api, err := telegram.NewAPI(cfg.TelegramBotToken)
		if err != nil {
			return err
		}
		tg = &telegramParts{api: api}
		extraSinks = append(extraSinks, telegram.NewAlertSink(api, cfg.AdminTelegramID))
	}

	rt, err := app.NewRuntime(ctx, cfg, log, extraSinks...)
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.Handle("/", httpapi.NewServer(rt.App, issuer, rt.Registry, log).Handler())
	if tg != nil {
		bot, err := telegram.NewBot(tg.api, cfg, rt.App, log)
		if err != nil {
			rt.Close(context.Background())
			return err
		}
		tg.bot = bot
		mux.Handle("/webhook", bot.Handler())
	} else {
		log.Info("TELEGRAM_BOT_TOKEN not set, telegram bot disabled")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("coach server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		shutdownErr := srv.Shutdown(shutdownCtx)

		// Webhook updates are processed after the response is sent, so the
		// bot is drained separately before the runtime goes away.
		if tg != nil && tg.bot != nil {
			tg.bot.Wait()
		}
		closeCtx, cancelClose := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelClose()
		closeErr := rt.Close(closeCtx)

		if shutdownErr != nil {
			return errors.Join(fmt.Errorf("server forced to shutdown: %w", shutdownErr), closeErr)
		}
		return closeErr
	})

	err = g.Wait()
	log.Info("server exiting")
	return err
}

type telegramParts struct {
	api *tgbotapi.BotAPI
	bot *telegram.Bot
}
