package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"ai-fitness-coach/internal/app"
	"ai-fitness-coach/internal/config"
	"ai-fitness-coach/internal/plan"
	"ai-fitness-coach/internal/planner"
	"ai-fitness-coach/internal/profile"
	"ai-fitness-coach/internal/prompt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// requestTimeout bounds the handling of one message, plan generation included.
const requestTimeout = 3 * time.Minute

// Sender is the part of the Telegram API the bot uses.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Service is the application surface the bot serves.
type Service interface {
	SubjectByTelegram(ctx context.Context, telegramUserID int64) (*profile.Subject, error)
	LinkTelegram(ctx context.Context, subjectID string, telegramUserID int64) error
	GeneratePlan(ctx context.Context, r app.PlanRequest) (*app.GeneratedPlan, error)
	CurrentPlan(ctx context.Context, subjectID string, kind plan.Kind) (*planner.PlanRecord, error)
	Usage(ctx context.Context, days int) (*app.UsageReport, error)
}

// Options restrict who may talk to the bot.
type Options struct {
	// AllowedUserIDs limits the bot to these users. Empty allows everyone;
	// plan commands still need a linked subject.
	AllowedUserIDs []int64
	AdminID        int64
}

// Bot wraps the Telegram API and the coaching service.
type Bot struct {
	api  Sender
	svc  Service
	opts Options
	log  *zap.Logger
	wg   sync.WaitGroup
}

// New creates a Bot around an existing API client.
func New(api Sender, svc Service, opts Options, log *zap.Logger) *Bot {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bot{api: api, svc: svc, opts: opts, log: log.Named("telegram")}
}

// NewAPI authorizes the bot token with Telegram.
func NewAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to init telegram api: %w", err)
	}
	return api, nil
}

// NewBot points the webhook at cfg.TelegramWebhookURL and returns a Bot
// serving svc.
func NewBot(api *tgbotapi.BotAPI, cfg *config.Config, svc Service, log *zap.Logger) (*Bot, error) {
	if log == nil {
		log = zap.NewNop()
	}
	log.Info("telegram authorized", zap.String("account", api.Self.UserName))

	wh, err := tgbotapi.NewWebhook(cfg.TelegramWebhookURL)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook url %s: %w", cfg.TelegramWebhookURL, err)
	}
	resp, err := api.Request(wh)
	if err != nil {
		return nil, fmt.Errorf("failed to set webhook to %s: %w", cfg.TelegramWebhookURL, err)
	}
	log.Info("telegram webhook set", zap.String("description", resp.Description))

	return New(api, svc, Options{AllowedUserIDs: cfg.TelegramAllowedUserIDs, AdminID: cfg.AdminTelegramID}, log), nil
}

// Handler returns the webhook handler. Updates are acknowledged at once and
// processed in the background.
func (b *Bot) Handler() http.Handler {
	return http.HandlerFunc(b.handleWebhook)
}

// Wait blocks until in-flight messages are processed.
func (b *Bot) Wait() {
	b.wg.Wait()
}

func (b *Bot) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var update tgbotapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		b.log.Warn("error parsing update", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusOK)

	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return
	}
	if !b.allowed(msg.From.ID) {
		b.log.Warn("unauthorized access attempt", zap.Int64("user_id", msg.From.ID), zap.String("username", msg.From.UserName))
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()
		b.processMessage(ctx, msg)
	}()
}

func (b *Bot) allowed(userID int64) bool {
	if len(b.opts.AllowedUserIDs) == 0 {
		return true
	}
	return slices.Contains(b.opts.AllowedUserIDs, userID) || userID == b.opts.AdminID
}

func (b *Bot) processMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, helpText)
		return
	}

	args := strings.Fields(msg.CommandArguments())
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, args)
	case "meal":
		b.handleGenerate(ctx, msg, plan.KindMeal, args)
	case "workout":
		b.handleGenerate(ctx, msg, plan.KindWorkout, args)
	case "plan":
		b.handleCurrentPlan(ctx, msg, args)
	case "metrics":
		b.handleMetricsRequest(ctx, msg)
	default:
		b.reply(msg.Chat.ID, helpText)
	}
}

const helpText = "🏋️ *AI Fitness Coach*\n\n" +
	"/meal - generate a new meal plan (add `ar` for Arabic)\n" +
	"/workout - generate a new workout plan (add `ar` for Arabic)\n" +
	"/plan meal|workout - show your current plan"

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) == 0 {
		b.reply(msg.Chat.ID, helpText+"\n\nAsk your coach for your client code and send `/start <code>` to link this chat.")
		return
	}
	err := b.svc.LinkTelegram(ctx, args[0], msg.From.ID)
	switch {
	case errors.Is(err, profile.ErrSubjectNotFound):
		b.reply(msg.Chat.ID, "❌ Unknown client code. Please check it with your coach.")
	case err != nil:
		b.log.Error("failed to link telegram user", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Something went wrong. Please try again later.")
	default:
		b.reply(msg.Chat.ID, "✅ Your chat is linked.\n\n"+helpText)
	}
}

func (b *Bot) subject(ctx context.Context, msg *tgbotapi.Message) (*profile.Subject, bool) {
	s, err := b.svc.SubjectByTelegram(ctx, msg.From.ID)
	if err == nil {
		return s, true
	}
	if errors.Is(err, profile.ErrSubjectNotFound) {
		b.reply(msg.Chat.ID, "This chat is not linked yet. Send `/start <code>` with the code from your coach.")
	} else {
		b.log.Error("failed to load subject", zap.Int64("user_id", msg.From.ID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Something went wrong. Please try again later.")
	}
	return nil, false
}

func (b *Bot) handleGenerate(ctx context.Context, msg *tgbotapi.Message, kind plan.Kind, args []string) {
	s, ok := b.subject(ctx, msg)
	if !ok {
		return
	}

	var lang prompt.Language
	if len(args) > 0 {
		l, err := prompt.ParseLanguage(args[0])
		if err != nil {
			b.reply(msg.Chat.ID, "Supported languages: `en`, `ar`.")
			return
		}
		lang = l
	}

	status := "🧠 *Building your " + string(kind) + " plan...*\n(This can take a minute)"
	sent, err := b.send(tgbotapi.NewMessage(msg.Chat.ID, status))
	if err != nil {
		return
	}

	b.log.Info("generating plan", zap.String("subject", s.Profile.SubjectID), zap.String("kind", string(kind)))
	gen, err := b.svc.GeneratePlan(ctx, app.PlanRequest{SubjectID: s.Profile.SubjectID, Kind: kind, Language: lang})
	if err != nil {
		// Details are in the logs and telemetry; the user only sees the generic message.
		b.log.Warn("plan generation failed", zap.String("subject", s.Profile.SubjectID), zap.Error(err))
		b.edit(msg.Chat.ID, sent.MessageID, "❌ "+planner.UserMessage)
		return
	}

	parts := formatRecord(gen.Record)
	b.edit(msg.Chat.ID, sent.MessageID, parts[0])
	for _, p := range parts[1:] {
		b.reply(msg.Chat.ID, p)
	}
	if len(gen.ShoppingList) > 0 {
		for _, p := range formatShoppingList(gen.ShoppingList) {
			b.reply(msg.Chat.ID, p)
		}
	}
}

func (b *Bot) handleCurrentPlan(ctx context.Context, msg *tgbotapi.Message, args []string) {
	if len(args) == 0 {
		b.reply(msg.Chat.ID, "Usage: `/plan meal` or `/plan workout`")
		return
	}
	kind, err := plan.ParseKind(args[0])
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: `/plan meal` or `/plan workout`")
		return
	}
	s, ok := b.subject(ctx, msg)
	if !ok {
		return
	}

	rec, err := b.svc.CurrentPlan(ctx, s.Profile.SubjectID, kind)
	if errors.Is(err, planner.ErrPlanNotFound) {
		b.reply(msg.Chat.ID, fmt.Sprintf("You have no current %s plan. Send /%s to create one.", kind, kind))
		return
	}
	if err != nil {
		b.log.Error("failed to load current plan", zap.String("subject", s.Profile.SubjectID), zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Something went wrong. Please try again later.")
		return
	}
	for _, p := range formatRecord(rec) {
		b.reply(msg.Chat.ID, p)
	}
}

func (b *Bot) handleMetricsRequest(ctx context.Context, msg *tgbotapi.Message) {
	if b.opts.AdminID == 0 || msg.From.ID != b.opts.AdminID {
		b.reply(msg.Chat.ID, "⛔ *Access Denied*: Admin only.")
		return
	}
	report, err := b.svc.Usage(ctx, 7)
	if err != nil {
		b.log.Error("failed to fetch metrics", zap.Error(err))
		b.reply(msg.Chat.ID, "❌ Error fetching metrics.")
		return
	}
	b.reply(msg.Chat.ID, formatUsage(report))
}

func (b *Bot) reply(chatID int64, text string) {
	_, _ = b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) edit(chatID int64, messageID int, text string) {
	e := tgbotapi.NewEditMessageText(chatID, messageID, text)
	e.ParseMode = tgbotapi.ModeMarkdown
	_, _ = b.send(e)
}

func (b *Bot) send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		m.ParseMode = tgbotapi.ModeMarkdown
		c = m
	}
	sent, err := b.api.Send(c)
	if err != nil {
		b.log.Warn("failed to send telegram message", zap.Error(err))
	}
	return sent, err
}
