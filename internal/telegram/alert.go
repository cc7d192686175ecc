package telegram

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"ai-fitness-coach/internal/telemetry"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// contextBloatTokens is the prompt size above which a successful generation
// still alerts the admin.
const contextBloatTokens = 4000

// AlertSink forwards error-level telemetry and oversized prompts to the
// admin chat. Other events are ignored.
type AlertSink struct {
	api     Sender
	adminID int64
}

// NewAlertSink creates an AlertSink. With adminID 0 it discards everything.
func NewAlertSink(api Sender, adminID int64) *AlertSink {
	return &AlertSink{api: api, adminID: adminID}
}

func (s *AlertSink) RecordEvent(ctx context.Context, e telemetry.Event) error {
	if e.Level == telemetry.LevelError {
		return s.send(formatAlert(e, nil))
	}
	if e.Usage != nil && e.Usage.PromptTokens > contextBloatTokens {
		return s.send(fmt.Sprintf("⚠️ *Context Bloat Alert*\nAgent: %s\nModel: %s\nPrompt Tokens: %d",
			esc(e.Agent), esc(e.Usage.Model), e.Usage.PromptTokens))
	}
	return nil
}

func (s *AlertSink) RecordError(ctx context.Context, e telemetry.Event, err error) error {
	if e.Level != telemetry.LevelError {
		return nil
	}
	return s.send(formatAlert(e, err))
}

func (s *AlertSink) send(text string) error {
	if s.adminID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(s.adminID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := s.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send admin alert: %w", err)
	}
	return nil
}

// alertFields are the event fields worth showing in a chat message; the
// payload is left to the logs.
var alertFields = map[string]bool{"kind": true, "attempts": true, "issue_count": true}

func formatAlert(e telemetry.Event, err error) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "🚨 *%s*\n", esc(e.Name))
	if e.Agent != "" {
		fmt.Fprintf(&sb, "Agent: %s\n", esc(e.Agent))
	}

	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		if alertFields[k] {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&sb, "%s: %v\n", esc(k), e.Fields[k])
	}
	if issues, ok := e.Fields["issues"].([]string); ok && len(issues) > 0 {
		fmt.Fprintf(&sb, "First issue: %s\n", esc(issues[0]))
	}
	if err != nil {
		msg := err.Error()
		if len(msg) > 500 {
			cut := 500
			for cut > 0 && !utf8.RuneStart(msg[cut]) {
				cut--
			}
			msg = msg[:cut] + "…"
		}
		fmt.Fprintf(&sb, "Error: %s\n", esc(msg))
	}
	return sb.String()
}
