package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	ProviderGemini = "gemini"
	ProviderGroq   = "groq"
)

// Config holds the configuration for the application.
type Config struct {
	LLMProvider  string
	GeminiAPIKey string
	GeminiModel  string
	GroqAPIKey   string
	GroqModel    string
	GroqBaseURL  string

	// Generation
	Temperature     float32
	MaxOutputTokens int
	MaxAttempts     int
	AttemptTimeout  time.Duration
	RetryBaseDelay  time.Duration
	RetryMaxDelay   time.Duration
	DefaultLanguage string
	DefaultPlanDays int

	DatabasePath string
	LogLevel     string
	LogFormat    string
	Port         string

	// Access tokens
	JWTSecret   string
	JWTAudience string
	JWTTTL      time.Duration

	// Telegram Config
	TelegramBotToken       string
	TelegramWebhookURL     string
	TelegramAllowedUserIDs []int64
	AdminTelegramID        int64
}

func defaults(v *viper.Viper) {
	v.SetDefault("LLM_PROVIDER", ProviderGemini)
	v.SetDefault("GEMINI_MODEL", "gemini-2.0-flash")
	v.SetDefault("GROQ_MODEL", "llama-3.3-70b-versatile")
	v.SetDefault("GROQ_BASE_URL", "https://api.groq.com/openai/v1")
	v.SetDefault("LLM_TEMPERATURE", 0.7)
	v.SetDefault("LLM_MAX_OUTPUT_TOKENS", 8192)
	v.SetDefault("LLM_MAX_ATTEMPTS", 3)
	v.SetDefault("LLM_ATTEMPT_TIMEOUT", "60s")
	v.SetDefault("RETRY_BASE_DELAY", "1s")
	v.SetDefault("RETRY_MAX_DELAY", "5s")
	v.SetDefault("DEFAULT_LANGUAGE", "en")
	v.SetDefault("DEFAULT_PLAN_DAYS", 7)
	v.SetDefault("DATABASE_PATH", "data/coach.db")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("PORT", "8080")
	v.SetDefault("JWT_AUDIENCE", "ai-fitness-coach")
	v.SetDefault("JWT_TTL", "720h")
}

// NewFromEnv creates a new Config object from environment variables. A .env
// file in the working directory is loaded first when present; variables
// already set in the environment win.
func NewFromEnv() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	defaults(v)

	cfg := &Config{
		LLMProvider:  strings.ToLower(v.GetString("LLM_PROVIDER")),
		GeminiAPIKey: v.GetString("GEMINI_API_KEY"),
		GeminiModel:  v.GetString("GEMINI_MODEL"),
		GroqAPIKey:   v.GetString("GROQ_API_KEY"),
		GroqModel:    v.GetString("GROQ_MODEL"),
		GroqBaseURL:  v.GetString("GROQ_BASE_URL"),

		Temperature:     float32(v.GetFloat64("LLM_TEMPERATURE")),
		MaxOutputTokens: v.GetInt("LLM_MAX_OUTPUT_TOKENS"),
		MaxAttempts:     v.GetInt("LLM_MAX_ATTEMPTS"),
		AttemptTimeout:  v.GetDuration("LLM_ATTEMPT_TIMEOUT"),
		RetryBaseDelay:  v.GetDuration("RETRY_BASE_DELAY"),
		RetryMaxDelay:   v.GetDuration("RETRY_MAX_DELAY"),
		DefaultLanguage: v.GetString("DEFAULT_LANGUAGE"),
		DefaultPlanDays: v.GetInt("DEFAULT_PLAN_DAYS"),

		DatabasePath: v.GetString("DATABASE_PATH"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		LogFormat:    v.GetString("LOG_FORMAT"),
		Port:         v.GetString("PORT"),

		JWTSecret:   v.GetString("JWT_SECRET"),
		JWTAudience: v.GetString("JWT_AUDIENCE"),
		JWTTTL:      v.GetDuration("JWT_TTL"),

		TelegramBotToken:   v.GetString("TELEGRAM_BOT_TOKEN"),
		TelegramWebhookURL: v.GetString("TELEGRAM_WEBHOOK_URL"),
	}

	switch cfg.LLMProvider {
	case ProviderGemini:
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY environment variable not set")
		}
	case ProviderGroq:
		if cfg.GroqAPIKey == "" {
			return nil, fmt.Errorf("GROQ_API_KEY environment variable not set")
		}
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderGroq, cfg.LLMProvider)
	}

	if cfg.MaxAttempts < 1 {
		return nil, fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", cfg.MaxAttempts)
	}

	ids, err := parseIDs(v.GetString("TELEGRAM_ALLOWED_USER_IDS"))
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_ALLOWED_USER_IDS: %w", err)
	}
	cfg.TelegramAllowedUserIDs = ids

	if raw := v.GetString("ADMIN_TELEGRAM_ID"); raw != "" {
		id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
		cfg.AdminTelegramID = id
	}

	return cfg, nil
}

// parseIDs reads a comma separated list of Telegram user IDs.
func parseIDs(raw string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
