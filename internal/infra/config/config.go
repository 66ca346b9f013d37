package config

import (
	"fmt"
	"strings"
	"time"

	"community_content_bot/internal/app"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string `env:"TELEGRAM_TOKEN,required,notEmpty"`
	DatabaseURL     string `env:"DATABASE_URL,required,notEmpty"`
	DatabaseDriver  string `env:"DATABASE_DRIVER" envDefault:"postgres"` // postgres or sqlite
	AdminTelegramID int64  `env:"ADMIN_TELEGRAM_ID"`                     // Optional, receives tick failure notices
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
	Environment     string `env:"ENVIRONMENT" envDefault:"development"`

	PollCronSpec       string          `env:"POLL_CRON_SPEC" envDefault:"0 * * * *"` // Hourly, on the hour
	PollInterval       time.Duration   `env:"POLL_INTERVAL" envDefault:"1h"`         // Must match PollCronSpec for the window policy
	TriggerMatchPolicy app.MatchPolicy `env:"TRIGGER_MATCH_POLICY" envDefault:"STRICT_MINUTE_MATCH"`
	TickTimeout        time.Duration   `env:"TICK_TIMEOUT" envDefault:"10m"`
	SendTimeout        time.Duration   `env:"SEND_TIMEOUT" envDefault:"15s"`

	SpotlightRecencyDays int `env:"SPOTLIGHT_RECENCY_DAYS" envDefault:"28"`
	QuestionRecencyDays  int `env:"QUESTION_RECENCY_DAYS" envDefault:"14"`
	PromptRecencyDays    int `env:"PROMPT_RECENCY_DAYS" envDefault:"0"`

	DefaultTimezone string `env:"DEFAULT_TIMEZONE" envDefault:"UTC"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.DatabaseDriver = strings.ToLower(cfg.DatabaseDriver)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) validate() error {
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("invalid DATABASE_DRIVER %q (want postgres or sqlite)", c.DatabaseDriver)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %s", c.PollInterval)
	}
	if c.TickTimeout <= 0 || c.SendTimeout <= 0 {
		return fmt.Errorf("TICK_TIMEOUT and SEND_TIMEOUT must be positive")
	}
	if c.SpotlightRecencyDays < 0 || c.QuestionRecencyDays < 0 || c.PromptRecencyDays < 0 {
		return fmt.Errorf("recency windows cannot be negative")
	}
	if _, err := time.LoadLocation(c.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid DEFAULT_TIMEZONE: %w", err)
	}
	return nil
}

// Recency returns the per-feature recency windows for the delivery service.
func (c *AppConfig) Recency() app.RecencySettings {
	return app.RecencySettings{
		SpotlightDays: c.SpotlightRecencyDays,
		QuestionDays:  c.QuestionRecencyDays,
		PromptDays:    c.PromptRecencyDays,
	}
}
