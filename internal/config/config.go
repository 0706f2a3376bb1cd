package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config keeps runtime settings for the planner.
type Config struct {
	TelegramToken       string        `mapstructure:"telegram_token"`
	DatabaseURL         string        `mapstructure:"database_url" validate:"required"`
	ReportIntervalHours int           `mapstructure:"report_interval_hours" validate:"gte=0,lte=168"`
	SweepTime           string        `mapstructure:"sweep_time" validate:"required,datetime=15:04"`
	SweepWorkers        int           `mapstructure:"sweep_workers" validate:"gte=1,lte=64"`
	SweepItemTimeout    time.Duration `mapstructure:"sweep_item_timeout" validate:"gt=0"`
	LogLevel            string        `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFormat           string        `mapstructure:"log_format" validate:"oneof=json text"`
	// AdminTelegramIDs get the admin role when they first talk to the bot.
	AdminTelegramIDs []int64 `mapstructure:"admin_telegram_ids"`
}

// ReportInterval is how often digests go out; zero disables them.
func (c Config) ReportInterval() time.Duration {
	return time.Duration(c.ReportIntervalHours) * time.Hour
}

// IsAdmin reports whether telegramID is listed in AdminTelegramIDs.
func (c Config) IsAdmin(telegramID int64) bool {
	for _, id := range c.AdminTelegramIDs {
		if id == telegramID {
			return true
		}
	}
	return false
}

// RequireBot checks the settings needed to run the Telegram bot.
func (c Config) RequireBot() error {
	if c.TelegramToken == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}
	return nil
}

var envKeys = map[string]string{
	"telegram_token":        "TELEGRAM_TOKEN",
	"database_url":          "DATABASE_URL",
	"report_interval_hours": "REPORT_INTERVAL_HOURS",
	"sweep_time":            "SWEEP_TIME",
	"sweep_workers":         "SWEEP_WORKERS",
	"sweep_item_timeout":    "SWEEP_ITEM_TIMEOUT",
	"log_level":             "LOG_LEVEL",
	"log_format":            "LOG_FORMAT",
	"admin_telegram_ids":    "ADMIN_TELEGRAM_IDS",
}

// Load reads configuration from an optional YAML file and environment
// variables; the environment wins. Missing settings fall back to defaults.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetDefault("database_url", "task_planner.db")
	v.SetDefault("report_interval_hours", 5)
	v.SetDefault("sweep_time", "03:00")
	v.SetDefault("sweep_workers", 1)
	v.SetDefault("sweep_item_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")

	for key, env := range envKeys {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.DatabaseURL = strings.TrimSpace(cfg.DatabaseURL)
	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))

	if err := validator.New().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
			}
			return Config{}, fmt.Errorf("invalid config: %s", strings.Join(fields, ", "))
		}
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
