package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	DatabaseURL string `env:"DATABASE_URL" env-required:"true"`
	DBDriver    string `env:"DB_DRIVER" env-default:"postgres"` // postgres (lib/pq), pgx or sqlite

	HTTPAddress     string        `env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	HTTPTimeout     time.Duration `env:"HTTP_TIMEOUT" env-default:"10s"`
	HTTPIdleTimeout time.Duration `env:"HTTP_IDLE_TIMEOUT" env-default:"60s"`
	CORSOrigins     []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`

	LogLevel    string `env:"LOG_LEVEL" env-default:"info"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Company-wide reset trigger. Empty spec disables it; resets can still be requested over HTTP.
	ResetCronSpec   string  `env:"RESET_CRON_SPEC"`
	ResetCompanyIDs []int64 `env:"RESET_COMPANY_IDS" env-separator:","`

	// Alerts for newly raised notifications. Empty token disables Telegram dispatch.
	// The manager chat only ever sees notifications of ManagerCompanyID.
	TelegramToken     string `env:"TELEGRAM_TOKEN"`
	ManagerTelegramID int64  `env:"MANAGER_TELEGRAM_ID"`
	ManagerCompanyID  int64  `env:"MANAGER_COMPANY_ID"`

	TriggerTimeout time.Duration `env:"TRIGGER_TIMEOUT" env-default:"5s"`
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// godotenv.Load will not override existing env variables; a missing .env is fine.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("cannot read config: %w", err)
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Environment = strings.ToLower(cfg.Environment)
	cfg.DBDriver = strings.ToLower(cfg.DBDriver)

	switch cfg.DBDriver {
	case "postgres", "pgx", "sqlite":
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.ResetCronSpec != "" && len(cfg.ResetCompanyIDs) == 0 {
		return nil, fmt.Errorf("RESET_CRON_SPEC is set but RESET_COMPANY_IDS is empty")
	}
	if cfg.TelegramToken != "" && (cfg.ManagerTelegramID == 0 || cfg.ManagerCompanyID == 0) {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is set but MANAGER_TELEGRAM_ID or MANAGER_COMPANY_ID is not")
	}

	return cfg, nil
}
