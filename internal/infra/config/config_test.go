package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/pools?sslmode=disable")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, "localhost:8080", cfg.HTTPAddress)
	assert.Equal(t, 10*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, 5*time.Second, cfg.TriggerTimeout)
	assert.Empty(t, cfg.ResetCronSpec)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file.db")
	t.Setenv("DB_DRIVER", "SQLite")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("RESET_CRON_SPEC", "0 3 * * 1")
	t.Setenv("RESET_COMPANY_IDS", "1,2,3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, []int64{1, 2, 3}, cfg.ResetCompanyIDs)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "x")
		t.Setenv("DB_DRIVER", "mysql")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("cron without companies", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "x")
		t.Setenv("RESET_CRON_SPEC", "0 3 * * *")
		_, err := Load()
		assert.Error(t, err)
	})
	t.Run("telegram without manager", func(t *testing.T) {
		t.Setenv("DATABASE_URL", "x")
		t.Setenv("TELEGRAM_TOKEN", "token")
		_, err := Load()
		assert.Error(t, err)
	})
}
