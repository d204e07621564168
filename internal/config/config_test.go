package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "")
	t.Setenv("SYNC_MAX_BATCH", "")
	t.Setenv("ACCESS_TOKEN_MINUTES", "")
	t.Setenv("REFRESH_TOKEN_DAYS", "")
	t.Setenv("ALLOWED_ORIGINS", "")

	cfg := Load()

	assert.Equal(t, "postgres", cfg.DatabaseDriver)
	assert.Equal(t, 500, cfg.SyncMaxBatch)
	assert.Equal(t, 15*time.Minute, cfg.AccessTokenTTL)
	assert.Equal(t, 10*24*time.Hour, cfg.RefreshTokenTTL)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.AllowedOrigins)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("SYNC_RATE_WINDOW", "45")
	t.Setenv("SYNC_RATE_LIMIT", "7")
	t.Setenv("ALLOWED_ORIGINS", " https://ops.example.com , ,https://docs.example.com")
	t.Setenv("ENVIRONMENT", "production")

	cfg := Load()

	assert.Equal(t, "sqlite", cfg.DatabaseDriver)
	assert.Equal(t, 45*time.Second, cfg.SyncRateWindow)
	assert.Equal(t, 7, cfg.SyncRateLimit)
	assert.Equal(t, []string{"https://ops.example.com", "https://docs.example.com"}, cfg.AllowedOrigins)
	assert.True(t, cfg.IsProduction())
}

func TestGetEnvAsInt_InvalidFallsBack(t *testing.T) {
	t.Setenv("REDIS_DB", "two")
	assert.Equal(t, 3, getEnvAsInt("REDIS_DB", 3))
}
