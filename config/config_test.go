package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("defaults in test environment", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")

		cfg, err := Load()

		require.NoError(t, err)
		assert.True(t, cfg.PayoutMultiplier.Equal(decimal.RequireFromString("1.8")))
		assert.True(t, cfg.TaxRate.Equal(decimal.RequireFromString("0.25")))
		assert.True(t, cfg.InterestRate.Equal(decimal.RequireFromString("0.03")))
		assert.Equal(t, 30, cfg.InactiveBalanceDays)
		assert.Equal(t, 30*24*time.Hour, cfg.InactiveFor())
		assert.Equal(t, time.UTC, cfg.Location())
		assert.Equal(t, "moneywave", cfg.NATSSubjectPrefix)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("PAYOUT_MULTIPLIER", "2")
		t.Setenv("EXPECTED_ANNUAL_REVENUE", "1000000")
		t.Setenv("GAME_CACHE_TTL", "90s")
		t.Setenv("ALLOCATION_TIMEZONE", "Asia/Seoul")

		cfg, err := Load()

		require.NoError(t, err)
		assert.Equal(t, "2", cfg.PayoutMultiplier.String())
		assert.Equal(t, int64(1_000_000), cfg.ExpectedAnnualRevenue)
		assert.Equal(t, 90*time.Second, cfg.GameCacheTTL)
		assert.Equal(t, "Asia/Seoul", cfg.Location().String())
	})

	t.Run("connection settings required outside tests", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "production")
		t.Setenv("DATABASE_URL", "")
		t.Setenv("NATS_SERVERS", "nats://localhost:4222")

		_, err := Load()

		assert.ErrorContains(t, err, "DATABASE_URL")
	})

	t.Run("malformed values are reported together", func(t *testing.T) {
		t.Setenv("ENVIRONMENT", "test")
		t.Setenv("TAX_RATE", "a quarter")
		t.Setenv("OUTBOX_RETRY_INTERVAL", "soon")

		_, err := Load()

		require.Error(t, err)
		assert.Contains(t, err.Error(), "TAX_RATE")
		assert.Contains(t, err.Error(), "OUTBOX_RETRY_INTERVAL")
	})
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero multiplier", func(c *Config) { c.PayoutMultiplier = decimal.Zero }, "PAYOUT_MULTIPLIER"},
		{"rates sum to one", func(c *Config) { c.TaxRate = decimal.RequireFromString("0.97") }, "below 1"},
		{"negative rate", func(c *Config) { c.InterestRate = decimal.RequireFromString("-0.1") }, "negative"},
		{"bad timezone", func(c *Config) { c.AllocationTimezone = "Mars/Olympus" }, "ALLOCATION_TIMEZONE"},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, "LOG_FORMAT"},
		{"empty cache", func(c *Config) { c.GameCacheSize = 0 }, "GAME_CACHE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewTestConfig()
			tt.modify(cfg)

			err := cfg.Validate()

			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestGet_UsesTestConfig(t *testing.T) {
	t.Cleanup(ResetConfig)
	cfg := NewTestConfig()
	cfg.MetricsAddr = ":19090"

	SetTestConfig(cfg)

	assert.Same(t, cfg, Get())
}

func TestGetDatabaseURL(t *testing.T) {
	cfg := NewTestConfig()
	cfg.DatabaseURL = "postgres://u:p@localhost:5432"
	cfg.DatabaseName = "moneywave"

	assert.Equal(t, "postgres://u:p@localhost:5432/moneywave?sslmode=disable", cfg.GetDatabaseURL())
}
