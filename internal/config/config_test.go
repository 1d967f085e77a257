package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigMethods(t *testing.T) {
	t.Run("Addr returns formatted port", func(t *testing.T) {
		cfg := &Config{Port: 3000}
		assert.Equal(t, ":3000", cfg.Addr())
	})

	t.Run("PartnerLinkTTL converts days to duration", func(t *testing.T) {
		cfg := &Config{PartnerLinkTTLDays: 365}
		assert.Equal(t, 365*24*time.Hour, cfg.PartnerLinkTTL())
	})

	t.Run("StarterLinkTTL converts hours to duration", func(t *testing.T) {
		cfg := &Config{StarterLinkTTLHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.StarterLinkTTL())
	})
}

func TestValidate(t *testing.T) {
	t.Run("rejects short webhook secret in production", func(t *testing.T) {
		cfg := &Config{PaymentWebhookSecret: "short", PartnerLinkTTLDays: 365, StarterLinkTTLHours: 24}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects known weak secret in production", func(t *testing.T) {
		cfg := &Config{
			PaymentWebhookSecret: "change-me",
			PartnerLinkTTLDays:   365,
			StarterLinkTTLHours:  24,
		}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("allows short secret outside production", func(t *testing.T) {
		cfg := &Config{PaymentWebhookSecret: "dev", PartnerLinkTTLDays: 365, StarterLinkTTLHours: 24}
		assert.NoError(t, cfg.Validate(false))
	})

	t.Run("rejects non-positive TTLs", func(t *testing.T) {
		cfg := &Config{PartnerLinkTTLDays: 0, StarterLinkTTLHours: 24}
		assert.Error(t, cfg.Validate(false))

		cfg = &Config{PartnerLinkTTLDays: 365, StarterLinkTTLHours: 0}
		assert.Error(t, cfg.Validate(false))
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                   os.Getenv("PORT"),
		"DATABASE_URL":           os.Getenv("DATABASE_URL"),
		"REDIS_URL":              os.Getenv("REDIS_URL"),
		"PAYMENT_WEBHOOK_SECRET": os.Getenv("PAYMENT_WEBHOOK_SECRET"),
		"PARTNER_LINK_TTL_DAYS":  os.Getenv("PARTNER_LINK_TTL_DAYS"),
		"STARTER_LINK_TTL_HOURS": os.Getenv("STARTER_LINK_TTL_HOURS"),
		"LOG_LEVEL":              os.Getenv("LOG_LEVEL"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	t.Run("loads config with defaults", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Unsetenv("PORT")
		os.Unsetenv("PARTNER_LINK_TTL_DAYS")
		os.Unsetenv("STARTER_LINK_TTL_HOURS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, 365, cfg.PartnerLinkTTLDays)
		assert.Equal(t, 24, cfg.StarterLinkTTLHours)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("PARTNER_LINK_TTL_DAYS", "30")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, 30, cfg.PartnerLinkTTLDays)
		assert.Equal(t, "debug", cfg.LogLevel)
	})

	t.Run("fails without required DATABASE_URL", func(t *testing.T) {
		os.Unsetenv("DATABASE_URL")
		os.Setenv("REDIS_URL", "redis://localhost:6379")

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("fails without required REDIS_URL", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Unsetenv("REDIS_URL")

		_, err := Load()
		assert.Error(t, err)
	})
}
