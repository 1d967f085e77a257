package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                 int    `env:"PORT" envDefault:"8080"`
	DatabaseURL          string `env:"DATABASE_URL,required"`
	RedisURL             string `env:"REDIS_URL,required"`
	PaymentWebhookSecret string `env:"PAYMENT_WEBHOOK_SECRET"`
	ResendAPIKey         string `env:"RESEND_API_KEY"`
	NotifyFromEmail      string `env:"NOTIFY_FROM_EMAIL" envDefault:"links@reportlens.app"`
	AccessBaseURL        string `env:"ACCESS_BASE_URL" envDefault:"http://localhost:8080"`
	PartnerLinkTTLDays   int    `env:"PARTNER_LINK_TTL_DAYS" envDefault:"365"`
	StarterLinkTTLHours  int    `env:"STARTER_LINK_TTL_HOURS" envDefault:"24"`
	LogLevel             string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) PartnerLinkTTL() time.Duration {
	return time.Duration(c.PartnerLinkTTLDays) * 24 * time.Hour
}

func (c *Config) StarterLinkTTL() time.Duration {
	return time.Duration(c.StarterLinkTTLHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("PAYMENT_WEBHOOK_SECRET", c.PaymentWebhookSecret); err != nil {
			return err
		}
		if c.ResendAPIKey == "" {
			log.Warn().Msg("RESEND_API_KEY is empty in production: fulfillment emails will not be sent")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if !strings.HasPrefix(c.AccessBaseURL, "https://") {
			log.Warn().Msg("ACCESS_BASE_URL is not https in production: secure links will be issued over plaintext")
		}
	}

	if c.PartnerLinkTTLDays < 1 {
		return fmt.Errorf("PARTNER_LINK_TTL_DAYS must be at least 1")
	}
	if c.StarterLinkTTLHours < 1 {
		return fmt.Errorf("STARTER_LINK_TTL_HOURS must be at least 1")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
