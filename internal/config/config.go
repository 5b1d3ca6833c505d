package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

type Config struct {
	Port                   int    `env:"PORT" envDefault:"8080"`
	DatabaseURL            string `env:"DATABASE_URL,required"`
	RedisURL               string `env:"REDIS_URL,required"`
	AppURL                 string `env:"APP_URL" envDefault:"http://localhost:3000"`
	CheckoutBaseURL        string `env:"CHECKOUT_BASE_URL"`
	CheckoutAPIKey         string `env:"CHECKOUT_API_KEY"`
	CheckoutWebhookSecret  string `env:"CHECKOUT_WEBHOOK_SECRET"`
	CheckoutPublishableKey string `env:"CHECKOUT_PUBLISHABLE_KEY"`
	SweepIntervalSeconds   int    `env:"SWEEP_INTERVAL_SECONDS" envDefault:"2"`
	LogLevel               string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalSeconds) * time.Second
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.SweepIntervalSeconds < 1 {
		return fmt.Errorf("SWEEP_INTERVAL_SECONDS must be at least 1")
	}

	if c.CheckoutBaseURL != "" && !strings.HasPrefix(c.CheckoutBaseURL, "http") {
		return fmt.Errorf("CHECKOUT_BASE_URL must be an http(s) URL")
	}

	if isProduction {
		if c.CheckoutWebhookSecret == "" {
			log.Warn().Msg("CHECKOUT_WEBHOOK_SECRET is empty in production: webhook signature verification disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
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
