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
	Port        int    `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL,required"`
	RedisURL    string `env:"REDIS_URL,required"`

	// WhatsApp Cloud API
	GraphBaseURL       string `env:"GRAPH_BASE_URL" envDefault:"https://graph.facebook.com/v19.0"`
	WebhookVerifyToken string `env:"WEBHOOK_VERIFY_TOKEN"`
	AppSecret          string `env:"APP_SECRET"`

	// Media storage. The endpoint and key pair are only needed for
	// S3-compatible providers; on AWS the default credential chain applies.
	MediaBucket        string `env:"MEDIA_BUCKET"`
	MediaPublicBaseURL string `env:"MEDIA_PUBLIC_BASE_URL"`
	AWSRegion          string `env:"AWS_REGION" envDefault:"us-east-1"`
	S3Endpoint         string `env:"S3_ENDPOINT"`
	S3AccessKeyID      string `env:"S3_ACCESS_KEY_ID"`
	S3SecretAccessKey  string `env:"S3_SECRET_ACCESS_KEY"`

	// Tenant resolution
	SingleTenantFallback bool `env:"SINGLE_TENANT_FALLBACK" envDefault:"false"`

	IdleCloseHours  int    `env:"IDLE_CLOSE_HOURS" envDefault:"24"`
	SendTimeoutSecs int    `env:"SEND_TIMEOUT_SECONDS" envDefault:"5"`
	LogLevel        string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) IdleCloseAfter() time.Duration {
	return time.Duration(c.IdleCloseHours) * time.Hour
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.SendTimeoutSecs) * time.Second
}

func (c *Config) Validate(isProduction bool) error {
	if isProduction {
		if err := validateSecret("WEBHOOK_VERIFY_TOKEN", c.WebhookVerifyToken); err != nil {
			return err
		}
		if c.AppSecret == "" {
			log.Warn().Msg("APP_SECRET is empty in production: webhook signature verification disabled")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
		if c.MediaBucket == "" {
			log.Warn().Msg("MEDIA_BUCKET is empty in production: inbound media will degrade to placeholders")
		}
		if c.SingleTenantFallback {
			log.Warn().Msg("SINGLE_TENANT_FALLBACK is enabled: unsafe once more than one tenant shares a channel type")
		}
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 16 {
		return fmt.Errorf("%s must be at least 16 characters in production (generate with: openssl rand -base64 32)", name)
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
