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

	t.Run("IdleCloseAfter converts hours to duration", func(t *testing.T) {
		cfg := &Config{IdleCloseHours: 24}
		assert.Equal(t, 24*time.Hour, cfg.IdleCloseAfter())
	})

	t.Run("SendTimeout converts seconds to duration", func(t *testing.T) {
		cfg := &Config{SendTimeoutSecs: 5}
		assert.Equal(t, 5*time.Second, cfg.SendTimeout())
	})
}

func TestLoad(t *testing.T) {
	originalEnv := map[string]string{
		"PORT":                   os.Getenv("PORT"),
		"DATABASE_URL":           os.Getenv("DATABASE_URL"),
		"REDIS_URL":              os.Getenv("REDIS_URL"),
		"GRAPH_BASE_URL":         os.Getenv("GRAPH_BASE_URL"),
		"WEBHOOK_VERIFY_TOKEN":   os.Getenv("WEBHOOK_VERIFY_TOKEN"),
		"APP_SECRET":             os.Getenv("APP_SECRET"),
		"MEDIA_BUCKET":           os.Getenv("MEDIA_BUCKET"),
		"SINGLE_TENANT_FALLBACK": os.Getenv("SINGLE_TENANT_FALLBACK"),
		"IDLE_CLOSE_HOURS":       os.Getenv("IDLE_CLOSE_HOURS"),
		"SEND_TIMEOUT_SECONDS":   os.Getenv("SEND_TIMEOUT_SECONDS"),
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
		os.Unsetenv("GRAPH_BASE_URL")
		os.Unsetenv("SINGLE_TENANT_FALLBACK")
		os.Unsetenv("IDLE_CLOSE_HOURS")
		os.Unsetenv("SEND_TIMEOUT_SECONDS")
		os.Unsetenv("LOG_LEVEL")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 8080, cfg.Port)
		assert.Equal(t, "postgres://localhost/test", cfg.DatabaseURL)
		assert.Equal(t, "redis://localhost:6379", cfg.RedisURL)
		assert.Equal(t, "https://graph.facebook.com/v19.0", cfg.GraphBaseURL)
		assert.False(t, cfg.SingleTenantFallback)
		assert.Equal(t, 24, cfg.IdleCloseHours)
		assert.Equal(t, 5, cfg.SendTimeoutSecs)
		assert.Equal(t, "info", cfg.LogLevel)
	})

	t.Run("loads custom values", func(t *testing.T) {
		os.Setenv("DATABASE_URL", "postgres://localhost/test")
		os.Setenv("REDIS_URL", "redis://localhost:6379")
		os.Setenv("PORT", "3000")
		os.Setenv("GRAPH_BASE_URL", "https://graph.facebook.com/v20.0")
		os.Setenv("SINGLE_TENANT_FALLBACK", "true")
		os.Setenv("IDLE_CLOSE_HOURS", "48")
		os.Setenv("LOG_LEVEL", "debug")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, 3000, cfg.Port)
		assert.Equal(t, "https://graph.facebook.com/v20.0", cfg.GraphBaseURL)
		assert.True(t, cfg.SingleTenantFallback)
		assert.Equal(t, 48, cfg.IdleCloseHours)
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

func TestValidate(t *testing.T) {
	t.Run("rejects short verify token in production", func(t *testing.T) {
		cfg := &Config{WebhookVerifyToken: "short"}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("rejects known weak verify token in production", func(t *testing.T) {
		cfg := &Config{WebhookVerifyToken: "change-me-0123456789"}
		assert.NoError(t, cfg.Validate(true))

		cfg = &Config{WebhookVerifyToken: "dev-secret-change-me"}
		assert.Error(t, cfg.Validate(true))
	})

	t.Run("accepts strong verify token in production", func(t *testing.T) {
		cfg := &Config{WebhookVerifyToken: "aVeryLongRandomVerifyToken123"}
		assert.NoError(t, cfg.Validate(true))
	})

	t.Run("skips secret checks outside production", func(t *testing.T) {
		cfg := &Config{WebhookVerifyToken: "short"}
		assert.NoError(t, cfg.Validate(false))
	})
}
