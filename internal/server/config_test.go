package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":12345", cfg.Addr)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "chat.log", cfg.LogFile)
	assert.Equal(t, 2048, cfg.MaxMessageSize)
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "golem", cfg.Lemmatizer)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_ADDR", "127.0.0.1:9999")
	t.Setenv("HTTP_ADDR", "off")
	t.Setenv("CHAT_LOG_FILE", "/tmp/other.log")
	t.Setenv("MAX_MESSAGE_SIZE", "4096")
	t.Setenv("WRITE_TIMEOUT", "5")
	t.Setenv("RATE_LIMIT_BURST", "10")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "3")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example")
	t.Setenv("HISTORY_LIMIT", "100")
	t.Setenv("LEMMATIZER", "rules")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "127.0.0.1:9999", cfg.Addr)
	assert.Equal(t, "", cfg.HTTPAddr)
	assert.Equal(t, "/tmp/other.log", cfg.LogFile)
	assert.Equal(t, 4096, cfg.MaxMessageSize)
	assert.Equal(t, 5*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, 3*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, []string{"http://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 100, cfg.HistoryLimit)
	assert.Equal(t, "rules", cfg.Lemmatizer)
	assert.Equal(t, "prod", cfg.Env)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfigFromEnvIgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "huge")
	t.Setenv("WRITE_TIMEOUT", "-1")
	t.Setenv("RATE_LIMIT_BURST", "0")

	cfg := NewConfigFromEnv()

	assert.Equal(t, 2048, cfg.MaxMessageSize)
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 5, cfg.RateLimit.Burst)
}

func TestSanitizeConfig(t *testing.T) {
	cfg := sanitizeConfig(Config{MaxMessageSize: 10, HistoryLimit: -4})

	assert.Equal(t, ":12345", cfg.Addr)
	assert.Equal(t, "", cfg.HTTPAddr)
	assert.Equal(t, "", cfg.LogFile)
	assert.Equal(t, minMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaultWriteTimeout, cfg.WriteTimeout)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
	assert.Equal(t, 0, cfg.HistoryLimit)
}
