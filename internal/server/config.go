// Package server provides configuration helpers that define runtime defaults,
// sanitizing, and environment loading for the chat relay.
package server

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// RateLimitConfig defines the parameters for per-session message rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	// Addr is the TCP address of the line protocol listener.
	Addr string
	// HTTPAddr serves health, /ws and /metrics. Empty disables HTTP.
	HTTPAddr string
	// LogFile is truncated at startup. Empty disables the chat log.
	LogFile        string
	MaxMessageSize int
	WriteTimeout   time.Duration
	RateLimit      RateLimitConfig
	AllowedOrigins []string
	// HistoryLimit caps entries kept per room; zero keeps all.
	HistoryLimit int
	Lemmatizer   string
	Env          string
	LogLevel     string
}

const (
	defaultAddr           = ":12345"
	defaultHTTPAddr       = ":8080"
	defaultLogFile        = "chat.log"
	defaultMaxMessageSize = 2048
	minMaxMessageSize     = 64
	defaultWriteTimeout   = 2 * time.Second
	defaultBurst          = 5
	defaultRefillInterval = time.Second
)

func defaultConfig() Config {
	return Config{
		Addr:           defaultAddr,
		HTTPAddr:       defaultHTTPAddr,
		LogFile:        defaultLogFile,
		MaxMessageSize: defaultMaxMessageSize,
		WriteTimeout:   defaultWriteTimeout,
		RateLimit: RateLimitConfig{
			Burst:          defaultBurst,
			RefillInterval: defaultRefillInterval,
		},
		Lemmatizer: "golem",
		Env:        "dev",
		LogLevel:   "info",
	}
}

// sanitizeConfig fills zero or invalid values with defaults. HTTPAddr and
// LogFile are left empty if unset, since empty means disabled.
func sanitizeConfig(cfg Config) Config {
	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = defaultMaxMessageSize
	}
	if cfg.MaxMessageSize < minMaxMessageSize {
		cfg.MaxMessageSize = minMaxMessageSize
	}

	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}

	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = defaultBurst
	}

	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = defaultRefillInterval
	}

	if cfg.HistoryLimit < 0 {
		cfg.HistoryLimit = 0
	}

	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if addr := os.Getenv("SERVER_ADDR"); addr != "" {
		cfg.Addr = addr
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		if strings.EqualFold(addr, "off") {
			addr = ""
		}
		cfg.HTTPAddr = addr
	}

	if path := os.Getenv("CHAT_LOG_FILE"); path != "" {
		cfg.LogFile = path
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseIntValue(maxSize, cfg.MaxMessageSize)
	}

	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	if limit := os.Getenv("HISTORY_LIMIT"); limit != "" {
		cfg.HistoryLimit = parseIntValue(limit, cfg.HistoryLimit)
	}

	if provider := os.Getenv("LEMMATIZER"); provider != "" {
		cfg.Lemmatizer = provider
	}

	if env := os.Getenv("APP_ENV"); env != "" {
		cfg.Env = env
	}

	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
