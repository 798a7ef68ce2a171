// Package config loads and validates application configuration from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Server settings.
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// SQLite settings. Empty path disables persistence entirely.
	DatabasePath string

	// LLM provider settings.
	LLMProvider  string // "auto", "openai", "ollama", or "static"
	OpenAIAPIKey string
	OpenAIURL    string // Override for OpenAI-compatible endpoints.
	LLMModel     string
	OllamaURL    string
	OllamaModel  string

	// Agent settings.
	MaxIterations int
	CacheTTL      time.Duration

	// OTEL settings.
	OTELEndpoint string
	ServiceName  string

	// Rate limiting. Zero rate disables the limiter.
	RateLimitPerMinute int
	RateLimitBurst     int

	// Operational settings.
	LogLevel            string
	EventBufferSize     int
	MaxRequestBodyBytes int64
	HistoryLimit        int // Max query records returned by the history endpoint.
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (Config, error) {
	cfg := Config{
		Port:                envInt("KOTAE_PORT", 8000),
		ReadTimeout:         envDuration("KOTAE_READ_TIMEOUT", 30*time.Second),
		WriteTimeout:        envDuration("KOTAE_WRITE_TIMEOUT", 0),
		DatabasePath:        envStr("KOTAE_DB_PATH", "kotae.db"),
		LLMProvider:         envStr("KOTAE_LLM_PROVIDER", "auto"),
		OpenAIAPIKey:        envStr("OPENAI_API_KEY", ""),
		OpenAIURL:           envStr("OPENAI_BASE_URL", ""),
		LLMModel:            envStr("KOTAE_LLM_MODEL", "gpt-4o-mini"),
		OllamaURL:           envStr("OLLAMA_URL", ""),
		OllamaModel:         envStr("OLLAMA_MODEL", "llama3.1"),
		MaxIterations:       envInt("KOTAE_MAX_ITERATIONS", 6),
		CacheTTL:            envDuration("KOTAE_CACHE_TTL", time.Hour),
		OTELEndpoint:        envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		ServiceName:         envStr("OTEL_SERVICE_NAME", "kotae"),
		RateLimitPerMinute:  envInt("KOTAE_RATE_LIMIT_PER_MINUTE", 0),
		RateLimitBurst:      envInt("KOTAE_RATE_LIMIT_BURST", 10),
		LogLevel:            envStr("KOTAE_LOG_LEVEL", "info"),
		EventBufferSize:     envInt("KOTAE_EVENT_BUFFER_SIZE", 100),
		MaxRequestBodyBytes: int64(envInt("KOTAE_MAX_REQUEST_BODY_BYTES", 2*1024*1024)), // 2 MB default
		HistoryLimit:        envInt("KOTAE_HISTORY_LIMIT", 200),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("config: KOTAE_PORT must be in 1..65535")
	}
	switch c.LLMProvider {
	case "auto", "openai", "ollama", "static":
	default:
		return fmt.Errorf("config: KOTAE_LLM_PROVIDER must be auto, openai, ollama, or static")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("config: KOTAE_MAX_ITERATIONS must be positive")
	}
	if c.CacheTTL <= 0 {
		return fmt.Errorf("config: KOTAE_CACHE_TTL must be positive")
	}
	if c.MaxRequestBodyBytes <= 0 {
		return fmt.Errorf("config: KOTAE_MAX_REQUEST_BODY_BYTES must be positive")
	}
	if c.EventBufferSize <= 0 {
		return fmt.Errorf("config: KOTAE_EVENT_BUFFER_SIZE must be positive")
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("config: KOTAE_LOG_LEVEL must be debug, info, warn, or error")
	}
	return nil
}

// SlogLevel maps LogLevel to its slog constant. Validate has already
// rejected unknown names, so the default arm only covers zero-value Configs.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
