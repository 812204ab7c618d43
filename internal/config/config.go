// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	FrontendURL        string
	Debug              bool
	DBPath             string
	SessionTTL         time.Duration
	EventRetention     time.Duration
	GRPCHealthAddr     string // empty disables the gRPC health server
	MaxRequestBodySize int64
	Generation         GenerationConfig
	Triage             TriageConfig
}

// GenerationConfig configures the chat-completions backend.
type GenerationConfig struct {
	URL         string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Enabled reports whether a backend credential is configured.
func (g GenerationConfig) Enabled() bool {
	return g.APIKey != ""
}

// TriageConfig tunes the conversation pipeline.
type TriageConfig struct {
	HistoryLimit int // 0 keeps the full history
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnv("PORT", "8080"),
		FrontendURL:        getEnv("FRONTEND_URL", ""),
		Debug:              getEnvBool("DEBUG", false),
		DBPath:             getEnv("DB_PATH", "./data/pawcare.db"),
		SessionTTL:         getEnvDuration("SESSION_TTL", 60*time.Minute),
		EventRetention:     getEnvDuration("EVENT_RETENTION", 7*24*time.Hour),
		GRPCHealthAddr:     getEnv("GRPC_HEALTH_ADDR", ""),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_SIZE", 64<<10)),
		Generation: GenerationConfig{
			URL:         getEnv("GENERATION_API_URL", "https://api.openai.com/v1/chat/completions"),
			APIKey:      getEnv("GENERATION_API_KEY", ""),
			Model:       getEnv("GENERATION_MODEL", "gpt-4o-mini"),
			MaxTokens:   getEnvInt("GENERATION_MAX_TOKENS", 500),
			Temperature: getEnvFloat("GENERATION_TEMPERATURE", 0.7),
			Timeout:     getEnvDuration("GENERATION_TIMEOUT", 20*time.Second),
		},
		Triage: TriageConfig{
			HistoryLimit: getEnvInt("TRIAGE_HISTORY_LIMIT", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be > 0")
	}
	if c.EventRetention <= 0 {
		return fmt.Errorf("EVENT_RETENTION must be > 0")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_SIZE must be > 0")
	}
	if c.Generation.URL == "" {
		return fmt.Errorf("GENERATION_API_URL cannot be empty")
	}
	if c.Generation.MaxTokens <= 0 {
		return fmt.Errorf("GENERATION_MAX_TOKENS must be > 0")
	}
	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		return fmt.Errorf("GENERATION_TEMPERATURE must be within [0, 2]")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.Triage.HistoryLimit < 0 {
		return fmt.Errorf("TRIAGE_HISTORY_LIMIT must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

// AllowedOrigins returns the CORS origins for the frontend.
func (c *Config) AllowedOrigins() []string {
	if c.IsDevelopment() {
		return []string{"*"}
	}
	return []string{strings.TrimRight(c.FrontendURL, "/")}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
