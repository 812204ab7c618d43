package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GENERATION_API_KEY", "")
	t.Setenv("GRPC_HEALTH_ADDR", "")
	t.Setenv("DEBUG", "maybe")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("expected 60m session ttl, got %v", cfg.SessionTTL)
	}
	if cfg.Generation.Timeout != 20*time.Second {
		t.Errorf("expected 20s timeout, got %v", cfg.Generation.Timeout)
	}
	if cfg.Generation.Enabled() {
		t.Error("expected generation disabled without an API key")
	}
	if cfg.Triage.HistoryLimit != 20 {
		t.Errorf("expected history limit 20, got %d", cfg.Triage.HistoryLimit)
	}
	if cfg.GRPCHealthAddr != "" {
		t.Errorf("expected gRPC health disabled, got %q", cfg.GRPCHealthAddr)
	}
	if cfg.Debug {
		t.Error("expected unparsable DEBUG to fall back to false")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GENERATION_API_KEY", "sk-test")
	t.Setenv("GENERATION_TEMPERATURE", "0.2")
	t.Setenv("GENERATION_TIMEOUT", "5s")
	t.Setenv("TRIAGE_HISTORY_LIMIT", "0")
	t.Setenv("SESSION_TTL", "not-a-duration")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Generation.Enabled() {
		t.Error("expected generation enabled")
	}
	if cfg.Generation.Temperature != 0.2 {
		t.Errorf("expected temperature 0.2, got %v", cfg.Generation.Temperature)
	}
	if cfg.Generation.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %v", cfg.Generation.Timeout)
	}
	if cfg.Triage.HistoryLimit != 0 {
		t.Errorf("expected unlimited history, got %d", cfg.Triage.HistoryLimit)
	}
	if cfg.SessionTTL != 60*time.Minute {
		t.Errorf("expected fallback ttl for invalid value, got %v", cfg.SessionTTL)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Port:               "8080",
			DBPath:             "x.db",
			SessionTTL:         time.Minute,
			EventRetention:     time.Hour,
			MaxRequestBodySize: 1024,
			Generation: GenerationConfig{
				URL:         "http://localhost",
				MaxTokens:   10,
				Temperature: 1,
				Timeout:     time.Second,
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty port", func(c *Config) { c.Port = "" }},
		{"empty db path", func(c *Config) { c.DBPath = "" }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"zero max tokens", func(c *Config) { c.Generation.MaxTokens = 0 }},
		{"temperature too high", func(c *Config) { c.Generation.Temperature = 2.5 }},
		{"negative temperature", func(c *Config) { c.Generation.Temperature = -0.1 }},
		{"zero timeout", func(c *Config) { c.Generation.Timeout = 0 }},
		{"negative history", func(c *Config) { c.Triage.HistoryLimit = -1 }},
	}

	if err := valid().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAllowedOrigins(t *testing.T) {
	dev := &Config{FrontendURL: "http://localhost:5173"}
	if got := dev.AllowedOrigins(); len(got) != 1 || got[0] != "*" {
		t.Errorf("expected wildcard in development, got %v", got)
	}
	prod := &Config{FrontendURL: "https://pawcare.example/"}
	if got := prod.AllowedOrigins(); len(got) != 1 || got[0] != "https://pawcare.example" {
		t.Errorf("expected frontend origin, got %v", got)
	}
}
