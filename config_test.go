package authfront

import (
	"errors"
	"testing"
	"time"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Metrics.UpdateInterval != 60000*time.Millisecond {
		t.Fatalf("expected 60000ms update interval, got %s", cfg.Metrics.UpdateInterval)
	}
	if cfg.Metrics.RouteLabel != RouteLabelRaw {
		t.Fatalf("expected raw route labels by default")
	}
}

func TestConfigValidateRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty addr", func(c *Config) { c.HTTP.Addr = "" }},
		{"zero read header timeout", func(c *Config) { c.HTTP.ReadHeaderTimeout = 0 }},
		{"zero shutdown timeout", func(c *Config) { c.HTTP.ShutdownTimeout = 0 }},
		{"relative metrics path", func(c *Config) { c.Routes.MetricsPath = "metrics" }},
		{"trailing slash prefix", func(c *Config) { c.Routes.AuthPrefix = "/api/auth/" }},
		{"root prefix", func(c *Config) { c.Routes.UsersPrefix = "/" }},
		{"wildcard path", func(c *Config) { c.Routes.UsersPrefix = "/api/{id}" }},
		{"same prefixes", func(c *Config) { c.Routes.UsersPrefix = c.Routes.AuthPrefix }},
		{"metrics equals health", func(c *Config) { c.Routes.MetricsPath = c.Routes.HealthPath }},
		{"relative login", func(c *Config) { c.Routes.LoginPath = "login" }},
		{"cors without origins", func(c *Config) { c.CORS.AllowedOrigins = nil }},
		{"credentials with wildcard", func(c *Config) { c.CORS.AllowCredentials = true }},
		{"zero interval", func(c *Config) { c.Metrics.UpdateInterval = 0 }},
		{"timeout above interval", func(c *Config) { c.Metrics.SampleTimeout = 2 * c.Metrics.UpdateInterval }},
		{"unknown route label", func(c *Config) { c.Metrics.RouteLabel = "template" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Fatalf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestConfigDisabledCORSNeedsNoOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CORS.Enabled = false
	cfg.CORS.AllowedOrigins = nil
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestCloneConfigDetachesSlices(t *testing.T) {
	cfg := DefaultConfig()
	clone := cloneConfig(cfg)
	clone.CORS.AllowedOrigins[0] = "https://example.com"
	if cfg.CORS.AllowedOrigins[0] != "*" {
		t.Fatalf("clone shares origin slice with source")
	}
}
