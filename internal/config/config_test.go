package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.APIBasePath != "/api/v1" {
		t.Errorf("APIBasePath = %q", cfg.APIBasePath)
	}
	if cfg.PlatformHost != "glovoapp.com" {
		t.Errorf("PlatformHost = %q", cfg.PlatformHost)
	}
	if cfg.PricePerImage != 0.50 {
		t.Errorf("PricePerImage = %v", cfg.PricePerImage)
	}
	if cfg.MinutesPerImage != 2 {
		t.Errorf("MinutesPerImage = %d", cfg.MinutesPerImage)
	}
	if cfg.PendingJobsLimit != 5 || cfg.PendingJobsMaxCap != 50 {
		t.Errorf("poll bounds = %d/%d", cfg.PendingJobsLimit, cfg.PendingJobsMaxCap)
	}
	if cfg.ScrapeTTL != 24*time.Hour {
		t.Errorf("ScrapeTTL = %v", cfg.ScrapeTTL)
	}
	if cfg.RequeueMinAge != 10*time.Minute {
		t.Errorf("RequeueMinAge = %v", cfg.RequeueMinAge)
	}
	if cfg.GinMode != "release" {
		t.Errorf("GinMode = %q", cfg.GinMode)
	}
	if cfg.OTEL.Enabled {
		t.Error("OTEL must default to disabled")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("PRICE_PER_IMAGE", "0.75")
	t.Setenv("API_BASE_PATH", "v2/")
	t.Setenv("WEBHOOK_BASE_URL", "https://api.menupix.example.com/")
	t.Setenv("SCRAPE_TTL", "1h")
	t.Setenv("LOG_LEVEL", "WARNING")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com ,")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if cfg.PricePerImage != 0.75 {
		t.Errorf("PricePerImage = %v", cfg.PricePerImage)
	}
	if cfg.APIBasePath != "/v2" {
		t.Errorf("base path not normalized: %q", cfg.APIBasePath)
	}
	if cfg.WebhookBaseURL != "https://api.menupix.example.com" {
		t.Errorf("webhook base not trimmed: %q", cfg.WebhookBaseURL)
	}
	if cfg.ScrapeTTL != time.Hour {
		t.Errorf("ScrapeTTL = %v", cfg.ScrapeTTL)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, warning must normalize to warn", cfg.LogLevel)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 {
		t.Errorf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		key, val string
	}{
		{"LOG_LEVEL", "verbose"},
		{"PRICE_PER_IMAGE", "-1"},
		{"PENDING_JOBS_LIMIT", "0"},
		{"PENDING_JOBS_MAX_CAP", "1"}, // below the default limit of 5
		{"RATE_BURST", "0"},
		{"SCRAPE_TTL", "-5m"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5"},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			t.Setenv(c.key, c.val)
			if _, err := Load(); err == nil {
				t.Fatalf("%s=%s must fail validation", c.key, c.val)
			}
		})
	}
}

func TestNormalizeBasePath(t *testing.T) {
	cases := []struct{ in, want string }{
		{"", "/"},
		{"/", "/"},
		{"api", "/api"},
		{"/api/v1/", "/api/v1"},
		{"  /api  ", "/api"},
	}
	for _, c := range cases {
		if got := normalizeBasePath(c.in); got != c.want {
			t.Errorf("normalizeBasePath(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}
