// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes server timeouts,
// logging, the database path, scraping and pricing knobs, rate limiting, and
// observability settings. Components receive an explicit Config (or a slice of
// it) at construction time; nothing reads ambient globals.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// NotifyConfig defines outbound email notification settings. Notifications
// are silently disabled when the API key is empty.
type NotifyConfig struct {
	SendGridAPIKey string // SENDGRID_API_KEY
	FromName       string // NOTIFY_FROM_NAME
	FromEmail      string // NOTIFY_FROM_EMAIL
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging
	LogLevel    string // debug|info|warn|error|fatal|panic
	LogPretty   bool   // pretty console logs in dev
	APIBasePath string // base path for API routes

	// App
	DBPath         string        // SQLite path
	PlatformHost   string        // host fragment a restaurant URL must contain
	ScrapeTTL      time.Duration // re-scrape a known restaurant after this age
	WebhookBaseURL string        // base URL for worker completion webhooks

	// Pricing
	PricePerImage     float64       // unit price per image
	MinutesPerImage   int           // processing-time estimate per image
	PendingJobsLimit  int           // default poll batch size for the worker
	PendingJobsMaxCap int           // hard upper bound on the poll limit
	RequeueMinAge     time.Duration // minimum older_than accepted by requeue

	// Rate limiting (inbound creation requests)
	RatePerMinute float64 // requests per minute per caller
	RateBurst     int     // bucket size (>= 1)

	// Web protection
	CORS CORSConfig

	// Notifications
	Notify NotifyConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration from environment variables, applies defaults,
// normalizes values, and validates the result.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging
		LogLevel:    strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:   getbool("LOG_PRETTY", false),
		APIBasePath: normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath:         getenv("DB_PATH", "menupix.db"),
		PlatformHost:   getenv("PLATFORM_HOST", "glovoapp.com"),
		ScrapeTTL:      getdur("SCRAPE_TTL", 24*time.Hour),
		WebhookBaseURL: strings.TrimRight(getenv("WEBHOOK_BASE_URL", "http://localhost:8080"), "/"),

		// Pricing
		PricePerImage:     getfloat("PRICE_PER_IMAGE", 0.50),
		MinutesPerImage:   getint("PROCESSING_TIME_PER_IMAGE", 2),
		PendingJobsLimit:  getint("PENDING_JOBS_LIMIT", 5),
		PendingJobsMaxCap: getint("PENDING_JOBS_MAX_CAP", 50),
		RequeueMinAge:     getdur("REQUEUE_MIN_AGE", 10*time.Minute),

		// Rate limiting
		RatePerMinute: getfloat("RATE_LIMIT_PER_MINUTE", 10),
		RateBurst:     getint("RATE_BURST", 5),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},

		// Notifications
		Notify: NotifyConfig{
			SendGridAPIKey: getenv("SENDGRID_API_KEY", ""),
			FromName:       getenv("NOTIFY_FROM_NAME", "MenuPix"),
			FromEmail:      getenv("NOTIFY_FROM_EMAIL", "no-reply@menupix.app"),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "menupix-backend"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// --- normalization ---
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	// --- validation ---
	switch cfg.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		return cfg, errors.New("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	if strings.TrimSpace(cfg.Port) == "" {
		return cfg, errors.New("PORT must not be empty")
	}
	if cfg.ReadTimeout <= 0 || cfg.ReadHeaderTimeout <= 0 || cfg.WriteTimeout <= 0 || cfg.IdleTimeout <= 0 {
		return cfg, errors.New("timeouts must be positive durations")
	}
	if cfg.MaxHeaderBytes <= 0 {
		return cfg, errors.New("MAX_HEADER_BYTES must be > 0")
	}
	if strings.TrimSpace(cfg.DBPath) == "" {
		return cfg, errors.New("DB_PATH must not be empty")
	}
	if strings.TrimSpace(cfg.PlatformHost) == "" {
		return cfg, errors.New("PLATFORM_HOST must not be empty")
	}
	if cfg.ScrapeTTL <= 0 {
		return cfg, errors.New("SCRAPE_TTL must be > 0")
	}
	if cfg.PricePerImage < 0 {
		return cfg, errors.New("PRICE_PER_IMAGE must be >= 0")
	}
	if cfg.MinutesPerImage < 0 {
		return cfg, errors.New("PROCESSING_TIME_PER_IMAGE must be >= 0")
	}
	if cfg.PendingJobsLimit < 1 {
		return cfg, errors.New("PENDING_JOBS_LIMIT must be >= 1")
	}
	if cfg.PendingJobsMaxCap < cfg.PendingJobsLimit {
		return cfg, errors.New("PENDING_JOBS_MAX_CAP must be >= PENDING_JOBS_LIMIT")
	}
	if cfg.RatePerMinute < 0 {
		return cfg, errors.New("RATE_LIMIT_PER_MINUTE must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.RequeueMinAge < 0 {
		return cfg, errors.New("REQUEUE_MIN_AGE must be >= 0")
	}
	if cfg.OTEL.SampleRatio < 0 || cfg.OTEL.SampleRatio > 1 {
		return cfg, errors.New("OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	}

	return cfg, nil
}

// ---- helpers (no external deps) ----

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		return v
	}
	return def
}

func getfloat(k string, def float64) float64 {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getint(k string, def int) int {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true
		case "0", "false", "no", "n", "off":
			return false
		}
	}
	return def
}

func getdur(k string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(k); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
