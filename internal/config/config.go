// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, scheduler intervals and
// batch limits, retry backoff, gateway connectivity, and observability.
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

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-post-scheduler")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// SchedulerConfig defines the periodic driver intervals, per-cycle batch
// limits, and the retry backoff policy.
type SchedulerConfig struct {
	DueCheckInterval  time.Duration // between due-post checks
	RetryInterval     time.Duration // between retry sweeps
	AnalyticsInterval time.Duration // between analytics refreshes

	DueBatchLimit       int // posts per due-check cycle
	RetryBatchLimit     int // queue entries per retry sweep
	AnalyticsBatchLimit int // posts per analytics refresh

	BackoffStep     time.Duration // linear backoff step (next = now + step*attempts)
	MaxAttempts     int           // default per-entry attempt ceiling
	AnalyticsWindow time.Duration // trailing window of posts to refresh
	ShutdownTimeout time.Duration // bound on draining in-flight jobs
}

// GatewayConfig defines connectivity to the remote publishing gateway.
type GatewayConfig struct {
	BaseURL     string        // Graph API base, e.g. "https://graph.threads.net/v1.0"
	Timeout     time.Duration // per-call HTTP timeout
	RPS         float64       // outbound rate limit, tokens per second
	Burst       int           // outbound rate limit burst
	BreakerName string        // circuit breaker identifier in logs/metrics

	// ClientCache bounds the per-owner authenticated client cache.
	ClientCacheSize int64         // max cached clients
	ClientCacheTTL  time.Duration // eviction TTL per cached client
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

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Scheduler core
	Scheduler SchedulerConfig

	// Publishing gateway
	Gateway GatewayConfig

	// Rate limiting (HTTP surface)
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

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

// Load reads configuration from environment variables,
// applies defaults, normalizes values, and validates the result.
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

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// App
		DBPath: getenv("DB_PATH", "app.db"),

		// Scheduler core
		Scheduler: SchedulerConfig{
			DueCheckInterval:  getdur("DUE_CHECK_INTERVAL", time.Minute),
			RetryInterval:     getdur("RETRY_INTERVAL", 5*time.Minute),
			AnalyticsInterval: getdur("ANALYTICS_INTERVAL", time.Hour),

			DueBatchLimit:       getint("DUE_BATCH_LIMIT", 10),
			RetryBatchLimit:     getint("RETRY_BATCH_LIMIT", 5),
			AnalyticsBatchLimit: getint("ANALYTICS_BATCH_LIMIT", 50),

			BackoffStep:     getdur("RETRY_BACKOFF_STEP", 5*time.Minute),
			MaxAttempts:     getint("RETRY_MAX_ATTEMPTS", 3),
			AnalyticsWindow: getdur("ANALYTICS_WINDOW", 7*24*time.Hour),
			ShutdownTimeout: getdur("SHUTDOWN_TIMEOUT", 30*time.Second),
		},

		// Publishing gateway
		Gateway: GatewayConfig{
			BaseURL:         getenv("GATEWAY_BASE_URL", "https://graph.threads.net/v1.0"),
			Timeout:         getdur("GATEWAY_TIMEOUT", 30*time.Second),
			RPS:             getfloat("GATEWAY_RPS", 5.0),
			Burst:           getint("GATEWAY_BURST", 10),
			BreakerName:     getenv("GATEWAY_BREAKER_NAME", "publishing-gateway"),
			ClientCacheSize: int64(getint("CLIENT_CACHE_SIZE", 256)),
			ClientCacheTTL:  getdur("CLIENT_CACHE_TTL", time.Hour),
		},

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Idempotency
		IdempotencyTTL: getdur("IDEMPOTENCY_TTL", 24*time.Hour),

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-post-scheduler"),
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
	s := cfg.Scheduler
	if s.DueCheckInterval <= 0 || s.RetryInterval <= 0 || s.AnalyticsInterval <= 0 {
		return cfg, errors.New("scheduler intervals must be positive durations")
	}
	if s.DueBatchLimit < 1 || s.RetryBatchLimit < 1 || s.AnalyticsBatchLimit < 1 {
		return cfg, errors.New("scheduler batch limits must be >= 1")
	}
	if s.BackoffStep <= 0 {
		return cfg, errors.New("RETRY_BACKOFF_STEP must be > 0")
	}
	if s.MaxAttempts < 1 {
		return cfg, errors.New("RETRY_MAX_ATTEMPTS must be >= 1")
	}
	if s.AnalyticsWindow <= 0 {
		return cfg, errors.New("ANALYTICS_WINDOW must be > 0")
	}
	if s.ShutdownTimeout <= 0 {
		return cfg, errors.New("SHUTDOWN_TIMEOUT must be > 0")
	}
	g := cfg.Gateway
	if strings.TrimSpace(g.BaseURL) == "" {
		return cfg, errors.New("GATEWAY_BASE_URL must not be empty")
	}
	if g.Timeout <= 0 {
		return cfg, errors.New("GATEWAY_TIMEOUT must be > 0")
	}
	if g.RPS <= 0 || g.Burst < 1 {
		return cfg, errors.New("GATEWAY_RPS must be > 0 and GATEWAY_BURST >= 1")
	}
	if g.ClientCacheSize < 1 {
		return cfg, errors.New("CLIENT_CACHE_SIZE must be >= 1")
	}
	if g.ClientCacheTTL <= 0 {
		return cfg, errors.New("CLIENT_CACHE_TTL must be > 0")
	}
	if cfg.RateRPS < 0 {
		return cfg, errors.New("RATE_RPS must be >= 0")
	}
	if cfg.RateBurst < 1 {
		return cfg, errors.New("RATE_BURST must be >= 1")
	}
	if cfg.Security.HSTSMaxAge < 0 {
		return cfg, errors.New("HSTS_MAX_AGE must be >= 0")
	}
	if cfg.IdempotencyTTL <= 0 {
		return cfg, errors.New("IDEMPOTENCY_TTL must be > 0")
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
