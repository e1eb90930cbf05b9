// Package config loads the service settings from the environment.
//
// Every variable has a default. Values that are set but cannot be parsed are
// errors rather than silently replaced, and Load reports all problems at once
// so a broken deployment is fixed in one pass.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/choukwa/choukwa-backend/internal/sysutil"
)

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string // CORS_ALLOWED_ORIGINS (comma separated)
}

// SecurityConfig holds transport security headers.
type SecurityConfig struct {
	EnableHSTS bool          // ENABLE_HSTS
	HSTSMaxAge time.Duration // HSTS_MAX_AGE
}

// OTELConfig configures trace export.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT, host:port
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE
	ServiceName string  // OTEL_SERVICE_NAME
	Environment string  // OTEL_DEPLOYMENT_ENVIRONMENT, e.g. "staging"
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0,1]
}

// DBConfig selects and locates the relational store.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres|mysql
	DSN    string // DB_DSN (postgres/mysql)
	Path   string // DB_PATH (sqlite)
}

// AuthConfig holds session token settings.
type AuthConfig struct {
	JWTSecret   string        // JWT_SECRET, at least 16 bytes
	TokenTTL    time.Duration // JWT_TTL
	AdminPhones []string      // ADMIN_PHONES (comma separated)

	// OTPGatewaySecret verifies the phone assertions signed by the OTP
	// gateway (OTP_GATEWAY_SECRET, at least 16 bytes, distinct from
	// JWT_SECRET).
	OTPGatewaySecret string
	OTPMaxAge        time.Duration // OTP_ASSERTION_MAX_AGE, longest accepted assertion lifetime
}

// RedisConfig locates the optional Redis instance. An empty Addr selects the
// in-process cache.
type RedisConfig struct {
	Addr     string        // REDIS_ADDR
	Password string        // REDIS_PASSWORD
	DB       int           // REDIS_DB
	CacheTTL time.Duration // CACHE_TTL
}

// EventsConfig configures change-notification fan-out. An empty RabbitURL
// keeps notifications in-process.
type EventsConfig struct {
	RabbitURL      string // RABBITMQ_URL
	RabbitExchange string // RABBITMQ_EXCHANGE
}

// Config is the complete service configuration.
type Config struct {
	Port              string        // PORT
	ReadTimeout       time.Duration // READ_TIMEOUT
	ReadHeaderTimeout time.Duration // READ_HEADER_TIMEOUT
	WriteTimeout      time.Duration // WRITE_TIMEOUT
	IdleTimeout       time.Duration // IDLE_TIMEOUT
	MaxHeaderBytes    int           // MAX_HEADER_BYTES
	GinMode           string        // GIN_MODE: debug|release|test

	LogLevel       string // LOG_LEVEL, normalised to zerolog's spelling
	LogPretty      bool   // LOG_PRETTY
	SwaggerEnabled bool   // SWAGGER_ENABLED
	APIBasePath    string // API_BASE_PATH

	DB          DBConfig
	SeedGeoPath string // SEED_GEO_PATH, Markdown table of wilayas and dairas

	ComplaintDailyLimit int           // COMPLAINT_DAILY_LIMIT per citizen, 0 disables
	OverdueAfter        time.Duration // OVERDUE_AFTER
	MaxContentRunes     int           // MAX_CONTENT_RUNES

	Auth   AuthConfig
	Redis  RedisConfig
	Events EventsConfig

	RateRPS   float64 // RATE_RPS, local token refill
	RateBurst int     // RATE_BURST
	// RatePerMinute caps requests per identity per minute across replicas
	// through the shared counter. 0 disables the cap.
	RatePerMinute int64 // RATE_PER_MINUTE

	CORS     CORSConfig
	Security SecurityConfig

	IdempotencyTTL time.Duration // IDEMPOTENCY_TTL

	OTEL OTELConfig
}

// MustLoad is Load for main packages that cannot run misconfigured.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, normalises the values and validates them.
// The returned error joins every problem found.
func Load() (Config, error) {
	var e env
	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.duration("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.duration("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.duration("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.duration("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    e.integer("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(e.str("GIN_MODE", "release")),

		LogLevel:       e.str("LOG_LEVEL", "info"),
		LogPretty:      e.flag("LOG_PRETTY", false),
		SwaggerEnabled: e.flag("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DB: DBConfig{
			Driver: strings.ToLower(e.str("DB_DRIVER", "sqlite")),
			DSN:    e.str("DB_DSN", ""),
			Path:   e.str("DB_PATH", "choukwa.db"),
		},
		SeedGeoPath: e.str("SEED_GEO_PATH", ""),

		ComplaintDailyLimit: e.integer("COMPLAINT_DAILY_LIMIT", 5),
		OverdueAfter:        e.duration("OVERDUE_AFTER", 7*24*time.Hour),
		MaxContentRunes:     e.integer("MAX_CONTENT_RUNES", 5000),

		Auth: AuthConfig{
			JWTSecret:   e.str("JWT_SECRET", ""),
			TokenTTL:    e.duration("JWT_TTL", 72*time.Hour),
			AdminPhones: e.list("ADMIN_PHONES"),

			OTPGatewaySecret: e.str("OTP_GATEWAY_SECRET", ""),
			OTPMaxAge:        e.duration("OTP_ASSERTION_MAX_AGE", 10*time.Minute),
		},
		Redis: RedisConfig{
			Addr:     e.str("REDIS_ADDR", ""),
			Password: e.str("REDIS_PASSWORD", ""),
			DB:       e.integer("REDIS_DB", 0),
			CacheTTL: e.duration("CACHE_TTL", 10*time.Minute),
		},
		Events: EventsConfig{
			RabbitURL:      e.str("RABBITMQ_URL", ""),
			RabbitExchange: e.str("RABBITMQ_EXCHANGE", "choukwa.events"),
		},

		RateRPS:       e.number("RATE_RPS", 5),
		RateBurst:     e.integer("RATE_BURST", 10),
		RatePerMinute: int64(e.integer("RATE_PER_MINUTE", 120)),

		CORS: CORSConfig{AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS")},
		Security: SecurityConfig{
			EnableHSTS: e.flag("ENABLE_HSTS", false),
			HSTSMaxAge: e.duration("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.duration("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.flag("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "choukwa-backend"),
			Environment: e.str("OTEL_DEPLOYMENT_ENVIRONMENT", ""),
			SampleRatio: e.number("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}
	if lvl, ok := sysutil.ParseLogLevel(cfg.LogLevel); ok {
		cfg.LogLevel = lvl.String()
	} else {
		e.fail("LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}

	errs := append(e.errs, cfg.validate()...)
	return cfg, errors.Join(errs...)
}

// validate checks ranges and cross-field rules of already parsed values.
func (cfg Config) validate() []error {
	var errs []error
	check := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, errors.New(msg))
		}
	}

	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")

	switch cfg.DB.Driver {
	case "sqlite":
		check(strings.TrimSpace(cfg.DB.Path) != "", "DB_PATH must not be empty")
	case "postgres", "mysql":
		check(strings.TrimSpace(cfg.DB.DSN) != "", "DB_DSN must be set for postgres and mysql")
	default:
		check(false, "DB_DRIVER must be one of: sqlite, postgres, mysql")
	}

	check(cfg.ComplaintDailyLimit >= 0, "COMPLAINT_DAILY_LIMIT must be >= 0")
	check(cfg.OverdueAfter > 0, "OVERDUE_AFTER must be > 0")
	check(cfg.MaxContentRunes > 0, "MAX_CONTENT_RUNES must be > 0")

	check(len(cfg.Auth.JWTSecret) >= 16, "JWT_SECRET must be at least 16 characters")
	check(cfg.Auth.TokenTTL > 0, "JWT_TTL must be > 0")
	check(len(cfg.Auth.OTPGatewaySecret) >= 16, "OTP_GATEWAY_SECRET must be at least 16 characters")
	check(cfg.Auth.OTPGatewaySecret == "" || cfg.Auth.OTPGatewaySecret != cfg.Auth.JWTSecret,
		"OTP_GATEWAY_SECRET must differ from JWT_SECRET")
	check(cfg.Auth.OTPMaxAge > 0 && cfg.Auth.OTPMaxAge <= time.Hour, "OTP_ASSERTION_MAX_AGE must be in (0, 1h]")
	check(cfg.Redis.CacheTTL > 0, "CACHE_TTL must be > 0")
	check(cfg.Redis.DB >= 0, "REDIS_DB must be >= 0")
	check(cfg.Events.RabbitURL == "" || strings.TrimSpace(cfg.Events.RabbitExchange) != "",
		"RABBITMQ_EXCHANGE must not be empty when RABBITMQ_URL is set")

	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.RatePerMinute >= 0, "RATE_PER_MINUTE must be >= 0")

	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	check(!cfg.OTEL.Enabled || strings.TrimSpace(cfg.OTEL.Endpoint) != "",
		"OTEL_EXPORTER_OTLP_ENDPOINT must be set when OTEL_ENABLED")
	return errs
}

// env reads variables and remembers the ones that failed to parse. Unset and
// empty variables take the default.
type env struct {
	errs []error
}

func (e *env) fail(format string, args ...any) {
	e.errs = append(e.errs, fmt.Errorf(format, args...))
}

func (e *env) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *env) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func (e *env) integer(key string, def int) int {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail("%s: %q is not an integer", key, v)
		return def
	}
	return n
}

func (e *env) number(key string, def float64) float64 {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail("%s: %q is not a number", key, v)
		return def
	}
	return f
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.fail("%s: %q is not a duration", key, v)
		return def
	}
	return d
}

func (e *env) flag(key string, def bool) bool {
	v, ok := e.lookup(key)
	if !ok {
		return def
	}
	if sysutil.IsTruthy(v) {
		return true
	}
	switch strings.ToLower(v) {
	case "0", "false", "no", "n", "off":
		return false
	}
	e.fail("%s: %q is not a boolean", key, v)
	return def
}

// list splits a comma separated list, dropping blanks. Unset yields nil.
func (e *env) list(key string) []string {
	v, ok := e.lookup(key)
	if !ok {
		return nil
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// normalizeBasePath returns p with one leading slash and no trailing slash;
// blank means "/".
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
