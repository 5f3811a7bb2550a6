// Package config reads service configuration from the environment. A .env
// file in the working directory is loaded first; real environment variables
// win over it.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const minSecretLength = 32

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	Environment     string
	LogLevel        string
}

type Database struct {
	URL          string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds connection settings for the shared Redis instance.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Kafka struct {
	Brokers    string
	AuditTopic string
}

// Auth holds session signing settings. PreviousSecret keeps tokens signed
// before a key rotation valid until they expire.
type Auth struct {
	JWTSecret      string
	KeyVersion     int
	PreviousSecret string
	Issuer         string
	SessionTTL     time.Duration
}

type MFA struct {
	Issuer       string
	ChallengeTTL time.Duration
}

type Lockout struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// RateLimit holds the per-client-IP request budgets, per minute.
type RateLimit struct {
	Enabled        bool
	AuthPerMinute  int
	ReadPerMinute  int
	WritePerMinute int
}

type Tracing struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

// Credential is a principal the conformance suite signs in as.
type Credential struct {
	Email    string
	Password string
}

type Conformance struct {
	Customer Credential
	Analyst  Credential
	Admin    Credential
}

type Config struct {
	Server          Server
	Database        Database
	Redis           RedisConfig
	Kafka           Kafka
	Auth            Auth
	MFA             MFA
	Lockout         Lockout
	RateLimit       RateLimit
	Tracing         Tracing
	Conformance     Conformance
	UpstreamTimeout time.Duration
}

// Load reads a .env file if present and builds the configuration.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []error
	cfg := Config{
		Server: Server{
			Addr:            getenv("DIGITALBANK_ADDR", ":8080"),
			ShutdownTimeout: durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second, &errs),
			Environment:     getenv("ENVIRONMENT", "development"),
			LogLevel:        getenv("LOG_LEVEL", "info"),
		},
		Database: Database{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: intEnv("DATABASE_MAX_OPEN_CONNS", 20, &errs),
			MaxIdleConns: intEnv("DATABASE_MAX_IDLE_CONNS", 5, &errs),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10, &errs),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2, &errs),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second, &errs),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second, &errs),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second, &errs),
		},
		Kafka: Kafka{
			Brokers:    os.Getenv("KAFKA_BROKERS"),
			AuditTopic: getenv("AUDIT_TOPIC", "digitalbank.audit"),
		},
		Auth: Auth{
			JWTSecret:      os.Getenv("JWT_SECRET"),
			KeyVersion:     intEnv("JWT_KEY_VERSION", 1, &errs),
			PreviousSecret: os.Getenv("JWT_PREVIOUS_SECRET"),
			Issuer:         getenv("JWT_ISSUER", "digitalbank"),
			SessionTTL:     durationEnv("SESSION_TTL", 24*time.Hour, &errs),
		},
		MFA: MFA{
			Issuer:       getenv("MFA_ISSUER", "DigitalBank"),
			ChallengeTTL: durationEnv("MFA_CHALLENGE_TTL", 5*time.Minute, &errs),
		},
		Lockout: Lockout{
			MaxAttempts:  intEnv("LOGIN_MAX_ATTEMPTS", 5, &errs),
			Window:       durationEnv("LOGIN_WINDOW", 15*time.Minute, &errs),
			LockDuration: durationEnv("LOGIN_LOCK_DURATION", 15*time.Minute, &errs),
		},
		RateLimit: RateLimit{
			Enabled:        boolEnv("RATE_LIMIT_ENABLED", true, &errs),
			AuthPerMinute:  intEnv("RATE_LIMIT_AUTH_PER_MINUTE", 20, &errs),
			ReadPerMinute:  intEnv("RATE_LIMIT_READ_PER_MINUTE", 300, &errs),
			WritePerMinute: intEnv("RATE_LIMIT_WRITE_PER_MINUTE", 60, &errs),
		},
		Tracing: Tracing{
			Enabled:    boolEnv("OTEL_ENABLED", false, &errs),
			Endpoint:   getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			SampleRate: floatEnv("OTEL_SAMPLE_RATE", 1.0, &errs),
		},
		Conformance: Conformance{
			Customer: Credential{Email: os.Getenv("CUSTOMER_EMAIL"), Password: os.Getenv("CUSTOMER_PASSWORD")},
			Analyst:  Credential{Email: os.Getenv("ANALYST_EMAIL"), Password: os.Getenv("ANALYST_PASSWORD")},
			Admin:    Credential{Email: os.Getenv("ADMIN_EMAIL"), Password: os.Getenv("ADMIN_PASSWORD")},
		},
		UpstreamTimeout: durationEnv("UPSTREAM_TIMEOUT", 3*time.Second, &errs),
	}
	return cfg, errors.Join(errs...)
}

// Validate reports every setting the service cannot start with.
func (c Config) Validate() error {
	var errs []error
	if len(c.Auth.JWTSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.PreviousSecret != "" && len(c.Auth.PreviousSecret) < minSecretLength {
		errs = append(errs, fmt.Errorf("JWT_PREVIOUS_SECRET must be at least %d bytes", minSecretLength))
	}
	if c.Auth.PreviousSecret != "" && c.Auth.KeyVersion < 2 {
		errs = append(errs, errors.New("JWT_KEY_VERSION must be at least 2 when JWT_PREVIOUS_SECRET is set"))
	}
	if c.Auth.KeyVersion < 1 {
		errs = append(errs, errors.New("JWT_KEY_VERSION must be positive"))
	}
	if c.Auth.SessionTTL <= 0 {
		errs = append(errs, errors.New("SESSION_TTL must be positive"))
	}
	if c.Lockout.MaxAttempts < 1 {
		errs = append(errs, errors.New("LOGIN_MAX_ATTEMPTS must be positive"))
	}
	if c.RateLimit.Enabled && (c.RateLimit.AuthPerMinute < 1 || c.RateLimit.ReadPerMinute < 1 || c.RateLimit.WritePerMinute < 1) {
		errs = append(errs, errors.New("RATE_LIMIT_*_PER_MINUTE must be positive when rate limiting is enabled"))
	}
	if c.UpstreamTimeout <= 0 {
		errs = append(errs, errors.New("UPSTREAM_TIMEOUT must be positive"))
	}
	if c.Kafka.Brokers != "" && c.Database.URL == "" {
		errs = append(errs, errors.New("KAFKA_BROKERS requires DATABASE_URL: the audit relay reads the PostgreSQL outbox"))
	}
	return errors.Join(errs...)
}

// MissingConformance lists the conformance credentials that are not set.
func (c Config) MissingConformance() []string {
	var missing []string
	check := func(prefix string, cred Credential) {
		if cred.Email == "" {
			missing = append(missing, prefix+"_EMAIL")
		}
		if cred.Password == "" {
			missing = append(missing, prefix+"_PASSWORD")
		}
	}
	check("CUSTOMER", c.Conformance.Customer)
	check("ANALYST", c.Conformance.Analyst)
	check("ADMIN", c.Conformance.Admin)
	return missing
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration, errs *[]error) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return d
}

func intEnv(key string, fallback int, errs *[]error) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool, errs *[]error) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return b
}

func floatEnv(key string, fallback float64, errs *[]error) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return fallback
	}
	return f
}
