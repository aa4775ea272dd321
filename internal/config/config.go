// Copyright 2026 The Credentia Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

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

// Session store drivers
const (
	StorePostgres = "postgres"
	StoreRedis    = "redis"
	StoreMemory   = "memory"
)

// Mail drivers
const (
	MailSMTP = "smtp"
	MailLog  = "log"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Session       SessionConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	Mail          MailConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	// TrustProxy honours X-Forwarded-For / X-Real-IP. Enable only behind a proxy.
	TrustProxy bool
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	Database     string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SessionConfig holds session management configuration
type SessionConfig struct {
	Store           string
	SigningKey      string
	CookieName      string
	CookieDomain    string
	CookiePath      string
	CookieSecure    bool
	CookieSameSite  string
	Lifetime        time.Duration
	CleanupInterval time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
	SamplingRate   float64
}

// SecurityConfig holds credential policy configuration
type SecurityConfig struct {
	Argon2Memory       uint32
	Argon2Iterations   uint32
	Argon2Parallelism  uint8
	Argon2SaltLength   uint32
	Argon2KeyLength    uint32
	LockoutMaxAttempts int
	CodeLength         int
	MaxUpdateRetries   int
}

// MailConfig holds notifier configuration
type MailConfig struct {
	Driver        string
	Host          string
	Port          int
	Username      string
	Password      string
	From          string
	FromName      string
	Timeout       time.Duration
	NotifyTimeout time.Duration
	LogBody       bool
	SiteName      string
}

// LoadDotEnv loads a .env file into the environment if one exists. Variables
// already set are not overridden.
func LoadDotEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}
	return nil
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnv("SERVER_PORT", "8080"),
			ReadTimeout:     parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout:    parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:     parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
			RequestTimeout:  parseDuration("SERVER_REQUEST_TIMEOUT", "25s"),
			ShutdownTimeout: parseDuration("SERVER_SHUTDOWN_TIMEOUT", "30s"),
			TrustProxy:      parseBool("SERVER_TRUST_PROXY", false),
		},
		Database: LoadDatabase(),
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt("REDIS_DB", 0),
		},
		Session: SessionConfig{
			Store:           strings.ToLower(getEnv("SESSION_STORE", StorePostgres)),
			SigningKey:      getEnv("SESSION_SIGNING_KEY", ""),
			CookieName:      getEnv("SESSION_COOKIE_NAME", "credentia_session"),
			CookieDomain:    getEnv("SESSION_COOKIE_DOMAIN", ""),
			CookiePath:      getEnv("SESSION_COOKIE_PATH", "/"),
			CookieSecure:    parseBool("SESSION_COOKIE_SECURE", false),
			CookieSameSite:  getEnv("SESSION_COOKIE_SAME_SITE", "Lax"),
			Lifetime:        parseDuration("SESSION_LIFETIME", "10m"),
			CleanupInterval: parseDuration("SESSION_CLEANUP_INTERVAL", "5m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "credentia"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
			SamplingRate:   parseFloat("OTEL_SAMPLING_RATE", 1.0),
		},
		Security: SecurityConfig{
			Argon2Memory:       uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:   uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:  uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:   uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:    uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
			LockoutMaxAttempts: parseInt("SECURITY_LOCKOUT_MAX_ATTEMPTS", 3),
			CodeLength:         parseInt("SECURITY_CODE_LENGTH", 6),
			MaxUpdateRetries:   parseInt("SECURITY_MAX_UPDATE_RETRIES", 5),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		Mail: MailConfig{
			Driver:        strings.ToLower(getEnv("MAIL_DRIVER", MailLog)),
			Host:          getEnv("MAIL_HOST", ""),
			Port:          parseInt("MAIL_PORT", 587),
			Username:      getEnv("MAIL_USERNAME", ""),
			Password:      getEnv("MAIL_PASSWORD", ""),
			From:          getEnv("MAIL_FROM", "no-reply@localhost"),
			FromName:      getEnv("MAIL_FROM_NAME", "Credentia"),
			Timeout:       parseDuration("MAIL_TIMEOUT", "20s"),
			NotifyTimeout: parseDuration("NOTIFY_TIMEOUT", "25s"),
			LogBody:       parseBool("MAIL_LOG_BODY", false),
			SiteName:      getEnv("SITE_NAME", "Credentia"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadDatabase reads only the database section. Used by tools that need no
// other configuration.
func LoadDatabase() DatabaseConfig {
	return DatabaseConfig{
		Host:         getEnv("DB_HOST", "localhost"),
		Port:         getEnv("DB_PORT", "5432"),
		User:         getEnv("DB_USER", "credentia"),
		Password:     getEnv("DB_PASSWORD", ""),
		Database:     getEnv("DB_NAME", "credentia"),
		SSLMode:      getEnv("DB_SSLMODE", "disable"),
		MaxOpenConns: parseInt("DB_MAX_OPEN_CONNS", 25),
		MaxIdleConns: parseInt("DB_MAX_IDLE_CONNS", 5),
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errs []error

	switch c.Session.Store {
	case StorePostgres:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
	case StoreRedis:
		if c.Database.Password == "" {
			errs = append(errs, errors.New("DB_PASSWORD is required"))
		}
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required when SESSION_STORE=redis"))
		}
	case StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("SESSION_STORE must be one of postgres, redis, memory (got %q)", c.Session.Store))
	}

	if len(c.Session.SigningKey) < 32 {
		errs = append(errs, errors.New("SESSION_SIGNING_KEY must be at least 32 bytes"))
	}
	if c.Session.Lifetime <= 0 {
		errs = append(errs, errors.New("SESSION_LIFETIME must be positive"))
	}
	if c.Session.CleanupInterval < time.Second {
		errs = append(errs, errors.New("SESSION_CLEANUP_INTERVAL must be at least 1s"))
	}
	if c.Security.LockoutMaxAttempts < 1 {
		errs = append(errs, errors.New("SECURITY_LOCKOUT_MAX_ATTEMPTS must be at least 1"))
	}
	if c.Security.CodeLength < 4 {
		errs = append(errs, errors.New("SECURITY_CODE_LENGTH must be at least 4"))
	}

	switch c.Mail.Driver {
	case MailSMTP:
		if c.Mail.Host == "" {
			errs = append(errs, errors.New("MAIL_HOST is required when MAIL_DRIVER=smtp"))
		}
	case MailLog:
	default:
		errs = append(errs, fmt.Errorf("MAIL_DRIVER must be smtp or log (got %q)", c.Mail.Driver))
	}

	return errors.Join(errs...)
}

// Addr returns the HTTP listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}
