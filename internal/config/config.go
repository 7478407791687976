package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Backends selectable through the environment.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendLocal    = "local"
	BackendLog      = "log"
)

// Config holds all configuration for the application.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	NewRelic  NewRelicConfig
	Dispatch  DispatchConfig
	Session   SessionConfig
	Lock      LockConfig
	Messaging MessagingConfig
	LogLevel  string
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Backend  string
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// NewRelicConfig holds New Relic configuration.
type NewRelicConfig struct {
	AppName    string
	LicenseKey string
	Enabled    bool
}

// DispatchConfig holds the business settings of the dispatcher.
type DispatchConfig struct {
	AdminIDs    []int64
	ServiceCity string
}

// SessionConfig selects where conversation state is kept.
type SessionConfig struct {
	Backend string
	TTL     time.Duration
}

// LockConfig selects the lock implementation and its timings.
type LockConfig struct {
	Backend string
	TTL     time.Duration
	Wait    time.Duration
}

// MessagingConfig selects the outbound messaging channel.
type MessagingConfig struct {
	Backend   string
	Stream    string
	StreamLen int64
}

// NeedsRedis reports whether any backend requires a Redis connection.
func (c *Config) NeedsRedis() bool {
	return c.Session.Backend == BackendRedis ||
		c.Lock.Backend == BackendRedis ||
		c.Messaging.Backend == BackendRedis
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	return load(os.LookupEnv)
}

type envLookup func(string) (string, bool)

func load(lookup envLookup) (*Config, error) {
	env := getter{lookup: lookup}
	adminIDs, err := env.int64List("ADMIN_IDS")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            env.str("SERVER_PORT", "8080"),
			ReadTimeout:     env.duration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    env.duration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			ShutdownTimeout: env.duration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Database: DatabaseConfig{
			Backend:  env.str("STORAGE_BACKEND", BackendPostgres),
			Host:     env.str("DB_HOST", "localhost"),
			Port:     env.str("DB_PORT", "5432"),
			User:     env.str("DB_USER", "postgres"),
			Password: env.str("DB_PASSWORD", "postgres"),
			DBName:   env.str("DB_NAME", "taxi_dispatch"),
			SSLMode:  env.str("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     env.str("REDIS_ADDR", "localhost:6379"),
			Password: env.str("REDIS_PASSWORD", ""),
			DB:       env.int("REDIS_DB", 0),
		},
		NewRelic: NewRelicConfig{
			AppName:    env.str("NEW_RELIC_APP_NAME", "taxi-dispatch"),
			LicenseKey: env.str("NEW_RELIC_LICENSE_KEY", ""),
			Enabled:    env.bool("NEW_RELIC_ENABLED", false),
		},
		Dispatch: DispatchConfig{
			AdminIDs:    adminIDs,
			ServiceCity: env.str("SERVICE_CITY", ""),
		},
		Session: SessionConfig{
			Backend: env.str("SESSION_BACKEND", BackendRedis),
			TTL:     env.duration("SESSION_TTL", 24*time.Hour),
		},
		Lock: LockConfig{
			Backend: env.str("LOCK_BACKEND", BackendRedis),
			TTL:     env.duration("LOCK_TTL", 10*time.Second),
			Wait:    env.duration("LOCK_WAIT", 3*time.Second),
		},
		Messaging: MessagingConfig{
			Backend:   env.str("MESSAGING_BACKEND", BackendLog),
			Stream:    env.str("MESSAGING_STREAM", "dispatch:outbox"),
			StreamLen: int64(env.int("MESSAGING_STREAM_LEN", 10000)),
		},
		LogLevel: env.str("LOG_LEVEL", "info"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects unknown backends and inconsistent combinations.
func (c *Config) Validate() error {
	var errs []error
	check := func(name, value string, allowed ...string) {
		for _, a := range allowed {
			if value == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: unsupported value %q", name, value))
	}
	check("STORAGE_BACKEND", c.Database.Backend, BackendPostgres, BackendMemory)
	check("SESSION_BACKEND", c.Session.Backend, BackendRedis, BackendMemory)
	check("LOCK_BACKEND", c.Lock.Backend, BackendRedis, BackendLocal)
	check("MESSAGING_BACKEND", c.Messaging.Backend, BackendLog, BackendRedis)

	if c.Lock.Wait <= 0 {
		errs = append(errs, errors.New("LOCK_WAIT must be positive"))
	}
	if c.Lock.Backend == BackendRedis && c.Lock.TTL <= c.Lock.Wait {
		errs = append(errs, errors.New("LOCK_TTL must exceed LOCK_WAIT"))
	}
	if c.Session.TTL < 0 {
		errs = append(errs, errors.New("SESSION_TTL must not be negative"))
	}
	if c.Messaging.Backend == BackendRedis && c.Messaging.Stream == "" {
		errs = append(errs, errors.New("MESSAGING_STREAM is required for the redis channel"))
	}
	if c.NewRelic.Enabled && c.NewRelic.LicenseKey == "" {
		errs = append(errs, errors.New("NEW_RELIC_LICENSE_KEY is required when New Relic is enabled"))
	}
	return errors.Join(errs...)
}

type getter struct {
	lookup envLookup
}

func (g getter) str(key, defaultValue string) string {
	if value, ok := g.lookup(key); ok && value != "" {
		return value
	}
	return defaultValue
}

func (g getter) int(key string, defaultValue int) int {
	if value, ok := g.lookup(key); ok && value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (g getter) bool(key string, defaultValue bool) bool {
	if value, ok := g.lookup(key); ok && value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func (g getter) duration(key string, defaultValue time.Duration) time.Duration {
	if value, ok := g.lookup(key); ok && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// int64List parses a comma separated list of chat IDs.
func (g getter) int64List(key string) ([]int64, error) {
	value, ok := g.lookup(key)
	if !ok || strings.TrimSpace(value) == "" {
		return nil, nil
	}
	var out []int64
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%s: invalid id %q", key, part)
		}
		out = append(out, id)
	}
	return out, nil
}
