package model

import (
	"errors"
	"fmt"
	"time"
)

// Configuration validation errors.
var (
	ErrInvalidWorkers      = errors.New("concurrency.workers must be between 1 and 32")
	ErrInvalidTimeout      = errors.New("http.timeout must be positive")
	ErrInvalidLookback     = errors.New("monitor.lookback_days must be at least 1")
	ErrInvalidContentCap   = errors.New("monitor.max_content_length must be at least dedupe_prefix")
	ErrInvalidCacheBackend = errors.New("cache.backend must be 'memory' or 'redis'")
	ErrMissingRedisAddr    = errors.New("cache.redis_addr is required for the redis backend")
	ErrInvalidStoreDriver  = errors.New("store.driver must be 'postgres' or 'sqlite3'")
	ErrMissingStoreDSN     = errors.New("store.dsn is required")
	ErrInvalidLogLevel     = errors.New("logging.level must be one of: debug, info, warn, error")
)

// Config is the complete gazette configuration
type Config struct {
	HTTP        HTTPConfig        `mapstructure:"http" yaml:"http"`
	Concurrency ConcurrencyConfig `mapstructure:"concurrency" yaml:"concurrency"`
	Monitor     MonitorConfig     `mapstructure:"monitor" yaml:"monitor"`
	Cache       CacheConfig       `mapstructure:"cache" yaml:"cache"`
	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Logging     LoggingConfig     `mapstructure:"logging" yaml:"logging"`
}

// HTTPConfig controls the shared upstream client
type HTTPConfig struct {
	Timeout      time.Duration `mapstructure:"timeout" yaml:"timeout"` // Per request, per source
	UserAgent    string        `mapstructure:"user_agent" yaml:"user_agent"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes" yaml:"max_body_bytes"`
	HTTPProxy    string        `mapstructure:"http_proxy" yaml:"http_proxy,omitempty"`
	HTTPSProxy   string        `mapstructure:"https_proxy" yaml:"https_proxy,omitempty"`
}

// ConcurrencyConfig sizes the fan-out pool
type ConcurrencyConfig struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// MonitorConfig controls what one run queries and how records are shaped
type MonitorConfig struct {
	LookbackDays     int           `mapstructure:"lookback_days" yaml:"lookback_days"`
	RunTimeout       time.Duration `mapstructure:"run_timeout" yaml:"run_timeout"`
	SourcesFile      string        `mapstructure:"sources_file" yaml:"sources_file,omitempty"`
	MaxContentLength int           `mapstructure:"max_content_length" yaml:"max_content_length"`
	MaxTitleLength   int           `mapstructure:"max_title_length" yaml:"max_title_length"`
	DedupePrefix     int           `mapstructure:"dedupe_prefix" yaml:"dedupe_prefix"`
}

// CacheConfig selects the credential cache backend
type CacheConfig struct {
	Backend         string        `mapstructure:"backend" yaml:"backend"`
	DefaultTTL      time.Duration `mapstructure:"default_ttl" yaml:"default_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" yaml:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr" yaml:"redis_addr,omitempty"`
	RedisPassword   string        `mapstructure:"redis_password" yaml:"-"`
	RedisDB         int           `mapstructure:"redis_db" yaml:"redis_db,omitempty"`
}

// StoreConfig points at the persistence gateway
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	DSN    string `mapstructure:"dsn" yaml:"dsn"`
}

// LoggingConfig defines logging behavior.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		HTTP: HTTPConfig{
			Timeout:      25 * time.Second,
			UserAgent:    "Gazette/0.3 (+https://github.com/ppiankov/gazette)",
			MaxBodyBytes: 8 << 20,
		},
		Concurrency: ConcurrencyConfig{
			Workers: 8,
		},
		Monitor: MonitorConfig{
			LookbackDays:     7,
			RunTimeout:       5 * time.Minute,
			MaxContentLength: 5000,
			MaxTitleLength:   300,
			DedupePrefix:     200,
		},
		Cache: CacheConfig{
			Backend:         "memory",
			DefaultTTL:      50 * time.Minute,
			CleanupInterval: 10 * time.Minute,
		},
		Store: StoreConfig{
			Driver: "sqlite3",
			DSN:    "file:gazette.db?_foreign_keys=on",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for values the monitor cannot run with
func (c *Config) Validate() error {
	if c.Concurrency.Workers < 1 || c.Concurrency.Workers > 32 {
		return fmt.Errorf("%w: got %d", ErrInvalidWorkers, c.Concurrency.Workers)
	}

	if c.HTTP.Timeout <= 0 {
		return ErrInvalidTimeout
	}

	if c.Monitor.LookbackDays < 1 {
		return ErrInvalidLookback
	}

	if c.Monitor.MaxContentLength < c.Monitor.DedupePrefix {
		return ErrInvalidContentCap
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return ErrMissingRedisAddr
		}
	default:
		return ErrInvalidCacheBackend
	}

	if c.Store.Driver != "postgres" && c.Store.Driver != "sqlite3" {
		return ErrInvalidStoreDriver
	}

	if c.Store.DSN == "" {
		return ErrMissingStoreDSN
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return ErrInvalidLogLevel
	}

	return nil
}
