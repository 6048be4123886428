// Package common provides shared utilities for Intellivest
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Intellivest
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Clients     ClientsConfig `toml:"clients"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Storage backends
const (
	BackendSurrealDB = "surrealdb"
	BackendRedis     = "redis"
	BackendMemory    = "memory"
)

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Backend   string      `toml:"backend"` // "surrealdb" (default), "redis", "memory"
	Address   string      `toml:"address"` // SurrealDB RPC address, e.g. ws://localhost:8000/rpc
	Namespace string      `toml:"namespace"`
	Database  string      `toml:"database"`
	Username  string      `toml:"username"`
	Password  string      `toml:"password"`
	Redis     RedisConfig `toml:"redis"`
}

// RedisConfig holds Redis connection settings for the redis backend.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
	Prefix   string `toml:"prefix"` // key and channel prefix
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	EODHD  EODHDConfig  `toml:"eodhd"`
	Quotes QuotesConfig `toml:"quotes"`
}

// EODHDConfig holds EODHD API configuration
type EODHDConfig struct {
	BaseURL   string `toml:"base_url"`
	APIKey    string `toml:"api_key"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *EODHDConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// Quote sources
const (
	QuoteSourceEODHD    = "eodhd"
	QuoteSourcePriceAPI = "priceapi"
	QuoteSourceRandom   = "random"
)

// QuotesConfig controls how the price snapshot is refreshed.
type QuotesConfig struct {
	Source          string `toml:"source"`     // "eodhd" (default), "priceapi", "random"
	BatchSize       int    `toml:"batch_size"` // tickers per upstream request
	PriceAPIURL     string `toml:"price_api_url"`
	RefreshInterval string `toml:"refresh_interval"` // empty or "0" disables the scheduler
	MarketHoursOnly bool   `toml:"market_hours_only"`
}

// GetRefreshInterval parses the scheduler interval. Zero means disabled.
func (c *QuotesConfig) GetRefreshInterval() time.Duration {
	if c.RefreshInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.RefreshInterval)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "console" or "json"
}

// DefaultBatchSize is the number of tickers sent per upstream quote request.
const DefaultBatchSize = 50

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5001,
		},
		Storage: StorageConfig{
			Backend:   BackendSurrealDB,
			Address:   "ws://localhost:8000/rpc",
			Namespace: "intellivest",
			Database:  "portfolio",
			Username:  "root",
			Password:  "root",
			Redis: RedisConfig{
				Addr:   "localhost:6379",
				Prefix: "intellivest",
			},
		},
		Clients: ClientsConfig{
			EODHD: EODHDConfig{
				BaseURL:   "https://eodhd.com/api",
				RateLimit: 10,
				Timeout:   "30s",
			},
			Quotes: QuotesConfig{
				Source:    QuoteSourceEODHD,
				BatchSize: DefaultBatchSize,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides
func LoadConfig(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	normalize(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("INTELLIVEST_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("INTELLIVEST_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("INTELLIVEST_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("INTELLIVEST_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if backend := os.Getenv("INTELLIVEST_STORAGE_BACKEND"); backend != "" {
		config.Storage.Backend = backend
	}
	if addr := os.Getenv("INTELLIVEST_STORAGE_ADDRESS"); addr != "" {
		config.Storage.Address = addr
	}
	if addr := os.Getenv("INTELLIVEST_REDIS_ADDR"); addr != "" {
		config.Storage.Redis.Addr = addr
	}

	if key := os.Getenv("EODHD_API_KEY"); key != "" {
		config.Clients.EODHD.APIKey = key
	}
	if key := os.Getenv("INTELLIVEST_EODHD_API_KEY"); key != "" {
		config.Clients.EODHD.APIKey = key
	}

	if src := os.Getenv("INTELLIVEST_QUOTES_SOURCE"); src != "" {
		config.Clients.Quotes.Source = src
	}
	if u := os.Getenv("INTELLIVEST_PRICE_API_URL"); u != "" {
		config.Clients.Quotes.PriceAPIURL = u
	}
	if iv := os.Getenv("INTELLIVEST_REFRESH_INTERVAL"); iv != "" {
		config.Clients.Quotes.RefreshInterval = iv
	}
}

// normalize lower-cases enum-like fields and restores defaults for unusable values.
func normalize(config *Config) {
	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	switch config.Storage.Backend {
	case BackendSurrealDB, BackendRedis, BackendMemory:
	default:
		config.Storage.Backend = BackendSurrealDB
	}

	config.Clients.Quotes.Source = strings.ToLower(strings.TrimSpace(config.Clients.Quotes.Source))
	switch config.Clients.Quotes.Source {
	case QuoteSourceEODHD, QuoteSourcePriceAPI, QuoteSourceRandom:
	default:
		config.Clients.Quotes.Source = QuoteSourceEODHD
	}

	if config.Clients.Quotes.BatchSize <= 0 {
		config.Clients.Quotes.BatchSize = DefaultBatchSize
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of settings that the selected
// quote source cannot run without.
func (c *Config) ValidateRequired() []string {
	var missing []string
	switch c.Clients.Quotes.Source {
	case QuoteSourceEODHD:
		if c.Clients.EODHD.APIKey == "" {
			missing = append(missing, "clients.eodhd.api_key")
		}
	case QuoteSourcePriceAPI:
		if c.Clients.Quotes.PriceAPIURL == "" {
			missing = append(missing, "clients.quotes.price_api_url")
		}
	}
	if c.Storage.Backend == BackendSurrealDB && c.Storage.Address == "" {
		missing = append(missing, "storage.address")
	}
	if c.Storage.Backend == BackendRedis && c.Storage.Redis.Addr == "" {
		missing = append(missing, "storage.redis.addr")
	}
	return missing
}
