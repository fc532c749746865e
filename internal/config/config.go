// Package config provides configuration management for the token pulse services.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Ingest   IngestConfig
	Sweep    SweepConfig
	Feeds    FeedsConfig
	Cache    CacheConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
	Host string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Postgres   PostgresConfig
	ClickHouse ClickHouseConfig
	Redis      RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
}

// ClickHouseConfig holds ClickHouse configuration
type ClickHouseConfig struct {
	Host     string
	Port     string
	Database string
	User     string
	Password string
	Enabled  bool
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// IngestConfig holds ingestion batcher configuration
type IngestConfig struct {
	BatchSize     int           // Flush when the buffer reaches this many items
	FlushInterval time.Duration // Flush at least this often
	BufferSize    int           // Bounded buffer capacity
	DropOldest    bool          // On a full buffer, drop the oldest item instead of blocking
	RetryAttempts int           // Batch write retry ceiling before item-by-item replay
}

// SweepConfig holds market sweep configuration
type SweepConfig struct {
	Interval    time.Duration // Delay between consecutive sweeps
	Concurrency int           // Maximum in-flight reconciliations
	MinDelay    time.Duration // Lower bound of the per-token jitter window
	MaxDelay    time.Duration // Upper bound of the per-token jitter window
	Limit       int           // Maximum tokens per sweep, 0 for all
	MaxErrors   int           // Cap on errors kept in a sweep report
	Shuffle     bool          // Shuffle keys instead of priority ordering
}

// FeedsConfig holds external market data feed configuration
type FeedsConfig struct {
	DexScreenerBaseURL   string
	DexScreenerRPM       int    // Requests per minute budget for the pairs API
	GeckoTerminalBaseURL string // Secondary source for delisting verification, optional
	HeliusRPCURL         string // Solana holder counts, optional
	HeliusAPIKey         string
	HolderPageSize       int
	HolderMaxPages       int
	RequestTimeout       time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	ReachTTL       time.Duration // TTL for computed community reach values
	MemberCountTTL time.Duration // TTL for channel member counts
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "token_pulse"),
				User:           getEnv("POSTGRES_USER", "pulse"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 50),
			},
			ClickHouse: ClickHouseConfig{
				Host:     getEnv("CLICKHOUSE_HOST", "localhost"),
				Port:     getEnv("CLICKHOUSE_PORT", "9000"),
				Database: getEnv("CLICKHOUSE_DB", "token_pulse"),
				User:     getEnv("CLICKHOUSE_USER", "default"),
				Password: getEnv("CLICKHOUSE_PASSWORD", ""),
				Enabled:  getEnvAsBool("CLICKHOUSE_ENABLED", false),
			},
			Redis: RedisConfig{
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Ingest: IngestConfig{
			BatchSize:     getEnvAsInt("INGEST_BATCH_SIZE", 50),
			FlushInterval: getEnvAsDuration("INGEST_FLUSH_INTERVAL", 10*time.Second),
			BufferSize:    getEnvAsInt("INGEST_BUFFER_SIZE", 1000),
			DropOldest:    getEnvAsBool("INGEST_DROP_OLDEST", false),
			RetryAttempts: getEnvAsInt("INGEST_RETRY_ATTEMPTS", 5),
		},
		Sweep: SweepConfig{
			Interval:    getEnvAsDuration("SWEEP_INTERVAL", 5*time.Minute),
			Concurrency: getEnvAsInt("SWEEP_CONCURRENCY", 3),
			MinDelay:    getEnvAsDuration("SWEEP_MIN_DELAY", 500*time.Millisecond),
			MaxDelay:    getEnvAsDuration("SWEEP_MAX_DELAY", 2*time.Second),
			Limit:       getEnvAsInt("SWEEP_LIMIT", 0),
			MaxErrors:   getEnvAsInt("SWEEP_MAX_ERRORS", 50),
			Shuffle:     getEnvAsBool("SWEEP_SHUFFLE", false),
		},
		Feeds: FeedsConfig{
			DexScreenerBaseURL:   getEnv("DEXSCREENER_BASE_URL", "https://api.dexscreener.com"),
			DexScreenerRPM:       getEnvAsInt("DEXSCREENER_RPM", 300),
			GeckoTerminalBaseURL: getEnv("GECKOTERMINAL_BASE_URL", ""),
			HeliusRPCURL:         getEnv("HELIUS_RPC_URL", ""),
			HeliusAPIKey:         getEnv("HELIUS_API_KEY", ""),
			HolderPageSize:       getEnvAsInt("HOLDER_PAGE_SIZE", 1000),
			HolderMaxPages:       getEnvAsInt("HOLDER_MAX_PAGES", 10),
			RequestTimeout:       getEnvAsDuration("FEED_REQUEST_TIMEOUT", 15*time.Second),
		},
		Cache: CacheConfig{
			ReachTTL:       getEnvAsDuration("CACHE_REACH_TTL", 5*time.Minute),
			MemberCountTTL: getEnvAsDuration("CACHE_MEMBER_COUNT_TTL", 5*time.Minute),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	return config, nil
}

// ValidateSweep checks the configuration needed to run market sweeps.
// A missing primary market source is fatal; everything else has defaults.
func (c *Config) ValidateSweep() error {
	if c.Feeds.DexScreenerBaseURL == "" {
		return fmt.Errorf("no market data source configured: DEXSCREENER_BASE_URL is empty")
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep concurrency must be positive, got %d", c.Sweep.Concurrency)
	}
	if c.Sweep.MinDelay > c.Sweep.MaxDelay {
		return fmt.Errorf("sweep min delay %v exceeds max delay %v", c.Sweep.MinDelay, c.Sweep.MaxDelay)
	}
	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
