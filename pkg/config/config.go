package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read through this package.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database (primary snapshot backend + warehouse)
	Database DatabaseConfig

	// Redis (memo cache, shared rate limits)
	Redis RedisConfig

	// External data provider
	Finviz FinvizConfig

	// Local snapshot storage
	Storage StorageConfig

	// Scheduled refresh
	Cron CronConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// DatabaseConfig holds PostgreSQL configuration.
// An empty URL disables the Postgres snapshot backend; the
// repository then runs on local storage alone.
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// FinvizConfig holds the Finviz Elite export API configuration
type FinvizConfig struct {
	BaseURL    string
	APIKey     string
	Filter     string        // screener filter passed on every export call
	FetchDelay time.Duration // minimum delay between successive view fetches
}

// StorageConfig holds local snapshot storage configuration
type StorageConfig struct {
	DataDir    string
	IncludeRaw bool // embed raw view tables in persisted snapshots (legacy export variant)
}

// CronConfig holds scheduled-refresh configuration
type CronConfig struct {
	Schedule string // cron expression for the refresh job
	Secret   string // bearer token required by POST /api/refresh when set
}

// Load reads configuration from environment variables.
// This is the only package that calls os.Getenv().
func Load() (*Config, error) {
	return LoadFrom("")
}

// LoadFrom reads configuration like Load but sources the given env
// file instead of searching the default locations. An empty path
// keeps the default search.
func LoadFrom(path string) (*Config, error) {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return nil, fmt.Errorf("load env file %s: %w", path, err)
		}
	} else {
		loadEnvFile()
	}

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8080"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// Finviz
		Finviz: FinvizConfig{
			BaseURL:    getEnv("FINVIZ_API_URL", "https://elite.finviz.com/export.ashx"),
			APIKey:     getEnv("FINVIZ_API_KEY", ""),
			Filter:     getEnv("FINVIZ_FILTER", "cap_midover"),
			FetchDelay: getEnvAsDuration("FINVIZ_FETCH_DELAY", "2s"),
		},

		// Storage
		Storage: StorageConfig{
			DataDir:    getEnv("DATA_DIR", "data"),
			IncludeRaw: getEnvAsBool("SNAPSHOT_INCLUDE_RAW", false),
		},

		// Cron
		Cron: CronConfig{
			Schedule: getEnv("CRON_SCHEDULE", "0 30 21 * * 1-5"),
			Secret:   getEnv("CRON_SECRET", ""),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Finviz.FetchDelay < 0 {
		return fmt.Errorf("FINVIZ_FETCH_DELAY must not be negative")
	}

	if c.Storage.DataDir == "" {
		return fmt.Errorf("DATA_DIR must not be empty")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
