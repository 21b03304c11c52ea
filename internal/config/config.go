// Package config handles application configuration loading from environment
// variables. It provides a centralized Config struct used across the application.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Category sources selectable with CATEGORY_SOURCE.
const (
	CategorySourceCSV      = "csv"
	CategorySourceS3       = "s3"
	CategorySourcePostgres = "postgres"
)

// Config holds all application configuration values loaded from the environment.
type Config struct {
	// Server settings
	Host string
	Port string
	Env  string // "development", "production", "testing"

	// PostgreSQL connection
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	// Valkey (Redis-compatible cache)
	ValkeyHost     string
	ValkeyPort     string
	ValkeyPassword string

	// Kassal product API
	KassalToken        string
	KassalBaseURL      string
	KassalPageSize     int
	KassalRateLimit    int // requests per KassalRateWindow, 0 disables
	KassalRateWindow   time.Duration
	KassalTimeout      time.Duration
	KassalFetchWorkers int

	// Category table
	CategorySource  string // "csv", "s3", "postgres"
	CategoryCSVPath string

	// S3-compatible storage for the category object
	S3Endpoint    string
	S3Region      string
	S3AccessKey   string
	S3SecretKey   string
	S3Bucket      string
	S3CategoryKey string

	// Daily allowances for free accounts
	ExploreLimit int
	CompareLimit int

	// Inbound API rate limit per client IP
	APIRateLimit  int
	APIRateWindow time.Duration
}

// Load reads configuration from environment variables, applying defaults
// for development where appropriate. Returns an error if critical values
// are missing in production mode or a numeric setting does not parse.
func Load() (*Config, error) {
	cfg := &Config{
		Host: envOrDefault("APP_HOST", "0.0.0.0"),
		Port: envOrDefault("APP_PORT", "8080"),
		Env:  envOrDefault("APP_ENV", "development"),

		DBHost:     envOrDefault("POSTGRES_HOST", "localhost"),
		DBPort:     envOrDefault("POSTGRES_PORT", "5432"),
		DBUser:     envOrDefault("POSTGRES_USER", "nutricompare"),
		DBPassword: envOrDefault("POSTGRES_PASSWORD", "changeme"),
		DBName:     envOrDefault("POSTGRES_DB", "nutricompare"),

		ValkeyHost:     envOrDefault("VALKEY_HOST", "localhost"),
		ValkeyPort:     envOrDefault("VALKEY_PORT", "6379"),
		ValkeyPassword: os.Getenv("VALKEY_PASSWORD"),

		KassalToken:   os.Getenv("KASSAL_API_TOKEN"),
		KassalBaseURL: envOrDefault("KASSAL_BASE_URL", "https://kassal.app/api/v1"),

		CategorySource:  envOrDefault("CATEGORY_SOURCE", CategorySourceCSV),
		CategoryCSVPath: envOrDefault("CATEGORY_CSV_PATH", "data/categories.csv"),

		S3Endpoint:    os.Getenv("S3_ENDPOINT"),
		S3Region:      envOrDefault("S3_REGION", "fsn1"),
		S3AccessKey:   os.Getenv("S3_ACCESS_KEY"),
		S3SecretKey:   os.Getenv("S3_SECRET_KEY"),
		S3Bucket:      envOrDefault("S3_BUCKET", "nutricompare-private"),
		S3CategoryKey: envOrDefault("S3_CATEGORY_KEY", "categories.csv"),
	}

	var err error
	ints := []struct {
		key      string
		fallback int
		dst      *int
	}{
		{"KASSAL_PAGE_SIZE", 100, &cfg.KassalPageSize},
		{"KASSAL_RATE_LIMIT", 60, &cfg.KassalRateLimit},
		{"KASSAL_FETCH_WORKERS", 1, &cfg.KassalFetchWorkers},
		{"QUOTA_EXPLORE_PER_DAY", 3, &cfg.ExploreLimit},
		{"QUOTA_COMPARE_PER_DAY", 1, &cfg.CompareLimit},
		{"API_RATE_LIMIT", 120, &cfg.APIRateLimit},
	}
	for _, s := range ints {
		if *s.dst, err = envInt(s.key, s.fallback); err != nil {
			return nil, err
		}
	}

	durations := []struct {
		key      string
		fallback time.Duration
		dst      *time.Duration
	}{
		{"KASSAL_RATE_WINDOW", time.Minute, &cfg.KassalRateWindow},
		{"KASSAL_TIMEOUT", 15 * time.Second, &cfg.KassalTimeout},
		{"API_RATE_WINDOW", time.Minute, &cfg.APIRateWindow},
	}
	for _, d := range durations {
		if *d.dst, err = envDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	switch cfg.CategorySource {
	case CategorySourceCSV, CategorySourceS3, CategorySourcePostgres:
	default:
		return nil, fmt.Errorf("CATEGORY_SOURCE must be csv, s3 or postgres, got %q", cfg.CategorySource)
	}
	if cfg.CategorySource == CategorySourceS3 && !cfg.S3Configured() {
		return nil, fmt.Errorf("CATEGORY_SOURCE=s3 requires S3_ENDPOINT, S3_ACCESS_KEY and S3_SECRET_KEY")
	}

	if cfg.Env == "production" {
		if cfg.DBPassword == "changeme" {
			return nil, fmt.Errorf("POSTGRES_PASSWORD must be set in production")
		}
		if cfg.KassalToken == "" {
			return nil, fmt.Errorf("KASSAL_API_TOKEN must be set in production")
		}
	}

	return cfg, nil
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName,
	)
}

// Addr returns the server listen address (host:port).
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsDev returns true if the application is running in development mode.
func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// S3Configured reports whether object storage credentials are present.
func (c *Config) S3Configured() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

// envOrDefault reads an environment variable, returning a fallback if unset or empty.
func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// envInt reads an integer variable. Unset or empty means fallback.
func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

// envDuration reads a time.ParseDuration value such as "15s".
// A bare integer is taken as seconds.
func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}
