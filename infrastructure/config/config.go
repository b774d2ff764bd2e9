package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// StoreBackend selects which store implementation backs the access layer.
// The choice is made once at startup; operations never branch per call.
type StoreBackend string

const (
	BackendDynamoDB StoreBackend = "dynamodb"
	BackendMemory   StoreBackend = "memory"
)

// Config holds all application configuration
type Config struct {
	Environment string `validate:"required,oneof=development staging production"`

	// AWS configuration
	AWSRegion     string       `validate:"required"`
	DynamoDBTable string       `validate:"required_if=StoreBackend dynamodb"`
	StoreBackend  StoreBackend `validate:"required,oneof=dynamodb memory"`

	// Cache configuration
	CacheEnabled      bool
	CacheDefaultTTL   time.Duration `validate:"min=0"`
	CacheMaxEntries   int           `validate:"min=0"`
	CacheMaxSizeBytes int64         `validate:"min=0"`
	CacheLogHits      bool

	// Collections warmed at startup, comma-separated in the environment.
	PreloadCollections []string

	// Logging and features
	LogLevel      string
	EnableMetrics bool
	EnableTracing bool
}

// LoadConfig loads configuration from environment variables. A .env file
// in the working directory is honored when present, matching local
// development setups; a missing file is not an error.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Environment:   getEnv("ENVIRONMENT", "development"),
		AWSRegion:     getEnv("AWS_REGION", "us-west-2"),
		DynamoDBTable: getEnv("DYNAMODB_TABLE", "documents"),
		StoreBackend:  StoreBackend(getEnv("STORE_BACKEND", string(BackendDynamoDB))),

		CacheEnabled:      getEnvBool("CACHE_ENABLED", true),
		CacheDefaultTTL:   time.Duration(getEnvInt("CACHE_DEFAULT_TTL_SECONDS", 300)) * time.Second,
		CacheMaxEntries:   getEnvInt("CACHE_MAX_ENTRIES", 1000),
		CacheMaxSizeBytes: int64(getEnvInt("CACHE_MAX_SIZE_BYTES", 50*1024*1024)),
		CacheLogHits:      getEnvBool("CACHE_LOG_HITS", false),

		PreloadCollections: splitList(getEnv("PRELOAD_COLLECTIONS", "")),

		LogLevel:      getEnv("LOG_LEVEL", "info"),
		EnableMetrics: getEnvBool("ENABLE_METRICS", false),
		EnableTracing: getEnvBool("ENABLE_TRACING", false),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the loaded configuration is usable.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// IsDevelopment checks if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction checks if running in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	if value == "" {
		return nil
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
