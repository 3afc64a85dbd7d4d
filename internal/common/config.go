package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Pipeline PipelineConfig
	LLM      LLMConfig
	Registry RegistryConfig
	Database DatabaseConfig
	Queue    QueueConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Addr      string
	UploadDir string
}

// PipelineConfig holds document validation and extraction limits.
type PipelineConfig struct {
	MaxPDFSizeMB int64
	MaxPages     int
	Pdftotext    string // binary name or absolute path
}

// LLMConfig holds the OpenAI client configuration.
type LLMConfig struct {
	Model       string
	APIKey      string
	BaseURL     string
	Temperature float32
	Timeout     time.Duration
}

// RegistryConfig holds job registry retention and backing-store settings.
type RegistryConfig struct {
	Backend    string // "memory" or "sqlite"
	SQLitePath string
	TTL        time.Duration
	MaxEntries int
}

// DatabaseConfig holds the optional PostgreSQL persistence settings.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// QueueConfig holds background worker pool settings.
type QueueConfig struct {
	Workers    int
	Size       int
	JobTimeout time.Duration
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:      getEnv("HTTP_ADDR", ":8080"),
			UploadDir: getEnv("UPLOAD_DIR", os.TempDir()),
		},
		Pipeline: PipelineConfig{
			MaxPDFSizeMB: getEnvAsInt64("MAX_PDF_SIZE_MB", 10),
			MaxPages:     getEnvAsInt("MAX_PAGES", 3),
			Pdftotext:    getEnv("PDFTOTEXT_BIN", "pdftotext"),
		},
		LLM: LLMConfig{
			Model:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:      getEnv("OPENAI_API_KEY", ""),
			BaseURL:     getEnv("OPENAI_BASE_URL", ""),
			Temperature: getEnvAsFloat32("OPENAI_TEMPERATURE", 0.0),
			Timeout:     getEnvAsDuration("OPENAI_TIMEOUT", 45*time.Second),
		},
		Registry: RegistryConfig{
			Backend:    getEnv("REGISTRY_BACKEND", "memory"),
			SQLitePath: getEnv("REGISTRY_SQLITE_PATH", "./jobs.db"),
			TTL:        getEnvAsDuration("REGISTRY_TTL", 24*time.Hour),
			MaxEntries: getEnvAsInt("REGISTRY_MAX_ENTRIES", 1000),
		},
		Database: DatabaseConfig{
			DSN:             getEnv("DB_URL", ""),
			MaxConns:        getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Queue: QueueConfig{
			Workers:    getEnvAsInt("QUEUE_WORKERS", 4),
			Size:       getEnvAsInt("QUEUE_SIZE", 256),
			JobTimeout: getEnvAsDuration("QUEUE_JOB_TIMEOUT", 3*time.Minute),
		},
	}
}

// Validate checks the loaded configuration. The database DSN is optional;
// persistence endpoints report service-unavailable when it is unset.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return WrapError(ErrInvalidInput, "HTTP_ADDR is required")
	}
	if c.LLM.APIKey == "" {
		return WrapError(ErrInvalidInput, "OPENAI_API_KEY is required")
	}
	if c.Pipeline.MaxPDFSizeMB <= 0 {
		return WrapError(ErrInvalidInput, "MAX_PDF_SIZE_MB must be positive")
	}
	if c.Pipeline.MaxPages <= 0 {
		return WrapError(ErrInvalidInput, "MAX_PAGES must be positive")
	}
	if c.Registry.Backend != "memory" && c.Registry.Backend != "sqlite" {
		return WrapError(ErrInvalidInput, "REGISTRY_BACKEND must be memory or sqlite")
	}
	return nil
}

// Helper functions for environment variable parsing.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
