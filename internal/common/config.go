package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Storage   StorageConfig
	Embedding EmbeddingConfig
	Worker    WorkerConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr string
}

// StorageConfig holds blob store (S3) configuration
type StorageConfig struct {
	Bucket        string
	Region        string
	Endpoint      string // optional, for S3-compatible stores
	UsePathStyle  bool
	SignedURLTTL  time.Duration
	DownloadLimit int64 // max object size in bytes, 0 = unlimited
}

// EmbeddingConfig holds embedding service configuration
type EmbeddingConfig struct {
	BaseURL   string
	APIKey    string
	Model     string
	Dimension int
	Timeout   time.Duration
}

// WorkerConfig holds background worker and sweeper configuration
type WorkerConfig struct {
	Workers        int
	QueueSize      int
	ProcessTimeout time.Duration
	SweepInterval  time.Duration
	StaleThreshold time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 20),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 5),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
		},
		Storage: StorageConfig{
			Bucket:       getEnv("STORAGE_BUCKET", ""),
			Region:       getEnv("STORAGE_REGION", "us-east-1"),
			Endpoint:     getEnv("STORAGE_ENDPOINT", ""),
			UsePathStyle:  getEnvAsBool("STORAGE_PATH_STYLE", false),
			SignedURLTTL:  getEnvAsDuration("STORAGE_SIGNED_URL_TTL", 15*time.Minute),
			DownloadLimit: getEnvAsInt64("STORAGE_DOWNLOAD_LIMIT", 200<<20),
		},
		Embedding: EmbeddingConfig{
			BaseURL:   getEnv("EMBEDDING_BASE_URL", "https://api.openai.com/v1"),
			APIKey:    getEnv("EMBEDDING_API_KEY", ""),
			Model:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
			Dimension: getEnvAsInt("EMBEDDING_DIMENSION", 1536),
			Timeout:   getEnvAsDuration("EMBEDDING_TIMEOUT", 30*time.Second),
		},
		Worker: WorkerConfig{
			Workers:        getEnvAsInt("WORKER_COUNT", 4),
			QueueSize:      getEnvAsInt("WORKER_QUEUE_SIZE", 256),
			ProcessTimeout: getEnvAsDuration("WORKER_PROCESS_TIMEOUT", 10*time.Minute),
			SweepInterval:  getEnvAsDuration("SWEEP_INTERVAL", time.Minute),
			StaleThreshold: getEnvAsDuration("STALE_THRESHOLD", 15*time.Minute),
		},
	}
}

// Helper functions for environment variable parsing
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
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

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL is required", ErrInvalidInput)
	}
	if c.Storage.Bucket == "" {
		return NewAppError("CONFIG_ERROR", "STORAGE_BUCKET is required", ErrInvalidInput)
	}
	if c.Embedding.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "EMBEDDING_API_KEY is required", ErrInvalidInput)
	}
	if c.Embedding.Dimension <= 0 {
		return NewAppError("CONFIG_ERROR", "EMBEDDING_DIMENSION must be positive", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	return nil
}
