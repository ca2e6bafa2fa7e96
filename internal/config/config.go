package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates runtime configuration for the Hastebucket API.
type Config struct {
	Server   ServerConfig
	Postgres PostgresConfig
	MinIO    MinIOConfig
	Redis    RedisConfig
	Bucket   BucketConfig
	Reaper   ReaperConfig
	Metrics  MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// MinIOConfig carries MinIO connection and bucket information.
type MinIOConfig struct {
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// RedisConfig configures the optional read cache.
type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// BucketConfig groups share-bucket policy settings.
type BucketConfig struct {
	IDLength      int
	IDMaxAttempts int
	MaxFileSize   int64
	Retention     time.Duration
	PresignTTL    time.Duration
}

// ReaperConfig controls the periodic expiry sweep.
type ReaperConfig struct {
	Enabled      bool
	Interval     time.Duration
	TriggerToken string
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:         getString("HASTEBUCKET_API_HOST", "0.0.0.0"),
			Port:         getInt("HASTEBUCKET_API_PORT", 8080),
			ReadTimeout:  getDuration("HASTEBUCKET_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout: getDuration("HASTEBUCKET_API_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:  getDuration("HASTEBUCKET_API_IDLE_TIMEOUT", 60*time.Second),
		},
		Postgres: PostgresConfig{
			Host:     getString("POSTGRES_HOST", "localhost"),
			Port:     getInt("POSTGRES_PORT", 5432),
			User:     getString("POSTGRES_USER", "hastebucket_app"),
			Password: getString("POSTGRES_PASSWORD", "change-me"),
			Database: getString("POSTGRES_DB", "hastebucket"),
			SSLMode:  strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
		},
		MinIO: MinIOConfig{
			Endpoint:        getString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("MINIO_ROOT_USER", "hastebucket"),
			SecretAccessKey: getString("MINIO_ROOT_PASSWORD", "change-me-strong-password"),
			Bucket:          getString("MINIO_BUCKET", "hastebucket"),
			UseSSL:          getBool("MINIO_USE_SSL", false),
			Region:          getString("MINIO_REGION", ""),
		},
		Redis: RedisConfig{
			Enabled:  getBool("REDIS_ENABLED", false),
			Addr:     getString("REDIS_ADDR", "localhost:6379"),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			TTL:      getDuration("REDIS_CACHE_TTL", 5*time.Minute),
		},
		Bucket:  loadBucketConfig(),
		Reaper:  loadReaperConfig(),
		Metrics: MetricsConfig{
			PrometheusPath: getString("HASTEBUCKET_METRICS_PATH", "/metrics"),
		},
	}

	return cfg, nil
}

func loadBucketConfig() BucketConfig {
	length := getInt("HASTEBUCKET_ID_LENGTH", 5)
	if length < 1 {
		length = 5
	}
	attempts := getInt("HASTEBUCKET_ID_MAX_ATTEMPTS", 10)
	if attempts < 1 {
		attempts = 10
	}

	return BucketConfig{
		IDLength:      length,
		IDMaxAttempts: attempts,
		MaxFileSize:   getInt64("HASTEBUCKET_MAX_FILE_SIZE", 100*1024*1024),
		Retention:     getDuration("HASTEBUCKET_RETENTION", 24*time.Hour),
		PresignTTL:    getDuration("HASTEBUCKET_PRESIGN_TTL", 15*time.Minute),
	}
}

func loadReaperConfig() ReaperConfig {
	return ReaperConfig{
		Enabled:      getBool("HASTEBUCKET_REAPER_ENABLED", true),
		Interval:     getDuration("HASTEBUCKET_REAPER_INTERVAL", time.Hour),
		TriggerToken: getString("HASTEBUCKET_REAPER_TOKEN", ""),
	}
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}
