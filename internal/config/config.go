package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
// It is the single source of truth for runtime parameters.
type Config struct {
	Port string
	Env  string

	DB     DatabaseConfig
	Redis  RedisConfig
	S3     S3Config
	Import ImportConfig
	Worker WorkerConfig
}

// DatabaseConfig contains PostgreSQL connection parameters.
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

// RedisConfig contains Redis connection parameters. Host may be empty, in
// which case the hot-tier cache is disabled and only the durable cache
// table is used.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// S3Config contains upload-archive bucket configuration. Archival is
// skipped entirely when credentials are absent.
type S3Config struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

// ImportConfig contains tuning knobs for the bulk import pipeline.
type ImportConfig struct {
	DefaultBatchSize int
	MaxBatchSize     int
	BatchDelay       time.Duration
	MaxUploadBytes   int64
}

// WorkerConfig contains interval configuration for background workers.
type WorkerConfig struct {
	CachePurgeInterval time.Duration
	StatsPurgeInterval time.Duration
	StatsRetention     time.Duration
}

// Load reads configuration from environment variables. If a .env file exists
// in the working directory, it will be loaded first. It returns a populated
// Config or an error with a human-friendly message.
func Load() (*Config, error) {
	// Load .env if present; ignore error if file is missing so that production
	// environments relying solely on real environment variables keep working.
	_ = godotenv.Load()

	cfg := &Config{}

	// Server
	cfg.Port = getEnv("PORT", "8080")
	cfg.Env = getEnv("ENV", "development")

	// Database
	cfg.DB = DatabaseConfig{
		Host:     getEnv("DB_HOST", ""),
		Port:     getEnv("DB_PORT", "5432"),
		User:     getEnv("DB_USER", ""),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", ""),
		SSLMode:  getEnv("DB_SSLMODE", "disable"),
	}

	// Redis (optional hot tier)
	cfg.Redis = RedisConfig{
		Host:     getEnv("REDIS_HOST", ""),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", ""),
		DB:       getEnvInt("REDIS_DB", 0),
	}

	// S3 upload archive (AWS Jakarta region)
	cfg.S3 = S3Config{
		Region:          getEnv("S3_REGION", "ap-southeast-3"),
		Bucket:          getEnv("S3_BUCKET", "kodepos-imports"),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}

	// Import pipeline
	cfg.Import = ImportConfig{
		DefaultBatchSize: getEnvInt("IMPORT_DEFAULT_BATCH_SIZE", 1000),
		MaxBatchSize:     getEnvInt("IMPORT_MAX_BATCH_SIZE", 10000),
		MaxUploadBytes:   int64(getEnvInt("IMPORT_MAX_UPLOAD_BYTES", 50<<20)),
	}

	var err error
	if cfg.Import.BatchDelay, err = parseDurationEnv("IMPORT_BATCH_DELAY", "100ms"); err != nil {
		return nil, fmt.Errorf("invalid IMPORT_BATCH_DELAY: %w", err)
	}

	// Workers (durations)
	if cfg.Worker.CachePurgeInterval, err = parseDurationEnv("CACHE_PURGE_INTERVAL", "1h"); err != nil {
		return nil, fmt.Errorf("invalid CACHE_PURGE_INTERVAL: %w", err)
	}
	if cfg.Worker.StatsPurgeInterval, err = parseDurationEnv("STATS_PURGE_INTERVAL", "24h"); err != nil {
		return nil, fmt.Errorf("invalid STATS_PURGE_INTERVAL: %w", err)
	}
	if cfg.Worker.StatsRetention, err = parseDurationEnv("STATS_RETENTION", "720h"); err != nil {
		return nil, fmt.Errorf("invalid STATS_RETENTION: %w", err)
	}

	// Basic validation for DB parameters — keeps messages concise and helpful.
	if cfg.DB.Host == "" || cfg.DB.User == "" || cfg.DB.Name == "" {
		return nil, errors.New("database configuration incomplete: ensure DB_HOST, DB_USER, and DB_NAME are set")
	}

	if cfg.Import.DefaultBatchSize < 1 || cfg.Import.DefaultBatchSize > cfg.Import.MaxBatchSize {
		return nil, fmt.Errorf("IMPORT_DEFAULT_BATCH_SIZE must be in [1,%d]", cfg.Import.MaxBatchSize)
	}

	return cfg, nil
}

// getEnv returns the value of an environment variable or a default if empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the value of an environment variable as an integer or a default if empty/invalid.
func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

// parseDurationEnv reads an environment variable and parses it as time.Duration.
// If the variable is empty, it falls back to the provided default value.
func parseDurationEnv(key, def string) (time.Duration, error) {
	raw := getEnv(key, def)
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("duration must be >= 0")
	}
	return d, nil
}
