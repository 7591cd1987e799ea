package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment       string
	MaxConcurrentJobs int
	MaxBatchSize      int
	CacheTTL          time.Duration
	DBPath            string // empty disables metadata persistence
	RedisURL          string // empty selects the in-memory prediction cache
	ArtifactDir       string
	PipelineFile      string // optional YAML pipeline definitions
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Environment:       getEnv("ENVIRONMENT", "development"),
		MaxConcurrentJobs: getEnvAsInt("INFERD_MAX_CONCURRENT_JOBS", 2),
		MaxBatchSize:      getEnvAsInt("INFERD_MAX_BATCH_SIZE", 32),
		CacheTTL:          time.Duration(getEnvAsInt("INFERD_CACHE_TTL_SECONDS", 300)) * time.Second,
		DBPath:            getEnv("INFERD_DB_PATH", ""),
		RedisURL:          getEnv("INFERD_REDIS_URL", ""),
		ArtifactDir:       getEnv("INFERD_ARTIFACT_DIR", "artifacts"),
		PipelineFile:      getEnv("INFERD_PIPELINE_FILE", ""),
	}
	return config, nil
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
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
