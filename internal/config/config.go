package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Env       string
	Port      string
	LogLevel  string
	LogFormat string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	// Record storage
	LogBucket    string
	LogKeyPrefix string
	LogFullLog   bool
	LogSlotMode  string

	// Report generation
	LogDirectory     string
	ReportOutput     string
	ReportSchedule   string
	ReportTimezone   string
	FetchConcurrency int

	// Incremental report checkpoints
	CheckpointBackend string
	CheckpointTable   string
	CheckpointName    string
	RedisAddr         string
	RedisPassword     string
	RedisTLS          bool

	// SQS ingestion
	IngestQueueURL    string
	IngestWorkerCount int
	IngestWaitSeconds int
	IngestBatchSize   int
	IngestSaveTimeout time.Duration

	// HTTP ingestion; a zero rate disables throttling
	IngestRateLimit float64
	IngestRateBurst int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Env:       getEnv("ENV", "development"),
		Port:      getEnv("PORT", "8080"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		LogBucket:    getEnv("LOG_BUCKET", ""),
		LogKeyPrefix: getEnv("LOG_KEY_PREFIX", ""),
		LogFullLog:   getEnvAsBool("LOG_FULL", false),
		LogSlotMode:  strings.ToLower(strings.TrimSpace(getEnv("LOG_SLOT_MODE", "raw"))),

		LogDirectory:     getEnv("LOG_DIRECTORY", ""),
		ReportOutput:     getEnv("REPORT_OUTPUT", "summary.csv"),
		ReportSchedule:   getEnv("REPORT_SCHEDULE", "0 6 * * *"),
		ReportTimezone:   getEnv("REPORT_TIMEZONE", "Local"),
		FetchConcurrency: getEnvAsInt("FETCH_CONCURRENCY", 16),

		CheckpointBackend: strings.ToLower(strings.TrimSpace(getEnv("CHECKPOINT_BACKEND", "none"))),
		CheckpointTable:   getEnv("CHECKPOINT_TABLE", "alexa_logger_checkpoints"),
		CheckpointName:    getEnv("CHECKPOINT_NAME", "report"),
		RedisAddr:         getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword:     getEnv("REDIS_PASSWORD", ""),
		RedisTLS:          getEnvAsBool("REDIS_TLS", false),

		IngestQueueURL:    getEnv("INGEST_QUEUE_URL", ""),
		IngestWorkerCount: getEnvAsInt("INGEST_WORKER_COUNT", 2),
		IngestWaitSeconds: getEnvAsInt("INGEST_WAIT_SECONDS", 10),
		IngestBatchSize:   getEnvAsInt("INGEST_BATCH_SIZE", 10),
		IngestSaveTimeout: getEnvAsDuration("INGEST_SAVE_TIMEOUT", 10*time.Second),

		IngestRateLimit: getEnvAsFloat("INGEST_RATE_LIMIT", 0),
		IngestRateBurst: getEnvAsInt("INGEST_RATE_BURST", 20),
	}
}

// Location resolves ReportTimezone, falling back to the local zone.
func (c *Config) Location() *time.Location {
	if c.ReportTimezone == "" || strings.EqualFold(c.ReportTimezone, "local") {
		return time.Local
	}
	loc, err := time.LoadLocation(c.ReportTimezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
