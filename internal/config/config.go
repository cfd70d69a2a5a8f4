package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Vision providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
	ProviderBedrock   = "bedrock"
)

// Config holds all configuration values.
type Config struct {
	// SurrealDB connection
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string

	// Vision provider
	VisionProvider   string
	VisionModel      string
	VisionBaseURL    string
	VisionTimeout    time.Duration
	VisionBatchPages int
	OpenAIAPIKey     string
	AnthropicAPIKey  string

	// Server
	ServerAddr string
	ServerURL  string

	// Jobs
	JobConcurrency int
	SweepSchedule  string
	StaleJobAge    time.Duration

	// Pipeline thresholds (seed values; extract.Config carries them per call)
	AcceptThreshold float64
	MergeThreshold  float64
	StrictCodes     bool

	// Logging
	LogFile  string
	LogLevel slog.Level
}

// Load reads configuration from environment variables.
func Load() Config {
	return Config{
		SurrealDBURL:       getEnv("ATESTA_DB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("ATESTA_DB_NAMESPACE", "licitia"),
		SurrealDBDatabase:  getEnv("ATESTA_DB_DATABASE", "acervo"),
		SurrealDBUser:      getEnv("ATESTA_DB_USER", "root"),
		SurrealDBPass:      getEnv("ATESTA_DB_PASS", "root"),

		VisionProvider:   getEnv("ATESTA_VISION_PROVIDER", ProviderOpenAI),
		VisionModel:      getEnv("ATESTA_VISION_MODEL", "gpt-4o-mini"),
		VisionBaseURL:    getEnv("ATESTA_VISION_BASE_URL", ""),
		VisionTimeout:    getEnvDuration("ATESTA_VISION_TIMEOUT", 2*time.Minute),
		VisionBatchPages: getEnvInt("ATESTA_VISION_BATCH_PAGES", 4),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),

		ServerAddr: getEnv("ATESTA_SERVER_ADDR", ":8484"),
		ServerURL:  getEnv("ATESTA_SERVER_URL", "http://localhost:8484"),

		JobConcurrency: getEnvInt("ATESTA_JOB_CONCURRENCY", 4),
		SweepSchedule:  getEnv("ATESTA_SWEEP_SCHEDULE", "@every 10m"),
		StaleJobAge:    getEnvDuration("ATESTA_STALE_JOB_AGE", 30*time.Minute),

		AcceptThreshold: getEnvFloat("ATESTA_ACCEPT_THRESHOLD", 0.75),
		MergeThreshold:  getEnvFloat("ATESTA_MERGE_THRESHOLD", 0.40),
		StrictCodes:     getEnv("ATESTA_STRICT_CODES", "false") == "true",

		LogFile:  getEnv("ATESTA_LOG_FILE", "/tmp/atesta.log"),
		LogLevel: parseLogLevel(getEnv("ATESTA_LOG_LEVEL", "INFO")),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
