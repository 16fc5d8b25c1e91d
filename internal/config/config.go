package config

import (
	"fmt"
	"os"

	"github.com/vibechecc/backend/internal/util"
)

// Config is the typed view of the server's environment
type Config struct {
	Port        string
	Environment string
	LogLevel    string
	LogFile     string

	JWTSecret string

	RedisHost     string
	RedisPort     string
	RedisPassword string

	// Analytics capture (PostHog-compatible)
	AnalyticsAPIKey   string
	AnalyticsEndpoint string

	// Assignment persistence: "redis" or a file path fallback
	AssignmentsFile string

	TracingEnabled  bool
	OTLPEndpoint    string
	TraceSampleRate float64
}

// Load reads configuration from the environment. JWT_SECRET is the only
// hard requirement; everything else has a development default.
func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8686"),
		Environment:       getEnv("ENVIRONMENT", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFile:           getEnv("LOG_FILE", "vibechecc.log"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		RedisHost:         getEnv("REDIS_HOST", "localhost"),
		RedisPort:         getEnv("REDIS_PORT", "6379"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		AnalyticsAPIKey:   os.Getenv("POSTHOG_API_KEY"),
		AnalyticsEndpoint: os.Getenv("POSTHOG_ENDPOINT"),
		AssignmentsFile:   getEnv("ASSIGNMENTS_FILE", "assignments.json"),
		OTLPEndpoint:      getEnv("OTLP_ENDPOINT", "localhost:4318"),
		TracingEnabled:    getEnv("TRACING_ENABLED", "false") == "true",
		TraceSampleRate:   getEnvFloat("TRACE_SAMPLE_RATE", 0.1),
	}

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	return util.ParseFloat(os.Getenv(key), defaultValue)
}
