package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"pokemon-trade-client/internal/utils"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the trader and the simulator
type Config struct {
	TradeAPIURL       string
	TradeAPIKey       string
	PollInterval      time.Duration
	MaxPollErrors     int
	PollBackoffMax    time.Duration
	RequestTimeout    time.Duration
	RequestsPerSecond float64
	DetailCacheTTL    time.Duration
	AutoAcknowledge   bool
	LogLevel          string
	Environment       string
	MetricsExporter   string

	// Simulator only
	Port       string
	APIKeys    string
	SimOutcome string
	RateLimit  int
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() *Config {
	// Load .env file if it exists
	// This will not override existing environment variables
	err := godotenv.Load()

	config := FromEnv()

	// Configure slog based on log level
	utils.SetupLogging(config.LogLevel)

	if err != nil {
		slog.Debug("Could not load .env file, continuing with system environment variables only", "error", err)
	} else {
		slog.Info("Successfully loaded .env file")
	}

	slog.Info("Configuration loaded",
		"tradeApiUrl", config.TradeAPIURL,
		"environment", config.Environment,
		"logLevel", config.LogLevel,
		"pollInterval", config.PollInterval,
		"maxPollErrors", config.MaxPollErrors,
		"pollBackoffMax", config.PollBackoffMax,
		"requestTimeout", config.RequestTimeout,
		"requestsPerSecond", config.RequestsPerSecond,
		"detailCacheTTL", config.DetailCacheTTL,
		"autoAcknowledge", config.AutoAcknowledge)

	return config
}

// FromEnv reads the configuration from the process environment only
func FromEnv() *Config {
	return &Config{
		TradeAPIURL:       strings.TrimRight(getEnvWithDefault("TRADE_API_URL", "http://localhost:8080/api"), "/"),
		TradeAPIKey:       getEnvWithDefault("TRADE_API_KEY", ""),
		PollInterval:      getEnvAsDuration("POLL_INTERVAL", 2*time.Second),
		MaxPollErrors:     getEnvAsInt("MAX_POLL_ERRORS", 10),
		PollBackoffMax:    getEnvAsDuration("POLL_BACKOFF_MAX", 30*time.Second),
		RequestTimeout:    getEnvAsDuration("REQUEST_TIMEOUT", 10*time.Second),
		RequestsPerSecond: getEnvAsFloat("REQUESTS_PER_SECOND", 5),
		DetailCacheTTL:    getEnvAsDuration("DETAIL_CACHE_TTL", 30*time.Second),
		AutoAcknowledge:   getEnvAsBool("AUTO_ACKNOWLEDGE", true),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		Environment:       getEnvWithDefault("ENVIRONMENT", "development"),
		MetricsExporter:   getEnvWithDefault("METRICS_EXPORTER", ""),
		Port:              getEnvWithDefault("PORT", "8080"),
		APIKeys:           getEnvWithDefault("API_KEYS", ""),
		SimOutcome:        getEnvWithDefault("SIM_OUTCOME", "complete"),
		RateLimit:         getEnvAsInt("RATE_LIMIT_PER_MINUTE", 0),
	}
}

// getEnvWithDefault gets an environment variable with a default fallback
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		slog.Warn("Ignoring invalid integer setting", "key", key, "value", value)
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
		slog.Warn("Ignoring invalid number setting", "key", key, "value", value)
	}
	return defaultValue
}

// getEnvAsDuration accepts Go durations ("2s") or bare milliseconds ("2000")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	slog.Warn("Ignoring invalid duration setting", "key", key, "value", value)
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
		slog.Warn("Ignoring invalid boolean setting", "key", key, "value", value)
	}
	return defaultValue
}

// APIKeyList splits API_KEYS into trimmed, non-empty keys
func (c *Config) APIKeyList() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
