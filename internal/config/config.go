package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// app config: provider selection, auth, lifecycle tuning
type Config struct {
	Provider string
	// JWTSecret signs and verifies session-owner tokens.
	JWTSecret string
	RedisAddr string
	// CompletionThreshold is the percentage of the allotted duration an
	// unexpectedly terminated session needs to still count as complete.
	CompletionThreshold float64
	HeartbeatTTL        time.Duration
	ReaperSchedule      string
	ReaperEnabled       bool
	ReaperGracePeriod   time.Duration
}

// loads configuration from environment variables
func LoadConfig() (*Config, error) {
	config := &Config{
		Provider:            getEnvOrDefault("AI_PROVIDER", "gemini"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		RedisAddr:           getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		CompletionThreshold: getEnvFloat("COMPLETION_THRESHOLD", 50),
		HeartbeatTTL:        getEnvDuration("HEARTBEAT_TTL", time.Minute),
		ReaperSchedule:      getEnvOrDefault("REAPER_SCHEDULE", "*/2 * * * *"),
		ReaperEnabled:       getEnvOrDefault("REAPER_ENABLED", "true") == "true",
		ReaperGracePeriod:   getEnvDuration("REAPER_GRACE_PERIOD", 2*time.Minute),
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

func validateConfig(config *Config) error {
	if config.Provider != "gemini" {
		return errors.New("unsupported AI provider: " + config.Provider + ". Currently supported: gemini")
	}
	if config.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if config.CompletionThreshold < 0 || config.CompletionThreshold > 100 {
		return errors.New("COMPLETION_THRESHOLD must be between 0 and 100")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
