package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port              string
	AllowedOrigins    []string
	LogLevel          string
	Environment       string
	BackendBaseURL    string
	SessionCookieName string
	SessionJWTSecret  string
	RedisURL          string
	ClientID          string // identity used for client-side vote cooldown tracking
	PollInterval      time.Duration
	MinPollInterval   time.Duration
	MaxPollInterval   time.Duration
	VoteCooldown      time.Duration
	InactivityTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Environment:       getEnv("ENVIRONMENT", "production"),
		BackendBaseURL:    getEnv("BACKEND_BASE_URL", "http://localhost:3000"),
		SessionCookieName: getEnv("SESSION_COOKIE_NAME", "debate_session"),
		SessionJWTSecret:  getEnv("SESSION_JWT_SECRET", ""),
		RedisURL:          getEnv("REDIS_URL", ""),
		ClientID:          getEnv("CLIENT_ID", "debatelive"),
		PollInterval:      getDurationEnv("POLL_INTERVAL", 5*time.Second),
		MinPollInterval:   getDurationEnv("MIN_POLL_INTERVAL", 1*time.Second),
		MaxPollInterval:   getDurationEnv("MAX_POLL_INTERVAL", 60*time.Second),
		VoteCooldown:      getDurationEnv("VOTE_COOLDOWN", 20*time.Second),
		InactivityTimeout: getDurationEnv("INACTIVITY_TIMEOUT", 15*time.Minute),
	}, nil
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
