package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	PublicBaseURL      string
	CORSAllowedOrigins []string

	// Upstream automation webhook the chat widget relays to.
	UpstreamWebhookURL string
	UpstreamTimeout    time.Duration

	DatabaseURL string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Chat session persistence.
	SessionKeyPrefix string
	SessionTTL       time.Duration
	EngineIdleTTL    time.Duration

	// Conversation transcript retention.
	TranscriptMax int
	TranscriptTTL time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:      getEnv("PUBLIC_BASE_URL", ""),
		CORSAllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", nil),
		UpstreamWebhookURL: getEnv("UPSTREAM_WEBHOOK_URL", ""),
		UpstreamTimeout:    getEnvAsDuration("UPSTREAM_TIMEOUT", 30*time.Second),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		RedisTLS:           getEnvAsBool("REDIS_TLS", false),
		SessionKeyPrefix:   getEnv("SESSION_KEY_PREFIX", "chat_session:"),
		SessionTTL:         getEnvAsDuration("SESSION_TTL", 30*24*time.Hour),
		EngineIdleTTL:      getEnvAsDuration("ENGINE_IDLE_TTL", 30*time.Minute),
		TranscriptMax:      getEnvAsInt("TRANSCRIPT_MAX", 250),
		TranscriptTTL:      getEnvAsDuration("TRANSCRIPT_TTL", 7*24*time.Hour),
	}
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

// getEnvAsSlice splits a comma-separated environment variable, trimming
// whitespace and dropping empty entries.
func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	parts := strings.Split(valueStr, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
