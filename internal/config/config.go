package config

import "os"

// Config holds process-wide configuration loaded from environment variables.
// Every field is optional: a self-play run with none of these set operates
// standalone, with no coordinator, archive, or monitor attached.
type Config struct {
	MonitorAddr string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		MonitorAddr: envOrDefault("MONITOR_ADDR", ""),
		DatabaseURL: envOrDefault("DATABASE_URL", ""),
		RedisURL:    envOrDefault("REDIS_URL", ""),
		JWTSecret:   envOrDefault("JWT_SECRET", "dev-secret-change-me"),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
