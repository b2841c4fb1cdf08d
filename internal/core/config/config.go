package config

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DatabaseURL   string
	Store         string // "postgres" or "memory"
	JWTSecret     string
	WebhookURL    string
	WebhookSecret string
	AdminEmail    string
	AdminPassword string
	SweepInterval time.Duration
	Env           string
}

// LoadConfig reads .env and returns the service configuration.
func LoadConfig() *Config {
	if err := godotenv.Load(); err != nil {
		slog.Warn("no .env file found, relying on system env variables")
	}

	return &Config{
		Port:          getEnv("PORT", "3000"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		Store:         getEnv("STORE", "postgres"),
		JWTSecret:     getEnv("JWT_SECRET", "dev_insecure_secret"),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),
		WebhookSecret: getEnv("WEBHOOK_SECRET", "default_insecure_key"),
		AdminEmail:    getEnv("ADMIN_EMAIL", ""),
		AdminPassword: getEnv("ADMIN_PASSWORD", ""),
		SweepInterval: getDuration("SWEEP_INTERVAL", 5*time.Second),
		Env:           getEnv("ENV", "development"),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		slog.Warn("invalid duration in env, using fallback", "key", key, "value", value)
	}
	return fallback
}
