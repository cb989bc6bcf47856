package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// Config holds everything the server reads from the environment.
type Config struct {
	Port   string
	Env    string
	DBPath string

	JWTSecret string

	StripeSecretKey     string
	StripeWebhookSecret string
	ConnectReturnURL    string
	ConnectRefreshURL   string
}

// Load reads .env file and returns a Config struct.
func Load() *Config {
	// The .env file might not exist in production, which is fine.
	if err := godotenv.Load(); err != nil {
		slog.Warn("No .env file found, relying on system env variables")
	}

	return &Config{
		Port:   getEnv("PORT", "8080"),
		Env:    getEnv("ENV", "development"),
		DBPath: getEnv("DB_PATH", "./data/juntas.db"),

		JWTSecret: getEnv("JWT_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		ConnectReturnURL:    getEnv("CONNECT_RETURN_URL", "http://localhost:3000/connect/return"),
		ConnectRefreshURL:   getEnv("CONNECT_REFRESH_URL", "http://localhost:3000/connect/refresh"),
	}
}

// Validate reports the required settings that are missing.
func (c *Config) Validate() []string {
	var missing []string
	if c.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	if c.StripeSecretKey == "" {
		missing = append(missing, "STRIPE_SECRET_KEY")
	}
	if c.StripeWebhookSecret == "" {
		missing = append(missing, "STRIPE_WEBHOOK_SECRET")
	}
	return missing
}

// Helper to get env with a default fallback.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}
