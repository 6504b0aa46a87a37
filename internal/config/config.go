package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Auth provider (hosted identity; we only verify its tokens)
	AuthJWTSecret string

	// Gemini AI
	GeminiAPIKey         string
	GeminiConcurrentReqs int

	// Billing provider
	BillingAPIURL        string
	BillingAPIKey        string
	BillingWebhookSecret string

	// Blob storage
	StoragePath string

	// Workers / aggregation
	WorkerCount          int
	LeaderboardIntervalM int

	// SMTP (optional; dev mode when unset)
	SMTPHost string
	SMTPPort string
	SMTPUser string
	SMTPPass string
	SMTPFrom string

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		Port:                 getEnvOrDefault("PORT", "8080"),
		Env:                  getEnvOrDefault("ENV", "development"),
		DatabaseURL:          mustGetEnv("DATABASE_URL"),
		RedisURL:             mustGetEnv("REDIS_URL"),
		AuthJWTSecret:        mustGetEnv("AUTH_JWT_SECRET"),
		GeminiAPIKey:         mustGetEnv("GEMINI_API_KEY"),
		GeminiConcurrentReqs: getEnvAsIntOrDefault("GEMINI_CONCURRENT_REQUESTS", 5),
		BillingAPIURL:        getEnvOrDefault("BILLING_API_URL", ""),
		BillingAPIKey:        getEnvOrDefault("BILLING_API_KEY", ""),
		BillingWebhookSecret: getEnvOrDefault("BILLING_WEBHOOK_SECRET", ""),
		StoragePath:          getEnvOrDefault("STORAGE_PATH", "./uploads"),
		WorkerCount:          getEnvAsIntOrDefault("WORKER_COUNT", 5),
		LeaderboardIntervalM: getEnvAsIntOrDefault("LEADERBOARD_INTERVAL_MINUTES", 15),
		SMTPHost:             getEnvOrDefault("SMTP_HOST", ""),
		SMTPPort:             getEnvOrDefault("SMTP_PORT", "587"),
		SMTPUser:             getEnvOrDefault("SMTP_USER", ""),
		SMTPPass:             getEnvOrDefault("SMTP_PASS", ""),
		SMTPFrom:             getEnvOrDefault("SMTP_FROM", "noreply@studyhub.app"),
		FrontendURL:          getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}
}

func mustGetEnv(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(fmt.Sprintf("required environment variable %s is not set", key))
	}
	return val
}

func getEnvOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvAsIntOrDefault(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
