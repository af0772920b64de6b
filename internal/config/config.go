package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Server
	Port string
	Env  string

	// Auth (connection setup only)
	JWTSecret string

	// Run store
	DataPath       string
	MinRunDuration time.Duration

	// Presence liveness
	PresenceTTL  time.Duration
	ReapInterval time.Duration

	// Frontend
	FrontendURL string
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	cfg := &Config{
		Port:           getEnvOrDefault("PORT", "8080"),
		Env:            getEnvOrDefault("ENV", "development"),
		JWTSecret:      mustGetEnv("JWT_SECRET"),
		DataPath:       getEnvOrDefault("DATA_PATH", "./data"),
		MinRunDuration: getEnvAsMillisOrDefault("MIN_RUN_DURATION_MS", 10000),
		PresenceTTL:    getEnvAsMillisOrDefault("PRESENCE_TTL_MS", 16000),
		ReapInterval:   getEnvAsMillisOrDefault("REAP_INTERVAL_MS", 8000),
		FrontendURL:    getEnvOrDefault("FRONTEND_URL", "http://localhost:5173"),
	}

	return cfg
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

func getEnvAsMillisOrDefault(key string, defaultMillis int) time.Duration {
	return time.Duration(getEnvAsIntOrDefault(key, defaultMillis)) * time.Millisecond
}
