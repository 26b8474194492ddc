package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv string
	Port   string

	MongoURL      string // empty: fall back to the in-memory store
	MongoDatabase string
	RedisURL      string // empty: in-memory alert debouncing

	ScoringURL     string // anomaly scorer base URL; empty: local heuristic
	NotifierURL    string // notification sink base URL; empty: alerts logged only
	AlertRecipient string

	SimInterval time.Duration
	SimPatients []string

	AllowedOrigins []string

	LogLevel  string
	LogFormat string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", "8080"),
		MongoURL:       getEnv("MONGO_URL", ""),
		MongoDatabase:  getEnv("MONGO_DB", "healthsync"),
		RedisURL:       getEnv("REDIS_URL", ""),
		ScoringURL:     getEnv("SCORING_URL", ""),
		NotifierURL:    getEnv("NOTIFIER_URL", ""),
		AlertRecipient: getEnv("ALERT_RECIPIENT", "doctor@example.com"),
		SimInterval:    getDuration("SIM_INTERVAL", 3*time.Second),
		SimPatients:    getList("SIM_PATIENTS", []string{"patient1", "patient2", "patient3"}),
		AllowedOrigins: getList("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFormat:      getEnv("LOG_FORMAT", "text"),
	}

	if cfg.SimInterval <= 0 {
		return nil, fmt.Errorf("SIM_INTERVAL must be positive")
	}
	if cfg.MongoURL == "" && cfg.AppEnv == "production" {
		return nil, fmt.Errorf("MONGO_URL is required in production")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid duration for %s=%q, using default %s\n", key, v, def)
		return def
	}
	return d
}

func getList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
