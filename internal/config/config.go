package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port              string
	Env               string
	DatabaseURL       string
	KafkaBrokers      []string
	FeeAccountID      string
	LockTimeout       time.Duration
	SchedulerInterval time.Duration
}

// Load reads .env if present, then the environment. Missing keys fall back
// to development defaults.
func Load() *Config {
	// absent .env is normal outside local development
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		Env:               getEnv("ENV", "development"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		KafkaBrokers:      splitList(getEnv("KAFKA_BROKERS", "")),
		FeeAccountID:      getEnv("FEE_ACCOUNT_ID", ""),
		LockTimeout:       getDurationMS("LOCK_TIMEOUT_MS", 5000),
		SchedulerInterval: getDurationMS("SCHEDULER_INTERVAL_MS", 5000),
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getDurationMS(key string, fallback int64) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return time.Duration(fallback) * time.Millisecond
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || ms <= 0 {
		return time.Duration(fallback) * time.Millisecond
	}
	return time.Duration(ms) * time.Millisecond
}

func splitList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
