package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application.
type AppConfig struct {
	DatabaseURL   string
	MigrationsURL string
	ServerAddress string

	TEDAPIURL         string
	TEDAPIKey         string
	TEDDefaultCountry string
	TEDPageSize       int
	TEDRequestTimeout time.Duration

	CacheTTL  time.Duration
	RedisAddr string

	SyncEnabled bool
	SyncHour    int
	SyncMinute  int

	TelegramToken  string
	TelegramChatID int64

	LogLevel    string
	Environment string
}

// Load reads configuration from environment variables and a .env file (if
// present). godotenv.Load does not override variables already set.
func Load() (*AppConfig, error) {
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is not set")
	}

	cfg.MigrationsURL = envOr("MIGRATIONS_URL", "file://migrations")
	cfg.ServerAddress = envOr("SERVER_ADDRESS", ":8000")

	cfg.TEDAPIURL = envOr("TED_API_URL", "https://api.ted.europa.eu/v3/notices/search")
	cfg.TEDAPIKey = os.Getenv("TED_API_KEY")
	cfg.TEDDefaultCountry = strings.ToUpper(envOr("TED_DEFAULT_COUNTRY", "FRA"))

	cfg.TEDPageSize, err = envInt("TED_PAGE_SIZE", 100)
	if err != nil {
		return nil, err
	}
	if cfg.TEDPageSize < 1 || cfg.TEDPageSize > 100 {
		return nil, fmt.Errorf("TED_PAGE_SIZE must be between 1 and 100")
	}

	timeoutSecs, err := envInt("TED_REQUEST_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}
	cfg.TEDRequestTimeout = time.Duration(timeoutSecs) * time.Second

	ttlSecs, err := envInt("CACHE_TTL_SECONDS", 3600)
	if err != nil {
		return nil, err
	}
	cfg.CacheTTL = time.Duration(ttlSecs) * time.Second
	cfg.RedisAddr = os.Getenv("REDIS_ADDR")

	cfg.SyncEnabled, err = envBool("SYNC_ENABLED", true)
	if err != nil {
		return nil, err
	}
	cfg.SyncHour, err = envInt("SYNC_HOUR", 2)
	if err != nil {
		return nil, err
	}
	if cfg.SyncHour < 0 || cfg.SyncHour > 23 {
		return nil, fmt.Errorf("SYNC_HOUR must be between 0 and 23")
	}
	cfg.SyncMinute, err = envInt("SYNC_MINUTE", 0)
	if err != nil {
		return nil, err
	}
	if cfg.SyncMinute < 0 || cfg.SyncMinute > 59 {
		return nil, fmt.Errorf("SYNC_MINUTE must be between 0 and 59")
	}

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr != "" {
		cfg.TelegramChatID, err = strconv.ParseInt(chatIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
	}

	cfg.LogLevel = strings.ToLower(envOr("LOG_LEVEL", "info"))
	cfg.Environment = strings.ToLower(envOr("ENVIRONMENT", "development"))

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}
