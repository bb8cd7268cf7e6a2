package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	ListenAddr       string
	DatabaseURL      string
	TelegramBotToken string
	AdminKey         string
	StatsURL         string
	StatsKey         string
	AllowMockAuth    bool
}

// Load reads configuration from the environment, with .env as a local
// development convenience.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		ListenAddr:       getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		AdminKey:         os.Getenv("ADMIN_KEY"),
		StatsURL:         os.Getenv("STUDIO_CORE_URL"),
		StatsKey:         os.Getenv("STUDIO_STATS_KEY"),
		AllowMockAuth:    os.Getenv("ALLOW_MOCK_AUTH") == "true",
	}

	if cfg.DatabaseURL == "" {
		return cfg, errors.New("DATABASE_URL is required")
	}
	return cfg, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
