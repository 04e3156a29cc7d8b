// Package config loads the bot's runtime configuration from the environment,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseURL string
	RedisAddr   string

	BotToken  string
	BotAPIURL string

	OwnerID      int64
	LogChannelID int64 // 0 disables channel reports

	OwnerPasswordHash string // bcrypt; empty disables dashboard login
	JWTSecret         string

	Timezone *time.Location
	Port     string
}

// Load reads the environment. A missing .env file is not an error; missing
// required variables are.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisAddr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		BotToken:          os.Getenv("BOT_TOKEN"),
		BotAPIURL:         getEnv("BOT_API_URL", "https://api.telegram.org"),
		OwnerPasswordHash: os.Getenv("OWNER_PASSWORD_HASH"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		Port:              getEnv("PORT", "8080"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.BotToken == "" {
		return nil, fmt.Errorf("BOT_TOKEN must be set")
	}

	var err error
	if cfg.OwnerID, err = getEnvAsID("OWNER_ID", true); err != nil {
		return nil, err
	}
	if cfg.LogChannelID, err = getEnvAsID("LOG_CHANNEL_ID", false); err != nil {
		return nil, err
	}

	tz := getEnv("TIMEZONE", "Asia/Kolkata")
	if cfg.Timezone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", tz, err)
	}

	if cfg.OwnerPasswordHash != "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET must be set when OWNER_PASSWORD_HASH is")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsID(key string, required bool) (int64, error) {
	v := os.Getenv(key)
	if v == "" {
		if required {
			return 0, fmt.Errorf("%s must be set", key)
		}
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", key, v, err)
	}
	return id, nil
}
