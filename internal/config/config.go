package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the bot
type Config struct {
	// Discord
	DiscordToken string

	// Valorant API (optional; raises the unauthenticated rate limit)
	HenrikAPIKey string

	// Database
	DatabasePath string

	// Correlation
	GroupWait       time.Duration // debounce window for squad assembly
	MaxGroupWait    time.Duration // cap on total window extension
	APISettleWait   time.Duration // delay before the first fetch of a cycle
	RetryPause      time.Duration // pause before the in-cycle transient retry
	FetchAttempts   int           // max requests per account per cycle
	CompetitiveOnly bool          // announce Competitive matches only

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		DiscordToken: os.Getenv("DISCORD_BOT_TOKEN"),
		HenrikAPIKey: os.Getenv("HENRIK_API_KEY"),
		DatabasePath: getEnvOrDefault("DATABASE_PATH", "./data/bot.db"),
		LogLevel:     getEnvOrDefault("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.GroupWait, err = secondsEnv("GROUP_WAIT_SECONDS", 30); err != nil {
		return nil, err
	}
	if cfg.MaxGroupWait, err = secondsEnv("MAX_GROUP_WAIT_SECONDS", 120); err != nil {
		return nil, err
	}
	if cfg.APISettleWait, err = secondsEnv("API_WAIT_SECONDS", 60); err != nil {
		return nil, err
	}
	if cfg.RetryPause, err = secondsEnv("RETRY_PAUSE_SECONDS", 10); err != nil {
		return nil, err
	}

	attemptsStr := getEnvOrDefault("FETCH_MAX_ATTEMPTS", "4")
	attempts, err := strconv.Atoi(attemptsStr)
	if err != nil || attempts < 1 {
		return nil, fmt.Errorf("invalid FETCH_MAX_ATTEMPTS: %q", attemptsStr)
	}
	cfg.FetchAttempts = attempts

	competitiveStr := getEnvOrDefault("COMPETITIVE_ONLY", "true")
	competitive, err := strconv.ParseBool(competitiveStr)
	if err != nil {
		return nil, fmt.Errorf("invalid COMPETITIVE_ONLY: %q", competitiveStr)
	}
	cfg.CompetitiveOnly = competitive

	// Validate required fields
	if cfg.DiscordToken == "" {
		return nil, fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	if cfg.MaxGroupWait < cfg.GroupWait {
		return nil, fmt.Errorf("MAX_GROUP_WAIT_SECONDS must be at least GROUP_WAIT_SECONDS")
	}

	return cfg, nil
}

func secondsEnv(key string, defaultSeconds int) (time.Duration, error) {
	raw := getEnvOrDefault(key, strconv.Itoa(defaultSeconds))
	secs, err := strconv.Atoi(raw)
	if err != nil || secs < 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return time.Duration(secs) * time.Second, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
