package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	DatabaseDriver string
	DatabaseURL    string

	LogLevel  string
	LogFormat string

	SweepSchedule    string
	ReminderMaxAge   time.Duration
	SweepBatchSize   int
	SweepConcurrency int
	SendRatePerSec   int
	SendTimeout      time.Duration

	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string

	PostmarkServerToken string
	FromEmail           string

	// CronSecretHash is the bcrypt hash of the bearer token accepted by the
	// sweep endpoint. Empty disables the endpoint.
	CronSecretHash string

	// FeedOriginPatterns lists the browser origins allowed to open the live
	// feed websocket, in addition to same-host requests.
	FeedOriginPatterns []string
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first if present; real environment variables win.
func Load() (*Config, error) {
	_ = godotenv.Load() // .env is optional in production

	cfg := &Config{
		Port:                getEnvOrDefault("RESTOREGEEK_PORT", "8080"),
		DatabaseDriver:      getEnvOrDefault("DATABASE_DRIVER", "sqlite"),
		DatabaseURL:         getEnvOrDefault("DATABASE_URL", "restoregeek.db"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "text"),
		SweepSchedule:       getEnvOrDefault("REMINDER_SWEEP_SCHEDULE", "@every 1m"),
		TwilioAccountSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:     os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber:   os.Getenv("TWILIO_PHONE_NUMBER"),
		PostmarkServerToken: os.Getenv("POSTMARK_SERVER_TOKEN"),
		FromEmail:           os.Getenv("REMINDER_FROM_EMAIL"),
		CronSecretHash:      os.Getenv("CRON_SECRET_HASH"),
		FeedOriginPatterns:  splitList(os.Getenv("FEED_ORIGIN_PATTERNS")),
	}

	var err error
	if cfg.ReminderMaxAge, err = getDurationOrDefault("REMINDER_MAX_AGE", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.SweepBatchSize, err = getIntOrDefault("REMINDER_BATCH_SIZE", 500); err != nil {
		return nil, err
	}
	if cfg.SweepConcurrency, err = getIntOrDefault("REMINDER_CONCURRENCY", 4); err != nil {
		return nil, err
	}
	if cfg.SendRatePerSec, err = getIntOrDefault("SEND_RATE_PER_SEC", 10); err != nil {
		return nil, err
	}
	if cfg.SendTimeout, err = getDurationOrDefault("SEND_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}

	switch cfg.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("DATABASE_DRIVER must be sqlite or postgres, got %q", cfg.DatabaseDriver)
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, value)
	}
	return n, nil
}

func getDurationOrDefault(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return 0, fmt.Errorf("%s must be a non-negative duration, got %q", key, value)
	}
	return d, nil
}

// splitList parses a comma separated value, dropping blank entries.
func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
