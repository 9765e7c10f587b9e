package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string

	// Lease manager
	LeaseTTL      time.Duration
	SweepInterval time.Duration

	// Record pool
	ReservationTTL time.Duration

	// Daily progress
	DayKeyTimezone     *time.Location
	ResetCheckInterval time.Duration
	DailyCallTarget    int

	// Dashboard stream
	BroadcastInterval time.Duration
	PingPeriod        time.Duration
	PongWait          time.Duration
	WriteWait         time.Duration
	MaxMessageSize    int64
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	config := &Config{
		Port:           getEnv("PORT", "8080"),
		AllowedOrigins: strings.Split(getEnv("ALLOWED_ORIGINS", "http://localhost:5173"), ","),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
	}

	var err error
	if config.LeaseTTL, err = getDuration("LEASE_TTL_MINUTES", 20, time.Minute); err != nil {
		return nil, err
	}
	if config.SweepInterval, err = getDuration("LEASE_SWEEP_SECONDS", 45, time.Second); err != nil {
		return nil, err
	}
	if config.SweepInterval >= config.LeaseTTL {
		return nil, fmt.Errorf("LEASE_SWEEP_SECONDS must be shorter than LEASE_TTL_MINUTES")
	}
	if config.ReservationTTL, err = getDuration("FETCH_RESERVATION_SECONDS", 5, time.Second); err != nil {
		return nil, err
	}
	if config.ResetCheckInterval, err = getDuration("RESET_CHECK_SECONDS", 60, time.Second); err != nil {
		return nil, err
	}
	if config.BroadcastInterval, err = getDuration("BROADCAST_SECONDS", 5, time.Second); err != nil {
		return nil, err
	}

	target, err := strconv.Atoi(getEnv("DAILY_CALL_TARGET", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid DAILY_CALL_TARGET: %w", err)
	}
	config.DailyCallTarget = target

	// The canonical timezone scopes every dayKey; agents in other timezones
	// still roll over together.
	tzName := getEnv("DAY_KEY_TIMEZONE", "Europe/Berlin")
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid DAY_KEY_TIMEZONE %q: %w", tzName, err)
	}
	config.DayKeyTimezone = loc

	// WebSocket keepalive constants
	config.PongWait = 60 * time.Second
	config.PingPeriod = (config.PongWait * 9) / 10 // Must be less than pongWait
	config.WriteWait = 10 * time.Second
	config.MaxMessageSize = 512

	// Trim spaces from allowed origins
	for i, origin := range config.AllowedOrigins {
		config.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	return config, nil
}

// getDuration parses an integer environment variable into a duration
func getDuration(key string, fallback int, unit time.Duration) (time.Duration, error) {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(fallback)))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return time.Duration(value) * unit, nil
}

// getEnv gets an environment variable with a fallback default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
