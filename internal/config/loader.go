package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/example/weekend-scheduler/internal/logging"
	"github.com/example/weekend-scheduler/internal/timezone"
)

// Storage drivers accepted by SCHEDULER_STORAGE_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverBadger = "badger"
)

// Config captures environment driven configuration values for the scheduler service.
type Config struct {
	HTTPPort        int
	StorageDriver   string
	SQLiteDSN       string
	BadgerDir       string
	TickInterval    time.Duration
	DefaultTimezone string
	RosterCacheTTL  time.Duration
	DeliveryWorkers int
	DeliveryBuffer  int
	LogLevel        slog.Level
	LogFormat       string
	DiscordToken    string
	RedisURL        string
}

// Load parses configuration values from the current process environment.
//
// Optional fields fall back to defaults. Every invalid variable is collected
// and reported in one error.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		StorageDriver:   DriverSQLite,
		SQLiteDSN:       "scheduler.db",
		BadgerDir:       "data/badger",
		TickInterval:    time.Minute,
		DefaultTimezone: "UTC",
		RosterCacheTTL:  5 * time.Minute,
		DeliveryWorkers: 4,
		DeliveryBuffer:  256,
		LogLevel:        slog.LevelInfo,
		LogFormat:       "json",
	}

	invalid := make([]string, 0, 2)

	if portValue := env("SCHEDULER_HTTP_PORT"); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if driver := strings.ToLower(env("SCHEDULER_STORAGE_DRIVER")); driver != "" {
		if driver != DriverSQLite && driver != DriverBadger {
			invalid = append(invalid, "SCHEDULER_STORAGE_DRIVER")
		} else {
			cfg.StorageDriver = driver
		}
	}

	if dsn := env("SCHEDULER_SQLITE_DSN"); dsn != "" {
		cfg.SQLiteDSN = dsn
	}
	if dir := env("SCHEDULER_BADGER_DIR"); dir != "" {
		cfg.BadgerDir = dir
	}

	if !positiveDuration("SCHEDULER_TICK_INTERVAL", &cfg.TickInterval) {
		invalid = append(invalid, "SCHEDULER_TICK_INTERVAL")
	}
	if !positiveDuration("SCHEDULER_ROSTER_CACHE_TTL", &cfg.RosterCacheTTL) {
		invalid = append(invalid, "SCHEDULER_ROSTER_CACHE_TTL")
	}

	if zone := env("SCHEDULER_DEFAULT_TIMEZONE"); zone != "" {
		cfg.DefaultTimezone = zone
	}
	if !timezone.NewResolver().Valid(cfg.DefaultTimezone) {
		invalid = append(invalid, "SCHEDULER_DEFAULT_TIMEZONE")
	}

	if !positiveInt("SCHEDULER_DELIVERY_WORKERS", &cfg.DeliveryWorkers) {
		invalid = append(invalid, "SCHEDULER_DELIVERY_WORKERS")
	}
	if !positiveInt("SCHEDULER_DELIVERY_BUFFER", &cfg.DeliveryBuffer) {
		invalid = append(invalid, "SCHEDULER_DELIVERY_BUFFER")
	}

	if levelValue := env("SCHEDULER_LOG_LEVEL"); levelValue != "" {
		level, ok := logging.ParseLevel(levelValue)
		if !ok {
			invalid = append(invalid, "SCHEDULER_LOG_LEVEL")
		} else {
			cfg.LogLevel = level
		}
	}

	if format := strings.ToLower(env("SCHEDULER_LOG_FORMAT")); format != "" {
		if format != "json" && format != "text" {
			invalid = append(invalid, "SCHEDULER_LOG_FORMAT")
		} else {
			cfg.LogFormat = format
		}
	}

	cfg.DiscordToken = env("DISCORD_TOKEN")
	cfg.RedisURL = env("REDIS_URL")

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func env(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func positiveDuration(key string, dst *time.Duration) bool {
	value := env(key)
	if value == "" {
		return true
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return false
	}
	*dst = d
	return true
}

func positiveInt(key string, dst *int) bool {
	value := env(key)
	if value == "" {
		return true
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		return false
	}
	*dst = n
	return true
}
