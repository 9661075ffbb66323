package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds all configuration for the application
type Config struct {
	Database    DatabaseConfig
	Policy      PolicyConfig
	Log         LogConfig
	MetricsFile string
}

// DatabaseConfig selects and tunes the backing store
type DatabaseConfig struct {
	Driver       string
	Path         string
	DSN          string
	LockTimeout  time.Duration
	MaxOpenConns int
}

// PolicyConfig holds the lending rules
type PolicyConfig struct {
	LoanPeriodDays int
	DailyRate      decimal.Decimal
	MaxActiveLoans int
}

// LogConfig controls the slog handler
type LogConfig struct {
	Level  string
	Format string
}

var ErrInvalidConfig = errors.New("invalid configuration")

// Load reads configuration from a .env file, if present, and the environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	var errs []error

	lockTimeout, err := getDuration("LIBRARY_LOCK_TIMEOUT", 5*time.Second)
	errs = append(errs, err)
	maxOpen, err := getInt("LIBRARY_DB_MAX_OPEN_CONNS", 20)
	errs = append(errs, err)
	period, err := getInt("LIBRARY_LOAN_PERIOD_DAYS", 14)
	errs = append(errs, err)
	maxLoans, err := getInt("LIBRARY_MAX_ACTIVE_LOANS", 0)
	errs = append(errs, err)

	rate, err := decimal.NewFromString(getEnv("LIBRARY_DAILY_RATE", "0.50"))
	if err != nil {
		errs = append(errs, fmt.Errorf("%w: LIBRARY_DAILY_RATE: %v", ErrInvalidConfig, err))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	cfg := &Config{
		Database: DatabaseConfig{
			Driver:       strings.ToLower(strings.TrimSpace(getEnv("LIBRARY_DB_DRIVER", DriverSQLite))),
			Path:         getEnv("LIBRARY_DB_PATH", "library.db"),
			DSN:          getEnv("LIBRARY_DB_DSN", ""),
			LockTimeout:  lockTimeout,
			MaxOpenConns: maxOpen,
		},
		Policy: PolicyConfig{
			LoanPeriodDays: period,
			DailyRate:      rate,
			MaxActiveLoans: maxLoans,
		},
		Log: LogConfig{
			Level:  strings.ToLower(getEnv("LIBRARY_LOG_LEVEL", "info")),
			Format: strings.ToLower(getEnv("LIBRARY_LOG_FORMAT", "text")),
		},
		MetricsFile: getEnv("LIBRARY_METRICS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that flags may have overridden after loading.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Database.Path) == "" {
			return fmt.Errorf("%w: sqlite needs LIBRARY_DB_PATH", ErrInvalidConfig)
		}
	case DriverPostgres:
		if strings.TrimSpace(c.Database.DSN) == "" {
			return fmt.Errorf("%w: postgres needs LIBRARY_DB_DSN", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown driver %q (must be %q or %q)",
			ErrInvalidConfig, c.Database.Driver, DriverSQLite, DriverPostgres)
	}

	if c.Database.LockTimeout <= 0 {
		return fmt.Errorf("%w: lock timeout must be positive", ErrInvalidConfig)
	}
	if c.Policy.LoanPeriodDays <= 0 {
		return fmt.Errorf("%w: loan period must be positive", ErrInvalidConfig)
	}
	if c.Policy.DailyRate.IsNegative() {
		return fmt.Errorf("%w: daily rate must not be negative", ErrInvalidConfig)
	}
	if c.Policy.MaxActiveLoans < 0 {
		return fmt.Errorf("%w: max active loans must not be negative", ErrInvalidConfig)
	}

	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log format %q (must be text or json)", ErrInvalidConfig, c.Log.Format)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, key, err)
	}
	return v, nil
}
