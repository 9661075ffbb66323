package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var libraryKeys = []string{
	"LIBRARY_DB_DRIVER", "LIBRARY_DB_PATH", "LIBRARY_DB_DSN", "LIBRARY_LOCK_TIMEOUT",
	"LIBRARY_DB_MAX_OPEN_CONNS", "LIBRARY_LOAN_PERIOD_DAYS", "LIBRARY_DAILY_RATE",
	"LIBRARY_MAX_ACTIVE_LOANS", "LIBRARY_LOG_LEVEL", "LIBRARY_LOG_FORMAT", "LIBRARY_METRICS_FILE",
}

// clearEnv blanks every key so values from the host do not leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range libraryKeys {
		t.Setenv(k, "")
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
	assert.Equal(t, "library.db", cfg.Database.Path)
	assert.Equal(t, 5*time.Second, cfg.Database.LockTimeout)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 14, cfg.Policy.LoanPeriodDays)
	assert.True(t, cfg.Policy.DailyRate.Equal(decimal.RequireFromString("0.50")))
	assert.Equal(t, 0, cfg.Policy.MaxActiveLoans)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRARY_DB_DRIVER", "Postgres")
	t.Setenv("LIBRARY_DB_DSN", "postgres://localhost/library")
	t.Setenv("LIBRARY_LOCK_TIMEOUT", "250ms")
	t.Setenv("LIBRARY_LOAN_PERIOD_DAYS", "21")
	t.Setenv("LIBRARY_DAILY_RATE", "1.25")
	t.Setenv("LIBRARY_MAX_ACTIVE_LOANS", "5")
	t.Setenv("LIBRARY_LOG_FORMAT", "JSON")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Database.LockTimeout)
	assert.Equal(t, 21, cfg.Policy.LoanPeriodDays)
	assert.True(t, cfg.Policy.DailyRate.Equal(decimal.RequireFromString("1.25")))
	assert.Equal(t, 5, cfg.Policy.MaxActiveLoans)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestFromEnvRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"LIBRARY_LOCK_TIMEOUT":     "soon",
		"LIBRARY_LOAN_PERIOD_DAYS": "0",
		"LIBRARY_DAILY_RATE":       "-1",
		"LIBRARY_MAX_ACTIVE_LOANS": "many",
		"LIBRARY_DB_DRIVER":        "oracle",
		"LIBRARY_LOG_LEVEL":        "loud",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(key, value)
			_, err := FromEnv()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestPostgresNeedsDSN(t *testing.T) {
	clearEnv(t)
	t.Setenv("LIBRARY_DB_DRIVER", "postgres")
	_, err := FromEnv()
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestLoadReadsEnvFile(t *testing.T) {
	clearEnv(t)
	for _, k := range libraryKeys {
		// godotenv never overrides variables that are already set.
		os.Unsetenv(k)
	}
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("LIBRARY_DB_PATH=from-file.db\nLIBRARY_LOAN_PERIOD_DAYS=7\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("LIBRARY_DB_PATH")
		os.Unsetenv("LIBRARY_LOAN_PERIOD_DAYS")
	})

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-file.db", cfg.Database.Path)
	assert.Equal(t, 7, cfg.Policy.LoanPeriodDays)
}

func TestLoadWithoutEnvFile(t *testing.T) {
	clearEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Database.Driver)
}
