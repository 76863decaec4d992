package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func validConfig() Config {
	return Config{
		SessionSecret:   "session",
		CSRFSecret:      "csrf",
		StoreDriver:     "memory",
		AppTimezone:     "UTC",
		ReminderCron:    "0 8 * * *",
		WarmupCron:      "*/30 * * * *",
		RateLimitPerMin: 60,
	}
}

func TestValidateAcceptsDefaults(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.SessionSecret = ""
	cfg.StoreDriver = "mongo"
	cfg.ReminderCron = "every morning"
	cfg.AppTimezone = "Mars/Olympus"

	err := cfg.Validate()
	require.Error(t, err)
	msg := err.Error()
	require.Contains(t, msg, "SESSION_SECRET")
	require.Contains(t, msg, "STORE_DRIVER")
	require.Contains(t, msg, "REMINDER_CRON")
	require.Contains(t, msg, "APP_TIMEZONE")
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	t.Setenv("SESSION_SECRET", "s")
	t.Setenv("CSRF_SECRET", "c")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", "tmp/test.db")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "sqlite", cfg.StoreDriver)
	require.Equal(t, "tmp/test.db", cfg.SQLitePath)
	require.Equal(t, "UTC", cfg.Location().String())
	require.False(t, cfg.IsProduction())
}

func TestInTestMode(t *testing.T) {
	t.Setenv(testModeEnv, "1")
	RefreshTestMode()
	require.True(t, InTestMode())
	t.Setenv(testModeEnv, "0")
	RefreshTestMode()
	require.False(t, InTestMode())
}
