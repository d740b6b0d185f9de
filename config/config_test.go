package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "database:\n  dsn: postgres://localhost/gym\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, 3*time.Hour, cfg.Access.MaxSession)
	assert.Equal(t, 5*time.Minute, cfg.Access.ClaimWindow)
	assert.Equal(t, 30*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, 2*time.Minute, cfg.Cache.QueueTTL)
	assert.Equal(t, "none", cfg.Lock.Strategy)
	assert.Equal(t, 100, cfg.Analytics.HistorySize)
	assert.Equal(t, 30, cfg.Analytics.DefaultSessionMinutes)
	assert.Equal(t, 7, cfg.Analytics.WaitLookbackDays)
	assert.Equal(t, 1, cfg.WorkerPool.Size)
	assert.Equal(t, "equipment-events", cfg.Events.Kafka.Topic)
	assert.False(t, cfg.Push.Enabled())
}

func TestLoad_Overrides(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: SQLite
  dsn: file:gym.db
access:
  max_session_minutes: 90
  claim_window_minutes: 2
  calorie_rates:
    ROWING: 11
sweeper:
  enabled: true
  interval_seconds: 5
lock:
  strategy: Memory
log:
  level: debug
push:
  vapid_public_key: pub
  vapid_private_key: priv
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, 90*time.Minute, cfg.Access.MaxSession)
	assert.Equal(t, 2*time.Minute, cfg.Access.ClaimWindow)
	assert.Equal(t, 11.0, cfg.Access.CalorieRates["ROWING"])
	assert.True(t, cfg.Sweeper.Enabled)
	assert.Equal(t, 5*time.Second, cfg.Sweeper.Interval)
	assert.Equal(t, "memory", cfg.Lock.Strategy)
	assert.Equal(t, slog.LevelDebug, cfg.Log.SlogLevel())
	assert.True(t, cfg.Push.Enabled())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
