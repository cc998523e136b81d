package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:3000", cfg.Addr())
	assert.Equal(t, "http://localhost:5173", cfg.Server.ClientURL)
	assert.Equal(t, 600*time.Millisecond, cfg.WindowDuration())
	assert.Equal(t, 8, cfg.Sync.RequiredUsers)
	assert.Equal(t, 5, cfg.RateLimit.Points)
	assert.Equal(t, 3*time.Second, cfg.RateLimitDuration())
	assert.Equal(t, 300*time.Second, cfg.ColorCooldown())
	assert.Equal(t, 5*time.Second, cfg.UserCountInterval())
	assert.Equal(t, time.Duration(0), cfg.IdleSweepInterval())
	assert.Empty(t, cfg.NATS.URL)
	assert.Equal(t, "pulse.events", cfg.NATS.SubjectPrefix)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PORT", "9090")
	t.Setenv("SYNC_WINDOW_MS", "1000")
	t.Setenv("SYNC_REQUIRED_USERS", "3")
	t.Setenv("PULSE_RATE_POINTS", "10")
	t.Setenv("PULSE_RATE_DURATION", "1")
	t.Setenv("COLOR_CHANGE_COOLDOWN", "60")
	t.Setenv("SYNC_IDLE_SWEEP_MS", "250")
	t.Setenv("NATS_URL", "nats://nats:4222")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9090", cfg.Addr())
	assert.Equal(t, time.Second, cfg.WindowDuration())
	assert.Equal(t, 3, cfg.Sync.RequiredUsers)
	assert.Equal(t, 10, cfg.RateLimit.Points)
	assert.Equal(t, time.Second, cfg.RateLimitDuration())
	assert.Equal(t, time.Minute, cfg.ColorCooldown())
	assert.Equal(t, 250*time.Millisecond, cfg.IdleSweepInterval())
	assert.Equal(t, "nats://nats:4222", cfg.NATS.URL)
}

func TestLoad_FractionalRateDuration(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("PULSE_RATE_DURATION", "1.5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, cfg.RateLimitDuration())
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := os.WriteFile(path, []byte(`
server:
  port: "4000"
sync:
  window_ms: 800
  required_users: 4
rate_limit:
  points: 7
`), 0o600)
	require.NoError(t, err)

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("SYNC_REQUIRED_USERS", "6")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:4000", cfg.Addr())
	assert.Equal(t, 800*time.Millisecond, cfg.WindowDuration())
	assert.Equal(t, 6, cfg.Sync.RequiredUsers, "env wins over the file")
	assert.Equal(t, 7, cfg.RateLimit.Points)
	assert.Equal(t, 3.0, cfg.RateLimit.DurationSec, "unset keys keep defaults")
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("malformed number", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("SYNC_WINDOW_MS", "fast")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("zero rate duration", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("PULSE_RATE_DURATION", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "rate limit points and duration must be positive")
	})

	t.Run("invalid values", func(t *testing.T) {
		t.Setenv("CONFIG_PATH", "")
		t.Setenv("SYNC_REQUIRED_USERS", "0")
		_, err := Load()
		assert.ErrorContains(t, err, "required users must be positive")
	})
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Sync.WindowMS = 0
	cfg.RateLimit.Points = -1
	err := cfg.Validate()
	assert.ErrorContains(t, err, "sync window must be positive")
	assert.ErrorContains(t, err, "rate limit points and duration must be positive")
}
