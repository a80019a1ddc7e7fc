package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	require.NoError(t, cfg.Validate())
}

func TestValidateCollectsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.LogLevel = "loud"
	cfg.Ephemeris.URL = ""
	cfg.Redis.Addr = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown mode")
	require.Contains(t, err.Error(), "unknown log_level")
	require.Contains(t, err.Error(), "ephemeris: url")
	require.Contains(t, err.Error(), "redis: addr")
}

func TestValidateArchiveRequiresS3(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "archive"
	cfg.S3.Bucket = ""

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "s3: bucket")
}

func TestValidateTelegramPair(t *testing.T) {
	cfg := Defaults()
	cfg.Notify.TelegramToken = "tok"

	err := cfg.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "telegram_token and telegram_chat_id")
}

func TestLoadMergesFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	data := `
mode = "full"

[ephemeris]
url = "wss://ephemeris.example.com/swisseph"
compute_timeout = "45s"

[redis]
addr = "redis.example.com:6379"
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	t.Setenv("NATAL_REDIS_ADDR", "override:6379")
	t.Setenv("NATAL_SERVER_PORT", "9100")

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "full", cfg.Mode)
	require.Equal(t, "wss://ephemeris.example.com/swisseph", cfg.Ephemeris.URL)
	require.Equal(t, 45*time.Second, cfg.Ephemeris.ComputeTimeout.Duration)
	// Env beats file.
	require.Equal(t, "override:6379", cfg.Redis.Addr)
	require.Equal(t, 9100, cfg.Server.Port)
	// Untouched fields keep defaults.
	require.Equal(t, 10*time.Second, cfg.Geocode.Timeout.Duration)

	require.NoError(t, cfg.Validate())
}
