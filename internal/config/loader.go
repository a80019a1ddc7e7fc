package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NATAL_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known NATAL_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Ephemeris ──
	setStr(&cfg.Ephemeris.URL, "NATAL_EPHEMERIS_URL")
	setDuration(&cfg.Ephemeris.HandshakeTimeout, "NATAL_EPHEMERIS_HANDSHAKE_TIMEOUT")
	setDuration(&cfg.Ephemeris.ComputeTimeout, "NATAL_EPHEMERIS_COMPUTE_TIMEOUT")

	// ── Geocode ──
	setStr(&cfg.Geocode.URL, "NATAL_GEOCODE_URL")
	setDuration(&cfg.Geocode.Timeout, "NATAL_GEOCODE_TIMEOUT")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "NATAL_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NATAL_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NATAL_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NATAL_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NATAL_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NATAL_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.ChartTTL, "NATAL_REDIS_CHART_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "NATAL_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "NATAL_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NATAL_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NATAL_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NATAL_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NATAL_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NATAL_POSTGRES_SSLMODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NATAL_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NATAL_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NATAL_POSTGRES_RUN_MIGRATIONS")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "NATAL_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NATAL_S3_REGION")
	setStr(&cfg.S3.Bucket, "NATAL_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NATAL_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NATAL_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NATAL_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NATAL_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "NATAL_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "NATAL_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NATAL_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NATAL_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NATAL_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NATAL_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NATAL_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NATAL_NOTIFY_EVENTS")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "NATAL_ARCHIVE_ENABLED")
	setInt(&cfg.Archive.RetentionDays, "NATAL_ARCHIVE_RETENTION_DAYS")
	setDuration(&cfg.Archive.Interval, "NATAL_ARCHIVE_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.Mode, "NATAL_MODE")
	setStr(&cfg.LogLevel, "NATAL_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
