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

func TestNewDefaultsFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "missing.yaml")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.Equal(t, "Asia/Shanghai", cfg.Calendar.TimeZone)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.WeChat.Timeout)
	assert.Equal(t, int32(10), cfg.Postgres.MaxConns)
}

func TestNewReadsYAMLWithEnvOverride(t *testing.T) {
	dir := t.TempDir()

	path := filepath.Join(dir, "bus.yaml")
	yaml := "http:\n  port: \"9090\"\ncalendar:\n  time_zone: UTC\npostgres:\n  dbname: ledger\n"
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("POSTGRES_DB", "override")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTP.Port)
	assert.Equal(t, "UTC", cfg.Calendar.TimeZone)
	assert.Equal(t, "override", cfg.Postgres.DBName)
}

func TestLogSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, Log{Level: "debug"}.SlogLevel())
	assert.Equal(t, slog.LevelWarn, Log{Level: "WARN"}.SlogLevel())
	assert.Equal(t, slog.LevelInfo, Log{Level: "chatty"}.SlogLevel())
}
