package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("QUEUE_LOG_PATH", "")
	t.Setenv("QUEUE_CAPACITY", "")
	t.Setenv("QUEUE_AUTO_SNAPSHOT", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("LOG_FORMAT", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "ticketsLog.csv", cfg.Queue.LogPath)
	assert.Equal(t, "tickets.snapshot", cfg.Queue.SnapshotPath)
	assert.Equal(t, 10000, cfg.Queue.Capacity)
	assert.True(t, cfg.Queue.AutoSnapshot)
	assert.Equal(t, 0, cfg.Redis.DB)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenTTL())
	assert.Equal(t, "json", cfg.Logger.Format)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("QUEUE_LOG_PATH", "/var/lib/ticketq/log.csv")
	t.Setenv("QUEUE_CAPACITY", "0")
	t.Setenv("QUEUE_AUTO_SNAPSHOT", "false")
	t.Setenv("AUDIT_DIR", "/var/log/ticketq")
	t.Setenv("AUDIT_REDIS_ENABLED", "true")
	t.Setenv("AUTH_TOKEN_TTL_MINUTES", "15")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/ticketq/log.csv", cfg.Queue.LogPath)
	assert.Equal(t, 0, cfg.Queue.Capacity)
	assert.False(t, cfg.Queue.AutoSnapshot)
	assert.True(t, cfg.Audit.RedisEnabled)
	assert.Equal(t, "/var/log/ticketq", cfg.Audit.Dir)
	assert.Equal(t, 15*time.Minute, cfg.Auth.TokenTTL())
}

func TestLoadFallsBackOnBadNumbers(t *testing.T) {
	t.Setenv("QUEUE_CAPACITY", "lots")
	t.Setenv("QUEUE_AUTO_SNAPSHOT", "maybe")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10000, cfg.Queue.Capacity)
	assert.True(t, cfg.Queue.AutoSnapshot)
}

func TestLoadRejectsBadRedisDB(t *testing.T) {
	t.Setenv("REDIS_DB", "zero")
	_, err := Load()
	assert.Error(t, err)
}
