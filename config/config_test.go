package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("OUTBOX_INTERVAL_MS", "")
	t.Setenv("OUTBOX_BATCH_SIZE", "")
	t.Setenv("OUTBOX_STALE_PROCESSING_MIN", "")

	cfg := LoadConfig()

	assert.Equal(t, 5*time.Second, cfg.Outbox.Interval)
	assert.Equal(t, 20, cfg.Outbox.BatchSize)
	assert.Zero(t, cfg.Outbox.StaleProcessingAfter)
	assert.Equal(t, time.Minute, cfg.Outbox.BackoffStep)
	assert.Equal(t, 10*time.Minute, cfg.Outbox.BackoffMax)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("OUTBOX_INTERVAL_MS", "250")
	t.Setenv("OUTBOX_BATCH_SIZE", "5")
	t.Setenv("OUTBOX_STALE_PROCESSING_MIN", "15")
	t.Setenv("OUTBOX_ENABLED", "false")
	t.Setenv("REDIS_ENABLED", "not-a-bool")

	cfg := LoadConfig()

	assert.Equal(t, 250*time.Millisecond, cfg.Outbox.Interval)
	assert.Equal(t, 5, cfg.Outbox.BatchSize)
	assert.Equal(t, 15*time.Minute, cfg.Outbox.StaleProcessingAfter)
	assert.False(t, cfg.Outbox.Enabled)
	assert.True(t, cfg.RedisEnabled)
}
