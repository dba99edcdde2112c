package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"SECRET_KEY", "DATABASE_URL", "PORT", "REDIS_ADDR", "KAFKA_BROKERS", "KAFKA_ENABLED"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "dev", cfg.SecretKey)
	assert.True(t, cfg.UsesDefaultSecret())
	assert.Equal(t, "sqlite:///events.db", cfg.Database.URL)
	assert.Equal(t, ":5001", cfg.Server.Port)
	assert.Empty(t, cfg.Redis.Addr)
	assert.Equal(t, 10*time.Second, cfg.Redis.OrderLockTTL)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, "timeline.events.changed", cfg.Kafka.Topic)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("SECRET_KEY", "s3cret")
	t.Setenv("DATABASE_URL", "postgres://u:p@localhost:5432/timeline?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("ORDER_LOCK_TTL_SECONDS", "3")
	t.Setenv("HTTP_READ_TIMEOUT", "2s")

	cfg := Load()

	assert.False(t, cfg.UsesDefaultSecret())
	assert.Equal(t, "postgres://u:p@localhost:5432/timeline?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Redis.OrderLockTTL)
	assert.Equal(t, 2*time.Second, cfg.Server.ReadTimeout)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	t.Setenv("KAFKA_ENABLED", "maybe")
	t.Setenv("KAFKA_BROKERS", "")
	t.Setenv("HTTP_IDLE_TIMEOUT", "forever")

	cfg := Load()

	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	assert.False(t, cfg.Kafka.Enabled)
	assert.Equal(t, 60*time.Second, cfg.Server.IdleTimeout)
}
