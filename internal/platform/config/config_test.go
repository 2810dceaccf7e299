package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, 5*time.Minute, cfg.PlacementExpiryInterval)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Empty(t, cfg.DatabaseDSN)
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DB_DSN", "postgres://localhost/custody")
	t.Setenv("NOTIFY_KAFKA_BROKERS", "k1:9092, k2:9092")
	t.Setenv("PLACEMENT_EXPIRY_INTERVAL", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "postgres://localhost/custody", cfg.DatabaseDSN)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 30*time.Second, cfg.PlacementExpiryInterval)
}

func TestLoad_RejectsNonPositiveInterval(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("PLACEMENT_EXPIRY_INTERVAL", "0s")

	_, err := Load()
	require.Error(t, err)
}
