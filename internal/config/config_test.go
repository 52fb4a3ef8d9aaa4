package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.DBConfig.DBHost)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, []string{"localhost:9092"}, cfg.GetKafkaBrokers())
	assert.Equal(t, 30*time.Second, cfg.JobTimeout)
	assert.Equal(t, "AR", cfg.TrackingNumberPrefix)
	assert.InDelta(t, 0.10, cfg.CommissionRate, 0.0001)

	for queueName, n := range cfg.WorkerConcurrency {
		assert.GreaterOrEqual(t, n, 1, "concurrency for %s", queueName)
	}
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("MARKETPLACE_DB_HOST", "db.internal")
	t.Setenv("WORKER_CONCURRENCY_EMAIL", "8")
	t.Setenv("COMMISSION_RATE", "0.15")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DBConfig.DBHost)
	assert.Equal(t, 8, cfg.WorkerConcurrency["email"])
	assert.InDelta(t, 0.15, cfg.CommissionRate, 0.0001)
}

func TestLoadConfig_InvalidValues(t *testing.T) {
	t.Setenv("JOB_TIMEOUT", "soon")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_CommissionOutOfRange(t *testing.T) {
	t.Setenv("COMMISSION_RATE", "1.5")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfig_InvalidConcurrency(t *testing.T) {
	t.Setenv("WORKER_CONCURRENCY_PUSH", "0")
	_, err := LoadConfig()
	require.Error(t, err)
}

func TestGetDBConnectionString(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Contains(t, cfg.GetDBConnectionString(), "host=localhost")
	assert.Contains(t, cfg.GetDBConnectionString(), "sslmode=disable")
	assert.Contains(t, cfg.GetDBMigrationConnectionString(), "@localhost:5432/")
}
