package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{"HTTP_PORT", "DATABASE_URL", "REDIS_ADDR", "WORKER_COUNT", "QUEUE_BLOCK_TIME"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}

	cfg, err := Load("./nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, 4, cfg.WorkerCount)
	assert.Equal(t, 5*time.Second, cfg.ReadBlockTime)
	assert.Equal(t, "file_parsers", cfg.ConsumerGroup)
}

func TestLoadOverridesFromEnv(t *testing.T) {
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("WORKER_COUNT", "8")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")

	cfg, err := Load("./nonexistent.env")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.HTTPPort)
	assert.Equal(t, 8, cfg.WorkerCount)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoadRejectsInvalidWorkerCount(t *testing.T) {
	t.Setenv("WORKER_COUNT", "0")
	_, err := Load("./nonexistent.env")
	require.Error(t, err)
}
