package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnv_Defaults(t *testing.T) {
	t.Setenv("APP_ENV", "")
	t.Setenv("KYC_STALE_AFTER", "")
	t.Setenv("KAFKA_BROKERS", "")

	cfg := FromEnv()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 10*time.Minute, cfg.KYC.StaleAfter)
	assert.Equal(t, 5*time.Minute, cfg.KYC.PipelineTimeout)
	assert.Equal(t, uint64(2), cfg.Providers.AI.MaxRetries)
	assert.Equal(t, "local", cfg.Providers.IPFS.Mode)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "Production")
	t.Setenv("KYC_STALE_AFTER", "7m")
	t.Setenv("SKIP_ARIES", "true")
	t.Setenv("KAFKA_BROKERS", "b1:9092, b2:9092,")
	t.Setenv("AI_SERVICE_TIMEOUT", "not-a-duration")

	cfg := FromEnv()

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 7*time.Minute, cfg.KYC.StaleAfter)
	assert.True(t, cfg.KYC.SkipCredential)
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Second, cfg.Providers.AI.Timeout)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("KYC_PIPELINE_TIMEOUT=2m\nKYC_ADDR=:9999\n"), 0o600))

	t.Setenv("KYC_ADDR", ":7000")
	unset(t, "KYC_PIPELINE_TIMEOUT")

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))

	cfg := FromEnv()
	assert.Equal(t, 2*time.Minute, cfg.KYC.PipelineTimeout)
	assert.Equal(t, ":7000", cfg.Server.Addr, "existing variables win over the file")
}

func TestLoadDotEnv_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("KYC-ADDR=:1\n"), 0o600))

	assert.Error(t, LoadDotEnv(path))
}

// unset removes key for the duration of the test.
func unset(t *testing.T, key string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	require.NoError(t, os.Unsetenv(key))
	t.Cleanup(func() {
		if had {
			_ = os.Setenv(key, prev)
		} else {
			_ = os.Unsetenv(key)
		}
	})
}
