package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Env)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, 12*time.Hour, cfg.JWT.Expiration)
	assert.False(t, cfg.Journal.Enabled)
	assert.Equal(t, 2, cfg.Journal.Workers)
	assert.Equal(t, time.Minute, cfg.Snapshot.CacheTTL)
	assert.False(t, cfg.AI.Enabled())
	assert.Equal(t, 8*time.Second, cfg.AI.Timeout)
	assert.Equal(t, time.Hour, cfg.Exports.SignedURLTTL)
	assert.Equal(t, 30*time.Minute, cfg.Exports.CleanupInterval)
	assert.Nil(t, cfg.CORS.AllowedOrigins)
}

func TestLoadEnvFileAndOverrides(t *testing.T) {
	for _, key := range []string{"PORT", "ALLOWED_ORIGINS", "SNAPSHOT_CACHE_TTL", "AI_API_KEY"} {
		t.Setenv(key, "")
	}
	t.Setenv("LOG_LEVEL", "warn")

	envFile := filepath.Join(t.TempDir(), "test.env")
	content := "PORT=9090\nLOG_LEVEL=debug\nALLOWED_ORIGINS=http://a.test, http://b.test\nSNAPSHOT_CACHE_TTL=not-a-duration\nAI_API_KEY=gemini-key\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0o600))

	cfg, err := Load(envFile)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.CORS.AllowedOrigins)
	assert.Equal(t, time.Minute, cfg.Snapshot.CacheTTL)
	assert.True(t, cfg.AI.Enabled())
}
