package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

var keys = []string{"HTTP_ADDR", "DB_PATH", "LOG_LEVEL", "RETRY_INTERVAL", "INVALIDATION_CONCURRENCY", "CORS_ORIGINS"}

// clearEnv unsets every config key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "plantao.db", cfg.DBPath)
	assert.Equal(t, zapcore.InfoLevel, cfg.LogLevel)
	assert.Equal(t, 5*time.Minute, cfg.RetryInterval)
	assert.Equal(t, 4, cfg.InvalidationConcurrency)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestFromEnv_Overrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RETRY_INTERVAL", "30s")
	t.Setenv("INVALIDATION_CONCURRENCY", " 8 ")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, zapcore.DebugLevel, cfg.LogLevel)
	assert.Equal(t, 30*time.Second, cfg.RetryInterval)
	assert.Equal(t, 8, cfg.InvalidationConcurrency)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LOG_LEVEL", "chatty"},
		{"RETRY_INTERVAL", "soon"},
		{"RETRY_INTERVAL", "0s"},
		{"INVALIDATION_CONCURRENCY", "many"},
		{"INVALIDATION_CONCURRENCY", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tt.key, tt.value)

			_, err := FromEnv()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.key)
		})
	}
}

func TestLoad_EnvFile(t *testing.T) {
	// GIVEN: A .env file setting DB_PATH and LOG_LEVEL, with LOG_LEVEL also
	//        set in the environment
	// WHEN: Loading
	// THEN: The file fills DB_PATH, the environment wins for LOG_LEVEL

	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_PATH=/tmp/plantao-test.db\nLOG_LEVEL=error\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "/tmp/plantao-test.db", cfg.DBPath)
	assert.Equal(t, zapcore.WarnLevel, cfg.LogLevel)
}

func TestLoad_MissingFileIgnored(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
}
