package config

import (
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FORGE_AUTH_JWT_SECRET", strings.Repeat("s", 32))
	t.Setenv("FORGE_AUTH_USERNAME", "operator")
	t.Setenv("FORGE_AUTH_PASSWORD_HASH", "$2a$10$abcdefghijklmnopqrstuv")
	t.Setenv("FORGE_CATALOG_TEMPLATE_DIR", t.TempDir())
}

func chdirTemp(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoad_DefaultsApply(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Server.LogLevel)
	assert.Equal(t, "json", cfg.Server.LogFormat)
	assert.Equal(t, 4, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, 5, cfg.Breaker.FailureThreshold)
	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, int64(25<<20), cfg.Assets.MaxSizeBytes)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("FORGE_SERVER_PORT", "9999")
	t.Setenv("FORGE_ORCHESTRATOR_MAX_CONCURRENCY", "8")
	t.Setenv("FORGE_ORCHESTRATOR_ADAPTER_TIMEOUT", "45s")
	t.Setenv("FORGE_PROVIDERS_LUMA_ENABLED", "true")
	t.Setenv("FORGE_PROVIDERS_LUMA_BASE_URL", "https://api.luma.example.com")
	t.Setenv("FORGE_PROVIDERS_LUMA_API_KEY", "luma-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Orchestrator.MaxConcurrency)
	assert.Equal(t, "45s", cfg.Orchestrator.AdapterTimeout.String())
	assert.True(t, cfg.Providers.Luma.Enabled)
	assert.Equal(t, "https://api.luma.example.com", cfg.Providers.Luma.BaseURL)
}

func TestLoad_FailsOnShortSecret(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("FORGE_AUTH_JWT_SECRET", "short")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_FailsWhenEnabledProviderIsIncomplete(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("FORGE_PROVIDERS_PIKA_ENABLED", "true")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestLoad_FailsOnBadLogLevel(t *testing.T) {
	chdirTemp(t)
	setRequiredEnv(t)
	t.Setenv("FORGE_SERVER_LOG_LEVEL", "loud")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}
