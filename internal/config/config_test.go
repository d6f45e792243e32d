package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tournevent/carrierbridge/internal/config"
	"go.opentelemetry.io/otel/attribute"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.CallTimeout)
	assert.True(t, cfg.ColissimoEnabled)
	assert.Equal(t, "https://api.laposte.fr", cfg.LaPosteBaseURL)
	assert.Equal(t, "site:config", cfg.RedisConfigKey)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("CALL_TIMEOUT", "5s")
	t.Setenv("LAPOSTE_USE_MOCK", "true")
	t.Setenv("MONDIAL_RELAY_ENSEIGNE", "BDTEST13")
	t.Setenv("MONDIAL_RELAY_KEY", "PrivateK")

	cfg, err := config.Load("")

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*time.Second, cfg.CallTimeout)
	assert.True(t, cfg.LaPosteUseMock)
	creds := cfg.Credentials()
	assert.Equal(t, "BDTEST13", creds.MondialRelayEnseigne)
	assert.Equal(t, "PrivateK", creds.MondialRelayPrivateKey)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("LAPOSTE_API_KEY=from-file\nLOG_LEVEL=debug\n"), 0o600))
	t.Setenv("LOG_LEVEL", "warn")
	t.Cleanup(func() { _ = os.Unsetenv("LAPOSTE_API_KEY") })

	cfg, err := config.Load(path)

	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.LaPosteAPIKey)
	// the process environment wins over the file
	assert.Equal(t, "warn", cfg.LogLevel)
}

func TestLoad_MissingEnvFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "absent.env"))
	assert.NoError(t, err)
}

func TestLoad_InvalidValue(t *testing.T) {
	t.Setenv("PORT", "eighty")

	_, err := config.Load("")

	assert.Error(t, err)
}

func TestConfig_Attributes(t *testing.T) {
	cfg := &config.Config{ServiceName: "carrierbridge", Version: "1.0.0", LaPosteEnabled: true, RedisURL: "redis://localhost:6379"}

	attrs := cfg.Attributes()

	assert.Contains(t, attrs, attribute.String("service.name", "carrierbridge"))
	assert.Contains(t, attrs, attribute.Bool("laposte.enabled", true))
	assert.Contains(t, attrs, attribute.Bool("redis.enabled", true))
}
