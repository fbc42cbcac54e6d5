package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "redis://localhost:6379/0", cfg.Broker.RedisURL)
	assert.Equal(t, "gpt-3.5-turbo", cfg.Analysis.Model)
	assert.Equal(t, 500, cfg.Analysis.MaxTokens)
	assert.Equal(t, 3, cfg.Analysis.MaxRetries)
	assert.Equal(t, 4, cfg.Analysis.Concurrency)
	assert.Equal(t, 90, cfg.Retention.Days)
	assert.Empty(t, cfg.GitHub.Token, "anonymous GitHub access by default")
	assert.Empty(t, cfg.Analysis.OpenAIAPIKey, "mock mode by default")
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoad(t *testing.T) {
	path := writeConfigFile(t, `
server:
  host: 127.0.0.1
  port: 9000
  debug: true
broker:
  redis_url: redis://broker:6379/1
analysis:
  openai_api_key: sk-test
  max_tokens: 800
retention:
  days: 30
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.True(t, cfg.Server.Debug)
	assert.Equal(t, "redis://broker:6379/1", cfg.Broker.RedisURL)
	assert.Equal(t, "sk-test", cfg.Analysis.OpenAIAPIKey)
	assert.Equal(t, 800, cfg.Analysis.MaxTokens)
	assert.Equal(t, 30, cfg.Retention.Days)

	// Unspecified values keep their defaults.
	assert.Equal(t, "gpt-3.5-turbo", cfg.Analysis.Model)
	assert.Equal(t, 90, Default().Retention.Days)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "server: [not a mapping")
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("PULLSENSE_TEST_TOKEN", "ghp_secret")
	path := writeConfigFile(t, `
github:
  token: ${PULLSENSE_TEST_TOKEN}
broker:
  redis_url: ${PULLSENSE_TEST_REDIS:-redis://fallback:6379/0}
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ghp_secret", cfg.GitHub.Token)
	assert.Equal(t, "redis://fallback:6379/0", cfg.Broker.RedisURL)
}

func TestExpandEnvVarsLeavesBareDollars(t *testing.T) {
	assert.Equal(t, "$2a$10$hash", expandEnvVars("$2a$10$hash"))
}

func TestExpandEnvVarsUnsetWithoutDefault(t *testing.T) {
	assert.Equal(t, "token: ", expandEnvVars("token: ${PULLSENSE_TEST_UNSET_VAR}"))
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "0.0.0.0", Port: 8000}
	assert.Equal(t, "0.0.0.0:8000", s.Address())
}
