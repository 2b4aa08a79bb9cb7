package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	for _, key := range []string{
		"SERVER_PORT", "LLM_PROVIDER", "EMBEDDING_PROVIDER", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
		"LOG_LEVEL", "ENGINE_MAX_CONCURRENT", "ENGINE_BATCH_SIZE", "ENGINE_MAX_RETRIES",
		"ENGINE_TICK_MS", "ENGINE_AUTOSTART", "PERSIST_DEBOUNCE_MS",
	} {
		t.Setenv(key, "")
	}

	assert.Equal(t, ":8080", ServerAddr())
	assert.Equal(t, "openai", LLMProvider())
	assert.Equal(t, "openai", EmbeddingProvider())
	assert.Equal(t, 100.0, RateLimitRPS())
	assert.Equal(t, 20, RateLimitBurst())
	assert.Equal(t, "info", LogLevel())
	assert.Equal(t, 5, EngineMaxConcurrent())
	assert.Equal(t, 3, EngineBatchSize())
	assert.Equal(t, 3, EngineMaxRetries())
	assert.Equal(t, time.Second, EngineTickInterval())
	assert.True(t, EngineAutostart())
	assert.Equal(t, 500*time.Millisecond, PersistDebounce())
}

func TestOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("ENGINE_BATCH_SIZE", "7")
	t.Setenv("ENGINE_TICK_MS", "250")
	t.Setenv("ENGINE_AUTOSTART", "false")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("ENGINE_MAX_RETRIES", "-1")

	assert.Equal(t, ":9090", ServerAddr())
	assert.Equal(t, 7, EngineBatchSize())
	assert.Equal(t, 250*time.Millisecond, EngineTickInterval())
	assert.False(t, EngineAutostart())
	assert.Equal(t, 2.5, RateLimitRPS())
	assert.Equal(t, 3, EngineMaxRetries(), "non-positive values fall back to the default")
}

func TestProviderKeys(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("GEMINI_API_KEY", "gm")
	t.Setenv("CEREBRAS_API_KEY", "cb")

	tests := []struct {
		provider string
		want     string
	}{
		{provider: "openai", want: "sk-openai"},
		{provider: "anthropic", want: "sk-ant"},
		{provider: "gemini", want: "gm"},
		{provider: "cerebras", want: "cb"},
		{provider: "mock", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			t.Setenv("LLM_PROVIDER", tt.provider)
			assert.Equal(t, tt.want, LLMAPIKey())
		})
	}

	t.Setenv("EMBEDDING_PROVIDER", "mock")
	assert.Empty(t, EmbeddingAPIKey())
	t.Setenv("EMBEDDING_PROVIDER", "openai")
	assert.Equal(t, "sk-openai", EmbeddingAPIKey())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("RULES_FILE=rules.yaml\nSNAPSHOT_DIR=from-env\n"), 0o600))
	require.NoError(t, os.WriteFile(envFile+".secret", []byte("API_TOKEN=s3cret\n"), 0o600))

	t.Setenv("REFLEX_ENV", envFile)
	t.Setenv("RULES_FILE", "")
	t.Setenv("API_TOKEN", "")
	t.Setenv("SNAPSHOT_DIR", "preset")
	require.NoError(t, os.Unsetenv("RULES_FILE"))
	require.NoError(t, os.Unsetenv("API_TOKEN"))

	require.NoError(t, Load())
	assert.Equal(t, "rules.yaml", RulesFile())
	assert.Equal(t, "s3cret", APIToken())
	assert.Equal(t, "preset", SnapshotDir(), "the environment wins over the file")
}
