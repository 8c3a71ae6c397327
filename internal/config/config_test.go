package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func missingEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "8000", cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:3000", "http://localhost:5173"}, cfg.CORSOrigins)
	assert.Equal(t, 512, cfg.MaxNewTokens)
	assert.Equal(t, 30*time.Second, cfg.GenerationTimeout)
	assert.Equal(t, 10, cfg.MaxHistoryMessages)
	assert.InDelta(t, 0.7, cfg.Temperature, 1e-6)
	assert.InDelta(t, 0.9, cfg.TopP, 1e-6)
	assert.InDelta(t, 1.1, cfg.RepetitionPenalty, 1e-6)
	assert.Equal(t, "Qwen/Qwen2.5-0.5B-Instruct-GGUF/qwen2.5-0.5b-instruct-q5_k_m.gguf", cfg.ModelID())
	assert.Empty(t, cfg.JWTSecret)
}

func TestLoadConfigEnvironmentOverrides(t *testing.T) {
	t.Setenv("MAX_HISTORY_MESSAGES", "4")
	t.Setenv("GENERATION_TIMEOUT_S", "2.5")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := LoadConfig(missingEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxHistoryMessages)
	assert.Equal(t, 2500*time.Millisecond, cfg.GenerationTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)

	gen := cfg.Generation()
	assert.Equal(t, 4, gen.MaxHistoryMessages)
	assert.Equal(t, cfg.GenerationTimeout, gen.GenerationTimeout)
	assert.Equal(t, cfg.MaxConcurrentGenerations, gen.MaxConcurrent)
}

func TestLoadConfigReadsEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("MODEL_REPO=acme/tiny\nMAX_NEW_TOKENS=64\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("MODEL_REPO")
		os.Unsetenv("MAX_NEW_TOKENS")
	})

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "acme/tiny", cfg.ModelRepo)
	assert.Equal(t, 64, cfg.MaxNewTokens)
}

func TestLoadConfigRejectsBadNumbers(t *testing.T) {
	t.Setenv("TEMPERATURE", "warm")
	_, err := LoadConfig(missingEnvFile(t))
	assert.ErrorContains(t, err, "TEMPERATURE")
}

func TestLoadConfigRejectsNonPositiveLimits(t *testing.T) {
	t.Setenv("MAX_HISTORY_MESSAGES", "0")
	_, err := LoadConfig(missingEnvFile(t))
	assert.ErrorContains(t, err, "MAX_HISTORY_MESSAGES")
}
