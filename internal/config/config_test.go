package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(path, content string) error {
	return os.WriteFile(path, []byte(content), 0o600)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "gpt-4o", cfg.AI.DefaultModel)
	assert.Equal(t, "gpt-4o-mini", cfg.AI.FallbackModel)
	assert.Equal(t, 32000, cfg.AI.ContextWindow)
	assert.Equal(t, 120*time.Second, cfg.AI.RequestTimeout)
	assert.Equal(t, 300*time.Second, cfg.Review.Timeout)
	assert.Equal(t, 50, cfg.Review.MaxFiles)
	assert.Equal(t, 5, cfg.Review.MaxConcurrentCalls)
	assert.Equal(t, "https://gitlab.com", cfg.DefaultGitLabURL)
	assert.False(t, cfg.CacheEnabled())
	assert.False(t, cfg.DatabaseEnabled())
}

func TestLoadConfigReadsEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DEFAULT_AI_MODEL", "gpt-4-turbo")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("DB_HOST", "localhost")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "gpt-4-turbo", cfg.AI.DefaultModel)
	assert.True(t, cfg.CacheEnabled())
	assert.True(t, cfg.DatabaseEnabled())
}

func TestLoadConfigRequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "OPENAI_API_KEY")
}

func TestValidateRejectsTooSmallContextWindow(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-key")
	t.Setenv("AI_CONTEXT_WINDOW", "4000") // below output tokens + overhead

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "AI_CONTEXT_WINDOW")
}

func TestBudgetFor(t *testing.T) {
	cfg := &Config{AI: AIConfig{
		ContextWindow:   32000,
		MaxOutputTokens: 4000,
		PromptOverhead:  1500,
	}}

	assert.Equal(t, 26500, cfg.BudgetFor(ModelCatalog{}, "gpt-4o"))

	catalog := ModelCatalog{
		"small-model": {ContextWindow: 8000, MaxOutputTokens: 2000},
	}
	assert.Equal(t, 4500, cfg.BudgetFor(catalog, "small-model"))
	assert.Equal(t, 26500, cfg.BudgetFor(catalog, "unknown-model"))
}

func TestBudgetForNeverNegative(t *testing.T) {
	cfg := &Config{AI: AIConfig{
		ContextWindow:   1000,
		MaxOutputTokens: 4000,
		PromptOverhead:  1500,
	}}
	assert.Equal(t, 0, cfg.BudgetFor(ModelCatalog{}, "tiny"))
}

func TestLoadModelCatalog(t *testing.T) {
	catalog, err := LoadModelCatalog("")
	require.NoError(t, err)
	assert.Empty(t, catalog)

	path := t.TempDir() + "/models.yaml"
	content := "gpt-4o:\n  context_window: 128000\n  max_output_tokens: 16000\n"
	require.NoError(t, writeFile(path, content))

	catalog, err = LoadModelCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, 128000, catalog["gpt-4o"].ContextWindow)
	assert.Equal(t, 16000, catalog["gpt-4o"].MaxOutputTokens)
}

func TestLoadModelCatalogMissingFile(t *testing.T) {
	_, err := LoadModelCatalog(t.TempDir() + "/nope.yaml")
	assert.Error(t, err)
}
