package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, StrategyKeyword, cfg.Retrieval.DefaultStrategy)
	assert.Equal(t, 0.5, cfg.Retrieval.Alpha)
	assert.Equal(t, 5, cfg.Retrieval.TopK)
	assert.Equal(t, 8000, cfg.Retrieval.MaxContextLength)
	assert.Equal(t, "all-content", cfg.Collections.Unified)
	assert.NotEmpty(t, cfg.Collections.KeywordRoutes)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
retrieval:
  default_strategy: unified
  alpha: 0.8
  top_k: 10
collections:
  unified: everything
  priority: [qa]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coursemind.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StrategyUnified, cfg.Retrieval.DefaultStrategy)
	assert.Equal(t, 0.8, cfg.Retrieval.Alpha)
	assert.Equal(t, 10, cfg.Retrieval.TopK)
	assert.Equal(t, "everything", cfg.Collections.Unified)
	assert.Equal(t, []string{"qa"}, cfg.Collections.Priority)
	// Untouched values keep defaults
	assert.Equal(t, 8000, cfg.Retrieval.MaxContextLength)
}

func TestLoad_UnknownStrategyMapsToDefault(t *testing.T) {
	dir := t.TempDir()
	content := "retrieval:\n  default_strategy: quantum\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coursemind.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategy, cfg.Retrieval.DefaultStrategy)
}

func TestLoad_LegacyEnhancedAliasMapsToKeyword(t *testing.T) {
	dir := t.TempDir()
	content := "retrieval:\n  default_strategy: enhanced\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coursemind.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, StrategyKeyword, cfg.Retrieval.DefaultStrategy)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	content := "retrieval:\n  default_strategy: unified\n  alpha: 0.2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coursemind.yaml"), []byte(content), 0o644))

	t.Setenv("COURSEMIND_STRATEGY", "classification")
	t.Setenv("COURSEMIND_ALPHA", "0.9")
	t.Setenv("COURSEMIND_OLLAMA_HOST", "http://ollama.internal:11434")

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, StrategyClassification, cfg.Retrieval.DefaultStrategy)
	assert.Equal(t, 0.9, cfg.Retrieval.Alpha)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Embeddings.OllamaHost)
	assert.Equal(t, "http://ollama.internal:11434", cfg.Answer.OllamaHost)
}

func TestLoad_InvalidYAMLFails(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".coursemind.yaml"), []byte("retrieval: ["), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestValidate_RejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"alpha above one", func(c *Config) { c.Retrieval.Alpha = 1.5 }},
		{"negative alpha", func(c *Config) { c.Retrieval.Alpha = -0.1 }},
		{"zero top_k", func(c *Config) { c.Retrieval.TopK = 0 }},
		{"zero context budget", func(c *Config) { c.Retrieval.MaxContextLength = 0 }},
		{"zero normalization", func(c *Config) { c.Retrieval.NormalizationConstant = 0 }},
		{"missing unified", func(c *Config) { c.Collections.Unified = "" }},
		{"empty fallback", func(c *Config) { c.Collections.Fallback = nil }},
		{"zero timeout", func(c *Config) { c.Retrieval.CollectionTimeout = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestNewConfig_ValidatesCleanly(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
}

func TestNewConfig_Timeouts(t *testing.T) {
	cfg := NewConfig()
	assert.Equal(t, 3*time.Second, cfg.Retrieval.CollectionTimeout)
	assert.Equal(t, 2*time.Second, cfg.Classifier.Timeout)
}
