package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 720, cfg.Ollama.TimeoutSecs)
	assert.Equal(t, "schema_metadata", cfg.Retrieval.SchemaCollection)
	assert.Equal(t, "business_terms", cfg.Retrieval.GlossaryCollection)
	assert.Equal(t, 7, cfg.Retrieval.TopK)
	assert.False(t, cfg.Rerank.Enabled)
	assert.InDelta(t, 0.0005, cfg.Rerank.MinRelevance, 1e-9)
	assert.Equal(t, "ollama", cfg.Pipeline.DefaultBackend)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("ASKDB_STORE_DRIVER", "postgres")
	t.Setenv("ASKDB_RETRIEVAL_TOP_K", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, 3, cfg.Retrieval.TopK)
}

func TestInitLoggerBadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "nope", Format: "json"})
	assert.Error(t, err)
}

func TestInitLogger(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	assert.NoError(t, err)
}
