package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "nope.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Embedding.Provider)
	assert.Equal(t, 1536, cfg.Embedding.StorageDim)
	assert.NotEmpty(t, cfg.DBPath)
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "engram.json")

	content := `{
		"data_dir": "` + dir + `",
		"embedding": {"provider": "ollama", "model": "nomic-embed-text", "storage_dim": 768},
		"retrieval": {"overquery_multiplier": 5}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Embedding.Provider)
	assert.Equal(t, 768, cfg.Embedding.StorageDim)
	assert.Equal(t, 5, cfg.Retrieval.OverqueryMultiplier)

	// Untouched fields keep their defaults
	assert.Equal(t, 0.92, cfg.Retrieval.DedupThreshold)
	assert.Equal(t, filepath.Join(dir, "engram.db"), cfg.DBPath)
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engram.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Embedding.StorageDim = 384
	cfg.Refrag.CompressionRatio = 0.5
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 384, loaded.Embedding.StorageDim)
	assert.Equal(t, 0.5, loaded.Refrag.CompressionRatio)
}
