package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fablekit/lorekit/internal/errors"
	"github.com/fablekit/lorekit/internal/lore"
	"github.com/fablekit/lorekit/internal/store"
	"github.com/fablekit/lorekit/internal/vector"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 1, cfg.Version)
	assert.NotEmpty(t, cfg.DataDir)
	assert.Equal(t, store.BackendSQLite, cfg.FullText.Backend)
	assert.Equal(t, vector.BackendNone, cfg.Vector.Backend)
	assert.Equal(t, lore.DefaultMaxTokens, cfg.Retrieval.MaxTokens)
	assert.Equal(t, lore.DefaultMaxChunks, cfg.Retrieval.MaxChunks)
	require.NoError(t, cfg.Validate())
}

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lorekit.yaml")
	content := `
version: 1
data_dir: /tmp/lore-test
fulltext:
  backend: bleve
vector:
  backend: hnsw
retrieval:
  max_tokens: 4000
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lore-test", cfg.DataDir)
	assert.Equal(t, store.BackendBleve, cfg.FullText.Backend)
	assert.Equal(t, vector.BackendHNSW, cfg.Vector.Backend)
	assert.Equal(t, 4000, cfg.Retrieval.MaxTokens)
	// Unset fields keep their defaults.
	assert.Equal(t, lore.DefaultMaxChunks, cfg.Retrieval.MaxChunks)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.ErrCodeConfigNotFound, "", nil))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fulltext: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.New(errors.ErrCodeConfigInvalid, "", nil))
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LOREKIT_DATA_DIR", "/tmp/lore-env")
	t.Setenv("LOREKIT_VECTOR_BACKEND", "hnsw")
	t.Setenv("LOREKIT_MAX_TOKENS", "1234")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/tmp/lore-env", cfg.DataDir)
	assert.Equal(t, vector.BackendHNSW, cfg.Vector.Backend)
	assert.Equal(t, 1234, cfg.Retrieval.MaxTokens)
}

func TestValidate_RejectsUnknownBackends(t *testing.T) {
	cfg := Default()
	cfg.FullText.Backend = "elasticsearch"
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Vector.Backend = "faiss"
	require.Error(t, cfg.Validate())
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg", "lorekit.yaml")

	cfg := Default()
	cfg.DataDir = "/tmp/lore-save"
	cfg.Vector.Backend = vector.BackendHNSW
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/lore-save", loaded.DataDir)
	assert.Equal(t, vector.BackendHNSW, loaded.Vector.Backend)
}

func TestDerivedPaths(t *testing.T) {
	cfg := Default()
	cfg.DataDir = "/data/lorekit"

	assert.Equal(t, filepath.Join("/data/lorekit", "lore.db"), cfg.StorePath())
	assert.Equal(t, filepath.Join("/data/lorekit", "vectors"), cfg.VectorDir())
	assert.Equal(t, filepath.Join("/data/lorekit", "index.lock"), cfg.LockPath())
	assert.Equal(t, filepath.Join("/data/lorekit", "logs", "lorekit.log"), cfg.LogPath())
}
