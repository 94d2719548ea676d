package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func writeTestPack(t *testing.T, root string) string {
	t.Helper()
	dir := filepath.Join(root, "neon_city")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "manifest.yaml"), []byte(`id: neon_city
name: Neon City
version: 1.0.0
layer: sourcebook
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "neon_dragon.md"), []byte(`---
title: The Neon Dragon
type: location
entity_id: neon_dragon
entity_refs: [viktor]
---
# The Neon Dragon

## The Back Room

Viktor runs the smuggling operation from the back room.
`), 0o644))
	return root
}

func TestRootCmd_HasSubcommands(t *testing.T) {
	root := NewRootCmd()
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"index", "reindex", "remove", "search", "scene", "packs", "stats", "watch", "version"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "lorekit")

	out, err = runCLI(t, "version", "--json")
	require.NoError(t, err)
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.NotEmpty(t, info["version"])
}

func TestIndexSearchRoundTrip(t *testing.T) {
	t.Setenv("LOREKIT_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	packsDir := writeTestPack(t, t.TempDir())

	out, err := runCLI(t, "index", packsDir)
	require.NoError(t, err)
	assert.Contains(t, out, "indexed neon_city")

	out, err = runCLI(t, "packs")
	require.NoError(t, err)
	assert.Contains(t, out, "neon_city")

	out, err = runCLI(t, "search", "viktor smuggling", "--format", "json")
	require.NoError(t, err)
	var result struct {
		Chunks []struct {
			ID string
		}
	}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.NotEmpty(t, result.Chunks)
	assert.Equal(t, "neon_city:the_neon_dragon:the_back_room", result.Chunks[0].ID)

	out, err = runCLI(t, "stats", "--format", "json")
	require.NoError(t, err)
	var stats struct {
		Packs  int `json:"packs"`
		Chunks int `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Equal(t, 1, stats.Packs)
	assert.Equal(t, 2, stats.Chunks)
}

func TestRemoveCmd(t *testing.T) {
	t.Setenv("LOREKIT_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	packsDir := writeTestPack(t, t.TempDir())

	_, err := runCLI(t, "index", packsDir)
	require.NoError(t, err)

	out, err := runCLI(t, "remove", "neon_city")
	require.NoError(t, err)
	assert.Contains(t, out, "removed neon_city")

	out, err = runCLI(t, "packs")
	require.NoError(t, err)
	assert.Contains(t, out, "no packs indexed")
}

func TestSceneCmd_MaterializesAndCaches(t *testing.T) {
	t.Setenv("LOREKIT_DATA_DIR", filepath.Join(t.TempDir(), "data"))
	packsDir := writeTestPack(t, t.TempDir())

	_, err := runCLI(t, "index", packsDir)
	require.NoError(t, err)

	out, err := runCLI(t, "scene", "neon_dragon", "--campaign", "c1")
	require.NoError(t, err)
	var sceneLore map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &sceneLore))
	assert.Contains(t, sceneLore, "atmosphere")

	// Second run reads the cache and returns the same structure.
	again, err := runCLI(t, "scene", "neon_dragon", "--campaign", "c1")
	require.NoError(t, err)
	assert.JSONEq(t, out, again)

	_, err = runCLI(t, "scene", "neon_dragon", "--campaign", "c1", "--invalidate")
	require.NoError(t, err)
}
