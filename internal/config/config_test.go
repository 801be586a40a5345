package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, DefaultLogName, cfg.Log)
	assert.Equal(t, DefaultLimits, cfg.Limits)
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, WorkDirName), 0o755))
	content := "actor: robin\nlimits:\n  max_results: 50\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, WorkDirName, configName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "robin", cfg.Actor)
	assert.Equal(t, 50, cfg.Limits.MaxResults)
	assert.Equal(t, DefaultLimits.MaxDeps, cfg.Limits.MaxDeps)
	assert.Equal(t, DefaultLimits.MaxLabels, cfg.Limits.MaxLabels)
	assert.Equal(t, DefaultLogName, cfg.Log)
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, WorkDirName), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, WorkDirName, configName), []byte("{nope"), 0o644))

	_, err := Load(dir)
	assert.Error(t, err)
}

func TestPaths(t *testing.T) {
	cfg := Config{Log: "custom.jsonl"}
	assert.Equal(t, filepath.Join("/ws", WorkDirName, "custom.jsonl"), cfg.LogPath("/ws"))
	assert.Equal(t, filepath.Join("/ws", WorkDirName, DefaultCacheName), cfg.CachePath("/ws"))
}
