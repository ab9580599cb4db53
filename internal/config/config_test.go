package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.NoError(t, err)
	require.Equal(t, Default(), cfg)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "godb.config.json")
	want := Config{DataDir: "/var/godb", BufferPoolSize: 128, FileCacheSize: 4, BatchFormat: "json"}
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestLoadOverlaysPartialFileOntoDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "partial.json")
	require.NoError(t, Save(path, Config{BufferPoolSize: 42}))

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, got.BufferPoolSize)
	require.Equal(t, "", got.DataDir)
}
