package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromFile_AppliesDefaultsForMissingFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, SaveToFile(&Config{Username: "alice"}, path))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "alice", cfg.Username)
	assert.NotEmpty(t, cfg.ICEServers)
	assert.NotEmpty(t, cfg.STUNServers)
}

func TestLoadFromFile_MissingFileReturnsError(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestSaveToFile_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	original := &Config{
		Username:          "bob",
		AudioInputDevice:  "default-in",
		AudioOutputDevice: "default-out",
		ICEServers:        []string{"stun:a.example:3478"},
		STUNServers:       []string{"b.example:3478"},
	}
	require.NoError(t, SaveToFile(original, path))

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, original.Username, loaded.Username)
	assert.Equal(t, original.AudioInputDevice, loaded.AudioInputDevice)
	assert.Equal(t, original.ICEServers, loaded.ICEServers)
	assert.Equal(t, original.STUNServers, loaded.STUNServers)
}
