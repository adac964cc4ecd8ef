package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateDefault(t *testing.T) {
	cfg := GenerateDefault()

	assert.Equal(t, "1.0", cfg.Version)
	assert.Equal(t, "claude", cfg.AgentBinary)

	assert.Equal(t, "sonnet", cfg.Convert.Model)
	assert.Equal(t, 15, cfg.Convert.TimeoutMinutes)

	assert.Equal(t, "haiku", cfg.Observe.Model)
	assert.Equal(t, 10, cfg.Observe.TimeoutMinutes)

	require.NoError(t, cfg.Validate())
}

func TestValidateMissingVersion(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Version = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version")
}

func TestValidateMissingAgentBinary(t *testing.T) {
	cfg := GenerateDefault()
	cfg.AgentBinary = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "agent_binary")
}

func TestValidateBadModel(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Convert.Model = "gpt"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model")
}

func TestValidateBadTimeout(t *testing.T) {
	cfg := GenerateDefault()
	cfg.Observe.TimeoutMinutes = 0

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout_minutes")
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := GenerateDefault()
	cfg.Convert.TimeoutMinutes = 30
	require.NoError(t, cfg.SaveToFile(path))

	// 0600 permissions
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	loaded, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestLoadFromFileMissing(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}

func TestLoadFromFileMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := LoadFromFile(path)
	assert.Error(t, err)
}
