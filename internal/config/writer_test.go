package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_RoundTrip(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	cfg.Server.Port = 8123
	cfg.LLM.APIKey = "sk-secret"

	path := filepath.Join(t.TempDir(), "nested", ".deepagent.yaml")
	require.NoError(t, WriteFile(path, cfg, false))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "# deepagent configuration")
	assert.NotContains(t, string(raw), "sk-secret")

	v := viper.New()
	Setup(v, path)
	require.NoError(t, Read(v, true))
	loaded, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 8123, loaded.Server.Port)
	assert.Equal(t, cfg.Integrity.Schedule, loaded.Integrity.Schedule)
	assert.Empty(t, loaded.LLM.APIKey)
	assert.Equal(t, "sk-secret", cfg.LLM.APIKey, "caller's config is not modified")
}

func TestWriteFile_RefusesOverwrite(t *testing.T) {
	cfg, err := Defaults()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), ".deepagent.yaml")

	require.NoError(t, WriteFile(path, cfg, false))
	assert.Error(t, WriteFile(path, cfg, false))
	assert.NoError(t, WriteFile(path, cfg, true))
}
