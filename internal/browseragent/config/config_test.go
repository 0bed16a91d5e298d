package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, Default().Task.MaxSteps, cfg.Task.MaxSteps)
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("task:\n  max_steps: 42\nbrowser:\n  headless: false\n"), 0o644))

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 42, cfg.Task.MaxSteps)
	assert.False(t, cfg.Browser.Headless)
}

func TestLoad_EnvOverridesWinOverFileAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("provider:\n  name: openai\n  model: gpt-4o\n"), 0o644))

	t.Setenv("BROWSERAGENT_PROVIDER", "anthropic")
	t.Setenv("BROWSERAGENT_API_KEY", "env-key")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, "anthropic", cfg.Provider.Name, "env var must win over the file value")
	assert.Equal(t, "gpt-4o", cfg.Provider.Model, "file value must survive when no env override is set")
	assert.Equal(t, "env-key", cfg.Provider.APIKey, "env var must win over the (unset) default")
}

func TestLoad_EnvOverrideAppliesEvenWithoutConfigFile(t *testing.T) {
	t.Setenv("BROWSERAGENT_CHROME_BIN", "/usr/bin/custom-chrome")

	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/custom-chrome", cfg.Browser.ChromeBin)
}

func TestTaskOptions_MapsFields(t *testing.T) {
	cfg := Default()
	cfg.Task.MaxSteps = 7

	opts := cfg.TaskOptions()

	assert.Equal(t, 7, opts.MaxSteps)
}
