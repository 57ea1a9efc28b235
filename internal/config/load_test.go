package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeConfig writes a config file under dir/autotransform/ and returns its
// path.
func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	cfgDir := filepath.Join(dir, "autotransform")
	require.NoError(t, os.MkdirAll(cfgDir, 0o755))
	path := filepath.Join(cfgDir, ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadFromFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `
github_token = "token-123"
component_directory = "components"

[remote_runner]
name = "github"
run_workflow = "autotransform.run.yml"
`)
	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "token-123", cfg.GithubToken)
	assert.Equal(t, "components", cfg.ComponentDirectory)

	bundle, err := cfg.RemoteRunnerBundle()
	require.NoError(t, err)
	assert.Contains(t, string(bundle), `"name":"github"`)
}

func TestLoadFromFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("not [valid toml"), 0o644))
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfig)
}

func TestFindRepoConfigDir_WalksUp(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "")
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))

	dir, err := FindRepoConfigDir(nested)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "autotransform"), dir)
}

func TestFindRepoConfigDir_NotFound(t *testing.T) {
	dir, err := FindRepoConfigDir(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, dir)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `github_token = "from-file"`)
	t.Setenv("AUTO_TRANSFORM_GITHUB_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GithubToken)
}

func TestLoad_NoFallbackSkipsFiles(t *testing.T) {
	path := writeConfig(t, t.TempDir(), `github_token = "from-file"`)
	t.Setenv(EnvUseFallback, "false")
	t.Setenv("AUTO_TRANSFORM_GITHUB_TOKEN", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.GithubToken)

	t.Setenv("AUTO_TRANSFORM_GITHUB_TOKEN", "")
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.GithubToken)
}

func TestLoad_EnvRunnerBundle(t *testing.T) {
	t.Setenv(EnvUseFallback, "false")
	t.Setenv("AUTO_TRANSFORM_LOCAL_RUNNER", `{"name":"local"}`)

	cfg, err := Load("")
	require.NoError(t, err)
	bundle, err := cfg.LocalRunnerBundle()
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"local"}`, string(bundle))
}

func TestRunnerBundle_AbsentIsNil(t *testing.T) {
	cfg := &Config{}
	bundle, err := cfg.LocalRunnerBundle()
	require.NoError(t, err)
	assert.Nil(t, bundle)
}
