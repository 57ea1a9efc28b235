// Package config provides AutoTransform's read-only settings.
//
// Settings come from three layers, lowest priority first: the repository
// config file, the working-directory config file, and environment variables.
// Each layer overrides only the fields it sets. The config is loaded once per
// invocation and never written by the engine.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConfig is the root of the configuration error taxonomy. Missing or
// invalid config, and unknown component bundles, wrap this error; the CLI
// maps it to a dedicated exit code.
var ErrConfig = errors.New("invalid configuration")

// ConfigFileName is the name of the AutoTransform configuration file.
const ConfigFileName = "autotransform.toml"

// Environment variables honored by config discovery and loading.
const (
	// EnvRepoConfigPath is the path of the config directory relative to the
	// repository root.
	EnvRepoConfigPath = "AUTO_TRANSFORM_REPO_CONFIG_PATH"

	// EnvCwdConfigPath is the path of the config directory relative to the
	// current working directory.
	EnvCwdConfigPath = "AUTO_TRANSFORM_CWD_CONFIG_PATH"

	// EnvUseFallback controls whether environment-variable settings layer on
	// top of file-based settings ("true", the default) or replace them.
	EnvUseFallback = "AUTO_TRANSFORM_CONFIG_USE_FALLBACK"

	// EnvSchemaDirectory overrides the directory holding schemas and the
	// schema map.
	EnvSchemaDirectory = "AUTO_TRANSFORM_SCHEMA_DIRECTORY"
)

// Config is the top-level configuration structure mapping to
// autotransform.toml.
type Config struct {
	// GithubToken is loaded and layered like the other settings. The gh-based
	// adapters do not read it; they use the gh CLI's own authentication.
	GithubToken string `toml:"github_token"`

	// GithubBaseURL is loaded and layered like the other settings. The
	// gh-based adapters do not read it; gh selects the host itself.
	GithubBaseURL string `toml:"github_base_url"`

	// ComponentDirectory is where custom component JSON files live.
	ComponentDirectory string `toml:"component_directory"`

	// SchemaDirectory is where schemas and the schema map live. Overridden
	// by AUTO_TRANSFORM_SCHEMA_DIRECTORY.
	SchemaDirectory string `toml:"schema_directory"`

	// LocalRunner and RemoteRunner are runner component bundles, decoded by
	// the runner factory on first use.
	LocalRunner  map[string]any `toml:"local_runner"`
	RemoteRunner map[string]any `toml:"remote_runner"`
}

// LocalRunnerBundle returns the local runner bundle as JSON, or nil when the
// config does not declare one.
func (c *Config) LocalRunnerBundle() (json.RawMessage, error) {
	return runnerBundle(c.LocalRunner, "local_runner")
}

// RemoteRunnerBundle returns the remote runner bundle as JSON, or nil when
// the config does not declare one.
func (c *Config) RemoteRunnerBundle() (json.RawMessage, error) {
	return runnerBundle(c.RemoteRunner, "remote_runner")
}

func runnerBundle(m map[string]any, field string) (json.RawMessage, error) {
	if len(m) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("config: encoding %s bundle: %w", field, err)
	}
	return data, nil
}

// merge overlays src on top of dst, field by field. Only fields set in src
// take effect.
func merge(dst, src *Config) {
	if src.GithubToken != "" {
		dst.GithubToken = src.GithubToken
	}
	if src.GithubBaseURL != "" {
		dst.GithubBaseURL = src.GithubBaseURL
	}
	if src.ComponentDirectory != "" {
		dst.ComponentDirectory = src.ComponentDirectory
	}
	if src.SchemaDirectory != "" {
		dst.SchemaDirectory = src.SchemaDirectory
	}
	if len(src.LocalRunner) > 0 {
		dst.LocalRunner = src.LocalRunner
	}
	if len(src.RemoteRunner) > 0 {
		dst.RemoteRunner = src.RemoteRunner
	}
}
