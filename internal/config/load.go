package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// RepoConfigRelativePath returns the config directory path relative to the
// repository root.
func RepoConfigRelativePath() string {
	if p := os.Getenv(EnvRepoConfigPath); p != "" {
		return p
	}
	return "autotransform"
}

// CwdConfigRelativePath returns the config directory path relative to the
// current working directory.
func CwdConfigRelativePath() string {
	if p := os.Getenv(EnvCwdConfigPath); p != "" {
		return p
	}
	return "autotransform"
}

// FindRepoConfigDir walks up from the given directory looking for the repo
// config directory (one containing autotransform.toml under the repo-relative
// path). Returns an empty string when no config directory is found. Stops at
// the filesystem root.
func FindRepoConfigDir(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", fmt.Errorf("config: resolving path: %w", err)
	}
	rel := RepoConfigRelativePath()
	for {
		candidate := filepath.Join(dir, rel)
		if _, err := os.Stat(filepath.Join(candidate, ConfigFileName)); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root.
			return "", nil
		}
		dir = parent
	}
}

// LoadFromFile parses the TOML file at the given path.
func LoadFromFile(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, fmt.Errorf("config: loading %s: %w (%w)", path, err, ErrConfig)
	}
	return &cfg, nil
}

// Load assembles the effective configuration. When explicitPath is non-empty
// only that file (plus the environment layer) is consulted; a missing
// explicit file is an error. Otherwise the repo config file and the
// working-directory config file are layered, each optional.
//
// Environment variables form the top layer unless
// AUTO_TRANSFORM_CONFIG_USE_FALLBACK is set to "false", in which case they
// are the only layer.
func Load(explicitPath string) (*Config, error) {
	cfg := &Config{}

	useFallback := true
	if v := os.Getenv(EnvUseFallback); v != "" {
		useFallback = strings.EqualFold(v, "true") || v == "1"
	}

	if useFallback {
		if explicitPath != "" {
			fileCfg, err := LoadFromFile(explicitPath)
			if err != nil {
				return nil, err
			}
			merge(cfg, fileCfg)
		} else {
			cwd, err := os.Getwd()
			if err != nil {
				return nil, fmt.Errorf("config: getting working directory: %w", err)
			}
			repoDir, err := FindRepoConfigDir(cwd)
			if err != nil {
				return nil, err
			}
			if repoDir != "" {
				fileCfg, err := LoadFromFile(filepath.Join(repoDir, ConfigFileName))
				if err != nil {
					return nil, err
				}
				merge(cfg, fileCfg)
			}
			cwdFile := filepath.Join(cwd, CwdConfigRelativePath(), ConfigFileName)
			if cwdFile != filepath.Join(repoDir, ConfigFileName) {
				if _, err := os.Stat(cwdFile); err == nil {
					fileCfg, err := LoadFromFile(cwdFile)
					if err != nil {
						return nil, err
					}
					merge(cfg, fileCfg)
				}
			}
		}
	}

	merge(cfg, fromEnvironment())
	return cfg, nil
}

// fromEnvironment builds the environment-variable config layer.
func fromEnvironment() *Config {
	env := &Config{
		GithubToken:        os.Getenv("AUTO_TRANSFORM_GITHUB_TOKEN"),
		GithubBaseURL:      os.Getenv("AUTO_TRANSFORM_GITHUB_BASE_URL"),
		ComponentDirectory: os.Getenv("AUTO_TRANSFORM_COMPONENT_DIRECTORY"),
		SchemaDirectory:    os.Getenv(EnvSchemaDirectory),
	}
	if raw := os.Getenv("AUTO_TRANSFORM_LOCAL_RUNNER"); raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			env.LocalRunner = m
		}
	}
	if raw := os.Getenv("AUTO_TRANSFORM_REMOTE_RUNNER"); raw != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(raw), &m); err == nil {
			env.RemoteRunner = m
		}
	}
	return env
}
