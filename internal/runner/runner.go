// Package runner provides the strategies for executing a Schema: in-process,
// or by triggering a remote workflow that will itself run the pipeline.
package runner

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

// Runner executes schema runs and change updates.
type Runner interface {
	schema.Component

	// Run fully executes a Schema.
	Run(ctx context.Context, s *schema.Schema) error

	// Update re-executes the pipeline for an outstanding Change's batch.
	Update(ctx context.Context, ch schema.Change) error
}

// FromBundle decodes a runner component bundle.
func FromBundle(data json.RawMessage) (Runner, error) {
	var header struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("runner: decoding bundle: %w (%w)", err, config.ErrConfig)
	}
	switch header.Name {
	case "local":
		return &LocalRunner{}, nil
	case "github":
		var r GithubRunner
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, err
		}
		return &r, r.validate()
	default:
		return nil, fmt.Errorf("runner: unknown runner component %q: %w", header.Name, config.ErrConfig)
	}
}

// Select resolves the local or remote runner from the config, defaulting to
// an in-process runner when the config does not declare one.
func Select(cfg *config.Config, local bool) (Runner, error) {
	var bundle json.RawMessage
	var err error
	if local {
		bundle, err = cfg.LocalRunnerBundle()
	} else {
		bundle, err = cfg.RemoteRunnerBundle()
	}
	if err != nil {
		return nil, err
	}
	if bundle == nil {
		return &LocalRunner{}, nil
	}
	return FromBundle(bundle)
}
