// Package batcher provides the built-in Batcher components that group
// filtered Items into Batches.
package batcher

import (
	"encoding/json"
	"fmt"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

func init() {
	schema.RegisterBatcher("single", func(data json.RawMessage) (schema.Batcher, error) {
		var b SingleBatcher
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, requireTitle(b.Title)
	})
	schema.RegisterBatcher("chunk", func(data json.RawMessage) (schema.Batcher, error) {
		var b ChunkBatcher
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, b.validate()
	})
	schema.RegisterBatcher("directory", func(data json.RawMessage) (schema.Batcher, error) {
		var b DirectoryBatcher
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		return &b, requireTitle(b.Prefix)
	})
	schema.RegisterBatcher("extra_data", func(data json.RawMessage) (schema.Batcher, error) {
		var b ExtraDataBatcher
		if err := json.Unmarshal(data, &b); err != nil {
			return nil, err
		}
		if b.GroupBy == "" {
			return nil, fmt.Errorf("batcher: extra_data batcher requires group_by: %w", config.ErrConfig)
		}
		return &b, nil
	})
}

func requireTitle(title string) error {
	if title == "" {
		return fmt.Errorf("batcher: title must not be empty: %w", config.ErrConfig)
	}
	return nil
}

// copyMetadata returns a shallow copy of the metadata so batches do not share
// mutable state.
func copyMetadata(metadata map[string]any) map[string]any {
	if metadata == nil {
		return nil
	}
	out := make(map[string]any, len(metadata))
	for k, v := range metadata {
		out[k] = v
	}
	return out
}
