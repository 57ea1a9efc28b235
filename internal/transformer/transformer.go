// Package transformer provides the built-in Transformer components that
// modify files for a Batch.
package transformer

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

func init() {
	schema.RegisterTransformer("regex", func(data json.RawMessage) (schema.Transformer, error) {
		var t RegexTransformer
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, t.validate()
	})
	schema.RegisterTransformer("script", func(data json.RawMessage) (schema.Transformer, error) {
		var t ScriptTransformer
		if err := json.Unmarshal(data, &t); err != nil {
			return nil, err
		}
		return &t, t.validate()
	})
}

func validateRegex(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("transformer: pattern must not be empty: %w", config.ErrConfig)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("transformer: invalid pattern %q: %w (%w)", pattern, err, config.ErrConfig)
	}
	return nil
}
