// Package filter provides the built-in Filter components that narrow the
// Items participating in a run.
//
// Every filter carries an inverted flag that flips its verdict, so any
// filter can be used to exclude instead of include.
package filter

import (
	"encoding/json"
	"fmt"
	"regexp"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/schema"
)

func init() {
	schema.RegisterFilter("regex", func(data json.RawMessage) (schema.Filter, error) {
		var f RegexFilter
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, validatePattern(f.Pattern)
	})
	schema.RegisterFilter("regex_file_content", func(data json.RawMessage) (schema.Filter, error) {
		var f FileContentRegexFilter
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, validatePattern(f.Pattern)
	})
	schema.RegisterFilter("key_hash_shard", func(data json.RawMessage) (schema.Filter, error) {
		var f KeyHashShardFilter
		if err := json.Unmarshal(data, &f); err != nil {
			return nil, err
		}
		return &f, f.validate()
	})
}

func validatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("filter: pattern must not be empty: %w", config.ErrConfig)
	}
	if _, err := regexp.Compile(pattern); err != nil {
		return fmt.Errorf("filter: invalid pattern %q: %w (%w)", pattern, err, config.ErrConfig)
	}
	return nil
}

// inverted applies the inverted flag to a verdict.
func inverted(flag, valid bool) bool {
	if flag {
		return !valid
	}
	return valid
}
