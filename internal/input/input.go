// Package input provides the built-in Input components that produce the
// candidate Items for a run.
package input

import (
	"encoding/json"

	"github.com/nathro/autotransform/internal/schema"
)

func init() {
	schema.RegisterInput("directory", func(data json.RawMessage) (schema.Input, error) {
		var d DirectoryInput
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, err
		}
		return &d, d.validate()
	})
	schema.RegisterInput("empty", func(data json.RawMessage) (schema.Input, error) {
		return &EmptyInput{}, nil
	})
}
