package input

import (
	"context"

	"github.com/nathro/autotransform/internal/item"
)

// EmptyInput returns no Items. Useful for schemas whose transformer derives
// its own work, and as a placeholder while authoring a schema.
type EmptyInput struct{}

// ComponentName identifies the component in bundles.
func (e *EmptyInput) ComponentName() string { return "empty" }

// GetItems returns an empty item list.
func (e *EmptyInput) GetItems(context.Context) ([]item.Item, error) {
	return nil, nil
}
