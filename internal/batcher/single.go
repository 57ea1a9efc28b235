package batcher

import (
	"context"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/item"
)

// SingleBatcher groups all Items into one Batch.
type SingleBatcher struct {
	Title    string         `json:"title"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ComponentName identifies the component in bundles.
func (b *SingleBatcher) ComponentName() string { return "single" }

// Batch returns a single Batch holding every Item, or no Batches when there
// are no Items.
func (b *SingleBatcher) Batch(_ context.Context, items []item.Item) ([]batch.Batch, error) {
	if len(items) == 0 {
		return nil, nil
	}
	return []batch.Batch{{
		Title:    b.Title,
		Items:    items,
		Metadata: copyMetadata(b.Metadata),
	}}, nil
}
