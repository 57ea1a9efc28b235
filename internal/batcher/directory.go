package batcher

import (
	"context"
	"path"
	"sort"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/item"
)

// DirectoryBatcher groups file Items by their containing directory, one
// Batch per directory. Titles are "<prefix>: <directory>".
type DirectoryBatcher struct {
	Prefix   string         `json:"prefix"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// ComponentName identifies the component in bundles.
func (b *DirectoryBatcher) ComponentName() string { return "directory" }

// Batch groups Items by directory. Batches are emitted in sorted directory
// order; Items keep input order within each Batch.
func (b *DirectoryBatcher) Batch(_ context.Context, items []item.Item) ([]batch.Batch, error) {
	groups := make(map[string][]item.Item)
	for _, it := range items {
		dir := path.Dir(it.Key)
		groups[dir] = append(groups[dir], it)
	}

	dirs := make([]string, 0, len(groups))
	for dir := range groups {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	batches := make([]batch.Batch, 0, len(dirs))
	for _, dir := range dirs {
		batches = append(batches, batch.Batch{
			Title:    b.Prefix + ": " + dir,
			Items:    groups[dir],
			Metadata: copyMetadata(b.Metadata),
		})
	}
	return batches, nil
}
