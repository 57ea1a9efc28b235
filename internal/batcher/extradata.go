package batcher

import (
	"context"
	"fmt"
	"sort"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/item"
)

// ExtraDataBatcher groups Items by a string field of their extra data, one
// Batch per distinct value. Selected metadata keys can be promoted from the
// Items into the Batch metadata, letting Inputs drive per-batch settings
// (reviewers, bodies) from their source of record.
type ExtraDataBatcher struct {
	// GroupBy is the extra-data key whose value names each group.
	GroupBy string `json:"group_by"`

	// MetadataKeys lists extra-data keys combined into batch metadata. For
	// each key, values from all Items in the group are collected; a single
	// distinct value is stored bare, multiple values as a list.
	MetadataKeys []string `json:"metadata_keys,omitempty"`
}

// ComponentName identifies the component in bundles.
func (b *ExtraDataBatcher) ComponentName() string { return "extra_data" }

// Batch groups Items by their group_by value, in sorted group order.
func (b *ExtraDataBatcher) Batch(_ context.Context, items []item.Item) ([]batch.Batch, error) {
	groups := make(map[string][]item.Item)
	for _, it := range items {
		value, ok := it.ExtraData[b.GroupBy].(string)
		if !ok {
			return nil, fmt.Errorf("batcher: item %q has no string extra data %q", it.Key, b.GroupBy)
		}
		groups[value] = append(groups[value], it)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	batches := make([]batch.Batch, 0, len(names))
	for _, name := range names {
		group := groups[name]
		var metadata map[string]any
		if len(b.MetadataKeys) > 0 {
			metadata = make(map[string]any, len(b.MetadataKeys))
			for _, key := range b.MetadataKeys {
				values := collectDistinct(group, key)
				switch len(values) {
				case 0:
				case 1:
					metadata[key] = values[0]
				default:
					metadata[key] = values
				}
			}
		}
		batches = append(batches, batch.Batch{Title: name, Items: group, Metadata: metadata})
	}
	return batches, nil
}

func collectDistinct(items []item.Item, key string) []any {
	var values []any
	seen := make(map[any]bool)
	for _, it := range items {
		v, ok := it.ExtraData[key]
		if !ok {
			continue
		}
		k := fmtKey(v)
		if !seen[k] {
			seen[k] = true
			values = append(values, v)
		}
	}
	return values
}

func fmtKey(v any) any {
	switch v.(type) {
	case string, int, int64, float64, bool:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
