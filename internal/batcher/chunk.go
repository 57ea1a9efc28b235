package batcher

import (
	"context"
	"fmt"

	"github.com/nathro/autotransform/internal/batch"
	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
)

// ChunkBatcher splits Items into fixed-size chunks. When a maximum number of
// chunks is set and the chunk size would exceed it, the chunk size is raised
// to the minimum that produces max_chunks, so early chunks absorb the
// overflow. Titles get "[i/n] " prepended.
type ChunkBatcher struct {
	Title     string         `json:"title"`
	ChunkSize int            `json:"chunk_size"`
	MaxChunks int            `json:"max_chunks,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ComponentName identifies the component in bundles.
func (b *ChunkBatcher) ComponentName() string { return "chunk" }

func (b *ChunkBatcher) validate() error {
	if err := requireTitle(b.Title); err != nil {
		return err
	}
	if b.ChunkSize <= 0 {
		return fmt.Errorf("batcher: chunk_size must be positive, got %d: %w",
			b.ChunkSize, config.ErrConfig)
	}
	if b.MaxChunks < 0 {
		return fmt.Errorf("batcher: max_chunks must not be negative, got %d: %w",
			b.MaxChunks, config.ErrConfig)
	}
	return nil
}

// Batch chunks the Items in input order.
func (b *ChunkBatcher) Batch(_ context.Context, items []item.Item) ([]batch.Batch, error) {
	if len(items) == 0 {
		return nil, nil
	}
	chunkSize := b.ChunkSize
	if b.MaxChunks > 0 && len(items) > chunkSize*b.MaxChunks {
		chunkSize = (len(items) + b.MaxChunks - 1) / b.MaxChunks
	}
	numChunks := (len(items) + chunkSize - 1) / chunkSize

	batches := make([]batch.Batch, 0, numChunks)
	for i := 0; i < len(items); i += chunkSize {
		end := i + chunkSize
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, batch.Batch{
			Title:    fmt.Sprintf("[%d/%d] %s", len(batches)+1, numChunks, b.Title),
			Items:    items[i:end],
			Metadata: copyMetadata(b.Metadata),
		})
	}
	return batches, nil
}
