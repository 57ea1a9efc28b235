package batcher

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
	"github.com/nathro/autotransform/internal/schema"
)

func makeItems(n int) []item.Item {
	items := make([]item.Item, n)
	for i := range items {
		items[i] = item.New(fmt.Sprintf("key_%d", i))
	}
	return items
}

func TestSingleBatcher(t *testing.T) {
	b := &SingleBatcher{Title: "t", Metadata: map[string]any{"body": "b"}}
	batches, err := b.Batch(context.Background(), makeItems(3))
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "t", batches[0].Title)
	assert.Len(t, batches[0].Items, 3)
	assert.Equal(t, "b", batches[0].Metadata["body"])
}

func TestSingleBatcher_EmptyItems(t *testing.T) {
	b := &SingleBatcher{Title: "t"}
	batches, err := b.Batch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestSingleBatcher_MetadataNotShared(t *testing.T) {
	b := &SingleBatcher{Title: "t", Metadata: map[string]any{"x": 1}}
	first, err := b.Batch(context.Background(), makeItems(1))
	require.NoError(t, err)
	first[0].Metadata["x"] = 2

	second, err := b.Batch(context.Background(), makeItems(1))
	require.NoError(t, err)
	assert.Equal(t, 1, second[0].Metadata["x"])
}

func TestChunkBatcher(t *testing.T) {
	tests := []struct {
		name      string
		items     int
		chunkSize int
		maxChunks int
		wantSizes []int
	}{
		{name: "even split", items: 4, chunkSize: 2, wantSizes: []int{2, 2}},
		{name: "remainder in last", items: 5, chunkSize: 2, wantSizes: []int{2, 2, 1}},
		{name: "max chunks raises size", items: 5, chunkSize: 2, maxChunks: 2, wantSizes: []int{3, 2}},
		{name: "single chunk", items: 2, chunkSize: 10, wantSizes: []int{2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &ChunkBatcher{Title: "t", ChunkSize: tt.chunkSize, MaxChunks: tt.maxChunks}
			batches, err := b.Batch(context.Background(), makeItems(tt.items))
			require.NoError(t, err)
			require.Len(t, batches, len(tt.wantSizes))

			total := 0
			for i, bt := range batches {
				assert.Len(t, bt.Items, tt.wantSizes[i])
				assert.Equal(t, fmt.Sprintf("[%d/%d] t", i+1, len(tt.wantSizes)), bt.Title)
				total += len(bt.Items)
			}
			assert.Equal(t, tt.items, total)
		})
	}
}

func TestChunkBatcher_OrderPreserved(t *testing.T) {
	b := &ChunkBatcher{Title: "t", ChunkSize: 2}
	batches, err := b.Batch(context.Background(), makeItems(5))
	require.NoError(t, err)

	var keys []string
	for _, bt := range batches {
		for _, it := range bt.Items {
			keys = append(keys, it.Key)
		}
	}
	assert.Equal(t, []string{"key_0", "key_1", "key_2", "key_3", "key_4"}, keys)
}

func TestDirectoryBatcher(t *testing.T) {
	items := []item.Item{
		item.NewFile("src/a/one.go"),
		item.NewFile("src/b/two.go"),
		item.NewFile("src/a/three.go"),
	}
	b := &DirectoryBatcher{Prefix: "Format"}
	batches, err := b.Batch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, "Format: src/a", batches[0].Title)
	assert.Len(t, batches[0].Items, 2)
	assert.Equal(t, "Format: src/b", batches[1].Title)
	assert.Len(t, batches[1].Items, 1)
}

func TestExtraDataBatcher(t *testing.T) {
	items := []item.Item{
		item.New("a").WithExtraData(map[string]any{"owner": "team-x", "reviewer": "alice"}),
		item.New("b").WithExtraData(map[string]any{"owner": "team-y", "reviewer": "bob"}),
		item.New("c").WithExtraData(map[string]any{"owner": "team-x", "reviewer": "alice"}),
	}
	b := &ExtraDataBatcher{GroupBy: "owner", MetadataKeys: []string{"reviewer"}}
	batches, err := b.Batch(context.Background(), items)
	require.NoError(t, err)
	require.Len(t, batches, 2)

	assert.Equal(t, "team-x", batches[0].Title)
	assert.Len(t, batches[0].Items, 2)
	assert.Equal(t, "alice", batches[0].Metadata["reviewer"])
	assert.Equal(t, "team-y", batches[1].Title)
}

func TestExtraDataBatcher_MissingGroupValue(t *testing.T) {
	b := &ExtraDataBatcher{GroupBy: "owner"}
	_, err := b.Batch(context.Background(), makeItems(1))
	assert.Error(t, err)
}

func TestBatchers_DecodeValidates(t *testing.T) {
	for _, bundle := range []string{
		`{"name":"single"}`,
		`{"name":"chunk","title":"t","chunk_size":0}`,
		`{"name":"chunk","chunk_size":2}`,
		`{"name":"directory"}`,
		`{"name":"extra_data"}`,
	} {
		_, err := schema.DecodeBatcher(json.RawMessage(bundle))
		require.Error(t, err, "bundle %s must be rejected", bundle)
		assert.ErrorIs(t, err, config.ErrConfig)
	}
}

func TestBatchers_BundleRoundTrip(t *testing.T) {
	for _, b := range []schema.Batcher{
		&SingleBatcher{Title: "t", Metadata: map[string]any{"body": "b"}},
		&ChunkBatcher{Title: "t", ChunkSize: 2, MaxChunks: 4},
		&DirectoryBatcher{Prefix: "p"},
		&ExtraDataBatcher{GroupBy: "owner", MetadataKeys: []string{"reviewer"}},
	} {
		encoded, err := schema.EncodeComponent(b)
		require.NoError(t, err)
		decoded, err := schema.DecodeBatcher(encoded)
		require.NoError(t, err)
		assert.Equal(t, b, decoded)
	}
}
