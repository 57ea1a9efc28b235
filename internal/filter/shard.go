package filter

import (
	"context"
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/nathro/autotransform/internal/config"
	"github.com/nathro/autotransform/internal/item"
)

// KeyHashShardFilter deterministically partitions Items across scheduled
// runs: an Item is valid iff the hash of its key lands on the valid shard.
// MD5 is used (read as a big-endian integer) because the assignment must be
// stable across processes and platforms; Go's hash/maphash and map iteration
// are per-process.
type KeyHashShardFilter struct {
	NumShards  int  `json:"num_shards"`
	ValidShard int  `json:"valid_shard"`
	Inverted   bool `json:"inverted,omitempty"`
}

// ComponentName identifies the component in bundles.
func (f *KeyHashShardFilter) ComponentName() string { return "key_hash_shard" }

func (f *KeyHashShardFilter) validate() error {
	if f.NumShards <= 0 {
		return fmt.Errorf("filter: num_shards must be positive, got %d: %w",
			f.NumShards, config.ErrConfig)
	}
	if f.ValidShard < 0 || f.ValidShard >= f.NumShards {
		return fmt.Errorf("filter: valid_shard %d out of range for %d shards: %w",
			f.ValidShard, f.NumShards, config.ErrConfig)
	}
	return nil
}

// Shard returns the shard the given key hashes to.
func (f *KeyHashShardFilter) Shard(key string) int {
	sum := md5.Sum([]byte(key))
	n := new(big.Int).SetBytes(sum[:])
	return int(new(big.Int).Mod(n, big.NewInt(int64(f.NumShards))).Int64())
}

// IsValid reports whether the Item's key hashes to the valid shard.
func (f *KeyHashShardFilter) IsValid(_ context.Context, it item.Item) (bool, error) {
	return inverted(f.Inverted, f.Shard(it.Key) == f.ValidShard), nil
}

// SetValidShard retargets the filter. The scheduler calls this with the
// shard computed for the current tick before appending the filter to a
// schema.
func (f *KeyHashShardFilter) SetValidShard(shard int) {
	f.ValidShard = shard
}

// ShardCount returns the total number of shards.
func (f *KeyHashShardFilter) ShardCount() int {
	return f.NumShards
}
