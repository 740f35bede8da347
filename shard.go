package hoard

import (
	"hash/maphash"
	"sync"
)

// DefaultShards is the default number of lock stripes.
const DefaultShards = 16

// shard is one lock stripe of the entry table. Per-key atomicity is
// provided at shard granularity: all mutations of a key happen under
// its shard's write lock.
type shard[K comparable, V any] struct {
	mu      sync.RWMutex
	entries map[K]*entry[V]
}

// table hashes keys onto a power-of-two number of shards so concurrent
// operations on distinct keys rarely contend.
type table[K comparable, V any] struct {
	seed   maphash.Seed
	shards []*shard[K, V]
	mask   uint64
}

func newTable[K comparable, V any](shards int) *table[K, V] {
	if shards <= 0 {
		shards = DefaultShards
	}
	shards = nextPowerOfTwo(shards)

	t := &table[K, V]{
		seed:   maphash.MakeSeed(),
		shards: make([]*shard[K, V], shards),
		mask:   uint64(shards - 1),
	}
	for i := range t.shards {
		t.shards[i] = &shard[K, V]{entries: make(map[K]*entry[V])}
	}
	return t
}

func (t *table[K, V]) shard(key K) *shard[K, V] {
	return t.shards[maphash.Comparable(t.seed, key)&t.mask]
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
