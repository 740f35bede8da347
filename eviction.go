package hoard

import "time"

// EvictionVeto marks entries that must never be chosen for
// capacity-driven removal. Vetoed entries still expire normally and can
// be removed or replaced by their key. When every present entry is
// vetoed, an insertion is accepted with the capacity bound transiently
// exceeded rather than blocked or failed.
//
// The predicate must be side-effect free, safe for concurrent use, and
// must not call back into the store.
type EvictionVeto[K comparable, V any] func(key K, value V) bool

// Candidate describes an entry under consideration for eviction.
type Candidate[K comparable, V any] struct {
	Key            K
	Value          V
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Hits           int64
}

// EvictionPrioritizer ranks eviction candidates: it reports whether a
// should be evicted before b. It must define a total order and, like
// EvictionVeto, must be side-effect free and must not call back into
// the store.
type EvictionPrioritizer[K comparable, V any] func(a, b Candidate[K, V]) bool

// EvictLRU prefers the entry with the oldest last access. This is the
// default prioritizer.
func EvictLRU[K comparable, V any]() EvictionPrioritizer[K, V] {
	return func(a, b Candidate[K, V]) bool {
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
}

// EvictLFU prefers the entry with the fewest recorded hits, breaking
// ties by oldest last access.
func EvictLFU[K comparable, V any]() EvictionPrioritizer[K, V] {
	return func(a, b Candidate[K, V]) bool {
		if a.Hits != b.Hits {
			return a.Hits < b.Hits
		}
		return a.LastAccessedAt.Before(b.LastAccessedAt)
	}
}

// EvictFIFO prefers the entry created earliest.
func EvictFIFO[K comparable, V any]() EvictionPrioritizer[K, V] {
	return func(a, b Candidate[K, V]) bool {
		return a.CreatedAt.Before(b.CreatedAt)
	}
}
