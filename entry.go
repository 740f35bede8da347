package hoard

import (
	"sync/atomic"
	"time"
)

// entry is the unit of storage: a value plus its creation, access, and
// expiry metadata. The value is guarded by the owning shard's lock;
// access metadata is atomic so reads can update it under the shared
// lock.
type entry[V any] struct {
	value V

	createdAt  int64 // UnixNano, set once at creation
	accessedAt atomic.Int64
	expireAt   atomic.Int64 // UnixNano, 0 means no expiry
	hits       atomic.Int64
}

func newEntry[V any](value V, now int64, ttl time.Duration) *entry[V] {
	e := &entry[V]{value: value, createdAt: now}
	e.accessedAt.Store(now)
	if ttl > 0 {
		e.expireAt.Store(now + int64(ttl))
	}
	return e
}

// expired reports whether the entry's deadline has passed. An entry is
// valid only while its deadline is strictly in the future.
func (e *entry[V]) expired(now int64) bool {
	at := e.expireAt.Load()
	return at != 0 && at <= now
}

// touch records an access.
func (e *entry[V]) touch(now int64) {
	e.accessedAt.Store(now)
	e.hits.Add(1)
}

// setDeadline replaces the expiry deadline. A zero ttl clears it.
func (e *entry[V]) setDeadline(now int64, ttl time.Duration) {
	if ttl > 0 {
		e.expireAt.Store(now + int64(ttl))
		return
	}
	e.expireAt.Store(0)
}

// metadata returns the entry's eviction-relevant metadata as times.
func (e *entry[V]) metadata() (createdAt, accessedAt time.Time, hits int64) {
	return time.Unix(0, e.createdAt), time.Unix(0, e.accessedAt.Load()), e.hits.Load()
}
