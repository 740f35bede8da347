package hoard

import (
	"context"
	"sync"
	"sync/atomic"
)

// Cache is the user-facing front over a Store. It adds read-through
// and write-through against a LoaderWriter, single-flight coalescing of
// concurrent loads, and a closeable lifecycle. Operations on a closed
// cache fail with ErrClosed.
//
// The cache records the user-facing outcome taxonomy on the configured
// sink; its inner store contributes only entry lifecycle events
// (evictions and expirations), so nothing is double-counted.
type Cache[K comparable, V any] struct {
	store  *Store[K, V]
	loader LoaderWriter[K, V]
	sink   Sink
	closed atomic.Bool

	// single-flight for the loader, keyed by the typed key so two
	// distinct keys can never share a load
	loading sync.Map // K -> *loadCall[V]
}

type loadCall[V any] struct {
	done  chan struct{}
	value V
	ok    bool
	err   error
}

// lifecycleOnly forwards eviction and expiry events and drops the rest.
type lifecycleOnly struct {
	next Sink
}

func (s lifecycleOnly) Record(ev Event) {
	if ev.Op == OpEviction || ev.Op == OpExpiry {
		s.next.Record(ev)
	}
}

// NewCache creates a Cache with the given options.
func NewCache[K comparable, V any](opts ...Option[K, V]) *Cache[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}

	sink := cfg.sink
	cfg.sink = lifecycleOnly{next: sink}
	return &Cache[K, V]{
		store:  newStore(cfg),
		loader: cfg.loader,
		sink:   sink,
	}
}

// Get retrieves the value for key, loading it through the loader on a
// miss when one is configured. Concurrent loads of the same key are
// coalesced into a single Load call. Loader faults surface as an
// AccessError, never as a miss.
func (c *Cache[K, V]) Get(ctx context.Context, key K) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}

	v, ok, err := c.store.Get(key)
	if err != nil {
		c.emit(OpGet, ResultFailure, key, err)
		return zero, false, err
	}
	if ok {
		c.emit(OpGet, c.hitResult(), key, nil)
		return v, true, nil
	}
	if c.loader == nil {
		c.emit(OpGet, ResultMiss, key, nil)
		return zero, false, nil
	}

	// single-flight: deduplicate concurrent loads of the same key
	call := &loadCall[V]{done: make(chan struct{})}
	if actual, joined := c.loading.LoadOrStore(key, call); joined {
		prior := actual.(*loadCall[V])
		<-prior.done
		if prior.err != nil {
			c.emit(OpGet, ResultFailure, key, prior.err)
			return zero, false, prior.err
		}
		if !prior.ok {
			c.emit(OpGet, ResultMissLoader, key, nil)
			return zero, false, nil
		}
		c.emit(OpGet, ResultHitLoader, key, nil)
		return prior.value, true, nil
	}
	defer c.loading.Delete(key)

	v, ok, err = c.loader.Load(ctx, key)
	if err != nil {
		err = &AccessError{Op: "load", Err: err}
	}
	call.value, call.ok, call.err = v, ok, err
	close(call.done)

	if err != nil {
		c.emit(OpLoad, ResultFailure, key, err)
		c.emit(OpGet, ResultFailure, key, err)
		return zero, false, err
	}
	c.emit(OpLoad, ResultSuccess, key, nil)

	if !ok {
		c.emit(OpGet, ResultMissLoader, key, nil)
		return zero, false, nil
	}
	prev, present, err := c.store.PutIfAbsent(key, v)
	if err != nil {
		c.emit(OpGet, ResultFailure, key, err)
		return zero, false, err
	}
	if present {
		// a racing writer beat the load; serve the fresher value
		c.emit(OpGet, ResultHitLoader, key, nil)
		return prev, true, nil
	}
	c.emit(OpGet, ResultHitLoader, key, nil)
	return v, true, nil
}

// GetAll retrieves the values for keys, loading all absent keys through
// a single LoadAll batch when a loader is configured. Keys the loader
// does not return are absent from the result.
func (c *Cache[K, V]) GetAll(ctx context.Context, keys []K) (map[K]V, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}

	var (
		loadErr error
		invoked bool
	)
	entries, err := c.store.BulkComputeIfAbsent(keys, func(absent []K) ([]BatchEntry[K, V], error) {
		if c.loader == nil || len(absent) == 0 {
			return nil, nil
		}
		invoked = true
		found, err := c.loader.LoadAll(ctx, absent)
		if err != nil {
			loadErr = err
			return nil, err
		}
		out := make([]BatchEntry[K, V], 0, len(found))
		for k, v := range found {
			out = append(out, BatchEntry[K, V]{Key: k, Value: v, Present: true})
		}
		return out, nil
	})
	if err != nil {
		if loadErr != nil {
			aErr := &AccessError{Op: "load_all", Err: loadErr}
			c.emit(OpLoad, ResultFailure, nil, aErr)
			c.emit(OpGetAll, ResultFailure, nil, aErr)
			return nil, aErr
		}
		c.emit(OpGetAll, ResultFailure, nil, err)
		return nil, err
	}
	if invoked {
		c.emit(OpLoad, ResultSuccess, nil, nil)
	}

	found := make(map[K]V, len(entries))
	for _, be := range entries {
		if be.Present {
			found[be.Key] = be.Value
		}
	}
	c.emit(OpGetAll, ResultSuccess, nil, nil)
	return found, nil
}

// Put maps key to value. When a writer is configured the value is
// written through first; a write-through failure surfaces as an
// AccessError and leaves the cache unchanged.
func (c *Cache[K, V]) Put(ctx context.Context, key K, value V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.store.checkPair(key, value); err != nil {
		c.emit(OpPut, ResultFailure, key, err)
		return err
	}
	if c.loader != nil {
		if err := c.loader.Write(ctx, key, value); err != nil {
			aErr := &AccessError{Op: "write", Err: err}
			c.emit(OpPut, ResultFailure, key, aErr)
			return aErr
		}
	}
	if err := c.store.Put(key, value); err != nil {
		c.emit(OpPut, ResultFailure, key, err)
		return err
	}
	c.emit(OpPut, ResultAdded, key, nil)
	return nil
}

// PutAll maps every entry, writing through in a single WriteAll batch
// when a writer is configured.
func (c *Cache[K, V]) PutAll(ctx context.Context, entries map[K]V) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for k, v := range entries {
		if err := c.store.checkPair(k, v); err != nil {
			c.emit(OpPutAll, ResultFailure, k, err)
			return err
		}
	}
	if c.loader != nil {
		if err := c.loader.WriteAll(ctx, entries); err != nil {
			aErr := &AccessError{Op: "write_all", Err: err}
			c.emit(OpPutAll, ResultFailure, nil, aErr)
			return aErr
		}
	}

	keys := make([]K, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	_, err := c.store.BulkCompute(keys, func(current []BatchEntry[K, V]) ([]BatchEntry[K, V], error) {
		out := make([]BatchEntry[K, V], 0, len(current))
		for _, be := range current {
			out = append(out, BatchEntry[K, V]{Key: be.Key, Value: entries[be.Key], Present: true})
		}
		return out, nil
	})
	if err != nil {
		c.emit(OpPutAll, ResultFailure, nil, err)
		return err
	}
	c.emit(OpPutAll, ResultSuccess, nil, nil)
	return nil
}

// PutIfAbsent maps key to value only when no unexpired entry exists,
// returning the existing value otherwise. A created mapping is written
// through when a writer is configured; if the write fails, the mapping
// is rolled back and an AccessError returned.
func (c *Cache[K, V]) PutIfAbsent(ctx context.Context, key K, value V) (V, bool, error) {
	var zero V
	if c.closed.Load() {
		return zero, false, ErrClosed
	}
	if err := c.store.checkPair(key, value); err != nil {
		c.emit(OpPutIfAbsent, ResultFailure, key, err)
		return zero, false, err
	}

	prev, present, err := c.store.PutIfAbsent(key, value)
	if err != nil {
		c.emit(OpPutIfAbsent, ResultFailure, key, err)
		return zero, false, err
	}
	if present {
		c.emit(OpPutIfAbsent, ResultHit, key, nil)
		return prev, true, nil
	}
	if c.loader != nil {
		if err := c.loader.Write(ctx, key, value); err != nil {
			_, _ = c.store.RemoveIfEquals(key, value)
			aErr := &AccessError{Op: "write", Err: err}
			c.emit(OpPutIfAbsent, ResultFailure, key, aErr)
			return zero, false, aErr
		}
	}
	c.emit(OpPutIfAbsent, ResultAdded, key, nil)
	return zero, false, nil
}

// Remove deletes the entry for key, deleting from the system of record
// first when a writer is configured.
func (c *Cache[K, V]) Remove(ctx context.Context, key K) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.store.guard.checkKey(key); err != nil {
		c.emit(OpRemove, ResultFailure, key, err)
		return err
	}
	if c.loader != nil {
		if err := c.loader.Delete(ctx, key); err != nil {
			aErr := &AccessError{Op: "delete", Err: err}
			c.emit(OpRemove, ResultFailure, key, aErr)
			return aErr
		}
	}
	removed, err := c.store.Remove(key)
	if err != nil {
		c.emit(OpRemove, ResultFailure, key, err)
		return err
	}
	if removed {
		c.emit(OpRemove, ResultRemoved, key, nil)
	} else {
		c.emit(OpRemove, ResultMiss, key, nil)
	}
	return nil
}

// RemoveAll deletes the entries for keys, deleting from the system of
// record in a single DeleteAll batch when a writer is configured.
func (c *Cache[K, V]) RemoveAll(ctx context.Context, keys []K) error {
	if c.closed.Load() {
		return ErrClosed
	}
	for _, k := range keys {
		if err := c.store.guard.checkKey(k); err != nil {
			c.emit(OpRemoveAll, ResultFailure, k, err)
			return err
		}
	}
	if c.loader != nil {
		if err := c.loader.DeleteAll(ctx, keys); err != nil {
			aErr := &AccessError{Op: "delete_all", Err: err}
			c.emit(OpRemoveAll, ResultFailure, nil, aErr)
			return aErr
		}
	}

	_, err := c.store.BulkCompute(keys, func(current []BatchEntry[K, V]) ([]BatchEntry[K, V], error) {
		out := make([]BatchEntry[K, V], 0, len(current))
		for _, be := range current {
			out = append(out, BatchEntry[K, V]{Key: be.Key})
		}
		return out, nil
	})
	if err != nil {
		c.emit(OpRemoveAll, ResultFailure, nil, err)
		return err
	}
	c.emit(OpRemoveAll, ResultSuccess, nil, nil)
	return nil
}

// ContainsKey reports whether key has an unexpired entry. It does not
// consult the loader and does not count as an access.
func (c *Cache[K, V]) ContainsKey(key K) bool {
	if c.closed.Load() {
		return false
	}
	return c.store.Contains(key)
}

// Len returns the number of cached entries. It may include expired
// entries that have not been touched since their deadline.
func (c *Cache[K, V]) Len() int {
	if c.closed.Load() {
		return 0
	}
	return c.store.Len()
}

// Clear removes all cached entries. It does not affect the system of
// record.
func (c *Cache[K, V]) Clear() {
	if c.closed.Load() {
		return
	}
	c.store.Clear()
	c.emit(OpClear, ResultSuccess, nil, nil)
}

// Close releases the cache. Further operations fail with ErrClosed.
// Close is idempotent.
func (c *Cache[K, V]) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.store.Clear()
	return nil
}

func (c *Cache[K, V]) hitResult() Result {
	if c.loader != nil {
		return ResultHitLoader
	}
	return ResultHit
}

func (c *Cache[K, V]) emit(op Op, result Result, key any, err error) {
	record(c.sink, Event{Op: op, Result: result, Key: key, Err: err})
}
