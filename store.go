package hoard

import (
	"math/rand/v2"
	"reflect"
	"sync/atomic"
)

// evictionSampleSize is the minimum number of eligible entries examined
// before an eviction victim is chosen. Small tables are always scanned
// in full, so their victim selection is exact.
const evictionSampleSize = 8

// Store is a type-checked, capacity-bounded key-value engine with
// configurable expiry and eviction. All methods are safe for concurrent
// use; operations on distinct keys proceed independently, while
// operations on the same key are serialized with each other.
//
// Expiry is enforced lazily: an entry past its deadline is removed by
// the next operation that touches it, and there is no background sweep.
type Store[K comparable, V any] struct {
	table *table[K, V]
	cfg   config[K, V]
	guard typeGuard
	size  atomic.Int64
}

// New creates a Store with the given options.
func New[K comparable, V any](opts ...Option[K, V]) *Store[K, V] {
	cfg := defaultConfig[K, V]()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newStore(cfg)
}

func newStore[K comparable, V any](cfg config[K, V]) *Store[K, V] {
	return &Store[K, V]{
		table: newTable[K, V](cfg.shards),
		guard: typeGuard{key: cfg.keyType, value: cfg.valueType},
		cfg:   cfg,
	}
}

// KeyType returns the declared key class.
func (s *Store[K, V]) KeyType() reflect.Type { return s.guard.key }

// ValueType returns the declared value class.
func (s *Store[K, V]) ValueType() reflect.Type { return s.guard.value }

// Get retrieves the value mapped to key. An entry past its expiry
// deadline is removed and reported as a miss.
func (s *Store[K, V]) Get(key K) (V, bool, error) {
	var zero V
	if err := s.guard.checkKey(key); err != nil {
		s.emit(OpGet, ResultFailure, key, err)
		return zero, false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.RLock()
	ent, ok := sh.entries[key]
	if ok && !ent.expired(now) {
		v := ent.value
		ent.touch(now)
		if ttl, refresh := s.cfg.expiry.ForAccess(); refresh {
			ent.setDeadline(now, ttl)
		}
		sh.mu.RUnlock()
		s.emit(OpGet, ResultHit, key, nil)
		return s.copied(v), true, nil
	}
	sh.mu.RUnlock()

	if ok {
		s.removeExpired(sh, key, now)
	}
	s.emit(OpGet, ResultMiss, key, nil)
	return zero, false, nil
}

// Put maps key to value, creating or updating the entry. Overwriting an
// expired entry is a fresh creation: it receives a new creation time
// and deadline rather than an update.
func (s *Store[K, V]) Put(key K, value V) error {
	if err := s.checkPair(key, value); err != nil {
		s.emit(OpPut, ResultFailure, key, err)
		return err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if ok && !ent.expired(now) {
		ent.value = s.copied(value)
		ent.accessedAt.Store(now)
		if ttl, refresh := s.cfg.expiry.ForUpdate(); refresh {
			ent.setDeadline(now, ttl)
		}
		sh.mu.Unlock()
		s.emit(OpPut, ResultUpdated, key, nil)
		return nil
	}

	sh.entries[key] = s.create(value, now)
	if !ok {
		s.size.Add(1)
	}
	sh.mu.Unlock()

	if ok {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
	s.emit(OpPut, ResultAdded, key, nil)
	s.evictIfNeeded()
	return nil
}

// PutIfAbsent maps key to value only when no unexpired entry exists. It
// returns the existing value and true when the key was already present,
// in which case the store is unchanged.
func (s *Store[K, V]) PutIfAbsent(key K, value V) (V, bool, error) {
	var zero V
	if err := s.checkPair(key, value); err != nil {
		s.emit(OpPutIfAbsent, ResultFailure, key, err)
		return zero, false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if ok && !ent.expired(now) {
		v := ent.value
		ent.touch(now)
		if ttl, refresh := s.cfg.expiry.ForAccess(); refresh {
			ent.setDeadline(now, ttl)
		}
		sh.mu.Unlock()
		s.emit(OpPutIfAbsent, ResultHit, key, nil)
		return s.copied(v), true, nil
	}

	sh.entries[key] = s.create(value, now)
	if !ok {
		s.size.Add(1)
	}
	sh.mu.Unlock()

	if ok {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
	s.emit(OpPutIfAbsent, ResultAdded, key, nil)
	s.evictIfNeeded()
	return zero, false, nil
}

// Replace maps key to value only when an unexpired entry exists. It
// returns the previous value and true when the entry was replaced.
func (s *Store[K, V]) Replace(key K, value V) (V, bool, error) {
	var zero V
	if err := s.checkPair(key, value); err != nil {
		s.emit(OpReplace, ResultFailure, key, err)
		return zero, false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok || ent.expired(now) {
		sh.mu.Unlock()
		if ok {
			s.removeExpired(sh, key, now)
		}
		s.emit(OpReplace, ResultMiss, key, nil)
		return zero, false, nil
	}

	prev := ent.value
	ent.value = s.copied(value)
	ent.accessedAt.Store(now)
	if ttl, refresh := s.cfg.expiry.ForUpdate(); refresh {
		ent.setDeadline(now, ttl)
	}
	sh.mu.Unlock()
	s.emit(OpReplace, ResultHit, key, nil)
	return s.copied(prev), true, nil
}

// ReplaceIfEquals maps key to next only when an unexpired entry exists
// whose value equals prev under reflect.DeepEqual.
func (s *Store[K, V]) ReplaceIfEquals(key K, prev, next V) (bool, error) {
	if err := s.guard.checkKey(key); err != nil {
		s.emit(OpReplace, ResultFailure, key, err)
		return false, err
	}
	for _, v := range []V{prev, next} {
		if err := s.guard.checkValue(v); err != nil {
			s.emit(OpReplace, ResultFailure, key, err)
			return false, err
		}
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok || ent.expired(now) {
		sh.mu.Unlock()
		if ok {
			s.removeExpired(sh, key, now)
		}
		s.emit(OpReplace, ResultMiss, key, nil)
		return false, nil
	}
	if !reflect.DeepEqual(ent.value, prev) {
		sh.mu.Unlock()
		s.emit(OpReplace, ResultMiss, key, nil)
		return false, nil
	}

	ent.value = s.copied(next)
	ent.accessedAt.Store(now)
	if ttl, refresh := s.cfg.expiry.ForUpdate(); refresh {
		ent.setDeadline(now, ttl)
	}
	sh.mu.Unlock()
	s.emit(OpReplace, ResultHit, key, nil)
	return true, nil
}

// Remove deletes the entry for key. It reports whether an unexpired
// entry was removed; removing an expired or absent key is a miss.
func (s *Store[K, V]) Remove(key K) (bool, error) {
	if err := s.guard.checkKey(key); err != nil {
		s.emit(OpRemove, ResultFailure, key, err)
		return false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok {
		sh.mu.Unlock()
		s.emit(OpRemove, ResultMiss, key, nil)
		return false, nil
	}
	expired := ent.expired(now)
	delete(sh.entries, key)
	s.size.Add(-1)
	sh.mu.Unlock()

	if expired {
		s.emit(OpExpiry, ResultExpired, key, nil)
		s.emit(OpRemove, ResultMiss, key, nil)
		return false, nil
	}
	s.emit(OpRemove, ResultRemoved, key, nil)
	return true, nil
}

// RemoveIfEquals deletes the entry for key only when its unexpired
// value equals value under reflect.DeepEqual.
func (s *Store[K, V]) RemoveIfEquals(key K, value V) (bool, error) {
	if err := s.checkPair(key, value); err != nil {
		s.emit(OpRemove, ResultFailure, key, err)
		return false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok || ent.expired(now) {
		sh.mu.Unlock()
		if ok {
			s.removeExpired(sh, key, now)
		}
		s.emit(OpRemove, ResultMiss, key, nil)
		return false, nil
	}
	if !reflect.DeepEqual(ent.value, value) {
		sh.mu.Unlock()
		s.emit(OpRemove, ResultMiss, key, nil)
		return false, nil
	}

	delete(sh.entries, key)
	s.size.Add(-1)
	sh.mu.Unlock()
	s.emit(OpRemove, ResultRemoved, key, nil)
	return true, nil
}

// Contains reports whether key has an unexpired entry. It does not
// count as an access and does not extend the entry's lifetime.
func (s *Store[K, V]) Contains(key K) bool {
	if s.guard.checkKey(key) != nil {
		return false
	}
	now := s.now()
	sh := s.table.shard(key)

	sh.mu.RLock()
	ent, ok := sh.entries[key]
	alive := ok && !ent.expired(now)
	sh.mu.RUnlock()
	return alive
}

// Len returns the number of entries in the table. It may include
// expired entries that have not been touched since their deadline.
func (s *Store[K, V]) Len() int {
	return int(s.size.Load())
}

// Clear removes all entries.
func (s *Store[K, V]) Clear() {
	for _, sh := range s.table.shards {
		sh.mu.Lock()
		n := len(sh.entries)
		sh.entries = make(map[K]*entry[V])
		sh.mu.Unlock()
		s.size.Add(-int64(n))
	}
	s.emit(OpClear, ResultSuccess, nil, nil)
}

// removeExpired deletes key if its entry is past the deadline, under
// the shard write lock, and emits the expiry event. A fresh entry
// written since the caller observed the expired one is left alone.
func (s *Store[K, V]) removeExpired(sh *shard[K, V], key K, now int64) {
	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok || !ent.expired(now) {
		sh.mu.Unlock()
		return
	}
	delete(sh.entries, key)
	s.size.Add(-1)
	sh.mu.Unlock()
	s.emit(OpExpiry, ResultExpired, key, nil)
}

func (s *Store[K, V]) evictIfNeeded() {
	if s.cfg.capacity <= 0 {
		return
	}
	for s.size.Load() > int64(s.cfg.capacity) {
		if !s.evictOne() {
			return
		}
	}
}

// evictOne removes the entry ranked first by the prioritizer among the
// sampled eviction-eligible entries. Shards are scanned from a random
// starting point until at least evictionSampleSize eligible entries
// have been seen; if the full scan finds none, every present entry is
// vetoed and evictOne reports false, leaving the capacity bound
// transiently exceeded. Expired entries found while sampling are
// removed as expired, not evicted.
func (s *Store[K, V]) evictOne() bool {
	now := s.now()

	var (
		best    Candidate[K, V]
		victim  *entry[V]
		found   bool
		sampled int
	)

	n := len(s.table.shards)
	start := rand.IntN(n)
	for i := range n {
		sh := s.table.shards[(start+i)%n]

		var expired []K
		sh.mu.RLock()
		for k, ent := range sh.entries {
			if ent.expired(now) {
				expired = append(expired, k)
				continue
			}
			if s.cfg.veto != nil && s.cfg.veto(k, ent.value) {
				continue
			}
			created, accessed, hits := ent.metadata()
			c := Candidate[K, V]{
				Key:            k,
				Value:          ent.value,
				CreatedAt:      created,
				LastAccessedAt: accessed,
				Hits:           hits,
			}
			if !found || s.cfg.prioritizer(c, best) {
				best, victim, found = c, ent, true
			}
			sampled++
		}
		sh.mu.RUnlock()

		for _, k := range expired {
			s.removeExpired(sh, k, now)
		}
		if found && sampled >= evictionSampleSize {
			break
		}
	}

	if !found {
		return false
	}

	sh := s.table.shard(best.Key)
	sh.mu.Lock()
	if cur, ok := sh.entries[best.Key]; !ok || cur != victim {
		// the victim changed under us; let the caller re-check the size
		sh.mu.Unlock()
		return true
	}
	if s.size.Load() <= int64(s.cfg.capacity) {
		// a concurrent removal already brought the table under capacity
		sh.mu.Unlock()
		return true
	}
	delete(sh.entries, best.Key)
	s.size.Add(-1)
	sh.mu.Unlock()
	s.emit(OpEviction, ResultEvicted, best.Key, nil)
	return true
}

func (s *Store[K, V]) create(value V, now int64) *entry[V] {
	return newEntry(s.copied(value), now, s.cfg.expiry.ForCreation())
}

func (s *Store[K, V]) checkPair(key K, value V) error {
	if err := s.guard.checkKey(key); err != nil {
		return err
	}
	return s.guard.checkValue(value)
}

func (s *Store[K, V]) copied(v V) V {
	if s.cfg.copier == nil {
		return v
	}
	return s.cfg.copier(v)
}

func (s *Store[K, V]) now() int64 {
	return s.cfg.clock.Now().UnixNano()
}

func (s *Store[K, V]) emit(op Op, result Result, key any, err error) {
	record(s.cfg.sink, Event{Op: op, Result: result, Key: key, Err: err})
}
