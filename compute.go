package hoard

// ComputeFunc maps a key's current value to its replacement. present
// reports whether the key held an unexpired value; when false, value is
// the zero value. Returning keep false removes the mapping. An error
// aborts the operation with the table unchanged for the key.
type ComputeFunc[K comparable, V any] func(key K, value V, present bool) (V, bool, error)

// MappingFunc produces a value for an absent key. Returning keep false
// declines to map the key.
type MappingFunc[K comparable, V any] func(key K) (V, bool, error)

// BatchEntry is one key's slot in a bulk compute exchange: the key, its
// value, and whether a mapping exists. In results returned by batch
// functions, Present false removes the mapping (BulkCompute) or
// declines to create one (BulkComputeIfAbsent).
type BatchEntry[K comparable, V any] struct {
	Key     K
	Value   V
	Present bool
}

// BulkComputeFunc receives the current state of every requested key and
// returns the entries to commit.
type BulkComputeFunc[K comparable, V any] func(current []BatchEntry[K, V]) ([]BatchEntry[K, V], error)

// BulkMappingFunc produces values for keys that were absent when a
// BulkComputeIfAbsent partitioned its request.
type BulkMappingFunc[K comparable, V any] func(absent []K) ([]BatchEntry[K, V], error)

// Compute atomically maps the current value for key (or its absence)
// through fn and commits the result: a returned value creates or
// updates the entry, keep false removes it. fn is invoked exactly once,
// on the calling goroutine, under the key's lock stripe; it must not
// call back into the store.
func (s *Store[K, V]) Compute(key K, fn ComputeFunc[K, V]) (V, bool, error) {
	var zero V
	if err := s.guard.checkKey(key); err != nil {
		s.emit(OpCompute, ResultFailure, key, err)
		return zero, false, err
	}

	now := s.now()
	sh := s.table.shard(key)

	sh.mu.Lock()
	ent, ok := sh.entries[key]
	var (
		cur        V
		present    bool
		wasExpired bool
	)
	if ok {
		if ent.expired(now) {
			delete(sh.entries, key)
			s.size.Add(-1)
			wasExpired = true
		} else {
			cur, present = s.copied(ent.value), true
		}
	}

	next, keep, err := fn(key, cur, present)
	if err != nil {
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		mErr := &MappingError{Key: key, Err: err}
		s.emit(OpCompute, ResultFailure, key, mErr)
		return zero, false, mErr
	}

	if !keep {
		result := ResultMiss
		if present {
			delete(sh.entries, key)
			s.size.Add(-1)
			result = ResultRemoved
		}
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		s.emit(OpCompute, result, key, nil)
		return zero, false, nil
	}

	if err := s.guard.checkValue(next); err != nil {
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		s.emit(OpCompute, ResultFailure, key, err)
		return zero, false, err
	}

	stored := s.copied(next)
	if present {
		ent.value = stored
		ent.accessedAt.Store(now)
		if ttl, refresh := s.cfg.expiry.ForUpdate(); refresh {
			ent.setDeadline(now, ttl)
		}
		sh.mu.Unlock()
		s.emit(OpCompute, ResultUpdated, key, nil)
		return s.copied(stored), true, nil
	}

	sh.entries[key] = newEntry(stored, now, s.cfg.expiry.ForCreation())
	s.size.Add(1)
	sh.mu.Unlock()
	s.expiredDuring(wasExpired, key)
	s.emit(OpCompute, ResultAdded, key, nil)
	s.evictIfNeeded()
	return s.copied(stored), true, nil
}

// ComputeIfAbsent invokes fn only when key has no unexpired entry at
// the moment of the atomic check; a present entry is returned unchanged
// without invoking fn. Under concurrent callers racing on an absent
// key, at most one caller's result is committed per absence window. fn
// runs under the key's lock stripe and must not call back into the
// store.
func (s *Store[K, V]) ComputeIfAbsent(key K, fn MappingFunc[K, V]) (V, bool, error) {
	var zero V
	if err := s.guard.checkKey(key); err != nil {
		s.emit(OpComputeIfAbsent, ResultFailure, key, err)
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
		s.emit(OpComputeIfAbsent, ResultHit, key, nil)
		return s.copied(v), true, nil
	}
	wasExpired := ok
	if ok {
		delete(sh.entries, key)
		s.size.Add(-1)
	}

	value, keep, err := fn(key)
	if err != nil {
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		mErr := &MappingError{Key: key, Err: err}
		s.emit(OpComputeIfAbsent, ResultFailure, key, mErr)
		return zero, false, mErr
	}
	if !keep {
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		s.emit(OpComputeIfAbsent, ResultMiss, key, nil)
		return zero, false, nil
	}
	if err := s.guard.checkValue(value); err != nil {
		sh.mu.Unlock()
		s.expiredDuring(wasExpired, key)
		s.emit(OpComputeIfAbsent, ResultFailure, key, err)
		return zero, false, err
	}

	stored := s.copied(value)
	sh.entries[key] = newEntry(stored, now, s.cfg.expiry.ForCreation())
	s.size.Add(1)
	sh.mu.Unlock()
	s.expiredDuring(wasExpired, key)
	s.emit(OpComputeIfAbsent, ResultAdded, key, nil)
	s.evictIfNeeded()
	return s.copied(stored), true, nil
}

// BulkComputeIfAbsent partitions keys into present and absent, invokes
// fn exactly once with the absent subsequence (empty when every key is
// present, never skipped), and commits fn's results for absent keys
// only. Result entries for keys outside the absent subsequence are
// silently ignored; absent keys omitted from the result stay absent.
// Duplicate requested keys are processed once, and the first result
// entry for a key wins. Each commit revalidates absence, so a value
// written by a racing writer is never overwritten.
//
// The returned entries report the state of every requested key after
// the call, in first-occurrence order. fn runs outside all locks.
func (s *Store[K, V]) BulkComputeIfAbsent(keys []K, fn BulkMappingFunc[K, V]) ([]BatchEntry[K, V], error) {
	unique, err := s.checkedUnique(keys)
	if err != nil {
		s.emit(OpBulkComputeIfAbsent, ResultFailure, nil, err)
		return nil, err
	}

	now := s.now()

	present := make(map[K]V, len(unique))
	absent := make([]K, 0, len(unique))
	for _, k := range unique {
		sh := s.table.shard(k)
		sh.mu.RLock()
		ent, ok := sh.entries[k]
		if ok && !ent.expired(now) {
			v := ent.value
			ent.touch(now)
			if ttl, refresh := s.cfg.expiry.ForAccess(); refresh {
				ent.setDeadline(now, ttl)
			}
			sh.mu.RUnlock()
			present[k] = v
			continue
		}
		sh.mu.RUnlock()
		if ok {
			s.removeExpired(sh, k, now)
		}
		absent = append(absent, k)
	}

	results, err := fn(absent)
	if err != nil {
		mErr := &MappingError{Err: err}
		s.emit(OpBulkComputeIfAbsent, ResultFailure, nil, mErr)
		return nil, mErr
	}

	allowed := make(map[K]bool, len(absent))
	for _, k := range absent {
		allowed[k] = true
	}

	committed := make(map[K]V, len(results))
	for _, be := range results {
		if err := s.guard.checkKey(be.Key); err != nil {
			s.emit(OpBulkComputeIfAbsent, ResultFailure, be.Key, err)
			return nil, err
		}
		if !allowed[be.Key] || !be.Present {
			continue
		}
		if _, done := committed[be.Key]; done {
			continue
		}
		if err := s.guard.checkValue(be.Value); err != nil {
			s.emit(OpBulkComputeIfAbsent, ResultFailure, be.Key, err)
			return nil, err
		}
		committed[be.Key] = s.commitIfAbsent(be.Key, s.copied(be.Value), now)
	}
	s.evictIfNeeded()

	out := make([]BatchEntry[K, V], 0, len(unique))
	for _, k := range unique {
		if v, ok := present[k]; ok {
			out = append(out, BatchEntry[K, V]{Key: k, Value: s.copied(v), Present: true})
			continue
		}
		if v, ok := committed[k]; ok {
			out = append(out, BatchEntry[K, V]{Key: k, Value: s.copied(v), Present: true})
			continue
		}
		out = append(out, BatchEntry[K, V]{Key: k})
	}
	s.emit(OpBulkComputeIfAbsent, ResultSuccess, nil, nil)
	return out, nil
}

// BulkCompute exposes the current state of every requested key to fn,
// invoked exactly once, and commits every result entry for a requested
// key: Present true creates or updates the entry, Present false removes
// it. Result entries for unrequested keys are silently ignored, and
// requested keys omitted from the result are left untouched. Duplicate
// requested keys are processed once; when the result holds several
// entries for one key, the last wins.
//
// The returned entries report the state of every requested key after
// the call, in first-occurrence order. fn runs outside all locks, so
// commits are atomic per key, not across the batch.
func (s *Store[K, V]) BulkCompute(keys []K, fn BulkComputeFunc[K, V]) ([]BatchEntry[K, V], error) {
	unique, err := s.checkedUnique(keys)
	if err != nil {
		s.emit(OpBulkCompute, ResultFailure, nil, err)
		return nil, err
	}

	now := s.now()

	current := make([]BatchEntry[K, V], 0, len(unique))
	for _, k := range unique {
		sh := s.table.shard(k)
		sh.mu.RLock()
		ent, ok := sh.entries[k]
		if ok && !ent.expired(now) {
			current = append(current, BatchEntry[K, V]{Key: k, Value: s.copied(ent.value), Present: true})
			sh.mu.RUnlock()
			continue
		}
		sh.mu.RUnlock()
		if ok {
			s.removeExpired(sh, k, now)
		}
		current = append(current, BatchEntry[K, V]{Key: k})
	}

	results, err := fn(current)
	if err != nil {
		mErr := &MappingError{Err: err}
		s.emit(OpBulkCompute, ResultFailure, nil, mErr)
		return nil, mErr
	}

	requested := make(map[K]bool, len(unique))
	for _, k := range unique {
		requested[k] = true
	}

	final := make(map[K]BatchEntry[K, V], len(results))
	for _, be := range results {
		if err := s.guard.checkKey(be.Key); err != nil {
			s.emit(OpBulkCompute, ResultFailure, be.Key, err)
			return nil, err
		}
		if !requested[be.Key] {
			continue
		}
		if !be.Present {
			s.commitRemove(be.Key, now)
			final[be.Key] = BatchEntry[K, V]{Key: be.Key}
			continue
		}
		if err := s.guard.checkValue(be.Value); err != nil {
			s.emit(OpBulkCompute, ResultFailure, be.Key, err)
			return nil, err
		}
		stored := s.copied(be.Value)
		s.commitPut(be.Key, stored, now)
		final[be.Key] = BatchEntry[K, V]{Key: be.Key, Value: stored, Present: true}
	}
	s.evictIfNeeded()

	out := make([]BatchEntry[K, V], 0, len(unique))
	for i, k := range unique {
		if be, ok := final[k]; ok {
			if be.Present {
				be.Value = s.copied(be.Value)
			}
			out = append(out, be)
			continue
		}
		out = append(out, current[i])
	}
	s.emit(OpBulkCompute, ResultSuccess, nil, nil)
	return out, nil
}

// checkedUnique type-checks every requested key and deduplicates the
// sequence preserving first-occurrence order.
func (s *Store[K, V]) checkedUnique(keys []K) ([]K, error) {
	for _, k := range keys {
		if err := s.guard.checkKey(k); err != nil {
			return nil, err
		}
	}
	unique := make([]K, 0, len(keys))
	seen := make(map[K]bool, len(keys))
	for _, k := range keys {
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	return unique, nil
}

// commitIfAbsent writes stored for key only while the key is still
// absent or expired, and returns the value present after the commit.
func (s *Store[K, V]) commitIfAbsent(key K, stored V, now int64) V {
	sh := s.table.shard(key)
	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if ok && !ent.expired(now) {
		v := ent.value
		sh.mu.Unlock()
		return v
	}
	sh.entries[key] = newEntry(stored, now, s.cfg.expiry.ForCreation())
	if !ok {
		s.size.Add(1)
	}
	sh.mu.Unlock()
	if ok {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
	return stored
}

// commitPut writes stored for key, updating an unexpired entry in place
// or creating a fresh one.
func (s *Store[K, V]) commitPut(key K, stored V, now int64) {
	sh := s.table.shard(key)
	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if ok && !ent.expired(now) {
		ent.value = stored
		ent.accessedAt.Store(now)
		if ttl, refresh := s.cfg.expiry.ForUpdate(); refresh {
			ent.setDeadline(now, ttl)
		}
		sh.mu.Unlock()
		return
	}
	sh.entries[key] = newEntry(stored, now, s.cfg.expiry.ForCreation())
	if !ok {
		s.size.Add(1)
	}
	sh.mu.Unlock()
	if ok {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
}

// commitRemove deletes the entry for key regardless of expiry state.
func (s *Store[K, V]) commitRemove(key K, now int64) {
	sh := s.table.shard(key)
	sh.mu.Lock()
	ent, ok := sh.entries[key]
	if !ok {
		sh.mu.Unlock()
		return
	}
	expired := ent.expired(now)
	delete(sh.entries, key)
	s.size.Add(-1)
	sh.mu.Unlock()
	if expired {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
}

// expiredDuring emits the expiry event for an entry that an operation
// removed on the way to its own outcome.
func (s *Store[K, V]) expiredDuring(expired bool, key K) {
	if expired {
		s.emit(OpExpiry, ResultExpired, key, nil)
	}
}
