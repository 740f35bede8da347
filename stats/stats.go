// Package stats turns hoard outcome events into numbers: in-process
// counters, structured logs, and Prometheus metrics. Every type here
// implements hoard.Sink and plugs into a store or cache through
// hoard.WithSink.
package stats

import (
	"sync"
	"sync/atomic"

	"github.com/bjaus/hoard"
)

// Key identifies one (operation, result) pair.
type Key struct {
	Op     hoard.Op
	Result hoard.Result
}

// Counters aggregates outcome events into lock-free counters, one per
// (operation, result) pair. The zero value is ready to use.
type Counters struct {
	counts sync.Map // Key -> *atomic.Int64
}

// Compile-time interface assertion.
var _ hoard.Sink = (*Counters)(nil)

// Record implements hoard.Sink.
func (c *Counters) Record(ev hoard.Event) {
	k := Key{Op: ev.Op, Result: ev.Result}
	n, ok := c.counts.Load(k)
	if !ok {
		n, _ = c.counts.LoadOrStore(k, new(atomic.Int64))
	}
	n.(*atomic.Int64).Add(1)
}

// Count returns the number of events recorded for one pair.
func (c *Counters) Count(op hoard.Op, result hoard.Result) int64 {
	n, ok := c.counts.Load(Key{Op: op, Result: result})
	if !ok {
		return 0
	}
	return n.(*atomic.Int64).Load()
}

// Snapshot returns a point-in-time copy of all counters.
func (c *Counters) Snapshot() Snapshot {
	counts := make(map[Key]int64)
	c.counts.Range(func(k, v any) bool {
		counts[k.(Key)] = v.(*atomic.Int64).Load()
		return true
	})
	return Snapshot{Counts: counts}
}

// Snapshot is a point-in-time copy of aggregated outcome counts.
type Snapshot struct {
	Counts map[Key]int64
}

// Hits returns the number of gets that produced a value, with or
// without a loader.
func (s Snapshot) Hits() int64 {
	return s.Counts[Key{hoard.OpGet, hoard.ResultHit}] +
		s.Counts[Key{hoard.OpGet, hoard.ResultHitLoader}]
}

// Misses returns the number of gets that produced no value, with or
// without a loader.
func (s Snapshot) Misses() int64 {
	return s.Counts[Key{hoard.OpGet, hoard.ResultMiss}] +
		s.Counts[Key{hoard.OpGet, hoard.ResultMissLoader}]
}

// Evictions returns the number of capacity-driven removals.
func (s Snapshot) Evictions() int64 {
	return s.Counts[Key{hoard.OpEviction, hoard.ResultEvicted}]
}

// Expirations returns the number of entries removed past their
// deadline.
func (s Snapshot) Expirations() int64 {
	return s.Counts[Key{hoard.OpExpiry, hoard.ResultExpired}]
}

// HitRate returns the get hit rate as a value between 0 and 1.
// Returns 0 if there have been no gets.
func (s Snapshot) HitRate() float64 {
	hits, misses := s.Hits(), s.Misses()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}
