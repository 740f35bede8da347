package hoard

import (
	"fmt"
	"reflect"
)

type config[K comparable, V any] struct {
	capacity    int
	shards      int
	keyType     reflect.Type
	valueType   reflect.Type
	expiry      ExpiryPolicy
	veto        EvictionVeto[K, V]
	prioritizer EvictionPrioritizer[K, V]
	clock       Clock
	sink        Sink
	copier      func(V) V
	loader      LoaderWriter[K, V]
}

func defaultConfig[K comparable, V any]() config[K, V] {
	return config[K, V]{
		shards:      DefaultShards,
		keyType:     typeOf[K](),
		valueType:   typeOf[V](),
		expiry:      NoExpiry(),
		prioritizer: EvictLRU[K, V](),
		clock:       realClock{},
		sink:        nopSink{},
	}
}

// Option configures a Store or Cache.
type Option[K comparable, V any] func(*config[K, V])

// WithCapacity sets the maximum number of entries. Zero or negative
// leaves the store unbounded, which is the default.
func WithCapacity[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.capacity = n
		}
	}
}

// WithShards sets the number of lock stripes, rounded up to a power of
// two. More shards reduce contention at the price of memory.
func WithShards[K comparable, V any](n int) Option[K, V] {
	return func(c *config[K, V]) {
		if n > 0 {
			c.shards = n
		}
	}
}

// WithKeyType narrows the declared key class below what the key type
// parameter admits. Keys whose runtime type is not assignable to t are
// rejected with a WrongTypeError. The class must be comparable, since
// keys are hashed and compared; a non-comparable class panics. The
// default is the key type parameter itself.
func WithKeyType[K comparable, V any](t reflect.Type) Option[K, V] {
	return func(c *config[K, V]) {
		if t == nil {
			return
		}
		if !t.Comparable() {
			panic(fmt.Sprintf("hoard: key type %s is not comparable", t))
		}
		c.keyType = t
	}
}

// WithValueType narrows the declared value class below what the value
// type parameter admits, including for values produced by mapping
// functions. The default is the value type parameter itself.
func WithValueType[K comparable, V any](t reflect.Type) Option[K, V] {
	return func(c *config[K, V]) {
		if t != nil {
			c.valueType = t
		}
	}
}

// WithExpiry sets the expiry policy. The default is NoExpiry.
func WithExpiry[K comparable, V any](p ExpiryPolicy) Option[K, V] {
	return func(c *config[K, V]) {
		if p != nil {
			c.expiry = p
		}
	}
}

// WithEvictionVeto marks entries that must never be evicted.
func WithEvictionVeto[K comparable, V any](fn EvictionVeto[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.veto = fn
	}
}

// WithEvictionPrioritizer sets the order in which eviction-eligible
// entries are removed. The default is EvictLRU.
func WithEvictionPrioritizer[K comparable, V any](fn EvictionPrioritizer[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		if fn != nil {
			c.prioritizer = fn
		}
	}
}

// WithClock sets a custom clock for entry metadata and expiry checks.
// Useful for testing expiry behavior.
func WithClock[K comparable, V any](clk Clock) Option[K, V] {
	return func(c *config[K, V]) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithSink sets the destination for outcome events. The default sink
// discards them.
func WithSink[K comparable, V any](s Sink) Option[K, V] {
	return func(c *config[K, V]) {
		if s != nil {
			c.sink = s
		}
	}
}

// WithValueCopier switches the store to by-copy value semantics: fn is
// applied to every value on the way in and on the way out, so callers
// never share a mutable value with the table. The default is
// by-reference, where the caller and the table see the same value.
func WithValueCopier[K comparable, V any](fn func(V) V) Option[K, V] {
	return func(c *config[K, V]) {
		c.copier = fn
	}
}
