package hoard

import "context"

// LoaderWriter connects a Cache to its system of record. Load and
// LoadAll fill misses (read-through); Write, WriteAll, Delete, and
// DeleteAll keep the system of record ahead of the cache
// (write-through). Implementations can back the cache with a database,
// Redis, or any other source.
type LoaderWriter[K comparable, V any] interface {
	// Load retrieves the value for key. ok false with a nil error is an
	// authoritative miss; an error means the source could not answer.
	Load(ctx context.Context, key K) (V, bool, error)

	// LoadAll retrieves values for keys. Missing keys are simply absent
	// from the returned map.
	LoadAll(ctx context.Context, keys []K) (map[K]V, error)

	// Write records a new or updated value in the system of record.
	Write(ctx context.Context, key K, value V) error

	// WriteAll records multiple new or updated values.
	WriteAll(ctx context.Context, entries map[K]V) error

	// Delete removes key from the system of record.
	Delete(ctx context.Context, key K) error

	// DeleteAll removes keys from the system of record.
	DeleteAll(ctx context.Context, keys []K) error
}

// WithLoaderWriter connects a cache to its system of record, enabling
// read-through on misses and write-through on mutations.
func WithLoaderWriter[K comparable, V any](lw LoaderWriter[K, V]) Option[K, V] {
	return func(c *config[K, V]) {
		c.loader = lw
	}
}
