// Package hoard provides an embeddable, type-checked, capacity-bounded
// key-value cache engine with pluggable expiry and eviction.
//
// # Overview
//
// A hoard Store lives in process memory and is safe for concurrent use.
// It enforces its declared key and value types at runtime, expires
// entries lazily against an injectable clock, and bounds its size with
// a veto-aware eviction policy. A Cache front adds read-through and
// write-through against a backing system of record with single-flight
// load coalescing, and a Manager shares one lifecycle across many
// caches.
//
// # Basic Usage
//
// Create a store and perform basic operations:
//
//	store := hoard.New[string, int](
//		hoard.WithCapacity[string, int](1000),
//	)
//
//	// Map a key
//	store.Put("answer", 42)
//
//	// Retrieve it
//	value, ok, err := store.Get("answer")
//	if err != nil {
//		return err
//	}
//	if ok {
//		fmt.Println(value)
//	}
//
//	// Remove it
//	store.Remove("answer")
//
// Conditional variants cover the usual atomic patterns: PutIfAbsent,
// Replace, ReplaceIfEquals, and RemoveIfEquals.
//
// # Runtime Type Checking
//
// Every store carries a declared key class and value class, checked on
// every operation. By default they are the type parameters themselves,
// which the compiler already enforces, but a store instantiated over
// interface types can narrow them to concrete runtime types:
//
//	store := hoard.New[any, any](
//		hoard.WithKeyType[any, any](reflect.TypeOf("")),
//		hoard.WithValueType[any, any](reflect.TypeOf(0)),
//	)
//
//	err := store.Put(7, "x") // *hoard.WrongTypeError
//
// Values produced by mapping functions are checked too, so a buggy
// loader cannot smuggle a mistyped value into the table. A declared
// key class must be comparable; WithKeyType panics on one that is not.
//
// # Expiry
//
// An ExpiryPolicy computes entry lifetimes at creation, access, and
// update time. Entries past their deadline are removed lazily by the
// next operation that touches them; there is no background sweep:
//
//	store := hoard.New[string, int](
//		hoard.WithExpiry[string, int](hoard.ExpireAfterWrite(5 * time.Minute)),
//	)
//
// ExpireAfterAccess gives time-to-idle semantics instead, and NoExpiry
// is the default.
//
// # Eviction
//
// When an insertion pushes a bounded store past capacity, an eviction
// prioritizer picks the victim among entries not protected by a veto:
//
//	store := hoard.New[string, int](
//		hoard.WithCapacity[string, int](100),
//		hoard.WithEvictionPrioritizer(hoard.EvictLFU[string, int]()),
//		hoard.WithEvictionVeto[string, int](func(key string, _ int) bool {
//			return strings.HasPrefix(key, "pinned:")
//		}),
//	)
//
// EvictLRU is the default; EvictLFU and EvictFIFO are built in, and any
// function ranking two Candidates works. When every entry is vetoed the
// insertion is still accepted and the bound is transiently exceeded.
//
// # Atomic Computation
//
// Compute and ComputeIfAbsent run a caller-supplied function under the
// key's lock stripe, so the read-modify-write is atomic even under
// concurrent callers:
//
//	count, _, err := store.Compute("visits", func(_ string, n int, _ bool) (int, bool, error) {
//		return n + 1, true, nil
//	})
//
// BulkCompute and BulkComputeIfAbsent extend this to key batches with a
// single function invocation, trading batch-wide atomicity for per-key
// atomicity.
//
// # Caches and Loaders
//
// A Cache wraps a store and connects it to a system of record through a
// LoaderWriter. Misses load through, mutations write through, and
// concurrent loads of one key collapse into a single Load call:
//
//	cache := hoard.NewCache[string, *User](
//		hoard.WithLoaderWriter[string, *User](userStore),
//	)
//
//	user, ok, err := cache.Get(ctx, "user:123")
//
// Loader faults surface as an *AccessError, never as a miss.
//
// # Outcome Events
//
// Stores and caches describe how each operation concluded by emitting
// events to a Sink. Sinks must not block; the stats subpackage provides
// counters, Prometheus, and slog implementations plus an asynchronous
// buffer for slow destinations:
//
//	counters := &stats.Counters{}
//	cache := hoard.NewCache[string, int](
//		hoard.WithSink[string, int](counters),
//	)
//
// # Managers
//
// A Manager registers caches under string aliases and closes them all
// together. Lookup recovers a cache with its concrete type parameters:
//
//	m := hoard.NewManager()
//	m.Register("sessions", sessions)
//
//	c, err := hoard.Lookup[string, []byte](m, "sessions")
//
// # Declarative Configuration
//
// The config subpackage builds caches and managers from YAML documents
// with template inheritance, using the runtime type registry to resolve
// declared key and value classes.
//
// # Testing
//
// Inject a custom clock to control time in tests:
//
//	type fakeClock struct{ now time.Time }
//	func (c *fakeClock) Now() time.Time { return c.now }
//
//	clock := &fakeClock{now: time.Now()}
//	store := hoard.New[string, int](
//		hoard.WithExpiry[string, int](hoard.ExpireAfterWrite(time.Minute)),
//		hoard.WithClock[string, int](clock),
//	)
//
//	store.Put("key", 42)
//	clock.now = clock.now.Add(2 * time.Minute) // deadline passed
//	_, ok, _ := store.Get("key")               // ok == false
//
// # Thread Safety
//
// All Store, Cache, and Manager methods are safe for concurrent use.
// The table is striped across shards, so operations on distinct keys
// rarely contend, while operations on one key serialize with each
// other.
package hoard
