package hoard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// mockLoaderWriter is a map-backed system of record for testing.
type mockLoaderWriter[K comparable, V any] struct {
	mu     sync.Mutex
	data   map[K]V
	loads  int
	writes int
}

func newMockLoaderWriter[K comparable, V any]() *mockLoaderWriter[K, V] {
	return &mockLoaderWriter[K, V]{data: make(map[K]V)}
}

func (m *mockLoaderWriter[K, V]) Load(_ context.Context, key K) (V, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *mockLoaderWriter[K, V]) LoadAll(_ context.Context, keys []K) (map[K]V, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loads++
	found := make(map[K]V)
	for _, k := range keys {
		if v, ok := m.data[k]; ok {
			found[k] = v
		}
	}
	return found, nil
}

func (m *mockLoaderWriter[K, V]) Write(_ context.Context, key K, value V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	m.data[key] = value
	return nil
}

func (m *mockLoaderWriter[K, V]) WriteAll(_ context.Context, entries map[K]V) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *mockLoaderWriter[K, V]) Delete(_ context.Context, key K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *mockLoaderWriter[K, V]) DeleteAll(_ context.Context, keys []K) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func (m *mockLoaderWriter[K, V]) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *mockLoaderWriter[K, V]) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

func (m *mockLoaderWriter[K, V]) stored(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[key]
	return v, ok
}

type errorLoaderWriter[K comparable, V any] struct{}

func (*errorLoaderWriter[K, V]) Load(context.Context, K) (V, bool, error) {
	var zero V
	return zero, false, errors.New("source error")
}

func (*errorLoaderWriter[K, V]) LoadAll(context.Context, []K) (map[K]V, error) {
	return nil, errors.New("source error")
}

func (*errorLoaderWriter[K, V]) Write(context.Context, K, V) error {
	return errors.New("source error")
}

func (*errorLoaderWriter[K, V]) WriteAll(context.Context, map[K]V) error {
	return errors.New("source error")
}

func (*errorLoaderWriter[K, V]) Delete(context.Context, K) error {
	return errors.New("source error")
}

func (*errorLoaderWriter[K, V]) DeleteAll(context.Context, []K) error {
	return errors.New("source error")
}

// funcLoaderWriter adapts a load function into a read-only LoaderWriter.
type funcLoaderWriter[K comparable, V any] struct {
	load func(ctx context.Context, key K) (V, bool, error)
}

func (f *funcLoaderWriter[K, V]) Load(ctx context.Context, key K) (V, bool, error) {
	return f.load(ctx, key)
}

func (f *funcLoaderWriter[K, V]) LoadAll(ctx context.Context, keys []K) (map[K]V, error) {
	found := make(map[K]V, len(keys))
	for _, k := range keys {
		v, ok, err := f.load(ctx, k)
		if err != nil {
			return nil, err
		}
		if ok {
			found[k] = v
		}
	}
	return found, nil
}

func (f *funcLoaderWriter[K, V]) Write(context.Context, K, V) error       { return nil }
func (f *funcLoaderWriter[K, V]) WriteAll(context.Context, map[K]V) error { return nil }
func (f *funcLoaderWriter[K, V]) Delete(context.Context, K) error         { return nil }
func (f *funcLoaderWriter[K, V]) DeleteAll(context.Context, []K) error    { return nil }

type CacheSuite struct {
	suite.Suite
	ctx context.Context
	clk *mockClock
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.clk = &mockClock{now: time.Now()}
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) TestGetWithoutLoader() {
	c := NewCache[string, int]()

	s.Require().NoError(c.Put(s.ctx, "a", 1))

	v, ok, err := c.Get(s.ctx, "a")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(1, v)

	_, ok, err = c.Get(s.ctx, "b")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *CacheSuite) TestGetLoadsThrough() {
	lw := newMockLoaderWriter[string, int]()
	lw.data["external"] = 42

	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	v, ok, err := c.Get(s.ctx, "external")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(42, v)
	s.Equal(1, lw.loadCount())

	// second read comes from the cache
	v, ok, err = c.Get(s.ctx, "external")
	s.Require().NoError(err)
	s.True(ok)
	s.Equal(42, v)
	s.Equal(1, lw.loadCount(), "a cached key must not load again")
}

func (s *CacheSuite) TestGetLoaderMiss() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	_, ok, err := c.Get(s.ctx, "absent")
	s.Require().NoError(err, "an authoritative miss is not an error")
	s.False(ok)
	s.False(c.ContainsKey("absent"), "a miss must not be cached")
}

func (s *CacheSuite) TestGetLoaderError() {
	c := NewCache[string, int](
		WithLoaderWriter[string, int](&errorLoaderWriter[string, int]{}),
	)

	_, ok, err := c.Get(s.ctx, "key")
	s.False(ok)

	var aErr *AccessError
	s.Require().ErrorAs(err, &aErr)
	s.Equal("load", aErr.Op)
	s.False(c.ContainsKey("key"))
}

func (s *CacheSuite) TestLoaderSingleFlight() {
	var loadCount atomic.Int32
	proceed := make(chan struct{})

	c := NewCache[string, int](
		WithLoaderWriter[string, int](&funcLoaderWriter[string, int]{
			load: func(context.Context, string) (int, bool, error) {
				loadCount.Add(1)
				<-proceed
				return 42, true, nil
			},
		}),
	)

	var wg sync.WaitGroup
	results := make([]int, 3)
	errs := make([]error, 3)

	for i := range 3 {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			results[idx], _, errs[idx] = c.Get(s.ctx, "key")
		}(i)
	}

	// give goroutines time to start and coalesce on the same load call
	time.Sleep(10 * time.Millisecond)

	close(proceed)
	wg.Wait()

	s.Equal(int32(1), loadCount.Load(), "concurrent loads of one key must coalesce")

	for i, err := range errs {
		s.NoError(err, "goroutine %d error", i)
		s.Equal(42, results[i], "goroutine %d result", i)
	}
}

func (s *CacheSuite) TestSingleFlightIsPerKey() {
	type refKey struct {
		Region, ID string
	}
	k1 := refKey{Region: "us", ID: "e 1"}
	k2 := refKey{Region: "us e", ID: "1"}
	s.Require().NotEqual(k1, k2)
	s.Require().Equal(fmt.Sprint(k1), fmt.Sprint(k2), "distinct keys with identical printed forms")

	started := make(chan refKey, 2)
	proceed := make(chan struct{})

	c := NewCache[refKey, string](
		WithLoaderWriter[refKey, string](&funcLoaderWriter[refKey, string]{
			load: func(_ context.Context, k refKey) (string, bool, error) {
				started <- k
				<-proceed
				return k.Region + "/" + k.ID, true, nil
			},
		}),
	)

	keys := []refKey{k1, k2}
	var wg sync.WaitGroup
	results := make([]string, 2)
	errs := make([]error, 2)

	for i, k := range keys {
		wg.Add(1)
		go func(idx int, key refKey) {
			defer wg.Done()
			results[idx], _, errs[idx] = c.Get(s.ctx, key)
		}(i, k)
	}

	// both keys must run their own load
	loadedKeys := []refKey{<-started, <-started}
	s.ElementsMatch(keys, loadedKeys)

	close(proceed)
	wg.Wait()

	for i, err := range errs {
		s.NoError(err, "goroutine %d error", i)
	}
	s.Equal("us/e 1", results[0])
	s.Equal("us e/1", results[1])

	// each key stays cached with its own value
	for i, k := range keys {
		v, ok, err := c.Get(s.ctx, k)
		s.Require().NoError(err)
		s.True(ok)
		s.Equal(results[i], v, "a coalesced load must never cache another key's value")
	}
}

func (s *CacheSuite) TestGetAll() {
	lw := newMockLoaderWriter[string, int]()
	lw.data["b"] = 2

	c := NewCache[string, int](WithLoaderWriter[string, int](lw))
	s.Require().NoError(c.Put(s.ctx, "a", 1))

	found, err := c.GetAll(s.ctx, []string{"a", "b", "c"})
	s.Require().NoError(err)

	s.Len(found, 2)
	s.Equal(1, found["a"])
	s.Equal(2, found["b"])
	_, ok := found["c"]
	s.False(ok, "keys the source does not know stay absent")

	s.True(c.ContainsKey("b"), "loaded values are cached")
	s.Equal(1, lw.loadCount(), "all absent keys load in one batch")
}

func (s *CacheSuite) TestGetAllWithoutLoader() {
	c := NewCache[string, int]()
	s.Require().NoError(c.Put(s.ctx, "a", 1))

	found, err := c.GetAll(s.ctx, []string{"a", "b"})
	s.Require().NoError(err)
	s.Len(found, 1)
	s.Equal(1, found["a"])
}

func (s *CacheSuite) TestGetAllLoaderError() {
	c := NewCache[string, int](
		WithLoaderWriter[string, int](&errorLoaderWriter[string, int]{}),
	)

	_, err := c.GetAll(s.ctx, []string{"a"})

	var aErr *AccessError
	s.Require().ErrorAs(err, &aErr)
	s.Equal("load_all", aErr.Op)
}

func (s *CacheSuite) TestPutWritesThrough() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	s.Require().NoError(c.Put(s.ctx, "key", 123))

	s.True(c.ContainsKey("key"))
	v, ok := lw.stored("key")
	s.True(ok)
	s.Equal(123, v)
}

func (s *CacheSuite) TestPutWriteFailureLeavesCacheUnchanged() {
	c := NewCache[string, int](
		WithLoaderWriter[string, int](&errorLoaderWriter[string, int]{}),
	)

	err := c.Put(s.ctx, "key", 1)

	var aErr *AccessError
	s.Require().ErrorAs(err, &aErr)
	s.Equal("write", aErr.Op)
	s.False(c.ContainsKey("key"), "a failed write-through must not populate the cache")
}

func (s *CacheSuite) TestPutAllWritesThrough() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	s.Require().NoError(c.PutAll(s.ctx, map[string]int{"a": 1, "b": 2}))

	s.Equal(2, c.Len())
	v, ok := lw.stored("a")
	s.True(ok)
	s.Equal(1, v)
	v, ok = lw.stored("b")
	s.True(ok)
	s.Equal(2, v)
	s.Equal(1, lw.writeCount(), "the batch writes through in one call")
}

func (s *CacheSuite) TestPutIfAbsentWritesThrough() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	_, present, err := c.PutIfAbsent(s.ctx, "a", 1)
	s.Require().NoError(err)
	s.False(present)
	v, ok := lw.stored("a")
	s.True(ok)
	s.Equal(1, v)

	prev, present, err := c.PutIfAbsent(s.ctx, "a", 2)
	s.Require().NoError(err)
	s.True(present)
	s.Equal(1, prev)
	s.Equal(1, lw.writeCount(), "a declined insert must not write through")
}

func (s *CacheSuite) TestPutIfAbsentWriteFailureRollsBack() {
	c := NewCache[string, int](
		WithLoaderWriter[string, int](&errorLoaderWriter[string, int]{}),
	)

	_, _, err := c.PutIfAbsent(s.ctx, "a", 1)

	var aErr *AccessError
	s.Require().ErrorAs(err, &aErr)
	s.False(c.ContainsKey("a"), "the mapping rolls back when the write fails")
}

func (s *CacheSuite) TestRemoveDeletesThrough() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))
	s.Require().NoError(c.Put(s.ctx, "key", 1))

	s.Require().NoError(c.Remove(s.ctx, "key"))

	s.False(c.ContainsKey("key"))
	_, ok := lw.stored("key")
	s.False(ok)
}

func (s *CacheSuite) TestRemoveAllDeletesThrough() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))
	s.Require().NoError(c.PutAll(s.ctx, map[string]int{"a": 1, "b": 2, "c": 3}))

	s.Require().NoError(c.RemoveAll(s.ctx, []string{"a", "c"}))

	s.False(c.ContainsKey("a"))
	s.True(c.ContainsKey("b"))
	s.False(c.ContainsKey("c"))
	_, ok := lw.stored("a")
	s.False(ok)
	_, ok = lw.stored("b")
	s.True(ok)
}

func (s *CacheSuite) TestContainsKeyDoesNotLoad() {
	lw := newMockLoaderWriter[string, int]()
	lw.data["a"] = 1

	c := NewCache[string, int](WithLoaderWriter[string, int](lw))

	s.False(c.ContainsKey("a"), "contains must not consult the loader")
	s.Equal(0, lw.loadCount())
}

func (s *CacheSuite) TestMistypedKeyBeforeWriteThrough() {
	lw := newMockLoaderWriter[any, any]()
	c := NewCache[any, any](
		WithKeyType[any, any](reflect.TypeOf("")),
		WithValueType[any, any](reflect.TypeOf(0)),
		WithLoaderWriter[any, any](lw),
	)

	err := c.Put(s.ctx, 42, 1)

	var wte *WrongTypeError
	s.Require().ErrorAs(err, &wte)
	s.Equal("key", wte.Kind)
	s.Equal(0, lw.writeCount(), "type checks run before the write-through")
}

func (s *CacheSuite) TestClear() {
	lw := newMockLoaderWriter[string, int]()
	c := NewCache[string, int](WithLoaderWriter[string, int](lw))
	s.Require().NoError(c.Put(s.ctx, "a", 1))

	c.Clear()

	s.Equal(0, c.Len())
	_, ok := lw.stored("a")
	s.True(ok, "clear must not touch the system of record")
}

func (s *CacheSuite) TestClose() {
	c := NewCache[string, int]()
	s.Require().NoError(c.Put(s.ctx, "a", 1))

	s.Require().NoError(c.Close())
	s.Require().NoError(c.Close(), "close must be idempotent")

	_, _, err := c.Get(s.ctx, "a")
	s.Require().ErrorIs(err, ErrClosed)
	s.Require().ErrorIs(c.Put(s.ctx, "a", 1), ErrClosed)
	s.Require().ErrorIs(c.Remove(s.ctx, "a"), ErrClosed)

	_, err = c.GetAll(s.ctx, []string{"a"})
	s.Require().ErrorIs(err, ErrClosed)

	s.Equal(0, c.Len())
	s.False(c.ContainsKey("a"))
}

func (s *CacheSuite) TestEventTaxonomy() {
	sink := &recordingSink{}
	c := NewCache[string, int](WithSink[string, int](sink))

	s.Require().NoError(c.Put(s.ctx, "a", 1))
	c.Get(s.ctx, "a")
	c.Get(s.ctx, "b")

	s.Equal(1, sink.count(OpPut, ResultAdded), "store-level puts must not double-count")
	s.Equal(1, sink.count(OpGet, ResultHit))
	s.Equal(1, sink.count(OpGet, ResultMiss))
}

func (s *CacheSuite) TestLoaderEventTaxonomy() {
	sink := &recordingSink{}
	lw := newMockLoaderWriter[string, int]()
	lw.data["a"] = 1

	c := NewCache[string, int](
		WithLoaderWriter[string, int](lw),
		WithSink[string, int](sink),
	)

	c.Get(s.ctx, "a")       // loads
	c.Get(s.ctx, "a")       // cached
	c.Get(s.ctx, "missing") // authoritative miss

	s.Equal(2, sink.count(OpGet, ResultHitLoader))
	s.Equal(1, sink.count(OpGet, ResultMissLoader))
	s.Equal(0, sink.count(OpGet, ResultHit))
	s.Equal(2, sink.count(OpLoad, ResultSuccess))
}

func (s *CacheSuite) TestEvictionEventsFlowThrough() {
	sink := &recordingSink{}
	c := NewCache[string, int](
		WithCapacity[string, int](2),
		WithClock[string, int](s.clk),
		WithSink[string, int](sink),
	)

	c.Put(s.ctx, "a", 1)
	s.clk.Advance(time.Second)
	c.Put(s.ctx, "b", 2)
	s.clk.Advance(time.Second)
	c.Put(s.ctx, "c", 3)

	s.Equal(1, sink.count(OpEviction, ResultEvicted))
	s.Equal(3, sink.count(OpPut, ResultAdded))
}
