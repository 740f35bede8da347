package hoard

import (
	"fmt"
	"reflect"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Resource is the lifecycle surface the Manager requires of what it
// manages.
type Resource interface {
	Close() error
}

// Manager is an alias registry over caches with a shared lifecycle:
// closing the manager closes every registered cache. All methods are
// safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	items  map[string]Resource
	closed bool
}

// NewManager creates an empty Manager.
func NewManager() *Manager {
	return &Manager{items: make(map[string]Resource)}
}

// Register adds a cache under alias. Duplicate aliases are rejected.
func (m *Manager) Register(alias string, r Resource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrClosed
	}
	if _, ok := m.items[alias]; ok {
		return fmt.Errorf("alias %q is already registered", alias)
	}
	m.items[alias] = r
	return nil
}

// Remove unregisters alias and closes its cache.
func (m *Manager) Remove(alias string) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	r, ok := m.items[alias]
	delete(m.items, alias)
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("alias %q is not registered", alias)
	}
	return r.Close()
}

// Aliases returns the registered aliases in sorted order.
func (m *Manager) Aliases() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.items))
	for alias := range m.items {
		out = append(out, alias)
	}
	slices.Sort(out)
	return out
}

// Close closes every registered cache, concurrently, and returns the
// first close error encountered. Close is idempotent; operations on a
// closed Manager fail with ErrClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	items := m.items
	m.items = map[string]Resource{}
	m.mu.Unlock()

	var eg errgroup.Group
	for _, r := range items {
		eg.Go(r.Close)
	}
	return eg.Wait()
}

// Lookup retrieves the cache registered under alias with the requested
// key and value type parameters. A registration under different type
// parameters fails with a WrongTypeError.
func Lookup[K comparable, V any](m *Manager, alias string) (*Cache[K, V], error) {
	m.mu.Lock()
	r, ok := m.items[alias]
	closed := m.closed
	m.mu.Unlock()

	if closed {
		return nil, ErrClosed
	}
	if !ok {
		return nil, fmt.Errorf("alias %q is not registered", alias)
	}
	c, cast := r.(*Cache[K, V])
	if !cast {
		return nil, &WrongTypeError{
			Kind:     "cache",
			Expected: reflect.TypeOf((*Cache[K, V])(nil)),
			Actual:   reflect.TypeOf(r),
		}
	}
	return c, nil
}
