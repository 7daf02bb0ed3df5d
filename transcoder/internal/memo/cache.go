package memo

import (
	"sync"
	"sync/atomic"
)

// Forward builds a stand-in for a value that is still being built. get
// returns the finished value once the outer build completes.
type Forward[V any] func(get func() (V, error)) V

type entry[V any] struct {
	value V
	err   error
}

// Cache memoizes V per key. Safe for concurrent use.
type Cache[K comparable, V any] struct {
	mu      *sync.Mutex
	forward Forward[V]
	done    sync.Map // K -> entry[V]
	pending map[K]bool
	builds  atomic.Int64
}

// New creates a cache that serializes builds on mu. Caches sharing mu may
// call each other's Nested from inside a build.
func New[K comparable, V any](mu *sync.Mutex, forward Forward[V]) *Cache[K, V] {
	return &Cache[K, V]{
		mu:      mu,
		forward: forward,
		pending: make(map[K]bool),
	}
}

// Get returns the cached value for key, building it on first use.
func (c *Cache[K, V]) Get(key K, build func(K) (V, error)) (V, error) {
	if e, ok := c.load(key); ok {
		return e.value, e.err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Nested(key, build)
}

// Nested is Get for callers already holding the shared mutex, i.e. from
// inside another build.
func (c *Cache[K, V]) Nested(key K, build func(K) (V, error)) (V, error) {
	if e, ok := c.load(key); ok {
		return e.value, e.err
	}

	if c.pending[key] {
		return c.forward(func() (V, error) {
			e, _ := c.load(key)
			return e.value, e.err
		}), nil
	}

	c.pending[key] = true
	c.builds.Add(1)
	value, err := build(key)
	delete(c.pending, key)

	c.done.Store(key, entry[V]{value: value, err: err})
	return value, err
}

func (c *Cache[K, V]) load(key K) (entry[V], bool) {
	v, ok := c.done.Load(key)
	if !ok {
		return entry[V]{}, false
	}
	return v.(entry[V]), true
}

// Len returns the number of finished entries.
func (c *Cache[K, V]) Len() int {
	n := 0
	c.done.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
}

// Builds returns how many times a build function has run.
func (c *Cache[K, V]) Builds() int64 {
	return c.builds.Load()
}
