package cache

import (
	"container/list"
	"log/slog"
	"sync"
	"time"
)

// NoExpiry pins an entry: it is never removed by TTL expiry.
// Pinned entries remain eligible for capacity eviction.
const NoExpiry time.Duration = 0

// DefaultCapacity is used when New is given a non-positive capacity.
const DefaultCapacity int64 = 64 << 20

// Cache is a content-addressed key/value store with TTL expiry and
// bounded-size LRU eviction. Eviction prefers the least-recently-used entry
// that has aged past a minimum-retention window; TTL is a hard upper bound
// on lifetime independent of access pattern. Operations on a single key are
// linearizable (one mutex guards the whole structure).
type Cache struct {
	mu           sync.Mutex
	capacity     int64
	minRetention time.Duration
	now          func() time.Time
	logger       *slog.Logger

	entries map[string]*list.Element
	lru     *list.List // front = most recently used
	size    int64

	hits   uint64
	misses uint64
}

// entry is the resident record for one key.
type entry struct {
	key            string
	value          []byte
	createdAt      time.Time
	lastAccessedAt time.Time
	expiresAt      time.Time // zero means pinned (no TTL)
	size           int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithMinRetention sets the window during which a freshly inserted entry is
// protected from capacity eviction. Default is 30 seconds.
func WithMinRetention(d time.Duration) Option {
	return func(c *Cache) {
		if d >= 0 {
			c.minRetention = d
		}
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
	}
}

// WithClock sets the time source, used by tests to step through retention
// and TTL windows deterministically.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// New creates a cache bounded to capacity bytes of keys plus values.
// A non-positive capacity falls back to DefaultCapacity, so a misconfigured
// bound can never turn the cache into an evict-everything store.
func New(capacity int64, opts ...Option) *Cache {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	c := &Cache{
		capacity:     capacity,
		minRetention: 30 * time.Second,
		now:          time.Now,
		logger:       slog.Default().With("component", "cache"),
		entries:      make(map[string]*list.Element),
		lru:          list.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Get returns the value for key, or (nil, false) on a miss.
// An entry past its TTL is removed and reported as a miss.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	e := elem.Value.(*entry)
	if c.expired(e) {
		c.removeLocked(elem)
		c.misses++
		return nil, false
	}
	e.lastAccessedAt = c.now()
	c.lru.MoveToFront(elem)
	c.hits++
	return e.value, true
}

// Put stores value under key with the given TTL (NoExpiry pins the entry).
// Replacing an existing key keeps its original creation time for the
// retention window but resets the TTL.
func (c *Cache) Put(key string, value []byte, ttl time.Duration) {
	now := c.now()
	size := int64(len(key) + len(value))

	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*entry)
		c.size += size - e.size
		e.value = value
		e.size = size
		e.lastAccessedAt = now
		e.expiresAt = expiry(now, ttl)
		c.lru.MoveToFront(elem)
	} else {
		e := &entry{
			key:            key,
			value:          value,
			createdAt:      now,
			lastAccessedAt: now,
			expiresAt:      expiry(now, ttl),
			size:           size,
		}
		c.entries[key] = c.lru.PushFront(e)
		c.size += size
	}

	c.evictLocked()
}

// Delete removes key if present.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if elem, ok := c.entries[key]; ok {
		c.removeLocked(elem)
	}
}

// Len returns the number of resident entries, including any not yet
// swept after TTL expiry.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Size returns the resident byte total.
func (c *Cache) Size() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// Stats returns cumulative hit and miss counts.
func (c *Cache) Stats() (hits, misses uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses
}

// evictLocked brings the cache back under capacity. TTL-expired entries go
// first; then the least-recently-used entry past the retention window; if
// every remaining entry is still inside the window, plain LRU keeps the
// size bound honest.
func (c *Cache) evictLocked() {
	if c.size <= c.capacity {
		return
	}

	// Sweep expired entries before touching live ones.
	for elem := c.lru.Back(); elem != nil && c.size > c.capacity; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry)) {
			c.removeLocked(elem)
		}
		elem = prev
	}

	for c.size > c.capacity && c.lru.Len() > 0 {
		victim := c.lruPastRetentionLocked()
		if victim == nil {
			victim = c.lru.Back()
		}
		e := victim.Value.(*entry)
		c.logger.Debug("evicting cache entry", "key", e.key, "size", e.size)
		c.removeLocked(victim)
	}
}

// lruPastRetentionLocked returns the least-recently-used element whose
// creation is older than the retention window, or nil if none qualifies.
func (c *Cache) lruPastRetentionLocked() *list.Element {
	cutoff := c.now().Add(-c.minRetention)
	for elem := c.lru.Back(); elem != nil; elem = elem.Prev() {
		if elem.Value.(*entry).createdAt.Before(cutoff) {
			return elem
		}
	}
	return nil
}

func (c *Cache) removeLocked(elem *list.Element) {
	e := elem.Value.(*entry)
	c.lru.Remove(elem)
	delete(c.entries, e.key)
	c.size -= e.size
}

func (c *Cache) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt)
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl == NoExpiry {
		return time.Time{}
	}
	return now.Add(ttl)
}
