package cache

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestGetPutRoundTrip(t *testing.T) {
	c := New(1024)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Put("k", []byte("value"), time.Minute)
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("value"), got)

	hits, misses := c.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(1), misses)
}

func TestNonPositiveCapacityFallsBackToDefault(t *testing.T) {
	for _, capacity := range []int64{0, -5} {
		c := New(capacity)

		c.Put("k", []byte("value"), time.Minute)
		got, ok := c.Get("k")
		require.True(t, ok, "capacity %d must not produce an evict-everything cache", capacity)
		assert.Equal(t, []byte("value"), got)
		assert.Equal(t, 1, c.Len())
	}
}

func TestTTLExpiryIsAHardBound(t *testing.T) {
	clock := newFakeClock()
	c := New(1024, WithClock(clock.Now))

	c.Put("k", []byte("v"), time.Minute)

	// Repeated access does not extend the TTL.
	for i := 0; i < 10; i++ {
		clock.Advance(10 * time.Second)
		c.Get("k")
	}

	_, ok := c.Get("k")
	assert.False(t, ok, "entry must expire at TTL regardless of access pattern")
}

func TestPinnedEntryNeverExpires(t *testing.T) {
	clock := newFakeClock()
	c := New(1024, WithClock(clock.Now))

	c.Put("k", []byte("v"), NoExpiry)
	clock.Advance(24 * time.Hour)

	_, ok := c.Get("k")
	assert.True(t, ok)
}

func TestEvictsLRUPastRetention(t *testing.T) {
	clock := newFakeClock()
	// Each entry is 10 bytes (2-byte key + 8-byte value); capacity fits 3.
	c := New(30, WithClock(clock.Now), WithMinRetention(time.Minute))

	c.Put("k1", []byte("12345678"), NoExpiry)
	c.Put("k2", []byte("12345678"), NoExpiry)
	c.Put("k3", []byte("12345678"), NoExpiry)

	// Age all three past the retention window, then touch k1 and k3 so k2
	// becomes the least recently used.
	clock.Advance(2 * time.Minute)
	c.Get("k1")
	c.Get("k3")

	c.Put("k4", []byte("12345678"), NoExpiry)

	_, ok := c.Get("k2")
	assert.False(t, ok, "LRU entry past retention should be evicted")
	for _, key := range []string{"k1", "k3", "k4"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "entry %s should survive", key)
	}
}

func TestRetentionWindowProtectsRecentEntries(t *testing.T) {
	clock := newFakeClock()
	c := New(31, WithClock(clock.Now), WithMinRetention(time.Minute))

	c.Put("old", []byte("12345678"), NoExpiry)
	clock.Advance(2 * time.Minute)

	// Fresh entries are inside the retention window; the aged one is the
	// only eviction candidate even though it is not the coldest by access.
	c.Put("n1", []byte("12345678"), NoExpiry)
	c.Put("n2", []byte("12345678"), NoExpiry)
	c.Get("old") // most recently used, but past retention
	c.Put("n3", []byte("12345678"), NoExpiry)

	_, ok := c.Get("old")
	assert.False(t, ok, "only the entry past retention is eviction-eligible")
	for _, key := range []string{"n1", "n2", "n3"} {
		_, ok := c.Get(key)
		assert.True(t, ok)
	}
}

func TestFallsBackToPlainLRUWhenAllRetained(t *testing.T) {
	clock := newFakeClock()
	c := New(30, WithClock(clock.Now), WithMinRetention(time.Hour))

	c.Put("k1", []byte("12345678"), NoExpiry)
	c.Put("k2", []byte("12345678"), NoExpiry)
	c.Put("k3", []byte("12345678"), NoExpiry)
	c.Put("k4", []byte("12345678"), NoExpiry)

	assert.Equal(t, 3, c.Len(), "capacity bound holds even inside retention")
	_, ok := c.Get("k1")
	assert.False(t, ok, "oldest access falls out first")
}

func TestExpiredEntriesSweptBeforeLiveOnes(t *testing.T) {
	clock := newFakeClock()
	c := New(36, WithClock(clock.Now), WithMinRetention(0))

	c.Put("dead", []byte("12345678"), time.Second)
	c.Put("live1", []byte("1234567"), NoExpiry)
	c.Put("live2", []byte("1234567"), NoExpiry)
	clock.Advance(time.Minute)

	c.Put("live3", []byte("1234567"), NoExpiry)

	_, ok := c.Get("dead")
	assert.False(t, ok)
	for _, key := range []string{"live1", "live2", "live3"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "live entry %s should not be evicted while an expired one remains", key)
	}
}

func TestReplaceExistingKey(t *testing.T) {
	c := New(1024)

	c.Put("k", []byte("first"), time.Minute)
	c.Put("k", []byte("second"), time.Minute)

	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, []byte("second"), got)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(len("k")+len("second")), c.Size())
}

func TestConcurrentAccessSameKey(t *testing.T) {
	c := New(1 << 20)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.Put("shared", []byte(fmt.Sprintf("writer-%d", i)), time.Minute)
				if v, ok := c.Get("shared"); ok {
					assert.Contains(t, string(v), "writer-")
				}
			}
		}(i)
	}
	wg.Wait()

	_, ok := c.Get("shared")
	assert.True(t, ok, "no lost updates: some writer's value must be resident")
}
