// Package cache memoizes completed call results for a bounded time.
//
// Entries are keyed by a hash of the prompt and the effective
// configuration. Expiry is purely time-based: an entry past its TTL is a
// miss and is removed on the lookup that finds it. A Sweeper can drop
// expired entries in the background; it never changes what lookups see.
package cache

import (
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	gocache "github.com/patrickmn/go-cache"
)

// Cache is a TTL cache safe for concurrent use.
type Cache[V any] struct {
	// mu orders lookups that remove expired entries against inserts
	mu    sync.Mutex
	store *gocache.Cache
}

// New creates an empty cache. No janitor goroutine is started; see
// Sweeper for background cleanup.
func New[V any]() *Cache[V] {
	return &Cache[V]{
		store: gocache.New(gocache.NoExpiration, 0),
	}
}

// Key derives the cache key of a prompt under a configuration fingerprint.
func Key(prompt string, fingerprint []byte) string {
	d := xxhash.New()
	_, _ = d.WriteString(prompt)
	_, _ = d.Write([]byte{0})
	_, _ = d.Write(fingerprint)
	return strconv.FormatUint(d.Sum64(), 16)
}

// Get returns the value stored under key. An expired entry is removed and
// reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	var zero V

	c.mu.Lock()
	defer c.mu.Unlock()

	item, ok := c.store.Get(key)
	if !ok {
		// go-cache hides expired items from Get but keeps them until
		// deleted.
		c.store.Delete(key)
		return zero, false
	}
	v, ok := item.(V)
	if !ok {
		return zero, false
	}
	return v, true
}

// Put stores value under key for ttl. A non-positive ttl means the entry
// would expire immediately, so nothing is stored.
func (c *Cache[V]) Put(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Set(key, value, ttl)
}

// Delete removes the entry stored under key, if any.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Delete(key)
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.Flush()
}

// Len returns the number of stored entries, including expired entries that
// have not been removed yet.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.store.ItemCount()
}

// DeleteExpired removes every expired entry and returns how many were
// removed.
func (c *Cache[V]) DeleteExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := c.store.ItemCount()
	c.store.DeleteExpired()
	return before - c.store.ItemCount()
}
