// ABOUTME: TTL and size bounded set of recently recorded capture keys.
// ABOUTME: Lets the scan workflow drop a second submission of the same capture.

package dedupe

import (
	"container/list"
	"sync"
	"time"
)

// cacheEntry stores when a key was marked and its place in insertion order.
type cacheEntry struct {
	markedAt time.Time
	element  *list.Element
}

// Cache remembers capture keys for ttl, holding at most maxSize of them.
// Expired entries are dropped lazily on access; there is no background goroutine.
// A zero ttl or maxSize disables the cache: nothing is ever reported as seen.
type Cache struct {
	mu      sync.Mutex
	seen    map[string]*cacheEntry
	order   *list.List // keys in insertion order (oldest at front)
	ttl     time.Duration
	maxSize int
	now     func() time.Time
}

// New creates a cache with the given TTL and maximum size.
func New(ttl time.Duration, maxSize int) *Cache {
	return &Cache{
		seen:    make(map[string]*cacheEntry),
		order:   list.New(),
		ttl:     ttl,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Cache) WithClock(now func() time.Time) *Cache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// CheckAndMark reports whether key was marked within the TTL. If it was not,
// the key is marked now. Empty keys are never tracked.
func (c *Cache) CheckAndMark(key string) bool {
	if key == "" || c.disabled() {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.expireLocked(now)

	if entry, ok := c.seen[key]; ok {
		if now.Sub(entry.markedAt) < c.ttl {
			return true
		}
		c.removeLocked(key, entry)
	}

	if len(c.seen) >= c.maxSize {
		c.evictOldest()
	}

	c.seen[key] = &cacheEntry{
		markedAt: now,
		element:  c.order.PushBack(key),
	}
	return false
}

// Forget removes key so the same capture may be submitted again,
// for example after recording it failed.
func (c *Cache) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.seen[key]; ok {
		c.removeLocked(key, entry)
	}
}

// Len returns the number of keys currently held, including expired ones not yet dropped.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

func (c *Cache) disabled() bool {
	return c.ttl <= 0 || c.maxSize <= 0
}

// expireLocked drops expired keys from the front of the order list.
// Entries are marked in time order, so it stops at the first live one.
func (c *Cache) expireLocked(now time.Time) {
	for front := c.order.Front(); front != nil; front = c.order.Front() {
		key, _ := front.Value.(string)
		entry := c.seen[key]
		if entry == nil || now.Sub(entry.markedAt) < c.ttl {
			return
		}
		c.removeLocked(key, entry)
	}
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	front := c.order.Front()
	if front == nil {
		return
	}

	key, _ := front.Value.(string)
	c.order.Remove(front)
	delete(c.seen, key)
}

func (c *Cache) removeLocked(key string, entry *cacheEntry) {
	c.order.Remove(entry.element)
	delete(c.seen, key)
}
