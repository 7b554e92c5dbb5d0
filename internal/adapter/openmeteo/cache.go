package openmeteo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/couchcryptid/polygon-dashboard/internal/domain"
)

// CachedFetcher wraps a FeedFetcher with an in-memory LRU cache. Entries
// expire after ttl so a periodic refresh still picks up the current day.
type CachedFetcher struct {
	inner domain.FeedFetcher
	ttl   time.Duration
	cache *lruCache
}

// NewCachedFetcher creates a cache decorator around a feed fetcher.
func NewCachedFetcher(inner domain.FeedFetcher, maxEntries int, ttl time.Duration) *CachedFetcher {
	return &CachedFetcher{
		inner: inner,
		ttl:   ttl,
		cache: newLRUCache(maxEntries),
	}
}

func (c *CachedFetcher) FetchFeed(ctx context.Context, req domain.FeedRequest) (domain.Feed, error) {
	key := cacheKey(req)
	if feed, ok := c.cache.get(key, domain.Now()); ok {
		return feed, nil
	}
	feed, err := c.inner.FetchFeed(ctx, req)
	if err != nil {
		return feed, err
	}
	// Empty feeds are not cached so the next refresh asks again.
	if len(feed.Values) > 0 {
		c.cache.put(key, feed, domain.Now().Add(c.ttl))
	}
	return feed, nil
}

func cacheKey(req domain.FeedRequest) string {
	return fmt.Sprintf("%s|%.4f,%.4f|%s|%s", req.Field, req.Lat, req.Lon,
		req.Start.Format(dateLayout), req.End.Format(dateLayout))
}

// lruCache is a small thread-safe LRU cache for feeds with per-entry expiry.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key     string
	value   domain.Feed
	expires time.Time
	prev    *entry
	next    *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string, now time.Time) (domain.Feed, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Feed{}, false
	}
	if !now.Before(e.expires) {
		delete(c.entries, key)
		c.remove(e)
		return domain.Feed{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Feed, expires time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expires = expires
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expires: expires}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
