// Package retrieval implements hybrid code search: dense vector search and
// BM25 keyword search run in parallel against the code graph, results are
// fused (RRF or linear), optionally reranked by a cross-encoder, enriched
// with graph relationships and file snippets, and cached.
package retrieval

import (
	"container/list"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/repotoire/repotoire/internal/model"
)

// Cache is an in-memory LRU cache with per-entry TTL for search results.
// Entries are deep-copied on both store and lookup so callers can mutate
// returned slices freely. A zero maxSize or TTL disables caching.
type Cache struct {
	mu        sync.Mutex
	maxSize   int
	ttl       time.Duration
	ll        *list.List // front = most recently used
	items     map[string]*list.Element
	hits      int64
	misses    int64
	evictions int64
}

type cacheEntry struct {
	key      string
	results  []model.RetrievalResult
	storedAt time.Time
}

// CacheStats is a point-in-time snapshot of cache effectiveness.
type CacheStats struct {
	Size      int     `json:"size"`
	MaxSize   int     `json:"max_size"`
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	Evictions int64   `json:"evictions"`
	HitRate   float64 `json:"hit_rate"`
}

// NewCache creates a cache bounded by maxSize entries with the given TTL.
func NewCache(maxSize int, ttl time.Duration) *Cache {
	return &Cache{
		maxSize: maxSize,
		ttl:     ttl,
		ll:      list.New(),
		items:   make(map[string]*list.Element),
	}
}

func (c *Cache) disabled() bool {
	return c.maxSize <= 0 || c.ttl <= 0
}

// CacheKey derives the lookup key from the search inputs. The query is
// lowercased and whitespace-collapsed so trivially different phrasings of
// the same query share an entry; kinds are sorted for order independence.
func CacheKey(query string, topK int, kinds []model.EntityKind) string {
	q := strings.ToLower(strings.TrimSpace(query))
	q = strings.Join(strings.Fields(q), " ")

	ks := make([]string, len(kinds))
	for i, k := range kinds {
		ks[i] = string(k)
	}
	sort.Strings(ks)

	return q + "|" + strings.Join(ks, ",") + "|" + strconv.Itoa(topK)
}

// Get returns a deep copy of the cached results for key, or nil on a miss.
// Expired entries are removed on lookup.
func (c *Cache) Get(key string) []model.RetrievalResult {
	if c.disabled() {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		c.misses++
		return nil
	}
	ent := el.Value.(*cacheEntry)
	if time.Since(ent.storedAt) >= c.ttl {
		c.removeLocked(el)
		c.misses++
		c.evictions++
		return nil
	}
	c.ll.MoveToFront(el)
	c.hits++
	return model.CloneResults(ent.results)
}

// Put stores a deep copy of results under key, evicting the least recently
// used entry when the cache is full.
func (c *Cache) Put(key string, results []model.RetrievalResult) {
	if c.disabled() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		ent := el.Value.(*cacheEntry)
		ent.results = model.CloneResults(results)
		ent.storedAt = time.Now()
		c.ll.MoveToFront(el)
		return
	}

	for c.ll.Len() >= c.maxSize {
		oldest := c.ll.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest)
		c.evictions++
	}

	el := c.ll.PushFront(&cacheEntry{
		key:      key,
		results:  model.CloneResults(results),
		storedAt: time.Now(),
	})
	c.items[key] = el
}

// Invalidate drops all entries. Called after the underlying graph changes.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ll.Init()
	c.items = make(map[string]*list.Element)
}

// InvalidateExpired removes only entries past their TTL and returns how
// many were dropped.
func (c *Cache) InvalidateExpired() int {
	if c.disabled() {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for el := c.ll.Back(); el != nil; {
		prev := el.Prev()
		ent := el.Value.(*cacheEntry)
		if time.Since(ent.storedAt) >= c.ttl {
			c.removeLocked(el)
			c.evictions++
			removed++
		}
		el = prev
	}
	return removed
}

// Stats returns a snapshot of cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Size:      c.ll.Len(),
		MaxSize:   c.maxSize,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache) removeLocked(el *list.Element) {
	ent := el.Value.(*cacheEntry)
	c.ll.Remove(el)
	delete(c.items, ent.key)
}
