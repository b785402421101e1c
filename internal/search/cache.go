package search

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"
	"sync/atomic"
	"time"

	"vodstream/searchservice/internal/domain"
	"vodstream/searchservice/internal/metrics"
)

const (
	// cacheTTL is a fixed policy constant, not configurable per call.
	cacheTTL      = 30 * time.Minute
	sweepInterval = 10 * time.Minute

	// anonymousIdentity keys cache entries for requests without a user.
	anonymousIdentity = "anonymous"
)

type cacheEntry struct {
	results   []domain.SearchResult
	createdAt time.Time
}

// Cache maps a (query, tier, identity) fingerprint to a completed tier result
// batch. Entries expire cacheTTL after creation, checked lazily on Lookup and
// swept periodically in the background. All methods are safe for concurrent
// use; entries are never mutated in place, a Store replaces them wholesale.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*cacheEntry
	backend  *RedisBackend
	sweepRun atomic.Bool
	now      func() time.Time
}

type CacheOption func(*Cache)

// WithRedisBackend adds a write-through Redis layer. Backend errors are
// swallowed: the cache degrades to in-memory rather than failing requests.
func WithRedisBackend(backend *RedisBackend) CacheOption {
	return func(c *Cache) {
		c.backend = backend
	}
}

func NewCache(opts ...CacheOption) *Cache {
	cache := &Cache{
		entries: make(map[string]*cacheEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// Fingerprint derives the deterministic cache key for one tier batch.
// An empty identity maps to the anonymous sentinel.
func Fingerprint(query string, tier domain.Tier, identity string) string {
	if identity == "" {
		identity = anonymousIdentity
	}
	sum := sha256.Sum256([]byte(normalizeQuery(query) + "|" + string(tier) + "|" + identity))
	return hex.EncodeToString(sum[:])
}

// Lookup returns the cached batch for the fingerprint, or a miss. Finding an
// expired entry evicts it as a side effect.
func (c *Cache) Lookup(ctx context.Context, query string, tier domain.Tier, identity string) ([]domain.SearchResult, bool) {
	key := Fingerprint(query, tier, identity)
	now := c.now()

	if c.backend != nil {
		if results, found, err := c.backend.Get(ctx, key); err == nil && found {
			metrics.CacheHitsTotal.Inc()
			c.storeMemory(key, results, now)
			return cloneResults(results), true
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	if now.Sub(entry.createdAt) > cacheTTL {
		delete(c.entries, key)
		metrics.CacheMissesTotal.Inc()
		return nil, false
	}
	metrics.CacheHitsTotal.Inc()
	return cloneResults(entry.results), true
}

// Store writes the completed batch for the fingerprint, replacing any prior
// entry, and opportunistically sweeps expired entries.
func (c *Cache) Store(ctx context.Context, query string, results []domain.SearchResult, tier domain.Tier, identity string) {
	key := Fingerprint(query, tier, identity)
	now := c.now()

	if c.backend != nil {
		_ = c.backend.Set(ctx, key, results, cacheTTL)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		results:   cloneResults(results),
		createdAt: now,
	}
	c.sweepLocked(now)
}

func (c *Cache) storeMemory(key string, results []domain.SearchResult, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &cacheEntry{
		results:   cloneResults(results),
		createdAt: now,
	}
}

// Sweep removes every entry older than the TTL.
func (c *Cache) Sweep() {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sweepLocked(now)
}

func (c *Cache) sweepLocked(now time.Time) {
	for key, entry := range c.entries {
		if now.Sub(entry.createdAt) > cacheTTL {
			delete(c.entries, key)
		}
	}
}

// Len reports the current number of in-memory entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// StartBackground runs the periodic sweeper until ctx is cancelled. Repeated
// calls start at most one sweeper.
func (c *Cache) StartBackground(ctx context.Context) {
	if !c.sweepRun.CompareAndSwap(false, true) {
		return
	}
	go func() {
		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
}

func cloneResults(results []domain.SearchResult) []domain.SearchResult {
	if results == nil {
		return nil
	}
	cloned := make([]domain.SearchResult, len(results))
	for i, item := range results {
		copied := item
		copied.Episodes = append([]string(nil), item.Episodes...)
		cloned[i] = copied
	}
	return cloned
}
