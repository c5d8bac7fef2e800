package services

import (
	"context"
	"log"
	"sync"
	"time"

	"binsight-backend/internal/metrics"
	"binsight-backend/internal/models"
)

// Suggested route cache defaults
const (
	DefaultRouteCacheTTL     = 5 * time.Minute
	DefaultRouteCacheEntries = 128
)

// RouteFetcher retrieves the server-side priority route
type RouteFetcher interface {
	FetchRoute(ctx context.Context, startID, endID string) (models.RemoteRoute, error)
}

type routeCacheKey struct {
	start, end string
}

type routeCacheEntry struct {
	route        models.RemoteRoute
	version      uint64
	createdAt    time.Time
	lastAccessed time.Time
}

// RouteCacheStats reports cache effectiveness
type RouteCacheStats struct {
	Size      int   `json:"size"`
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Evictions int64 `json:"evictions"`
}

// CachedRouteFetcher memoizes suggested routes per (start, end). An entry
// is served only while it is younger than the TTL and the fleet snapshot
// it was fetched under is still current.
type CachedRouteFetcher struct {
	next       RouteFetcher
	version    func() uint64
	ttl        time.Duration
	maxEntries int
	now        func() time.Time

	mu      sync.Mutex
	entries map[routeCacheKey]*routeCacheEntry
	stats   RouteCacheStats
}

// NewCachedRouteFetcher wraps next. version reports the current snapshot
// version, typically FleetStore.Version.
func NewCachedRouteFetcher(next RouteFetcher, version func() uint64, ttl time.Duration, maxEntries int) *CachedRouteFetcher {
	if ttl <= 0 {
		ttl = DefaultRouteCacheTTL
	}
	if maxEntries < 1 {
		maxEntries = DefaultRouteCacheEntries
	}
	return &CachedRouteFetcher{
		next:       next,
		version:    version,
		ttl:        ttl,
		maxEntries: maxEntries,
		now:        time.Now,
		entries:    make(map[routeCacheKey]*routeCacheEntry),
	}
}

// FetchRoute serves a cached route or asks the telemetry source. Errors are not cached.
func (c *CachedRouteFetcher) FetchRoute(ctx context.Context, startID, endID string) (models.RemoteRoute, error) {
	key := routeCacheKey{start: startID, end: endID}
	version := c.version()

	if route, ok := c.get(key, version); ok {
		metrics.SuggestedRouteLookups.WithLabelValues("hit").Inc()
		return route, nil
	}
	metrics.SuggestedRouteLookups.WithLabelValues("miss").Inc()

	route, err := c.next.FetchRoute(ctx, startID, endID)
	if err != nil {
		return models.RemoteRoute{}, err
	}
	c.set(key, version, route)
	return route, nil
}

// Stats returns a copy of the counters
func (c *CachedRouteFetcher) Stats() RouteCacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = len(c.entries)
	return s
}

func (c *CachedRouteFetcher) get(key routeCacheKey, version uint64) (models.RemoteRoute, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return models.RemoteRoute{}, false
	}
	now := c.now()
	if entry.version != version || now.Sub(entry.createdAt) > c.ttl {
		delete(c.entries, key)
		c.stats.Evictions++
		c.stats.Misses++
		return models.RemoteRoute{}, false
	}
	entry.lastAccessed = now
	c.stats.Hits++
	return entry.route, true
}

func (c *CachedRouteFetcher) set(key routeCacheKey, version uint64, route models.RemoteRoute) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxEntries {
		c.evictOldest()
	}
	now := c.now()
	c.entries[key] = &routeCacheEntry{
		route:        route,
		version:      version,
		createdAt:    now,
		lastAccessed: now,
	}
}

// evictOldest drops the least recently used entry; c.mu must be held
func (c *CachedRouteFetcher) evictOldest() {
	var oldest *routeCacheKey
	var oldestTime time.Time
	for key, entry := range c.entries {
		if oldest == nil || entry.lastAccessed.Before(oldestTime) {
			k := key
			oldest = &k
			oldestTime = entry.lastAccessed
		}
	}
	if oldest != nil {
		delete(c.entries, *oldest)
		c.stats.Evictions++
		log.Printf("🗑️  Evicted suggested route %s → %s", oldest.start, oldest.end)
	}
}
