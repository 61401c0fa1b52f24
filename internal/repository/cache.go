package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Dan9191/card-rates/internal/models"
)

// Fetcher retrieves a series from the upstream provider
type Fetcher interface {
	Fetch(ctx context.Context, id models.SeriesID, start, end time.Time) (models.Series, error)
}

// CacheStats tracks cache usage
type CacheStats struct {
	Hits      int64 `json:"hits"`
	Misses    int64 `json:"misses"`
	Refreshes int64 `json:"refreshes"`
	Failures  int64 `json:"failures"`
	Entries   int   `json:"entries"`
}

// SeriesCache keeps fetched series in process memory for a fixed TTL.
// Staleness is evaluated at read time; stale entries are never served.
type SeriesCache struct {
	fetcher Fetcher
	ttl     time.Duration

	mu      sync.RWMutex
	entries map[models.CacheKey]models.CacheEntry

	hits      int64
	misses    int64
	refreshes int64
	failures  int64
}

// NewSeriesCache initializes a cache in front of fetcher
func NewSeriesCache(fetcher Fetcher, ttl time.Duration) *SeriesCache {
	return &SeriesCache{
		fetcher: fetcher,
		ttl:     ttl,
		entries: make(map[models.CacheKey]models.CacheEntry),
	}
}

// TTL returns how long an entry stays fresh
func (c *SeriesCache) TTL() time.Duration {
	return c.ttl
}

// GetOrFetch returns the cached series for the key if it is fresh at now,
// otherwise fetches it. Fetch failures are returned as is, even when a
// stale entry exists.
func (c *SeriesCache) GetOrFetch(ctx context.Context, id models.SeriesID, start, end, now time.Time) (models.Series, error) {
	key := newKey(id, start, end)

	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if ok && entry.Fresh(now, c.ttl) {
		atomic.AddInt64(&c.hits, 1)
		return entry.Series.WithSource(models.SourceCached), nil
	}

	atomic.AddInt64(&c.misses, 1)
	return c.fetch(ctx, key, now)
}

// Refresh re-fetches the key regardless of freshness and replaces the entry
// on success. On failure the existing entry is left untouched.
func (c *SeriesCache) Refresh(ctx context.Context, id models.SeriesID, start, end, now time.Time) (models.Series, error) {
	atomic.AddInt64(&c.refreshes, 1)
	return c.fetch(ctx, newKey(id, start, end), now)
}

// Lookup returns the entry stored for the key, fresh or not
func (c *SeriesCache) Lookup(id models.SeriesID, start, end time.Time) (models.CacheEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[newKey(id, start, end)]
	return entry, ok
}

// Stats returns a snapshot of the cache counters
func (c *SeriesCache) Stats() CacheStats {
	c.mu.RLock()
	entries := len(c.entries)
	c.mu.RUnlock()

	return CacheStats{
		Hits:      atomic.LoadInt64(&c.hits),
		Misses:    atomic.LoadInt64(&c.misses),
		Refreshes: atomic.LoadInt64(&c.refreshes),
		Failures:  atomic.LoadInt64(&c.failures),
		Entries:   entries,
	}
}

func (c *SeriesCache) fetch(ctx context.Context, key models.CacheKey, now time.Time) (models.Series, error) {
	series, err := c.fetcher.Fetch(ctx, key.SeriesID, key.Start, key.End)
	if err != nil {
		atomic.AddInt64(&c.failures, 1)
		return models.Series{}, err
	}

	// concurrent refreshes of one key may both land here; last writer wins
	entry := models.CacheEntry{
		Key:       key,
		Series:    series.WithSource(models.SourceCached),
		FetchedAt: now,
	}
	c.mu.Lock()
	c.entries[key] = entry
	c.mu.Unlock()

	return series, nil
}

func newKey(id models.SeriesID, start, end time.Time) models.CacheKey {
	return models.CacheKey{SeriesID: id, Start: models.Date(start), End: models.Date(end)}
}
