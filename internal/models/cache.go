package models

import "time"

// CacheKey identifies a cached provider response
type CacheKey struct {
	SeriesID SeriesID
	Start    time.Time
	End      time.Time
}

// CacheEntry is an immutable cached fetch result. Entries are replaced on
// refresh, never mutated.
type CacheEntry struct {
	Key       CacheKey
	Series    Series
	FetchedAt time.Time
}

// Fresh reports whether the entry is still usable at now
func (e CacheEntry) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(e.FetchedAt) < ttl
}
