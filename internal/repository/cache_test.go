package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Dan9191/card-rates/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	calls int32
	err   error
}

func (f *fakeFetcher) Fetch(ctx context.Context, id models.SeriesID, start, end time.Time) (models.Series, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.err != nil {
		return models.Series{}, f.err
	}
	return models.Series{
		ID:     id,
		Source: models.SourceLive,
		Points: []models.SeriesPoint{{Date: start, Value: decimal.NewFromFloat(3.25)}},
	}, nil
}

func (f *fakeFetcher) count() int32 {
	return atomic.LoadInt32(&f.calls)
}

var (
	start = time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC)
	end   = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	now   = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
)

func TestGetOrFetchWithinTTL(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, 6*time.Hour)

	first, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLive, first.Source)

	second, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now.Add(5*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, models.SourceCached, second.Source)
	assert.Equal(t, int32(1), f.count())

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}

func TestGetOrFetchAfterTTL(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, 6*time.Hour)

	_, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)

	later := now.Add(6 * time.Hour)
	series, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, later)
	require.NoError(t, err)
	assert.Equal(t, models.SourceLive, series.Source)
	assert.Equal(t, int32(2), f.count())

	entry, ok := c.Lookup(models.Delinquency, start, end)
	require.True(t, ok)
	assert.Equal(t, later, entry.FetchedAt)
}

func TestGetOrFetchKeyedByRange(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, time.Hour)

	_, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)
	_, err = c.GetOrFetch(context.Background(), models.Delinquency, start, end.AddDate(0, 0, 1), now)
	require.NoError(t, err)
	_, err = c.GetOrFetch(context.Background(), models.ChargeOff, start, end, now)
	require.NoError(t, err)

	assert.Equal(t, int32(3), f.count())
	assert.Equal(t, 3, c.Stats().Entries)
}

func TestGetOrFetchDoesNotServeStaleOnFailure(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, time.Hour)

	_, err := c.GetOrFetch(context.Background(), models.ChargeOff, start, end, now)
	require.NoError(t, err)

	f.err = errors.New("provider down")
	_, err = c.GetOrFetch(context.Background(), models.ChargeOff, start, end, now.Add(2*time.Hour))
	assert.EqualError(t, err, "provider down")

	entry, ok := c.Lookup(models.ChargeOff, start, end)
	require.True(t, ok, "failed refresh keeps the old entry")
	assert.Equal(t, now, entry.FetchedAt)
	assert.Equal(t, int64(1), c.Stats().Failures)
}

func TestRefreshReplacesEntry(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, time.Hour)

	_, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)

	refreshedAt := now.Add(time.Minute)
	_, err = c.Refresh(context.Background(), models.Delinquency, start, end, refreshedAt)
	require.NoError(t, err)
	assert.Equal(t, int32(2), f.count())

	entry, ok := c.Lookup(models.Delinquency, start, end)
	require.True(t, ok)
	assert.Equal(t, refreshedAt, entry.FetchedAt)
	assert.Equal(t, models.SourceCached, entry.Series.Source)
}

func TestCachedResultIsACopy(t *testing.T) {
	c := NewSeriesCache(&fakeFetcher{}, time.Hour)
	_, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)

	hit, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)
	hit.Points[0].Value = decimal.NewFromInt(99)

	again, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
	require.NoError(t, err)
	assert.True(t, again.Points[0].Value.Equal(decimal.NewFromFloat(3.25)))
}

func TestConcurrentAccess(t *testing.T) {
	f := &fakeFetcher{}
	c := NewSeriesCache(f, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrFetch(context.Background(), models.Delinquency, start, end, now)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, f.count(), int32(1))
	assert.Equal(t, 1, c.Stats().Entries)
}
