package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Dan9191/card-rates/internal/config"
	"github.com/Dan9191/card-rates/internal/integrations/fred"
	"github.com/Dan9191/card-rates/internal/models"
	"github.com/Dan9191/card-rates/internal/repository"
	"github.com/Dan9191/card-rates/internal/service"
	"github.com/Dan9191/card-rates/internal/utils"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, time.June, 15, 10, 0, 0, 0, time.UTC)

type monthlyFetcher struct {
	err error
}

func (f monthlyFetcher) Fetch(ctx context.Context, id models.SeriesID, start, end time.Time) (models.Series, error) {
	if f.err != nil {
		return models.Series{}, f.err
	}
	var points []models.SeriesPoint
	for d := start; !d.After(end); d = d.AddDate(0, 3, 0) {
		points = append(points, models.SeriesPoint{Date: d, Value: decimal.NewFromFloat(3.1)})
	}
	return models.Series{ID: id, Source: models.SourceLive, Points: points}, nil
}

func newRouter(t *testing.T, fetcher repository.Fetcher, apiKey string) *mux.Router {
	t.Helper()
	logger, _ := test.NewNullLogger()
	cfg := &config.Config{FREDAPIKey: apiKey, CacheTTL: time.Hour}
	cache := repository.NewSeriesCache(fetcher, cfg.CacheTTL)
	svc := service.NewService(cache, utils.NewSeriesGenerator(), logger, cfg)

	h := NewHandler(svc, cache, logger)
	h.now = func() time.Time { return fixedNow }
	r := mux.NewRouter()
	h.Routes(r)
	return r
}

func get(t *testing.T, r http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestHealth(t *testing.T) {
	rec := get(t, newRouter(t, monthlyFetcher{}, ""), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSeriesEndpoint(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "key")

	rec := get(t, r, "/series/DRCCLACBS?start=2020-01-01&end=2022-12-31&sma=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		ID            models.SeriesID      `json:"id"`
		Label         string               `json:"label"`
		Source        models.Source        `json:"source"`
		Degraded      bool                 `json:"degraded"`
		Points        []models.SeriesPoint `json:"points"`
		MovingAverage []models.SeriesPoint `json:"moving_average"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.Delinquency, body.ID)
	assert.Equal(t, models.SourceLive, body.Source)
	assert.False(t, body.Degraded)
	assert.Len(t, body.Points, 12)
	assert.Len(t, body.MovingAverage, 11)
	assert.NotEmpty(t, body.Label)
}

func TestSeriesEndpointFallback(t *testing.T) {
	r := newRouter(t, monthlyFetcher{err: &fred.ProviderError{Kind: fred.KindAuth}}, "bad-key")

	rec := get(t, r, "/series/charge-off?start=2019-01-01&end=2019-12-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Series
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.SourceSynthetic, body.Source)
	assert.True(t, body.Degraded)
	assert.Equal(t, "auth", body.FallbackReason)
	assert.Len(t, body.Points, 12)
}

func TestSummaryEndpoint(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "")

	rec := get(t, r, "/series/delinquency/summary?start=2006-01-01&end=2012-12-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body summaryResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, models.Delinquency, body.SeriesID)
	assert.Equal(t, models.SourceSynthetic, body.Source, "no credential defaults to synthetic")
	assert.False(t, body.Degraded)
	assert.Equal(t, 84, body.Summary.Points)
	assert.True(t, body.Summary.PeakDate.Year() >= 2008 && body.Summary.PeakDate.Year() <= 2010)
}

func TestDashboardEndpoint(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "")

	rec := get(t, r, "/dashboard?source=live&start=2015-01-01&end=2016-12-31")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Degraded)
	assert.Equal(t, service.DegradedNotice, body.Notice)
	require.Len(t, body.Reports, 2)
	for _, report := range body.Reports {
		assert.Equal(t, "config", report.Series.FallbackReason)
	}
}

func TestBadRequests(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "key")

	tests := []struct {
		name   string
		url    string
		status int
	}{
		{name: "unknown series", url: "/series/GDP", status: http.StatusNotFound},
		{name: "bad start", url: "/series/delinquency?start=01-01-2020", status: http.StatusBadRequest},
		{name: "bad end", url: "/dashboard?end=yesterday", status: http.StatusBadRequest},
		{name: "start after end", url: "/dashboard?start=2021-01-01&end=2020-01-01", status: http.StatusBadRequest},
		{name: "bad source", url: "/series/delinquency?source=cached", status: http.StatusBadRequest},
		{name: "bad refresh", url: "/series/delinquency?refresh=soon", status: http.StatusBadRequest},
		{name: "bad sma", url: "/series/delinquency?sma=-3", status: http.StatusBadRequest},
		{name: "wrong method", url: "", status: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.url == "" {
				rec := httptest.NewRecorder()
				r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/dashboard", nil))
				assert.Equal(t, tt.status, rec.Code)
				return
			}
			assert.Equal(t, tt.status, get(t, r, tt.url).Code)
		})
	}
}

func TestDatesAreClamped(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "")

	rec := get(t, r, "/dashboard?start=1970-01-01&end=2030-01-01")
	require.Equal(t, http.StatusOK, rec.Code)

	var body models.Dashboard
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, EarliestStart.Equal(body.Start), body.Start.String())
	assert.True(t, models.Date(fixedNow).Equal(body.End), body.End.String())
}

func TestCacheStatsEndpoint(t *testing.T) {
	r := newRouter(t, monthlyFetcher{}, "key")
	get(t, r, "/series/delinquency?start=2020-01-01&end=2020-12-31")
	get(t, r, "/series/delinquency?start=2020-01-01&end=2020-12-31")

	rec := get(t, r, "/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats repository.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, 1, stats.Entries)
}
