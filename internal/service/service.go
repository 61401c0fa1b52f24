package service

import (
	"context"
	"fmt"
	"time"

	"github.com/Dan9191/card-rates/internal/config"
	"github.com/Dan9191/card-rates/internal/integrations/fred"
	"github.com/Dan9191/card-rates/internal/models"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fallback reasons reported on degraded series
const (
	ReasonConfig  = "config"
	ReasonUnknown = "unknown"
)

// Notices shown to the user whenever a dashboard contains simulated data
const (
	DegradedNotice  = "Live FRED data is unavailable; showing simulated data for demonstration."
	SimulatedNotice = "Showing simulated data (demo mode)."
)

// SeriesStore is the cached access path to live data
type SeriesStore interface {
	GetOrFetch(ctx context.Context, id models.SeriesID, start, end, now time.Time) (models.Series, error)
	Refresh(ctx context.Context, id models.SeriesID, start, end, now time.Time) (models.Series, error)
}

// Generator produces simulated series
type Generator interface {
	Generate(id models.SeriesID, start, end time.Time) models.Series
}

// Service selects the data source for each request and summarizes the result
type Service struct {
	store     SeriesStore
	generator Generator
	log       *logrus.Logger
	config    *config.Config
}

// NewService initializes a new service
func NewService(store SeriesStore, generator Generator, log *logrus.Logger, cfg *config.Config) *Service {
	return &Service{store: store, generator: generator, log: log, config: cfg}
}

// LoadOptions tune a single load
type LoadOptions struct {
	PreferLive bool
	Refresh    bool // bypass the cache freshness check
}

// PreferLiveDefault reports whether live data should be requested when the
// caller does not say
func (s *Service) PreferLiveDefault() bool {
	return s.config.LiveConfigured()
}

// Load returns the series for the range, live when possible and simulated
// otherwise. It never fails: every provider error is absorbed into a
// degraded synthetic result.
func (s *Service) Load(ctx context.Context, id models.SeriesID, start, end time.Time, opts LoadOptions, now time.Time) models.Series {
	start, end = models.Date(start), models.Date(end)
	if start.After(end) {
		s.log.Warnf("Start %s after end %s for %s, swapping", start.Format(models.DateLayout), end.Format(models.DateLayout), id)
		start, end = end, start
	}

	if !opts.PreferLive {
		return s.generator.Generate(id, start, end)
	}

	if err := s.config.CheckCredential(); err != nil {
		return s.fallback(id, start, end, ReasonConfig, err)
	}

	var (
		series models.Series
		err    error
	)
	if opts.Refresh {
		series, err = s.store.Refresh(ctx, id, start, end, now)
	} else {
		series, err = s.store.GetOrFetch(ctx, id, start, end, now)
	}
	if err != nil {
		reason := string(fred.KindOf(err))
		if reason == "" {
			reason = ReasonUnknown
		}
		return s.fallback(id, start, end, reason, err)
	}
	if err := series.Validate(); err != nil {
		return s.fallback(id, start, end, string(fred.KindParse), err)
	}
	return series
}

func (s *Service) fallback(id models.SeriesID, start, end time.Time, reason string, cause error) models.Series {
	s.log.WithFields(logrus.Fields{
		"series": id,
		"reason": reason,
	}).Warnf("Falling back to simulated data: %v", cause)

	series := s.generator.Generate(id, start, end)
	series.Degraded = true
	series.FallbackReason = reason
	return series
}

// Report loads a series and computes its summary
func (s *Service) Report(ctx context.Context, id models.SeriesID, start, end time.Time, opts LoadOptions, now time.Time) (*models.SeriesReport, error) {
	series := s.Load(ctx, id, start, end, opts, now)
	summary, err := Summarize(series)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize %s: %w", id, err)
	}
	return &models.SeriesReport{Series: series, Summary: summary}, nil
}

// Dashboard loads and summarizes every supported series concurrently
func (s *Service) Dashboard(ctx context.Context, start, end time.Time, opts LoadOptions, now time.Time) (*models.Dashboard, error) {
	reports := make([]models.SeriesReport, len(models.AllSeries))

	g, ctx := errgroup.WithContext(ctx)
	for i, id := range models.AllSeries {
		i, id := i, id
		g.Go(func() error {
			report, err := s.Report(ctx, id, start, end, opts, now)
			if err != nil {
				return err
			}
			reports[i] = *report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	start, end = models.Date(start), models.Date(end)
	if start.After(end) {
		start, end = end, start
	}
	dashboard := &models.Dashboard{Start: start, End: end, Reports: reports}
	for _, r := range reports {
		dashboard.Degraded = dashboard.Degraded || r.Series.Degraded
		dashboard.Simulated = dashboard.Simulated || r.Series.Source == models.SourceSynthetic
	}
	switch {
	case dashboard.Degraded:
		dashboard.Notice = DegradedNotice
	case dashboard.Simulated:
		dashboard.Notice = SimulatedNotice
	}
	return dashboard, nil
}
