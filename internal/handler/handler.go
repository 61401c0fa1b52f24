package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Dan9191/card-rates/internal/models"
	"github.com/Dan9191/card-rates/internal/repository"
	"github.com/Dan9191/card-rates/internal/service"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

var (
	// DefaultStart is the first date shown when the caller gives none
	DefaultStart = time.Date(1990, time.January, 1, 0, 0, 0, 0, time.UTC)
	// EarliestStart is the oldest date that can be requested
	EarliestStart = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)
)

// StatsSource exposes cache counters
type StatsSource interface {
	Stats() repository.CacheStats
}

type Handler struct {
	svc   *service.Service
	cache StatsSource
	log   *logrus.Logger
	now   func() time.Time
}

func NewHandler(svc *service.Service, cache StatsSource, log *logrus.Logger) *Handler {
	return &Handler{svc: svc, cache: cache, log: log, now: time.Now}
}

// Routes registers the API on r
func (h *Handler) Routes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)
	r.HandleFunc("/series/{id}", h.Series).Methods(http.MethodGet)
	r.HandleFunc("/series/{id}/summary", h.Summary).Methods(http.MethodGet)
	r.HandleFunc("/dashboard", h.Dashboard).Methods(http.MethodGet)
	r.HandleFunc("/cache/stats", h.CacheStats).Methods(http.MethodGet)
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type seriesResponse struct {
	models.Series
	Label         string               `json:"label"`
	MovingAverage []models.SeriesPoint `json:"moving_average,omitempty"`
}

// Series returns the points of one series
func (h *Handler) Series(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	series := h.svc.Load(r.Context(), id, q.start, q.end, q.opts, h.now())
	resp := seriesResponse{Series: series, Label: id.Label()}
	if q.sma > 0 {
		resp.MovingAverage = service.RollingAverage(series, q.sma)
	}
	writeJSON(w, http.StatusOK, resp)
}

type summaryResponse struct {
	SeriesID       models.SeriesID     `json:"series_id"`
	Label          string              `json:"label"`
	Source         models.Source       `json:"source"`
	Degraded       bool                `json:"degraded"`
	FallbackReason string              `json:"fallback_reason,omitempty"`
	Summary        models.StatsSummary `json:"summary"`
}

// Summary returns the statistics of one series
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	id, ok := h.seriesID(w, r)
	if !ok {
		return
	}
	q, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	report, err := h.svc.Report(r.Context(), id, q.start, q.end, q.opts, h.now())
	if err != nil {
		h.log.Errorf("Failed to build summary for %s: %v", id, err)
		http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		SeriesID:       id,
		Label:          id.Label(),
		Source:         report.Series.Source,
		Degraded:       report.Series.Degraded,
		FallbackReason: report.Series.FallbackReason,
		Summary:        report.Summary,
	})
}

// Dashboard returns both series with their statistics
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	q, err := h.parseQuery(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	dashboard, err := h.svc.Dashboard(r.Context(), q.start, q.end, q.opts, h.now())
	if err != nil {
		h.log.Errorf("Failed to build dashboard: %v", err)
		http.Error(w, "Failed to compute statistics", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

// CacheStats returns cache counters
func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.cache.Stats())
}

func (h *Handler) seriesID(w http.ResponseWriter, r *http.Request) (models.SeriesID, bool) {
	id, err := models.ParseSeriesID(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return "", false
	}
	return id, true
}

type query struct {
	start time.Time
	end   time.Time
	opts  service.LoadOptions
	sma   int
}

// parseQuery reads start, end, source, refresh and sma. Dates are clamped to
// [EarliestStart, today]; a start after the end is rejected.
func (h *Handler) parseQuery(r *http.Request) (query, error) {
	values := r.URL.Query()
	today := models.Date(h.now())
	q := query{start: DefaultStart, end: today}

	var err error
	if s := values.Get("start"); s != "" {
		if q.start, err = models.ParseDate(s); err != nil {
			return query{}, fmt.Errorf("invalid start date %q, expected YYYY-MM-DD", s)
		}
	}
	if s := values.Get("end"); s != "" {
		if q.end, err = models.ParseDate(s); err != nil {
			return query{}, fmt.Errorf("invalid end date %q, expected YYYY-MM-DD", s)
		}
	}
	if q.start.Before(EarliestStart) {
		q.start = EarliestStart
	}
	if q.end.After(today) {
		q.end = today
	}
	if q.start.After(q.end) {
		return query{}, errors.New("start date must be on or before end date")
	}

	switch source := values.Get("source"); source {
	case "":
		q.opts.PreferLive = h.svc.PreferLiveDefault()
	case string(models.SourceLive):
		q.opts.PreferLive = true
	case string(models.SourceSynthetic):
		q.opts.PreferLive = false
	default:
		return query{}, fmt.Errorf("invalid source %q, expected live or synthetic", source)
	}

	if s := values.Get("refresh"); s != "" {
		if q.opts.Refresh, err = strconv.ParseBool(s); err != nil {
			return query{}, fmt.Errorf("invalid refresh flag %q", s)
		}
	}
	if s := values.Get("sma"); s != "" {
		if q.sma, err = strconv.Atoi(s); err != nil || q.sma < 0 {
			return query{}, fmt.Errorf("invalid sma period %q", s)
		}
	}
	return q, nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
