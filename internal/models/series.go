package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SeriesID identifies one of the supported FRED series
type SeriesID string

const (
	Delinquency SeriesID = "delinquency"
	ChargeOff   SeriesID = "charge-off"
)

// AllSeries lists the supported series in display order
var AllSeries = []SeriesID{Delinquency, ChargeOff}

var fredIDs = map[SeriesID]string{
	Delinquency: "DRCCLACBS",
	ChargeOff:   "CORCCACBS",
}

var labels = map[SeriesID]string{
	Delinquency: "Delinquency rate (%)",
	ChargeOff:   "Charge-off rate (%)",
}

// ParseSeriesID accepts a short name or a FRED id, case-insensitive
func ParseSeriesID(s string) (SeriesID, error) {
	s = strings.TrimSpace(s)
	for _, id := range AllSeries {
		if strings.EqualFold(s, string(id)) || strings.EqualFold(s, fredIDs[id]) {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown series: %q", s)
}

// Valid reports whether the id is one of the supported series
func (id SeriesID) Valid() bool {
	_, ok := fredIDs[id]
	return ok
}

// FREDID returns the provider identifier of the series
func (id SeriesID) FREDID() string {
	return fredIDs[id]
}

// Label returns the human readable name of the series
func (id SeriesID) Label() string {
	return labels[id]
}

// Source tells where the points of a series came from
type Source string

const (
	SourceLive      Source = "live"
	SourceCached    Source = "cached"
	SourceSynthetic Source = "synthetic"
)

// SeriesPoint is a single observation
type SeriesPoint struct {
	Date  time.Time       `json:"date"`
	Value decimal.Decimal `json:"value"`
}

// Series is an ordered set of observations with its provenance
type Series struct {
	ID             SeriesID      `json:"id"`
	Points         []SeriesPoint `json:"points"`
	Source         Source        `json:"source"`
	Degraded       bool          `json:"degraded"`
	FallbackReason string        `json:"fallback_reason,omitempty"`
}

var (
	minValue = decimal.Zero
	maxValue = decimal.NewFromInt(100)
)

// ValidValue reports whether v is a percentage in [0, 100]
func ValidValue(v decimal.Decimal) bool {
	return !v.LessThan(minValue) && !v.GreaterThan(maxValue)
}

// Validate checks that the series is non-empty, strictly ordered by date
// and holds only percentage values
func (s Series) Validate() error {
	if len(s.Points) == 0 {
		return fmt.Errorf("series %s has no points", s.ID)
	}
	for i, p := range s.Points {
		if !ValidValue(p.Value) {
			return fmt.Errorf("series %s: value %s at %s out of range", s.ID, p.Value, p.Date.Format(DateLayout))
		}
		if i > 0 && !p.Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("series %s: date %s not after %s", s.ID, p.Date.Format(DateLayout), s.Points[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// WithSource returns a copy of the series tagged with src. Points are copied
// so the result can be handed out without sharing the backing array.
func (s Series) WithSource(src Source) Series {
	points := make([]SeriesPoint, len(s.Points))
	copy(points, s.Points)
	s.Points = points
	s.Source = src
	return s
}

// Last returns the most recent point
func (s Series) Last() (SeriesPoint, bool) {
	if len(s.Points) == 0 {
		return SeriesPoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}
