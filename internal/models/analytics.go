package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// TrendDirection labels the movement over the trend window
type TrendDirection string

const (
	TrendRising  TrendDirection = "rising"
	TrendFalling TrendDirection = "falling"
	TrendFlat    TrendDirection = "flat"
)

// StatsSummary holds descriptive statistics for a series
type StatsSummary struct {
	Current        decimal.Decimal `json:"current"`
	CurrentDate    time.Time       `json:"current_date"`
	Mean           decimal.Decimal `json:"mean"`
	Min            decimal.Decimal `json:"min"`
	Max            decimal.Decimal `json:"max"`
	PeakDate       time.Time       `json:"peak_date"`
	PeakComparison decimal.Decimal `json:"peak_comparison"` // Current / Max
	TrendDirection TrendDirection  `json:"trend_direction"`
	TrendMagnitude decimal.Decimal `json:"trend_magnitude"`
	RecentMean     decimal.Decimal `json:"recent_mean"`
	PreviousMean   decimal.Decimal `json:"previous_mean"`
	MeanChange     decimal.Decimal `json:"mean_change"`
	Points         int             `json:"points"`
}

// SeriesReport pairs a series with its summary for the dashboard
type SeriesReport struct {
	Series  Series       `json:"series"`
	Summary StatsSummary `json:"summary"`
}

// Dashboard is the payload for both series over one date range
type Dashboard struct {
	Start     time.Time      `json:"start"`
	End       time.Time      `json:"end"`
	Reports   []SeriesReport `json:"reports"`
	Degraded  bool           `json:"degraded"`
	Simulated bool           `json:"simulated"`
	Notice    string         `json:"notice,omitempty"`
}
