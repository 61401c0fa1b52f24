package service

import (
	"errors"

	"github.com/Dan9191/card-rates/internal/models"
	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
)

const (
	// TrendWindow is the number of trailing periods used for trend and
	// rolling averages
	TrendWindow = 12
	statScale   = 4
)

// TrendEpsilon keeps tiny moves from flipping the trend label
var TrendEpsilon = decimal.NewFromFloat(0.01)

// ErrEmptySeries is returned when summarizing a series without points
var ErrEmptySeries = errors.New("series has no points")

// Summarize computes descriptive statistics for a series
func Summarize(series models.Series) (models.StatsSummary, error) {
	points := series.Points
	n := len(points)
	if n == 0 {
		return models.StatsSummary{}, ErrEmptySeries
	}

	last := points[n-1]
	minV, maxV := points[0].Value, points[0].Value
	peakDate := points[0].Date
	for _, p := range points[1:] {
		if p.Value.LessThan(minV) {
			minV = p.Value
		}
		if p.Value.GreaterThan(maxV) {
			maxV = p.Value
			peakDate = p.Date
		}
	}

	window := points[n-min(TrendWindow, n):]
	magnitude := window[len(window)-1].Value.Sub(window[0].Value)

	// when fewer than two full windows exist, compare against the opening
	// periods instead
	previous := points[:min(TrendWindow, n)]
	if n >= 2*TrendWindow {
		previous = points[n-2*TrendWindow : n-TrendWindow]
	}
	recentMean := mean(window)
	previousMean := mean(previous)

	peakComparison := decimal.Zero
	if !maxV.IsZero() {
		peakComparison = last.Value.Div(maxV).Round(statScale)
	}

	return models.StatsSummary{
		Current:        last.Value,
		CurrentDate:    last.Date,
		Mean:           mean(points),
		Min:            minV,
		Max:            maxV,
		PeakDate:       peakDate,
		PeakComparison: peakComparison,
		TrendDirection: direction(magnitude),
		TrendMagnitude: magnitude,
		RecentMean:     recentMean,
		PreviousMean:   previousMean,
		MeanChange:     recentMean.Sub(previousMean),
		Points:         n,
	}, nil
}

func direction(magnitude decimal.Decimal) models.TrendDirection {
	switch {
	case magnitude.GreaterThan(TrendEpsilon):
		return models.TrendRising
	case magnitude.LessThan(TrendEpsilon.Neg()):
		return models.TrendFalling
	default:
		return models.TrendFlat
	}
}

func mean(points []models.SeriesPoint) decimal.Decimal {
	sum := decimal.Zero
	for _, p := range points {
		sum = sum.Add(p.Value)
	}
	return sum.Div(decimal.NewFromInt(int64(len(points)))).Round(statScale)
}

// RollingAverage returns the simple moving average of the series over period
// points. Each average is dated at the last point of its window. The result
// is empty when period is not in [1, len(points)].
func RollingAverage(series models.Series, period int) []models.SeriesPoint {
	n := len(series.Points)
	if period <= 0 || period > n {
		return []models.SeriesPoint{}
	}

	values := make([]float64, n)
	for i, p := range series.Points {
		values[i] = p.Value.InexactFloat64()
	}

	sma := trend.NewSmaWithPeriod[float64](period)
	averages := helper.ChanToSlice(sma.Compute(helper.SliceToChan(values)))

	offset := n - len(averages)
	result := make([]models.SeriesPoint, len(averages))
	for i, avg := range averages {
		result[i] = models.SeriesPoint{
			Date:  series.Points[offset+i].Date,
			Value: decimal.NewFromFloat(avg).Round(statScale),
		}
	}
	return result
}
