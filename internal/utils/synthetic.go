package utils

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"time"

	"github.com/Dan9191/card-rates/internal/models"
	"github.com/shopspring/decimal"
)

// DefaultSeed keeps synthetic output reproducible across runs
const DefaultSeed int64 = 42

// Profile describes the historical magnitude of a series
type Profile struct {
	Baseline     float64 // level before 2007
	Peak         float64 // level held through 2009 and mid 2010
	PostCrisis   float64 // level reached at the start of 2012
	Floor        float64 // long-run level the series decays toward
	Noise        float64 // max absolute deviation added to each point
	PandemicBump float64 // extra level during 2020
}

// DefaultProfiles approximate the published FRED series
var DefaultProfiles = map[models.SeriesID]Profile{
	models.Delinquency: {Baseline: 4.5, Peak: 6.8, PostCrisis: 3.6, Floor: 2.4, Noise: 0.15, PandemicBump: 0.5},
	models.ChargeOff:   {Baseline: 5.2, Peak: 10.5, PostCrisis: 5.5, Floor: 3.4, Noise: 0.25, PandemicBump: 0.8},
}

// SeriesGenerator produces monthly simulated series. Output is a pure
// function of seed, series id and date, so overlapping ranges agree.
type SeriesGenerator struct {
	seed     int64
	profiles map[models.SeriesID]Profile
}

// NewSeriesGenerator creates a generator with the default seed and profiles
func NewSeriesGenerator() *SeriesGenerator {
	return &SeriesGenerator{seed: DefaultSeed, profiles: DefaultProfiles}
}

// NewSeriesGeneratorWithSeed creates a generator with a custom seed
func NewSeriesGeneratorWithSeed(seed int64) *SeriesGenerator {
	return &SeriesGenerator{seed: seed, profiles: DefaultProfiles}
}

// Generate returns a synthetic series with a point on the first day of every
// month in [start, end]. A range containing no month start yields a single
// point at start. It never fails; unknown ids use the delinquency profile.
func (g *SeriesGenerator) Generate(id models.SeriesID, start, end time.Time) models.Series {
	start, end = models.Date(start), models.Date(end)
	if end.Before(start) {
		start, end = end, start
	}

	profile, ok := g.profiles[id]
	if !ok {
		profile = g.profiles[models.Delinquency]
	}

	var points []models.SeriesPoint
	for d := firstMonthStart(start); !d.After(end); d = d.AddDate(0, 1, 0) {
		points = append(points, models.SeriesPoint{Date: d, Value: g.value(id, profile, d)})
	}
	if len(points) == 0 {
		points = append(points, models.SeriesPoint{Date: start, Value: g.value(id, profile, start)})
	}

	return models.Series{ID: id, Points: points, Source: models.SourceSynthetic}
}

func (g *SeriesGenerator) value(id models.SeriesID, p Profile, d time.Time) decimal.Decimal {
	v := p.level(yearFraction(d)) + p.Noise*g.noise(id, d)
	if d.Year() == 2020 {
		v += p.PandemicBump
	}
	v = math.Min(math.Max(v, 0), 100)
	return decimal.NewFromFloat(v).Round(2)
}

// level is the noiseless shape: flat baseline, ramp into the 2008-2010
// crisis, plateau, decline, then exponential decay toward the floor
func (p Profile) level(y float64) float64 {
	switch {
	case y < 2007:
		return p.Baseline
	case y < 2009:
		return p.Baseline + (p.Peak-p.Baseline)*(y-2007)/2
	case y < 2010.5:
		return p.Peak
	case y < 2012:
		return p.Peak + (p.PostCrisis-p.Peak)*(y-2010.5)/1.5
	default:
		return p.Floor + (p.PostCrisis-p.Floor)*math.Exp(-(y-2012)/3)
	}
}

// noise returns a deterministic value in [-1, 1] for the series and date
func (g *SeriesGenerator) noise(id models.SeriesID, d time.Time) float64 {
	h := fnv.New64a()
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(g.seed))
	h.Write(buf[:])
	h.Write([]byte(id))
	binary.LittleEndian.PutUint64(buf[:], uint64(d.Unix()))
	h.Write(buf[:])
	return float64(h.Sum64()>>11)/float64(1<<53)*2 - 1
}

func yearFraction(d time.Time) float64 {
	return float64(d.Year()) + float64(d.YearDay()-1)/365
}

func firstMonthStart(t time.Time) time.Time {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	if first.Before(t) {
		return first.AddDate(0, 1, 0)
	}
	return first
}
