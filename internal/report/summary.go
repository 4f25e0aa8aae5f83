// Package report summarises trajectory speeds and renders count charts.
package report

import (
	"sort"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/trajectory.report/internal/export"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// Speed bucket labels, in km/h.
var SpeedBucketLabels = []string{"0-20", "20-30", "30-40", "40-50", "50+"}

// SpeedSummary describes the average speeds of a set of trajectories in
// the configured unit.
type SpeedSummary struct {
	Unit    string         `json:"unit"`
	Count   int            `json:"count"`
	Static  int            `json:"static"` // single-node trajectories, excluded from the statistics
	Mean    float64        `json:"mean"`
	StdDev  float64        `json:"stddev"`
	Min     float64        `json:"min"`
	Max     float64        `json:"max"`
	P50     float64        `json:"p50"`
	P85     float64        `json:"p85"`
	P98     float64        `json:"p98"`
	Buckets map[string]int `json:"speed_buckets"`

	// From and To span the observed trajectories.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// speedBucket classifies a speed in metres per second.
func speedBucket(mps float64) string {
	kmh := units.ConvertSpeed(mps, units.KMPH)
	switch {
	case kmh < 20:
		return "0-20"
	case kmh < 30:
		return "20-30"
	case kmh < 40:
		return "30-40"
	case kmh < 50:
		return "40-50"
	default:
		return "50+"
	}
}

// Speeds returns the average speeds of records with more than one node,
// converted to unit.
func Speeds(records []export.LineRecord, unit string) []float64 {
	out := make([]float64, 0, len(records))
	for _, r := range records {
		if r.NodeCount < 2 {
			continue
		}
		out = append(out, units.ConvertSpeed(r.AverageSpeed, unit))
	}
	return out
}

// Summarize computes speed statistics over records. Percentiles use the
// empirical quantile of the sorted speeds.
func Summarize(records []export.LineRecord, unit string) SpeedSummary {
	s := SpeedSummary{Unit: unit, Buckets: make(map[string]int, len(SpeedBucketLabels))}
	for _, label := range SpeedBucketLabels {
		s.Buckets[label] = 0
	}
	for _, r := range records {
		if s.From.IsZero() || r.StartTime.Before(s.From) {
			s.From = r.StartTime
		}
		if r.EndTime.After(s.To) {
			s.To = r.EndTime
		}
		if r.NodeCount < 2 {
			s.Static++
			continue
		}
		s.Buckets[speedBucket(r.AverageSpeed)]++
	}

	speeds := Speeds(records, unit)
	s.Count = len(speeds)
	if s.Count == 0 {
		return s
	}
	sort.Float64s(speeds)

	if s.Count == 1 {
		s.Mean = speeds[0]
	} else {
		s.Mean, s.StdDev = stat.MeanStdDev(speeds, nil)
	}
	s.Min = floats.Min(speeds)
	s.Max = floats.Max(speeds)
	s.P50 = stat.Quantile(0.50, stat.Empirical, speeds, nil)
	s.P85 = stat.Quantile(0.85, stat.Empirical, speeds, nil)
	s.P98 = stat.Quantile(0.98, stat.Empirical, speeds, nil)
	return s
}
