package monitoring

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector exposes ingestion and counting metrics. A nil *Collector is
// valid and records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	RecordsIngested    prometheus.Counter
	TrajectoriesBuilt  prometheus.Counter
	GateCrossings      *prometheus.CounterVec
	AreaHits           prometheus.Counter
	EvaluationDuration *prometheus.HistogramVec
}

// NewCollector registers the metrics against reg, or the default registerer
// when reg is nil. Registering twice on the same registerer reuses the
// existing collectors.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	records, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trajectory_records_ingested_total",
		Help: "Point records read from input sources.",
	}), "trajectory_records_ingested_total")
	if err != nil {
		return nil, err
	}

	built, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trajectory_trajectories_built_total",
		Help: "Trajectories assembled from point records.",
	}), "trajectory_trajectories_built_total")
	if err != nil {
		return nil, err
	}

	crossings, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "trajectory_gate_crossings_total",
		Help: "Gate crossings detected, by gate and direction.",
	}, []string{"gate", "direction"}), "trajectory_gate_crossings_total")
	if err != nil {
		return nil, err
	}

	hits, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "trajectory_area_hits_total",
		Help: "Trajectories found inside an area.",
	}), "trajectory_area_hits_total")
	if err != nil {
		return nil, err
	}

	duration, err := registerHistogramVec(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "trajectory_evaluation_duration_seconds",
		Help:    "Wall time of one gate or area evaluation pass.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
	}, []string{"kind"}), "trajectory_evaluation_duration_seconds")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:           gatherer,
		RecordsIngested:    records,
		TrajectoriesBuilt:  built,
		GateCrossings:      crossings,
		AreaHits:           hits,
		EvaluationDuration: duration,
	}, nil
}

// Gatherer returns the gatherer matching the registerer the collector was
// built with.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

func (c *Collector) AddRecords(n int) {
	if c == nil || c.RecordsIngested == nil {
		return
	}
	c.RecordsIngested.Add(float64(n))
}

func (c *Collector) AddTrajectories(n int) {
	if c == nil || c.TrajectoriesBuilt == nil {
		return
	}
	c.TrajectoriesBuilt.Add(float64(n))
}

// AddCrossings records n crossings of gate in the named direction.
func (c *Collector) AddCrossings(gate, direction string, n int) {
	if c == nil || c.GateCrossings == nil || n == 0 {
		return
	}
	c.GateCrossings.WithLabelValues(gate, direction).Add(float64(n))
}

func (c *Collector) AddAreaHits(n int) {
	if c == nil || c.AreaHits == nil {
		return
	}
	c.AreaHits.Add(float64(n))
}

// ObserveEvaluation records the duration of a "gates" or "areas" pass.
func (c *Collector) ObserveEvaluation(kind string, d time.Duration) {
	if c == nil || c.EvaluationDuration == nil {
		return
	}
	c.EvaluationDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogramVec(reg prometheus.Registerer, vec *prometheus.HistogramVec, name string) (*prometheus.HistogramVec, error) {
	if err := reg.Register(vec); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
