package counting

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Crossing is one gate crossing event.
type Crossing struct {
	FID          int
	TrajectoryID any
	Gate         string
	Direction    feature.Direction
	Time         time.Time
	Point        orb.Point
	AverageSpeed float64
}

// GateBucket holds the crossings of one gate within one interval.
type GateBucket struct {
	Start    time.Time
	Positive int
	Negative int
	Total    int
}

// GateCount aggregates every crossing of one gate.
type GateCount struct {
	Gate           string
	CountsPositive bool
	CountsNegative bool

	Positive int
	Negative int
	// Total sums only the directions the gate counts.
	Total int

	Buckets   []GateBucket
	Crossings []Crossing
}

// GateResult lists gate counts in the caller's gate order.
type GateResult struct {
	Trajectories int
	Gates        []GateCount
}

// Gate returns the count for the named gate.
func (r *GateResult) Gate(name string) (*GateCount, bool) {
	for i := range r.Gates {
		if r.Gates[i].Gate == name {
			return &r.Gates[i], true
		}
	}
	return nil, false
}

// CountGates tests every trajectory against every gate. All gates are
// validated before any trajectory is evaluated. Crossings appear in
// trajectory input order, then path order.
func (e *Evaluator) CountGates(ctx context.Context, trajs []*trajectory.Trajectory, gates []*feature.Gate) (*GateResult, error) {
	for i, g := range gates {
		if err := feature.ValidateGate(g); err != nil {
			return nil, fmt.Errorf("gate %d: %w", i, err)
		}
	}
	if err := feature.UniqueNames("gate", gates); err != nil {
		return nil, err
	}
	if err := checkTrajectories(trajs); err != nil {
		return nil, err
	}
	began := e.opts.Clock.Now()

	gateBounds := make([]orb.Bound, len(gates))
	for i, g := range gates {
		gateBounds[i] = g.Bound()
	}

	// slots[t][g] is written only by the worker owning trajectory t
	slots := make([][][]trajectory.Crossing, len(trajs))
	err := e.forEach(ctx, len(trajs), func(t int) {
		tr := trajs[t]
		bound := tr.Bound()
		row := make([][]trajectory.Crossing, len(gates))
		for gi, g := range gates {
			if !bound.Intersects(gateBounds[gi]) {
				continue
			}
			row[gi] = tr.Crossings(g)
		}
		slots[t] = row
	})
	if err != nil {
		opsf("gate evaluation aborted: %v", err)
		return nil, err
	}

	res := &GateResult{Trajectories: len(trajs), Gates: make([]GateCount, len(gates))}
	for gi, g := range gates {
		gc := GateCount{
			Gate:           g.Name(),
			CountsPositive: g.CountsPositive(),
			CountsNegative: g.CountsNegative(),
		}
		for t, tr := range trajs {
			hits := slots[t][gi]
			if len(hits) == 0 {
				continue
			}
			speed := tr.AverageSpeed()
			for _, h := range hits {
				at := h.Time()
				if !e.inWindow(at) {
					continue
				}
				gc.Crossings = append(gc.Crossings, Crossing{
					FID:          h.FID,
					TrajectoryID: tr.ID(),
					Gate:         h.Gate,
					Direction:    h.Direction,
					Time:         at,
					Point:        h.Point,
					AverageSpeed: speed,
				})
				switch h.Direction {
				case feature.DirectionPositive:
					gc.Positive++
				case feature.DirectionNegative:
					gc.Negative++
				}
				if g.Counts(h.Direction) {
					gc.Total++
				}
			}
		}
		if gc.Buckets, err = e.gateBuckets(g, gc.Crossings); err != nil {
			return nil, err
		}
		e.opts.Metrics.AddCrossings(gc.Gate, feature.DirectionPositive.String(), gc.Positive)
		e.opts.Metrics.AddCrossings(gc.Gate, feature.DirectionNegative.String(), gc.Negative)
		diagf("gate %q: %d positive, %d negative, total %d", gc.Gate, gc.Positive, gc.Negative, gc.Total)
		res.Gates[gi] = gc
	}

	e.opts.Metrics.ObserveEvaluation("gates", e.opts.Clock.Since(began))
	return res, nil
}

func (e *Evaluator) gateBuckets(g *feature.Gate, crossings []Crossing) ([]GateBucket, error) {
	times := make([]time.Time, len(crossings))
	for i, c := range crossings {
		times[i] = c.Time
	}
	b, ok, err := newBinner(e.opts.Start, e.opts.End, e.opts.Interval, times)
	if !ok || err != nil {
		return nil, err
	}
	buckets := make([]GateBucket, b.n)
	for i := range buckets {
		buckets[i].Start = b.start(i)
	}
	for _, c := range crossings {
		bk := &buckets[b.index(c.Time)]
		switch c.Direction {
		case feature.DirectionPositive:
			bk.Positive++
		case feature.DirectionNegative:
			bk.Negative++
		}
		if g.Counts(c.Direction) {
			bk.Total++
		}
	}
	return buckets, nil
}
