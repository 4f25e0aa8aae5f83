package counting

import (
	"context"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/timeutil"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/validation"
)

// DefaultIndexThreshold is the node count above which area evaluation
// switches from a linear scan to a quadtree lookup.
const DefaultIndexThreshold = 2048

// Options configures an Evaluator.
type Options struct {
	// Workers bounds per-trajectory parallelism. Zero means GOMAXPROCS.
	Workers int

	// Start and End restrict counted events to [Start, End). A zero value
	// leaves that side open.
	Start time.Time
	End   time.Time

	// Interval is the width of count buckets. Zero disables bucketing.
	Interval time.Duration

	// IndexThreshold overrides DefaultIndexThreshold. Negative forces the
	// linear scan.
	IndexThreshold int

	Metrics *monitoring.Collector

	// Clock times evaluations for Metrics. Nil uses the wall clock.
	Clock timeutil.Clock
}

// Evaluator counts trajectory interactions with gates and areas. It holds
// no per-call state and may be shared.
type Evaluator struct {
	opts    Options
	workers int
}

func New(opts Options) *Evaluator {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if opts.IndexThreshold == 0 {
		opts.IndexThreshold = DefaultIndexThreshold
	}
	opts.Clock = timeutil.OrReal(opts.Clock)
	return &Evaluator{opts: opts, workers: workers}
}

// Options returns the effective options.
func (e *Evaluator) Options() Options { return e.opts }

// inWindow reports whether t falls inside [Start, End).
func (e *Evaluator) inWindow(t time.Time) bool {
	if !e.opts.Start.IsZero() && t.Before(e.opts.Start) {
		return false
	}
	if !e.opts.End.IsZero() && !t.Before(e.opts.End) {
		return false
	}
	return true
}

func checkTrajectories(trajs []*trajectory.Trajectory) error {
	for i, tr := range trajs {
		if tr == nil || tr.Len() == 0 {
			return validation.Newf(validation.ErrInvalidTrajectory, "trajectory at position %d is empty", i)
		}
	}
	return nil
}

// forEach runs fn for every trajectory index with bounded parallelism.
// fn must only write to slots owned by its index.
func (e *Evaluator) forEach(ctx context.Context, n int, fn func(i int)) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := 0; i < n; i++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			fn(i)
			return nil
		})
	}
	return g.Wait()
}
