package counting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/quadtree"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// AreaBucket holds the trajectories first seen inside an area within one
// interval.
type AreaBucket struct {
	Start time.Time
	Count int
}

// AreaCount aggregates the trajectories that visited one area. A trajectory
// is counted when any of its nodes inside the window lies inside the area
// or on its boundary.
type AreaCount struct {
	Area  string
	Count int
	// Entries and Exits sum outside/inside transitions over the counted
	// trajectories, limited to transitions arriving at a node inside the
	// window.
	Entries int
	Exits   int
	FIDs    []int
	Buckets []AreaBucket
}

// AreaResult lists area counts in the caller's area order.
type AreaResult struct {
	Trajectories int
	Indexed      bool
	Areas        []AreaCount
}

// Area returns the count for the named area.
func (r *AreaResult) Area(name string) (*AreaCount, bool) {
	for i := range r.Areas {
		if r.Areas[i].Area == name {
			return &r.Areas[i], true
		}
	}
	return nil, false
}

// areaHit is one trajectory's interaction with one area.
type areaHit struct {
	inside  bool
	first   time.Time
	entries int
	exits   int
}

// CountAreas tests every trajectory against every area.
func (e *Evaluator) CountAreas(ctx context.Context, trajs []*trajectory.Trajectory, areas []*feature.Area) (*AreaResult, error) {
	for i, a := range areas {
		if err := feature.ValidateArea(a); err != nil {
			return nil, fmt.Errorf("area %d: %w", i, err)
		}
	}
	if err := feature.UniqueNames("area", areas); err != nil {
		return nil, err
	}
	if err := checkTrajectories(trajs); err != nil {
		return nil, err
	}
	began := e.opts.Clock.Now()

	nodes := 0
	for _, tr := range trajs {
		nodes += tr.Len()
	}
	indexed := e.opts.IndexThreshold >= 0 && nodes > e.opts.IndexThreshold

	var (
		hits [][]areaHit
		err  error
	)
	if indexed {
		hits, err = e.scanIndexed(ctx, trajs, areas)
	} else {
		hits, err = e.scanLinear(ctx, trajs, areas)
	}
	if err != nil {
		opsf("area evaluation aborted: %v", err)
		return nil, err
	}

	res := &AreaResult{Trajectories: len(trajs), Indexed: indexed, Areas: make([]AreaCount, len(areas))}
	for ai, a := range areas {
		ac := AreaCount{Area: a.Name()}
		var firstSeen []time.Time
		for t, tr := range trajs {
			h := hits[t][ai]
			if !h.inside {
				continue
			}
			ac.Count++
			ac.Entries += h.entries
			ac.Exits += h.exits
			ac.FIDs = append(ac.FIDs, tr.FID())
			firstSeen = append(firstSeen, h.first)
		}
		if ac.Buckets, err = e.areaBuckets(firstSeen); err != nil {
			return nil, err
		}
		e.opts.Metrics.AddAreaHits(ac.Count)
		diagf("area %q: %d trajectories, %d entries, %d exits", ac.Area, ac.Count, ac.Entries, ac.Exits)
		res.Areas[ai] = ac
	}

	e.opts.Metrics.ObserveEvaluation("areas", e.opts.Clock.Since(began))
	return res, nil
}

// evaluate computes the interaction of one trajectory with one area. A
// transition is counted when the node it arrives at lies inside the window.
func (e *Evaluator) evaluate(tr *trajectory.Trajectory, a *feature.Area) areaHit {
	var h areaHit
	prev := false
	for i := 0; i < tr.Len(); i++ {
		n := tr.Node(i)
		in := a.Contains(n.Point)
		if e.inWindow(n.Time()) {
			if in && !h.inside {
				h.inside, h.first = true, n.Time()
			}
			if i > 0 {
				switch {
				case in && !prev:
					h.entries++
				case !in && prev:
					h.exits++
				}
			}
		}
		prev = in
	}
	if !h.inside {
		return areaHit{}
	}
	return h
}

func (e *Evaluator) scanLinear(ctx context.Context, trajs []*trajectory.Trajectory, areas []*feature.Area) ([][]areaHit, error) {
	bounds := make([]orb.Bound, len(areas))
	for i, a := range areas {
		bounds[i] = a.Bound()
	}
	hits := make([][]areaHit, len(trajs))
	err := e.forEach(ctx, len(trajs), func(t int) {
		tr := trajs[t]
		bound := tr.Bound()
		row := make([]areaHit, len(areas))
		for ai, a := range areas {
			if bound.Intersects(bounds[ai]) {
				row[ai] = e.evaluate(tr, a)
			}
		}
		hits[t] = row
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// indexedPoint is one distinct node position and the trajectories that
// visit it.
type indexedPoint struct {
	p     orb.Point
	trajs []int
}

func (ip *indexedPoint) Point() orb.Point { return ip.p }

// buildIndex loads every distinct node position into a quadtree.
func buildIndex(trajs []*trajectory.Trajectory) (*quadtree.Quadtree, error) {
	bound := trajs[0].Bound()
	for _, tr := range trajs[1:] {
		bound = bound.Union(tr.Bound())
	}
	qt := quadtree.New(bound)

	seen := make(map[orb.Point]*indexedPoint)
	for t, tr := range trajs {
		for i := 0; i < tr.Len(); i++ {
			p := tr.Node(i).Point
			ip, ok := seen[p]
			if !ok {
				ip = &indexedPoint{p: p}
				seen[p] = ip
				if err := qt.Add(ip); err != nil {
					return nil, fmt.Errorf("index node %v: %w", p, err)
				}
			}
			if n := len(ip.trajs); n == 0 || ip.trajs[n-1] != t {
				ip.trajs = append(ip.trajs, t)
			}
		}
	}
	return qt, nil
}

// scanIndexed finds candidate trajectories per area from the quadtree and
// evaluates only those. Results match scanLinear.
func (e *Evaluator) scanIndexed(ctx context.Context, trajs []*trajectory.Trajectory, areas []*feature.Area) ([][]areaHit, error) {
	qt, err := buildIndex(trajs)
	if err != nil {
		return nil, err
	}

	hits := make([][]areaHit, len(trajs))
	for t := range hits {
		hits[t] = make([]areaHit, len(areas))
	}

	var buf []orb.Pointer
	for ai, a := range areas {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		buf = qt.InBound(buf[:0], a.Bound())
		candidates := make(map[int]struct{})
		for _, ptr := range buf {
			ip := ptr.(*indexedPoint)
			if !a.Contains(ip.p) {
				continue
			}
			for _, t := range ip.trajs {
				candidates[t] = struct{}{}
			}
		}
		order := make([]int, 0, len(candidates))
		for t := range candidates {
			order = append(order, t)
		}
		sort.Ints(order)

		err := e.forEach(ctx, len(order), func(k int) {
			t := order[k]
			hits[t][ai] = e.evaluate(trajs[t], a)
		})
		if err != nil {
			return nil, err
		}
	}
	return hits, nil
}

func (e *Evaluator) areaBuckets(firstSeen []time.Time) ([]AreaBucket, error) {
	b, ok, err := newBinner(e.opts.Start, e.opts.End, e.opts.Interval, firstSeen)
	if !ok || err != nil {
		return nil, err
	}
	buckets := make([]AreaBucket, b.n)
	for i := range buckets {
		buckets[i].Start = b.start(i)
	}
	for _, t := range firstSeen {
		buckets[b.index(t)].Count++
	}
	return buckets, nil
}
