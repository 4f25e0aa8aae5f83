package trajectory

import (
	"math"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/geom"
	"github.com/banshee-data/trajectory.report/internal/validation"
)

// Node is a single observation of a tracked object.
type Node struct {
	Point     orb.Point
	Timestamp float64 // UTC seconds
	Width     float64
	Length    float64
	Height    float64
}

// Time returns the node's timestamp as a UTC time.
func (n Node) Time() time.Time {
	return secondsToTime(n.Timestamp)
}

func secondsToTime(s float64) time.Time {
	sec, frac := math.Modf(s)
	return time.Unix(int64(sec), int64(math.Round(frac*1e9))).UTC()
}

// LayerInfo is the source context a trajectory was built from. It is
// shared read-only by every trajectory of one construction run.
type LayerInfo struct {
	Name          string
	CRS           string
	TimestampUnit TemporalUnit
}

// Trajectory is the time-ordered path of one object. It is immutable once
// built.
type Trajectory struct {
	fid   int
	id    any
	nodes []Node
	info  *LayerInfo
}

// New builds a trajectory from nodes already in time order. nodes is
// copied. fid is the sequential feature id used in exported output.
func New(fid int, id any, nodes []Node, info *LayerInfo) (*Trajectory, error) {
	if len(nodes) == 0 {
		return nil, validation.Newf(validation.ErrInvalidTrajectory, "trajectory %v has no nodes", id)
	}
	for i := 1; i < len(nodes); i++ {
		if nodes[i].Timestamp < nodes[i-1].Timestamp {
			return nil, validation.Newf(validation.ErrInvalidTrajectory,
				"trajectory %v: node %d timestamp %f precedes node %d timestamp %f",
				id, i, nodes[i].Timestamp, i-1, nodes[i-1].Timestamp)
		}
	}
	cp := make([]Node, len(nodes))
	copy(cp, nodes)
	return &Trajectory{fid: fid, id: id, nodes: cp, info: info}, nil
}

func (t *Trajectory) FID() int { return t.fid }

// ID returns the identifier value shared by the trajectory's records.
func (t *Trajectory) ID() any { return t.id }

// Info returns the source context, or the zero value when none was given.
func (t *Trajectory) Info() LayerInfo {
	if t.info == nil {
		return LayerInfo{}
	}
	return *t.info
}

func (t *Trajectory) Len() int { return len(t.nodes) }

func (t *Trajectory) Node(i int) Node { return t.nodes[i] }

// Nodes returns a copy of the node sequence.
func (t *Trajectory) Nodes() []Node {
	cp := make([]Node, len(t.nodes))
	copy(cp, t.nodes)
	return cp
}

// AsGeometry returns the polyline through every node in stored order.
func (t *Trajectory) AsGeometry() orb.LineString {
	ls := make(orb.LineString, len(t.nodes))
	for i, n := range t.nodes {
		ls[i] = n.Point
	}
	return ls
}

func (t *Trajectory) Bound() orb.Bound { return t.AsGeometry().Bound() }

func (t *Trajectory) StartTime() time.Time { return t.nodes[0].Time() }

func (t *Trajectory) EndTime() time.Time { return t.nodes[len(t.nodes)-1].Time() }

// ElapsedSeconds is the time between the first and last node.
func (t *Trajectory) ElapsedSeconds() float64 {
	return t.nodes[len(t.nodes)-1].Timestamp - t.nodes[0].Timestamp
}

func (t *Trajectory) Duration() time.Duration {
	return time.Duration(t.ElapsedSeconds() * float64(time.Second))
}

// Length is the summed planar distance between consecutive nodes, in map
// units.
func (t *Trajectory) Length() float64 {
	if len(t.nodes) < 2 {
		return 0
	}
	return planar.Length(t.AsGeometry())
}

// AverageSpeed is Length divided by ElapsedSeconds, in map units per
// second. A single node or zero elapsed time yields 0.
func (t *Trajectory) AverageSpeed() float64 {
	elapsed := t.ElapsedSeconds()
	if len(t.nodes) < 2 || elapsed <= 0 {
		return 0
	}
	return t.Length() / elapsed
}

// SegmentSpeeds returns the speed over each consecutive node pair,
// skipping pairs with no elapsed time.
func (t *Trajectory) SegmentSpeeds() []float64 {
	if len(t.nodes) < 2 {
		return nil
	}
	speeds := make([]float64, 0, len(t.nodes)-1)
	for i := 1; i < len(t.nodes); i++ {
		dt := t.nodes[i].Timestamp - t.nodes[i-1].Timestamp
		if dt <= 0 {
			continue
		}
		speeds = append(speeds, planar.Distance(t.nodes[i-1].Point, t.nodes[i].Point)/dt)
	}
	return speeds
}

// MeanDimensions averages the object dimensions over all nodes.
func (t *Trajectory) MeanDimensions() (width, length, height float64) {
	for _, n := range t.nodes {
		width += n.Width
		length += n.Length
		height += n.Height
	}
	k := float64(len(t.nodes))
	return width / k, length / k, height / k
}

// Intersects reports whether the trajectory polyline shares any point with
// the gate: crossing, touching and shared vertices all count.
func (t *Trajectory) Intersects(g *feature.Gate) bool {
	return geom.LineStringsIntersect(t.AsGeometry(), g.Geometry())
}

// ContainsPointOf reports whether any node lies inside or on the boundary
// of the area.
func (t *Trajectory) ContainsPointOf(a *feature.Area) bool {
	_, ok := t.FirstInside(a)
	return ok
}

// FirstInside returns the earliest node inside the area.
func (t *Trajectory) FirstInside(a *feature.Area) (Node, bool) {
	for _, n := range t.nodes {
		if a.Contains(n.Point) {
			return n, true
		}
	}
	return Node{}, false
}

// AreaTransitions counts outside->inside (entries) and inside->outside
// (exits) transitions between consecutive nodes. Starting inside is not an
// entry and ending inside is not an exit.
func (t *Trajectory) AreaTransitions(a *feature.Area) (entries, exits int) {
	prev := a.Contains(t.nodes[0].Point)
	for _, n := range t.nodes[1:] {
		in := a.Contains(n.Point)
		switch {
		case in && !prev:
			entries++
		case !in && prev:
			exits++
		}
		prev = in
	}
	return entries, exits
}

// Crossing is one directional crossing of a gate.
type Crossing struct {
	FID       int
	Gate      string
	Direction feature.Direction
	Timestamp float64 // UTC seconds, interpolated along the crossing segment
	Point     orb.Point
	Segment   int
}

func (c Crossing) Time() time.Time { return secondsToTime(c.Timestamp) }

// Crossings lists every crossing of the gate in path order.
func (t *Trajectory) Crossings(g *feature.Gate) []Crossing {
	hits := g.Crossings(t.AsGeometry())
	if len(hits) == 0 {
		return nil
	}
	out := make([]Crossing, len(hits))
	for i, h := range hits {
		a, b := t.nodes[h.Segment], t.nodes[h.Segment+1]
		out[i] = Crossing{
			FID:       t.fid,
			Gate:      g.Name(),
			Direction: h.Direction,
			Timestamp: a.Timestamp + h.T*(b.Timestamp-a.Timestamp),
			Point:     h.Point,
			Segment:   h.Segment,
		}
	}
	return out
}
