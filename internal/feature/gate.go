package feature

import (
	"math"
	"sort"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/geom"
	"github.com/banshee-data/trajectory.report/internal/validation"
)

// Direction classifies a gate crossing relative to the gate's vertex order.
type Direction int

const (
	DirectionNone     Direction = 0
	DirectionPositive Direction = 1  // left to right when walking the gate first->last vertex
	DirectionNegative Direction = -1 // right to left
)

func (d Direction) String() string {
	switch d {
	case DirectionPositive:
		return "positive"
	case DirectionNegative:
		return "negative"
	default:
		return "none"
	}
}

// Gate is an open polyline that trajectories are counted across.
type Gate struct {
	name           string
	line           orb.LineString
	countsPositive bool
	countsNegative bool
}

// NewGate validates g and builds a gate. Consecutive duplicate vertices are
// collapsed; the remaining polyline must keep at least two distinct
// vertices or its direction cannot be determined.
func NewGate(name string, g orb.Geometry, countsPositive, countsNegative bool) (*Gate, error) {
	line, err := gateLine(name, g)
	if err != nil {
		return nil, err
	}
	return &Gate{
		name:           name,
		line:           line,
		countsPositive: countsPositive,
		countsNegative: countsNegative,
	}, nil
}

// ValidateGate re-checks a gate's invariants. Gates built with NewGate
// always pass; zero-value gates do not.
func ValidateGate(g *Gate) error {
	if g == nil {
		return validation.Newf(validation.ErrInvalidFeature, "gate is nil")
	}
	_, err := gateLine(g.name, g.line)
	return err
}

func gateLine(name string, g orb.Geometry) (orb.LineString, error) {
	ls, ok := g.(orb.LineString)
	if !ok {
		kind := "nil"
		if g != nil {
			kind = g.GeoJSONType()
		}
		return nil, validation.Newf(validation.ErrInvalidGeometryType, "gate %q must be a LineString, got %s", name, kind)
	}
	if len(ls) < 2 {
		return nil, validation.Newf(validation.ErrInvalidFeature, "gate %q needs at least 2 vertices, got %d", name, len(ls))
	}

	line := make(orb.LineString, 0, len(ls))
	for _, p := range ls {
		if len(line) > 0 && line[len(line)-1] == p {
			continue
		}
		line = append(line, p)
	}
	if len(line) < 2 {
		return nil, validation.Newf(validation.ErrInvalidDirection, "gate %q has coincident vertices; direction cannot be determined", name)
	}
	return line, nil
}

func (g *Gate) Name() string { return g.name }

// Geometry returns a copy of the gate polyline.
func (g *Gate) Geometry() orb.LineString { return g.line.Clone() }

func (g *Gate) Bound() orb.Bound { return g.line.Bound() }

func (g *Gate) CountsPositive() bool { return g.countsPositive }

func (g *Gate) CountsNegative() bool { return g.countsNegative }

// Counts reports whether crossings in direction d contribute to the
// gate's total.
func (g *Gate) Counts(d Direction) bool {
	switch d {
	case DirectionPositive:
		return g.countsPositive
	case DirectionNegative:
		return g.countsNegative
	default:
		return false
	}
}

// Hit is one crossing of a path over the gate. Segment is the index of the
// path vertex the crossing segment starts at and T the fraction along that
// segment (0..1).
type Hit struct {
	Segment   int
	T         float64
	Point     orb.Point
	Direction Direction
}

// Crossings walks path and returns every side change across the gate in
// path order. A path that touches the gate and returns to the side it came
// from does not cross.
func (g *Gate) Crossings(path orb.LineString) []Hit {
	if len(path) < 2 || !path.Bound().Intersects(g.line.Bound()) {
		return nil
	}

	var hits []gateHit
	for j := 1; j < len(g.line); j++ {
		for _, h := range segmentCrossings(g.line[j-1], g.line[j], path) {
			hits = append(hits, gateHit{Hit: h, seg: j - 1})
		}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].Segment != hits[b].Segment {
			return hits[a].Segment < hits[b].Segment
		}
		return hits[a].T < hits[b].T
	})

	var out []Hit
	for i := 0; i < len(hits); i++ {
		h := hits[i]
		v, ok := g.interiorVertex(h)
		if !ok {
			out = append(out, h.Hit)
			continue
		}
		// a path through an interior vertex is judged against both arms
		// once; hits the other arm reported there are folded in
		for i+1 < len(hits) && near(hits[i+1].Point, g.line[v]) &&
			math.Abs(hits[i+1].position()-h.position()) <= vertexEpsilon {
			i++
		}
		if d := g.vertexDirection(v, path, h.position()); d != DirectionNone {
			h.Hit.Point = g.line[v]
			h.Hit.Direction = d
			out = append(out, h.Hit)
		}
	}
	return out
}

// gateHit is a Hit tagged with the gate segment that produced it.
type gateHit struct {
	Hit
	seg int
}

func (h gateHit) position() float64 { return float64(h.Segment) + h.T }

const vertexEpsilon = 1e-9

func near(p, q orb.Point) bool {
	scale := 1 + math.Max(math.Abs(q[0]), math.Abs(q[1]))
	return math.Abs(p[0]-q[0]) <= vertexEpsilon*scale && math.Abs(p[1]-q[1]) <= vertexEpsilon*scale
}

// interiorVertex reports the index of the interior gate vertex h lies on,
// if any.
func (g *Gate) interiorVertex(h gateHit) (int, bool) {
	for _, v := range [2]int{h.seg, h.seg + 1} {
		if v >= 1 && v <= len(g.line)-2 && near(h.Point, g.line[v]) {
			return v, true
		}
	}
	return 0, false
}

// vertexSide classifies p against the bent gate around interior vertex v:
// +1 left, -1 right, 0 on one of the arms' lines where the side is ambiguous.
func (g *Gate) vertexSide(v int, p orb.Point) int {
	a, c, b := g.line[v-1], g.line[v], g.line[v+1]
	s1, s2 := geom.Side(a, c, p), geom.Side(c, b, p)
	switch turn := geom.Side(a, c, b); {
	case turn > 0:
		// left turn: the left side is the wedge left of both arms
		if s1 > 0 && s2 > 0 {
			return 1
		}
		if s1 < 0 || s2 < 0 {
			return -1
		}
	case turn < 0:
		if s1 < 0 && s2 < 0 {
			return -1
		}
		if s1 > 0 || s2 > 0 {
			return 1
		}
	default:
		if s1 != 0 {
			return s1
		}
		return s2
	}
	return 0
}

// vertexDirection finds the nearest path vertices before and after pos that
// are clear of the gate vertex and reports the side change between them.
func (g *Gate) vertexDirection(v int, path orb.LineString, pos float64) Direction {
	before, after := 0, 0
	for k := len(path) - 1; k >= 0 && before == 0; k-- {
		if float64(k) < pos-vertexEpsilon {
			before = g.vertexSide(v, path[k])
		}
	}
	for k := 0; k < len(path) && after == 0; k++ {
		if float64(k) > pos+vertexEpsilon {
			after = g.vertexSide(v, path[k])
		}
	}
	switch {
	case before > 0 && after < 0:
		return DirectionPositive
	case before < 0 && after > 0:
		return DirectionNegative
	default:
		return DirectionNone
	}
}

func segmentCrossings(g0, g1 orb.Point, path orb.LineString) []Hit {
	var hits []Hit
	last, lastIdx := 0, -1
	for i, p := range path {
		s := geom.Side(g0, g1, p)
		if s == 0 {
			continue
		}
		if last != 0 && s != last {
			if h, ok := crossingBetween(g0, g1, path, lastIdx, i); ok {
				h.Direction = DirectionNegative
				if last > 0 && s < 0 {
					h.Direction = DirectionPositive
				}
				hits = append(hits, h)
			}
		}
		last, lastIdx = s, i
	}
	return hits
}

// crossingBetween locates the crossing between off-line vertices from and
// to, which sit on opposite sides of the gate line.
func crossingBetween(g0, g1 orb.Point, path orb.LineString, from, to int) (Hit, bool) {
	if to == from+1 {
		pt, t, u, ok := geom.Intersection(path[from], path[to], g0, g1)
		if !ok || u < -vertexEpsilon || u > 1+vertexEpsilon {
			return Hit{}, false
		}
		return Hit{Segment: from, T: t, Point: pt}, true
	}
	// vertices from+1 .. to-1 lie on the gate line; the crossing is at the
	// first one inside the gate's extent
	for k := from + 1; k < to; k++ {
		if u := geom.Project(g0, g1, path[k]); u >= 0 && u <= 1 {
			return Hit{Segment: k - 1, T: 1, Point: path[k]}, true
		}
	}
	return Hit{}, false
}
