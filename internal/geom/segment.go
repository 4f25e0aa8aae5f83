// Package geom adds the planar predicates the toolkit needs on top of
// github.com/paulmach/orb: segment intersection and side-of-line tests.
// orb/planar covers distance, length and point-in-polygon but has no
// line/line intersection predicate.
package geom

import (
	"math"

	"github.com/paulmach/orb"
)

// Cross returns the z component of (b-a) x (p-a). Positive means p lies to
// the left of the directed line a->b, negative to the right.
func Cross(a, b, p orb.Point) float64 {
	return (b[0]-a[0])*(p[1]-a[1]) - (b[1]-a[1])*(p[0]-a[0])
}

// Side is the sign of Cross: +1 left, -1 right, 0 on the line.
func Side(a, b, p orb.Point) int {
	c := Cross(a, b, p)
	switch {
	case c > 0:
		return 1
	case c < 0:
		return -1
	default:
		return 0
	}
}

// onSegment reports whether p, already known to be collinear with a-b,
// lies within the segment's bounding box.
func onSegment(a, b, p orb.Point) bool {
	return math.Min(a[0], b[0]) <= p[0] && p[0] <= math.Max(a[0], b[0]) &&
		math.Min(a[1], b[1]) <= p[1] && p[1] <= math.Max(a[1], b[1])
}

// PointOnSegment reports whether p lies on the closed segment a-b.
func PointOnSegment(a, b, p orb.Point) bool {
	return Side(a, b, p) == 0 && onSegment(a, b, p)
}

// SegmentsIntersect reports whether closed segments p1-p2 and q1-q2 share
// at least one point. Touching endpoints and collinear overlap count.
func SegmentsIntersect(p1, p2, q1, q2 orb.Point) bool {
	d1 := Side(q1, q2, p1)
	d2 := Side(q1, q2, p2)
	d3 := Side(p1, p2, q1)
	d4 := Side(p1, p2, q2)

	if d1*d2 < 0 && d3*d4 < 0 {
		return true
	}

	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return true
	case d2 == 0 && onSegment(q1, q2, p2):
		return true
	case d3 == 0 && onSegment(p1, p2, q1):
		return true
	case d4 == 0 && onSegment(p1, p2, q2):
		return true
	}
	return false
}

// Intersection returns the point where the infinite lines through p1-p2 and
// q1-q2 meet, with t and u the parameters along each segment
// (0 at the first endpoint, 1 at the second). ok is false for parallel or
// degenerate input.
func Intersection(p1, p2, q1, q2 orb.Point) (pt orb.Point, t, u float64, ok bool) {
	rx, ry := p2[0]-p1[0], p2[1]-p1[1]
	sx, sy := q2[0]-q1[0], q2[1]-q1[1]
	den := rx*sy - ry*sx
	if den == 0 {
		return orb.Point{}, 0, 0, false
	}
	qpx, qpy := q1[0]-p1[0], q1[1]-p1[1]
	t = (qpx*sy - qpy*sx) / den
	u = (qpx*ry - qpy*rx) / den
	return Lerp(p1, p2, t), t, u, true
}

// Lerp interpolates between a and b.
func Lerp(a, b orb.Point, t float64) orb.Point {
	return orb.Point{a[0] + (b[0]-a[0])*t, a[1] + (b[1]-a[1])*t}
}

// Project returns the parameter of p projected onto a-b, unclamped.
// Zero-length segments return 0.
func Project(a, b, p orb.Point) float64 {
	dx, dy := b[0]-a[0], b[1]-a[1]
	den := dx*dx + dy*dy
	if den == 0 {
		return 0
	}
	return ((p[0]-a[0])*dx + (p[1]-a[1])*dy) / den
}

// LineStringsIntersect reports whether two polylines share a point.
// A single-vertex line string is treated as a point.
func LineStringsIntersect(a, b orb.LineString) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	if len(a) == 1 {
		return pointOnLineString(b, a[0])
	}
	if len(b) == 1 {
		return pointOnLineString(a, b[0])
	}
	for i := 1; i < len(a); i++ {
		for j := 1; j < len(b); j++ {
			if SegmentsIntersect(a[i-1], a[i], b[j-1], b[j]) {
				return true
			}
		}
	}
	return false
}

func pointOnLineString(ls orb.LineString, p orb.Point) bool {
	if len(ls) == 1 {
		return ls[0] == p
	}
	for i := 1; i < len(ls); i++ {
		if PointOnSegment(ls[i-1], ls[i], p) {
			return true
		}
	}
	return false
}
