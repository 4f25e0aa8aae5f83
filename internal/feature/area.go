package feature

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/banshee-data/trajectory.report/internal/validation"
)

// Area is a polygon that trajectories are tested for containment against.
type Area struct {
	name    string
	polygon orb.Polygon
}

// NewArea validates g and builds an area. A bare ring is promoted to a
// polygon; open rings are closed.
func NewArea(name string, g orb.Geometry) (*Area, error) {
	poly, err := areaPolygon(name, g)
	if err != nil {
		return nil, err
	}
	return &Area{name: name, polygon: poly}, nil
}

// ValidateArea re-checks an area's invariants.
func ValidateArea(a *Area) error {
	if a == nil {
		return validation.Newf(validation.ErrInvalidFeature, "area is nil")
	}
	_, err := areaPolygon(a.name, a.polygon)
	return err
}

func areaPolygon(name string, g orb.Geometry) (orb.Polygon, error) {
	var poly orb.Polygon
	switch v := g.(type) {
	case orb.Polygon:
		poly = v.Clone()
	case orb.Ring:
		poly = orb.Polygon{v.Clone()}
	default:
		kind := "nil"
		if g != nil {
			kind = g.GeoJSONType()
		}
		return nil, validation.Newf(validation.ErrInvalidGeometryType, "area %q must be a Polygon, got %s", name, kind)
	}

	if len(poly) == 0 {
		return nil, validation.Newf(validation.ErrInvalidFeature, "area %q has no rings", name)
	}
	for i := range poly {
		ring := poly[i]
		if len(ring) > 0 && ring[0] != ring[len(ring)-1] {
			ring = append(ring, ring[0])
		}
		if distinct(ring) < 3 {
			return nil, validation.Newf(validation.ErrInvalidFeature, "area %q ring %d needs at least 3 distinct vertices", name, i)
		}
		poly[i] = ring
	}
	if math.Abs(planar.Area(poly[0])) == 0 {
		return nil, validation.Newf(validation.ErrInvalidFeature, "area %q outer ring has zero area", name)
	}
	return poly, nil
}

func distinct(r orb.Ring) int {
	seen := make(map[orb.Point]struct{}, len(r))
	for _, p := range r {
		seen[p] = struct{}{}
	}
	return len(seen)
}

func (a *Area) Name() string { return a.name }

// Geometry returns a copy of the area polygon.
func (a *Area) Geometry() orb.Polygon { return a.polygon.Clone() }

func (a *Area) Bound() orb.Bound { return a.polygon.Bound() }

// Contains reports whether p is inside the polygon or on its outer
// boundary. Points inside a hole are outside.
func (a *Area) Contains(p orb.Point) bool {
	if !a.polygon.Bound().Contains(p) {
		return false
	}
	return planar.PolygonContains(a.polygon, p)
}
