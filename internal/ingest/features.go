package ingest

import (
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/trajectory.report/internal/feature"
)

// Reference layer property names.
const (
	PropName           = "name"
	PropCountsPositive = "counts_positive"
	PropCountsNegative = "counts_negative"
)

func featureName(f *geojson.Feature, prefix string, i int) string {
	if s, ok := f.Properties[PropName].(string); ok && s != "" {
		return s
	}
	if f.ID != nil {
		return fmt.Sprint(f.ID)
	}
	return fmt.Sprintf("%s-%d", prefix, i+1)
}

func boolProperty(p geojson.Properties, key string, def bool) bool {
	if b, ok := p[key].(bool); ok {
		return b
	}
	return def
}

// ReadGates reads gate lines from a GeoJSON FeatureCollection. Both
// directions are counted unless counts_positive or counts_negative is false.
// A MultiLineString holding a single line is accepted as that line.
func ReadGates(r io.Reader) ([]*feature.Gate, error) {
	fc, _, err := readFeatureCollection(r, "gates")
	if err != nil {
		return nil, err
	}
	gates := make([]*feature.Gate, 0, len(fc.Features))
	for i, f := range fc.Features {
		g := f.Geometry
		if ml, ok := g.(orb.MultiLineString); ok && len(ml) == 1 {
			g = ml[0]
		}
		gate, err := feature.NewGate(
			featureName(f, "gate", i),
			g,
			boolProperty(f.Properties, PropCountsPositive, true),
			boolProperty(f.Properties, PropCountsNegative, true),
		)
		if err != nil {
			return nil, fmt.Errorf("gate feature %d: %w", i, err)
		}
		gates = append(gates, gate)
	}
	if err := feature.UniqueNames("gate feature", gates); err != nil {
		return nil, err
	}
	diagf("loaded %d gates", len(gates))
	return gates, nil
}

// ReadAreas reads area polygons from a GeoJSON FeatureCollection. A
// MultiPolygon holding a single polygon is accepted as that polygon.
func ReadAreas(r io.Reader) ([]*feature.Area, error) {
	fc, _, err := readFeatureCollection(r, "areas")
	if err != nil {
		return nil, err
	}
	areas := make([]*feature.Area, 0, len(fc.Features))
	for i, f := range fc.Features {
		g := f.Geometry
		if mp, ok := g.(orb.MultiPolygon); ok && len(mp) == 1 {
			g = mp[0]
		}
		area, err := feature.NewArea(featureName(f, "area", i), g)
		if err != nil {
			return nil, fmt.Errorf("area feature %d: %w", i, err)
		}
		areas = append(areas, area)
	}
	if err := feature.UniqueNames("area feature", areas); err != nil {
		return nil, err
	}
	diagf("loaded %d areas", len(areas))
	return areas, nil
}
