package ingest

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// maxGeoJSONBytes caps how much of a GeoJSON document is read.
const maxGeoJSONBytes = 256 << 20

// crsMember is the legacy top-level "crs" member some tools still write.
type crsMember struct {
	CRS *struct {
		Properties struct {
			Name string `json:"name"`
		} `json:"properties"`
	} `json:"crs"`
}

func readFeatureCollection(r io.Reader, name string) (*geojson.FeatureCollection, string, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxGeoJSONBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("geojson %q: %w", name, err)
	}
	if len(data) > maxGeoJSONBytes {
		return nil, "", fmt.Errorf("geojson %q: document exceeds %d bytes", name, maxGeoJSONBytes)
	}
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, "", fmt.Errorf("geojson %q: %w", name, err)
	}

	var member crsMember
	crs := ""
	if err := json.Unmarshal(data, &member); err == nil && member.CRS != nil {
		crs = member.CRS.Properties.Name
	}
	return fc, crs, nil
}

// ReadGeoJSON reads a FeatureCollection into a table. The geometry kind is
// taken from the first feature. Property columns are sorted by name and
// typed from their values: whole JSON numbers become integers, other
// numbers doubles. Properties missing from a feature are nil.
func ReadGeoJSON(r io.Reader, name string) (*Table, error) {
	fc, crs, err := readFeatureCollection(r, name)
	if err != nil {
		return nil, err
	}

	kind := trajectory.GeometryUnknown
	if len(fc.Features) > 0 {
		kind = kindOf(fc.Features[0].Geometry)
	}

	seen := make(map[string]bool)
	var names []string
	for _, f := range fc.Features {
		for k := range f.Properties {
			if !seen[k] {
				seen[k] = true
				names = append(names, k)
			}
		}
	}
	sort.Strings(names)

	fields := make([]trajectory.Field, len(names))
	for i, k := range names {
		fields[i] = trajectory.Field{Name: k, Type: propertyType(fc, k)}
	}

	table := NewTable(name, crs, kind, fields)
	for _, f := range fc.Features {
		values := make([]any, len(fields))
		for i, fld := range fields {
			values[i] = propertyValue(f.Properties[fld.Name], fld.Type)
		}
		if err := table.Append(f.Geometry, values...); err != nil {
			return nil, err
		}
	}
	diagf("geojson %q: %d features, %d properties, kind %s", name, table.Len(), len(fields), kind)
	return table, nil
}

func propertyType(fc *geojson.FeatureCollection, key string) trajectory.FieldType {
	var whole, frac, str, boolean, other int
	for _, f := range fc.Features {
		switch v := f.Properties[key].(type) {
		case nil:
		case float64:
			if v == math.Trunc(v) && math.Abs(v) < 1<<53 {
				whole++
			} else {
				frac++
			}
		case string:
			str++
		case bool:
			boolean++
		default:
			other++
		}
	}
	switch {
	case other > 0:
		return trajectory.FieldUnknown
	case str > 0 && whole+frac+boolean == 0:
		return trajectory.FieldString
	case boolean > 0 && whole+frac+str == 0:
		return trajectory.FieldBool
	case str+boolean > 0:
		return trajectory.FieldUnknown
	case frac > 0:
		return trajectory.FieldDouble
	case whole > 0:
		return trajectory.FieldInteger
	default:
		return trajectory.FieldString
	}
}

func propertyValue(v any, t trajectory.FieldType) any {
	if f, ok := v.(float64); ok && t == trajectory.FieldInteger {
		return int64(f)
	}
	return v
}
