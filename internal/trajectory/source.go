package trajectory

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// GeometryKind is the geometry type shared by every record of a source.
type GeometryKind int

const (
	GeometryUnknown GeometryKind = iota
	GeometryPoint
	GeometryLine
	GeometryPolygon
)

func (k GeometryKind) String() string {
	switch k {
	case GeometryPoint:
		return "point"
	case GeometryLine:
		return "line"
	case GeometryPolygon:
		return "polygon"
	default:
		return "unknown"
	}
}

// FieldType is the declared type of a source column.
type FieldType int

const (
	FieldUnknown FieldType = iota
	FieldInteger
	FieldDouble
	FieldString
	FieldBool
)

func (t FieldType) String() string {
	switch t {
	case FieldInteger:
		return "integer"
	case FieldDouble:
		return "double"
	case FieldString:
		return "string"
	case FieldBool:
		return "bool"
	default:
		return "unknown"
	}
}

// IsNumeric reports whether values of this type can be read as float64.
func (t FieldType) IsNumeric() bool {
	return t == FieldInteger || t == FieldDouble
}

// Field describes one column of a source.
type Field struct {
	Name string
	Type FieldType
}

// Record is one row: a geometry plus attribute values in Fields() order.
// Integer cells hold int64, double cells float64, string cells string.
// Missing values are nil.
type Record struct {
	Geometry orb.Geometry
	Values   []any
}

// Source is the columnar, geometry-bearing input trajectories are built
// from. Implementations must be safe for concurrent reads.
type Source interface {
	Name() string
	CRS() string
	GeometryKind() GeometryKind
	Fields() []Field
	Len() int
	Record(i int) Record
}

// FieldIndexOf returns the position of name in fields, or -1.
func FieldIndexOf(fields []Field, name string) int {
	for i, f := range fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// numeric converts a numeric cell to float64.
func numeric(v any) (float64, error) {
	switch n := v.(type) {
	case int64:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case float64:
		if math.IsNaN(n) {
			return 0, fmt.Errorf("value is NaN")
		}
		return n, nil
	case float32:
		return float64(n), nil
	case nil:
		return 0, fmt.Errorf("value is missing")
	default:
		return 0, fmt.Errorf("value %v (%T) is not numeric", v, v)
	}
}
