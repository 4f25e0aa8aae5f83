package ingest

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Table is an in-memory trajectory.Source. It is safe for concurrent reads
// once fully appended.
type Table struct {
	name    string
	crs     string
	kind    trajectory.GeometryKind
	fields  []trajectory.Field
	records []trajectory.Record
}

// NewTable creates an empty table with a fixed schema.
func NewTable(name, crs string, kind trajectory.GeometryKind, fields []trajectory.Field) *Table {
	return &Table{
		name:   name,
		crs:    crs,
		kind:   kind,
		fields: append([]trajectory.Field(nil), fields...),
	}
}

// Append adds one record. values must follow the field order.
func (t *Table) Append(g orb.Geometry, values ...any) error {
	if len(values) != len(t.fields) {
		return fmt.Errorf("table %q: record has %d values, schema has %d fields", t.name, len(values), len(t.fields))
	}
	t.records = append(t.records, trajectory.Record{
		Geometry: g,
		Values:   append([]any(nil), values...),
	})
	return nil
}

func (t *Table) Name() string                          { return t.name }
func (t *Table) CRS() string                           { return t.crs }
func (t *Table) GeometryKind() trajectory.GeometryKind { return t.kind }
func (t *Table) Len() int                              { return len(t.records) }

// Fields returns a copy of the schema.
func (t *Table) Fields() []trajectory.Field {
	return append([]trajectory.Field(nil), t.fields...)
}

func (t *Table) Record(i int) trajectory.Record { return t.records[i] }

// SetCRS overrides the coordinate reference system, for sources such as
// SQLite tables that do not carry one.
func (t *Table) SetCRS(crs string) { t.crs = crs }

// kindOf maps a geometry onto the source kind it belongs to.
func kindOf(g orb.Geometry) trajectory.GeometryKind {
	switch g.(type) {
	case orb.Point, orb.MultiPoint:
		return trajectory.GeometryPoint
	case orb.LineString, orb.MultiLineString:
		return trajectory.GeometryLine
	case orb.Polygon, orb.MultiPolygon, orb.Ring:
		return trajectory.GeometryPolygon
	default:
		return trajectory.GeometryUnknown
	}
}
