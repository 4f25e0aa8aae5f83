package ingest

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/validation"
)

var layerOpts = trajectory.LayerOptions{
	IDField:        "track_id",
	TimestampField: "ts",
	WidthField:     "width",
	LengthField:    "length",
	HeightField:    "height",
}

func TestTableAppend(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t", "EPSG:4326", trajectory.GeometryPoint, []trajectory.Field{
		{Name: "a", Type: trajectory.FieldInteger},
		{Name: "b", Type: trajectory.FieldString},
	})
	require.NoError(t, tbl.Append(orb.Point{1, 2}, int64(1), "x"))
	assert.Error(t, tbl.Append(orb.Point{1, 2}, int64(1)))

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, "t", tbl.Name())
	assert.Equal(t, "EPSG:4326", tbl.CRS())
	assert.Equal(t, trajectory.GeometryPoint, tbl.GeometryKind())
	assert.Equal(t, []any{int64(1), "x"}, tbl.Record(0).Values)

	fields := tbl.Fields()
	fields[0].Name = "mutated"
	assert.Equal(t, "a", tbl.Fields()[0].Name)

	tbl.SetCRS("EPSG:3857")
	assert.Equal(t, "EPSG:3857", tbl.CRS())
}

const pointsCSV = `track_id,ts,x,y,width,length,height,label,parked
7,1700000000002,2.0,0,1.8,4.5,1.4,car,false
7,1700000000000,0.0,0,1.8,4.5,1.4,car,false
9,1700000000000,5,5,0.6,0.6,1.7,,true
7,1700000000001,1.0,0,1.8,4.5,1.4,car,false
`

func TestReadCSV(t *testing.T) {
	t.Parallel()
	tbl, err := ReadCSV(strings.NewReader(pointsCSV), CSVOptions{Name: "pts", CRS: "EPSG:3857", XField: "x", YField: "y"})
	require.NoError(t, err)
	require.Equal(t, 4, tbl.Len())

	want := []trajectory.Field{
		{Name: "track_id", Type: trajectory.FieldInteger},
		{Name: "ts", Type: trajectory.FieldInteger},
		{Name: "x", Type: trajectory.FieldDouble},
		{Name: "y", Type: trajectory.FieldInteger},
		{Name: "width", Type: trajectory.FieldDouble},
		{Name: "length", Type: trajectory.FieldDouble},
		{Name: "height", Type: trajectory.FieldDouble},
		{Name: "label", Type: trajectory.FieldString},
		{Name: "parked", Type: trajectory.FieldBool},
	}
	assert.Equal(t, want, tbl.Fields())
	assert.Equal(t, orb.Point{5, 5}, tbl.Record(2).Geometry)
	assert.Nil(t, tbl.Record(2).Values[7])
	assert.Equal(t, true, tbl.Record(2).Values[8])

	layer, err := trajectory.NewLayer(tbl, layerOpts)
	require.NoError(t, err)
	assert.Equal(t, trajectory.UnitMilliseconds, layer.TimestampUnit())

	trajs, err := layer.CreateTrajectories(context.Background())
	require.NoError(t, err)
	require.Len(t, trajs, 2)
	assert.Equal(t, int64(7), trajs[0].ID())
	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {2, 0}}, trajs[0].AsGeometry())
	assert.InDelta(t, 1000.0, trajs[0].AverageSpeed(), 1.0)
	assert.Equal(t, "EPSG:3857", trajs[0].Info().CRS)
}

func TestReadCSVErrors(t *testing.T) {
	t.Parallel()
	opts := CSVOptions{Name: "pts", XField: "x", YField: "y"}

	_, err := ReadCSV(strings.NewReader(""), opts)
	assert.ErrorContains(t, err, "missing header")

	_, err = ReadCSV(strings.NewReader("lon,lat\n1,2\n"), opts)
	assert.ErrorContains(t, err, "coordinate columns")

	_, err = ReadCSV(strings.NewReader("x,y\n1,north\n"), opts)
	assert.ErrorContains(t, err, "line 2")

	_, err = ReadCSV(strings.NewReader("x,y\n1,2,3\n"), opts)
	assert.Error(t, err)
}

func TestReadCSVSemicolon(t *testing.T) {
	t.Parallel()
	tbl, err := ReadCSV(strings.NewReader("x;y;v\n1,5;2;3\n"), CSVOptions{XField: "x", YField: "y", Comma: ';'})
	require.Error(t, err, "decimal commas are not numbers")
	assert.Nil(t, tbl)

	tbl, err = ReadCSV(strings.NewReader("x;y;v\n1.5;2;3\n"), CSVOptions{XField: "x", YField: "y", Comma: ';'})
	require.NoError(t, err)
	assert.Equal(t, orb.Point{1.5, 2}, tbl.Record(0).Geometry)
}

const pointsGeoJSON = `{
  "type": "FeatureCollection",
  "crs": {"type": "name", "properties": {"name": "EPSG:2154"}},
  "features": [
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [0, 0]},
     "properties": {"track_id": "a", "ts": 10, "width": 2, "length": 4.5, "height": 1.5}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [3, 4]},
     "properties": {"track_id": "a", "ts": 12, "width": 2, "length": 4.5, "height": 1.5, "note": "late"}}
  ]
}`

func TestReadGeoJSON(t *testing.T) {
	t.Parallel()
	tbl, err := ReadGeoJSON(strings.NewReader(pointsGeoJSON), "obs")
	require.NoError(t, err)

	assert.Equal(t, "EPSG:2154", tbl.CRS())
	assert.Equal(t, trajectory.GeometryPoint, tbl.GeometryKind())
	assert.Equal(t, []trajectory.Field{
		{Name: "height", Type: trajectory.FieldDouble},
		{Name: "length", Type: trajectory.FieldDouble},
		{Name: "note", Type: trajectory.FieldString},
		{Name: "track_id", Type: trajectory.FieldString},
		{Name: "ts", Type: trajectory.FieldInteger},
		{Name: "width", Type: trajectory.FieldInteger},
	}, tbl.Fields())
	assert.Equal(t, int64(10), tbl.Record(0).Values[4])
	assert.Nil(t, tbl.Record(0).Values[2])

	layer, err := trajectory.NewLayer(tbl, layerOpts)
	require.NoError(t, err)
	trajs, err := layer.CreateTrajectories(context.Background())
	require.NoError(t, err)
	require.Len(t, trajs, 1)
	assert.InDelta(t, 2.5, trajs[0].AverageSpeed(), 1e-9)
}

func TestReadGeoJSONLineLayerFailsValidation(t *testing.T) {
	t.Parallel()
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]},"properties":{"track_id":1,"ts":1,"width":1,"length":1,"height":1}}]}`
	tbl, err := ReadGeoJSON(strings.NewReader(doc), "lines")
	require.NoError(t, err)
	assert.Equal(t, trajectory.GeometryLine, tbl.GeometryKind())
	assert.Equal(t, "", tbl.CRS())

	_, err = trajectory.NewLayer(tbl, layerOpts)
	require.Error(t, err)
	assert.Equal(t, validation.ReasonNotAPointSource, validation.ReasonOf(err))
}

func TestReadGeoJSONMalformed(t *testing.T) {
	t.Parallel()
	_, err := ReadGeoJSON(strings.NewReader(`{"type":`), "broken")
	assert.Error(t, err)
}

const gatesGeoJSON = `{"type":"FeatureCollection","features":[
  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,-1],[1,1]]},
   "properties":{"name":"north","counts_negative":false}},
  {"type":"Feature","geometry":{"type":"MultiLineString","coordinates":[[[5,-1],[5,1]]]},
   "properties":{}}
]}`

func TestReadGates(t *testing.T) {
	t.Parallel()
	gates, err := ReadGates(strings.NewReader(gatesGeoJSON))
	require.NoError(t, err)
	require.Len(t, gates, 2)

	assert.Equal(t, "north", gates[0].Name())
	assert.True(t, gates[0].CountsPositive())
	assert.False(t, gates[0].CountsNegative())

	assert.Equal(t, "gate-2", gates[1].Name())
	assert.True(t, gates[1].CountsNegative())
	assert.Equal(t, orb.LineString{{5, -1}, {5, 1}}, gates[1].Geometry())
}

func TestReadGatesRejectsPolygon(t *testing.T) {
	t.Parallel()
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]},"properties":{}}]}`
	_, err := ReadGates(strings.NewReader(doc))
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalidGeometryType))

	degenerate := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[1,1],[1,1]]},"properties":{}}]}`
	_, err = ReadGates(strings.NewReader(degenerate))
	assert.True(t, errors.Is(err, validation.ErrInvalidDirection))
}

func TestReadAreas(t *testing.T) {
	t.Parallel()
	doc := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"lot","geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,4],[0,0]]]},"properties":{}},
	  {"type":"Feature","geometry":{"type":"MultiPolygon","coordinates":[[[[10,10],[12,10],[12,12],[10,10]]]]},"properties":{"name":"plaza"}}
	]}`
	areas, err := ReadAreas(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, areas, 2)
	assert.Equal(t, "lot", areas[0].Name())
	assert.True(t, areas[0].Contains(orb.Point{2, 2}))
	assert.Equal(t, "plaza", areas[1].Name())

	_, err = ReadAreas(strings.NewReader(gatesGeoJSON))
	assert.True(t, errors.Is(err, validation.ErrInvalidGeometryType))
}

func TestReadFeaturesRejectRepeatedNames(t *testing.T) {
	t.Parallel()
	gates := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[0,0],[0,1]]},"properties":{"name":"north"}},
	  {"type":"Feature","geometry":{"type":"LineString","coordinates":[[5,0],[5,1]]},"properties":{"name":"north"}}]}`
	_, err := ReadGates(strings.NewReader(gates))
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalidFeature))
	assert.Contains(t, err.Error(), `"north"`)

	areas := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"lot","geometry":{"type":"Polygon","coordinates":[[[0,0],[4,0],[4,4],[0,0]]]},"properties":{}},
	  {"type":"Feature","geometry":{"type":"Polygon","coordinates":[[[9,9],[12,9],[12,12],[9,9]]]},"properties":{"name":"lot"}}]}`
	_, err = ReadAreas(strings.NewReader(areas))
	assert.True(t, errors.Is(err, validation.ErrInvalidFeature))
}

func TestReadAreasIntoEvaluatorTypes(t *testing.T) {
	t.Parallel()
	doc := `{"type":"FeatureCollection","features":[]}`
	areas, err := ReadAreas(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, areas)
	assert.IsType(t, []*feature.Area{}, areas)
}

func TestReadSQLiteTable(t *testing.T) {
	t.Parallel()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "obs.db"))
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
		CREATE TABLE observations (
			track_id TEXT,
			ts       BIGINT,
			px       DOUBLE,
			py       DOUBLE,
			width    REAL,
			length   REAL,
			height   REAL,
			moving   BOOLEAN
		);
		INSERT INTO observations VALUES ('bus', 1700000010, 10, 0, 2.5, 12, 3.2, 1);
		INSERT INTO observations VALUES ('bus', 1700000000, 0, 0, 2.5, 12, 3.2, 0);
	`)
	require.NoError(t, err)

	tbl, err := ReadSQLiteTable(context.Background(), db, "observations", "px", "py")
	require.NoError(t, err)
	require.Equal(t, 2, tbl.Len())
	assert.Equal(t, trajectory.FieldString, tbl.Fields()[0].Type)
	assert.Equal(t, trajectory.FieldInteger, tbl.Fields()[1].Type)
	assert.Equal(t, trajectory.FieldDouble, tbl.Fields()[2].Type)
	assert.Equal(t, trajectory.FieldBool, tbl.Fields()[7].Type)
	assert.Equal(t, orb.Point{10, 0}, tbl.Record(0).Geometry)
	assert.Equal(t, true, tbl.Record(0).Values[7])
	assert.Equal(t, "bus", tbl.Record(0).Values[0])

	layer, err := trajectory.NewLayer(tbl, layerOpts)
	require.NoError(t, err)
	trajs, err := layer.CreateTrajectories(context.Background())
	require.NoError(t, err)
	require.Len(t, trajs, 1)
	assert.InDelta(t, 1.0, trajs[0].AverageSpeed(), 1e-9)

	_, err = ReadSQLiteTable(context.Background(), db, "missing", "px", "py")
	assert.ErrorContains(t, err, "not found")
	_, err = ReadSQLiteTable(context.Background(), db, "observations", "lon", "lat")
	assert.ErrorContains(t, err, "coordinate columns")
}

func TestAffinity(t *testing.T) {
	t.Parallel()
	cases := map[string]trajectory.FieldType{
		"INTEGER":      trajectory.FieldInteger,
		"bigint":       trajectory.FieldInteger,
		"DOUBLE":       trajectory.FieldDouble,
		"REAL":         trajectory.FieldDouble,
		"VARCHAR(20)":  trajectory.FieldString,
		"TEXT":         trajectory.FieldString,
		"BOOLEAN":      trajectory.FieldBool,
		"":             trajectory.FieldUnknown,
		"BLOB":         trajectory.FieldUnknown,
		"NUMERIC(8,2)": trajectory.FieldDouble,
	}
	for in, want := range cases {
		assert.Equal(t, want, affinity(in), in)
	}
	assert.Equal(t, `"we""ird"`, quoteIdent(`we"ird`))
}
