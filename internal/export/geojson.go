package export

import (
	"fmt"
	"io"
	"time"

	"github.com/paulmach/orb/geojson"

	"github.com/banshee-data/trajectory.report/internal/monitoring"
)

// Line feature property names.
const (
	PropFID          = "fid"
	PropID           = "id"
	PropAverageSpeed = "average_speed"
	PropLength       = "length"
	PropDuration     = "duration_s"
	PropNodeCount    = "node_count"
	PropStartTime    = "start_time"
	PropEndTime      = "end_time"
)

// LinesFeatureCollection converts records into a FeatureCollection of
// LineString features.
func LinesFeatureCollection(records []LineRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range records {
		f := geojson.NewFeature(r.Line)
		f.ID = r.FID
		f.Properties[PropFID] = r.FID
		f.Properties[PropID] = r.ID
		f.Properties[PropAverageSpeed] = r.AverageSpeed
		f.Properties[PropLength] = r.Length
		f.Properties[PropDuration] = r.Duration.Seconds()
		f.Properties[PropNodeCount] = r.NodeCount
		f.Properties[PropStartTime] = r.StartTime.UTC().Format(time.RFC3339Nano)
		f.Properties[PropEndTime] = r.EndTime.UTC().Format(time.RFC3339Nano)
		fc.Append(f)
	}
	return fc
}

// WriteLinesGeoJSON writes records as a GeoJSON FeatureCollection.
func WriteLinesGeoJSON(w io.Writer, records []LineRecord) error {
	data, err := LinesFeatureCollection(records).MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal lines: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write lines: %w", err)
	}
	monitoring.Logf("export: wrote %d line features", len(records))
	return nil
}
