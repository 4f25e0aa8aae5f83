package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/paulmach/orb/encoding/wkt"

	"github.com/banshee-data/trajectory.report/internal/counting"
)

var linesHeader = []string{
	PropFID, PropID, PropAverageSpeed, PropLength, PropDuration,
	PropNodeCount, PropStartTime, PropEndTime, "wkt",
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// WriteLinesCSV writes one row per record with the geometry as WKT in the
// last column.
func WriteLinesCSV(w io.Writer, records []LineRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(linesHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range records {
		row := []string{
			strconv.Itoa(r.FID),
			r.ID,
			formatFloat(r.AverageSpeed),
			formatFloat(r.Length),
			formatFloat(r.Duration.Seconds()),
			strconv.Itoa(r.NodeCount),
			r.StartTime.UTC().Format(time.RFC3339Nano),
			r.EndTime.UTC().Format(time.RFC3339Nano),
			wkt.MarshalString(r.Line),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write fid %d: %w", r.FID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

var crossingsHeader = []string{"fid", "trajectory_id", "direction", "time", "x", "y", "average_speed"}

// WriteCrossingsCSV writes the crossings of one gate in time order.
func WriteCrossingsCSV(w io.Writer, g counting.GateCount) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(crossingsHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range g.Crossings {
		row := []string{
			strconv.Itoa(c.FID),
			fmt.Sprint(c.TrajectoryID),
			c.Direction.String(),
			c.Time.UTC().Format(time.RFC3339Nano),
			formatFloat(c.Point[0]),
			formatFloat(c.Point[1]),
			formatFloat(c.AverageSpeed),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write crossing of fid %d: %w", c.FID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
