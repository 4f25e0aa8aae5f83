// Package export writes trajectories and count results to GeoJSON, CSV and
// JSON.
package export

import (
	"fmt"
	"time"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// LineRecord is the flat summary of one trajectory written by the line
// exporters and the result store.
type LineRecord struct {
	FID          int
	ID           string
	AverageSpeed float64 // native units per second
	Length       float64
	Duration     time.Duration
	NodeCount    int
	StartTime    time.Time
	EndTime      time.Time
	Line         orb.LineString
}

// LineRecords summarises trajectories in FID order. Identifiers are
// rendered with fmt so integer and string ids export alike.
func LineRecords(trajs []*trajectory.Trajectory) []LineRecord {
	out := make([]LineRecord, 0, len(trajs))
	for _, t := range trajs {
		if t == nil {
			continue
		}
		out = append(out, LineRecord{
			FID:          t.FID(),
			ID:           fmt.Sprint(t.ID()),
			AverageSpeed: t.AverageSpeed(),
			Length:       t.Length(),
			Duration:     t.Duration(),
			NodeCount:    t.Len(),
			StartTime:    t.StartTime(),
			EndTime:      t.EndTime(),
			Line:         t.AsGeometry(),
		})
	}
	return out
}
