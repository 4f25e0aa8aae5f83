package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/export"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// Report file names written into the report directory.
const (
	SummaryFile   = "summary.json"
	HistogramFile = "speeds.png"
	ChartFile     = "counts.html"
)

// Input is everything a report is built from. Gates and Areas may be nil.
type Input struct {
	Lines     []export.LineRecord
	Gates     *counting.GateResult
	Areas     *counting.AreaResult
	SpeedUnit string
	Bins      int
	// Location renders the summary span; nil keeps UTC.
	Location *time.Location
}

// Write renders the speed summary, histogram and count chart into dir and
// returns the paths written. The histogram is skipped when no trajectory
// moves and the chart when there are no counts.
func Write(fsys fsutil.FileSystem, dir string, in Input) ([]string, error) {
	var written []string
	summary := Summarize(in.Lines, in.SpeedUnit)
	if in.Location != nil {
		summary.From = summary.From.In(in.Location)
		summary.To = summary.To.In(in.Location)
	}

	create := func(name string, write func(io.Writer) error) error {
		w, path, err := fsutil.CreateIn(fsys, dir, name)
		if err != nil {
			return err
		}
		werr := write(w)
		if cerr := w.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return fmt.Errorf("%s: %w", name, werr)
		}
		written = append(written, path)
		return nil
	}

	if err := create(SummaryFile, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}); err != nil {
		return written, err
	}

	speeds := Speeds(in.Lines, in.SpeedUnit)
	if len(speeds) > 0 {
		if err := create(HistogramFile, func(w io.Writer) error {
			return WriteSpeedHistogram(w, speeds, in.Bins, units.SpeedLabel(in.SpeedUnit))
		}); err != nil && !errors.Is(err, ErrNoSpeeds) {
			return written, err
		}
	}

	if hasCounts(in.Gates, in.Areas) {
		if err := create(ChartFile, func(w io.Writer) error {
			return WriteCountsChart(w, in.Gates, in.Areas)
		}); err != nil {
			return written, err
		}
	}

	monitoring.Logf("report: wrote %d files to %s", len(written), dir)
	return written, nil
}

func hasCounts(g *counting.GateResult, a *counting.AreaResult) bool {
	return (g != nil && len(g.Gates) > 0) || (a != nil && len(a.Areas) > 0)
}
