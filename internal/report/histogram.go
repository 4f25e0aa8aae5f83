package report

import (
	"errors"
	"fmt"
	"io"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// DefaultHistogramBins is used when no bin count is configured.
const DefaultHistogramBins = 20

// ErrNoSpeeds is returned when there is nothing to plot.
var ErrNoSpeeds = errors.New("no moving trajectories to plot")

// WriteSpeedHistogram renders a PNG histogram of speeds.
func WriteSpeedHistogram(w io.Writer, speeds []float64, bins int, unitLabel string) error {
	if len(speeds) == 0 {
		return ErrNoSpeeds
	}
	if bins <= 0 {
		bins = DefaultHistogramBins
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("Average trajectory speed (n=%d)", len(speeds))
	p.X.Label.Text = fmt.Sprintf("Speed (%s)", unitLabel)
	p.Y.Label.Text = "Trajectories"

	h, err := plotter.NewHist(plotter.Values(speeds), bins)
	if err != nil {
		return fmt.Errorf("failed to build histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return fmt.Errorf("failed to render histogram: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write histogram: %w", err)
	}
	return nil
}
