package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trajectory.report/internal/counting"
)

func gateBar(r *counting.GateResult) *charts.Bar {
	names := make([]string, len(r.Gates))
	pos := make([]opts.BarData, len(r.Gates))
	neg := make([]opts.BarData, len(r.Gates))
	for i, g := range r.Gates {
		names[i] = g.Gate
		pos[i] = opts.BarData{Value: g.Positive}
		neg[i] = opts.BarData{Value: g.Negative}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trajectory counts", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Gate crossings", Subtitle: fmt.Sprintf("%d trajectories", r.Trajectories)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("positive", pos, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("negative", neg, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

func areaBar(r *counting.AreaResult) *charts.Bar {
	names := make([]string, len(r.Areas))
	counts := make([]opts.BarData, len(r.Areas))
	for i, a := range r.Areas {
		names[i] = a.Area
		counts[i] = opts.BarData{Value: a.Count}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Trajectory counts", Width: "100%", Height: "480px"}),
		charts.WithTitleOpts(opts.Title{Title: "Area visits", Subtitle: fmt.Sprintf("%d trajectories", r.Trajectories)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(names).
		AddSeries("trajectories", counts, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"}))
	return bar
}

// WriteCountsChart renders an HTML page with a directional bar chart per
// gate and a visit chart per area. Either result may be nil.
func WriteCountsChart(w io.Writer, gates *counting.GateResult, areas *counting.AreaResult) error {
	page := components.NewPage()
	page.PageTitle = "Trajectory counts"
	n := 0
	if gates != nil && len(gates.Gates) > 0 {
		page.AddCharts(gateBar(gates))
		n++
	}
	if areas != nil && len(areas.Areas) > 0 {
		page.AddCharts(areaBar(areas))
		n++
	}
	if n == 0 {
		return fmt.Errorf("no gate or area counts to chart")
	}
	if err := page.Render(w); err != nil {
		return fmt.Errorf("render error: %w", err)
	}
	return nil
}
