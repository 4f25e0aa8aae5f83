package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/banshee-data/trajectory.report/internal/config"
	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/db"
	"github.com/banshee-data/trajectory.report/internal/export"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/ingest"
	"github.com/banshee-data/trajectory.report/internal/monitoring"
	"github.com/banshee-data/trajectory.report/internal/report"
	"github.com/banshee-data/trajectory.report/internal/security"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/units"
)

// runOptions holds the file arguments of one invocation.
type runOptions struct {
	Points string
	X, Y   string
	Table  string
	CRS    string
	Gates  string
	Areas  string
	Config string

	DB      string
	Lines   string
	Counts  string
	Report  string
	Metrics string
}

// runSummary describes what an invocation produced.
type runSummary struct {
	Records      int
	Trajectories int
	Gates        int
	Crossings    int
	Areas        int
	RunID        string
	Written      []string
}

func (s *runSummary) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d records, %d trajectories", s.Records, s.Trajectories)
	if s.Gates > 0 {
		fmt.Fprintf(&b, ", %d crossings over %d gates", s.Crossings, s.Gates)
	}
	if s.Areas > 0 {
		fmt.Fprintf(&b, ", %d areas", s.Areas)
	}
	if s.RunID != "" {
		fmt.Fprintf(&b, "\nrun %s", s.RunID)
	}
	for _, p := range s.Written {
		fmt.Fprintf(&b, "\nwrote %s", p)
	}
	return b.String()
}

func loadConfig(path string) (*config.ToolkitConfig, error) {
	if path == "" {
		return config.EmptyToolkitConfig(), nil
	}
	return config.LoadToolkitConfig(path)
}

// checkOutputs rejects output paths outside the working and temp
// directories.
func checkOutputs(opts runOptions) error {
	for _, p := range []string{opts.DB, opts.Lines, opts.Counts, opts.Report, opts.Metrics} {
		if p == "" {
			continue
		}
		if err := security.ValidateExportPath(p); err != nil {
			return fmt.Errorf("output %s: %w", p, err)
		}
	}
	return nil
}

// loadPoints reads the point layer, choosing the reader from the file
// extension.
func loadPoints(ctx context.Context, fsys fsutil.FileSystem, opts runOptions) (*ingest.Table, error) {
	if opts.Points == "" {
		return nil, fmt.Errorf("-points is required")
	}
	if !fsys.Exists(opts.Points) {
		return nil, fmt.Errorf("point layer %s does not exist", opts.Points)
	}
	name := strings.TrimSuffix(filepath.Base(opts.Points), filepath.Ext(opts.Points))

	switch ext := strings.ToLower(filepath.Ext(opts.Points)); ext {
	case ".db", ".sqlite", ".sqlite3":
		sqlDB, err := db.OpenReadOnly(opts.Points)
		if err != nil {
			return nil, err
		}
		defer sqlDB.Close()
		t, err := ingest.ReadSQLiteTable(ctx, sqlDB, opts.Table, opts.X, opts.Y)
		if err != nil {
			return nil, err
		}
		if opts.CRS != "" {
			t.SetCRS(opts.CRS)
		}
		return t, nil
	case ".csv", ".tsv", ".geojson", ".json":
		r, err := fsys.Open(opts.Points)
		if err != nil {
			return nil, err
		}
		defer r.Close()
		switch ext {
		case ".csv":
			return ingest.ReadCSV(r, ingest.CSVOptions{Name: name, CRS: opts.CRS, XField: opts.X, YField: opts.Y})
		case ".tsv":
			return ingest.ReadCSV(r, ingest.CSVOptions{Name: name, CRS: opts.CRS, XField: opts.X, YField: opts.Y, Comma: '\t'})
		default:
			return ingest.ReadGeoJSON(r, name)
		}
	default:
		return nil, fmt.Errorf("unsupported point layer extension %q", ext)
	}
}

func readReference[T any](fsys fsutil.FileSystem, path string, read func(io.Reader) ([]T, error)) ([]T, error) {
	if path == "" {
		return nil, nil
	}
	r, err := fsys.Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out, err := read(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// run loads the point layer, builds trajectories, counts them against the
// reference layers and writes every requested output.
func run(ctx context.Context, fsys fsutil.FileSystem, opts runOptions) (*runSummary, error) {
	cfg, err := loadConfig(opts.Config)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := checkOutputs(opts); err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	metrics, err := monitoring.NewCollector(reg)
	if err != nil {
		return nil, err
	}

	src, err := loadPoints(ctx, fsys, opts)
	if err != nil {
		return nil, err
	}
	metrics.AddRecords(src.Len())

	layer, err := trajectory.NewLayer(src, cfg.LayerOptions())
	if err != nil {
		return nil, err
	}
	trajs, err := layer.CreateTrajectories(ctx)
	if err != nil {
		return nil, err
	}
	metrics.AddTrajectories(len(trajs))

	gates, err := readReference(fsys, opts.Gates, ingest.ReadGates)
	if err != nil {
		return nil, err
	}
	areas, err := readReference(fsys, opts.Areas, ingest.ReadAreas)
	if err != nil {
		return nil, err
	}

	sum := &runSummary{Records: src.Len(), Trajectories: len(trajs)}
	eval := counting.New(cfg.EvaluatorOptions(metrics))
	var gateRes *counting.GateResult
	if len(gates) > 0 {
		if gateRes, err = eval.CountGates(ctx, trajs, gates); err != nil {
			return nil, err
		}
		sum.Gates = len(gateRes.Gates)
		for _, g := range gateRes.Gates {
			sum.Crossings += len(g.Crossings)
		}
	}
	var areaRes *counting.AreaResult
	if len(areas) > 0 {
		if areaRes, err = eval.CountAreas(ctx, trajs, areas); err != nil {
			return nil, err
		}
		sum.Areas = len(areaRes.Areas)
	}

	records := export.LineRecords(trajs)

	if opts.Lines != "" {
		write := func(w io.Writer) error { return export.WriteLinesGeoJSON(w, records) }
		if strings.EqualFold(filepath.Ext(opts.Lines), ".csv") {
			write = func(w io.Writer) error { return export.WriteLinesCSV(w, records) }
		}
		if err := fsutil.WriteWith(fsys, opts.Lines, write); err != nil {
			return nil, err
		}
		sum.Written = append(sum.Written, opts.Lines)
	}

	if opts.Counts != "" {
		if gateRes == nil && areaRes == nil {
			return nil, fmt.Errorf("-counts needs -gates or -areas")
		}
		if err := fsutil.WriteWith(fsys, opts.Counts, func(w io.Writer) error {
			return export.WriteCountsJSON(w, gateRes, areaRes)
		}); err != nil {
			return nil, err
		}
		sum.Written = append(sum.Written, opts.Counts)
	}

	if opts.Report != "" {
		written, err := writeReport(fsys, opts.Report, cfg, records, gateRes, areaRes)
		sum.Written = append(sum.Written, written...)
		if err != nil {
			return nil, err
		}
	}

	if opts.DB != "" {
		runID, err := storeRun(ctx, opts, cfg, layer.Info(), records, gateRes, areaRes)
		if err != nil {
			return nil, err
		}
		sum.RunID = runID
	}

	if opts.Metrics != "" {
		if err := prometheus.WriteToTextfile(opts.Metrics, metrics.Gatherer()); err != nil {
			return nil, fmt.Errorf("write metrics: %w", err)
		}
		sum.Written = append(sum.Written, opts.Metrics)
	}

	return sum, nil
}

// writeReport renders the report directory plus one crossings CSV per gate.
func writeReport(fsys fsutil.FileSystem, dir string, cfg *config.ToolkitConfig, records []export.LineRecord,
	gates *counting.GateResult, areas *counting.AreaResult) ([]string, error) {
	loc, err := units.LoadTimezone(cfg.GetTimezone())
	if err != nil {
		return nil, err
	}
	written, err := report.Write(fsys, dir, report.Input{
		Lines:     records,
		Gates:     gates,
		Areas:     areas,
		SpeedUnit: cfg.GetSpeedUnits(),
		Bins:      cfg.GetHistogramBins(),
		Location:  loc,
	})
	if err != nil {
		return written, err
	}
	if gates == nil {
		return written, nil
	}
	names := make([]string, len(gates.Gates))
	for i, g := range gates.Gates {
		names[i] = g.Gate
	}
	files := crossingsFiles(names)
	for i, g := range gates.Gates {
		path := filepath.Join(dir, files[i])
		if err := fsutil.WriteWith(fsys, path, func(w io.Writer) error {
			return export.WriteCrossingsCSV(w, g)
		}); err != nil {
			return written, err
		}
		written = append(written, path)
	}
	return written, nil
}

func crossingsFile(gate string) string {
	return "crossings_" + security.SanitizeFilename(gate) + ".csv"
}

// crossingsFiles names one CSV per gate. Gate names are unique but may
// sanitize alike; a clashing name gets a numeric suffix.
func crossingsFiles(gates []string) []string {
	files := make([]string, len(gates))
	used := make(map[string]bool, len(gates))
	for i, g := range gates {
		name := crossingsFile(g)
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("crossings_%s_%d.csv", security.SanitizeFilename(g), n)
		}
		used[name] = true
		files[i] = name
	}
	return files
}

// storeRun records the run and its results in the SQLite result store.
func storeRun(ctx context.Context, opts runOptions, cfg *config.ToolkitConfig, info *trajectory.LayerInfo,
	records []export.LineRecord, gates *counting.GateResult, areas *counting.AreaResult) (string, error) {
	store, err := db.NewDB(opts.DB)
	if err != nil {
		return "", err
	}
	defer store.Close()

	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("marshal config: %w", err)
	}
	run := &db.Run{
		Source:        opts.Points,
		CRS:           info.CRS,
		TimestampUnit: info.TimestampUnit.String(),
		Trajectories:  len(records),
		ConfigJSON:    string(cfgJSON),
	}
	if err := store.StoreRun(ctx, run, records, gates, areas); err != nil {
		return "", err
	}
	monitoring.Logf("stored run %s with %d trajectories", run.RunID, len(records))
	return run.RunID, nil
}
