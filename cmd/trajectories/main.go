// Command trajectories builds trajectories from a point layer and counts
// how they cross gate lines and visit areas.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/db"
	"github.com/banshee-data/trajectory.report/internal/fsutil"
	"github.com/banshee-data/trajectory.report/internal/ingest"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
	"github.com/banshee-data/trajectory.report/internal/version"
)

var (
	pointsPath  = flag.String("points", "", "point layer: .csv, .geojson/.json or .db/.sqlite")
	xField      = flag.String("x", "x", "CSV/SQLite column holding the x coordinate")
	yField      = flag.String("y", "y", "CSV/SQLite column holding the y coordinate")
	tableName   = flag.String("table", "points", "SQLite table holding the points")
	crs         = flag.String("crs", "", "CRS of CSV/SQLite points (GeoJSON carries its own)")
	gatesPath   = flag.String("gates", "", "GeoJSON gate lines")
	areasPath   = flag.String("areas", "", "GeoJSON area polygons")
	configPath  = flag.String("config", "", "JSON toolkit configuration")
	dbPath      = flag.String("db", "", "SQLite result store (optional)")
	linesPath   = flag.String("lines", "", "trajectory output: .geojson or .csv")
	countsPath  = flag.String("counts", "", "gate/area counts output (.json)")
	reportDir   = flag.String("report", "", "directory for the speed histogram, count chart and crossings")
	metricsPath = flag.String("metrics", "", "write Prometheus metrics in text format to this file")
	verbose     = flag.Bool("v", false, "log per-package diagnostics")
	showVersion = flag.Bool("version", false, "print version and exit")
)

func usage() {
	fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags]\n       %s migrate <up|down|status|version N> -db FILE\n\nFlags:\n", os.Args[0], os.Args[0])
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if flag.Arg(0) == "migrate" {
		if err := runMigrate(os.Stdout, *dbPath, flag.Args()[1:]); err != nil {
			log.Fatal(err)
		}
		return
	}

	if *verbose {
		trajectory.SetLogWriters(os.Stderr, os.Stderr)
		counting.SetLogWriters(os.Stderr, os.Stderr)
		ingest.SetLogWriters(os.Stderr, os.Stderr)
	} else {
		trajectory.SetLogWriters(os.Stderr, nil)
		counting.SetLogWriters(os.Stderr, nil)
		ingest.SetLogWriters(os.Stderr, nil)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := runOptions{
		Points:  *pointsPath,
		X:       *xField,
		Y:       *yField,
		Table:   *tableName,
		CRS:     *crs,
		Gates:   *gatesPath,
		Areas:   *areasPath,
		Config:  *configPath,
		DB:      *dbPath,
		Lines:   *linesPath,
		Counts:  *countsPath,
		Report:  *reportDir,
		Metrics: *metricsPath,
	}
	sum, err := run(ctx, fsutil.OSFileSystem{}, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Println(sum)
}

// parseMigrateArgs reads the migrate subcommand's own -db flag, which may
// appear before, between or after the positional arguments. dbPath is the
// value given ahead of the subcommand, if any.
func parseMigrateArgs(out io.Writer, dbPath string, args []string) (string, []string, error) {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	fs.SetOutput(out)
	path := fs.String("db", dbPath, "SQLite result store")
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return "", nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	return *path, positional, nil
}

// runMigrate handles the migrate subcommand.
func runMigrate(out io.Writer, dbPath string, args []string) error {
	path, actions, err := parseMigrateArgs(out, dbPath, args)
	if err != nil {
		return err
	}
	if path == "" {
		return fmt.Errorf("migrate requires -db")
	}
	if len(actions) == 0 {
		return fmt.Errorf("migrate requires an action: up, down, status or version N")
	}
	store, err := db.OpenDB(path)
	if err != nil {
		return err
	}
	defer store.Close()
	return migrateAction(out, store, actions)
}
