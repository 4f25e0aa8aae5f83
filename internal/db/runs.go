package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one evaluation of a point layer.
type Run struct {
	RunID         string
	Source        string
	CRS           string
	TimestampUnit string
	Trajectories  int
	ConfigJSON    string
	CreatedAt     time.Time
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// CreateRun inserts run. An empty RunID is replaced with a new UUID and
// CreatedAt is taken from the store clock when zero.
func (db *DB) CreateRun(ctx context.Context, run *Run) error {
	db.prepareRun(run)
	return insertRun(ctx, db, run)
}

func (db *DB) prepareRun(run *Run) {
	if run.RunID == "" {
		run.RunID = uuid.New().String()
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = db.clock.Now()
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertRun(ctx context.Context, ex execer, run *Run) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, source, crs, timestamp_unit, trajectory_count, config_json, created_at_ns
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Source, run.CRS, run.TimestampUnit, run.Trajectories,
		nullString(run.ConfigJSON), run.CreatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

const runColumns = `run_id, source, crs, timestamp_unit, trajectory_count, config_json, created_at_ns`

func scanRun(row interface{ Scan(...any) error }) (*Run, error) {
	var (
		r       Run
		cfg     sql.NullString
		created int64
	)
	if err := row.Scan(&r.RunID, &r.Source, &r.CRS, &r.TimestampUnit, &r.Trajectories, &cfg, &created); err != nil {
		return nil, err
	}
	r.ConfigJSON = cfg.String
	r.CreatedAt = time.Unix(0, created).UTC()
	return &r, nil
}

// GetRun returns the run with the given id.
func (db *DB) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE run_id = ?`, runID)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ListRuns returns all runs, newest first.
func (db *DB) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at_ns DESC, run_id`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// DeleteRun removes a run and everything recorded under it.
func (db *DB) DeleteRun(ctx context.Context, runID string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}
