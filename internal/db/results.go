package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkt"

	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/export"
)

func (db *DB) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// StoreRun records a run with its trajectory summaries and whichever
// results are non-nil in one transaction; nothing is kept if any insert
// fails.
func (db *DB) StoreRun(ctx context.Context, run *Run, records []export.LineRecord,
	gates *counting.GateResult, areas *counting.AreaResult) error {
	db.prepareRun(run)
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if err := insertRun(ctx, tx, run); err != nil {
			return err
		}
		if err := insertTrajectories(ctx, tx, run.RunID, records); err != nil {
			return err
		}
		if gates != nil {
			if err := insertGateCounts(ctx, tx, run.RunID, gates); err != nil {
				return err
			}
		}
		if areas != nil {
			if err := insertAreaCounts(ctx, tx, run.RunID, areas); err != nil {
				return err
			}
		}
		return nil
	})
}

// InsertTrajectorySummaries stores one row per line record.
func (db *DB) InsertTrajectorySummaries(ctx context.Context, runID string, records []export.LineRecord) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertTrajectories(ctx, tx, runID, records)
	})
}

func insertTrajectories(ctx context.Context, tx *sql.Tx, runID string, records []export.LineRecord) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trajectories (
			run_id, fid, trajectory_id, average_speed, length, duration_s,
			node_count, start_unix_ns, end_unix_ns, geometry_wkt
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare trajectories: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			runID, r.FID, r.ID, r.AverageSpeed, r.Length, r.Duration.Seconds(),
			r.NodeCount, r.StartTime.UnixNano(), r.EndTime.UnixNano(), wkt.MarshalString(r.Line),
		); err != nil {
			return fmt.Errorf("insert trajectory %d: %w", r.FID, err)
		}
	}
	return nil
}

// ListTrajectorySummaries returns the stored line records of a run in FID
// order.
func (db *DB) ListTrajectorySummaries(ctx context.Context, runID string) ([]export.LineRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT fid, trajectory_id, average_speed, length, duration_s, node_count,
		       start_unix_ns, end_unix_ns, geometry_wkt
		FROM trajectories WHERE run_id = ? ORDER BY fid`, runID)
	if err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	defer rows.Close()

	var out []export.LineRecord
	for rows.Next() {
		var (
			r           export.LineRecord
			dur         float64
			start, end  int64
			geometryWKT string
		)
		if err := rows.Scan(&r.FID, &r.ID, &r.AverageSpeed, &r.Length, &dur, &r.NodeCount, &start, &end, &geometryWKT); err != nil {
			return nil, fmt.Errorf("scan trajectory: %w", err)
		}
		r.Duration = time.Duration(dur * float64(time.Second))
		r.StartTime = time.Unix(0, start).UTC()
		r.EndTime = time.Unix(0, end).UTC()
		g, err := wkt.Unmarshal(geometryWKT)
		if err != nil {
			return nil, fmt.Errorf("trajectory %d geometry: %w", r.FID, err)
		}
		switch line := g.(type) {
		case orb.LineString:
			r.Line = line
		case orb.Point:
			r.Line = orb.LineString{line}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list trajectories: %w", err)
	}
	return out, nil
}

// InsertGateCounts stores per-gate totals and every crossing.
func (db *DB) InsertGateCounts(ctx context.Context, runID string, res *counting.GateResult) error {
	if res == nil {
		return fmt.Errorf("nil gate result")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertGateCounts(ctx, tx, runID, res)
	})
}

func insertGateCounts(ctx context.Context, tx *sql.Tx, runID string, res *counting.GateResult) error {
	for _, g := range res.Gates {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO gate_counts (
				run_id, gate, counts_positive, counts_negative, positive, negative, total
			) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, g.Gate, g.CountsPositive, g.CountsNegative, g.Positive, g.Negative, g.Total,
		); err != nil {
			return fmt.Errorf("insert gate %q: %w", g.Gate, err)
		}
		for seq, c := range g.Crossings {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO gate_crossings (
					run_id, gate, seq, fid, trajectory_id, direction,
					crossing_unix_ns, x, y, average_speed
				) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, g.Gate, seq, c.FID, fmt.Sprint(c.TrajectoryID), c.Direction.String(),
				c.Time.UnixNano(), c.Point[0], c.Point[1], c.AverageSpeed,
			); err != nil {
				return fmt.Errorf("insert crossing %d of gate %q: %w", seq, g.Gate, err)
			}
		}
	}
	return nil
}

// GateCountRow is a stored gate total.
type GateCountRow struct {
	Gate           string
	CountsPositive bool
	CountsNegative bool
	Positive       int
	Negative       int
	Total          int
}

// ListGateCounts returns the gate totals of a run ordered by gate name.
func (db *DB) ListGateCounts(ctx context.Context, runID string) ([]GateCountRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT gate, counts_positive, counts_negative, positive, negative, total
		FROM gate_counts WHERE run_id = ? ORDER BY gate`, runID)
	if err != nil {
		return nil, fmt.Errorf("list gate counts: %w", err)
	}
	defer rows.Close()

	var out []GateCountRow
	for rows.Next() {
		var g GateCountRow
		if err := rows.Scan(&g.Gate, &g.CountsPositive, &g.CountsNegative, &g.Positive, &g.Negative, &g.Total); err != nil {
			return nil, fmt.Errorf("scan gate count: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list gate counts: %w", err)
	}
	return out, nil
}

// CrossingRow is a stored gate crossing.
type CrossingRow struct {
	Gate         string
	FID          int
	TrajectoryID string
	Direction    string
	Time         time.Time
	X, Y         float64
	AverageSpeed float64
}

// ListCrossings returns the crossings of a run in time order. An empty gate
// returns crossings of every gate.
func (db *DB) ListCrossings(ctx context.Context, runID, gate string) ([]CrossingRow, error) {
	query := `
		SELECT gate, fid, trajectory_id, direction, crossing_unix_ns, x, y, average_speed
		FROM gate_crossings WHERE run_id = ?`
	args := []any{runID}
	if gate != "" {
		query += " AND gate = ?"
		args = append(args, gate)
	}
	query += " ORDER BY crossing_unix_ns, gate, seq"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list crossings: %w", err)
	}
	defer rows.Close()

	var out []CrossingRow
	for rows.Next() {
		var (
			c  CrossingRow
			ns int64
		)
		if err := rows.Scan(&c.Gate, &c.FID, &c.TrajectoryID, &c.Direction, &ns, &c.X, &c.Y, &c.AverageSpeed); err != nil {
			return nil, fmt.Errorf("scan crossing: %w", err)
		}
		c.Time = time.Unix(0, ns).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list crossings: %w", err)
	}
	return out, nil
}

// InsertAreaCounts stores per-area totals and the trajectories counted.
func (db *DB) InsertAreaCounts(ctx context.Context, runID string, res *counting.AreaResult) error {
	if res == nil {
		return fmt.Errorf("nil area result")
	}
	return db.withTx(ctx, func(tx *sql.Tx) error {
		return insertAreaCounts(ctx, tx, runID, res)
	})
}

func insertAreaCounts(ctx context.Context, tx *sql.Tx, runID string, res *counting.AreaResult) error {
	for _, a := range res.Areas {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO area_counts (run_id, area, count, entries, exits)
			VALUES (?, ?, ?, ?, ?)`,
			runID, a.Area, a.Count, a.Entries, a.Exits,
		); err != nil {
			return fmt.Errorf("insert area %q: %w", a.Area, err)
		}
		for _, fid := range a.FIDs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO area_visits (run_id, area, fid) VALUES (?, ?, ?)`,
				runID, a.Area, fid,
			); err != nil {
				return fmt.Errorf("insert visit %d of area %q: %w", fid, a.Area, err)
			}
		}
	}
	return nil
}

// AreaCountRow is a stored area total with the FIDs counted.
type AreaCountRow struct {
	Area    string
	Count   int
	Entries int
	Exits   int
	FIDs    []int
}

// ListAreaCounts returns the area totals of a run ordered by area name.
func (db *DB) ListAreaCounts(ctx context.Context, runID string) ([]AreaCountRow, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT area, count, entries, exits FROM area_counts
		WHERE run_id = ? ORDER BY area`, runID)
	if err != nil {
		return nil, fmt.Errorf("list area counts: %w", err)
	}
	var out []AreaCountRow
	for rows.Next() {
		var a AreaCountRow
		if err := rows.Scan(&a.Area, &a.Count, &a.Entries, &a.Exits); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan area count: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("list area counts: %w", err)
	}
	rows.Close()

	for i := range out {
		fids, err := db.areaVisits(ctx, runID, out[i].Area)
		if err != nil {
			return nil, err
		}
		out[i].FIDs = fids
	}
	return out, nil
}

func (db *DB) areaVisits(ctx context.Context, runID, area string) ([]int, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT fid FROM area_visits WHERE run_id = ? AND area = ? ORDER BY fid`, runID, area)
	if err != nil {
		return nil, fmt.Errorf("list area visits: %w", err)
	}
	defer rows.Close()

	var fids []int
	for rows.Next() {
		var fid int
		if err := rows.Scan(&fid); err != nil {
			return nil, fmt.Errorf("scan area visit: %w", err)
		}
		fids = append(fids, fid)
	}
	return fids, rows.Err()
}
