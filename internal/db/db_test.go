package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/counting"
	"github.com/banshee-data/trajectory.report/internal/export"
	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/testutil"
	"github.com/banshee-data/trajectory.report/internal/timeutil"
)

var created = time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "results.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetClock(timeutil.NewMockClock(created))
	return db
}

func TestPragmasApplied(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	tests := []struct {
		pragma string
		want   string
	}{
		{"journal_mode", "wal"},
		{"busy_timeout", "5000"},
		{"synchronous", "1"},
		{"temp_store", "2"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		var got string
		require.NoError(t, db.QueryRow("PRAGMA "+tt.pragma).Scan(&got), tt.pragma)
		assert.Equal(t, tt.want, got, tt.pragma)
	}
}

func TestMigrations(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)

	version, dirty, err := db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(3), version)
	assert.False(t, dirty)

	require.NoError(t, db.MigrateUp(), "up at latest version is a no-op")

	_, err = db.Exec(`INSERT INTO runs (run_id, source, crs, timestamp_unit, trajectory_count, created_at_ns)
		VALUES ('r', 'src', '', 's', 1, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO trajectories (run_id, fid, trajectory_id, average_speed, length, duration_s,
		node_count, start_unix_ns, end_unix_ns, geometry_wkt)
		VALUES ('r', 0, 'a', 1, 1, 1.5, 2, 1500000000, 3000000000, 'LINESTRING(0 0,1 0)')`)
	require.NoError(t, err)

	require.NoError(t, db.MigrateDown())
	version, _, err = db.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	var start, end float64
	require.NoError(t, db.QueryRow(`SELECT start_unix, end_unix FROM trajectories`).Scan(&start, &end))
	assert.InDelta(t, 1.5, start, 1e-9)
	assert.InDelta(t, 3.0, end, 1e-9)

	require.NoError(t, db.MigrateTo(3))
	var startNS, endNS int64
	require.NoError(t, db.QueryRow(`SELECT start_unix_ns, end_unix_ns FROM trajectories`).Scan(&startNS, &endNS))
	assert.Equal(t, int64(1500000000), startNS)
	assert.Equal(t, int64(3000000000), endNS)

	require.NoError(t, db.MigrateTo(1))
	var n int
	err = db.QueryRow(`SELECT COUNT(*) FROM gate_counts`).Scan(&n)
	assert.Error(t, err, "gate_counts is dropped by the down migration")

	require.NoError(t, db.MigrateTo(3))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM gate_counts`).Scan(&n))
	assert.Zero(t, n)
}

func TestRuns(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	run := &Run{Source: "points.csv", CRS: "EPSG:2154", TimestampUnit: "ms", Trajectories: 3, ConfigJSON: `{"workers":2}`}
	require.NoError(t, db.CreateRun(ctx, run))
	assert.NotEmpty(t, run.RunID)
	assert.Equal(t, created, run.CreatedAt)

	got, err := db.GetRun(ctx, run.RunID)
	require.NoError(t, err)
	if diff := cmp.Diff(run, got); diff != "" {
		t.Errorf("GetRun mismatch (-want +got):\n%s", diff)
	}

	second := &Run{RunID: "fixed", Source: "other.geojson", CreatedAt: created.Add(time.Hour)}
	require.NoError(t, db.CreateRun(ctx, second))
	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "fixed", runs[0].RunID)
	assert.Empty(t, runs[0].ConfigJSON)

	assert.Error(t, db.CreateRun(ctx, &Run{RunID: "fixed", Source: "dup"}))

	_, err = db.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, ErrRunNotFound))
	assert.True(t, errors.Is(db.DeleteRun(ctx, "missing"), ErrRunNotFound))
}

func storedRun(t *testing.T, db *DB) (string, []export.LineRecord, *counting.GateResult, *counting.AreaResult) {
	t.Helper()
	ctx := context.Background()
	trajs, gates := testutil.Crossroads(t)
	ev := counting.New(counting.Options{})
	gr, err := ev.CountGates(ctx, trajs, gates)
	require.NoError(t, err)
	ar, err := ev.CountAreas(ctx, trajs, []*feature.Area{
		testutil.Square(t, "west", -1, -1, 2),
		testutil.Square(t, "east", 4, -1, 5),
	})
	require.NoError(t, err)

	run := &Run{Source: "crossroads", Trajectories: len(trajs)}
	lines := export.LineRecords(trajs)
	require.NoError(t, db.StoreRun(ctx, run, lines, gr, ar))
	return run.RunID, lines, gr, ar
}

func TestStoreRunRollsBack(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()
	trajs, _ := testutil.Crossroads(t)
	lines := export.LineRecords(trajs)

	tests := []struct {
		name  string
		gates *counting.GateResult
		areas *counting.AreaResult
	}{
		{
			name:  "repeated gate",
			gates: &counting.GateResult{Gates: []counting.GateCount{{Gate: "main"}, {Gate: "main"}}},
		},
		{
			name:  "repeated area",
			areas: &counting.AreaResult{Areas: []counting.AreaCount{{Area: "west"}, {Area: "west"}}},
		},
	}
	for _, tt := range tests {
		run := &Run{Source: tt.name}
		assert.Error(t, db.StoreRun(ctx, run, lines, tt.gates, tt.areas), tt.name)
		_, err := db.GetRun(ctx, run.RunID)
		assert.True(t, errors.Is(err, ErrRunNotFound), tt.name)
	}

	runs, err := db.ListRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, runs)
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM trajectories`).Scan(&n))
	assert.Zero(t, n)

	run := &Run{Source: "lines only"}
	require.NoError(t, db.StoreRun(ctx, run, lines, nil, nil))
	got, err := db.ListTrajectorySummaries(ctx, run.RunID)
	require.NoError(t, err)
	assert.Len(t, got, len(lines))
}

func TestTrajectoryTimesKeepNanoseconds(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()

	start := time.Date(2024, 5, 1, 9, 30, 0, 123456789, time.UTC)
	line := export.LineRecord{
		FID:       0,
		ID:        "a",
		Duration:  time.Nanosecond,
		NodeCount: 2,
		StartTime: start,
		EndTime:   start.Add(time.Nanosecond),
		Line:      orb.LineString{{0, 0}, {1, 0}},
	}
	run := &Run{Source: "ns"}
	require.NoError(t, db.StoreRun(ctx, run, []export.LineRecord{line}, nil, nil))

	got, err := db.ListTrajectorySummaries(ctx, run.RunID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, start, got[0].StartTime)
	assert.Equal(t, start.Add(time.Nanosecond), got[0].EndTime)
}

func TestTrajectorySummaries(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	runID, lines, _, _ := storedRun(t, db)

	got, err := db.ListTrajectorySummaries(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, got, len(lines))
	for i := range lines {
		assert.Equal(t, lines[i].FID, got[i].FID)
		assert.Equal(t, lines[i].ID, got[i].ID)
		assert.InDelta(t, lines[i].AverageSpeed, got[i].AverageSpeed, 1e-12)
		assert.Equal(t, lines[i].Duration, got[i].Duration)
		assert.True(t, lines[i].StartTime.Equal(got[i].StartTime))
		assert.True(t, lines[i].EndTime.Equal(got[i].EndTime))
		assert.Equal(t, lines[i].Line, got[i].Line)
	}
	assert.Equal(t, orb.LineString{{5, 0}, {6, 0}, {8, 0}}, got[2].Line)
}

func TestGateCountsAndCrossings(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()
	runID, _, gr, _ := storedRun(t, db)

	counts, err := db.ListGateCounts(ctx, runID)
	require.NoError(t, err)
	want := []GateCountRow{{Gate: "main", CountsPositive: true, CountsNegative: true, Positive: 1, Negative: 1, Total: 2}}
	assert.Equal(t, want, counts)

	crossings, err := db.ListCrossings(ctx, runID, "main")
	require.NoError(t, err)
	require.Len(t, crossings, 2)
	main, _ := gr.Gate("main")
	for i, c := range crossings {
		assert.Equal(t, main.Crossings[i].FID, c.FID)
		assert.Equal(t, main.Crossings[i].Direction.String(), c.Direction)
		assert.True(t, main.Crossings[i].Time.Equal(c.Time))
		assert.Equal(t, main.Crossings[i].Point[0], c.X)
	}
	assert.Equal(t, "a", crossings[0].TrajectoryID)
	assert.Equal(t, "positive", crossings[0].Direction)

	all, err := db.ListCrossings(ctx, runID, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := db.ListCrossings(ctx, runID, "nope")
	require.NoError(t, err)
	assert.Empty(t, none)

	assert.Error(t, db.InsertGateCounts(ctx, runID, gr), "gate rows are unique per run")
	assert.Error(t, db.InsertGateCounts(ctx, runID, nil))
}

func TestAreaCounts(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	runID, _, _, _ := storedRun(t, db)

	got, err := db.ListAreaCounts(context.Background(), runID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "east", got[0].Area)
	assert.Equal(t, 1, got[0].Count)
	assert.Equal(t, []int{2}, got[0].FIDs)
	assert.Equal(t, "west", got[1].Area)
	assert.Equal(t, []int{0, 1}, got[1].FIDs)
	assert.Equal(t, 2, got[1].Count)
}

func TestDeleteRunCascades(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	ctx := context.Background()
	runID, _, _, _ := storedRun(t, db)

	require.NoError(t, db.DeleteRun(ctx, runID))
	for _, table := range []string{"trajectories", "gate_counts", "gate_crossings", "area_counts", "area_visits"} {
		var n int
		require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&n))
		assert.Zero(t, n, table)
	}
}

func TestInsertRequiresRun(t *testing.T) {
	t.Parallel()
	db := newTestDB(t)
	trajs, _ := testutil.Crossroads(t)
	err := db.InsertTrajectorySummaries(context.Background(), "unknown", export.LineRecords(trajs))
	assert.Error(t, err, "foreign keys are enforced")
}

func TestOpenReadOnly(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "points.db")
	rw, err := OpenDB(path)
	require.NoError(t, err)
	_, err = rw.Exec(`CREATE TABLE points (id INTEGER, x REAL, y REAL)`)
	require.NoError(t, err)
	_, err = rw.Exec(`INSERT INTO points VALUES (1, 0.5, 1.5)`)
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := OpenReadOnly(path)
	require.NoError(t, err)
	defer ro.Close()

	var n int
	require.NoError(t, ro.QueryRow(`SELECT COUNT(*) FROM points`).Scan(&n))
	assert.Equal(t, 1, n)
	_, err = ro.Exec(`INSERT INTO points VALUES (2, 0, 0)`)
	assert.Error(t, err)
}

func TestOpenReadOnlyMissingFile(t *testing.T) {
	t.Parallel()
	_, err := OpenReadOnly(filepath.Join(t.TempDir(), "missing.db"))
	assert.Error(t, err)
}
