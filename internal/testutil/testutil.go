// Package testutil provides shared test fixtures for trajectories and
// reference features.
package testutil

import (
	"testing"

	"github.com/paulmach/orb"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/trajectory"
)

// Epoch is the base timestamp, in UTC seconds, of fixture trajectories.
const Epoch = 1700000000.0

// Stop is one fixture observation: a position and a time offset in seconds
// from Epoch.
type Stop struct {
	X, Y, DT float64
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Track builds a trajectory with identifier id through the given stops.
func Track(t *testing.T, fid int, id any, stops ...Stop) *trajectory.Trajectory {
	t.Helper()
	nodes := make([]trajectory.Node, len(stops))
	for i, s := range stops {
		nodes[i] = trajectory.Node{Point: orb.Point{s.X, s.Y}, Timestamp: Epoch + s.DT}
	}
	tr, err := trajectory.New(fid, id, nodes, &trajectory.LayerInfo{Name: "fixture", TimestampUnit: trajectory.UnitSeconds})
	AssertNoError(t, err)
	return tr
}

// Line returns a two-vertex line string.
func Line(x1, y1, x2, y2 float64) orb.LineString {
	return orb.LineString{{x1, y1}, {x2, y2}}
}

// Gate builds a gate counting both directions.
func Gate(t *testing.T, name string, line orb.LineString) *feature.Gate {
	t.Helper()
	g, err := feature.NewGate(name, line, true, true)
	AssertNoError(t, err)
	return g
}

// Square builds an axis-aligned square area with its lower-left corner at
// (x, y).
func Square(t *testing.T, name string, x, y, side float64) *feature.Area {
	t.Helper()
	ring := orb.Ring{{x, y}, {x + side, y}, {x + side, y + side}, {x, y + side}, {x, y}}
	a, err := feature.NewArea(name, orb.Polygon{ring})
	AssertNoError(t, err)
	return a
}

// Crossroads returns three trajectories and a vertical gate at x=1 that
// the first two cross in opposite directions and the third misses.
func Crossroads(t *testing.T) ([]*trajectory.Trajectory, []*feature.Gate) {
	t.Helper()
	trajs := []*trajectory.Trajectory{
		Track(t, 0, "a", Stop{0, 0, 0}, Stop{2, 0, 2}),
		Track(t, 1, "b", Stop{2, 0.5, 10}, Stop{0, 0.5, 14}),
		Track(t, 2, "c", Stop{5, 0, 20}, Stop{6, 0, 21}, Stop{8, 0, 22}),
	}
	return trajs, []*feature.Gate{Gate(t, "main", Line(1, -1, 1, 1))}
}
