package trajectory

import (
	"errors"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/feature"
	"github.com/banshee-data/trajectory.report/internal/validation"
)

func nodesAt(ts float64, pts ...orb.Point) []Node {
	nodes := make([]Node, len(pts))
	for i, p := range pts {
		nodes[i] = Node{Point: p, Timestamp: ts + float64(i), Width: 2, Length: 4, Height: 1.5}
	}
	return nodes
}

func mustTrajectory(t *testing.T, nodes []Node) *Trajectory {
	t.Helper()
	tr, err := New(0, "a", nodes, &LayerInfo{Name: "test", TimestampUnit: UnitSeconds})
	require.NoError(t, err)
	return tr
}

func mustGate(t *testing.T, a, b orb.Point) *feature.Gate {
	t.Helper()
	g, err := feature.NewGate("gate", orb.LineString{a, b}, true, true)
	require.NoError(t, err)
	return g
}

func TestNewRejectsInvalidInput(t *testing.T) {
	t.Parallel()

	_, err := New(0, "empty", nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalidTrajectory))

	_, err = New(0, "backwards", []Node{{Timestamp: 5}, {Timestamp: 4}}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, validation.ErrInvalidTrajectory))

	tr, err := New(3, "ties", []Node{{Timestamp: 5}, {Timestamp: 5}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, tr.FID())
	assert.Equal(t, "ties", tr.ID())
	assert.Equal(t, LayerInfo{}, tr.Info())
}

func TestNewCopiesNodes(t *testing.T) {
	t.Parallel()
	nodes := nodesAt(0, orb.Point{0, 0}, orb.Point{1, 0})
	tr := mustTrajectory(t, nodes)
	nodes[0].Point = orb.Point{9, 9}
	assert.Equal(t, orb.Point{0, 0}, tr.Node(0).Point)

	out := tr.Nodes()
	out[1].Timestamp = -1
	assert.Equal(t, 1.0, tr.Node(1).Timestamp)
}

func TestAsGeometryVisitsNodesInOrder(t *testing.T) {
	t.Parallel()
	pts := []orb.Point{{0, 0}, {1, 0}, {1, 1}}
	tr := mustTrajectory(t, nodesAt(100, pts...))

	assert.Equal(t, orb.LineString{{0, 0}, {1, 0}, {1, 1}}, tr.AsGeometry())
	assert.Equal(t, 3, tr.Len())
	assert.Equal(t, orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{1, 1}}, tr.Bound())
}

func TestIntersects(t *testing.T) {
	t.Parallel()
	tr := mustTrajectory(t, nodesAt(0, orb.Point{0, 0}, orb.Point{2, 0}))

	cases := []struct {
		name string
		a, b orb.Point
		want bool
	}{
		{"crossing", orb.Point{1, -1}, orb.Point{1, 1}, true},
		{"strictly one side", orb.Point{5, -1}, orb.Point{5, 1}, false},
		{"touching endpoint", orb.Point{2, 0}, orb.Point{2, 3}, true},
		{"collinear overlap", orb.Point{1, 0}, orb.Point{3, 0}, true},
		{"parallel", orb.Point{0, 1}, orb.Point{2, 1}, false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, tr.Intersects(mustGate(t, c.a, c.b)), c.name)
	}
}

func TestIntersectsSingleNode(t *testing.T) {
	t.Parallel()
	gate := mustGate(t, orb.Point{1, -1}, orb.Point{1, 1})

	on := mustTrajectory(t, nodesAt(0, orb.Point{1, 0}))
	off := mustTrajectory(t, nodesAt(0, orb.Point{0, 0}))
	assert.True(t, on.Intersects(gate))
	assert.False(t, off.Intersects(gate))
}

func TestAverageSpeed(t *testing.T) {
	t.Parallel()

	single := mustTrajectory(t, nodesAt(1700000000, orb.Point{3, 4}))
	assert.Equal(t, 0.0, single.AverageSpeed())
	assert.Equal(t, 0.0, single.Length())
	assert.Nil(t, single.SegmentSpeeds())

	// 5 + 5 map units over 4 seconds
	tr, err := New(0, "a", []Node{
		{Point: orb.Point{0, 0}, Timestamp: 10},
		{Point: orb.Point{3, 4}, Timestamp: 12},
		{Point: orb.Point{6, 8}, Timestamp: 14},
	}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 10.0, tr.Length(), 1e-9)
	assert.InDelta(t, 2.5, tr.AverageSpeed(), 1e-9)
	assert.Equal(t, 4*time.Second, tr.Duration())
	assert.InDeltaSlice(t, []float64{2.5, 2.5}, tr.SegmentSpeeds(), 1e-9)

	stationaryClock, err := New(0, "b", []Node{
		{Point: orb.Point{0, 0}, Timestamp: 10},
		{Point: orb.Point{1, 0}, Timestamp: 10},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.0, stationaryClock.AverageSpeed())
	assert.Empty(t, stationaryClock.SegmentSpeeds())
}

func TestStartEndTime(t *testing.T) {
	t.Parallel()
	tr, err := New(0, "a", []Node{
		{Timestamp: 1700000000},
		{Timestamp: 1700000002.5},
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), tr.StartTime())
	assert.Equal(t, time.Unix(1700000002, 500000000).UTC(), tr.EndTime())
	assert.Equal(t, 2500*time.Millisecond, tr.Duration())
}

func TestMeanDimensions(t *testing.T) {
	t.Parallel()
	tr, err := New(0, "a", []Node{
		{Timestamp: 1, Width: 1, Length: 4, Height: 1},
		{Timestamp: 2, Width: 3, Length: 6, Height: 2},
	}, nil)
	require.NoError(t, err)
	w, l, h := tr.MeanDimensions()
	assert.Equal(t, 2.0, w)
	assert.Equal(t, 5.0, l)
	assert.Equal(t, 1.5, h)
}

func TestAreaQueries(t *testing.T) {
	t.Parallel()
	area, err := feature.NewArea("zone", orb.Polygon{{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}})
	require.NoError(t, err)

	through := mustTrajectory(t, nodesAt(0, orb.Point{-1, 2}, orb.Point{2, 2}, orb.Point{5, 2}, orb.Point{3, 3}))
	assert.True(t, through.ContainsPointOf(area))
	first, ok := through.FirstInside(area)
	require.True(t, ok)
	assert.Equal(t, orb.Point{2, 2}, first.Point)
	entries, exits := through.AreaTransitions(area)
	assert.Equal(t, 2, entries)
	assert.Equal(t, 1, exits)

	boundary := mustTrajectory(t, nodesAt(0, orb.Point{-1, 0}, orb.Point{0, 0}))
	assert.True(t, boundary.ContainsPointOf(area))

	// the segment passes over the area but no node lies inside it
	overflight := mustTrajectory(t, nodesAt(0, orb.Point{-1, 2}, orb.Point{5, 2}))
	assert.False(t, overflight.ContainsPointOf(area))
	entries, exits = overflight.AreaTransitions(area)
	assert.Zero(t, entries)
	assert.Zero(t, exits)
}

func TestCrossingsInterpolateTime(t *testing.T) {
	t.Parallel()
	tr, err := New(7, "car", []Node{
		{Point: orb.Point{0, 0}, Timestamp: 10},
		{Point: orb.Point{2, 0}, Timestamp: 12},
		{Point: orb.Point{0, 0.5}, Timestamp: 20},
	}, nil)
	require.NoError(t, err)

	gate := mustGate(t, orb.Point{1, -1}, orb.Point{1, 1})
	got := tr.Crossings(gate)
	require.Len(t, got, 2)

	assert.Equal(t, 7, got[0].FID)
	assert.Equal(t, "gate", got[0].Gate)
	assert.Equal(t, feature.DirectionPositive, got[0].Direction)
	assert.InDelta(t, 11.0, got[0].Timestamp, 1e-9)
	assert.Equal(t, orb.Point{1, 0}, got[0].Point)
	assert.Equal(t, 0, got[0].Segment)

	assert.Equal(t, feature.DirectionNegative, got[1].Direction)
	assert.InDelta(t, 16.0, got[1].Timestamp, 1e-9)
	assert.Equal(t, 1, got[1].Segment)

	assert.Empty(t, tr.Crossings(mustGate(t, orb.Point{5, -1}, orb.Point{5, 1})))
}
