package feature

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trajectory.report/internal/validation"
)

func TestNewGateValidation(t *testing.T) {
	tests := []struct {
		name    string
		geom    orb.Geometry
		wantErr error
	}{
		{"valid segment", orb.LineString{{0, 0}, {0, 1}}, nil},
		{"valid polyline", orb.LineString{{0, 0}, {0, 1}, {1, 2}}, nil},
		{"point geometry", orb.Point{0, 0}, validation.ErrInvalidGeometryType},
		{"polygon geometry", orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 0}}}, validation.ErrInvalidGeometryType},
		{"nil geometry", nil, validation.ErrInvalidGeometryType},
		{"single vertex", orb.LineString{{0, 0}}, validation.ErrInvalidFeature},
		{"coincident vertices", orb.LineString{{3, 3}, {3, 3}}, validation.ErrInvalidDirection},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := NewGate("g", tt.geom, true, true)
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.NoError(t, ValidateGate(g))
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, g)
		})
	}

	assert.ErrorIs(t, ValidateGate(nil), validation.ErrInvalidFeature)
	assert.ErrorIs(t, ValidateGate(&Gate{}), validation.ErrInvalidFeature)
}

func TestGateCollapsesDuplicateVertices(t *testing.T) {
	g, err := NewGate("g", orb.LineString{{0, 0}, {0, 0}, {0, 1}}, true, false)
	require.NoError(t, err)
	assert.Equal(t, orb.LineString{{0, 0}, {0, 1}}, g.Geometry())
	assert.True(t, g.Counts(DirectionPositive))
	assert.False(t, g.Counts(DirectionNegative))
	assert.False(t, g.Counts(DirectionNone))
}

func TestGateCrossingDirection(t *testing.T) {
	// gate points north; moving east crosses left to right
	g, err := NewGate("north", orb.LineString{{1, -1}, {1, 1}}, true, true)
	require.NoError(t, err)

	east := g.Crossings(orb.LineString{{0, 0}, {2, 0}})
	require.Len(t, east, 1)
	assert.Equal(t, DirectionPositive, east[0].Direction)
	assert.Equal(t, orb.Point{1, 0}, east[0].Point)
	assert.Equal(t, 0, east[0].Segment)
	assert.InDelta(t, 0.5, east[0].T, 1e-12)

	west := g.Crossings(orb.LineString{{2, 0}, {0, 0}})
	require.Len(t, west, 1)
	assert.Equal(t, DirectionNegative, west[0].Direction)

	assert.Empty(t, g.Crossings(orb.LineString{{5, 0}, {6, 0}}))
	assert.Empty(t, g.Crossings(orb.LineString{{0, 5}, {2, 5}}), "passes beyond the gate end")
}

func TestGateCrossingsThroughVertexOnGate(t *testing.T) {
	g, err := NewGate("g", orb.LineString{{1, -1}, {1, 1}}, true, true)
	require.NoError(t, err)

	// the middle vertex sits exactly on the gate: one crossing, not two
	hits := g.Crossings(orb.LineString{{0, 0}, {1, 0}, {2, 0}})
	require.Len(t, hits, 1)
	assert.Equal(t, DirectionPositive, hits[0].Direction)
	assert.Equal(t, orb.Point{1, 0}, hits[0].Point)
	assert.Equal(t, 0, hits[0].Segment)
	assert.Equal(t, 1.0, hits[0].T)

	// touch and return is not a crossing
	assert.Empty(t, g.Crossings(orb.LineString{{0, 0}, {1, 0}, {0, 1}}))
}

func TestGateMultipleCrossings(t *testing.T) {
	g, err := NewGate("g", orb.LineString{{1, -5}, {1, 5}}, true, true)
	require.NoError(t, err)

	hits := g.Crossings(orb.LineString{{0, 0}, {2, 0}, {2, 1}, {0, 1}, {0, 2}, {2, 2}})
	require.Len(t, hits, 3)
	assert.Equal(t, []Direction{DirectionPositive, DirectionNegative, DirectionPositive},
		[]Direction{hits[0].Direction, hits[1].Direction, hits[2].Direction})
	assert.Equal(t, []int{0, 2, 4}, []int{hits[0].Segment, hits[1].Segment, hits[2].Segment})
}

func TestGateCrossingAtSharedGateVertex(t *testing.T) {
	g, err := NewGate("bent", orb.LineString{{1, -1}, {1, 0}, {2, 1}}, true, true)
	require.NoError(t, err)

	hits := g.Crossings(orb.LineString{{0, 0}, {2, 0}})
	require.Len(t, hits, 1)
	assert.Equal(t, orb.Point{1, 0}, hits[0].Point)
}

func TestGateApexTouch(t *testing.T) {
	t.Parallel()
	apex, err := NewGate("apex", orb.LineString{{0, 0}, {1, 1}, {2, 0}}, true, true)
	require.NoError(t, err)

	tests := []struct {
		name string
		path orb.LineString
		want []Direction
	}{
		{"grazes apex from above", orb.LineString{{0, 1}, {2, 1}}, nil},
		{"grazes apex from below", orb.LineString{{2, 1}, {0, 1}}, nil},
		{"vertex on apex then back", orb.LineString{{0, 2}, {1, 1}, {3, 2}}, nil},
		{"down through apex", orb.LineString{{1, 2}, {1, 0}}, []Direction{DirectionPositive}},
		{"up through apex", orb.LineString{{1, 0}, {1, 2}}, []Direction{DirectionNegative}},
		{"path vertex on apex", orb.LineString{{1, 2}, {1, 1}, {1, 0}}, []Direction{DirectionPositive}},
		{"crosses one arm", orb.LineString{{0.5, 1}, {0.5, 0}}, []Direction{DirectionPositive}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var got []Direction
			for _, h := range apex.Crossings(tt.path) {
				got = append(got, h.Direction)
				if len(tt.want) > 0 && tt.path[0][0] == 1 {
					assert.Equal(t, orb.Point{1, 1}, h.Point)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewAreaValidation(t *testing.T) {
	square := orb.Ring{{0, 0}, {2, 0}, {2, 2}, {0, 2}, {0, 0}}

	tests := []struct {
		name    string
		geom    orb.Geometry
		wantErr error
	}{
		{"polygon", orb.Polygon{square}, nil},
		{"bare ring", square, nil},
		{"open ring", orb.Ring{{0, 0}, {2, 0}, {2, 2}}, nil},
		{"line", orb.LineString{{0, 0}, {1, 1}}, validation.ErrInvalidGeometryType},
		{"empty polygon", orb.Polygon{}, validation.ErrInvalidFeature},
		{"two vertices", orb.Ring{{0, 0}, {1, 1}, {0, 0}}, validation.ErrInvalidFeature},
		{"collinear", orb.Ring{{0, 0}, {1, 1}, {2, 2}, {0, 0}}, validation.ErrInvalidFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, err := NewArea("a", tt.geom)
			if tt.wantErr == nil {
				require.NoError(t, err)
				require.NoError(t, ValidateArea(a))
				ring := a.Geometry()[0]
				assert.Equal(t, ring[0], ring[len(ring)-1], "ring is closed")
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestUniqueNames(t *testing.T) {
	t.Parallel()
	gate := func(name string) *Gate {
		g, err := NewGate(name, orb.LineString{{0, 0}, {1, 0}}, true, true)
		require.NoError(t, err)
		return g
	}

	tests := []struct {
		name    string
		gates   []*Gate
		wantErr string
	}{
		{"empty", nil, ""},
		{"distinct", []*Gate{gate("a"), gate("b")}, ""},
		{"repeated", []*Gate{gate("a"), gate("b"), gate("a")}, `gate 2 repeats the name "a" of gate 0`},
	}

	for _, tt := range tests {
		err := UniqueNames("gate", tt.gates)
		if tt.wantErr == "" {
			assert.NoError(t, err, tt.name)
			continue
		}
		require.Error(t, err, tt.name)
		assert.ErrorIs(t, err, validation.ErrInvalidFeature)
		assert.Contains(t, err.Error(), tt.wantErr)
	}
}

func TestAreaContains(t *testing.T) {
	outer := orb.Ring{{0, 0}, {4, 0}, {4, 4}, {0, 4}, {0, 0}}
	hole := orb.Ring{{1, 1}, {2, 1}, {2, 2}, {1, 2}, {1, 1}}
	a, err := NewArea("donut", orb.Polygon{outer, hole})
	require.NoError(t, err)

	assert.True(t, a.Contains(orb.Point{3, 3}))
	assert.True(t, a.Contains(orb.Point{0, 2}), "boundary counts as inside")
	assert.False(t, a.Contains(orb.Point{1.5, 1.5}), "inside hole")
	assert.False(t, a.Contains(orb.Point{5, 5}))
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "positive", DirectionPositive.String())
	assert.Equal(t, "negative", DirectionNegative.String())
	assert.Equal(t, "none", DirectionNone.String())
}
