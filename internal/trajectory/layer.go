package trajectory

import (
	"context"
	"fmt"
	"runtime"
	"sort"

	"github.com/paulmach/orb"
	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/trajectory.report/internal/validation"
)

// LayerOptions names the fields trajectories are built from.
type LayerOptions struct {
	IDField        string
	TimestampField string
	WidthField     string
	LengthField    string
	HeightField    string

	// TimestampUnit overrides inference when not UnitUnknown.
	TimestampUnit TemporalUnit

	// Workers bounds construction parallelism. Zero means GOMAXPROCS.
	Workers int
}

// FieldIndex is the resolved column position of every named field.
type FieldIndex struct {
	ID        int
	Timestamp int
	Width     int
	Length    int
	Height    int
}

// Validate checks that src can produce trajectories and resolves the field
// positions once. Checks run in a fixed order and the first failure is
// returned as a *validation.Error of kind ErrInvalidLayer.
func Validate(src Source, opts LayerOptions) (FieldIndex, error) {
	if src == nil {
		return FieldIndex{}, validation.LayerError(validation.ReasonNotValid, "", "")
	}
	if src.GeometryKind() != GeometryPoint {
		return FieldIndex{}, validation.LayerError(validation.ReasonNotAPointSource, "", "")
	}
	if src.Len() == 0 {
		return FieldIndex{}, validation.LayerError(validation.ReasonNoRecords, "", "")
	}
	for i := 0; i < src.Len(); i++ {
		if _, ok := src.Record(i).Geometry.(orb.Point); !ok {
			return FieldIndex{}, validation.LayerError(validation.ReasonNotAPointSource, "", "")
		}
	}

	fields := src.Fields()
	var idx FieldIndex
	if idx.ID = FieldIndexOf(fields, opts.IDField); idx.ID < 0 {
		return FieldIndex{}, validation.LayerError(validation.ReasonMissingOrWrongType, "id", opts.IDField)
	}
	numericFields := []struct {
		role string
		name string
		dst  *int
	}{
		{"timestamp", opts.TimestampField, &idx.Timestamp},
		{"width", opts.WidthField, &idx.Width},
		{"length", opts.LengthField, &idx.Length},
		{"height", opts.HeightField, &idx.Height},
	}
	for _, f := range numericFields {
		i := FieldIndexOf(fields, f.name)
		if i < 0 || !fields[i].Type.IsNumeric() {
			return FieldIndex{}, validation.LayerError(validation.ReasonMissingOrWrongType, f.role, f.name)
		}
		*f.dst = i
	}
	return idx, nil
}

// Layer is a validated point source ready to produce trajectories.
type Layer struct {
	src     Source
	opts    LayerOptions
	index   FieldIndex
	info    *LayerInfo
	workers int
}

// NewLayer validates src and fixes the timestamp unit, inferring it from the
// first record when opts.TimestampUnit is UnitUnknown.
func NewLayer(src Source, opts LayerOptions) (*Layer, error) {
	idx, err := Validate(src, opts)
	if err != nil {
		return nil, err
	}

	unit := opts.TimestampUnit
	if unit == UnitUnknown {
		raw, err := numeric(src.Record(0).Values[idx.Timestamp])
		if err != nil {
			return nil, validation.LayerError(validation.ReasonMissingOrWrongType, "timestamp", opts.TimestampField)
		}
		unit = InferTimestampUnit(raw)
		diagf("layer %q: inferred timestamp unit %s from %.0f (%d digits)", src.Name(), unit, raw, TimestampDigits(raw))
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Layer{
		src:     src,
		opts:    opts,
		index:   idx,
		info:    &LayerInfo{Name: src.Name(), CRS: src.CRS(), TimestampUnit: unit},
		workers: workers,
	}, nil
}

func (l *Layer) Source() Source              { return l.src }
func (l *Layer) IDField() string             { return l.opts.IDField }
func (l *Layer) TimestampField() string      { return l.opts.TimestampField }
func (l *Layer) WidthField() string          { return l.opts.WidthField }
func (l *Layer) LengthField() string         { return l.opts.LengthField }
func (l *Layer) HeightField() string         { return l.opts.HeightField }
func (l *Layer) TimestampUnit() TemporalUnit { return l.info.TimestampUnit }
func (l *Layer) CRS() string                 { return l.info.CRS }
func (l *Layer) Index() FieldIndex           { return l.index }

// Info returns the shared context handed to every trajectory.
func (l *Layer) Info() *LayerInfo { return l.info }

// group is the record positions sharing one identifier, in input order.
type group struct {
	id   any
	rows []int
}

// groups partitions records by identifier, ordered by first appearance.
func (l *Layer) groups() ([]group, error) {
	var (
		out []group
		pos = make(map[any]int)
	)
	for i := 0; i < l.src.Len(); i++ {
		id := l.src.Record(i).Values[l.index.ID]
		if id == nil {
			return nil, validation.LayerError(validation.ReasonMissingOrWrongType, "id", l.opts.IDField)
		}
		if !hashable(id) {
			return nil, validation.LayerError(validation.ReasonMissingOrWrongType, "id", l.opts.IDField)
		}
		k, ok := pos[id]
		if !ok {
			k = len(out)
			pos[id] = k
			out = append(out, group{id: id})
		}
		out[k].rows = append(out[k].rows, i)
	}
	return out, nil
}

func hashable(v any) bool {
	switch v.(type) {
	case int64, int, int32, float64, float32, string, bool:
		return true
	default:
		return false
	}
}

// CreateTrajectories builds one trajectory per distinct identifier, in
// first-appearance order. Identifiers are processed concurrently. Any
// failure, including cancellation, returns no trajectories.
func (l *Layer) CreateTrajectories(ctx context.Context) ([]*Trajectory, error) {
	groups, err := l.groups()
	if err != nil {
		return nil, err
	}

	slots := make([]*Trajectory, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(l.workers)
	for k := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			t, err := l.build(k, groups[k])
			if err != nil {
				return err
			}
			slots[k] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		opsf("layer %q: trajectory construction failed: %v", l.info.Name, err)
		return nil, err
	}

	out := make([]*Trajectory, 0, len(slots))
	for _, t := range slots {
		if t != nil {
			out = append(out, t)
		}
	}
	diagf("layer %q: built %d trajectories from %d records", l.info.Name, len(out), l.src.Len())
	return out, nil
}

// build assembles the trajectory for one identifier group.
func (l *Layer) build(fid int, grp group) (*Trajectory, error) {
	if len(grp.rows) == 0 {
		return nil, nil
	}
	nodes := make([]Node, len(grp.rows))
	for j, row := range grp.rows {
		n, err := l.node(l.src.Record(row))
		if err != nil {
			return nil, err
		}
		nodes[j] = n
	}
	sort.SliceStable(nodes, func(a, b int) bool {
		return nodes[a].Timestamp < nodes[b].Timestamp
	})
	t, err := New(fid, grp.id, nodes, l.info)
	if err != nil {
		return nil, fmt.Errorf("identifier %v: %w", grp.id, err)
	}
	return t, nil
}

func (l *Layer) node(rec Record) (Node, error) {
	pt, ok := rec.Geometry.(orb.Point)
	if !ok {
		return Node{}, validation.LayerError(validation.ReasonNotAPointSource, "", "")
	}
	read := func(i int, role, name string) (float64, error) {
		v, err := numeric(rec.Values[i])
		if err != nil {
			return 0, validation.LayerError(validation.ReasonMissingOrWrongType, role, name)
		}
		return v, nil
	}

	ts, err := read(l.index.Timestamp, "timestamp", l.opts.TimestampField)
	if err != nil {
		return Node{}, err
	}
	w, err := read(l.index.Width, "width", l.opts.WidthField)
	if err != nil {
		return Node{}, err
	}
	ln, err := read(l.index.Length, "length", l.opts.LengthField)
	if err != nil {
		return Node{}, err
	}
	h, err := read(l.index.Height, "height", l.opts.HeightField)
	if err != nil {
		return Node{}, err
	}
	return Node{
		Point:     pt,
		Timestamp: toSeconds(ts, l.info.TimestampUnit),
		Width:     w,
		Length:    ln,
		Height:    h,
	}, nil
}
