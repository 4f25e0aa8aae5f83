package export

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/banshee-data/trajectory.report/internal/counting"
)

// GateCountsDoc is the JSON document written for a gate evaluation.
type GateCountsDoc struct {
	Trajectories int            `json:"trajectories"`
	Gates        []GateCountDoc `json:"gates"`
}

type GateCountDoc struct {
	Gate           string          `json:"gate"`
	CountsPositive bool            `json:"counts_positive"`
	CountsNegative bool            `json:"counts_negative"`
	Positive       int             `json:"positive"`
	Negative       int             `json:"negative"`
	Total          int             `json:"total"`
	Buckets        []GateBucketDoc `json:"buckets,omitempty"`
	Crossings      []CrossingDoc   `json:"crossings"`
}

type GateBucketDoc struct {
	Start    time.Time `json:"start"`
	Positive int       `json:"positive"`
	Negative int       `json:"negative"`
	Total    int       `json:"total"`
}

type CrossingDoc struct {
	FID          int        `json:"fid"`
	TrajectoryID string     `json:"trajectory_id"`
	Direction    string     `json:"direction"`
	Time         time.Time  `json:"time"`
	Point        [2]float64 `json:"point"`
	AverageSpeed float64    `json:"average_speed"`
}

// AreaCountsDoc is the JSON document written for an area evaluation.
type AreaCountsDoc struct {
	Trajectories int            `json:"trajectories"`
	Indexed      bool           `json:"indexed"`
	Areas        []AreaCountDoc `json:"areas"`
}

type AreaCountDoc struct {
	Area    string          `json:"area"`
	Count   int             `json:"count"`
	Entries int             `json:"entries"`
	Exits   int             `json:"exits"`
	FIDs    []int           `json:"fids"`
	Buckets []AreaBucketDoc `json:"buckets,omitempty"`
}

type AreaBucketDoc struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// GateCounts converts a gate result into its JSON document.
func GateCounts(r *counting.GateResult) GateCountsDoc {
	doc := GateCountsDoc{Trajectories: r.Trajectories, Gates: make([]GateCountDoc, 0, len(r.Gates))}
	for _, g := range r.Gates {
		gd := GateCountDoc{
			Gate:           g.Gate,
			CountsPositive: g.CountsPositive,
			CountsNegative: g.CountsNegative,
			Positive:       g.Positive,
			Negative:       g.Negative,
			Total:          g.Total,
			Crossings:      make([]CrossingDoc, 0, len(g.Crossings)),
		}
		for _, b := range g.Buckets {
			gd.Buckets = append(gd.Buckets, GateBucketDoc{Start: b.Start.UTC(), Positive: b.Positive, Negative: b.Negative, Total: b.Total})
		}
		for _, c := range g.Crossings {
			gd.Crossings = append(gd.Crossings, CrossingDoc{
				FID:          c.FID,
				TrajectoryID: fmt.Sprint(c.TrajectoryID),
				Direction:    c.Direction.String(),
				Time:         c.Time.UTC(),
				Point:        [2]float64{c.Point[0], c.Point[1]},
				AverageSpeed: c.AverageSpeed,
			})
		}
		doc.Gates = append(doc.Gates, gd)
	}
	return doc
}

// AreaCounts converts an area result into its JSON document.
func AreaCounts(r *counting.AreaResult) AreaCountsDoc {
	doc := AreaCountsDoc{Trajectories: r.Trajectories, Indexed: r.Indexed, Areas: make([]AreaCountDoc, 0, len(r.Areas))}
	for _, a := range r.Areas {
		ad := AreaCountDoc{
			Area:    a.Area,
			Count:   a.Count,
			Entries: a.Entries,
			Exits:   a.Exits,
			FIDs:    append([]int{}, a.FIDs...),
		}
		for _, b := range a.Buckets {
			ad.Buckets = append(ad.Buckets, AreaBucketDoc{Start: b.Start.UTC(), Count: b.Count})
		}
		doc.Areas = append(doc.Areas, ad)
	}
	return doc
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// WriteGateCountsJSON writes the gate result as indented JSON.
func WriteGateCountsJSON(w io.Writer, r *counting.GateResult) error {
	if r == nil {
		return fmt.Errorf("nil gate result")
	}
	return writeJSON(w, GateCounts(r))
}

// WriteAreaCountsJSON writes the area result as indented JSON.
func WriteAreaCountsJSON(w io.Writer, r *counting.AreaResult) error {
	if r == nil {
		return fmt.Errorf("nil area result")
	}
	return writeJSON(w, AreaCounts(r))
}

// CountsDoc combines gate and area documents; absent evaluations are null.
type CountsDoc struct {
	Gates *GateCountsDoc `json:"gates"`
	Areas *AreaCountsDoc `json:"areas"`
}

// WriteCountsJSON writes whichever of the two results is present as one
// JSON document.
func WriteCountsJSON(w io.Writer, gates *counting.GateResult, areas *counting.AreaResult) error {
	var doc CountsDoc
	if gates != nil {
		g := GateCounts(gates)
		doc.Gates = &g
	}
	if areas != nil {
		a := AreaCounts(areas)
		doc.Areas = &a
	}
	return writeJSON(w, doc)
}
