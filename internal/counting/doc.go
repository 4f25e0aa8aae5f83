// Package counting evaluates trajectories against gates and areas.
//
// Gate evaluation reports every directional crossing with its interpolated
// time; area evaluation counts trajectories with at least one node inside
// or on the boundary of the polygon. Both honour an optional [Start, End)
// window and fixed-width buckets, and produce output in the caller's
// feature and trajectory order regardless of worker scheduling.
package counting
