// Package feature defines the reference geometry trajectories are
// evaluated against: gates (open polylines with a crossing direction) and
// areas (polygons).
//
// Features are validated on construction and immutable afterwards, so one
// instance can be shared by any number of concurrent evaluations.
//
// Direction convention: walk a gate from its first vertex to its last. A
// trajectory moving from the left-hand side to the right-hand side crosses
// in DirectionPositive; right to left is DirectionNegative.
package feature
