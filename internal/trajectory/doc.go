// Package trajectory owns trajectory construction and the per-trajectory
// query surface.
//
// Responsibilities: validating a point source (geometry kind, record count,
// field presence and types), inferring the timestamp unit, grouping records
// by identifier, ordering them by time and assembling immutable
// Trajectory values.
// Key types: Source, Layer, Trajectory, Node.
//
// No SQL or file-format code belongs here; adapters live in
// internal/ingest.
package trajectory
