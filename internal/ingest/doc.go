// Package ingest adapts files and databases into trajectory sources and
// reference features.
//
// Point sources: ReadCSV, ReadGeoJSON and ReadSQLiteTable return a Table,
// an in-memory trajectory.Source. Reference layers: ReadGates and ReadAreas
// build validated feature values from GeoJSON.
package ingest
