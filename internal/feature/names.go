package feature

import "github.com/banshee-data/trajectory.report/internal/validation"

// Named is implemented by *Gate and *Area.
type Named interface {
	Name() string
}

// UniqueNames fails when two features of one layer share a name. Results,
// stored rows and per-gate output files are all keyed by name.
func UniqueNames[F Named](kind string, features []F) error {
	seen := make(map[string]int, len(features))
	for i, f := range features {
		name := f.Name()
		if j, ok := seen[name]; ok {
			return validation.Newf(validation.ErrInvalidFeature,
				"%s %d repeats the name %q of %s %d", kind, i, name, kind, j)
		}
		seen[name] = i
	}
	return nil
}
