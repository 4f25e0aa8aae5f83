package units

import (
	"fmt"
	"time"
)

// LoadTimezone resolves a tz database name. An empty name or "UTC" returns
// time.UTC.
func LoadTimezone(tz string) (*time.Location, error) {
	if tz == "" || tz == "UTC" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %s: %w", tz, err)
	}
	return loc, nil
}

// IsTimezoneValid reports whether tz names a zone in the tz database.
func IsTimezoneValid(tz string) bool {
	_, err := LoadTimezone(tz)
	return err == nil
}
