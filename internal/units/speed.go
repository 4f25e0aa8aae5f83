// Package units converts trajectory speeds and timestamps for display.
package units

import (
	"fmt"
	"strings"
)

// Speed unit names accepted in configuration.
const (
	MPS  = "mps"
	KMPH = "kmph"
	KPH  = "kph"
	MPH  = "mph"
)

// ValidSpeedUnits lists every accepted speed unit.
var ValidSpeedUnits = []string{MPS, KMPH, KPH, MPH}

// IsValidSpeedUnit reports whether unit is an accepted speed unit.
func IsValidSpeedUnit(unit string) bool {
	for _, u := range ValidSpeedUnits {
		if unit == u {
			return true
		}
	}
	return false
}

// ConvertSpeed converts a speed in native units per second to the target
// unit. Native units are assumed to be metres, so this only holds for
// projected layers. Unknown units return the input unchanged.
func ConvertSpeed(speedMPS float64, target string) float64 {
	switch target {
	case KMPH, KPH:
		return speedMPS * 3.6
	case MPH:
		return speedMPS * 2.2369362920544
	default:
		return speedMPS
	}
}

// SpeedLabel returns the axis label for a speed unit.
func SpeedLabel(unit string) string {
	switch unit {
	case KMPH, KPH:
		return "km/h"
	case MPH:
		return "mph"
	default:
		return "m/s"
	}
}

// ParseSpeedUnit validates and normalises a configured speed unit. An empty
// string selects metres per second.
func ParseSpeedUnit(s string) (string, error) {
	u := strings.ToLower(strings.TrimSpace(s))
	if u == "" {
		return MPS, nil
	}
	if !IsValidSpeedUnit(u) {
		return "", fmt.Errorf("invalid speed unit %q (valid: %s)", s, strings.Join(ValidSpeedUnits, ", "))
	}
	return u, nil
}
