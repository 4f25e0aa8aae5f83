package trajectory

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// TemporalUnit is the unit raw timestamps are recorded in.
type TemporalUnit int

const (
	UnitUnknown TemporalUnit = iota
	UnitSeconds
	UnitMilliseconds
)

func (u TemporalUnit) String() string {
	switch u {
	case UnitSeconds:
		return "s"
	case UnitMilliseconds:
		return "ms"
	default:
		return "unknown"
	}
}

// ParseTemporalUnit accepts "", "s", "seconds", "ms" and "milliseconds".
// The empty string maps to UnitUnknown, which requests inference.
func ParseTemporalUnit(s string) (TemporalUnit, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return UnitUnknown, nil
	case "s", "sec", "seconds":
		return UnitSeconds, nil
	case "ms", "milliseconds":
		return UnitMilliseconds, nil
	default:
		return UnitUnknown, fmt.Errorf("unknown timestamp unit %q (want s or ms)", s)
	}
}

// MillisecondDigitThreshold is the digit count from which a raw timestamp
// is taken to be in milliseconds. A seconds-based Unix time only reaches 13
// digits around the year 33658.
const MillisecondDigitThreshold = 13

// TimestampDigits counts the decimal digits of the integer part of v,
// i.e. floor(log10(|v|))+1 computed without floating-point log error.
// Values with magnitude below 1 count as one digit.
func TimestampDigits(v float64) int {
	a := math.Abs(math.Trunc(v))
	if a < 1 || math.IsInf(a, 0) || math.IsNaN(a) {
		return 1
	}
	return len(strconv.FormatFloat(a, 'f', 0, 64))
}

// InferTimestampUnit guesses the unit of a raw Unix timestamp from its
// magnitude. This is a heuristic, not unit metadata: 13 or more digits is
// read as milliseconds, anything shorter as seconds.
func InferTimestampUnit(v float64) TemporalUnit {
	if TimestampDigits(v) >= MillisecondDigitThreshold {
		return UnitMilliseconds
	}
	return UnitSeconds
}

// toSeconds converts a raw timestamp to canonical seconds.
func toSeconds(v float64, unit TemporalUnit) float64 {
	if unit == UnitMilliseconds {
		return v / 1000
	}
	return v
}
