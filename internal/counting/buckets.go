package counting

import (
	"fmt"
	"time"
)

// MaxBuckets caps how many buckets one evaluation may lay out.
const MaxBuckets = 1_000_000

// binner maps event times onto fixed-width buckets starting at origin.
type binner struct {
	origin   time.Time
	interval time.Duration
	n        int
}

// newBinner lays out buckets covering times. The origin is the window start
// when set, otherwise the earliest time truncated to the interval. The last
// bucket reaches the window end when set, otherwise the latest time.
// ok is false when bucketing is disabled or there is nothing to cover. An
// interval too fine for the span, needing more than MaxBuckets, is an error.
func newBinner(start, end time.Time, interval time.Duration, times []time.Time) (binner, bool, error) {
	if interval <= 0 {
		return binner{}, false, nil
	}
	if len(times) == 0 && (start.IsZero() || end.IsZero()) {
		return binner{}, false, nil
	}

	var earliest, latest time.Time
	for i, t := range times {
		if i == 0 || t.Before(earliest) {
			earliest = t
		}
		if i == 0 || t.After(latest) {
			latest = t
		}
	}

	b := binner{origin: start, interval: interval}
	if b.origin.IsZero() {
		b.origin = earliest.Truncate(interval)
	}
	var n time.Duration
	if !end.IsZero() {
		n = (end.Sub(b.origin) + interval - 1) / interval
	} else {
		n = latest.Sub(b.origin)/interval + 1
	}
	if n > MaxBuckets {
		return binner{}, false, fmt.Errorf("interval %s needs %d buckets, more than %d", interval, int64(n), MaxBuckets)
	}
	b.n = max(int(n), 1)
	return b, true, nil
}

func (b binner) index(t time.Time) int {
	return int(t.Sub(b.origin) / b.interval)
}

func (b binner) start(i int) time.Time {
	return b.origin.Add(time.Duration(i) * b.interval)
}
