package util

import (
	"fmt"
	"strconv"
	"time"
)

// ParseTime accepts RFC3339 (with or without fractional seconds) and unix
// timestamps in seconds or milliseconds. Values above 1e12 are taken as
// milliseconds.
func ParseTime(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, true
	}
	ts, err := strconv.ParseInt(s, 10, 64)
	if err != nil || ts <= 0 {
		return time.Time{}, false
	}
	if ts > 1e12 {
		return time.UnixMilli(ts), true
	}
	return time.Unix(ts, 0), true
}

// ParseTimeRange resolves optional from/to query values. A missing to means
// now; a missing from means to minus window. Unparseable values are errors
// rather than silently defaulted.
func ParseTimeRange(from, to string, window time.Duration, now time.Time) (time.Time, time.Time, error) {
	end := now
	if to != "" {
		t, ok := ParseTime(to)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid to %q", to)
		}
		end = t
	}
	start := end.Add(-window)
	if from != "" {
		t, ok := ParseTime(from)
		if !ok {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid from %q", from)
		}
		start = t
	}
	if start.After(end) {
		return time.Time{}, time.Time{}, fmt.Errorf("from %s is after to %s", start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return start.UTC(), end.UTC(), nil
}
