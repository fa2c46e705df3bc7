// Package duration parses the human-readable windows accepted by --since.
package duration

import (
	"fmt"
	"strings"
	"time"
)

const day = 24 * time.Hour

// ParseDuration parses human-readable durations like "1w", "30d", "6mo".
// Plain Go durations such as "90m" or "1h30m" are accepted too.
func ParseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)

	var n int
	var unit string
	if _, err := fmt.Sscanf(s, "%d%s", &n, &unit); err != nil {
		return 0, fmt.Errorf("invalid duration format: %s (use e.g., 1w, 30d, 6mo)", s)
	}
	if n < 0 {
		return 0, fmt.Errorf("duration must not be negative: %s", s)
	}

	switch unit {
	case "m", "min", "mins":
		return time.Duration(n) * time.Minute, nil
	case "h", "hr", "hrs", "hour", "hours":
		return time.Duration(n) * time.Hour, nil
	case "d", "day", "days":
		return time.Duration(n) * day, nil
	case "w", "wk", "wks", "week", "weeks":
		return time.Duration(n) * 7 * day, nil
	case "mo", "month", "months":
		return time.Duration(n) * 30 * day, nil
	case "y", "yr", "yrs", "year", "years":
		return time.Duration(n) * 365 * day, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	return 0, fmt.Errorf("unknown duration unit: %s", unit)
}

// Since returns the instant the window s reaches back to from now.
// An empty s means no lower bound and yields the zero time.
func Since(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	d, err := ParseDuration(s)
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(-d), nil
}
