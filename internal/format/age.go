package format

import (
	"fmt"
	"time"
)

// Age formats the time elapsed since t relative to now. A zero time renders as "-".
func Age(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return FormatAge(now.Sub(t))
}

// FormatAge formats a duration as a human-readable age string.
// Uses compact format: "now", "5m", "2h", "3d", "2w", "3mo".
func FormatAge(d time.Duration) string {
	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	days := int(d.Hours() / 24)
	if days < 7 {
		return fmt.Sprintf("%dd", days)
	}
	if days < 30 {
		weeks := days / 7
		return fmt.Sprintf("%dw", weeks)
	}
	months := days / 30
	return fmt.Sprintf("%dmo", months)
}
