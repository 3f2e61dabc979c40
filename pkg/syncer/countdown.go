package syncer

import (
	"fmt"
	"time"
)

// FormatRemaining renders the wait until next as a compact countdown.
// Empty string means no wait: next is zero or has already passed.
// The duration is floored to whole seconds, so components never run
// negative.
func FormatRemaining(next, now time.Time) string {
	if next.IsZero() || !next.After(now) {
		return ""
	}

	diff := int64(next.Sub(now) / time.Second)
	hours := diff / 3600
	minutes := (diff % 3600) / 60
	seconds := diff % 60

	switch {
	case hours > 24:
		return fmt.Sprintf("%dd %dh %dm", hours/24, hours%24, minutes)
	case hours > 0:
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	case minutes > 0:
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	default:
		return fmt.Sprintf("%ds", seconds)
	}
}
