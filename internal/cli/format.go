// Package cli provides the command-line interface for the signal bot.
package cli

import (
	"fmt"
	"math"
	"time"
)

const timestampLayout = "2006-01-02 15:04:05.000"

// FormatTimestamp formats a nanosecond timestamp in UTC.
func FormatTimestamp(ns uint64) string {
	if ns > math.MaxInt64 {
		return fmt.Sprintf("%dns", ns)
	}
	return time.Unix(0, int64(ns)).UTC().Format(timestampLayout)
}

// FormatOptionalTimestamp formats ts, or "never" when it is unset.
func FormatOptionalTimestamp(ts *uint64) string {
	if ts == nil {
		return "never"
	}
	return FormatTimestamp(*ts)
}

// FormatPrice formats a price with appropriate decimal places.
func FormatPrice(price float64) string {
	if math.Abs(price) >= 10 {
		return fmt.Sprintf("%.2f", price)
	}
	return fmt.Sprintf("%.4f", price)
}

// FormatConfidence formats a 0..1 confidence as a percentage.
func FormatConfidence(conf float64) string {
	return fmt.Sprintf("%.0f%%", conf*100)
}

// FormatProfitLoss formats a realized P&L, or "-" when none is recorded.
func FormatProfitLoss(pl *float64) string {
	if pl == nil {
		return "-"
	}
	if *pl > 0 {
		return fmt.Sprintf("+%.2f", *pl)
	}
	return fmt.Sprintf("%.2f", *pl)
}

// FormatDuration formats a duration in human-readable form.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	} else if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	} else if d < 24*time.Hour {
		return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
	}
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	return fmt.Sprintf("%dd %dh", days, hours)
}

// TruncateString truncates a string to max runes with ellipsis.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
