package utils

import (
	"fmt"
	"math"
)

// FormatMinutes renders a minute count as "45m", "1h 15m" or "2h".
// Negative values render as "0m".
func FormatMinutes(totalMinutes float64) string {
	if totalMinutes < 0 {
		return "0m"
	}
	m := int(math.Round(totalMinutes))
	if m < 60 {
		return fmt.Sprintf("%dm", m)
	}
	hours := m / 60
	mins := m % 60
	if mins > 0 {
		return fmt.Sprintf("%dh %dm", hours, mins)
	}
	return fmt.Sprintf("%dh", hours)
}
