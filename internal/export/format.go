package export

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as "12.35 km" from one kilometre up, "850 m" below
func FormatDistance(meters float64) string {
	if meters >= 1000 {
		return fmt.Sprintf("%.2f km", meters/1000)
	}
	return fmt.Sprintf("%d m", int(math.Round(meters)))
}

// FormatDuration renders seconds as "1h 5min" or "42min"
func FormatDuration(seconds float64) string {
	total := int(seconds)
	hours := total / 3600
	minutes := (total % 3600) / 60

	if hours > 0 {
		return fmt.Sprintf("%dh %dmin", hours, minutes)
	}
	return fmt.Sprintf("%dmin", minutes)
}
