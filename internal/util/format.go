package util

import (
	"fmt"
	"time"
)

// FormatNumber formats an integer with comma separators (e.g., 1234567 -> "1,234,567")
func FormatNumber(n int64) string {
	if n == 0 {
		return "0"
	}

	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	result := ""
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return sign + result
}

// FormatDuration formats a duration into a human-readable short form (e.g., "5m", "2h", "3d")
func FormatDuration(d time.Duration) string {
	totalSeconds := int(d.Seconds())
	if totalSeconds < 60 {
		return fmt.Sprintf("%ds", totalSeconds)
	}
	if totalSeconds < 3600 {
		return fmt.Sprintf("%dm", totalSeconds/60)
	}
	if totalSeconds < 86400 {
		return fmt.Sprintf("%dh", totalSeconds/3600)
	}
	return fmt.Sprintf("%dd", totalSeconds/86400)
}
