package services

import (
	"fmt"
	"math"
	"time"
)

// AgeDateLayout is used once a reading is a day old or more
const AgeDateLayout = "1/2/2006"

// FormatAge renders how long ago a reading was observed.
// observedAt is epoch seconds, nowMillis epoch milliseconds.
func FormatAge(observedAt int64, nowMillis int64) string {
	diffMs := nowMillis - observedAt*1000
	mins := int64(math.Floor(float64(diffMs) / 60000))

	if mins < 1 {
		return "Just now"
	}
	if mins < 60 {
		return fmt.Sprintf("%dm ago", mins)
	}
	hours := mins / 60
	if hours < 24 {
		return fmt.Sprintf("%dh ago", hours)
	}
	return time.Unix(observedAt, 0).Format(AgeDateLayout)
}

// FormatAgeAt is FormatAge with a time.Time for now
func FormatAgeAt(observedAt int64, now time.Time) string {
	return FormatAge(observedAt, now.UnixMilli())
}
