package utils

import (
	"time"
)

// ClockTime formats a wall-clock timestamp the way chat messages
// display it.
func ClockTime(t time.Time) string {
	return t.Format("15:04")
}
