package logger

import "time"

// Status collapses an error into the ok/error status vocabulary.
func Status(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}

// Took measures elapsed time since start, rounded for logging.
func Took(start time.Time) time.Duration {
	return RoundMS(time.Since(start))
}

// RoundMS rounds d to whole milliseconds; negative durations clamp to zero.
func RoundMS(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	return d.Round(time.Millisecond)
}
