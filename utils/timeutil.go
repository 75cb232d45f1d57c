package utils

import "time"

// StartOfDay truncates t to midnight in t's own location.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DayKey returns the date-bucket key for t: start-of-day epoch milliseconds
// in t's location. Session.DateKey is always a DayKey of its CreatedAt.
func DayKey(t time.Time) int64 {
	return StartOfDay(t).UnixMilli()
}

// DayRange returns the inclusive [startKey, endKey] date-bucket range
// covering the days of start..end. Because date keys are start-of-day
// values, an inclusive comparison on day keys covers every session created
// on any day in the window.
func DayRange(start, end time.Time) (int64, int64) {
	return DayKey(start), DayKey(end)
}
