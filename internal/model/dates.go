package model

import "time"

// EndOfDayNanos is the sub-second part used for day-end boundaries,
// matching millisecond-precision clients (23:59:59.999).
const EndOfDayNanos = 999 * int(time.Millisecond)

// StartOfDay returns midnight of t's date in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// EndOfDay returns 23:59:59.999 of t's date in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, EndOfDayNanos, t.Location())
}

// ISOWeekday returns the weekday of t with Monday = 1 ... Sunday = 7.
func ISOWeekday(t time.Time) int {
	return NormalizeWeekday(int(t.Weekday()))
}

// NormalizeWeekday folds Sunday (0) onto 7 so that weekdays sort with
// Monday first. Values outside 0..7 are returned as -1.
func NormalizeWeekday(d int) int {
	switch {
	case d == 0:
		return 7
	case d >= 1 && d <= 7:
		return d
	default:
		return -1
	}
}

// ClockOf returns the time-of-day of t as a duration since midnight.
func ClockOf(t time.Time) time.Duration {
	h, m, s := t.Clock()
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute +
		time.Duration(s)*time.Second + time.Duration(t.Nanosecond())
}

// AtClock returns day's date at the given time-of-day of clock.
func AtClock(day, clock time.Time) time.Time {
	y, m, d := day.Date()
	h, mi, s := clock.Clock()
	return time.Date(y, m, d, h, mi, s, clock.Nanosecond(), day.Location())
}
