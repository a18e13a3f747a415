package utils

import "time"

const DateLayout = "2006-01-02"

// Today returns the current UTC date truncated to midnight.
func Today() time.Time {
	return DateOf(time.Now())
}

// DateOf drops the clock part of t, in UTC.
func DateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD value.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DatePtr is a convenience for optional date columns.
func DatePtr(t time.Time) *time.Time {
	d := DateOf(t)
	return &d
}
