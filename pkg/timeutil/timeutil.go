// Package timeutil provides UTC time utilities for accrual arithmetic.
// All ledger timestamps are stored and compared in UTC; interest accrual
// operates on whole elapsed seconds, so sub-second precision is dropped.
// No external dependencies - uses only standard library.
package timeutil

import "time"

// Now returns the current time in UTC truncated to whole seconds.
func Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// ToUTC converts a time to UTC truncated to whole seconds.
func ToUTC(t time.Time) time.Time {
	return t.UTC().Truncate(time.Second)
}

// ElapsedSeconds returns the number of whole seconds between from and to.
// Returns 0 when to does not lie strictly after from, so callers never
// see negative elapsed time from clock skew.
func ElapsedSeconds(from, to time.Time) int64 {
	d := to.Sub(from)
	if d <= 0 {
		return 0
	}
	return int64(d / time.Second)
}

// Date creates a UTC time with the given date at midnight.
func Date(year, month, day int) time.Time {
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsPast reports whether t lies strictly before now.
func IsPast(t, now time.Time) bool {
	return t.Before(now)
}

// FormatTimestamp formats a time for logs and API responses.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
