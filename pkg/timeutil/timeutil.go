// Package timeutil provides UTC calendar helpers used by reward windows,
// streaks and idempotency buckets.
// All calendar arithmetic is done in UTC.
package timeutil

import (
	"time"
)

// DayLayout and MonthLayout format period buckets.
const (
	DayLayout   = "2006-01-02"
	MonthLayout = "2006-01"
)

// Clock abstracts the current time so callers can pin "now" in tests.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the pinned instant in UTC.
func (c FixedClock) Now() time.Time { return time.Time(c).UTC() }

// Date creates a UTC midnight for the given calendar date.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// StartOfDay returns UTC midnight of t's UTC calendar date.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// StartOfMonth returns the first instant of t's UTC calendar month.
func StartOfMonth(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// RollingWeekStart returns now minus seven days.
func RollingWeekStart(now time.Time) time.Time {
	return now.UTC().Add(-7 * 24 * time.Hour)
}

// IsSameDay reports whether two instants fall on the same UTC date.
func IsSameDay(t1, t2 time.Time) bool {
	return StartOfDay(t1).Equal(StartOfDay(t2))
}

// IsConsecutiveDay reports whether later is exactly one UTC date after earlier.
func IsConsecutiveDay(earlier, later time.Time) bool {
	return StartOfDay(earlier).AddDate(0, 0, 1).Equal(StartOfDay(later))
}

// DaysBetween counts whole UTC calendar days from t1 to t2.
func DaysBetween(t1, t2 time.Time) int {
	return int(StartOfDay(t2).Sub(StartOfDay(t1)).Hours() / 24)
}

// DayKey formats t's UTC date as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return t.UTC().Format(DayLayout)
}

// MonthKey formats t's UTC month as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}
