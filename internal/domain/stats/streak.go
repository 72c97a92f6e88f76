package stats

import (
	"slices"
	"time"

	"github.com/carboniq/carboniq-rewards/pkg/timeutil"
)

// CurrentStreak returns the number of consecutive UTC calendar days with at
// least one report, ending today. Several reports on one day count once.
// If there is no report dated today the streak is broken and 0 is returned.
func CurrentStreak(timestamps []time.Time, now time.Time) int {
	if len(timestamps) == 0 {
		return 0
	}

	days := make([]time.Time, 0, len(timestamps))
	for _, ts := range timestamps {
		days = append(days, timeutil.StartOfDay(ts))
	}
	slices.SortFunc(days, func(a, b time.Time) int { return b.Compare(a) })
	days = slices.CompactFunc(days, time.Time.Equal)

	today := timeutil.StartOfDay(now)
	if !days[0].Equal(today) {
		return 0
	}

	streak := 1
	expected := today.AddDate(0, 0, -1)
	for _, d := range days[1:] {
		if !d.Equal(expected) {
			break
		}
		streak++
		expected = expected.AddDate(0, 0, -1)
	}
	return streak
}

// LongestStreak extends the recorded longest streak; it never decreases.
func LongestStreak(current, previousLongest int) int {
	return max(current, previousLongest)
}
