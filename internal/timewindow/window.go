// Package timewindow holds the interval arithmetic shared by the scheduling components.
package timewindow

import "time"

// MonthKeyLayout formats the per-month statistics key.
const MonthKeyLayout = "2006-01"

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect. Touching endpoints do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && bStart.Before(aEnd)
}

// Expand widens a window by buffer on both sides.
func Expand(start, end time.Time, buffer time.Duration) (time.Time, time.Time) {
	return start.Add(-buffer), end.Add(buffer)
}

// DayBounds returns the first and last instant of t's calendar day in t's location.
func DayBounds(t time.Time) (time.Time, time.Time) {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	end := time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
	return start, end
}

// MonthKey returns the YYYY-MM calendar month of t in t's location.
func MonthKey(t time.Time) string {
	return t.Format(MonthKeyLayout)
}

// Within reports whether t lies in (from, from+window].
func Within(t, from time.Time, window time.Duration) bool {
	return t.After(from) && !t.After(from.Add(window))
}
