package timewindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func datetime(year int, month time.Month, day, hour, min int) time.Time {
	return time.Date(year, month, day, hour, min, 0, 0, time.UTC)
}

func TestOverlaps(t *testing.T) {
	aStart := datetime(2026, 1, 15, 10, 0)
	aEnd := datetime(2026, 1, 15, 12, 0)

	tests := []struct {
		name     string
		start    time.Time
		end      time.Time
		expected bool
	}{
		{"before", datetime(2026, 1, 15, 8, 0), datetime(2026, 1, 15, 9, 0), false},
		{"touching start", datetime(2026, 1, 15, 9, 0), datetime(2026, 1, 15, 10, 0), false},
		{"starts during", datetime(2026, 1, 15, 11, 0), datetime(2026, 1, 15, 13, 0), true},
		{"ends during", datetime(2026, 1, 15, 9, 0), datetime(2026, 1, 15, 11, 0), true},
		{"contains", datetime(2026, 1, 15, 9, 0), datetime(2026, 1, 15, 13, 0), true},
		{"contained", datetime(2026, 1, 15, 10, 30), datetime(2026, 1, 15, 11, 30), true},
		{"touching end", datetime(2026, 1, 15, 12, 0), datetime(2026, 1, 15, 13, 0), false},
		{"after", datetime(2026, 1, 15, 13, 0), datetime(2026, 1, 15, 14, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Overlaps(aStart, aEnd, tt.start, tt.end))
			assert.Equal(t, tt.expected, Overlaps(tt.start, tt.end, aStart, aEnd))
		})
	}
}

func TestExpand(t *testing.T) {
	start, end := Expand(datetime(2026, 1, 15, 19, 0), datetime(2026, 1, 15, 20, 0), time.Hour)
	assert.Equal(t, datetime(2026, 1, 15, 18, 0), start)
	assert.Equal(t, datetime(2026, 1, 15, 21, 0), end)
}

func TestDayBounds(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	start, end := DayBounds(time.Date(2026, 1, 15, 23, 30, 0, 0, loc))

	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, loc), start)
	assert.Equal(t, time.Date(2026, 1, 15, 23, 59, 59, 999000000, loc), end)
	assert.Equal(t, loc, start.Location())
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2026-01", MonthKey(datetime(2026, 1, 31, 23, 0)))

	// Local calendar month, not UTC.
	loc := time.FixedZone("UTC+2", 2*3600)
	assert.Equal(t, "2026-02", MonthKey(time.Date(2026, 2, 1, 0, 30, 0, 0, loc)))
}

func TestWithin(t *testing.T) {
	now := datetime(2026, 1, 15, 18, 0)
	assert.True(t, Within(datetime(2026, 1, 15, 18, 30), now, 30*time.Minute))
	assert.True(t, Within(datetime(2026, 1, 15, 18, 1), now, 30*time.Minute))
	assert.False(t, Within(datetime(2026, 1, 15, 18, 31), now, 30*time.Minute))
	assert.False(t, Within(now, now, 30*time.Minute))
	assert.False(t, Within(datetime(2026, 1, 15, 17, 59), now, 30*time.Minute))
}
