package hours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	t.Parallel()

	iv, err := ParseInterval("17:00-22:30")
	require.NoError(t, err)
	assert.Equal(t, Interval{Open: 17 * 60, Close: 22*60 + 30}, iv)

	iv, err = ParseInterval("0:0-0:0")
	require.NoError(t, err)
	assert.True(t, iv.ClosedAllDay())

	for _, raw := range []string{"", "17:00", "ab:00-22:00", "25:00-1:00", "10:61-12:00"} {
		_, err := ParseInterval(raw)
		assert.ErrorIs(t, err, ErrInvalidInterval, raw)
	}
}

func TestIsWithinHours(t *testing.T) {
	t.Parallel()

	week := Week{
		"Monday":   "22:00-2:00",
		"Tuesday":  "0:00-0:00",
		"Friday":   "17:00-22:00",
		"Saturday": "bogus",
	}

	tests := []struct {
		name    string
		weekday time.Weekday
		clock   Clock
		want    bool
	}{
		{"wrap late evening", time.Monday, Clock{23, 30}, true},
		{"wrap after midnight", time.Monday, Clock{1, 59}, true},
		{"wrap close boundary", time.Monday, Clock{2, 0}, false},
		{"wrap early morning", time.Monday, Clock{3, 0}, false},
		{"wrap open boundary", time.Monday, Clock{22, 0}, true},
		{"closed all day midnight", time.Tuesday, Clock{0, 0}, false},
		{"closed all day noon", time.Tuesday, Clock{12, 0}, false},
		{"regular inside", time.Friday, Clock{19, 0}, true},
		{"regular close boundary", time.Friday, Clock{22, 0}, false},
		{"regular before open", time.Friday, Clock{16, 59}, false},
		{"missing day", time.Sunday, Clock{12, 0}, false},
		{"unparseable", time.Saturday, Clock{12, 0}, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, IsWithinHours(week, tc.weekday, tc.clock))
		})
	}
}

func TestIsWithinHoursMatchesIntervalContainment(t *testing.T) {
	t.Parallel()

	samples := []string{"22:00-2:00", "8:00-17:00", "0:00-0:00", "11:30-23:59", "18:00-0:00"}
	for _, raw := range samples {
		iv, err := ParseInterval(raw)
		require.NoError(t, err)
		week := Week{"Wednesday": raw}
		for m := 0; m < 24*60; m++ {
			var want bool
			switch {
			case iv.Open == 0 && iv.Close == 0:
				want = false
			case iv.Close < iv.Open:
				want = m >= iv.Open || m < iv.Close
			default:
				want = iv.Open <= m && m < iv.Close
			}
			got := IsWithinHours(week, time.Wednesday, Clock{m / 60, m % 60})
			if got != want {
				t.Fatalf("hours=%s minute=%d got=%v want=%v", raw, m, got, want)
			}
		}
	}
}

func TestIsOpenAt(t *testing.T) {
	t.Parallel()

	week := Week{
		"Friday":   "17:00-22:00",
		"Saturday": "0:00-0:00",
		"Sunday":   "x-y",
	}
	// 2026-10-16 is a Friday.
	at := func(day, h, m int) time.Time {
		return time.Date(2026, time.October, day, h, m, 0, 0, time.UTC)
	}

	open, msg := IsOpenAt(week, at(16, 19, 0))
	assert.True(t, open)
	assert.Equal(t, "Open now (closes at 22:00)", msg)

	open, msg = IsOpenAt(week, at(16, 9, 0))
	assert.False(t, open)
	assert.Equal(t, "Closed (opens at 17:00)", msg)

	open, msg = IsOpenAt(week, at(17, 12, 0))
	assert.False(t, open)
	assert.Equal(t, "Closed all day on Saturday", msg)

	_, msg = IsOpenAt(week, at(18, 12, 0))
	assert.Equal(t, "Unable to parse hours: x-y", msg)

	_, msg = IsOpenAt(week, at(19, 12, 0))
	assert.Equal(t, "No hours listed for Monday", msg)

	_, msg = IsOpenAt(nil, at(19, 12, 0))
	assert.Equal(t, "Hours not available", msg)
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	week := Week{"Friday": "17:00-22:00", "Monday": "0:00-0:00"}
	assert.Equal(t, "17:00-22:00", Describe(week, time.Friday))
	assert.Equal(t, "closed", Describe(week, time.Monday))
	assert.Equal(t, "not listed", Describe(week, time.Sunday))
}
