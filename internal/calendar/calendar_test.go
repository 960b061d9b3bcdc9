/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package calendar

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var israel = time.FixedZone("IDT", 3*60*60)

func at(day, hour, minute int) time.Time {
	// October 2026: the 16th and 23rd are Fridays.
	return time.Date(2026, time.October, day, hour, minute, 0, 0, israel)
}

func TestIsOpen(t *testing.T) {
	w := DefaultWindow(israel)

	tests := []struct {
		name string
		now  time.Time
		want bool
	}{
		{"thursday evening", at(15, 20, 0), false},
		{"friday just before opening", at(16, 17, 59), false},
		{"friday one nanosecond before opening", at(16, 18, 0).Add(-time.Nanosecond), false},
		{"friday exactly at opening", at(16, 18, 0), true},
		{"friday night", at(16, 23, 30), true},
		{"saturday", at(17, 12, 0), true},
		{"sunday", at(18, 3, 0), true},
		{"monday morning", at(19, 9, 0), true},
		{"monday just before closing", at(19, 21, 59), true},
		{"monday exactly at closing", at(19, 22, 0), false},
		{"tuesday", at(20, 12, 0), false},
		{"wednesday", at(21, 12, 0), false},
		{"friday morning next week", at(23, 10, 0), false},
		{"friday next week at opening", at(23, 18, 0), true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.IsOpen(tc.now))
		})
	}
}

func TestIsOpenHonorsLocation(t *testing.T) {
	w := DefaultWindow(israel)

	// 15:30 UTC on Friday is 18:30 in Israel.
	now := time.Date(2026, time.October, 16, 15, 30, 0, 0, time.UTC)
	assert.True(t, w.IsOpen(now))

	// 14:30 UTC on Friday is 17:30 in Israel.
	now = time.Date(2026, time.October, 16, 14, 30, 0, 0, time.UTC)
	assert.False(t, w.IsOpen(now))
}

func TestAnchor(t *testing.T) {
	w := DefaultWindow(israel)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"at opening", at(16, 18, 0), at(16, 18, 0)},
		{"during window", at(18, 10, 0), at(16, 18, 0)},
		{"midweek", at(21, 10, 0), at(16, 18, 0)},
		{"friday before opening", at(23, 17, 0), at(16, 18, 0)},
		{"next opening", at(23, 18, 0), at(23, 18, 0)},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.True(t, tc.want.Equal(w.Anchor(tc.now)), "got %s", w.Anchor(tc.now))
		})
	}
}

func TestAnchorAcrossDST(t *testing.T) {
	loc, err := time.LoadLocation("Asia/Jerusalem")
	require.NoError(t, err)

	w := DefaultWindow(loc)

	// Daylight saving time ends on Sunday 2026-10-25.
	now := time.Date(2026, time.October, 26, 10, 0, 0, 0, loc)
	anchor := w.Anchor(now)
	assert.Equal(t, time.Date(2026, time.October, 23, 18, 0, 0, 0, loc), anchor)
	assert.Equal(t, 18, anchor.Hour())

	closing := w.CloseAfter(anchor)
	assert.Equal(t, time.Date(2026, time.October, 26, 22, 0, 0, 0, loc), closing)
	assert.True(t, w.IsOpen(now))

	// Daylight saving time starts on Friday 2026-03-27 at 02:00.
	now = time.Date(2026, time.March, 27, 18, 0, 0, 0, loc)
	assert.Equal(t, now, w.Anchor(now))
	assert.Equal(t, 18, w.NextOpen(now).Hour())
}

func TestCloseAfterSameDay(t *testing.T) {
	w := Window{
		OpenDay:     time.Wednesday,
		OpenHour:    9,
		CloseDay:    time.Wednesday,
		CloseHour:   17,
		CloseMinute: 30,
		Location:    israel,
	}

	anchor := at(21, 9, 0)
	assert.Equal(t, at(21, 17, 30), w.CloseAfter(anchor))
	assert.True(t, w.IsOpen(at(21, 17, 29)))
	assert.False(t, w.IsOpen(at(21, 17, 30)))
	assert.False(t, w.IsOpen(at(22, 9, 0)))
}

func TestNeedsRollover(t *testing.T) {
	w := DefaultWindow(israel)

	t.Run("first run", func(t *testing.T) {
		assert.True(t, w.NeedsRollover(at(20, 12, 0), time.Time{}))
	})

	t.Run("anchor crossed", func(t *testing.T) {
		assert.True(t, w.NeedsRollover(at(16, 18, 0), at(12, 9, 0)))
	})

	t.Run("idempotent within window", func(t *testing.T) {
		lastReset := at(16, 18, 5)
		for now := at(16, 18, 5); now.Before(at(23, 18, 0)); now = now.Add(37 * time.Minute) {
			require.False(t, w.NeedsRollover(now, lastReset), "rolled over again at %s", now)
		}
		assert.True(t, w.NeedsRollover(at(23, 18, 0), lastReset))
	})

	t.Run("reset exactly at anchor", func(t *testing.T) {
		assert.False(t, w.NeedsRollover(at(17, 0, 0), at(16, 18, 0)))
	})

	t.Run("late catch-up after a missed week", func(t *testing.T) {
		assert.True(t, w.NeedsRollover(at(21, 10, 0), at(2, 18, 0)))
	})
}

func TestParseWeekday(t *testing.T) {
	for in, want := range map[string]time.Weekday{
		"fri":       time.Friday,
		"Friday":    time.Friday,
		" MONDAY ":  time.Monday,
		"sun":       time.Sunday,
		"Saturday":  time.Saturday,
		"wednesday": time.Wednesday,
	} {
		got, err := ParseWeekday(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, in := range []string{"", "fr", "someday", "frid"} {
		_, err := ParseWeekday(in)
		assert.ErrorIs(t, err, ErrInvalidWeekday, in)
	}
}

func TestParseClock(t *testing.T) {
	h, m, err := ParseClock("18:00")
	require.NoError(t, err)
	assert.Equal(t, 18, h)
	assert.Equal(t, 0, m)

	h, m, err = ParseClock("7:45")
	require.NoError(t, err)
	assert.Equal(t, 7, h)
	assert.Equal(t, 45, m)

	for _, in := range []string{"", "18", "24:00", "12:60", "ab:cd", "-1:00"} {
		_, _, err := ParseClock(in)
		assert.ErrorIs(t, err, ErrInvalidClock, in)
	}
}

func TestValidate(t *testing.T) {
	assert.NoError(t, DefaultWindow(israel).Validate())

	w := DefaultWindow(nil)
	assert.Error(t, w.Validate())

	w = DefaultWindow(israel)
	w.CloseHour = 24
	assert.ErrorIs(t, w.Validate(), ErrInvalidClock)

	w = DefaultWindow(israel)
	w.OpenDay = time.Weekday(9)
	assert.ErrorIs(t, w.Validate(), ErrInvalidWeekday)
}
