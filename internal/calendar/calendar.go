/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

// Package calendar decides when the weekly sign-up window is open and when a
// new cycle begins. Everything here is pure: callers pass the current instant.
package calendar

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidWeekday = errors.New("invalid weekday")
	ErrInvalidClock   = errors.New("invalid time of day")
)

// Window is a recurring weekly interval. It opens on OpenDay at
// OpenHour:OpenMinute and closes on the following CloseDay at
// CloseHour:CloseMinute, both in Location.
type Window struct {
	OpenDay     time.Weekday
	OpenHour    int
	OpenMinute  int
	CloseDay    time.Weekday
	CloseHour   int
	CloseMinute int
	Location    *time.Location
}

// DefaultWindow opens Friday at 18:00 and closes Monday at 22:00.
func DefaultWindow(loc *time.Location) Window {
	return Window{
		OpenDay:   time.Friday,
		OpenHour:  18,
		CloseDay:  time.Monday,
		CloseHour: 22,
		Location:  loc,
	}
}

func (w Window) Validate() error {
	if w.Location == nil {
		return errors.New("window has no location")
	}
	if w.OpenDay < time.Sunday || w.OpenDay > time.Saturday {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, w.OpenDay)
	}
	if w.CloseDay < time.Sunday || w.CloseDay > time.Saturday {
		return fmt.Errorf("%w: %d", ErrInvalidWeekday, w.CloseDay)
	}
	if !validClock(w.OpenHour, w.OpenMinute) {
		return fmt.Errorf("%w: opening %02d:%02d", ErrInvalidClock, w.OpenHour, w.OpenMinute)
	}
	if !validClock(w.CloseHour, w.CloseMinute) {
		return fmt.Errorf("%w: closing %02d:%02d", ErrInvalidClock, w.CloseHour, w.CloseMinute)
	}
	return nil
}

// Anchor returns the most recent opening instant at or before now.
func (w Window) Anchor(now time.Time) time.Time {
	now = now.In(w.Location)

	back := (int(now.Weekday()) - int(w.OpenDay) + 7) % 7
	y, m, d := now.Date()

	anchor := time.Date(y, m, d-back, w.OpenHour, w.OpenMinute, 0, 0, w.Location)
	if anchor.After(now) {
		anchor = time.Date(y, m, d-back-7, w.OpenHour, w.OpenMinute, 0, 0, w.Location)
	}

	return anchor
}

// CloseAfter returns the first closing instant strictly after anchor.
func (w Window) CloseAfter(anchor time.Time) time.Time {
	anchor = anchor.In(w.Location)

	ahead := (int(w.CloseDay) - int(w.OpenDay) + 7) % 7
	y, m, d := anchor.Date()

	closing := time.Date(y, m, d+ahead, w.CloseHour, w.CloseMinute, 0, 0, w.Location)
	if !closing.After(anchor) {
		closing = time.Date(y, m, d+ahead+7, w.CloseHour, w.CloseMinute, 0, 0, w.Location)
	}

	return closing
}

// NextOpen returns the first opening instant strictly after now.
func (w Window) NextOpen(now time.Time) time.Time {
	anchor := w.Anchor(now)
	y, m, d := anchor.Date()

	return time.Date(y, m, d+7, w.OpenHour, w.OpenMinute, 0, 0, w.Location)
}

// IsOpen reports whether now lies in [opening, closing) of the current week.
func (w Window) IsOpen(now time.Time) bool {
	return now.Before(w.CloseAfter(w.Anchor(now)))
}

// NeedsRollover reports whether the weekly anchor has been crossed since
// lastReset. A zero lastReset means no cycle was ever started.
func (w Window) NeedsRollover(now, lastReset time.Time) bool {
	if lastReset.IsZero() {
		return true
	}

	anchor := w.Anchor(now)

	return lastReset.Before(anchor) && !anchor.After(now)
}

func (w Window) String() string {
	return fmt.Sprintf("%s %02d:%02d - %s %02d:%02d (%s)",
		w.OpenDay, w.OpenHour, w.OpenMinute,
		w.CloseDay, w.CloseHour, w.CloseMinute,
		w.Location)
}

// ParseWeekday accepts full English weekday names and their three-letter
// abbreviations, in any case.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if len(s) >= 3 {
		for d := time.Sunday; d <= time.Saturday; d++ {
			name := strings.ToLower(d.String())
			if s == name || s == name[:3] {
				return d, nil
			}
		}
	}

	return time.Sunday, fmt.Errorf("%w: %q", ErrInvalidWeekday, s)
}

// ParseClock parses a 24-hour "HH:MM" time of day.
func ParseClock(s string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	hour, err = strconv.Atoi(h)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}
	minute, err = strconv.Atoi(m)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	if !validClock(hour, minute) {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidClock, s)
	}

	return hour, minute, nil
}

func validClock(hour, minute int) bool {
	return hour >= 0 && hour < 24 && minute >= 0 && minute < 60
}
