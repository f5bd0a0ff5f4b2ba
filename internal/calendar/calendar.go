// Package calendar decides whether a moment in time is eligible for a market
// data job: weekday checks, fixed-date holidays and HH:MM windows, all
// evaluated in the exchange's local time zone.
//
// The holiday list is deliberately minimal: only New Year's Day, Independence
// Day and Christmas are recognized. Floating holidays (MLK Day, Thanksgiving,
// Good Friday, ...) and observed dates for holidays that fall on a weekend
// are a known gap, kept as-is until expanding coverage becomes a product
// decision.
package calendar

import (
	"fmt"
	"time"
)

// Calendar answers time-gating questions for one exchange time zone.
// All methods are pure functions of the given time.
type Calendar struct {
	loc *time.Location
}

// New creates a calendar for the given time zone
func New(loc *time.Location) *Calendar {
	return &Calendar{loc: loc}
}

// NewForZone creates a calendar for a named time zone, e.g. "America/New_York"
func NewForZone(name string) (*Calendar, error) {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone %s: %w", name, err)
	}
	return New(loc), nil
}

// Location returns the exchange time zone
func (c *Calendar) Location() *time.Location {
	return c.loc
}

// IsTradingDay reports whether t falls on a trading day: a weekday that is
// not one of the three fixed-date holidays.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	t = t.In(c.loc)

	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	month, day := t.Month(), t.Day()

	// New Year's Day
	if month == time.January && day == 1 {
		return false
	}
	// Independence Day
	if month == time.July && day == 4 {
		return false
	}
	// Christmas Day
	if month == time.December && day == 25 {
		return false
	}

	return true
}

// WithinWindow reports whether t falls inside the [start, end] window, both
// bounds inclusive. Bounds are "HH:MM" strings compared lexicographically.
func (c *Calendar) WithinWindow(t time.Time, start, end string) bool {
	cur := t.In(c.loc).Format("15:04")
	return start <= cur && cur <= end
}

// WithinSession reports whether t falls inside the [open, close) session:
// inclusive at the open, exclusive at the close.
func (c *Calendar) WithinSession(t time.Time, open, close string) bool {
	cur := t.In(c.loc).Format("15:04")
	return open <= cur && cur < close
}

// OnInterval reports whether t's minute-of-hour is aligned to an n-minute
// interval, e.g. n=15 matches :00, :15, :30 and :45.
func (c *Calendar) OnInterval(t time.Time, n int) bool {
	if n <= 0 {
		return true
	}
	return t.In(c.loc).Minute()%n == 0
}

// Today returns t's calendar date at midnight in the exchange time zone
func (c *Calendar) Today(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}
