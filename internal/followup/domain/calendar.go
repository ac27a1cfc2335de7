package domain

import (
	"fmt"
	"time"
)

// MonthDay is a holiday that falls on the same date every year.
type MonthDay struct {
	Month time.Month
	Day   int
}

// CalendarConfig describes the holiday rules of a jurisdiction.
type CalendarConfig struct {
	FixedHolidays []MonthDay
	// EasterOffsets are movable feasts expressed as day offsets from
	// Easter Sunday (e.g. +1 Easter Monday, +39 Ascension, +50 Whit Monday).
	EasterOffsets []int
}

// Calendar answers business-day questions for one jurisdiction.
// It is stateless and safe for concurrent use.
type Calendar struct {
	fixed   []MonthDay
	offsets []int
}

// NewCalendar validates the holiday configuration and builds a Calendar.
// A malformed configuration is fatal at startup, not a per-record condition.
func NewCalendar(cfg CalendarConfig) (*Calendar, error) {
	for _, h := range cfg.FixedHolidays {
		if h.Month < time.January || h.Month > time.December {
			return nil, fmt.Errorf("calendar config: invalid month %d", h.Month)
		}
		if h.Day < 1 || h.Day > 31 {
			return nil, fmt.Errorf("calendar config: invalid day %d for month %s", h.Day, h.Month)
		}
	}
	for _, off := range cfg.EasterOffsets {
		// Easter-derived feasts stay within the same liturgical year.
		if off < -70 || off > 70 {
			return nil, fmt.Errorf("calendar config: easter offset %d out of range", off)
		}
	}
	return &Calendar{fixed: cfg.FixedHolidays, offsets: cfg.EasterOffsets}, nil
}

// FrenchCalendar returns the calendar of French public holidays:
// eight fixed dates plus Lundi de Paques, Ascension and Lundi de Pentecote.
func FrenchCalendar() *Calendar {
	cal, err := NewCalendar(CalendarConfig{
		FixedHolidays: []MonthDay{
			{time.January, 1},   // Jour de l'an
			{time.May, 1},       // Fete du travail
			{time.May, 8},       // Victoire 1945
			{time.July, 14},     // Fete nationale
			{time.August, 15},   // Assomption
			{time.November, 1},  // Toussaint
			{time.November, 11}, // Armistice
			{time.December, 25}, // Noel
		},
		EasterOffsets: []int{1, 39, 50},
	})
	if err != nil {
		panic(err) // static config, cannot fail
	}
	return cal
}

// EasterSunday computes the Gregorian date of Easter Sunday for a year
// using the Meeus/Jones/Butcher algorithm. Exact for any Gregorian year.
func EasterSunday(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451
	month := (h + l - 7*m + 114) / 31
	day := (h+l-7*m+114)%31 + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// IsHoliday reports whether the date part of t is a holiday of this calendar.
func (c *Calendar) IsHoliday(t time.Time) bool {
	year, month, day := t.Date()
	for _, h := range c.fixed {
		if h.Month == month && h.Day == day {
			return true
		}
	}
	easter := EasterSunday(year)
	for _, off := range c.offsets {
		feast := easter.AddDate(0, 0, off)
		fy, fm, fd := feast.Date()
		if fy == year && fm == month && fd == day {
			return true
		}
	}
	return false
}

// IsBusinessDay reports whether the date part of t is neither a weekend
// day nor a holiday.
func (c *Calendar) IsBusinessDay(t time.Time) bool {
	if wd := t.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	return !c.IsHoliday(t)
}

// AddBusinessDays advances t by n business days, one calendar day at a
// time, counting only business days. n must be non-negative. For n = 0
// the result is t itself when t falls on a business day, otherwise the
// next business day after t. The clock time of t is preserved.
func (c *Calendar) AddBusinessDays(t time.Time, n int) (time.Time, error) {
	if n < 0 {
		return time.Time{}, fmt.Errorf("add business days: negative count %d", n)
	}

	current := t
	if n == 0 {
		for !c.IsBusinessDay(current) {
			current = current.AddDate(0, 0, 1)
		}
		return current, nil
	}

	added := 0
	for added < n {
		current = current.AddDate(0, 0, 1)
		if c.IsBusinessDay(current) {
			added++
		}
	}
	return current, nil
}
