// Package calendar defines the day boundaries used for "today" and for the
// daily buckets of the historical valuation series. All boundaries are taken
// in a single configured zone.
package calendar

import "time"

// DateFormat is the ISO-8601 calendar date layout.
const DateFormat = "2006-01-02"

// Date represents a civil date with day-level granularity.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month, and day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{t.Year(), t.Month(), t.Day()}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, err
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

func (d Date) time() time.Time { return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, time.UTC) }

// String formats the date as YYYY-MM-DD.
func (d Date) String() string { return d.time().Format(DateFormat) }

// IsZero returns true if the date is the zero value.
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }

// Next returns the following day.
func (d Date) Next() Date { return NewDate(d.y, d.m, d.d+1) }

// Prev returns the preceding day.
func (d Date) Prev() Date { return NewDate(d.y, d.m, d.d-1) }

// Before reports whether d is before x.
func (d Date) Before(x Date) bool { return d.time().Before(x.time()) }

// After reports whether d is after x.
func (d Date) After(x Date) bool { return d.time().After(x.time()) }

// Calendar maps instants to dates in one location.
type Calendar struct {
	loc *time.Location
	now func() time.Time
}

// New returns a Calendar for loc. A nil loc means UTC.
func New(loc *time.Location) *Calendar {
	if loc == nil {
		loc = time.UTC
	}
	return &Calendar{loc: loc, now: time.Now}
}

// WithClock returns a copy of c that reads the current time from now.
func (c *Calendar) WithClock(now func() time.Time) *Calendar {
	cp := *c
	cp.now = now
	return &cp
}

// Location returns the zone that defines day boundaries.
func (c *Calendar) Location() *time.Location { return c.loc }

// Now returns the current instant in the calendar's zone.
func (c *Calendar) Now() time.Time { return c.now().In(c.loc) }

// DateOf returns the civil date of t in the calendar's zone.
func (c *Calendar) DateOf(t time.Time) Date {
	y, m, d := t.In(c.loc).Date()
	return Date{y, m, d}
}

// Today returns the current civil date.
func (c *Calendar) Today() Date { return c.DateOf(c.now()) }

// Bounds returns the half-open interval [start, end) covering d.
// DST transitions make some days shorter or longer than 24h.
func (c *Calendar) Bounds(d Date) (start, end time.Time) {
	start = time.Date(d.y, d.m, d.d, 0, 0, 0, 0, c.loc)
	end = time.Date(d.y, d.m, d.d+1, 0, 0, 0, 0, c.loc)
	return start, end
}

// TodayRange returns the bounds of the current day.
func (c *Calendar) TodayRange() (start, end time.Time) {
	return c.Bounds(c.Today())
}
