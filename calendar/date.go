/*
Package calendar provides civil dates and stay-range flattening.

PURPOSE:
  Bookings are expressed in whole calendar days. A stay is the half-open
  interval [check-in, check-out): the guest occupies the room on every night
  from check-in up to, but not including, check-out. This package turns such
  intervals into the list of occupied dates ("date flattening") so that overlap
  testing becomes set intersection.

KEY CONCEPTS:
  - Date: a calendar date with no time component (always midnight UTC)
  - Range: a [Start, End) stay interval, End exclusive
  - OccupancyKey: composite (room, date) key used for set-membership tests

BACK-TO-BACK RULE:
  The check-out day is never occupied. A guest leaving on June 5 and a guest
  arriving on June 5 do not collide.

SEE ALSO:
  - range.go: ExpandDates and OccupancyKey
  - booking/conflict.go: consumer of occupancy keys
*/
package calendar

import (
	"fmt"
	"strings"
	"time"
)

// Layout is the ISO date layout used on every boundary.
const Layout = "2006-01-02"

// compactLayout is the fixed-width layout used inside occupancy keys.
const compactLayout = "20060102"

// =============================================================================
// DATE - Civil date (no time of day, no zone)
// =============================================================================

// Date is a calendar date. The zero value is not a valid date.
type Date struct {
	t time.Time
}

// New returns the date for the given year, month and day.
func New(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime drops the time-of-day part of t, keeping t's own calendar day.
func FromTime(t time.Time) Date {
	return New(t.Year(), t.Month(), t.Day())
}

// Today returns the current date in UTC.
func Today() Date {
	return FromTime(time.Now().UTC())
}

// Parse reads an ISO YYYY-MM-DD date.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", s)
	}
	return Date{t: t}, nil
}

// MustParse is Parse for literals in tests and seed data. It panics on error.
func MustParse(s string) Date {
	d, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }
func (d Date) After(other Date) bool  { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool  { return d.t.Equal(other.t) }
func (d Date) IsZero() bool           { return d.t.IsZero() }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) Time() time.Time   { return d.t }
func (d Date) String() string    { return d.t.Format(Layout) }
func (d Date) Compact() string   { return d.t.Format(compactLayout) }

const secondsPerDay = 24 * 60 * 60

// DaysBetween returns the number of days from a to b (negative if b is before a).
// Dates are UTC midnights, so the day numbers subtract exactly over any span.
func DaysBetween(a, b Date) int {
	return int(b.t.Unix()/secondsPerDay - a.t.Unix()/secondsPerDay)
}

// MarshalText encodes the date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	if d.IsZero() {
		return []byte{}, nil
	}
	return []byte(d.String()), nil
}

// UnmarshalText decodes a YYYY-MM-DD date.
func (d *Date) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*d = Date{}
		return nil
	}
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
