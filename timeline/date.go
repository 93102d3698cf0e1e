/*
Package timeline provides calendar dates, inclusive date intervals and an
injectable clock.

PURPOSE:
  Compensation history is tracked at day granularity. An effective date is the
  first day a configuration applies and an end date is the last day it applies,
  both inclusive. Keeping dates as a dedicated type (instead of raw time.Time)
  means "2024-05-31 23:00 in Denver" can never leak into interval math.

KEY CONCEPTS:
  - Date:     A UTC-midnight calendar day
  - Interval: [Start, End] with an optional open End (nil = +infinity)
  - Clock:    Source of "now"; production uses SystemClock, tests use FixedClock

USAGE:
  eff := timeline.NewDate(2024, time.June, 1)
  prevEnd := eff.AddDays(-1) // 2024-05-31

SEE ALSO:
  - interval.go: Containment and overlap checks
  - clock.go: Clock abstraction
*/
package timeline

import (
	"fmt"
	"time"
)

// DateLayout is the wire and storage format for dates.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE - Calendar day (this engine never reasons below day granularity)
// =============================================================================

type Date struct {
	t time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates a timestamp to its calendar day in the timestamp's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return DateOf(t), nil
}

// MustParseDate is ParseDate for literals in tests and fixtures.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.t.Before(other.t) }
func (d Date) After(other Date) bool         { return d.t.After(other.t) }
func (d Date) Equal(other Date) bool         { return d.t.Equal(other.t) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{t: d.t.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int         { return d.t.Year() }
func (d Date) Month() time.Month { return d.t.Month() }
func (d Date) Day() int          { return d.t.Day() }
func (d Date) IsZero() bool      { return d.t.IsZero() }
func (d Date) Time() time.Time   { return d.t }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.t.Format(DateLayout)
}

// DaysBetween returns to - from in whole days (negative when to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.t.Sub(from.t).Hours() / 24)
}

// Ptr returns a pointer to a copy of d. Used for optional end dates.
func (d Date) Ptr() *Date { return &d }
