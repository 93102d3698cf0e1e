package timeline

import "time"

// Clock supplies the current time. Everything that needs "today" takes a Clock
// so that validation and history stamping stay deterministic under test.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock struct {
	At time.Time
}

func (c FixedClock) Now() time.Time { return c.At }

// FixedClockOn returns a FixedClock at midnight UTC of the given date.
func FixedClockOn(d Date) FixedClock { return FixedClock{At: d.Time()} }

// Today returns the calendar day of c.Now().
func Today(c Clock) Date { return DateOf(c.Now()) }
