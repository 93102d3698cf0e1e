package timeline

// =============================================================================
// INTERVAL - Inclusive validity window of a configuration
// =============================================================================

// Interval is [Start, End]. A nil End means the interval is open and extends
// indefinitely into the future.
type Interval struct {
	Start Date
	End   *Date
}

// IsOpen reports whether the interval has no end date.
func (i Interval) IsOpen() bool { return i.End == nil }

// Contains returns true if d is within [Start, End].
func (i Interval) Contains(d Date) bool {
	return d.AfterOrEqual(i.Start) && (i.End == nil || d.BeforeOrEqual(*i.End))
}

// Overlaps returns true if the two intervals share at least one day.
func (i Interval) Overlaps(other Interval) bool {
	if i.End != nil && i.End.Before(other.Start) {
		return false
	}
	if other.End != nil && other.End.Before(i.Start) {
		return false
	}
	return true
}

// IsWellFormed returns false when End precedes Start.
func (i Interval) IsWellFormed() bool {
	return i.End == nil || !i.End.Before(i.Start)
}

func (i Interval) String() string {
	if i.End == nil {
		return "[" + i.Start.String() + ", open)"
	}
	return "[" + i.Start.String() + ", " + i.End.String() + "]"
}
