/*
Package history provides the per-employee ledger of payment configurations.

PURPOSE:
  Payroll needs to answer "how was this driver paid on March 3rd?" long after
  the driver's pay model changed. The ledger keeps every configuration an
  employee ever had, each bounded by an inclusive validity interval.

KEY CONCEPTS:
  - Record:   One configuration with [EffectiveDate, EndDate]
  - Sequence: An employee's records ordered by EffectiveDate
  - Ledger:   Store-backed operations (ActiveOn, Current, Append, Stage/Commit)

CRITICAL INVARIANTS (per employee):
  1. ORDERED: Records sorted by EffectiveDate
  2. NON-OVERLAPPING: No day is covered by two records
  3. SINGLE OPEN RECORD: At most one record has no EndDate, and it is the last
  4. NEVER DELETED: Superseded records are closed, not removed

TIMELINE EXAMPLE:
  Append(cfgA, 2024-01-01)   A: [2024-01-01, open)
  Append(cfgB, 2024-06-01)   A: [2024-01-01, 2024-05-31]
                             B: [2024-06-01, open)

UNSUPPORTED:
  Inserting before the earliest record or between closed records (backfill)
  is rejected with TemporalError.

SEE ALSO:
  - ledger.go: Append algorithm
  - store.go: Persistence boundary
  - change/request.go: Batch workflow built on Stage/Commit
*/
package history

import (
	"sort"
	"time"

	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/timeline"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type RecordID string

// =============================================================================
// RECORD - One configuration over one validity interval
// =============================================================================

type Record struct {
	ID            RecordID
	EmployeeID    EmployeeID
	Configuration payment.Configuration

	EffectiveDate timeline.Date  // inclusive
	EndDate       *timeline.Date // inclusive; nil = current/open

	// Audit fields
	CreatedBy  string
	CreatedAt  time.Time
	ModifiedBy string // actor who last closed or adjusted the record
	ModifiedAt time.Time
	Notes      string
}

// IsCurrent returns true for the open record.
func (r Record) IsCurrent() bool { return r.EndDate == nil }

func (r Record) Interval() timeline.Interval {
	return timeline.Interval{Start: r.EffectiveDate, End: r.EndDate}
}

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	if r.EndDate != nil {
		end := *r.EndDate
		r.EndDate = &end
	}
	return r
}

// =============================================================================
// SEQUENCE - An employee's ordered history
// =============================================================================

type Sequence []Record

// ActiveOn returns the record whose interval contains d, or nil.
func (s Sequence) ActiveOn(d timeline.Date) *Record {
	for i := range s {
		if s[i].Interval().Contains(d) {
			r := s[i].Clone()
			return &r
		}
	}
	return nil
}

// Current returns the open record, or nil.
func (s Sequence) Current() *Record {
	for i := range s {
		if s[i].IsCurrent() {
			r := s[i].Clone()
			return &r
		}
	}
	return nil
}

func (s Sequence) Clone() Sequence {
	if s == nil {
		return nil
	}
	out := make(Sequence, len(s))
	for i, r := range s {
		out[i] = r.Clone()
	}
	return out
}

// Sort orders records by EffectiveDate. Stores call this after loading.
func (s Sequence) Sort() {
	sort.SliceStable(s, func(i, j int) bool {
		return s[i].EffectiveDate.Before(s[j].EffectiveDate)
	})
}

// Validate checks the ordering, non-overlap and single-open-record invariants.
// A violation is reported as *InvariantError.
func (s Sequence) Validate() error {
	for i, r := range s {
		if !r.Interval().IsWellFormed() {
			return &InvariantError{EmployeeID: r.EmployeeID, Detail: "record " + string(r.ID) + " ends before it starts " + r.Interval().String()}
		}
		if i == 0 {
			continue
		}
		prev := s[i-1]
		if !prev.EffectiveDate.Before(r.EffectiveDate) {
			return &InvariantError{EmployeeID: r.EmployeeID, Detail: "records " + string(prev.ID) + " and " + string(r.ID) + " are not in effective-date order"}
		}
		if prev.IsCurrent() {
			return &InvariantError{EmployeeID: r.EmployeeID, Detail: "open record " + string(prev.ID) + " is not the last record"}
		}
		if prev.Interval().Overlaps(r.Interval()) {
			return &InvariantError{EmployeeID: r.EmployeeID, Detail: "records " + string(prev.ID) + " " + prev.Interval().String() + " and " + string(r.ID) + " " + r.Interval().String() + " overlap"}
		}
	}
	return nil
}
