/*
errors.go - Error types for the history ledger

ERROR CATEGORIES:
  1. Temporal errors - New record conflicts with existing history (client error)
  2. Invariant errors - History would be (or already is) inconsistent (defect)
  3. Input errors - Missing actor or effective date (client error)

Configuration errors come from the payment package and are returned as-is.

USAGE:
  var temporal *history.TemporalError
  if errors.As(err, &temporal) {
      fmt.Println(temporal.EmployeeID, temporal.Reason)
  }
*/
package history

import (
	"errors"
	"fmt"

	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/timeline"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTemporalConflict is the sentinel behind every TemporalError.
	ErrTemporalConflict = errors.New("effective date conflicts with history")

	// ErrInternalConsistency marks a broken ledger invariant. Never retried,
	// never repaired.
	ErrInternalConsistency = errors.New("history invariant violated")

	// ErrConcurrentModification is returned by Commit when an employee's history
	// changed between Stage and Commit.
	ErrConcurrentModification = errors.New("concurrent modification detected")

	ErrActorRequired         = errors.New("actor is required")
	ErrEffectiveDateRequired = errors.New("effective date is required")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// TemporalError reports an effective date the ledger cannot accept.
type TemporalError struct {
	EmployeeID    EmployeeID
	EffectiveDate timeline.Date
	ConflictID    RecordID // record the new date collides with, if any
	Reason        string
}

func (e *TemporalError) Error() string {
	return fmt.Sprintf("employee %s: effective date %s rejected: %s", e.EmployeeID, e.EffectiveDate, e.Reason)
}

func (e *TemporalError) Unwrap() error { return ErrTemporalConflict }

// InvariantError reports a history that breaks ordering or non-overlap.
type InvariantError struct {
	EmployeeID EmployeeID
	Detail     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("employee %s: %s: %s", e.EmployeeID, ErrInternalConsistency, e.Detail)
}

func (e *InvariantError) Unwrap() error { return ErrInternalConsistency }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is caused by caller input.
func IsClientError(err error) bool {
	return errors.Is(err, payment.ErrInvalidConfiguration) ||
		errors.Is(err, ErrTemporalConflict) ||
		errors.Is(err, ErrActorRequired) ||
		errors.Is(err, ErrEffectiveDateRequired)
}

// IsRetryable returns true if the same input might succeed later.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsConflict returns true if the error contradicts existing history.
func IsConflict(err error) bool {
	return errors.Is(err, ErrTemporalConflict) || errors.Is(err, ErrConcurrentModification)
}
