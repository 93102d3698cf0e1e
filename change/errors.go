package change

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/driver-pay/history"
)

// ErrInvalidRequest is the sentinel behind AggregateError.
var ErrInvalidRequest = errors.New("change request is invalid")

// AggregateError carries every blocking error (and the non-blocking warnings)
// of a failed validation.
type AggregateError struct {
	RequestID string
	Result    ValidationResult
}

func (e *AggregateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidRequest, strings.Join(e.Result.Errors, "; "))
}

func (e *AggregateError) Unwrap() error { return ErrInvalidRequest }

// BatchError identifies the employee whose append stopped a batch.
// Nothing from the batch was committed.
type BatchError struct {
	RequestID  string
	EmployeeID history.EmployeeID
	Err        error
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("change request %s aborted at employee %s: %v", e.RequestID, e.EmployeeID, e.Err)
}

func (e *BatchError) Unwrap() error { return e.Err }
