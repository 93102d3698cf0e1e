package payroll

import (
	"context"
	"time"

	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
)

// =============================================================================
// EMPLOYEE DIRECTORY - External collaborator (read-mostly)
// =============================================================================

// Employee is the slice of the employee directory this service needs.
// Demographic and compliance fields live elsewhere.
type Employee struct {
	ID        history.EmployeeID
	Name      string
	CreatedAt time.Time

	// Snapshot is a cached copy of the configuration active when it was last
	// synced. Display only: the ledger is authoritative.
	Snapshot *Snapshot
}

type Snapshot struct {
	Kind     payment.Kind
	Summary  string
	RecordID history.RecordID
	SyncedAt time.Time
}

// Directory is the employee directory as seen by payroll.
type Directory interface {
	// GetEmployee returns nil, nil for an unknown employee.
	GetEmployee(ctx context.Context, id history.EmployeeID) (*Employee, error)
	ListEmployees(ctx context.Context) ([]Employee, error)
	SaveEmployee(ctx context.Context, emp Employee) error

	// DeleteEmployee removes an employee that has no history. Deleting an
	// unknown employee is not an error.
	DeleteEmployee(ctx context.Context, id history.EmployeeID) error

	// UpdateSnapshot replaces the cached configuration; nil clears it.
	UpdateSnapshot(ctx context.Context, id history.EmployeeID, snap *Snapshot) error
}
