package history

import "context"

// =============================================================================
// STORE - Persistence boundary for employee histories
// =============================================================================

// Store loads and saves an employee's full history.
//
// SaveHistory replaces the employee's stored sequence atomically. Records are
// never dropped by the ledger; a save always contains every previously loaded
// record (possibly with a new EndDate) plus any new ones.
type Store interface {
	// LoadHistory returns the employee's records ordered by EffectiveDate.
	// An unknown employee has an empty history, not an error.
	LoadHistory(ctx context.Context, employeeID EmployeeID) ([]Record, error)

	SaveHistory(ctx context.Context, employeeID EmployeeID, records []Record) error
}

// TxStore wraps Store with transaction support.
// Used by Commit so that a multi-employee batch is written all-or-nothing.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, every write made through the Store passed to fn is
	// rolled back.
	WithTx(ctx context.Context, fn func(Store) error) error
}
