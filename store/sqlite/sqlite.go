/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Persists payment configuration histories and the employee directory's
  cached configuration snapshot. In production, the same patterns apply to
  PostgreSQL with minor SQL dialect differences.

INTERFACES IMPLEMENTED:
  history.Store:     Load and save an employee's configuration history
  history.TxStore:   Atomic batches for change requests
  payroll.Directory: Employee records and snapshots

APPEND-ONLY ENFORCEMENT:
  History rows are never deleted. Saving a history inserts new records and
  may only set end_date and the modified_* columns of existing ones; every
  other column is fixed at insert time.

KEY TABLES:
  payment_history: One row per configuration record
  employees:       Directory entries with the cached snapshot

INDEXES:
  - idx_payment_history_employee_date: History load (hot path), unique start date
  - idx_payment_history_one_open:      At most one open record per employee

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. WithTx holds the write lock for the
  whole batch; the tx view it hands out only touches the sql.Tx.

USAGE:
  store, err := sqlite.New("./data/driverpay.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  ledger := history.NewLedger(store)

SEE ALSO:
  - history/store.go: Interface definitions
  - history/store/memory.go: In-memory implementation for testing
  - payroll/directory.go: Directory interface
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/payroll"
	"github.com/warp/driver-pay/timeline"
)

var (
	_ history.TxStore   = (*Store)(nil)
	_ payroll.Directory = (*Store)(nil)
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// Every connection to :memory: is a separate database.
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS payment_history (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		driver_percent TEXT,
		company_percent TEXT,
		service_fee_percent TEXT,
		flat_rate_amount TEXT,
		per_mile_rate TEXT,
		effective_date TEXT NOT NULL,
		end_date TEXT,
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL,
		modified_by TEXT,
		modified_at TEXT,
		notes TEXT
	);

	-- Also keeps two records from starting on the same day
	CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_history_employee_date
		ON payment_history(employee_id, effective_date);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_payment_history_one_open
		ON payment_history(employee_id) WHERE end_date IS NULL;

	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		payment_kind TEXT,
		payment_summary TEXT,
		payment_record_id TEXT,
		snapshot_synced_at TEXT
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HISTORY STORE (history.Store interface)
// =============================================================================

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// LoadHistory returns an employee's records ordered by effective date.
func (s *Store) LoadHistory(ctx context.Context, employeeID history.EmployeeID) ([]history.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return loadHistory(ctx, s.db, employeeID)
}

// SaveHistory persists records for one employee in a single transaction.
func (s *Store) SaveHistory(ctx context.Context, employeeID history.EmployeeID, records []history.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := saveHistory(ctx, sqlTx, employeeID, records); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func loadHistory(ctx context.Context, db querier, employeeID history.EmployeeID) ([]history.Record, error) {
	query := `
		SELECT id, employee_id, kind, driver_percent, company_percent, service_fee_percent,
		       flat_rate_amount, per_mile_rate, effective_date, end_date,
		       created_by, created_at, modified_by, modified_at, notes
		FROM payment_history
		WHERE employee_id = ?
		ORDER BY effective_date ASC
	`

	rows, err := db.QueryContext(ctx, query, string(employeeID))
	if err != nil {
		return nil, fmt.Errorf("failed to query payment history: %w", err)
	}
	defer rows.Close()

	var records []history.Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// saveHistory upserts every record. Only the closing columns of an existing
// row can change.
func saveHistory(ctx context.Context, db execer, employeeID history.EmployeeID, records []history.Record) error {
	query := `
		INSERT INTO payment_history (
			id, employee_id, kind, driver_percent, company_percent, service_fee_percent,
			flat_rate_amount, per_mile_rate, effective_date, end_date,
			created_by, created_at, modified_by, modified_at, notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			end_date = excluded.end_date,
			modified_by = excluded.modified_by,
			modified_at = excluded.modified_at
		WHERE payment_history.employee_id = excluded.employee_id
	`

	for _, r := range records {
		if r.EmployeeID != employeeID {
			return fmt.Errorf("record %s belongs to %s, not %s", r.ID, r.EmployeeID, employeeID)
		}
		cfg := r.Configuration
		res, err := db.ExecContext(ctx, query,
			string(r.ID),
			string(r.EmployeeID),
			string(cfg.Kind),
			decimalColumn(cfg.Kind == payment.KindPercentage, cfg.DriverPercent),
			decimalColumn(cfg.Kind == payment.KindPercentage, cfg.CompanyPercent),
			decimalColumn(cfg.Kind == payment.KindPercentage, cfg.ServiceFeePercent),
			decimalColumn(cfg.Kind == payment.KindFlatRate, cfg.FlatRateAmount),
			decimalColumn(cfg.Kind == payment.KindPerMile, cfg.PerMileRate),
			r.EffectiveDate.String(),
			dateColumn(r.EndDate),
			r.CreatedBy,
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
			nullString(r.ModifiedBy),
			timeColumn(r.ModifiedAt),
			nullString(r.Notes),
		)
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: employee %s: %v", history.ErrConcurrentModification, employeeID, err)
		}
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
		// The upsert's WHERE skips a row whose ID is held by another employee.
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to save record %s: %w", r.ID, err)
		}
		if n == 0 {
			return &history.InvariantError{
				EmployeeID: employeeID,
				Detail:     fmt.Sprintf("record id %s is already used by another employee", r.ID),
			}
		}
	}
	return nil
}

func scanRecord(rows *sql.Rows) (history.Record, error) {
	var (
		r                 history.Record
		id, employeeID    string
		kind              string
		driverPercent     sql.NullString
		companyPercent    sql.NullString
		serviceFeePercent sql.NullString
		flatRateAmount    sql.NullString
		perMileRate       sql.NullString
		effectiveDate     string
		endDate           sql.NullString
		createdAt         string
		modifiedBy        sql.NullString
		modifiedAt        sql.NullString
		notes             sql.NullString
	)

	err := rows.Scan(
		&id, &employeeID, &kind,
		&driverPercent, &companyPercent, &serviceFeePercent, &flatRateAmount, &perMileRate,
		&effectiveDate, &endDate, &r.CreatedBy, &createdAt, &modifiedBy, &modifiedAt, &notes,
	)
	if err != nil {
		return r, fmt.Errorf("failed to scan payment record: %w", err)
	}

	r.ID = history.RecordID(id)
	r.EmployeeID = history.EmployeeID(employeeID)

	k, err := payment.ParseKind(kind)
	if err != nil {
		return r, fmt.Errorf("record %s: %w", id, err)
	}
	r.Configuration = payment.Configuration{Kind: k}
	for _, col := range []struct {
		dst *decimal.Decimal
		src sql.NullString
	}{
		{&r.Configuration.DriverPercent, driverPercent},
		{&r.Configuration.CompanyPercent, companyPercent},
		{&r.Configuration.ServiceFeePercent, serviceFeePercent},
		{&r.Configuration.FlatRateAmount, flatRateAmount},
		{&r.Configuration.PerMileRate, perMileRate},
	} {
		if *col.dst, err = parseDecimal(col.src); err != nil {
			return r, fmt.Errorf("record %s: %w", id, err)
		}
	}

	if r.EffectiveDate, err = timeline.ParseDate(effectiveDate); err != nil {
		return r, fmt.Errorf("record %s: %w", id, err)
	}
	if endDate.Valid {
		end, err := timeline.ParseDate(endDate.String)
		if err != nil {
			return r, fmt.Errorf("record %s: %w", id, err)
		}
		r.EndDate = &end
	}

	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return r, fmt.Errorf("record %s: created_at: %w", id, err)
	}
	r.ModifiedBy = modifiedBy.String
	if modifiedAt.Valid {
		if r.ModifiedAt, err = parseTime(modifiedAt.String); err != nil {
			return r, fmt.Errorf("record %s: modified_at: %w", id, err)
		}
	}
	r.Notes = notes.String

	return r, nil
}

// =============================================================================
// TRANSACTIONAL STORE (history.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store history.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// txStore is the history.Store view handed to WithTx callbacks.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) LoadHistory(ctx context.Context, employeeID history.EmployeeID) ([]history.Record, error) {
	return loadHistory(ctx, ts.tx, employeeID)
}

func (ts *txStore) SaveHistory(ctx context.Context, employeeID history.EmployeeID, records []history.Record) error {
	return saveHistory(ctx, ts.tx, employeeID, records)
}

// =============================================================================
// EMPLOYEE DIRECTORY (payroll.Directory interface)
// =============================================================================

// SaveEmployee inserts or renames an employee. The snapshot is left alone.
func (s *Store) SaveEmployee(ctx context.Context, emp payroll.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, name, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name
	`

	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, query,
		string(emp.ID), emp.Name, createdAt.UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DeleteEmployee removes an employee row. Rows with payment history are kept.
func (s *Store) DeleteEmployee(ctx context.Context, id history.EmployeeID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		DELETE FROM employees
		WHERE id = ?
		  AND NOT EXISTS (SELECT 1 FROM payment_history WHERE employee_id = ?)
	`, string(id), string(id))
	return err
}

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id history.EmployeeID) (*payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, employeeSelect+" WHERE id = ?", string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	emp, err := scanEmployee(rows)
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// ListEmployees returns all employees ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]payroll.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, employeeSelect+" ORDER BY name, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []payroll.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// UpdateSnapshot replaces an employee's cached configuration; nil clears it.
func (s *Store) UpdateSnapshot(ctx context.Context, id history.EmployeeID, snap *payroll.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		UPDATE employees
		SET payment_kind = ?, payment_summary = ?, payment_record_id = ?, snapshot_synced_at = ?
		WHERE id = ?
	`

	var kind, summary, recordID, syncedAt sql.NullString
	if snap != nil {
		kind = nullString(string(snap.Kind))
		summary = nullString(snap.Summary)
		recordID = nullString(string(snap.RecordID))
		syncedAt = timeColumn(snap.SyncedAt)
	}

	res, err := s.db.ExecContext(ctx, query, kind, summary, recordID, syncedAt, string(id))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("employee %s: %w", id, payroll.ErrEmployeeNotFound)
	}
	return nil
}

const employeeSelect = `
	SELECT id, name, created_at, payment_kind, payment_summary, payment_record_id, snapshot_synced_at
	FROM employees`

func scanEmployee(rows *sql.Rows) (payroll.Employee, error) {
	var (
		emp                payroll.Employee
		id, createdAt      string
		kind, summary      sql.NullString
		recordID, syncedAt sql.NullString
	)
	if err := rows.Scan(&id, &emp.Name, &createdAt, &kind, &summary, &recordID, &syncedAt); err != nil {
		return emp, fmt.Errorf("failed to scan employee: %w", err)
	}

	emp.ID = history.EmployeeID(id)
	var err error
	if emp.CreatedAt, err = parseTime(createdAt); err != nil {
		return emp, fmt.Errorf("employee %s: created_at: %w", id, err)
	}
	if kind.Valid {
		snap := &payroll.Snapshot{
			Kind:     payment.Kind(kind.String),
			Summary:  summary.String,
			RecordID: history.RecordID(recordID.String),
		}
		if syncedAt.Valid {
			if snap.SyncedAt, err = parseTime(syncedAt.String); err != nil {
				return emp, fmt.Errorf("employee %s: snapshot_synced_at: %w", id, err)
			}
		}
		emp.Snapshot = snap
	}
	return emp, nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"payment_history", "employees"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// decimalColumn stores a value only for the fields its kind uses.
func decimalColumn(used bool, d decimal.Decimal) sql.NullString {
	if !used {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

// parseDecimal reads a nullable decimal column; NULL is zero.
func parseDecimal(ns sql.NullString) (decimal.Decimal, error) {
	if !ns.Valid {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(ns.String)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func dateColumn(d *timeline.Date) sql.NullString {
	if d == nil {
		return sql.NullString{}
	}
	return nullString(d.String())
}

func timeColumn(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return nullString(t.UTC().Format(time.RFC3339Nano))
}

func isUniqueConstraintError(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
