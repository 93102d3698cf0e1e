/*
Package payroll is the entry point used by the API and background jobs.

PURPOSE:
  Ties the history ledger, the change-request workflow and the employee
  directory together:
  - Serializes change requests that touch the same employees
  - Resolves the configuration active on a load date and prices the load
  - Registers employees coming from ingestion with an initial configuration
  - Keeps the directory's cached configuration snapshot in step with the ledger

LOCKING:
  The ledger performs no locking. Service holds one mutex per employee and
  acquires a request's employees in sorted order, so two overlapping requests
  never interleave and never deadlock.

SEE ALSO:
  - change/request.go: Batch validation and staging
  - history/ledger.go: Append algorithm
  - api/scheduler.go: Periodic snapshot sync
*/
package payroll

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/warp/driver-pay/change"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/timeline"
)

var (
	// ErrNoActiveConfiguration is returned when no record covers the load date.
	ErrNoActiveConfiguration = errors.New("no active payment configuration")

	ErrEmployeeNotFound = errors.New("employee not found")
	ErrEmployeeExists   = errors.New("employee already exists")
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	ledger    *history.Ledger
	directory Directory
	logger    *zap.Logger
	metrics   *Metrics
	locks     employeeLocks
}

func NewService(ledger *history.Ledger, directory Directory, logger *zap.Logger, metrics *Metrics) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		ledger:    ledger,
		directory: directory,
		logger:    logger,
		metrics:   metrics,
		locks:     employeeLocks{locks: make(map[history.EmployeeID]*sync.Mutex)},
	}
}

// Today is the ledger clock's current date.
func (s *Service) Today() timeline.Date { return timeline.Today(s.ledger.Clock()) }

// NewChangeRequest returns a Draft request on the service clock.
func (s *Service) NewChangeRequest() *change.Request {
	return change.NewRequest(s.ledger.Clock())
}

func (s *Service) History(ctx context.Context, id history.EmployeeID) (history.Sequence, error) {
	return s.ledger.History(ctx, id)
}

func (s *Service) ActiveOn(ctx context.Context, id history.EmployeeID, d timeline.Date) (*history.Record, error) {
	return s.ledger.ActiveOn(ctx, id, d)
}

func (s *Service) GetEmployee(ctx context.Context, id history.EmployeeID) (*Employee, error) {
	return s.directory.GetEmployee(ctx, id)
}

func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.directory.ListEmployees(ctx)
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// ApplyChangeRequest applies req to every target, all or nothing, while
// holding the targets' locks. Unknown employees abort the batch.
func (s *Service) ApplyChangeRequest(ctx context.Context, req *change.Request, actor string) ([]history.Record, error) {
	targets := req.Targets()
	unlock := s.locks.lock(targets)
	defer unlock()

	log := s.logger.With(zap.String("change_request_id", req.ID), zap.String("actor", actor), zap.Int("employees", len(targets)))

	if result := req.Validate(); !result.Valid {
		s.metrics.changeRequest("invalid", 0)
		log.Info("change request rejected by validation", zap.Strings("errors", result.Errors))
		return nil, &change.AggregateError{RequestID: req.ID, Result: result}
	}

	for _, id := range targets {
		emp, err := s.directory.GetEmployee(ctx, id)
		if err != nil {
			s.metrics.changeRequest("failed", 0)
			return nil, fmt.Errorf("failed to look up employee %s: %w", id, err)
		}
		if emp == nil {
			s.metrics.changeRequest("rejected", 0)
			return nil, &change.BatchError{RequestID: req.ID, EmployeeID: id, Err: ErrEmployeeNotFound}
		}
	}

	records, err := req.Apply(ctx, s.ledger, actor)
	if err != nil {
		outcome := "failed"
		if history.IsClientError(err) || errors.Is(err, ErrEmployeeNotFound) {
			outcome = "rejected"
		}
		s.metrics.changeRequest(outcome, 0)
		log.Warn("change request not applied", zap.String("outcome", outcome), zap.Error(err))
		return nil, err
	}

	s.metrics.changeRequest("applied", len(records))
	log.Info("change request applied",
		zap.String("configuration", req.Configuration().Describe()),
		zap.Stringer("effective_date", req.EffectiveDate()),
		zap.Strings("warnings", req.Result().Warnings),
	)

	today := s.Today()
	for _, id := range targets {
		if err := s.RefreshSnapshot(ctx, id, today); err != nil {
			log.Warn("snapshot refresh failed", zap.String("employee_id", string(id)), zap.Error(err))
		}
	}
	return records, nil
}

// =============================================================================
// LOAD PAYMENT
// =============================================================================

// LoadPayment is the priced result of one load.
type LoadPayment struct {
	EmployeeID history.EmployeeID
	Date       timeline.Date
	RecordID   history.RecordID
	Kind       payment.Kind
	Amount     decimal.Decimal
	Reasonable bool
	Warning    string
}

// CalculateLoadPayment prices a load with the configuration active on d.
func (s *Service) CalculateLoadPayment(
	ctx context.Context,
	id history.EmployeeID,
	d timeline.Date,
	grossAmount decimal.Decimal,
	miles decimal.Decimal,
) (*LoadPayment, error) {
	record, err := s.ledger.ActiveOn(ctx, id, d)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("employee %s on %s: %w", id, d, ErrNoActiveConfiguration)
	}

	cfg := record.Configuration
	method := cfg.Method()
	amount := method.CalculatePayment(cfg, grossAmount, miles)
	warning := method.PaymentWarning(amount, miles)

	s.metrics.payment(string(cfg.Kind), warning != "")

	return &LoadPayment{
		EmployeeID: id,
		Date:       d,
		RecordID:   record.ID,
		Kind:       cfg.Kind,
		Amount:     amount,
		Reasonable: method.IsReasonablePayment(amount, miles),
		Warning:    warning,
	}, nil
}

// =============================================================================
// INGESTION
// =============================================================================

// RegisterInput is an employee produced by the ingestion collaborator.
type RegisterInput struct {
	ID   history.EmployeeID
	Name string

	// Configuration is nil when the source had no payment fields; the
	// employee then starts on payment.DefaultConfiguration().
	Configuration *payment.Configuration

	// EffectiveDate defaults to today.
	EffectiveDate timeline.Date

	Actor string
}

// RegisterEmployee adds an employee to the directory and opens their history.
func (s *Service) RegisterEmployee(ctx context.Context, in RegisterInput) (*Employee, *history.Record, error) {
	unlock := s.locks.lock([]history.EmployeeID{in.ID})
	defer unlock()

	existing, err := s.directory.GetEmployee(ctx, in.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to look up employee %s: %w", in.ID, err)
	}
	if existing != nil {
		return nil, nil, fmt.Errorf("%s: %w", in.ID, ErrEmployeeExists)
	}

	cfg := payment.DefaultConfiguration()
	if in.Configuration != nil {
		cfg = *in.Configuration
	}
	effective := in.EffectiveDate
	if effective.IsZero() {
		effective = s.Today()
	}

	// Stage before touching the directory so a bad configuration leaves no trace.
	m, err := s.ledger.Stage(ctx, history.AppendInput{
		EmployeeID:    in.ID,
		Configuration: cfg,
		EffectiveDate: effective,
		Notes:         "initial configuration",
		Actor:         in.Actor,
	})
	if err != nil {
		return nil, nil, err
	}

	emp := Employee{ID: in.ID, Name: in.Name, CreatedAt: s.ledger.Clock().Now()}
	if err := s.directory.SaveEmployee(ctx, emp); err != nil {
		return nil, nil, fmt.Errorf("failed to save employee %s: %w", in.ID, err)
	}
	if err := s.ledger.Commit(ctx, []history.Mutation{m}); err != nil {
		// Without history the row would block every retry as a duplicate.
		if derr := s.directory.DeleteEmployee(ctx, in.ID); derr != nil {
			s.logger.Error("failed to remove employee after failed registration",
				zap.String("employee_id", string(in.ID)), zap.Error(derr))
			return nil, nil, errors.Join(err, derr)
		}
		return nil, nil, err
	}

	if err := s.RefreshSnapshot(ctx, in.ID, s.Today()); err != nil {
		s.logger.Warn("snapshot refresh failed", zap.String("employee_id", string(in.ID)), zap.Error(err))
	}

	s.logger.Info("employee registered",
		zap.String("employee_id", string(in.ID)),
		zap.String("configuration", cfg.Describe()),
		zap.Bool("default_configuration", in.Configuration == nil),
	)

	record := m.Record
	return &emp, &record, nil
}

// =============================================================================
// SNAPSHOTS
// =============================================================================

// RefreshSnapshot sets the directory's cached configuration to the one active on d.
func (s *Service) RefreshSnapshot(ctx context.Context, id history.EmployeeID, d timeline.Date) error {
	record, err := s.ledger.ActiveOn(ctx, id, d)
	if err != nil {
		return err
	}
	var snap *Snapshot
	if record != nil {
		snap = &Snapshot{
			Kind:     record.Configuration.Kind,
			Summary:  record.Configuration.Describe(),
			RecordID: record.ID,
			SyncedAt: s.ledger.Clock().Now(),
		}
	}
	return s.directory.UpdateSnapshot(ctx, id, snap)
}

// SyncSnapshots refreshes every employee whose snapshot no longer matches the
// record active today. Future-dated change requests become visible here.
func (s *Service) SyncSnapshots(ctx context.Context) (int, error) {
	employees, err := s.directory.ListEmployees(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list employees: %w", err)
	}

	today := s.Today()
	var (
		updated int
		errs    []error
	)
	for _, emp := range employees {
		record, err := s.ledger.ActiveOn(ctx, emp.ID, today)
		if err != nil {
			s.metrics.snapshotSync("failed")
			errs = append(errs, err)
			continue
		}
		if snapshotMatches(emp.Snapshot, record) {
			continue
		}
		if err := s.RefreshSnapshot(ctx, emp.ID, today); err != nil {
			s.metrics.snapshotSync("failed")
			errs = append(errs, fmt.Errorf("employee %s: %w", emp.ID, err))
			continue
		}
		s.metrics.snapshotSync("updated")
		updated++
	}
	return updated, errors.Join(errs...)
}

func snapshotMatches(snap *Snapshot, record *history.Record) bool {
	if snap == nil || record == nil {
		return snap == nil && record == nil
	}
	return snap.RecordID == record.ID
}

// =============================================================================
// PER-EMPLOYEE LOCKS
// =============================================================================

type employeeLocks struct {
	mu    sync.Mutex
	locks map[history.EmployeeID]*sync.Mutex
}

// lock acquires the mutex of every id. ids must be sorted.
func (l *employeeLocks) lock(ids []history.EmployeeID) func() {
	held := make([]*sync.Mutex, 0, len(ids))
	for _, id := range ids {
		m := l.get(id)
		m.Lock()
		held = append(held, m)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}

func (l *employeeLocks) get(id history.EmployeeID) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	m, ok := l.locks[id]
	if !ok {
		m = &sync.Mutex{}
		l.locks[id] = m
	}
	return m
}
