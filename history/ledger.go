package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/timeline"
)

// =============================================================================
// LEDGER - Store-backed history operations
// =============================================================================

// Ledger resolves and extends employee histories.
//
// Writes go through Stage then Commit. Stage is pure with respect to the store:
// it loads, computes the next sequence and validates it. Commit writes. Append
// is the single-employee shorthand for both.
type Ledger struct {
	store Store
	clock timeline.Clock
	newID func() RecordID
}

type Option func(*Ledger)

// WithClock sets the clock used for CreatedAt/ModifiedAt stamps.
func WithClock(c timeline.Clock) Option { return func(l *Ledger) { l.clock = c } }

// WithIDGenerator overrides record ID generation (default: UUIDv4).
func WithIDGenerator(fn func() RecordID) Option { return func(l *Ledger) { l.newID = fn } }

func NewLedger(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store: store,
		clock: timeline.SystemClock{},
		newID: func() RecordID { return RecordID(uuid.NewString()) },
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Clock returns the ledger's clock.
func (l *Ledger) Clock() timeline.Clock { return l.clock }

// History returns the employee's full audit trail, oldest first.
func (l *Ledger) History(ctx context.Context, employeeID EmployeeID) (Sequence, error) {
	records, err := l.store.LoadHistory(ctx, employeeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history for %s: %w", employeeID, err)
	}
	seq := Sequence(records)
	seq.Sort()
	return seq, nil
}

// ActiveOn returns the record in effect on d, or nil if none.
func (l *Ledger) ActiveOn(ctx context.Context, employeeID EmployeeID, d timeline.Date) (*Record, error) {
	seq, err := l.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return seq.ActiveOn(d), nil
}

// Current returns the open record, or nil if none.
func (l *Ledger) Current(ctx context.Context, employeeID EmployeeID) (*Record, error) {
	seq, err := l.History(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	return seq.Current(), nil
}

// Append records cfg as the employee's configuration from effective onward,
// closing the current record the day before.
func (l *Ledger) Append(
	ctx context.Context,
	employeeID EmployeeID,
	cfg payment.Configuration,
	effective timeline.Date,
	notes string,
	actor string,
) (*Record, error) {
	m, err := l.Stage(ctx, AppendInput{
		EmployeeID:    employeeID,
		Configuration: cfg,
		EffectiveDate: effective,
		Notes:         notes,
		Actor:         actor,
	})
	if err != nil {
		return nil, err
	}
	if err := l.Commit(ctx, []Mutation{m}); err != nil {
		return nil, err
	}
	r := m.Record.Clone()
	return &r, nil
}

// =============================================================================
// STAGE / COMMIT
// =============================================================================

// AppendInput is one pending append.
type AppendInput struct {
	EmployeeID    EmployeeID
	Configuration payment.Configuration
	EffectiveDate timeline.Date
	Notes         string
	Actor         string
}

// Mutation is a staged, validated, not yet written history change.
type Mutation struct {
	EmployeeID EmployeeID
	Before     Sequence // as loaded
	After      Sequence // to be saved
	Record     Record   // the new open record
}

// Stage computes the history that Append would save, without writing it.
func (l *Ledger) Stage(ctx context.Context, in AppendInput) (Mutation, error) {
	if in.Actor == "" {
		return Mutation{}, ErrActorRequired
	}
	if in.EffectiveDate.IsZero() {
		return Mutation{}, ErrEffectiveDateRequired
	}
	if err := in.Configuration.Validate(); err != nil {
		return Mutation{}, err
	}

	before, err := l.History(ctx, in.EmployeeID)
	if err != nil {
		return Mutation{}, err
	}

	after, record, err := supersede(before, in, l.newID(), l.clock)
	if err != nil {
		return Mutation{}, err
	}

	return Mutation{
		EmployeeID: in.EmployeeID,
		Before:     before,
		After:      after,
		Record:     record,
	}, nil
}

// Commit writes staged mutations. With a TxStore every mutation is written
// in one transaction; each employee's stored history is re-read first and the
// commit aborts with ErrConcurrentModification if it no longer matches Before.
//
// A plain Store has no transaction to roll back, so when a later mutation
// fails the employees already written are restored to their Before history.
func (l *Ledger) Commit(ctx context.Context, mutations []Mutation) error {
	if len(mutations) == 0 {
		return nil
	}

	// written collects the mutations saved so far on the plain-store path.
	var written []Mutation
	write := func(s Store) error {
		for _, m := range mutations {
			stored, err := s.LoadHistory(ctx, m.EmployeeID)
			if err != nil {
				return fmt.Errorf("failed to reload history for %s: %w", m.EmployeeID, err)
			}
			if !sameHistory(m.Before, stored) {
				return fmt.Errorf("employee %s: %w", m.EmployeeID, ErrConcurrentModification)
			}
			if err := s.SaveHistory(ctx, m.EmployeeID, m.After); err != nil {
				return fmt.Errorf("failed to save history for %s: %w", m.EmployeeID, err)
			}
			written = append(written, m)
		}
		return nil
	}

	if ts, ok := l.store.(TxStore); ok {
		return ts.WithTx(ctx, write)
	}

	err := write(l.store)
	if err == nil {
		return nil
	}
	return errors.Join(err, l.restore(ctx, written))
}

// restore puts back the Before history of mutations already saved, newest
// first. A failure here leaves the store inconsistent and is reported as
// ErrInternalConsistency.
func (l *Ledger) restore(ctx context.Context, written []Mutation) error {
	var errs []error
	for i := len(written) - 1; i >= 0; i-- {
		m := written[i]
		if err := l.store.SaveHistory(ctx, m.EmployeeID, m.Before); err != nil {
			errs = append(errs, &InvariantError{
				EmployeeID: m.EmployeeID,
				Detail:     fmt.Sprintf("rollback after failed batch: %v", err),
			})
		}
	}
	return errors.Join(errs...)
}

// supersede is the append algorithm. It never mutates before.
func supersede(before Sequence, in AppendInput, id RecordID, clock timeline.Clock) (Sequence, Record, error) {
	if err := before.Validate(); err != nil {
		return nil, Record{}, err
	}

	now := clock.Now()
	after := before.Clone()

	if len(after) > 0 {
		first := after[0]
		if in.EffectiveDate.Before(first.EffectiveDate) {
			return nil, Record{}, &TemporalError{
				EmployeeID:    in.EmployeeID,
				EffectiveDate: in.EffectiveDate,
				ConflictID:    first.ID,
				Reason:        fmt.Sprintf("precedes the earliest record (effective %s); backfill is not supported", first.EffectiveDate),
			}
		}

		last := &after[len(after)-1]
		if last.IsCurrent() {
			if !in.EffectiveDate.After(last.EffectiveDate) {
				return nil, Record{}, &TemporalError{
					EmployeeID:    in.EmployeeID,
					EffectiveDate: in.EffectiveDate,
					ConflictID:    last.ID,
					Reason:        fmt.Sprintf("must be after %s, the start of the current configuration", last.EffectiveDate),
				}
			}
			last.EndDate = in.EffectiveDate.AddDays(-1).Ptr()
			last.ModifiedAt = now
			last.ModifiedBy = in.Actor
		} else if !in.EffectiveDate.After(*last.EndDate) {
			return nil, Record{}, &TemporalError{
				EmployeeID:    in.EmployeeID,
				EffectiveDate: in.EffectiveDate,
				ConflictID:    last.ID,
				Reason:        fmt.Sprintf("falls within closed history ending %s; mid-timeline insertion is not supported", last.EndDate),
			}
		}
	}

	record := Record{
		ID:            id,
		EmployeeID:    in.EmployeeID,
		Configuration: in.Configuration,
		EffectiveDate: in.EffectiveDate,
		CreatedBy:     in.Actor,
		CreatedAt:     now,
		Notes:         in.Notes,
	}
	after = append(after, record)

	if err := after.Validate(); err != nil {
		return nil, Record{}, err
	}
	return after, record, nil
}

// sameHistory compares record identity and end dates, which is everything
// an append can change.
func sameHistory(a Sequence, b []Record) bool {
	if len(a) != len(b) {
		return false
	}
	byID := make(map[RecordID]*timeline.Date, len(b))
	for _, r := range b {
		byID[r.ID] = r.EndDate
	}
	for _, r := range a {
		end, ok := byID[r.ID]
		if !ok {
			return false
		}
		switch {
		case end == nil && r.EndDate == nil:
		case end == nil || r.EndDate == nil:
			return false
		case !end.Equal(*r.EndDate):
			return false
		}
	}
	return true
}
