/*
Package change provides the batch change-request workflow.

PURPOSE:
  Pay changes are rarely made for one driver at a time. A fleet manager picks a
  new configuration, an effective date and a set of drivers, checks the result
  and commits it. Either every selected driver moves to the new configuration
  or none does.

REQUEST FLOW:
  ┌──────────────────────────────────────────────────────────────┐
  │                                                              │
  │   Set*()  ──▶  Draft  ──Validate()──▶  Validated  ──Apply()  │
  │                  ▲                         │                 │
  │                  └────── Set*() ───────────┘                 │
  │                                                              │
  └──────────────────────────────────────────────────────────────┘

  Apply is a side effect; the request does not track an Applied state.

ERRORS vs WARNINGS:
  Errors block Apply: missing configuration, missing effective date, no
  employees, structurally invalid configuration.
  Warnings never block: effective date far in the past or future, rates
  outside typical business ranges.

ATOMICITY:
  Apply stages every employee's append first (load + compute + validate, no
  writes). The first failure aborts with a BatchError naming the employee.
  Only when every stage succeeds are the mutations committed together.

CONCURRENCY:
  A Request is not safe for concurrent use. Callers applying requests with
  overlapping employees must serialize them (see payroll.Service).

SEE ALSO:
  - history/ledger.go: Stage and Commit
  - payroll/service.go: Locking and employee checks around Apply
*/
package change

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/timeline"
)

// Effective dates outside this window relative to today get a warning.
const (
	PastWarningDays   = 30
	FutureWarningDays = 90
)

// =============================================================================
// STATE
// =============================================================================

type State string

const (
	StateDraft     State = "draft"
	StateValidated State = "validated"
)

// ValidationResult is the outcome of one Validate call.
type ValidationResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
}

// Ledger is the part of history.Ledger that Apply needs.
type Ledger interface {
	Stage(ctx context.Context, in history.AppendInput) (history.Mutation, error)
	Commit(ctx context.Context, mutations []history.Mutation) error
}

// =============================================================================
// REQUEST
// =============================================================================

// Request is a pending pay change for a set of employees.
type Request struct {
	ID string

	configuration *payment.Configuration
	effectiveDate timeline.Date
	notes         string
	targets       map[history.EmployeeID]struct{}

	state  State
	result ValidationResult
	clock  timeline.Clock
}

// NewRequest creates a Draft request. The clock decides what "today" is for
// the effective-date warnings.
func NewRequest(clock timeline.Clock) *Request {
	return &Request{
		ID:      uuid.NewString(),
		targets: make(map[history.EmployeeID]struct{}),
		state:   StateDraft,
		clock:   clock,
	}
}

// Setters. Every edit sends the request back to Draft.

func (r *Request) SetConfiguration(cfg payment.Configuration) {
	r.configuration = &cfg
	r.touch()
}

func (r *Request) SetEffectiveDate(d timeline.Date) {
	r.effectiveDate = d
	r.touch()
}

func (r *Request) SetNotes(notes string) {
	r.notes = notes
	r.touch()
}

// SetTargets replaces the employee set. Duplicates collapse.
func (r *Request) SetTargets(ids ...history.EmployeeID) {
	r.targets = make(map[history.EmployeeID]struct{}, len(ids))
	for _, id := range ids {
		r.targets[id] = struct{}{}
	}
	r.touch()
}

func (r *Request) AddTarget(id history.EmployeeID) {
	r.targets[id] = struct{}{}
	r.touch()
}

func (r *Request) RemoveTarget(id history.EmployeeID) {
	delete(r.targets, id)
	r.touch()
}

func (r *Request) touch() {
	r.state = StateDraft
	r.result = ValidationResult{}
}

// Getters

func (r *Request) Configuration() *payment.Configuration { return r.configuration }
func (r *Request) EffectiveDate() timeline.Date          { return r.effectiveDate }
func (r *Request) Notes() string                         { return r.notes }
func (r *Request) State() State                          { return r.state }

// Result returns the last validation. Zero while Draft.
func (r *Request) Result() ValidationResult { return r.result }

// Targets returns the employee IDs in sorted order.
func (r *Request) Targets() []history.EmployeeID {
	ids := make([]history.EmployeeID, 0, len(r.targets))
	for id := range r.targets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// =============================================================================
// VALIDATE
// =============================================================================

// Validate checks the request and moves it to Validated. Calling it again
// without edits yields the same result.
func (r *Request) Validate() ValidationResult {
	var errs, warnings []string

	if r.configuration == nil {
		errs = append(errs, "Payment configuration is required")
	}
	if r.effectiveDate.IsZero() {
		errs = append(errs, "Effective date is required")
	}
	if len(r.targets) == 0 {
		errs = append(errs, "At least one employee must be selected")
	}

	if !r.effectiveDate.IsZero() {
		if w := r.effectiveDateWarning(); w != "" {
			warnings = append(warnings, w)
		}
	}

	if r.configuration != nil {
		cfg := *r.configuration
		if err := cfg.Validate(); err != nil {
			errs = append(errs, err.Error())
		} else if w := cfg.Method().RateWarning(cfg); w != "" {
			warnings = append(warnings, w)
		}
	}

	r.result = ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
	r.state = StateValidated
	return r.result
}

func (r *Request) effectiveDateWarning() string {
	days := timeline.DaysBetween(r.effectiveDate, timeline.Today(r.clock))
	switch {
	case days > PastWarningDays:
		return fmt.Sprintf("Effective date %s is %d days in the past", r.effectiveDate, days)
	case -days > FutureWarningDays:
		return fmt.Sprintf("Effective date %s is %d days in the future", r.effectiveDate, -days)
	}
	return ""
}

// =============================================================================
// APPLY
// =============================================================================

// Apply appends the configuration to every target's history, all or nothing.
// It validates first if the request is still a Draft.
func (r *Request) Apply(ctx context.Context, ledger Ledger, actor string) ([]history.Record, error) {
	if r.state == StateDraft {
		r.Validate()
	}
	if !r.result.Valid {
		return nil, &AggregateError{RequestID: r.ID, Result: r.result}
	}

	targets := r.Targets()
	mutations := make([]history.Mutation, 0, len(targets))

	// Pass 1: stage everything, write nothing
	for _, id := range targets {
		m, err := ledger.Stage(ctx, history.AppendInput{
			EmployeeID:    id,
			Configuration: *r.configuration,
			EffectiveDate: r.effectiveDate,
			Notes:         r.notes,
			Actor:         actor,
		})
		if err != nil {
			return nil, &BatchError{RequestID: r.ID, EmployeeID: id, Err: err}
		}
		mutations = append(mutations, m)
	}

	// Pass 2: commit together
	if err := ledger.Commit(ctx, mutations); err != nil {
		return nil, fmt.Errorf("failed to commit change request %s: %w", r.ID, err)
	}

	records := make([]history.Record, len(mutations))
	for i, m := range mutations {
		records[i] = m.Record
	}
	return records, nil
}
