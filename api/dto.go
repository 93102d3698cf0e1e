/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Employee:
    EmployeeDTO, SnapshotDTO, CreateEmployeeRequest, CreateEmployeeResponse

  History:
    RecordDTO, HistoryResponse

  Payments:
    LoadPaymentRequest, LoadPaymentDTO

  Change requests:
    ChangeRequestDTO, ValidationResultDTO, ApplyChangeRequestResponse

  Scenarios:
    ScenarioDTO, LoadScenarioRequest

DATES AND MONEY:
  Dates are "YYYY-MM-DD" strings. Money in responses is a string with two
  decimals; money in requests may be a JSON number or string.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/configuration.go: ConfigurationJSON type
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/driver-pay/change"
	"github.com/warp/driver-pay/factory"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payroll"
)

// =============================================================================
// EMPLOYEES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	CreatedAt time.Time    `json:"created_at"`
	Payment   *SnapshotDTO `json:"payment,omitempty"`
}

// SnapshotDTO is the cached display configuration of an employee.
type SnapshotDTO struct {
	Kind     string    `json:"kind"`
	Summary  string    `json:"summary"`
	RecordID string    `json:"record_id"`
	SyncedAt time.Time `json:"synced_at"`
}

// CreateEmployeeRequest registers an employee. Configuration is optional; the
// default percentage split applies without it.
type CreateEmployeeRequest struct {
	ID            string                     `json:"id"`
	Name          string                     `json:"name"`
	Configuration *factory.ConfigurationJSON `json:"configuration,omitempty"`
	EffectiveDate string                     `json:"effective_date,omitempty"`
	Actor         string                     `json:"actor"`
}

type CreateEmployeeResponse struct {
	Employee EmployeeDTO `json:"employee"`
	Record   RecordDTO   `json:"record"`
}

// =============================================================================
// HISTORY
// =============================================================================

// RecordDTO is one history record.
type RecordDTO struct {
	ID            string                    `json:"id"`
	EmployeeID    string                    `json:"employee_id"`
	Configuration factory.ConfigurationJSON `json:"configuration"`
	EffectiveDate string                    `json:"effective_date"`
	EndDate       *string                   `json:"end_date"`
	IsCurrent     bool                      `json:"is_current"`
	CreatedBy     string                    `json:"created_by"`
	CreatedAt     time.Time                 `json:"created_at"`
	ModifiedBy    string                    `json:"modified_by,omitempty"`
	ModifiedAt    *time.Time                `json:"modified_at,omitempty"`
	Notes         string                    `json:"notes,omitempty"`
}

type HistoryResponse struct {
	EmployeeID string      `json:"employee_id"`
	Records    []RecordDTO `json:"records"`
}

// =============================================================================
// PAYMENTS
// =============================================================================

// LoadPaymentRequest prices one load. Date defaults to today.
type LoadPaymentRequest struct {
	Date        string          `json:"date,omitempty"`
	GrossAmount decimal.Decimal `json:"gross_amount"`
	Miles       decimal.Decimal `json:"miles"`
}

type LoadPaymentDTO struct {
	EmployeeID string `json:"employee_id"`
	Date       string `json:"date"`
	RecordID   string `json:"record_id"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Reasonable bool   `json:"reasonable"`
	Warning    string `json:"warning,omitempty"`
}

// =============================================================================
// CHANGE REQUESTS
// =============================================================================

// ChangeRequestDTO is the body of both validate and apply. Actor is only
// required to apply.
type ChangeRequestDTO struct {
	Configuration *factory.ConfigurationJSON `json:"configuration"`
	EffectiveDate string                     `json:"effective_date"`
	Notes         string                     `json:"notes,omitempty"`
	EmployeeIDs   []string                   `json:"employee_ids"`
	Actor         string                     `json:"actor,omitempty"`
}

type ValidationResultDTO struct {
	RequestID string   `json:"request_id"`
	Valid     bool     `json:"valid"`
	Errors    []string `json:"errors"`
	Warnings  []string `json:"warnings"`
}

type ApplyChangeRequestResponse struct {
	Validation ValidationResultDTO `json:"validation"`
	Records    []RecordDTO         `json:"records"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(emp payroll.Employee) EmployeeDTO {
	dto := EmployeeDTO{ID: string(emp.ID), Name: emp.Name, CreatedAt: emp.CreatedAt}
	if snap := emp.Snapshot; snap != nil {
		dto.Payment = &SnapshotDTO{
			Kind:     string(snap.Kind),
			Summary:  snap.Summary,
			RecordID: string(snap.RecordID),
			SyncedAt: snap.SyncedAt,
		}
	}
	return dto
}

func toRecordDTO(f *factory.ConfigurationFactory, r history.Record) RecordDTO {
	dto := RecordDTO{
		ID:            string(r.ID),
		EmployeeID:    string(r.EmployeeID),
		Configuration: f.ToJSON(r.Configuration),
		EffectiveDate: r.EffectiveDate.String(),
		IsCurrent:     r.IsCurrent(),
		CreatedBy:     r.CreatedBy,
		CreatedAt:     r.CreatedAt,
		ModifiedBy:    r.ModifiedBy,
		Notes:         r.Notes,
	}
	if r.EndDate != nil {
		end := r.EndDate.String()
		dto.EndDate = &end
	}
	if !r.ModifiedAt.IsZero() {
		modified := r.ModifiedAt
		dto.ModifiedAt = &modified
	}
	return dto
}

func toRecordDTOs(f *factory.ConfigurationFactory, records []history.Record) []RecordDTO {
	out := make([]RecordDTO, 0, len(records))
	for _, r := range records {
		out = append(out, toRecordDTO(f, r))
	}
	return out
}

func toValidationDTO(requestID string, result change.ValidationResult) ValidationResultDTO {
	dto := ValidationResultDTO{
		RequestID: requestID,
		Valid:     result.Valid,
		Errors:    result.Errors,
		Warnings:  result.Warnings,
	}
	if dto.Errors == nil {
		dto.Errors = []string{}
	}
	if dto.Warnings == nil {
		dto.Warnings = []string{}
	}
	return dto
}
