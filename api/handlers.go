/*
handlers.go - HTTP API handlers for the driver payment engine

PURPOSE:
  Exposes payment configuration history, load payment calculation and batch
  change requests via REST API. Handles HTTP request/response, JSON
  serialization, and delegates to payroll.Service.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List employees with cached configuration
    POST   /api/employees                     Register employee (optional configuration)
    GET    /api/employees/{id}                Get employee
    GET    /api/employees/{id}/history        Full configuration history
    GET    /api/employees/{id}/active?date=   Configuration active on a date

  Payments:
    POST   /api/employees/{id}/payments       Calculate one load payment
    GET    /api/payment-methods               Payment models and their inputs

  Change requests:
    POST   /api/change-requests/validate      Dry run: errors and warnings
    POST   /api/change-requests/apply         Validate and commit, all or nothing

REQUEST FLOW:
  1. Parse HTTP request
  2. Convert DTOs to domain values (factory, timeline)
  3. Call payroll.Service
  4. Serialize response
  5. Map errors to status codes (writeServiceError)

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input, unknown payment model, missing actor
  - 404: Employee not found, no configuration active on the date
  - 409: Temporal conflict or concurrent modification
  - 422: Invalid configuration or change request
  - 500: Internal errors

SECURITY NOTE:
  No authentication. The actor is taken from the request body as given.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo data loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/warp/driver-pay/change"
	"github.com/warp/driver-pay/factory"
	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/payroll"
	"github.com/warp/driver-pay/store/sqlite"
	"github.com/warp/driver-pay/timeline"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *payroll.Service
	Store   *sqlite.Store
	Factory *factory.ConfigurationFactory
	Logger  *zap.Logger

	// AllowReset enables scenario loading, which wipes the database.
	AllowReset bool

	mu              sync.Mutex
	currentScenario string
}

// NewHandler creates a new handler.
func NewHandler(service *payroll.Service, store *sqlite.Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		Service: service,
		Store:   store,
		Factory: factory.NewConfigurationFactory(),
		Logger:  logger,
	}
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Service.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	out := make([]EmployeeDTO, 0, len(employees))
	for _, emp := range employees {
		out = append(out, toEmployeeDTO(emp))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.ID == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "id and name are required", nil)
		return
	}

	in := payroll.RegisterInput{
		ID:    history.EmployeeID(req.ID),
		Name:  req.Name,
		Actor: req.Actor,
	}
	if req.Configuration != nil {
		cfg, err := h.Factory.FromJSON(*req.Configuration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid configuration", err)
			return
		}
		in.Configuration = &cfg
	}
	if req.EffectiveDate != "" {
		d, err := timeline.ParseDate(req.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
			return
		}
		in.EffectiveDate = d
	}

	emp, record, err := h.Service.RegisterEmployee(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateEmployeeResponse{
		Employee: toEmployeeDTO(*emp),
		Record:   toRecordDTO(h.Factory, *record),
	})
}

func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	records, err := h.Service.History(r.Context(), emp.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, HistoryResponse{
		EmployeeID: string(emp.ID),
		Records:    toRecordDTOs(h.Factory, records),
	})
}

// GetActive returns the record active on ?date= (default today).
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	d, ok := h.dateParam(w, r.URL.Query().Get("date"))
	if !ok {
		return
	}

	record, err := h.Service.ActiveOn(r.Context(), emp.ID, d)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if record == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{
			Error: "No payment configuration active on " + d.String(),
			Code:  "no_active_configuration",
		})
		return
	}
	writeJSON(w, http.StatusOK, toRecordDTO(h.Factory, *record))
}

// =============================================================================
// PAYMENT ENDPOINTS
// =============================================================================

func (h *Handler) CalculatePayment(w http.ResponseWriter, r *http.Request) {
	emp, ok := h.lookupEmployee(w, r)
	if !ok {
		return
	}

	var req LoadPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.GrossAmount.IsNegative() || req.Miles.IsNegative() {
		writeError(w, http.StatusBadRequest, "gross_amount and miles must not be negative", nil)
		return
	}

	d, ok := h.dateParam(w, req.Date)
	if !ok {
		return
	}

	p, err := h.Service.CalculateLoadPayment(r.Context(), emp.ID, d, req.GrossAmount, req.Miles)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, LoadPaymentDTO{
		EmployeeID: string(p.EmployeeID),
		Date:       p.Date.String(),
		RecordID:   string(p.RecordID),
		Kind:       string(p.Kind),
		Amount:     p.Amount.StringFixed(2),
		Reasonable: p.Reasonable,
		Warning:    p.Warning,
	})
}

func (h *Handler) ListPaymentMethods(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Factory.Methods())
}

// =============================================================================
// CHANGE REQUEST ENDPOINTS
// =============================================================================

// ValidateChangeRequest always answers 200 when the body parses; the verdict
// is in the payload.
func (h *Handler) ValidateChangeRequest(w http.ResponseWriter, r *http.Request) {
	req, _, ok := h.decodeChangeRequest(w, r)
	if !ok {
		return
	}
	result := req.Validate()
	writeJSON(w, http.StatusOK, toValidationDTO(req.ID, result))
}

func (h *Handler) ApplyChangeRequest(w http.ResponseWriter, r *http.Request) {
	req, actor, ok := h.decodeChangeRequest(w, r)
	if !ok {
		return
	}
	if actor == "" {
		writeError(w, http.StatusBadRequest, "actor is required", history.ErrActorRequired)
		return
	}

	records, err := h.Service.ApplyChangeRequest(r.Context(), req, actor)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyChangeRequestResponse{
		Validation: toValidationDTO(req.ID, req.Result()),
		Records:    toRecordDTOs(h.Factory, records),
	})
}

func (h *Handler) decodeChangeRequest(w http.ResponseWriter, r *http.Request) (*change.Request, string, bool) {
	var dto ChangeRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return nil, "", false
	}

	req := h.Service.NewChangeRequest()
	if dto.Configuration != nil {
		cfg, err := h.Factory.FromJSON(*dto.Configuration)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid configuration", err)
			return nil, "", false
		}
		req.SetConfiguration(cfg)
	}
	if dto.EffectiveDate != "" {
		d, err := timeline.ParseDate(dto.EffectiveDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid effective_date", err)
			return nil, "", false
		}
		req.SetEffectiveDate(d)
	}
	req.SetNotes(dto.Notes)
	for _, id := range dto.EmployeeIDs {
		req.AddTarget(history.EmployeeID(id))
	}
	return req, dto.Actor, true
}

// =============================================================================
// HEALTH
// =============================================================================

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "Database unavailable", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// lookupEmployee resolves {id} or writes a 404.
func (h *Handler) lookupEmployee(w http.ResponseWriter, r *http.Request) (*payroll.Employee, bool) {
	id := chi.URLParam(r, "id")
	emp, err := h.Service.GetEmployee(r.Context(), history.EmployeeID(id))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load employee", err)
		return nil, false
	}
	if emp == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "Employee not found", Code: "employee_not_found"})
		return nil, false
	}
	return emp, true
}

// dateParam parses s, defaulting to today when empty.
func (h *Handler) dateParam(w http.ResponseWriter, s string) (timeline.Date, bool) {
	if s == "" {
		return h.Service.Today(), true
	}
	d, err := timeline.ParseDate(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return timeline.Date{}, false
	}
	return d, true
}

// writeServiceError maps domain errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		aggErr   *change.AggregateError
		batchErr *change.BatchError
		cfgErr   *payment.ConfigurationError
	)

	resp := ErrorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	switch {
	case errors.As(err, &aggErr):
		status = http.StatusUnprocessableEntity
		resp.Code = "invalid_change_request"
		resp.Details = toValidationDTO(aggErr.RequestID, aggErr.Result)
	case errors.Is(err, payroll.ErrEmployeeNotFound):
		status = http.StatusNotFound
		resp.Code = "employee_not_found"
	case errors.Is(err, payroll.ErrNoActiveConfiguration):
		status = http.StatusNotFound
		resp.Code = "no_active_configuration"
	case errors.Is(err, payroll.ErrEmployeeExists):
		status = http.StatusConflict
		resp.Code = "employee_exists"
	case history.IsConflict(err):
		status = http.StatusConflict
		resp.Code = "temporal_conflict"
		if history.IsRetryable(err) {
			resp.Code = "concurrent_modification"
		}
	case errors.As(err, &cfgErr):
		status = http.StatusUnprocessableEntity
		resp.Code = "invalid_configuration"
		resp.Details = map[string]string{"kind": string(cfgErr.Kind), "field": cfgErr.Field}
	case errors.Is(err, payment.ErrUnknownKind):
		status = http.StatusBadRequest
		resp.Code = "unknown_payment_model"
	case history.IsClientError(err):
		status = http.StatusBadRequest
		resp.Code = "invalid_input"
	}

	if errors.As(err, &batchErr) && resp.Details == nil {
		resp.Details = map[string]string{"employee_id": string(batchErr.EmployeeID)}
	}

	if status >= http.StatusInternalServerError {
		h.Logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		resp.Error = "Internal error"
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
