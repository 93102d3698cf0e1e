/*
scenarios.go - Demo scenario loaders for development and demonstrations

PURPOSE:
	Populates the database with realistic drivers and configuration
	histories. Each scenario goes through payroll.Service, so the data obeys
	the same validation and temporal rules as production changes.

AVAILABLE SCENARIOS:
	mixed-fleet:      Three drivers, one per payment model
	model-changes:    One driver moved percentage -> flat rate -> per mile,
	                  with the last change dated in the future
	fresh-import:     Drivers imported without payment fields (default split)

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Register employees with an initial configuration
 3. Apply change requests at dates relative to today

NOTE:
	Scenarios reset the database. The endpoint refuses unless
	Handler.AllowReset is set, which main only does outside production.

SEE ALSO:
  - handlers.go: Handler
  - payroll/service.go: RegisterEmployee, ApplyChangeRequest
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/driver-pay/history"
	"github.com/warp/driver-pay/payment"
	"github.com/warp/driver-pay/payroll"
	"github.com/warp/driver-pay/timeline"
)

const scenarioActor = "scenario-loader"

var scenarios = []ScenarioDTO{
	{
		ID:          "mixed-fleet",
		Name:        "Mixed Fleet",
		Description: "Three drivers, one on each payment model",
	},
	{
		ID:          "model-changes",
		Name:        "Model Changes",
		Description: "A driver moved through every model, next change scheduled in two weeks",
	},
	{
		ID:          "fresh-import",
		Name:        "Fresh Import",
		Description: "Drivers imported without payment fields, on the default 70/30 split",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	current := h.currentScenario
	h.mu.Unlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenario resets the database and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	if !h.AllowReset {
		writeError(w, http.StatusForbidden, "Scenarios are disabled in this environment", nil)
		return
	}

	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var load func(context.Context) error
	switch req.ScenarioID {
	case "mixed-fleet":
		load = h.loadMixedFleetScenario
	case "model-changes":
		load = h.loadModelChangesScenario
	case "fresh-import":
		load = h.loadFreshImportScenario
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.currentScenario = ""

	if err := load(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}
	h.currentScenario = req.ScenarioID

	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMixedFleetScenario(ctx context.Context) error {
	hired := h.Service.Today().AddDays(-365)
	drivers := []struct {
		id   history.EmployeeID
		name string
		cfg  payment.Configuration
	}{
		{"drv-100", "Maria Lopez", payment.NewPercentage(75, 22, 3)},
		{"drv-101", "James Carter", payment.NewFlatRate(850)},
		{"drv-102", "Priya Natarajan", payment.NewPerMile(0.68)},
	}
	for _, d := range drivers {
		if err := h.registerScenarioEmployee(ctx, d.id, d.name, &d.cfg, hired); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadModelChangesScenario(ctx context.Context) error {
	today := h.Service.Today()
	id := history.EmployeeID("drv-200")

	if err := h.registerScenarioEmployee(ctx, id, "Sam Okafor", nil, today.AddDays(-400)); err != nil {
		return err
	}

	changes := []struct {
		cfg       payment.Configuration
		effective timeline.Date
		notes     string
	}{
		{payment.NewFlatRate(700), today.AddDays(-200), "moved to dedicated lane"},
		{payment.NewPerMile(0.72), today.AddDays(-30), "long haul"},
		{payment.NewPerMile(0.78), today.AddDays(14), "annual raise"},
	}
	for _, c := range changes {
		req := h.Service.NewChangeRequest()
		req.SetConfiguration(c.cfg)
		req.SetEffectiveDate(c.effective)
		req.SetNotes(c.notes)
		req.SetTargets(id)
		if _, err := h.Service.ApplyChangeRequest(ctx, req, scenarioActor); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) loadFreshImportScenario(ctx context.Context) error {
	today := h.Service.Today()
	names := []string{"Alex Kim", "Dana Whitfield", "Luis Romero", "Grace Osei"}
	for i, name := range names {
		id := history.EmployeeID(fmt.Sprintf("drv-3%02d", i))
		if err := h.registerScenarioEmployee(ctx, id, name, nil, today); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handler) registerScenarioEmployee(
	ctx context.Context,
	id history.EmployeeID,
	name string,
	cfg *payment.Configuration,
	effective timeline.Date,
) error {
	_, _, err := h.Service.RegisterEmployee(ctx, payroll.RegisterInput{
		ID:            id,
		Name:          name,
		Configuration: cfg,
		EffectiveDate: effective,
		Actor:         scenarioActor,
	})
	if err != nil {
		return fmt.Errorf("register %s: %w", id, err)
	}
	return nil
}
