/*
handlers.go - HTTP API handlers for the rating and violation engine

PURPOSE:
  Exposes the rating engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Violations:
    POST   /api/violations                        Record manual violation
    GET    /api/employees/{id}/violations         Violations in a period

  Ratings:
    GET    /api/employees/{id}/rating             Rating for a period
    POST   /api/employees/{id}/rating/recalculate Recompute from violations
    POST   /api/employees/{id}/rating/adjust      Apply a manual delta

  Rules:
    GET    /api/companies/{id}/rules              List company rules
    POST   /api/companies/{id}/rules              Create rule
    GET    /api/rules/{id}                        Get rule
    PUT    /api/rules/{id}                        Partial update

  Companies:
    POST   /api/companies/{id}/recalculate        Batch recalculation
    POST   /api/companies/{id}/detect             Run detection pass now
    GET    /api/companies/{id}/stats              Cached aggregate stats

  Admin:
    POST   /api/admin/recalculate                 Recalculate every company

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (engine, calculator, detector)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Conflict (duplicate code, duplicate auto violation)
  - 500: Internal errors
  The mapping is driven by the domain error kind helpers, so handlers
  never string-match errors.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.
  Tenancy is enforced by the domain layer's scope checks, not by auth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - rating/engine.go: The operations these handlers call
*/
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/shiftwatch/rating-engine/cache"
	"github.com/shiftwatch/rating-engine/rating"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Engine *rating.Engine
	Stats  cache.StatsCache
}

// NewHandler creates a new handler around the engine and stats cache.
func NewHandler(engine *rating.Engine, stats cache.StatsCache) *Handler {
	return &Handler{Engine: engine, Stats: stats}
}

// =============================================================================
// VIOLATION HANDLERS
// =============================================================================

// RecordViolation records a manual violation.
// POST /api/violations
func (h *Handler) RecordViolation(w http.ResponseWriter, r *http.Request) {
	var req RecordViolationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.EmployeeID == "" || req.CompanyID == "" || req.RuleID == "" {
		writeError(w, http.StatusBadRequest, "employee_id, company_id and rule_id are required", nil)
		return
	}

	v, err := h.Engine.RecordViolation(r.Context(),
		rating.EmployeeID(req.EmployeeID),
		rating.CompanyID(req.CompanyID),
		rating.RuleID(req.RuleID),
		rating.SourceManual, req.Reason, req.CreatedBy)
	if err != nil {
		writeEngineError(w, "Failed to record violation", err)
		return
	}

	writeJSON(w, http.StatusCreated, toViolationDTO(*v))
}

// ListEmployeeViolations returns an employee's violations for a period.
// GET /api/employees/{id}/violations?period=YYYY-MM
func (h *Handler) ListEmployeeViolations(w http.ResponseWriter, r *http.Request) {
	employeeID := rating.EmployeeID(chi.URLParam(r, "id"))

	period, err := h.periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	violations, err := h.Engine.ViolationsForEmployee(r.Context(), employeeID, period)
	if err != nil {
		writeEngineError(w, "Failed to list violations", err)
		return
	}

	dtos := make([]ViolationDTO, len(violations))
	for i, v := range violations {
		dtos[i] = toViolationDTO(v)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// RATING HANDLERS
// =============================================================================

// GetRating returns the stored rating row for an employee and period.
// GET /api/employees/{id}/rating?period=YYYY-MM
func (h *Handler) GetRating(w http.ResponseWriter, r *http.Request) {
	employeeID := rating.EmployeeID(chi.URLParam(r, "id"))

	period, err := h.periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	row, err := h.Engine.GetRating(r.Context(), employeeID, period)
	if err != nil {
		writeEngineError(w, "Failed to get rating", err)
		return
	}

	writeJSON(w, http.StatusOK, toRatingDTO(row))
}

// RecalculateEmployee recomputes one employee's rating from violations.
// POST /api/employees/{id}/rating/recalculate?period=YYYY-MM
func (h *Handler) RecalculateEmployee(w http.ResponseWriter, r *http.Request) {
	employeeID := rating.EmployeeID(chi.URLParam(r, "id"))

	period, err := h.periodFromQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	row, err := h.Engine.RecalculateEmployee(r.Context(), employeeID, period)
	if err != nil {
		writeEngineError(w, "Failed to recalculate rating", err)
		return
	}

	writeJSON(w, http.StatusOK, toRatingDTO(row))
}

// AdjustRating applies a manual delta to an employee's rating.
// POST /api/employees/{id}/rating/adjust
func (h *Handler) AdjustRating(w http.ResponseWriter, r *http.Request) {
	employeeID := rating.EmployeeID(chi.URLParam(r, "id"))

	var req AdjustRatingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	delta, err := decimal.NewFromString(req.Delta)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid delta (use a decimal string)", err)
		return
	}

	period, err := h.parsePeriod(req.Period)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	row, err := h.Engine.AdjustRating(r.Context(), employeeID, period, delta)
	if err != nil {
		writeEngineError(w, "Failed to adjust rating", err)
		return
	}

	writeJSON(w, http.StatusOK, toRatingDTO(row))
}

// =============================================================================
// RULE HANDLERS
// =============================================================================

// ListRules returns a company's rule catalog.
// GET /api/companies/{id}/rules
func (h *Handler) ListRules(w http.ResponseWriter, r *http.Request) {
	companyID := rating.CompanyID(chi.URLParam(r, "id"))

	rules, err := h.Engine.Rules.ListRules(r.Context(), companyID)
	if err != nil {
		writeEngineError(w, "Failed to list rules", err)
		return
	}

	dtos := make([]RuleDTO, len(rules))
	for i := range rules {
		dtos[i] = toRuleDTO(&rules[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateRule creates a violation rule for a company.
// POST /api/companies/{id}/rules
func (h *Handler) CreateRule(w http.ResponseWriter, r *http.Request) {
	companyID := rating.CompanyID(chi.URLParam(r, "id"))

	var req CreateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	weight, err := decimal.NewFromString(req.PenaltyWeight)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid penalty_weight (use a decimal string)", err)
		return
	}

	active := true
	if req.Active != nil {
		active = *req.Active
	}

	rule := rating.ViolationRule{
		CompanyID:      companyID,
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		PenaltyWeight:  weight,
		AutoDetectable: req.AutoDetectable,
		Active:         active,
		Condition:      req.Condition.toDomain(),
	}

	created, err := h.Engine.CreateRule(r.Context(), rule)
	if err != nil {
		writeEngineError(w, "Failed to create rule", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRuleDTO(created))
}

// GetRule returns a single rule.
// GET /api/rules/{id}
func (h *Handler) GetRule(w http.ResponseWriter, r *http.Request) {
	id := rating.RuleID(chi.URLParam(r, "id"))

	rule, err := h.Engine.Rules.GetRule(r.Context(), id)
	if err != nil {
		writeEngineError(w, "Failed to get rule", err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// UpdateRule applies a partial update to a rule. Existing violations keep
// their snapshotted penalties; only future violations see the new weight.
// PUT /api/rules/{id}
func (h *Handler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	id := rating.RuleID(chi.URLParam(r, "id"))

	var req UpdateRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	update := rating.RuleUpdate{
		Code:           req.Code,
		Name:           req.Name,
		Description:    req.Description,
		AutoDetectable: req.AutoDetectable,
		Active:         req.Active,
		Condition:      req.Condition.toDomain(),
		ClearCondition: req.ClearCondition,
	}
	if req.PenaltyWeight != nil {
		weight, err := decimal.NewFromString(*req.PenaltyWeight)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid penalty_weight (use a decimal string)", err)
			return
		}
		update.PenaltyWeight = &weight
	}

	rule, err := h.Engine.UpdateRule(r.Context(), id, update)
	if err != nil {
		writeEngineError(w, "Failed to update rule", err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleDTO(rule))
}

// =============================================================================
// COMPANY HANDLERS
// =============================================================================

// RecalculateCompany recomputes ratings for every employee of a company.
// POST /api/companies/{id}/recalculate
func (h *Handler) RecalculateCompany(w http.ResponseWriter, r *http.Request) {
	companyID := rating.CompanyID(chi.URLParam(r, "id"))

	period, err := h.optionalBodyPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	result, err := h.Engine.RecalculateCompany(r.Context(), companyID, period)
	if err != nil {
		writeEngineError(w, "Failed to recalculate company", err)
		return
	}

	writeJSON(w, http.StatusOK, BatchResultDTO{
		Processed: result.Processed,
		Failed:    result.Failed,
	})
}

// TriggerDetection runs a detection pass for the company immediately.
// POST /api/companies/{id}/detect
func (h *Handler) TriggerDetection(w http.ResponseWriter, r *http.Request) {
	companyID := rating.CompanyID(chi.URLParam(r, "id"))

	result, err := h.Engine.RunDetection(r.Context(), companyID)
	if err != nil {
		writeEngineError(w, "Failed to run detection", err)
		return
	}

	dto := ScanResultDTO{
		ShiftsScanned:     result.ShiftsScanned,
		ViolationsCreated: result.ViolationsCreated,
	}
	for _, e := range result.Errors {
		dto.Errors = append(dto.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, dto)
}

// GetCompanyStats returns cached aggregate stats for a company's current
// period. On a cache miss the stats are computed, stored, and returned;
// any rating or violation mutation for the company invalidates the entry.
// GET /api/companies/{id}/stats
func (h *Handler) GetCompanyStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	companyID := rating.CompanyID(chi.URLParam(r, "id"))

	if cached, err := h.Stats.Get(ctx, string(companyID)); err == nil && cached != nil {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Cache", "hit")
		w.WriteHeader(http.StatusOK)
		w.Write(cached)
		return
	}

	period := h.Engine.CurrentPeriod()
	now := h.Engine.Clock.Now()

	avg, rated, err := h.Engine.Ratings.AverageRatingByCompany(ctx, companyID, period)
	if err != nil {
		writeEngineError(w, "Failed to compute stats", err)
		return
	}
	recent, err := h.Engine.Violations.CountByCompanySince(ctx, companyID, now.AddDate(0, 0, -30))
	if err != nil {
		writeEngineError(w, "Failed to compute stats", err)
		return
	}

	dto := CompanyStatsDTO{
		CompanyID:      string(companyID),
		PeriodStart:    period.Start.Format("2006-01-02"),
		PeriodEnd:      period.End.Format("2006-01-02"),
		AverageRating:  avg.StringFixed(2),
		RatedEmployees: rated,
		Violations30d:  recent,
		GeneratedAt:    now.Format(time.RFC3339),
	}

	if payload, err := json.Marshal(dto); err == nil {
		// Cache write failures are non-fatal; next request recomputes.
		h.Stats.Set(ctx, string(companyID), payload)
	}

	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RecalculateAll recomputes ratings for every known company.
// POST /api/admin/recalculate
func (h *Handler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	period, err := h.optionalBodyPeriod(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period (use YYYY-MM)", err)
		return
	}

	result, err := h.Engine.RecalculateAll(r.Context(), period)
	if err != nil {
		writeEngineError(w, "Failed to recalculate", err)
		return
	}

	writeJSON(w, http.StatusOK, BatchResultDTO{
		Processed: result.Processed,
		Failed:    result.Failed,
	})
}

// Health is a liveness probe.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// periodFromQuery resolves the ?period=YYYY-MM query parameter, defaulting
// to the engine's current calendar month.
func (h *Handler) periodFromQuery(r *http.Request) (rating.Period, error) {
	return h.parsePeriod(r.URL.Query().Get("period"))
}

func (h *Handler) parsePeriod(s string) (rating.Period, error) {
	if s == "" {
		return h.Engine.CurrentPeriod(), nil
	}
	t, err := time.Parse("2006-01", s)
	if err != nil {
		return rating.Period{}, err
	}
	return rating.MonthOf(t), nil
}

// optionalBodyPeriod reads an optional JSON body with a period field and
// returns nil when the body is empty or the field is absent, letting the
// engine default to the current period.
func (h *Handler) optionalBodyPeriod(r *http.Request) (*rating.Period, error) {
	var req RecalculateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Period == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01", req.Period)
	if err != nil {
		return nil, err
	}
	p := rating.MonthOf(t)
	return &p, nil
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

// writeEngineError maps a domain error to an HTTP status by kind.
func writeEngineError(w http.ResponseWriter, message string, err error) {
	switch {
	case rating.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case rating.IsConflict(err):
		writeError(w, http.StatusConflict, message, err)
	case rating.IsValidation(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
