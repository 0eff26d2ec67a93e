package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwatch/rating-engine/api"
	"github.com/shiftwatch/rating-engine/cache"
	"github.com/shiftwatch/rating-engine/notify"
	"github.com/shiftwatch/rating-engine/rating"
	"github.com/shiftwatch/rating-engine/rating/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

type testServer struct {
	router http.Handler
	mem    *store.Memory
	engine *rating.Engine
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	mem := store.NewMemory()
	stats := cache.NewMemory(time.Minute)
	engine := rating.NewEngine(mem, mem, mem, mem, mem, stats, notify.LogNotifier{})
	handler := api.NewHandler(engine, stats)

	mem.PutEmployee(rating.Employee{ID: "emp-1", CompanyID: "acme", Name: "Alice", Status: rating.EmployeeActive})
	mem.PutEmployee(rating.Employee{ID: "emp-2", CompanyID: "globex", Name: "Greta", Status: rating.EmployeeActive})

	return &testServer{router: api.NewRouter(handler), mem: mem, engine: engine}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func (s *testServer) createRule(t *testing.T, company string, body map[string]any) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/companies/"+company+"/rules", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](t, rec)["id"].(string)
}

// =============================================================================
// RULE ENDPOINTS
// =============================================================================

func TestAPI_CreateRule_AndDuplicateCode(t *testing.T) {
	s := newTestServer(t)

	body := map[string]any{
		"code": "LATE", "name": "Late arrival", "penalty_weight": "5",
		"auto_detectable": true,
		"condition":       map[string]any{"kind": "late_arrival", "threshold_minutes": 15},
	}
	s.createRule(t, "acme", body)

	// Case-insensitive collision within the company
	body["code"] = "late"
	rec := s.do(t, http.MethodPost, "/api/companies/acme/rules", body)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Same code in another company is fine
	body["code"] = "LATE"
	rec = s.do(t, http.MethodPost, "/api/companies/globex/rules", body)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestAPI_CreateRule_InvalidPenalty_BadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/companies/acme/rules", map[string]any{
		"code": "BAD", "name": "Bad", "penalty_weight": "150",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_UpdateRule_PartialAndNotFound(t *testing.T) {
	s := newTestServer(t)
	id := s.createRule(t, "acme", map[string]any{
		"code": "CONDUCT", "name": "Conduct", "penalty_weight": "10",
	})

	rec := s.do(t, http.MethodPut, "/api/rules/"+id, map[string]any{"penalty_weight": "20"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[map[string]any](t, rec)
	assert.Equal(t, "20", updated["penalty_weight"])
	assert.Equal(t, "CONDUCT", updated["code"], "unchanged fields survive")

	rec = s.do(t, http.MethodPut, "/api/rules/ghost", map[string]any{"name": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// VIOLATION AND RATING ENDPOINTS
// =============================================================================

func TestAPI_RecordViolation_DropsRating(t *testing.T) {
	s := newTestServer(t)
	ruleID := s.createRule(t, "acme", map[string]any{
		"code": "CONDUCT", "name": "Conduct", "penalty_weight": "10",
	})

	rec := s.do(t, http.MethodPost, "/api/violations", map[string]any{
		"employee_id": "emp-1", "company_id": "acme", "rule_id": ruleID,
		"reason": "customer complaint", "created_by": "mgr-9",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[map[string]any](t, rec)
	assert.Equal(t, "10", created["penalty"])
	assert.Equal(t, "manual", created["source"])

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/rating", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	row := decode[map[string]any](t, rec)
	assert.Equal(t, "90", row["rating"])
	assert.Equal(t, "active", row["status"])
}

func TestAPI_RecordViolation_ScopeMismatch_Conflict(t *testing.T) {
	s := newTestServer(t)
	ruleID := s.createRule(t, "globex", map[string]any{
		"code": "CONDUCT", "name": "Conduct", "penalty_weight": "10",
	})

	rec := s.do(t, http.MethodPost, "/api/violations", map[string]any{
		"employee_id": "emp-1", "company_id": "globex", "rule_id": ruleID,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAPI_RecordViolation_MissingFields_BadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/violations", map[string]any{"employee_id": "emp-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_GetRating_NoRowYet_NotFound(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/employees/emp-1/rating", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_GetRating_BadPeriod_BadRequest(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/employees/emp-1/rating?period=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_AdjustRating(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/employees/emp-1/rating/adjust", map[string]any{
		"delta": "-20",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	row := decode[map[string]any](t, rec)
	assert.Equal(t, "80", row["rating"])

	rec = s.do(t, http.MethodPost, "/api/employees/emp-1/rating/adjust", map[string]any{
		"delta": "lots",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListEmployeeViolations(t *testing.T) {
	s := newTestServer(t)
	ruleID := s.createRule(t, "acme", map[string]any{
		"code": "CONDUCT", "name": "Conduct", "penalty_weight": "10",
	})
	rec := s.do(t, http.MethodPost, "/api/violations", map[string]any{
		"employee_id": "emp-1", "company_id": "acme", "rule_id": ruleID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/employees/emp-1/violations", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	violations := decode[[]map[string]any](t, rec)
	assert.Len(t, violations, 1)

	rec = s.do(t, http.MethodGet, "/api/employees/ghost/violations", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// COMPANY ENDPOINTS
// =============================================================================

func TestAPI_RecalculateCompany(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/companies/acme/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), result["processed"])

	rec = s.do(t, http.MethodPost, "/api/companies/ghost/recalculate", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TriggerDetection(t *testing.T) {
	s := newTestServer(t)
	s.createRule(t, "acme", map[string]any{
		"code": "LATE", "name": "Late", "penalty_weight": "5",
		"auto_detectable": true,
		"condition":       map[string]any{"kind": "late_arrival", "threshold_minutes": 15},
	})

	// A shift 30 minutes late, planned within the scan lookback
	start := time.Now().UTC().Add(-6 * time.Hour)
	actual := start.Add(30 * time.Minute)
	end := start.Add(4 * time.Hour)
	s.mem.PutShift(rating.Shift{
		ID: "shift-1", EmployeeID: "emp-1", CompanyID: "acme",
		PlannedStart: start, PlannedEnd: end,
		ActualStart: &actual, ActualEnd: &end,
		Status: rating.ShiftCompleted,
	})

	rec := s.do(t, http.MethodPost, "/api/companies/acme/detect", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]any](t, rec)
	assert.Equal(t, float64(1), result["shifts_scanned"])
	assert.Equal(t, float64(1), result["violations_created"])
}

func TestAPI_CompanyStats_CachedSecondRead(t *testing.T) {
	// GIVEN: A company with one computed rating
	// WHEN: Reading stats twice
	// THEN: Second read is served from cache (X-Cache: hit)

	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/companies/acme/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/companies/acme/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, "100.00", stats["average_rating"])
	assert.Equal(t, float64(1), stats["rated_employees"])
	assert.Empty(t, rec.Header().Get("X-Cache"))

	rec = s.do(t, http.MethodGet, "/api/companies/acme/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hit", rec.Header().Get("X-Cache"))
}

func TestAPI_CompanyStats_InvalidatedByViolation(t *testing.T) {
	// GIVEN: Warm stats cache
	// WHEN: A violation is recorded for the company
	// THEN: The next stats read recomputes with the reduced average

	s := newTestServer(t)
	ruleID := s.createRule(t, "acme", map[string]any{
		"code": "CONDUCT", "name": "Conduct", "penalty_weight": "10",
	})

	rec := s.do(t, http.MethodPost, "/api/companies/acme/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = s.do(t, http.MethodGet, "/api/companies/acme/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/violations", map[string]any{
		"employee_id": "emp-1", "company_id": "acme", "rule_id": ruleID,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/companies/acme/stats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Cache"), "mutation must invalidate the cache")
	stats := decode[map[string]any](t, rec)
	assert.Equal(t, "90.00", stats["average_rating"])
	assert.Equal(t, float64(1), stats["violations_30d"])
}

// =============================================================================
// ADMIN AND HEALTH
// =============================================================================

func TestAPI_AdminRecalculate_AllCompanies(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/admin/recalculate", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[map[string]any](t, rec)
	assert.Equal(t, float64(2), result["processed"])
}

func TestAPI_Healthz(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}
