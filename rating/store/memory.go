// Package store provides in-memory implementations of the rating
// persistence interfaces, for tests and development.
package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiftwatch/rating-engine/rating"
)

// =============================================================================
// MEMORY STORE - Implements every rating store interface
// =============================================================================

type Memory struct {
	mu         sync.RWMutex
	rules      map[rating.RuleID]rating.ViolationRule
	violations []rating.Violation
	shiftRule  map[shiftRuleKey]bool
	ratings    map[ratingKey]rating.EmployeeRating
	employees  map[rating.EmployeeID]rating.Employee
	shifts     []rating.Shift
}

type shiftRuleKey struct {
	ShiftID rating.ShiftID
	RuleID  rating.RuleID
}

type ratingKey struct {
	EmployeeID  rating.EmployeeID
	PeriodStart time.Time
	PeriodEnd   time.Time
}

func NewMemory() *Memory {
	return &Memory{
		rules:     make(map[rating.RuleID]rating.ViolationRule),
		shiftRule: make(map[shiftRuleKey]bool),
		ratings:   make(map[ratingKey]rating.EmployeeRating),
		employees: make(map[rating.EmployeeID]rating.Employee),
	}
}

// =============================================================================
// RULE STORE
// =============================================================================

func (m *Memory) CreateRule(_ context.Context, rule rating.ViolationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.codeTakenLocked(rule.CompanyID, rule.Code, rule.ID) {
		return &rating.DuplicateRuleCodeError{CompanyID: rule.CompanyID, Code: rule.Code}
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) UpdateRule(_ context.Context, rule rating.ViolationRule) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.rules[rule.ID]; !ok {
		return rating.ErrRuleNotFound
	}
	if m.codeTakenLocked(rule.CompanyID, rule.Code, rule.ID) {
		return &rating.DuplicateRuleCodeError{CompanyID: rule.CompanyID, Code: rule.Code}
	}
	m.rules[rule.ID] = rule
	return nil
}

func (m *Memory) codeTakenLocked(companyID rating.CompanyID, code string, selfID rating.RuleID) bool {
	for _, r := range m.rules {
		if r.ID != selfID && r.CompanyID == companyID && strings.EqualFold(r.Code, code) {
			return true
		}
	}
	return false
}

func (m *Memory) GetRule(_ context.Context, id rating.RuleID) (*rating.ViolationRule, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rules[id]
	if !ok {
		return nil, rating.ErrRuleNotFound
	}
	return &r, nil
}

func (m *Memory) ListRules(_ context.Context, companyID rating.CompanyID) ([]rating.ViolationRule, error) {
	return m.listRules(companyID, false), nil
}

func (m *Memory) ListActiveRules(_ context.Context, companyID rating.CompanyID) ([]rating.ViolationRule, error) {
	return m.listRules(companyID, true), nil
}

func (m *Memory) listRules(companyID rating.CompanyID, activeOnly bool) []rating.ViolationRule {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rating.ViolationRule
	for _, r := range m.rules {
		if r.CompanyID != companyID {
			continue
		}
		if activeOnly && !r.Active {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })
	return result
}

// =============================================================================
// VIOLATION STORE - Append-only
// =============================================================================

func (m *Memory) CreateViolation(_ context.Context, v rating.Violation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v.Source == rating.SourceAuto && v.ShiftID != "" {
		k := shiftRuleKey{ShiftID: v.ShiftID, RuleID: v.RuleID}
		if m.shiftRule[k] {
			return rating.ErrDuplicateViolation
		}
		m.shiftRule[k] = true
	}
	m.violations = append(m.violations, v)
	return nil
}

func (m *Memory) ViolationsInPeriod(_ context.Context, employeeID rating.EmployeeID, period rating.Period) ([]rating.Violation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rating.Violation
	for _, v := range m.violations {
		if v.EmployeeID == employeeID && period.Contains(v.CreatedAt) {
			result = append(result, v)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	return result, nil
}

func (m *Memory) HasViolationForShift(_ context.Context, shiftID rating.ShiftID, ruleID rating.RuleID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.shiftRule[shiftRuleKey{ShiftID: shiftID, RuleID: ruleID}], nil
}

func (m *Memory) CountByCompanySince(_ context.Context, companyID rating.CompanyID, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, v := range m.violations {
		if v.CompanyID == companyID && !v.CreatedAt.Before(since) {
			count++
		}
	}
	return count, nil
}

// =============================================================================
// RATING STORE - Keyed upsert mirrors ON CONFLICT semantics
// =============================================================================

func (m *Memory) GetRating(_ context.Context, employeeID rating.EmployeeID, period rating.Period) (*rating.EmployeeRating, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.ratings[ratingKey{EmployeeID: employeeID, PeriodStart: period.Start, PeriodEnd: period.End}]
	if !ok {
		return nil, rating.ErrRatingNotFound
	}
	return &row, nil
}

func (m *Memory) UpsertRating(_ context.Context, r rating.EmployeeRating) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := ratingKey{EmployeeID: r.EmployeeID, PeriodStart: r.PeriodStart, PeriodEnd: r.PeriodEnd}
	if existing, ok := m.ratings[k]; ok {
		// Keep the original row id: the upsert updates in place.
		r.ID = existing.ID
	}
	m.ratings[k] = r
	return nil
}

func (m *Memory) AverageRatingByCompany(_ context.Context, companyID rating.CompanyID, period rating.Period) (decimal.Decimal, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := decimal.Zero
	count := 0
	for _, row := range m.ratings {
		if row.CompanyID == companyID && row.PeriodStart.Equal(period.Start) && row.PeriodEnd.Equal(period.End) {
			sum = sum.Add(row.Rating)
			count++
		}
	}
	if count == 0 {
		return decimal.Zero, 0, nil
	}
	return sum.Div(decimal.NewFromInt(int64(count))), count, nil
}

// RatingRowCount reports how many rating rows exist for an (employee,
// period) pair. Test helper for the upsert-uniqueness property.
func (m *Memory) RatingRowCount(employeeID rating.EmployeeID, period rating.Period) int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for k := range m.ratings {
		if k.EmployeeID == employeeID && k.PeriodStart.Equal(period.Start) && k.PeriodEnd.Equal(period.End) {
			count++
		}
	}
	return count
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

func (m *Memory) GetEmployee(_ context.Context, id rating.EmployeeID) (*rating.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	emp, ok := m.employees[id]
	if !ok {
		return nil, rating.ErrEmployeeNotFound
	}
	return &emp, nil
}

func (m *Memory) ListEmployeesByCompany(_ context.Context, companyID rating.CompanyID) ([]rating.Employee, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rating.Employee
	for _, emp := range m.employees {
		if emp.CompanyID == companyID {
			result = append(result, emp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *Memory) ListCompanies(_ context.Context) ([]rating.CompanyID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	seen := make(map[rating.CompanyID]bool)
	var result []rating.CompanyID
	for _, emp := range m.employees {
		if !seen[emp.CompanyID] {
			seen[emp.CompanyID] = true
			result = append(result, emp.CompanyID)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result, nil
}

func (m *Memory) SetEmployeeStatus(_ context.Context, id rating.EmployeeID, status rating.EmployeeStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	emp, ok := m.employees[id]
	if !ok {
		return rating.ErrEmployeeNotFound
	}
	emp.Status = status
	m.employees[id] = emp
	return nil
}

// PutEmployee seeds an employee record. Test/dev helper.
func (m *Memory) PutEmployee(emp rating.Employee) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.employees[emp.ID] = emp
}

// =============================================================================
// SHIFT STORE - Read-only
// =============================================================================

func (m *Memory) ShiftsForDetection(_ context.Context, companyID rating.CompanyID, from, to time.Time) ([]rating.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []rating.Shift
	for _, s := range m.shifts {
		if s.CompanyID != companyID || s.Status == rating.ShiftCancelled {
			continue
		}
		if s.PlannedStart.Before(from) || s.PlannedStart.After(to) {
			continue
		}
		result = append(result, s)
	}
	return result, nil
}

// PutShift seeds a shift record. Test/dev helper.
func (m *Memory) PutShift(s rating.Shift) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shifts = append(m.shifts, s)
}
