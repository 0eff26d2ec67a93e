/*
engine.go - Orchestration of detection, recalculation, and side effects

PURPOSE:
  The Engine is the composition root: it validates tenancy, snapshots the
  rule penalty onto new violations, triggers recalculation through an
  explicit post-write hook, and couples every successful mutation to cache
  invalidation and a best-effort notification.

ORDERING GUARANTEE:
  Within RecordViolation, the violation write commits before recalculation
  reads the violation set — otherwise the new violation would be invisible
  to its own recalculation. Each recalculation pass re-reads the full set,
  so concurrent callers on the same employee/period converge.

SIDE-EFFECT POLICY:
  Cache invalidation and notification failures are logged and swallowed.
  They never mask or roll back a successful data mutation.

SEE ALSO:
  - calculator.go: Recompute and adjust semantics
  - detector.go: Scan semantics
  - store.go: Persistence contracts
*/
package rating

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/shiftwatch/rating-engine/notify"
)

// StatsInvalidator is the slice of the stats cache the engine needs.
// cache.Memory and cache.Redis satisfy it.
type StatsInvalidator interface {
	Invalidate(ctx context.Context, companyID string) error
}

// =============================================================================
// ENGINE
// =============================================================================

// Engine exposes the public operation set.
type Engine struct {
	Rules      RuleStore
	Violations ViolationStore
	Ratings    RatingStore
	Employees  EmployeeStore

	Calculator *Calculator
	Detector   *Detector

	Cache    StatsInvalidator
	Notifier notify.Notifier
	Clock    Clock

	// onViolationRecorded runs after a violation commit. Defaults to
	// recalculating the employee's current period; replaceable so a
	// high-throughput deployment can batch or debounce it.
	onViolationRecorded ViolationRecordedFunc
}

// NewEngine wires the default composition: detector and calculator over the
// given stores, recalculation hooked to every recorded violation.
func NewEngine(rules RuleStore, violations ViolationStore, ratings RatingStore, employees EmployeeStore, shifts ShiftStore, statsCache StatsInvalidator, notifier notify.Notifier) *Engine {
	e := &Engine{
		Rules:      rules,
		Violations: violations,
		Ratings:    ratings,
		Employees:  employees,
		Calculator: NewCalculator(violations, ratings, employees),
		Cache:      statsCache,
		Notifier:   notifier,
		Clock:      RealClock{},
	}
	e.onViolationRecorded = e.recalculateForViolation
	e.Detector = NewDetector(rules, shifts, violations)
	e.Detector.OnViolationRecorded = e.onViolationRecorded
	return e
}

// SetViolationRecordedHook replaces the post-write recalculation trigger.
// For tests and batched deployments.
func (e *Engine) SetViolationRecordedHook(fn ViolationRecordedFunc) {
	e.onViolationRecorded = fn
	if e.Detector != nil {
		e.Detector.OnViolationRecorded = fn
	}
}

// recalculateForViolation is the default post-write hook: recompute the
// employee's rating for the period containing the violation.
func (e *Engine) recalculateForViolation(ctx context.Context, v Violation) error {
	period := MonthOf(v.CreatedAt)
	if _, err := e.Calculator.Recalculate(ctx, v.EmployeeID, period); err != nil {
		return err
	}
	e.afterMutation(ctx, v.CompanyID, notify.Event{
		Name:       notify.EventRatingUpdated,
		CompanyID:  string(v.CompanyID),
		EmployeeID: string(v.EmployeeID),
		At:         e.Clock.Now(),
	})
	return nil
}

// =============================================================================
// VIOLATION OPERATIONS
// =============================================================================

// RecordViolation validates tenancy, snapshots the rule's penalty, persists
// the violation, recalculates the employee's current-period rating, then
// invalidates the company cache and emits violation.detected.
func (e *Engine) RecordViolation(ctx context.Context, employeeID EmployeeID, companyID CompanyID, ruleID RuleID, source ViolationSource, reason, createdBy string) (*Violation, error) {
	emp, err := e.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}
	rule, err := e.Rules.GetRule(ctx, ruleID)
	if err != nil {
		return nil, err
	}

	// All three ids must agree on tenancy before any write happens.
	if emp.CompanyID != companyID || rule.CompanyID != companyID {
		return nil, &ScopeMismatchError{
			EmployeeID:      emp.ID,
			EmployeeCompany: emp.CompanyID,
			RuleID:          rule.ID,
			RuleCompany:     rule.CompanyID,
			CompanyID:       companyID,
		}
	}
	if !rule.Active {
		return nil, fmt.Errorf("%w: %s", ErrRuleInactive, rule.Code)
	}
	if source != SourceAuto && source != SourceManual {
		return nil, fmt.Errorf("invalid violation source %q", source)
	}

	v := Violation{
		ID:         ViolationID(uuid.NewString()),
		EmployeeID: employeeID,
		CompanyID:  companyID,
		RuleID:     ruleID,
		Source:     source,
		Reason:     reason,
		CreatedBy:  createdBy,
		Penalty:    rule.PenaltyWeight, // snapshot, never a live reference
		CreatedAt:  e.Clock.Now(),
	}

	if err := e.Violations.CreateViolation(ctx, v); err != nil {
		return nil, fmt.Errorf("failed to persist violation: %w", err)
	}

	if e.onViolationRecorded != nil {
		if err := e.onViolationRecorded(ctx, v); err != nil {
			// The violation is durable; surface the recalculation failure.
			return &v, fmt.Errorf("violation recorded but recalculation failed: %w", err)
		}
	}

	e.afterMutation(ctx, companyID, notify.Event{
		Name:       notify.EventViolationDetected,
		CompanyID:  string(companyID),
		EmployeeID: string(employeeID),
		Detail:     rule.Code,
		At:         v.CreatedAt,
	})

	return &v, nil
}

// ViolationsForEmployee lists an employee's violations inside a period.
func (e *Engine) ViolationsForEmployee(ctx context.Context, employeeID EmployeeID, period Period) ([]Violation, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.Employees.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return e.Violations.ViolationsInPeriod(ctx, employeeID, period)
}

// =============================================================================
// RATING OPERATIONS
// =============================================================================

// GetRating returns the stored rating row for an explicit period.
func (e *Engine) GetRating(ctx context.Context, employeeID EmployeeID, period Period) (*EmployeeRating, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	if _, err := e.Employees.GetEmployee(ctx, employeeID); err != nil {
		return nil, err
	}
	return e.Ratings.GetRating(ctx, employeeID, period)
}

// RecalculateEmployee recomputes one employee's rating for a period and
// returns the resulting row.
func (e *Engine) RecalculateEmployee(ctx context.Context, employeeID EmployeeID, period Period) (*EmployeeRating, error) {
	row, err := e.Calculator.Recalculate(ctx, employeeID, period)
	if err != nil {
		return nil, err
	}
	e.afterMutation(ctx, row.CompanyID, notify.Event{
		Name:       notify.EventRatingUpdated,
		CompanyID:  string(row.CompanyID),
		EmployeeID: string(employeeID),
		At:         e.Clock.Now(),
	})
	return row, nil
}

// AdjustRating applies a manual delta — the sole additive path, exempt from
// recompute-from-violations. Used for rating restoration after a resolved
// dispute.
func (e *Engine) AdjustRating(ctx context.Context, employeeID EmployeeID, period Period, delta decimal.Decimal) (*EmployeeRating, error) {
	row, err := e.Calculator.Adjust(ctx, employeeID, period, delta)
	if err != nil {
		return nil, err
	}
	e.afterMutation(ctx, row.CompanyID, notify.Event{
		Name:       notify.EventRatingUpdated,
		CompanyID:  string(row.CompanyID),
		EmployeeID: string(employeeID),
		Detail:     fmt.Sprintf("manual adjustment %s", delta),
		At:         e.Clock.Now(),
	})
	return row, nil
}

// RecalculateCompany recalculates every employee of one company for the
// period, defaulting to the current calendar month.
func (e *Engine) RecalculateCompany(ctx context.Context, companyID CompanyID, period *Period) (BatchResult, error) {
	p := e.defaultPeriod(period)
	if err := p.Validate(); err != nil {
		return BatchResult{}, err
	}

	employees, err := e.Employees.ListEmployeesByCompany(ctx, companyID)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list employees for %s: %w", companyID, err)
	}
	if len(employees) == 0 {
		return BatchResult{}, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}

	ids := make([]EmployeeID, len(employees))
	for i, emp := range employees {
		ids[i] = emp.ID
	}

	result, err := e.Calculator.RecalculateBatch(ctx, ids, p)
	if err != nil {
		return result, err
	}

	e.afterMutation(ctx, companyID, notify.Event{
		Name:      notify.EventRatingUpdated,
		CompanyID: string(companyID),
		Detail:    fmt.Sprintf("company recalculation: %d processed", result.Processed),
		At:        e.Clock.Now(),
	})
	return result, nil
}

// RecalculateAll recalculates every employee of every company. Company
// failures are isolated; the run reports the aggregate.
func (e *Engine) RecalculateAll(ctx context.Context, period *Period) (BatchResult, error) {
	p := e.defaultPeriod(period)
	if err := p.Validate(); err != nil {
		return BatchResult{}, err
	}

	companies, err := e.Employees.ListCompanies(ctx)
	if err != nil {
		return BatchResult{}, fmt.Errorf("failed to list companies: %w", err)
	}

	var total BatchResult
	for _, companyID := range companies {
		result, err := e.RecalculateCompany(ctx, companyID, &p)
		total.Processed += result.Processed
		total.Failed += result.Failed
		if err != nil {
			log.Printf("[Engine] company %s recalculation failed: %v", companyID, err)
		}
	}
	return total, nil
}

// RunDetection triggers a detection scan for one company.
func (e *Engine) RunDetection(ctx context.Context, companyID CompanyID) (ScanResult, error) {
	result, err := e.Detector.ScanCompany(ctx, companyID)
	if err != nil {
		return result, err
	}
	if result.ViolationsCreated > 0 {
		e.afterMutation(ctx, companyID, notify.Event{
			Name:      notify.EventViolationDetected,
			CompanyID: string(companyID),
			Detail:    fmt.Sprintf("detection scan: %d new violations", result.ViolationsCreated),
			At:        e.Clock.Now(),
		})
	}
	return result, nil
}

// =============================================================================
// RULE OPERATIONS
// =============================================================================

// CreateRule persists a new violation rule. Rejects duplicate codes within
// the company case-insensitively, invalid penalties, and unknown condition
// kinds — all before any write.
func (e *Engine) CreateRule(ctx context.Context, rule ViolationRule) (*ViolationRule, error) {
	rule.Code = strings.TrimSpace(rule.Code)
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	if rule.ID == "" {
		rule.ID = RuleID(uuid.NewString())
	}
	now := e.Clock.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	if err := e.Rules.CreateRule(ctx, rule); err != nil {
		return nil, err
	}

	e.invalidate(ctx, rule.CompanyID)
	return &rule, nil
}

// UpdateRule applies a partial update. Code uniqueness is re-checked by the
// store when the code changes. Deactivation never touches violations
// already recorded under the rule.
func (e *Engine) UpdateRule(ctx context.Context, id RuleID, update RuleUpdate) (*ViolationRule, error) {
	rule, err := e.Rules.GetRule(ctx, id)
	if err != nil {
		return nil, err
	}

	update.apply(rule)
	rule.Code = strings.TrimSpace(rule.Code)
	if err := rule.Validate(); err != nil {
		return nil, err
	}
	rule.UpdatedAt = e.Clock.Now()

	if err := e.Rules.UpdateRule(ctx, *rule); err != nil {
		return nil, err
	}

	e.invalidate(ctx, rule.CompanyID)
	return rule, nil
}

// RuleUpdate is a partial rule edit; nil fields are left unchanged.
type RuleUpdate struct {
	Code           *string
	Name           *string
	Description    *string
	PenaltyWeight  *decimal.Decimal
	AutoDetectable *bool
	Active         *bool
	Condition      *DetectionCondition
	ClearCondition bool
}

func (u RuleUpdate) apply(rule *ViolationRule) {
	if u.Code != nil {
		rule.Code = *u.Code
	}
	if u.Name != nil {
		rule.Name = *u.Name
	}
	if u.Description != nil {
		rule.Description = *u.Description
	}
	if u.PenaltyWeight != nil {
		rule.PenaltyWeight = *u.PenaltyWeight
	}
	if u.AutoDetectable != nil {
		rule.AutoDetectable = *u.AutoDetectable
	}
	if u.Active != nil {
		rule.Active = *u.Active
	}
	if u.Condition != nil {
		rule.Condition = u.Condition
	}
	if u.ClearCondition {
		rule.Condition = nil
	}
}

// =============================================================================
// SIDE EFFECTS
// =============================================================================

// afterMutation runs the non-fatal side effects of a successful mutation.
func (e *Engine) afterMutation(ctx context.Context, companyID CompanyID, event notify.Event) {
	e.invalidate(ctx, companyID)

	if e.Notifier != nil {
		if err := e.Notifier.Publish(ctx, event); err != nil {
			log.Printf("[Engine] notification %s dropped: %v", event.Name, err)
		}
	}
}

func (e *Engine) invalidate(ctx context.Context, companyID CompanyID) {
	if e.Cache == nil {
		return
	}
	if err := e.Cache.Invalidate(ctx, string(companyID)); err != nil {
		log.Printf("[Engine] cache invalidation for %s failed: %v", companyID, err)
	}
}

func (e *Engine) defaultPeriod(p *Period) Period {
	if p != nil {
		return *p
	}
	return MonthOf(e.Clock.Now())
}

// CurrentPeriod is the period containing "now" per the engine's clock.
func (e *Engine) CurrentPeriod() Period { return MonthOf(e.Clock.Now()) }
