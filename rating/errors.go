/*
errors.go - Centralized error types for the rating engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The HTTP layer maps these to status codes via the classification helpers
  so dashboards can render "rule not found" differently from "validation
  failed".

ERROR CATEGORIES:
  1. Not-found errors   - Referenced employee/rule/company/rating missing
  2. Validation errors  - Malformed penalty, period, delta, condition
  3. Conflict errors    - Duplicate rule code, duplicate auto violation,
                          cross-tenant scope mismatch
  4. Storage errors     - Underlying store failures (wrapped)

SEE ALSO:
  - engine.go: Rejects with these before any write
  - api/handlers.go: Status-code mapping
*/
package rating

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRuleNotFound is returned when a referenced violation rule doesn't exist.
	ErrRuleNotFound = errors.New("violation rule not found")

	// ErrCompanyNotFound is returned when a referenced company doesn't exist.
	ErrCompanyNotFound = errors.New("company not found")

	// ErrRatingNotFound is returned when no rating row exists for the
	// requested (employee, period) pair.
	ErrRatingNotFound = errors.New("rating not found for period")

	// ErrScopeMismatch is returned when an employee/rule/company triple
	// crosses tenant boundaries. Rejected before any write.
	ErrScopeMismatch = errors.New("employee, rule and company do not belong to the same tenant")

	// ErrDuplicateRuleCode is returned when a rule code collides
	// case-insensitively within a company.
	ErrDuplicateRuleCode = errors.New("rule code already exists in company")

	// ErrDuplicateViolation is returned when an auto violation for the same
	// (shift, rule) pair already exists. Detection treats this as benign.
	ErrDuplicateViolation = errors.New("violation already recorded for shift and rule")

	// ErrRuleInactive is returned when a violation references a deactivated
	// rule. Applies to manual creation as well as auto-detection.
	ErrRuleInactive = errors.New("violation rule is not active")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")

	// ErrInvalidPenalty is returned when a penalty weight falls outside [0, 100].
	ErrInvalidPenalty = errors.New("penalty weight must be between 0 and 100")

	// ErrUnknownConditionKind is returned when a rule carries a detection
	// condition the detector cannot evaluate. Rejected at rule creation.
	ErrUnknownConditionKind = errors.New("unknown detection condition kind")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ScopeMismatchError reports which ids disagreed on tenancy.
type ScopeMismatchError struct {
	EmployeeID      EmployeeID
	EmployeeCompany CompanyID
	RuleID          RuleID
	RuleCompany     CompanyID
	CompanyID       CompanyID
}

func (e *ScopeMismatchError) Error() string {
	return fmt.Sprintf("scope mismatch: employee %s belongs to %s, rule %s belongs to %s, request targeted %s",
		e.EmployeeID, e.EmployeeCompany, e.RuleID, e.RuleCompany, e.CompanyID)
}

func (e *ScopeMismatchError) Unwrap() error { return ErrScopeMismatch }

// PenaltyRangeError reports an out-of-range penalty weight.
type PenaltyRangeError struct {
	Weight decimal.Decimal
}

func (e *PenaltyRangeError) Error() string {
	return fmt.Sprintf("penalty weight %s outside [0, 100]", e.Weight)
}

func (e *PenaltyRangeError) Unwrap() error { return ErrInvalidPenalty }

// DuplicateRuleCodeError reports the colliding code and company.
type DuplicateRuleCodeError struct {
	CompanyID CompanyID
	Code      string
}

func (e *DuplicateRuleCodeError) Error() string {
	return fmt.Sprintf("rule code %q already exists in company %s (codes are case-insensitive)", e.Code, e.CompanyID)
}

func (e *DuplicateRuleCodeError) Unwrap() error { return ErrDuplicateRuleCode }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrCompanyNotFound) ||
		errors.Is(err, ErrRatingNotFound)
}

// IsValidation returns true if the error is due to invalid input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidPenalty) ||
		errors.Is(err, ErrRuleInactive) ||
		errors.Is(err, ErrUnknownConditionKind)
}

// IsConflict returns true for tenancy and uniqueness violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrScopeMismatch) ||
		errors.Is(err, ErrDuplicateRuleCode) ||
		errors.Is(err, ErrDuplicateViolation)
}
