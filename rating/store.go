/*
store.go - Persistence interfaces for the rating engine

PURPOSE:
  Defines the contract between the engine and the underlying relational
  store. The engine never talks SQL; it consumes these narrow interfaces.
  Different implementations can use SQLite, PostgreSQL, or in-memory storage.

KEY INTERFACES:
  RuleStore:      Violation rule catalog (create/update/read)
  ViolationStore: Append-only violation facts
  RatingStore:    Rating rows with an ATOMIC per-(employee, period) upsert
  EmployeeStore:  Employee reads plus the status mutation
  ShiftStore:     Read-only shift/interval source for the detector

UPSERT CONTRACT:
  RatingStore.Upsert must be safe under concurrent invocation for the same
  (employee, period): INSERT ... ON CONFLICT DO UPDATE semantics or an
  equivalent compare-and-set, never an application-level read-then-write.
  After N concurrent upserts exactly one row exists for the pair.

VIOLATION IMMUTABILITY:
  ViolationStore has no update or delete. Violations are historical facts;
  a recorded penalty never changes, even when its rule is later edited.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite (same SQL shape as PostgreSQL)
  - rating/store/memory.go: In-memory for tests

SEE ALSO:
  - engine.go: Composes these into the public operations
*/
package rating

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// RULE STORE
// =============================================================================

// RuleStore persists the per-company rule catalog.
type RuleStore interface {
	// CreateRule persists a new rule. Returns DuplicateRuleCodeError if the
	// code already exists in the company, compared case-insensitively.
	CreateRule(ctx context.Context, rule ViolationRule) error

	// UpdateRule replaces a rule's mutable fields. Code uniqueness is
	// re-checked when the code changes.
	UpdateRule(ctx context.Context, rule ViolationRule) error

	// GetRule returns ErrRuleNotFound when the id is unknown.
	GetRule(ctx context.Context, id RuleID) (*ViolationRule, error)

	// ListRules returns all rules for a company, active or not.
	ListRules(ctx context.Context, companyID CompanyID) ([]ViolationRule, error)

	// ListActiveRules returns rules with Active=true for a company.
	ListActiveRules(ctx context.Context, companyID CompanyID) ([]ViolationRule, error)
}

// =============================================================================
// VIOLATION STORE
// =============================================================================

// ViolationStore is append-only. No update, no delete.
type ViolationStore interface {
	// CreateViolation persists a violation. For auto violations it returns
	// ErrDuplicateViolation when a violation for the same (shift, rule)
	// pair already exists.
	CreateViolation(ctx context.Context, v Violation) error

	// ViolationsInPeriod returns an employee's violations whose CreatedAt
	// falls inside the period, ordered by CreatedAt.
	ViolationsInPeriod(ctx context.Context, employeeID EmployeeID, period Period) ([]Violation, error)

	// HasViolationForShift reports whether an auto violation exists for the
	// (shift, rule) pair. The detector's idempotence fast path; the unique
	// index is the backstop.
	HasViolationForShift(ctx context.Context, shiftID ShiftID, ruleID RuleID) (bool, error)

	// CountByCompanySince counts a company's violations created at or after
	// the given time. Used by the stats endpoint.
	CountByCompanySince(ctx context.Context, companyID CompanyID, since time.Time) (int, error)
}

// =============================================================================
// RATING STORE
// =============================================================================

// RatingStore persists one row per (employee, period).
type RatingStore interface {
	// GetRating returns ErrRatingNotFound when no row exists for the exact
	// (employee, periodStart, periodEnd) triple.
	GetRating(ctx context.Context, employeeID EmployeeID, period Period) (*EmployeeRating, error)

	// UpsertRating atomically inserts or updates the row for the rating's
	// (employee, period) pair. Last writer wins on the value; the row count
	// for the pair is always exactly one.
	UpsertRating(ctx context.Context, r EmployeeRating) error

	// AverageRatingByCompany returns the mean rating and row count over a
	// company's rating rows for the given period. Count is zero when no
	// rows exist. Feeds the stats endpoint.
	AverageRatingByCompany(ctx context.Context, companyID CompanyID, period Period) (decimal.Decimal, int, error)
}

// =============================================================================
// EMPLOYEE STORE
// =============================================================================

// EmployeeStore reads employees and carries the single cross-entity mutation
// the engine performs: terminating an employee whose rating collapses.
type EmployeeStore interface {
	// GetEmployee returns ErrEmployeeNotFound when the id is unknown.
	GetEmployee(ctx context.Context, id EmployeeID) (*Employee, error)

	// ListEmployeesByCompany returns a company's employees.
	ListEmployeesByCompany(ctx context.Context, companyID CompanyID) ([]Employee, error)

	// ListCompanies returns every company id present in the employee table.
	// Used by global recalculation and the detection scheduler.
	ListCompanies(ctx context.Context) ([]CompanyID, error)

	// SetEmployeeStatus updates the employee's own status field.
	SetEmployeeStatus(ctx context.Context, id EmployeeID, status EmployeeStatus) error
}

// =============================================================================
// SHIFT STORE - Read-only collaborator
// =============================================================================

// ShiftStore exposes shift records to the detector. The engine never writes
// shifts; status transitions belong to the scheduling layer.
type ShiftStore interface {
	// ShiftsForDetection returns a company's non-cancelled shifts whose
	// planned start falls in [from, to], with break intervals attached.
	ShiftsForDetection(ctx context.Context, companyID CompanyID, from, to time.Time) ([]Shift, error)
}
