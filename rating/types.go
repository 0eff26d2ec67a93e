/*
Package rating provides the core rating and violation engine.

PURPOSE:
  This package contains the domain types and algorithms for tracking
  attendance violations and maintaining a per-employee reliability rating.
  Companies define penalty-weighted violation rules; the detector scans
  shifts for breaches; the calculator re-derives a bounded rating per
  employee per rating period.

KEY CONCEPTS IN THIS FILE (types.go):
  - Violation: An immutable historical fact with a snapshotted penalty
  - EmployeeRating: One row per (employee, period), always recomputed
  - Tier: Classification derived from the rating value (active/warning/terminated)
  - Employee/Company/Rule IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Immutability: Violations are never modified after creation
  2. Precision: Uses decimal.Decimal to avoid floating-point errors
  3. Snapshot semantics: A violation's penalty is copied from its rule at
     creation time; later rule edits never alter history
  4. Recompute-from-scratch: The rating is a pure function of the violation
     set in a period, never an incrementally patched value

SEE ALSO:
  - rule.go: Violation rules and detection conditions
  - calculator.go: Rating recomputation and tier derivation
  - detector.go: Shift scanning
  - engine.go: Orchestration, cache and notification coupling
*/
package rating

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type EmployeeID string
type CompanyID string
type RuleID string
type ViolationID string
type ShiftID string
type RatingID string

// =============================================================================
// RATING VALUE - Bounded decimal with tier derivation
// =============================================================================

// MaxRating is the rating every employee starts each period with.
var MaxRating = decimal.NewFromInt(100)

// Tier thresholds. Boundaries are inclusive: exactly 30 is terminated,
// exactly 50 is warning.
var (
	terminatedCeiling = decimal.NewFromInt(30)
	warningCeiling    = decimal.NewFromInt(50)
)

// Tier classifies a rating value.
type Tier string

const (
	TierActive     Tier = "active"
	TierWarning    Tier = "warning"
	TierTerminated Tier = "terminated"
)

// TierFor derives the tier from a rating value.
func TierFor(rating decimal.Decimal) Tier {
	switch {
	case rating.LessThanOrEqual(terminatedCeiling):
		return TierTerminated
	case rating.LessThanOrEqual(warningCeiling):
		return TierWarning
	default:
		return TierActive
	}
}

// ClampRating bounds a rating value to [0, 100].
func ClampRating(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(MaxRating) {
		return MaxRating
	}
	return v
}

// =============================================================================
// VIOLATION - Immutable historical fact
// =============================================================================

// ViolationSource distinguishes detector-created violations from
// administrative ones.
type ViolationSource string

const (
	SourceAuto   ViolationSource = "auto"
	SourceManual ViolationSource = "manual"
)

// Violation records a single policy breach. Penalty is a snapshot of the
// rule's weight at creation time, not a live reference.
type Violation struct {
	ID         ViolationID
	EmployeeID EmployeeID
	CompanyID  CompanyID
	RuleID     RuleID
	ShiftID    ShiftID // empty for manual violations not tied to a shift
	Source     ViolationSource
	Reason     string
	CreatedBy  string // actor reference for manual violations
	Penalty    decimal.Decimal
	CreatedAt  time.Time
}

// =============================================================================
// EMPLOYEE RATING - One row per (employee, period)
// =============================================================================

// EmployeeRating is the upsert target of every recalculation. At most one
// row exists per employee per exact (PeriodStart, PeriodEnd) pair.
type EmployeeRating struct {
	ID          RatingID
	EmployeeID  EmployeeID
	CompanyID   CompanyID
	PeriodStart time.Time
	PeriodEnd   time.Time
	Rating      decimal.Decimal
	Status      Tier
	UpdatedAt   time.Time
}

// =============================================================================
// EMPLOYEE - Read model plus the one field the engine mutates
// =============================================================================

// EmployeeStatus is the employee's own lifecycle state, separate from the
// rating tier. A terminated employee is frozen from receiving new shifts
// (enforced by the scheduling layer).
type EmployeeStatus string

const (
	EmployeeActive     EmployeeStatus = "active"
	EmployeeTerminated EmployeeStatus = "terminated"
)

type Employee struct {
	ID        EmployeeID
	CompanyID CompanyID
	Name      string
	Status    EmployeeStatus
	CreatedAt time.Time
}
