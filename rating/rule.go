/*
rule.go - Violation rules and detection conditions

PURPOSE:
  A ViolationRule is a company's definition of one detectable breach: a
  human code, a penalty weight, and (for auto-detectable rules) a structured
  detection condition the detector can evaluate.

DETECTION CONDITIONS:
  Conditions are a closed tagged variant, one per detectable rule class:
    late_arrival    {threshold_minutes}
    no_show         {}
    extended_break  {max_minutes}
    early_departure {threshold_minutes}
  Unknown kinds are rejected at rule creation, so the detector can switch
  exhaustively over known kinds.

SEE ALSO:
  - detector.go: Evaluates conditions against shifts
  - engine.go: Code uniqueness and penalty validation on create/update
*/
package rating

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VIOLATION RULE
// =============================================================================

// ViolationRule belongs to exactly one company. Read-only to the engine's
// detection and calculation paths; created and edited via the rule operations.
//
// INVARIANTS:
//   - Code is unique within a company regardless of case.
//   - PenaltyWeight is within [0, 100].
//   - Deactivating a rule never removes violations already recorded under it.
type ViolationRule struct {
	ID             RuleID
	CompanyID      CompanyID
	Code           string
	Name           string
	Description    string
	PenaltyWeight  decimal.Decimal
	AutoDetectable bool
	Active         bool
	Condition      *DetectionCondition // nil for rules without auto-detection
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Validate checks the rule's own fields, not cross-record uniqueness.
func (r ViolationRule) Validate() error {
	if r.Code == "" {
		return fmt.Errorf("rule code is required")
	}
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if r.PenaltyWeight.IsNegative() || r.PenaltyWeight.GreaterThan(MaxRating) {
		return &PenaltyRangeError{Weight: r.PenaltyWeight}
	}
	if r.AutoDetectable {
		if r.Condition == nil {
			return fmt.Errorf("auto-detectable rule requires a detection condition")
		}
		if err := r.Condition.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// DETECTION CONDITION - Closed tagged variant
// =============================================================================

type ConditionKind string

const (
	KindLateArrival    ConditionKind = "late_arrival"
	KindNoShow         ConditionKind = "no_show"
	KindExtendedBreak  ConditionKind = "extended_break"
	KindEarlyDeparture ConditionKind = "early_departure"
)

// DetectionCondition parameterizes one rule class. Exactly the fields for
// its Kind are meaningful; the rest stay zero.
type DetectionCondition struct {
	Kind             ConditionKind `json:"kind"`
	ThresholdMinutes int           `json:"threshold_minutes,omitempty"` // late_arrival, early_departure
	MaxMinutes       int           `json:"max_minutes,omitempty"`       // extended_break
}

// Validate rejects unknown kinds and nonsensical parameters.
func (c DetectionCondition) Validate() error {
	switch c.Kind {
	case KindLateArrival, KindEarlyDeparture:
		if c.ThresholdMinutes < 0 {
			return fmt.Errorf("%s: threshold_minutes must not be negative", c.Kind)
		}
	case KindNoShow:
		// No parameters.
	case KindExtendedBreak:
		if c.MaxMinutes <= 0 {
			return fmt.Errorf("%s: max_minutes must be positive", c.Kind)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownConditionKind, c.Kind)
	}
	return nil
}

// Threshold returns the condition's grace window as a duration.
func (c DetectionCondition) Threshold() time.Duration {
	return time.Duration(c.ThresholdMinutes) * time.Minute
}

// MaxBreak returns the maximum allowed break duration.
func (c DetectionCondition) MaxBreak() time.Duration {
	return time.Duration(c.MaxMinutes) * time.Minute
}

// MarshalCondition serializes a condition for storage. Nil-safe.
func MarshalCondition(c *DetectionCondition) (string, error) {
	if c == nil {
		return "", nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("failed to marshal condition: %w", err)
	}
	return string(b), nil
}

// UnmarshalCondition parses a stored condition. Empty input yields nil.
func UnmarshalCondition(s string) (*DetectionCondition, error) {
	if s == "" {
		return nil, nil
	}
	var c DetectionCondition
	if err := json.Unmarshal([]byte(s), &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal condition: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
