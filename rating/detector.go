/*
detector.go - Attendance breach detection

PURPOSE:
  Scans a company's shifts against the company's active auto-detectable
  rules and records a Violation for every breach not already on file.

DETECTION POLICY (per rule class):
  late_arrival    actual start later than planned start by more than the
                  rule's threshold; no actual start yet is NOT late
  no_show         status still planned, no actual start, planned end passed
  extended_break  a break's duration (or open-break running time) exceeds
                  the rule's maximum
  early_departure actual end earlier than planned end by more than threshold

IDEMPOTENCE:
  At most one auto violation exists per (employee, shift, rule). The
  detector checks the store before writing and treats a lost race
  (ErrDuplicateViolation from the unique index) as benign, so running the
  scan twice over the same data never double-penalizes.

FAILURE ISOLATION:
  A failing shift or employee aborts only its own unit of work; the scan
  logs the failure and continues. Batch runs are never fatal as a whole.

SEE ALSO:
  - rule.go: DetectionCondition variants
  - shift.go: Lateness/EarlyDeparture/IsNoShow helpers
  - engine.go: Invokes recalculation for each new violation
*/
package rating

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
)

// detectionLookback bounds how far back a scan considers shifts. Historical
// backfill beyond this window is explicitly not the detector's contract.
const detectionLookback = 7 * 24 * time.Hour

// ScanResult summarizes one detection pass.
type ScanResult struct {
	ShiftsScanned     int
	ViolationsCreated int
	Errors            []error
}

// ViolationRecordedFunc is invoked after each newly persisted violation,
// before the scan moves on. The engine wires this to rating recalculation;
// tests substitute their own hook.
type ViolationRecordedFunc func(ctx context.Context, v Violation) error

// =============================================================================
// DETECTOR
// =============================================================================

// Detector finds unrecorded attendance breaches.
type Detector struct {
	Rules      RuleStore
	Shifts     ShiftStore
	Violations ViolationStore
	Clock      Clock

	// OnViolationRecorded fires per new violation. Errors are collected
	// into the ScanResult, not fatal to the scan.
	OnViolationRecorded ViolationRecordedFunc
}

// NewDetector wires a detector with the real clock and no post-write hook.
func NewDetector(rules RuleStore, shifts ShiftStore, violations ViolationStore) *Detector {
	return &Detector{
		Rules:      rules,
		Shifts:     shifts,
		Violations: violations,
		Clock:      RealClock{},
	}
}

// ScanCompany evaluates every active auto-detectable rule against the
// company's recent shifts. Returns the scan summary; the error return is
// reserved for failures that prevent the scan from running at all (rule or
// shift listing).
func (d *Detector) ScanCompany(ctx context.Context, companyID CompanyID) (ScanResult, error) {
	now := d.Clock.Now()

	rules, err := d.Rules.ListActiveRules(ctx, companyID)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list rules for %s: %w", companyID, err)
	}

	var detectable []ViolationRule
	for _, r := range rules {
		if r.AutoDetectable && r.Condition != nil {
			detectable = append(detectable, r)
		}
	}
	if len(detectable) == 0 {
		return ScanResult{}, nil
	}

	shifts, err := d.Shifts.ShiftsForDetection(ctx, companyID, now.Add(-detectionLookback), now)
	if err != nil {
		return ScanResult{}, fmt.Errorf("failed to list shifts for %s: %w", companyID, err)
	}

	result := ScanResult{ShiftsScanned: len(shifts)}
	for _, shift := range shifts {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if shift.Status == ShiftCancelled {
			continue
		}
		for _, rule := range detectable {
			breached := d.evaluate(rule, shift, now)
			if !breached {
				continue
			}
			created, err := d.record(ctx, rule, shift, now)
			if created {
				result.ViolationsCreated++
			}
			if err != nil {
				// One bad shift/rule pair must not abort the batch.
				log.Printf("[Detector] %s: shift %s rule %s: %v", companyID, shift.ID, rule.Code, err)
				result.Errors = append(result.Errors, err)
			}
		}
	}

	return result, nil
}

// evaluate applies one rule's condition to one shift. The switch is
// exhaustive over known kinds; rules with unknown kinds cannot exist past
// creation-time validation.
func (d *Detector) evaluate(rule ViolationRule, shift Shift, now time.Time) bool {
	cond := *rule.Condition
	switch cond.Kind {
	case KindLateArrival:
		return shift.Lateness() > cond.Threshold()

	case KindNoShow:
		return shift.IsNoShow(now)

	case KindExtendedBreak:
		for _, b := range shift.Breaks {
			if b.Duration(now) > cond.MaxBreak() {
				return true
			}
		}
		return false

	case KindEarlyDeparture:
		return shift.EarlyDeparture() > cond.Threshold()

	default:
		return false
	}
}

// record persists a new auto violation unless one already exists for the
// (shift, rule) pair. Returns whether a violation was created.
func (d *Detector) record(ctx context.Context, rule ViolationRule, shift Shift, now time.Time) (bool, error) {
	exists, err := d.Violations.HasViolationForShift(ctx, shift.ID, rule.ID)
	if err != nil {
		return false, fmt.Errorf("duplicate check failed: %w", err)
	}
	if exists {
		return false, nil
	}

	v := Violation{
		ID:         ViolationID(uuid.NewString()),
		EmployeeID: shift.EmployeeID,
		CompanyID:  shift.CompanyID,
		RuleID:     rule.ID,
		ShiftID:    shift.ID,
		Source:     SourceAuto,
		Reason:     fmt.Sprintf("auto-detected: %s", rule.Code),
		Penalty:    rule.PenaltyWeight,
		CreatedAt:  now,
	}

	if err := d.Violations.CreateViolation(ctx, v); err != nil {
		if IsConflict(err) {
			// Lost a race with a concurrent scan; the breach is recorded.
			return false, nil
		}
		return false, fmt.Errorf("failed to record violation: %w", err)
	}

	if d.OnViolationRecorded != nil {
		if err := d.OnViolationRecorded(ctx, v); err != nil {
			return true, fmt.Errorf("post-violation hook failed for %s: %w", v.EmployeeID, err)
		}
	}

	return true, nil
}
