package rating

import "time"

// =============================================================================
// SHIFT - Read model consumed by the detector
// =============================================================================
// The shift lifecycle (clock in/out, status transitions) lives in the
// scheduling layer; the detector only reads these records.

type ShiftStatus string

const (
	ShiftPlanned   ShiftStatus = "planned"
	ShiftActive    ShiftStatus = "active"
	ShiftCompleted ShiftStatus = "completed"
	ShiftCancelled ShiftStatus = "cancelled"
)

// Shift is one scheduled work interval with its recorded actuals.
type Shift struct {
	ID           ShiftID
	EmployeeID   EmployeeID
	CompanyID    CompanyID
	PlannedStart time.Time
	PlannedEnd   time.Time
	ActualStart  *time.Time // nil until the employee clocks in
	ActualEnd    *time.Time // nil until the employee clocks out
	Status       ShiftStatus
	Breaks       []BreakInterval
}

// BreakInterval is a break sub-interval within a shift. End is nil while the
// break is still open; its running duration is measured against evaluation
// time.
type BreakInterval struct {
	Start time.Time
	End   *time.Time
}

// Duration returns the break's length, using asOf for still-open breaks.
func (b BreakInterval) Duration(asOf time.Time) time.Duration {
	end := asOf
	if b.End != nil {
		end = *b.End
	}
	if end.Before(b.Start) {
		return 0
	}
	return end.Sub(b.Start)
}

// Lateness returns how far past the planned start the employee clocked in.
// Zero when on time, early, or not yet clocked in.
func (s Shift) Lateness() time.Duration {
	if s.ActualStart == nil || !s.ActualStart.After(s.PlannedStart) {
		return 0
	}
	return s.ActualStart.Sub(s.PlannedStart)
}

// EarlyDeparture returns how far before the planned end the employee clocked
// out. Zero when the shift ran to plan or is still open.
func (s Shift) EarlyDeparture() time.Duration {
	if s.ActualEnd == nil || !s.ActualEnd.Before(s.PlannedEnd) {
		return 0
	}
	return s.PlannedEnd.Sub(*s.ActualEnd)
}

// IsNoShow reports whether the shift was missed entirely as of asOf: still
// planned, never clocked in, and the planned end already passed. A shift
// whose planned end has not passed yet is only a no-show candidate — the
// employee may still arrive late.
func (s Shift) IsNoShow(asOf time.Time) bool {
	return s.Status == ShiftPlanned && s.ActualStart == nil && asOf.After(s.PlannedEnd)
}
