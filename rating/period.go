package rating

import "time"

// =============================================================================
// RATING PERIOD - The time boundary every rating is computed over
// =============================================================================

// Period is an inclusive date interval [Start, End]. The conventional period
// is the calendar month containing "now", but callers may supply arbitrary
// ranges (last month, quarter, year) — nothing here assumes month boundaries.
//
// Violations belong to the period whose range contains their CreatedAt.
type Period struct {
	Start time.Time
	End   time.Time
}

// NewPeriod builds a period from two dates, normalized to UTC midnight.
func NewPeriod(start, end time.Time) Period {
	return Period{Start: dateOf(start), End: dateOf(end)}
}

// MonthOf returns the calendar-month period containing t.
func MonthOf(t time.Time) Period {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, -1)
	return Period{Start: start, End: end}
}

// Validate rejects malformed periods (end before start, zero bounds).
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return ErrInvalidPeriod
	}
	if p.End.Before(p.Start) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether t falls inside [Start, End]. The end bound is
// inclusive through the whole final day.
func (p Period) Contains(t time.Time) bool {
	d := dateOf(t)
	return !d.Before(p.Start) && !d.After(p.End)
}

// Equal compares two periods by their exact bounds. Upsert identity is the
// exact (Start, End) pair, so "March" and "Q1" are distinct rows even though
// one contains the other.
func (p Period) Equal(other Period) bool {
	return p.Start.Equal(other.Start) && p.End.Equal(other.End)
}

func (p Period) String() string {
	return "[" + p.Start.Format("2006-01-02") + ", " + p.End.Format("2006-01-02") + "]"
}

// dateOf truncates a timestamp to its UTC calendar date.
func dateOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
