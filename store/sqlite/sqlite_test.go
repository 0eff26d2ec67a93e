package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwatch/rating-engine/rating"
	"github.com/shiftwatch/rating-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRule(id, company, code string) rating.ViolationRule {
	now := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)
	return rating.ViolationRule{
		ID:            rating.RuleID(id),
		CompanyID:     rating.CompanyID(company),
		Code:          code,
		Name:          code,
		PenaltyWeight: decimal.NewFromInt(5),
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func testViolation(id, employee, shift, rule string, source rating.ViolationSource, at time.Time) rating.Violation {
	return rating.Violation{
		ID:         rating.ViolationID(id),
		EmployeeID: rating.EmployeeID(employee),
		CompanyID:  "acme",
		RuleID:     rating.RuleID(rule),
		ShiftID:    rating.ShiftID(shift),
		Source:     source,
		Penalty:    decimal.NewFromInt(5),
		CreatedAt:  at,
	}
}

// =============================================================================
// RULE SCHEMA INVARIANTS
// =============================================================================

func TestCreateRule_DuplicateCode_CaseInsensitive(t *testing.T) {
	// GIVEN: Rule "LATE" stored for acme
	// WHEN: Inserting "late" for acme and "LATE" for globex
	// THEN: The NOCASE index rejects the first, allows the second

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateRule(ctx, testRule("r-1", "acme", "LATE")))

	err := store.CreateRule(ctx, testRule("r-2", "acme", "late"))
	assert.ErrorIs(t, err, rating.ErrDuplicateRuleCode)

	assert.NoError(t, store.CreateRule(ctx, testRule("r-3", "globex", "LATE")))
}

func TestRule_ConditionRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	rule := testRule("r-1", "acme", "LATE")
	rule.AutoDetectable = true
	rule.Condition = &rating.DetectionCondition{Kind: rating.KindLateArrival, ThresholdMinutes: 15}
	require.NoError(t, store.CreateRule(ctx, rule))

	got, err := store.GetRule(ctx, "r-1")
	require.NoError(t, err)
	require.NotNil(t, got.Condition)
	assert.Equal(t, rating.KindLateArrival, got.Condition.Kind)
	assert.Equal(t, 15, got.Condition.ThresholdMinutes)
}

func TestListActiveRules_FiltersInactive(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	active := testRule("r-1", "acme", "LATE")
	inactive := testRule("r-2", "acme", "NOSHOW")
	inactive.Active = false
	require.NoError(t, store.CreateRule(ctx, active))
	require.NoError(t, store.CreateRule(ctx, inactive))

	rules, err := store.ListActiveRules(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "LATE", rules[0].Code)
}

func TestUpdateRule_UnknownID_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.UpdateRule(context.Background(), testRule("ghost", "acme", "X"))
	assert.ErrorIs(t, err, rating.ErrRuleNotFound)
}

// =============================================================================
// VIOLATION SCHEMA INVARIANTS
// =============================================================================

func TestCreateViolation_AutoDuplicatePerShiftRule_Rejected(t *testing.T) {
	// GIVEN: An auto violation for (shift-1, rule-1)
	// WHEN: Inserting a second auto violation for the same pair
	// THEN: The partial unique index rejects it; manual entries are exempt

	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateViolation(ctx,
		testViolation("v-1", "emp-1", "shift-1", "rule-1", rating.SourceAuto, at)))

	err := store.CreateViolation(ctx,
		testViolation("v-2", "emp-1", "shift-1", "rule-1", rating.SourceAuto, at))
	assert.ErrorIs(t, err, rating.ErrDuplicateViolation)

	// Manual violations may repeat on the same shift and rule.
	assert.NoError(t, store.CreateViolation(ctx,
		testViolation("v-3", "emp-1", "shift-1", "rule-1", rating.SourceManual, at)))
	assert.NoError(t, store.CreateViolation(ctx,
		testViolation("v-4", "emp-1", "shift-1", "rule-1", rating.SourceManual, at)))

	// Same rule on a different shift is a distinct breach.
	assert.NoError(t, store.CreateViolation(ctx,
		testViolation("v-5", "emp-1", "shift-2", "rule-1", rating.SourceAuto, at)))
}

func TestViolationsInPeriod_BoundsAndOrder(t *testing.T) {
	// GIVEN: Violations in July, twice in August (out of order), September
	// WHEN: Querying August
	// THEN: Only August rows, chronological

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateViolation(ctx, testViolation("v-jul", "emp-1", "s1", "r1",
		rating.SourceManual, time.Date(2026, time.July, 20, 10, 0, 0, 0, time.UTC))))
	require.NoError(t, store.CreateViolation(ctx, testViolation("v-aug-late", "emp-1", "s2", "r1",
		rating.SourceManual, time.Date(2026, time.August, 31, 23, 0, 0, 0, time.UTC))))
	require.NoError(t, store.CreateViolation(ctx, testViolation("v-aug-early", "emp-1", "s3", "r1",
		rating.SourceManual, time.Date(2026, time.August, 1, 0, 30, 0, 0, time.UTC))))
	require.NoError(t, store.CreateViolation(ctx, testViolation("v-sep", "emp-1", "s4", "r1",
		rating.SourceManual, time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC))))

	august := rating.MonthOf(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))
	violations, err := store.ViolationsInPeriod(ctx, "emp-1", august)
	require.NoError(t, err)

	require.Len(t, violations, 2)
	assert.Equal(t, rating.ViolationID("v-aug-early"), violations[0].ID)
	assert.Equal(t, rating.ViolationID("v-aug-late"), violations[1].ID)
}

func TestHasViolationForShift_OnlyCountsAuto(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, time.August, 10, 12, 0, 0, 0, time.UTC)

	require.NoError(t, store.CreateViolation(ctx,
		testViolation("v-manual", "emp-1", "shift-1", "rule-1", rating.SourceManual, at)))

	exists, err := store.HasViolationForShift(ctx, "shift-1", "rule-1")
	require.NoError(t, err)
	assert.False(t, exists, "manual violations do not block auto-detection")

	require.NoError(t, store.CreateViolation(ctx,
		testViolation("v-auto", "emp-1", "shift-1", "rule-1", rating.SourceAuto, at)))

	exists, err = store.HasViolationForShift(ctx, "shift-1", "rule-1")
	require.NoError(t, err)
	assert.True(t, exists)
}

// =============================================================================
// RATING UPSERT
// =============================================================================

func TestUpsertRating_SameEmployeePeriod_SingleRow(t *testing.T) {
	// GIVEN: A rating row for (emp-1, August)
	// WHEN: Upserting the same pair with a new value
	// THEN: Still one row per the unique constraint, value updated

	store := newTestStore(t)
	ctx := context.Background()
	august := rating.MonthOf(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))

	row := rating.EmployeeRating{
		ID: "rating-1", EmployeeID: "emp-1", CompanyID: "acme",
		PeriodStart: august.Start, PeriodEnd: august.End,
		Rating: decimal.NewFromInt(90), Status: rating.TierActive,
		UpdatedAt: august.Start,
	}
	require.NoError(t, store.UpsertRating(ctx, row))

	row.ID = "rating-2" // new candidate id loses to the existing row
	row.Rating = decimal.NewFromInt(45)
	row.Status = rating.TierWarning
	require.NoError(t, store.UpsertRating(ctx, row))

	got, err := store.GetRating(ctx, "emp-1", august)
	require.NoError(t, err)
	assert.Equal(t, rating.RatingID("rating-1"), got.ID)
	assert.True(t, got.Rating.Equal(decimal.NewFromInt(45)))
	assert.Equal(t, rating.TierWarning, got.Status)
}

func TestGetRating_DistinctPeriods_DistinctRows(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	august := rating.MonthOf(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))
	july := rating.MonthOf(time.Date(2026, time.July, 1, 0, 0, 0, 0, time.UTC))

	require.NoError(t, store.UpsertRating(ctx, rating.EmployeeRating{
		ID: "rating-aug", EmployeeID: "emp-1", CompanyID: "acme",
		PeriodStart: august.Start, PeriodEnd: august.End,
		Rating: decimal.NewFromInt(80), Status: rating.TierActive, UpdatedAt: august.Start,
	}))
	require.NoError(t, store.UpsertRating(ctx, rating.EmployeeRating{
		ID: "rating-jul", EmployeeID: "emp-1", CompanyID: "acme",
		PeriodStart: july.Start, PeriodEnd: july.End,
		Rating: decimal.NewFromInt(40), Status: rating.TierWarning, UpdatedAt: july.Start,
	}))

	gotAug, err := store.GetRating(ctx, "emp-1", august)
	require.NoError(t, err)
	assert.True(t, gotAug.Rating.Equal(decimal.NewFromInt(80)))

	gotJul, err := store.GetRating(ctx, "emp-1", july)
	require.NoError(t, err)
	assert.True(t, gotJul.Rating.Equal(decimal.NewFromInt(40)))
}

func TestGetRating_Missing_NotFound(t *testing.T) {
	store := newTestStore(t)
	august := rating.MonthOf(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))

	_, err := store.GetRating(context.Background(), "emp-1", august)
	assert.ErrorIs(t, err, rating.ErrRatingNotFound)
}

func TestAverageRatingByCompany(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	august := rating.MonthOf(time.Date(2026, time.August, 1, 0, 0, 0, 0, time.UTC))

	for i, value := range []int64{80, 90, 100} {
		require.NoError(t, store.UpsertRating(ctx, rating.EmployeeRating{
			ID:         rating.RatingID(string(rune('a' + i))),
			EmployeeID: rating.EmployeeID(string(rune('x' + i))),
			CompanyID:  "acme",
			PeriodStart: august.Start, PeriodEnd: august.End,
			Rating: decimal.NewFromInt(value), Status: rating.TierActive, UpdatedAt: august.Start,
		}))
	}

	avg, count, err := store.AverageRatingByCompany(ctx, "acme", august)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
	assert.True(t, avg.Equal(decimal.NewFromInt(90)), "expected 90, got %s", avg)
}

// =============================================================================
// EMPLOYEE AND SHIFT STORE
// =============================================================================

func TestEmployeeLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, rating.Employee{
		ID: "emp-1", CompanyID: "acme", Name: "Alice",
	}))

	emp, err := store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, rating.EmployeeActive, emp.Status)

	require.NoError(t, store.SetEmployeeStatus(ctx, "emp-1", rating.EmployeeTerminated))
	emp, err = store.GetEmployee(ctx, "emp-1")
	require.NoError(t, err)
	assert.Equal(t, rating.EmployeeTerminated, emp.Status)

	_, err = store.GetEmployee(ctx, "ghost")
	assert.ErrorIs(t, err, rating.ErrEmployeeNotFound)
	assert.ErrorIs(t, store.SetEmployeeStatus(ctx, "ghost", rating.EmployeeActive), rating.ErrEmployeeNotFound)
}

func TestListCompanies_Distinct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveEmployee(ctx, rating.Employee{ID: "e1", CompanyID: "acme", Name: "A"}))
	require.NoError(t, store.SaveEmployee(ctx, rating.Employee{ID: "e2", CompanyID: "acme", Name: "B"}))
	require.NoError(t, store.SaveEmployee(ctx, rating.Employee{ID: "e3", CompanyID: "globex", Name: "C"}))

	companies, err := store.ListCompanies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []rating.CompanyID{"acme", "globex"}, companies)
}

func TestShiftsForDetection_WindowAndBreaks(t *testing.T) {
	// GIVEN: A shift with a break inside the window, a cancelled shift, and
	//        one planned outside the window
	// WHEN: Querying the detection window
	// THEN: Only the live in-window shift returns, with its break attached

	store := newTestStore(t)
	ctx := context.Background()

	day := time.Date(2026, time.August, 10, 0, 0, 0, 0, time.UTC)
	nine := day.Add(9 * time.Hour)
	seventeen := day.Add(17 * time.Hour)
	breakEnd := nine.Add(4 * time.Hour)

	require.NoError(t, store.SaveShift(ctx, rating.Shift{
		ID: "shift-1", EmployeeID: "emp-1", CompanyID: "acme",
		PlannedStart: nine, PlannedEnd: seventeen,
		ActualStart: &nine, Status: rating.ShiftActive,
		Breaks: []rating.BreakInterval{{Start: nine.Add(3 * time.Hour), End: &breakEnd}},
	}))
	require.NoError(t, store.SaveShift(ctx, rating.Shift{
		ID: "shift-cancelled", EmployeeID: "emp-1", CompanyID: "acme",
		PlannedStart: nine, PlannedEnd: seventeen, Status: rating.ShiftCancelled,
	}))
	require.NoError(t, store.SaveShift(ctx, rating.Shift{
		ID: "shift-old", EmployeeID: "emp-1", CompanyID: "acme",
		PlannedStart: nine.AddDate(0, 0, -30), PlannedEnd: seventeen.AddDate(0, 0, -30),
		Status: rating.ShiftCompleted,
	}))

	shifts, err := store.ShiftsForDetection(ctx, "acme", day.AddDate(0, 0, -7), day.AddDate(0, 0, 1))
	require.NoError(t, err)

	require.Len(t, shifts, 1)
	assert.Equal(t, rating.ShiftID("shift-1"), shifts[0].ID)
	require.Len(t, shifts[0].Breaks, 1)
	assert.Equal(t, time.Hour, shifts[0].Breaks[0].Duration(seventeen))
}
