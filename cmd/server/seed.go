/*
seed.go - Demo data for local development

PURPOSE:
  Populates a fresh database with one demo company, a handful of
  employees, the four standard auto-detection rules, and a set of shifts
  that exercise each rule class. Running a detection pass right after
  seeding produces a believable dashboard.

IDEMPOTENCE:
  Employees and shifts are upserted, so -seed can be passed on every
  restart against the same database. Rules are created once; duplicate
  code errors on reseed are ignored.
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/shiftwatch/rating-engine/rating"
	"github.com/shiftwatch/rating-engine/store/sqlite"
)

const demoCompany = "acme"

func seedDemoData(ctx context.Context, store *sqlite.Store, engine *rating.Engine) error {
	now := time.Now().UTC()

	employees := []rating.Employee{
		{ID: "emp-alice", CompanyID: demoCompany, Name: "Alice Carter"},
		{ID: "emp-bob", CompanyID: demoCompany, Name: "Bob Nguyen"},
		{ID: "emp-carol", CompanyID: demoCompany, Name: "Carol Ibarra"},
	}
	for _, emp := range employees {
		if err := store.SaveEmployee(ctx, emp); err != nil {
			return fmt.Errorf("failed to seed employee %s: %w", emp.ID, err)
		}
	}

	rules := []rating.ViolationRule{
		{
			Code: "LATE", Name: "Late arrival", PenaltyWeight: decimal.NewFromInt(5),
			AutoDetectable: true, Active: true,
			Condition: &rating.DetectionCondition{Kind: rating.KindLateArrival, ThresholdMinutes: 15},
		},
		{
			Code: "NOSHOW", Name: "No-show", PenaltyWeight: decimal.NewFromInt(25),
			AutoDetectable: true, Active: true,
			Condition: &rating.DetectionCondition{Kind: rating.KindNoShow},
		},
		{
			Code: "LONGBREAK", Name: "Extended break", PenaltyWeight: decimal.NewFromInt(3),
			AutoDetectable: true, Active: true,
			Condition: &rating.DetectionCondition{Kind: rating.KindExtendedBreak, MaxMinutes: 45},
		},
		{
			Code: "EARLYOUT", Name: "Early departure", PenaltyWeight: decimal.NewFromInt(8),
			AutoDetectable: true, Active: true,
			Condition: &rating.DetectionCondition{Kind: rating.KindEarlyDeparture, ThresholdMinutes: 20},
		},
		{
			Code: "CONDUCT", Name: "Conduct complaint", PenaltyWeight: decimal.NewFromInt(15),
			Active: true,
		},
	}
	for _, rule := range rules {
		rule.CompanyID = demoCompany
		if _, err := engine.CreateRule(ctx, rule); err != nil {
			if errors.Is(err, rating.ErrDuplicateRuleCode) {
				continue // already seeded
			}
			return fmt.Errorf("failed to seed rule %s: %w", rule.Code, err)
		}
	}

	// Yesterday's shifts: one clean, one late clock-in, one no-show,
	// one with a long break and an early clock-out.
	day := now.AddDate(0, 0, -1).Truncate(24 * time.Hour)
	nine := day.Add(9 * time.Hour)
	seventeen := day.Add(17 * time.Hour)

	shifts := []rating.Shift{
		{
			ID: "shift-alice-clean", EmployeeID: "emp-alice", CompanyID: demoCompany,
			PlannedStart: nine, PlannedEnd: seventeen,
			ActualStart: timePtr(nine), ActualEnd: timePtr(seventeen),
			Status: rating.ShiftCompleted,
		},
		{
			ID: "shift-bob-late", EmployeeID: "emp-bob", CompanyID: demoCompany,
			PlannedStart: nine, PlannedEnd: seventeen,
			ActualStart: timePtr(nine.Add(25 * time.Minute)), ActualEnd: timePtr(seventeen),
			Status: rating.ShiftCompleted,
		},
		{
			ID: "shift-carol-noshow", EmployeeID: "emp-carol", CompanyID: demoCompany,
			PlannedStart: nine, PlannedEnd: seventeen,
			Status: rating.ShiftPlanned,
		},
		{
			ID: "shift-bob-break", EmployeeID: "emp-bob", CompanyID: demoCompany,
			PlannedStart: nine.Add(24 * time.Hour), PlannedEnd: seventeen.Add(24 * time.Hour),
			ActualStart: timePtr(nine.Add(24 * time.Hour)),
			ActualEnd:   timePtr(seventeen.Add(24*time.Hour - 30*time.Minute)),
			Status:      rating.ShiftCompleted,
			Breaks: []rating.BreakInterval{{
				Start: nine.Add(24*time.Hour + 3*time.Hour),
				End:   timePtr(nine.Add(24*time.Hour + 4*time.Hour)),
			}},
		},
	}
	for _, shift := range shifts {
		if err := store.SaveShift(ctx, shift); err != nil {
			return fmt.Errorf("failed to seed shift %s: %w", shift.ID, err)
		}
	}

	return nil
}

func timePtr(t time.Time) *time.Time { return &t }
