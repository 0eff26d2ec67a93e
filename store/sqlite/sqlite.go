/*
Package sqlite provides a SQLite-backed implementation of the rating
storage interfaces.

PURPOSE:
  Implements every persistence interface (RuleStore, ViolationStore,
  RatingStore, EmployeeStore, ShiftStore) using SQLite. In production the
  same SQL shape applies to PostgreSQL - only minor dialect differences.

KEY TABLES:
  violation_rules:   per-company rule catalog
  violations:        append-only breach facts with snapshotted penalties
  employee_ratings:  one row per (employee, period), upserted
  employees:         employee records (status mutated on termination)
  shifts:            shift read model for the detector
  shift_breaks:      break sub-intervals attached to shifts

INVARIANT ENFORCEMENT IN SCHEMA:
  - idx_rules_company_code: UNIQUE(company_id, code COLLATE NOCASE) so
    "LATE" and "late" collide within a company, not across companies
  - idx_violations_shift_rule: UNIQUE(shift_id, rule_id) for auto
    violations, the detector's idempotence backstop
  - employee_ratings UNIQUE(employee_id, period_start, period_end):
    exactly one rating row per pair

RATING UPSERT:
  UpsertRating uses INSERT ... ON CONFLICT DO UPDATE so two concurrent
  recalculations for the same employee/period resolve to a single row,
  last writer wins. Never an application-level read-then-write.

VIOLATION IMMUTABILITY:
  No UPDATE or DELETE statement exists for the violations table.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/shiftwatch.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - rating/store.go: Interface definitions
  - rating/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/shiftwatch/rating-engine/rating"
)

// Store implements all rating storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	-- Violation rule catalog, scoped by company
	CREATE TABLE IF NOT EXISTS violation_rules (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		penalty_weight TEXT NOT NULL,
		auto_detectable BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		condition_json TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Codes are unique per company regardless of case
	CREATE UNIQUE INDEX IF NOT EXISTS idx_rules_company_code
		ON violation_rules(company_id, code COLLATE NOCASE);
	CREATE INDEX IF NOT EXISTS idx_rules_company_active
		ON violation_rules(company_id, active);

	-- Violations (append-only; penalty is a snapshot)
	CREATE TABLE IF NOT EXISTS violations (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		rule_id TEXT NOT NULL,
		shift_id TEXT,
		source TEXT NOT NULL,
		reason TEXT,
		created_by TEXT,
		penalty TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- At most one auto violation per (shift, rule): detector idempotence
	CREATE UNIQUE INDEX IF NOT EXISTS idx_violations_shift_rule
		ON violations(shift_id, rule_id)
		WHERE source = 'auto' AND shift_id IS NOT NULL;

	-- Period-membership queries (hot path for recalculation)
	CREATE INDEX IF NOT EXISTS idx_violations_employee_created
		ON violations(employee_id, created_at);
	CREATE INDEX IF NOT EXISTS idx_violations_company_created
		ON violations(company_id, created_at);

	-- Ratings: exactly one row per (employee, period)
	CREATE TABLE IF NOT EXISTS employee_ratings (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		rating TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE(employee_id, period_start, period_end)
	);

	CREATE INDEX IF NOT EXISTS idx_ratings_company_period
		ON employee_ratings(company_id, period_start, period_end);

	-- Employees
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'active',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_company
		ON employees(company_id);

	-- Shift read model (written by the scheduling layer; read-only here)
	CREATE TABLE IF NOT EXISTS shifts (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		planned_start TEXT NOT NULL,
		planned_end TEXT NOT NULL,
		actual_start TEXT,
		actual_end TEXT,
		status TEXT NOT NULL DEFAULT 'planned'
	);

	CREATE INDEX IF NOT EXISTS idx_shifts_company_planned
		ON shifts(company_id, planned_start);

	CREATE TABLE IF NOT EXISTS shift_breaks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		shift_id TEXT NOT NULL,
		break_start TEXT NOT NULL,
		break_end TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_breaks_shift
		ON shift_breaks(shift_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// RULE STORE (rating.RuleStore interface)
// =============================================================================

const ruleColumns = `id, company_id, code, name, description, penalty_weight,
	auto_detectable, active, condition_json, created_at, updated_at`

// CreateRule inserts a rule; the NOCASE unique index rejects code collisions.
func (s *Store) CreateRule(ctx context.Context, rule rating.ViolationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conditionJSON, err := rating.MarshalCondition(rule.Condition)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO violation_rules
		(id, company_id, code, name, description, penalty_weight,
		 auto_detectable, active, condition_json, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		rule.ID, rule.CompanyID, rule.Code, rule.Name, rule.Description,
		rule.PenaltyWeight.String(), rule.AutoDetectable, rule.Active,
		nullString(conditionJSON),
		rule.CreatedAt.UTC().Format(time.RFC3339),
		rule.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &rating.DuplicateRuleCodeError{CompanyID: rule.CompanyID, Code: rule.Code}
		}
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// UpdateRule replaces the mutable fields of an existing rule.
func (s *Store) UpdateRule(ctx context.Context, rule rating.ViolationRule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conditionJSON, err := rating.MarshalCondition(rule.Condition)
	if err != nil {
		return err
	}

	query := `
		UPDATE violation_rules
		SET code = ?, name = ?, description = ?, penalty_weight = ?,
		    auto_detectable = ?, active = ?, condition_json = ?, updated_at = ?
		WHERE id = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		rule.Code, rule.Name, rule.Description, rule.PenaltyWeight.String(),
		rule.AutoDetectable, rule.Active, nullString(conditionJSON),
		rule.UpdatedAt.UTC().Format(time.RFC3339),
		rule.ID,
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return &rating.DuplicateRuleCodeError{CompanyID: rule.CompanyID, Code: rule.Code}
		}
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rating.ErrRuleNotFound
	}
	return nil
}

// GetRule retrieves a rule by ID.
func (s *Store) GetRule(ctx context.Context, id rating.RuleID) (*rating.ViolationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+ruleColumns+" FROM violation_rules WHERE id = ?", id)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, rating.ErrRuleNotFound
	}
	if err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules returns all of a company's rules ordered by code.
func (s *Store) ListRules(ctx context.Context, companyID rating.CompanyID) ([]rating.ViolationRule, error) {
	return s.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM violation_rules WHERE company_id = ? ORDER BY code",
		companyID)
}

// ListActiveRules returns a company's active rules ordered by code.
func (s *Store) ListActiveRules(ctx context.Context, companyID rating.CompanyID) ([]rating.ViolationRule, error) {
	return s.queryRules(ctx,
		"SELECT "+ruleColumns+" FROM violation_rules WHERE company_id = ? AND active = TRUE ORDER BY code",
		companyID)
}

func (s *Store) queryRules(ctx context.Context, query string, args ...any) ([]rating.ViolationRule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	var rules []rating.ViolationRule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, *rule)
	}
	return rules, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*rating.ViolationRule, error) {
	var (
		rule          rating.ViolationRule
		description   sql.NullString
		penalty       string
		conditionJSON sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&rule.ID, &rule.CompanyID, &rule.Code, &rule.Name, &description,
		&penalty, &rule.AutoDetectable, &rule.Active, &conditionJSON,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	rule.Description = description.String
	rule.PenaltyWeight = mustDecimal(penalty)
	rule.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	rule.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)

	if conditionJSON.Valid {
		cond, err := rating.UnmarshalCondition(conditionJSON.String)
		if err != nil {
			return nil, fmt.Errorf("rule %s has invalid condition: %w", rule.ID, err)
		}
		rule.Condition = cond
	}

	return &rule, nil
}

// =============================================================================
// VIOLATION STORE (rating.ViolationStore interface)
// =============================================================================
// Append-only: no UPDATE or DELETE on violations. Ever.

// CreateViolation inserts a violation fact.
func (s *Store) CreateViolation(ctx context.Context, v rating.Violation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO violations
		(id, employee_id, company_id, rule_id, shift_id, source, reason,
		 created_by, penalty, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		v.ID, v.EmployeeID, v.CompanyID, v.RuleID,
		nullString(string(v.ShiftID)), v.Source, v.Reason, v.CreatedBy,
		v.Penalty.String(), v.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return rating.ErrDuplicateViolation
		}
		return fmt.Errorf("failed to insert violation: %w", err)
	}
	return nil
}

// ViolationsInPeriod returns an employee's violations inside the period,
// chronologically. Period membership is by created_at.
func (s *Store) ViolationsInPeriod(ctx context.Context, employeeID rating.EmployeeID, period rating.Period) ([]rating.Violation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, company_id, rule_id, shift_id, source,
		       reason, created_by, penalty, created_at
		FROM violations
		WHERE employee_id = ? AND created_at >= ? AND created_at < ?
		ORDER BY created_at ASC
	`

	// End bound is inclusive through the whole final day.
	rows, err := s.db.QueryContext(ctx, query, employeeID,
		period.Start.UTC().Format(time.RFC3339),
		period.End.AddDate(0, 0, 1).UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query violations: %w", err)
	}
	defer rows.Close()

	var violations []rating.Violation
	for rows.Next() {
		var (
			v         rating.Violation
			shiftID   sql.NullString
			reason    sql.NullString
			createdBy sql.NullString
			penalty   string
			createdAt string
		)
		if err := rows.Scan(&v.ID, &v.EmployeeID, &v.CompanyID, &v.RuleID,
			&shiftID, &v.Source, &reason, &createdBy, &penalty, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan violation: %w", err)
		}
		v.ShiftID = rating.ShiftID(shiftID.String)
		v.Reason = reason.String
		v.CreatedBy = createdBy.String
		v.Penalty = mustDecimal(penalty)
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		violations = append(violations, v)
	}
	return violations, rows.Err()
}

// HasViolationForShift checks the detector's dedupe key.
func (s *Store) HasViolationForShift(ctx context.Context, shiftID rating.ShiftID, ruleID rating.RuleID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM violations WHERE shift_id = ? AND rule_id = ? AND source = 'auto'",
		shiftID, ruleID,
	).Scan(&count)
	return count > 0, err
}

// CountByCompanySince counts a company's violations from a point in time.
func (s *Store) CountByCompanySince(ctx context.Context, companyID rating.CompanyID, since time.Time) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM violations WHERE company_id = ? AND created_at >= ?",
		companyID, since.UTC().Format(time.RFC3339),
	).Scan(&count)
	return count, err
}

// =============================================================================
// RATING STORE (rating.RatingStore interface)
// =============================================================================

// GetRating retrieves the row for an exact (employee, period) pair.
func (s *Store) GetRating(ctx context.Context, employeeID rating.EmployeeID, period rating.Period) (*rating.EmployeeRating, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, company_id, period_start, period_end,
		       rating, status, updated_at
		FROM employee_ratings
		WHERE employee_id = ? AND period_start = ? AND period_end = ?
	`

	var (
		row         rating.EmployeeRating
		periodStart string
		periodEnd   string
		value       string
		updatedAt   string
	)
	err := s.db.QueryRowContext(ctx, query, employeeID,
		period.Start.UTC().Format(time.RFC3339),
		period.End.UTC().Format(time.RFC3339),
	).Scan(&row.ID, &row.EmployeeID, &row.CompanyID, &periodStart, &periodEnd,
		&value, &row.Status, &updatedAt)

	if err == sql.ErrNoRows {
		return nil, rating.ErrRatingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query rating: %w", err)
	}

	row.PeriodStart, _ = time.Parse(time.RFC3339, periodStart)
	row.PeriodEnd, _ = time.Parse(time.RFC3339, periodEnd)
	row.Rating = mustDecimal(value)
	row.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &row, nil
}

// UpsertRating atomically inserts or updates the (employee, period) row.
// The ON CONFLICT clause makes concurrent recalculations safe: the unique
// index guarantees a single row, last writer wins on the value.
func (s *Store) UpsertRating(ctx context.Context, r rating.EmployeeRating) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employee_ratings
		(id, employee_id, company_id, period_start, period_end, rating, status, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(employee_id, period_start, period_end) DO UPDATE SET
			rating = excluded.rating,
			status = excluded.status,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.EmployeeID, r.CompanyID,
		r.PeriodStart.UTC().Format(time.RFC3339),
		r.PeriodEnd.UTC().Format(time.RFC3339),
		r.Rating.String(), r.Status,
		r.UpdatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert rating: %w", err)
	}
	return nil
}

// AverageRatingByCompany aggregates a company's rating rows for a period.
func (s *Store) AverageRatingByCompany(ctx context.Context, companyID rating.CompanyID, period rating.Period) (decimal.Decimal, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT rating FROM employee_ratings
		WHERE company_id = ? AND period_start = ? AND period_end = ?
	`

	rows, err := s.db.QueryContext(ctx, query, companyID,
		period.Start.UTC().Format(time.RFC3339),
		period.End.UTC().Format(time.RFC3339))
	if err != nil {
		return decimal.Zero, 0, fmt.Errorf("failed to query ratings: %w", err)
	}
	defer rows.Close()

	// Sum in decimal rather than SQL AVG: values are stored as text to
	// preserve precision.
	sum := decimal.Zero
	count := 0
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return decimal.Zero, 0, err
		}
		sum = sum.Add(mustDecimal(value))
		count++
	}
	if err := rows.Err(); err != nil {
		return decimal.Zero, 0, err
	}
	if count == 0 {
		return decimal.Zero, 0, nil
	}
	return sum.Div(decimal.NewFromInt(int64(count))), count, nil
}

// =============================================================================
// EMPLOYEE STORE (rating.EmployeeStore interface)
// =============================================================================

// GetEmployee retrieves an employee by ID.
func (s *Store) GetEmployee(ctx context.Context, id rating.EmployeeID) (*rating.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		emp       rating.Employee
		createdAt string
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, company_id, name, status, created_at FROM employees WHERE id = ?",
		id,
	).Scan(&emp.ID, &emp.CompanyID, &emp.Name, &emp.Status, &createdAt)

	if err == sql.ErrNoRows {
		return nil, rating.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, err
	}

	emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &emp, nil
}

// ListEmployeesByCompany returns a company's employees ordered by id.
func (s *Store) ListEmployeesByCompany(ctx context.Context, companyID rating.CompanyID) ([]rating.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, company_id, name, status, created_at FROM employees WHERE company_id = ? ORDER BY id",
		companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []rating.Employee
	for rows.Next() {
		var (
			emp       rating.Employee
			createdAt string
		)
		if err := rows.Scan(&emp.ID, &emp.CompanyID, &emp.Name, &emp.Status, &createdAt); err != nil {
			return nil, err
		}
		emp.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		employees = append(employees, emp)
	}
	return employees, rows.Err()
}

// ListCompanies returns the distinct company ids in the employee table.
func (s *Store) ListCompanies(ctx context.Context) ([]rating.CompanyID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT DISTINCT company_id FROM employees ORDER BY company_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var companies []rating.CompanyID
	for rows.Next() {
		var id rating.CompanyID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		companies = append(companies, id)
	}
	return companies, rows.Err()
}

// SetEmployeeStatus updates the employee's own status field.
func (s *Store) SetEmployeeStatus(ctx context.Context, id rating.EmployeeID, status rating.EmployeeStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result, err := s.db.ExecContext(ctx,
		"UPDATE employees SET status = ? WHERE id = ?", status, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return rating.ErrEmployeeNotFound
	}
	return nil
}

// SaveEmployee inserts or updates an employee record. Used by seeding and
// the surrounding product's employee management, not by the engine.
func (s *Store) SaveEmployee(ctx context.Context, emp rating.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees (id, company_id, name, status, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			company_id = excluded.company_id,
			name = excluded.name,
			status = excluded.status
	`

	status := emp.Status
	if status == "" {
		status = rating.EmployeeActive
	}
	createdAt := emp.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.CompanyID, emp.Name, status,
		createdAt.UTC().Format(time.RFC3339))
	return err
}

// =============================================================================
// SHIFT STORE (rating.ShiftStore interface, read-only for the engine)
// =============================================================================

// ShiftsForDetection returns non-cancelled shifts planned in [from, to],
// with break intervals attached.
func (s *Store) ShiftsForDetection(ctx context.Context, companyID rating.CompanyID, from, to time.Time) ([]rating.Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, employee_id, company_id, planned_start, planned_end,
		       actual_start, actual_end, status
		FROM shifts
		WHERE company_id = ? AND status != 'cancelled'
		  AND planned_start >= ? AND planned_start <= ?
		ORDER BY planned_start ASC
	`

	rows, err := s.db.QueryContext(ctx, query, companyID,
		from.UTC().Format(time.RFC3339), to.UTC().Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []rating.Shift
	for rows.Next() {
		var (
			shift        rating.Shift
			plannedStart string
			plannedEnd   string
			actualStart  sql.NullString
			actualEnd    sql.NullString
		)
		if err := rows.Scan(&shift.ID, &shift.EmployeeID, &shift.CompanyID,
			&plannedStart, &plannedEnd, &actualStart, &actualEnd, &shift.Status); err != nil {
			return nil, fmt.Errorf("failed to scan shift: %w", err)
		}
		shift.PlannedStart, _ = time.Parse(time.RFC3339, plannedStart)
		shift.PlannedEnd, _ = time.Parse(time.RFC3339, plannedEnd)
		shift.ActualStart = parseNullTime(actualStart)
		shift.ActualEnd = parseNullTime(actualEnd)
		shifts = append(shifts, shift)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range shifts {
		breaks, err := s.breaksForShift(ctx, shifts[i].ID)
		if err != nil {
			return nil, err
		}
		shifts[i].Breaks = breaks
	}
	return shifts, nil
}

func (s *Store) breaksForShift(ctx context.Context, shiftID rating.ShiftID) ([]rating.BreakInterval, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT break_start, break_end FROM shift_breaks WHERE shift_id = ? ORDER BY break_start",
		shiftID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var breaks []rating.BreakInterval
	for rows.Next() {
		var (
			start string
			end   sql.NullString
		)
		if err := rows.Scan(&start, &end); err != nil {
			return nil, err
		}
		var b rating.BreakInterval
		b.Start, _ = time.Parse(time.RFC3339, start)
		b.End = parseNullTime(end)
		breaks = append(breaks, b)
	}
	return breaks, rows.Err()
}

// SaveShift inserts or updates a shift with its breaks. Used by seeding and
// tests; the engine itself never writes shifts.
func (s *Store) SaveShift(ctx context.Context, shift rating.Shift) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO shifts
		(id, employee_id, company_id, planned_start, planned_end, actual_start, actual_end, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			actual_start = excluded.actual_start,
			actual_end = excluded.actual_end,
			status = excluded.status
	`

	_, err = tx.ExecContext(ctx, query,
		shift.ID, shift.EmployeeID, shift.CompanyID,
		shift.PlannedStart.UTC().Format(time.RFC3339),
		shift.PlannedEnd.UTC().Format(time.RFC3339),
		formatNullTime(shift.ActualStart),
		formatNullTime(shift.ActualEnd),
		shift.Status,
	)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM shift_breaks WHERE shift_id = ?", shift.ID); err != nil {
		return err
	}
	for _, b := range shift.Breaks {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO shift_breaks (shift_id, break_start, break_end) VALUES (?, ?, ?)",
			shift.ID, b.Start.UTC().Format(time.RFC3339), formatNullTime(b.End)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

func formatNullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339), Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && (strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "duplicate key"))
}
