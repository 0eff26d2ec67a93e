/*
calculator.go - Rating recomputation

PURPOSE:
  Recomputes the rating for one employee over one explicit period from the
  full set of violations inside that period:

      rating = clamp(100 − Σ penalty, 0, 100)

  This is recompute-from-scratch, never incremental-subtract. The calculator
  tolerates being called redundantly (once per new violation AND once per
  scheduled batch) and always converges to the same value for the same
  violation set.

THE ONE EXCEPTION:
  Adjust() is the sole additive-delta path, used for manual rating
  restoration after a resolved dispute. It reads the current rating
  (defaulting to 100), applies the delta, clamps, and upserts.

CONCURRENCY:
  Two violations for the same employee can land in the same period
  concurrently. The rating row is the only contended resource and is
  protected by the RatingStore's transactional upsert; each pass re-reads
  the full violation set, so last-writer-wins on the row is safe.

TERMINATION SIDE EFFECT:
  A recomputed rating <= 30 also sets the employee's own status to
  terminated. Deliberate business policy: a terminated rating freezes the
  employee from receiving new shifts (enforced by the scheduling layer).

SEE ALSO:
  - types.go: TierFor, ClampRating
  - store.go: RatingStore upsert contract
*/
package rating

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// batchChunkSize bounds concurrent load on the store during batch
// recalculation.
const batchChunkSize = 50

// Clock lets tests pin "now". The zero value is not usable; use RealClock.
type Clock interface {
	Now() time.Time
}

// RealClock is the production Clock.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant. For tests.
type FixedClock struct{ At time.Time }

func (c FixedClock) Now() time.Time { return c.At }

// =============================================================================
// CALCULATOR
// =============================================================================

// Calculator derives ratings from violation sets.
type Calculator struct {
	Violations ViolationStore
	Ratings    RatingStore
	Employees  EmployeeStore
	Clock      Clock
}

// NewCalculator wires a calculator with the real clock.
func NewCalculator(violations ViolationStore, ratings RatingStore, employees EmployeeStore) *Calculator {
	return &Calculator{
		Violations: violations,
		Ratings:    ratings,
		Employees:  employees,
		Clock:      RealClock{},
	}
}

// Recalculate recomputes the rating row for (employee, period) from scratch
// and returns the resulting row. The employee must exist.
func (c *Calculator) Recalculate(ctx context.Context, employeeID EmployeeID, period Period) (*EmployeeRating, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	emp, err := c.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	violations, err := c.Violations.ViolationsInPeriod(ctx, employeeID, period)
	if err != nil {
		return nil, fmt.Errorf("failed to load violations for %s: %w", employeeID, err)
	}

	total := decimal.Zero
	for _, v := range violations {
		total = total.Add(v.Penalty)
	}
	value := ClampRating(MaxRating.Sub(total))

	return c.persist(ctx, emp, period, value)
}

// Adjust applies a manual delta to the current rating for (employee,
// period), defaulting to 100 when no row exists yet, and clamps the result.
func (c *Calculator) Adjust(ctx context.Context, employeeID EmployeeID, period Period, delta decimal.Decimal) (*EmployeeRating, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}

	emp, err := c.Employees.GetEmployee(ctx, employeeID)
	if err != nil {
		return nil, err
	}

	current := MaxRating
	existing, err := c.Ratings.GetRating(ctx, employeeID, period)
	switch {
	case err == nil:
		current = existing.Rating
	case IsNotFound(err):
		// First touch of this period: implicit 100.
	default:
		return nil, fmt.Errorf("failed to read rating for %s: %w", employeeID, err)
	}

	value := ClampRating(current.Add(delta))
	return c.persist(ctx, emp, period, value)
}

// persist upserts the row and applies the termination side effect.
func (c *Calculator) persist(ctx context.Context, emp *Employee, period Period, value decimal.Decimal) (*EmployeeRating, error) {
	row := EmployeeRating{
		ID:          RatingID(uuid.NewString()),
		EmployeeID:  emp.ID,
		CompanyID:   emp.CompanyID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
		Rating:      value,
		Status:      TierFor(value),
		UpdatedAt:   c.Clock.Now(),
	}

	if err := c.Ratings.UpsertRating(ctx, row); err != nil {
		return nil, fmt.Errorf("failed to upsert rating for %s: %w", emp.ID, err)
	}

	if row.Status == TierTerminated && emp.Status != EmployeeTerminated {
		if err := c.Employees.SetEmployeeStatus(ctx, emp.ID, EmployeeTerminated); err != nil {
			return nil, fmt.Errorf("failed to terminate employee %s: %w", emp.ID, err)
		}
	}

	return &row, nil
}

// =============================================================================
// BATCH RECALCULATION
// =============================================================================

// BatchResult summarizes a batch recalculation run.
type BatchResult struct {
	Processed int
	Failed    int
}

// RecalculateBatch recalculates every employee for one period. Employees are
// independent units of work: they share no mutable state, failures are
// isolated and logged, and the run proceeds in chunks so a cancellation
// leaves at worst some employees not yet updated — never one employee in an
// inconsistent state.
func (c *Calculator) RecalculateBatch(ctx context.Context, employeeIDs []EmployeeID, period Period) (BatchResult, error) {
	if err := period.Validate(); err != nil {
		return BatchResult{}, err
	}

	var result BatchResult
	for start := 0; start < len(employeeIDs); start += batchChunkSize {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		end := start + batchChunkSize
		if end > len(employeeIDs) {
			end = len(employeeIDs)
		}
		chunk := employeeIDs[start:end]

		var (
			wg     sync.WaitGroup
			mu     sync.Mutex
			failed int
		)
		for _, id := range chunk {
			wg.Add(1)
			go func(id EmployeeID) {
				defer wg.Done()
				if _, err := c.Recalculate(ctx, id, period); err != nil {
					log.Printf("[Calculator] recalculation failed for %s: %v", id, err)
					mu.Lock()
					failed++
					mu.Unlock()
				}
			}(id)
		}
		wg.Wait()

		result.Processed += len(chunk) - failed
		result.Failed += failed
	}

	return result, nil
}
