/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Violations:
    ViolationDTO, RecordViolationRequest

  Ratings:
    RatingDTO, AdjustRatingRequest

  Rules:
    RuleDTO, ConditionDTO, CreateRuleRequest, UpdateRuleRequest

  Batch / detection:
    RecalculateRequest, BatchResultDTO, ScanResultDTO

  Stats:
    CompanyStatsDTO

VALIDATION:
  Validation is done in handlers and the domain layer, not in DTOs.
  DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - rating/types.go: Domain model these map from
*/
package api

import (
	"time"

	"github.com/shiftwatch/rating-engine/rating"
)

// =============================================================================
// VIOLATION TYPES
// =============================================================================

// ViolationDTO represents a violation in API responses.
type ViolationDTO struct {
	ID         string `json:"id"`
	EmployeeID string `json:"employee_id"`
	CompanyID  string `json:"company_id"`
	RuleID     string `json:"rule_id"`
	ShiftID    string `json:"shift_id,omitempty"`
	Source     string `json:"source"`
	Reason     string `json:"reason,omitempty"`
	CreatedBy  string `json:"created_by,omitempty"`
	Penalty    string `json:"penalty"`
	CreatedAt  string `json:"created_at"`
}

func toViolationDTO(v rating.Violation) ViolationDTO {
	return ViolationDTO{
		ID:         string(v.ID),
		EmployeeID: string(v.EmployeeID),
		CompanyID:  string(v.CompanyID),
		RuleID:     string(v.RuleID),
		ShiftID:    string(v.ShiftID),
		Source:     string(v.Source),
		Reason:     v.Reason,
		CreatedBy:  v.CreatedBy,
		Penalty:    v.Penalty.String(),
		CreatedAt:  v.CreatedAt.Format(time.RFC3339),
	}
}

// RecordViolationRequest is the request to record a manual violation.
type RecordViolationRequest struct {
	EmployeeID string `json:"employee_id"`
	CompanyID  string `json:"company_id"`
	RuleID     string `json:"rule_id"`
	Reason     string `json:"reason"`
	CreatedBy  string `json:"created_by"`
}

// =============================================================================
// RATING TYPES
// =============================================================================

// RatingDTO represents an employee rating row in API responses.
type RatingDTO struct {
	ID          string `json:"id"`
	EmployeeID  string `json:"employee_id"`
	CompanyID   string `json:"company_id"`
	PeriodStart string `json:"period_start"`
	PeriodEnd   string `json:"period_end"`
	Rating      string `json:"rating"`
	Status      string `json:"status"`
	UpdatedAt   string `json:"updated_at"`
}

func toRatingDTO(r *rating.EmployeeRating) RatingDTO {
	return RatingDTO{
		ID:          string(r.ID),
		EmployeeID:  string(r.EmployeeID),
		CompanyID:   string(r.CompanyID),
		PeriodStart: r.PeriodStart.Format("2006-01-02"),
		PeriodEnd:   r.PeriodEnd.Format("2006-01-02"),
		Rating:      r.Rating.String(),
		Status:      string(r.Status),
		UpdatedAt:   r.UpdatedAt.Format(time.RFC3339),
	}
}

// AdjustRatingRequest applies a manual delta to an employee's rating.
type AdjustRatingRequest struct {
	Period string `json:"period,omitempty"` // YYYY-MM, defaults to current month
	Delta  string `json:"delta"`            // decimal string, may be negative
}

// =============================================================================
// RULE TYPES
// =============================================================================

// ConditionDTO mirrors rating.DetectionCondition on the wire.
type ConditionDTO struct {
	Kind             string `json:"kind"`
	ThresholdMinutes int    `json:"threshold_minutes,omitempty"`
	MaxMinutes       int    `json:"max_minutes,omitempty"`
}

func (c *ConditionDTO) toDomain() *rating.DetectionCondition {
	if c == nil {
		return nil
	}
	return &rating.DetectionCondition{
		Kind:             rating.ConditionKind(c.Kind),
		ThresholdMinutes: c.ThresholdMinutes,
		MaxMinutes:       c.MaxMinutes,
	}
}

func toConditionDTO(c *rating.DetectionCondition) *ConditionDTO {
	if c == nil {
		return nil
	}
	return &ConditionDTO{
		Kind:             string(c.Kind),
		ThresholdMinutes: c.ThresholdMinutes,
		MaxMinutes:       c.MaxMinutes,
	}
}

// RuleDTO represents a violation rule in API responses.
type RuleDTO struct {
	ID             string        `json:"id"`
	CompanyID      string        `json:"company_id"`
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	PenaltyWeight  string        `json:"penalty_weight"`
	AutoDetectable bool          `json:"auto_detectable"`
	Active         bool          `json:"active"`
	Condition      *ConditionDTO `json:"condition,omitempty"`
	CreatedAt      string        `json:"created_at"`
	UpdatedAt      string        `json:"updated_at"`
}

func toRuleDTO(r *rating.ViolationRule) RuleDTO {
	return RuleDTO{
		ID:             string(r.ID),
		CompanyID:      string(r.CompanyID),
		Code:           r.Code,
		Name:           r.Name,
		Description:    r.Description,
		PenaltyWeight:  r.PenaltyWeight.String(),
		AutoDetectable: r.AutoDetectable,
		Active:         r.Active,
		Condition:      toConditionDTO(r.Condition),
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
}

// CreateRuleRequest is the request to create a violation rule.
type CreateRuleRequest struct {
	Code           string        `json:"code"`
	Name           string        `json:"name"`
	Description    string        `json:"description"`
	PenaltyWeight  string        `json:"penalty_weight"`
	AutoDetectable bool          `json:"auto_detectable"`
	Active         *bool         `json:"active,omitempty"` // defaults to true
	Condition      *ConditionDTO `json:"condition,omitempty"`
}

// UpdateRuleRequest carries a partial rule update. Absent fields are left
// unchanged; clear_condition removes the condition entirely.
type UpdateRuleRequest struct {
	Code           *string       `json:"code,omitempty"`
	Name           *string       `json:"name,omitempty"`
	Description    *string       `json:"description,omitempty"`
	PenaltyWeight  *string       `json:"penalty_weight,omitempty"`
	AutoDetectable *bool         `json:"auto_detectable,omitempty"`
	Active         *bool         `json:"active,omitempty"`
	Condition      *ConditionDTO `json:"condition,omitempty"`
	ClearCondition bool          `json:"clear_condition,omitempty"`
}

// =============================================================================
// BATCH AND DETECTION TYPES
// =============================================================================

// RecalculateRequest scopes a batch recalculation.
type RecalculateRequest struct {
	Period string `json:"period,omitempty"` // YYYY-MM, defaults to current month
}

// BatchResultDTO summarizes a batch recalculation.
type BatchResultDTO struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ScanResultDTO summarizes one detection pass.
type ScanResultDTO struct {
	ShiftsScanned     int      `json:"shifts_scanned"`
	ViolationsCreated int      `json:"violations_created"`
	Errors            []string `json:"errors,omitempty"`
}

// =============================================================================
// STATS TYPES
// =============================================================================

// CompanyStatsDTO is the cached per-company aggregate view.
type CompanyStatsDTO struct {
	CompanyID      string `json:"company_id"`
	PeriodStart    string `json:"period_start"`
	PeriodEnd      string `json:"period_end"`
	AverageRating  string `json:"average_rating"`
	RatedEmployees int    `json:"rated_employees"`
	Violations30d  int    `json:"violations_30d"`
	GeneratedAt    string `json:"generated_at"`
}

// =============================================================================
// ERROR TYPE
// =============================================================================

// ErrorResponse is the standard error payload.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
