package domain

import (
	"time"

	"github.com/google/uuid"
)

// RiskLevel represents the risk severity band of an assessment.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "LOW"
	RiskLevelMedium   RiskLevel = "MEDIUM"
	RiskLevelHigh     RiskLevel = "HIGH"
	RiskLevelCritical RiskLevel = "CRITICAL"
)

// AtLeast reports whether l is as severe as other.
func (l RiskLevel) AtLeast(other RiskLevel) bool {
	return l.rank() >= other.rank()
}

func (l RiskLevel) rank() int {
	switch l {
	case RiskLevelCritical:
		return 3
	case RiskLevelHigh:
		return 2
	case RiskLevelMedium:
		return 1
	default:
		return 0
	}
}

// TriggeredFactor is one scoring rule that fired during an assessment, with
// the contribution actually applied and a human-readable reason. Factors are
// ordered by evaluation order for reproducibility.
type TriggeredFactor struct {
	Factor string `json:"factor"`
	Weight int    `json:"weight"`
	Reason string `json:"reason"`
}

// AssessmentResult is the immutable outcome of one risk assessment. Each
// assessment appends exactly one result to the merchant's history; results
// are never overwritten.
type AssessmentResult struct {
	ID         uuid.UUID `json:"id" db:"id"`
	MerchantID string    `json:"merchant_id" db:"merchant_id"`

	// ConfigVersion records the configuration in force at assessment time so
	// the result stays explainable after later config changes.
	ConfigVersion int64 `json:"config_version" db:"config_version"`

	RawScore  int       `json:"raw_score" db:"raw_score"` // pre-cap sum
	Score     int       `json:"score" db:"score"`         // capped to [0, 100]
	RiskLevel RiskLevel `json:"risk_level" db:"risk_level"`

	Factors []TriggeredFactor `json:"factors" db:"factors"`
	Reasons []string          `json:"reasons" db:"reasons"`

	OverrideApplied bool   `json:"override_applied" db:"override_applied"`
	OverrideReason  string `json:"override_reason,omitempty" db:"override_reason"`

	AssessedBy string    `json:"assessed_by" db:"assessed_by"`
	AssessedAt time.Time `json:"assessed_at" db:"assessed_at"`
}

// IsAlertable returns true when the result warrants an open alert.
func (r *AssessmentResult) IsAlertable() bool {
	return r.RiskLevel == RiskLevelHigh || r.RiskLevel == RiskLevelCritical
}

// AssessmentSummary is a lean DTO for history listings.
type AssessmentSummary struct {
	ID              uuid.UUID `json:"id"`
	MerchantID      string    `json:"merchant_id"`
	ConfigVersion   int64     `json:"config_version"`
	Score           int       `json:"score"`
	RiskLevel       RiskLevel `json:"risk_level"`
	OverrideApplied bool      `json:"override_applied"`
	AssessedBy      string    `json:"assessed_by"`
	AssessedAt      time.Time `json:"assessed_at"`
}

// ToSummary converts an AssessmentResult to its listing DTO.
func (r *AssessmentResult) ToSummary() *AssessmentSummary {
	return &AssessmentSummary{
		ID:              r.ID,
		MerchantID:      r.MerchantID,
		ConfigVersion:   r.ConfigVersion,
		Score:           r.Score,
		RiskLevel:       r.RiskLevel,
		OverrideApplied: r.OverrideApplied,
		AssessedBy:      r.AssessedBy,
		AssessedAt:      r.AssessedAt,
	}
}
