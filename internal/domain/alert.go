package domain

import (
	"time"

	"github.com/google/uuid"
)

// AlertStatus represents the status of a risk alert. RESOLVED is terminal.
type AlertStatus string

const (
	AlertStatusOpen     AlertStatus = "OPEN"
	AlertStatusResolved AlertStatus = "RESOLVED"
)

// AlertSeverity mirrors the risk level that raised the alert.
type AlertSeverity string

const (
	AlertSeverityHigh     AlertSeverity = "HIGH"
	AlertSeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is raised for HIGH and CRITICAL assessment results. Alerts are
// created only by the dispatcher and mutated only by an explicit resolve.
type Alert struct {
	ID           uuid.UUID `json:"id" db:"id"`
	MerchantID   string    `json:"merchant_id" db:"merchant_id"`
	AssessmentID uuid.UUID `json:"assessment_id" db:"assessment_id"`

	Severity    AlertSeverity `json:"severity" db:"severity"`
	Status      AlertStatus   `json:"status" db:"status"`
	Title       string        `json:"title" db:"title"`
	Description string        `json:"description" db:"description"`

	ResolvedBy      string     `json:"resolved_by,omitempty" db:"resolved_by"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty" db:"resolved_at"`
	ResolutionNotes string     `json:"resolution_notes,omitempty" db:"resolution_notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// IsResolved returns true if the alert has reached its terminal state.
func (a *Alert) IsResolved() bool {
	return a.Status == AlertStatusResolved
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	MerchantID string
	Status     AlertStatus
	Severity   AlertSeverity
	Limit      int
}

// ResolveAlertRequest carries the resolution of an open alert.
type ResolveAlertRequest struct {
	ResolvedBy      string `json:"resolved_by" validate:"required"`
	ResolutionNotes string `json:"resolution_notes,omitempty"`
}
