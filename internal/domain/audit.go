package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction classifies an audit entry.
type AuditAction string

const (
	AuditActionOnboard      AuditAction = "MERCHANT_ONBOARD"
	AuditActionUpdate       AuditAction = "MERCHANT_UPDATE"
	AuditActionDelete       AuditAction = "MERCHANT_DELETE"
	AuditActionApprove      AuditAction = "MERCHANT_APPROVE"
	AuditActionReject       AuditAction = "MERCHANT_REJECT"
	AuditActionAssessment   AuditAction = "RISK_ASSESSMENT"
	AuditActionOverride     AuditAction = "RISK_OVERRIDE"
	AuditActionConfigChange AuditAction = "CONFIG_CHANGE"
	AuditActionResolveAlert AuditAction = "ALERT_RESOLVE"
)

// AuditEntry is one record in the append-only audit trail. Entries are never
// mutated or deleted; a compensating action gets its own entry.
type AuditEntry struct {
	ID uuid.UUID `json:"id" db:"id"`

	// Actor is the pre-authenticated identity performing the action, either
	// "SYSTEM" or an admin identifier supplied by the transport layer.
	Actor  string      `json:"actor" db:"actor"`
	Action AuditAction `json:"action" db:"action"`

	// TargetID references the affected entity: merchant ID, alert ID, or a
	// configuration key.
	TargetID string `json:"target_id,omitempty" db:"target_id"`

	Description string `json:"description" db:"description"`

	// Before/after payload snapshots. For configuration changes these hold
	// the old and new version numbers alongside the changed values.
	Before map[string]any `json:"before,omitempty" db:"before"`
	After  map[string]any `json:"after,omitempty" db:"after"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// AuditFilter narrows audit queries. Zero values match everything.
type AuditFilter struct {
	Actor    string
	Action   AuditAction
	TargetID string
	From     time.Time
	To       time.Time
	Limit    int
}

// Matches reports whether the entry satisfies the filter.
func (f AuditFilter) Matches(e *AuditEntry) bool {
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.TargetID != "" && e.TargetID != f.TargetID {
		return false
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
