package alerting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
)

// Repository persists alerts.
type Repository interface {
	Create(ctx context.Context, alert *domain.Alert) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error)
	Update(ctx context.Context, alert *domain.Alert) error
	List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error)
}

// Publisher forwards alerts to delivery collaborators (case management,
// notification channels). Best-effort; the stored alert is the record.
type Publisher interface {
	PublishAlert(ctx context.Context, alert *domain.Alert) error
}

// Dispatcher derives alert-worthiness from assessment results and owns the
// alert lifecycle: OPEN on creation, RESOLVED exactly once.
type Dispatcher struct {
	repo      Repository
	publisher Publisher
	log       *logger.Logger
}

// NewDispatcher creates an alert dispatcher. publisher may be nil.
func NewDispatcher(repo Repository, publisher Publisher, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		repo:      repo,
		publisher: publisher,
		log:       log.Named("alert_dispatcher"),
	}
}

// Evaluate creates an OPEN alert when the result's risk level is HIGH or
// CRITICAL and returns nil otherwise.
func (d *Dispatcher) Evaluate(ctx context.Context, result *domain.AssessmentResult) (*domain.Alert, error) {
	if !result.IsAlertable() {
		return nil, nil
	}

	severity := domain.AlertSeverityHigh
	if result.RiskLevel == domain.RiskLevelCritical {
		severity = domain.AlertSeverityCritical
	}

	alert := &domain.Alert{
		ID:           uuid.New(),
		MerchantID:   result.MerchantID,
		AssessmentID: result.ID,
		Severity:     severity,
		Status:       domain.AlertStatusOpen,
		Title:        fmt.Sprintf("%s risk merchant detected: %s", result.RiskLevel, result.MerchantID),
		Description:  fmt.Sprintf("Merchant %s assessed as %s risk (score %d).", result.MerchantID, result.RiskLevel, result.Score),
		CreatedAt:    time.Now().UTC(),
	}

	if err := d.repo.Create(ctx, alert); err != nil {
		return nil, domain.NewStorageError("alert create", err)
	}

	if d.publisher != nil {
		if err := d.publisher.PublishAlert(ctx, alert); err != nil {
			d.log.Warn("alert publish failed", logger.ErrorField(err))
		}
	}

	d.log.AlertCreated(alert.ID.String(), alert.MerchantID, string(alert.Severity))
	return alert, nil
}

// Resolve transitions an alert OPEN -> RESOLVED. Resolution is terminal: a
// missing or already-resolved alert fails with ErrInvalidState and nothing is
// mutated. No other transitions exist.
func (d *Dispatcher) Resolve(ctx context.Context, id uuid.UUID, actor, notes string) (*domain.Alert, error) {
	alert, err := d.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("alert %s: %w", id, domain.ErrInvalidState)
		}
		return nil, domain.NewStorageError("alert get", err)
	}
	if alert.IsResolved() {
		return nil, fmt.Errorf("alert %s already resolved: %w", id, domain.ErrInvalidState)
	}

	now := time.Now().UTC()
	alert.Status = domain.AlertStatusResolved
	alert.ResolvedBy = actor
	alert.ResolvedAt = &now
	alert.ResolutionNotes = notes

	if err := d.repo.Update(ctx, alert); err != nil {
		return nil, domain.NewStorageError("alert resolve", err)
	}

	d.log.AlertResolved(alert.ID.String(), actor)
	return alert, nil
}

// List returns alerts matching the filter, newest first.
func (d *Dispatcher) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	alerts, err := d.repo.List(ctx, filter)
	if err != nil {
		return nil, domain.NewStorageError("alert list", err)
	}
	return alerts, nil
}
