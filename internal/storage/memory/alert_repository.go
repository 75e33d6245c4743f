package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AlertRepository is an in-memory alert store.
type AlertRepository struct {
	mu     sync.RWMutex
	alerts map[uuid.UUID]*domain.Alert
}

// NewAlertRepository creates an empty in-memory alert store.
func NewAlertRepository() *AlertRepository {
	return &AlertRepository{alerts: make(map[uuid.UUID]*domain.Alert)}
}

// Create stores a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

// Get returns an alert by ID.
func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
	}
	return cloneAlert(alert), nil
}

// Update replaces an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.alerts[alert.ID]; !ok {
		return fmt.Errorf("alert %s: %w", alert.ID, domain.ErrNotFound)
	}
	r.alerts[alert.ID] = cloneAlert(alert)
	return nil
}

// List returns matching alerts, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Alert, 0)
	for _, a := range r.alerts {
		if filter.MerchantID != "" && a.MerchantID != filter.MerchantID {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.Severity != "" && a.Severity != filter.Severity {
			continue
		}
		out = append(out, cloneAlert(a))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func cloneAlert(a *domain.Alert) *domain.Alert {
	out := *a
	if a.ResolvedAt != nil {
		t := *a.ResolvedAt
		out.ResolvedAt = &t
	}
	return &out
}
