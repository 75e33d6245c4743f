package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// MerchantRepository is an in-memory merchant store.
type MerchantRepository struct {
	mu        sync.RWMutex
	merchants map[string]*domain.Merchant
}

// NewMerchantRepository creates an empty in-memory merchant store.
func NewMerchantRepository() *MerchantRepository {
	return &MerchantRepository{merchants: make(map[string]*domain.Merchant)}
}

// Create stores a new merchant; fails if the ID is already taken.
func (r *MerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[m.MerchantID]; ok {
		return domain.NewValidationError("merchant_id", fmt.Sprintf("merchant %s already exists", m.MerchantID))
	}
	r.merchants[m.MerchantID] = cloneMerchant(m)
	return nil
}

// Get returns a merchant by ID.
func (r *MerchantRepository) Get(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.merchants[merchantID]
	if !ok {
		return nil, fmt.Errorf("merchant %s: %w", merchantID, domain.ErrNotFound)
	}
	return cloneMerchant(m), nil
}

// Update replaces an existing merchant record.
func (r *MerchantRepository) Update(ctx context.Context, m *domain.Merchant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[m.MerchantID]; !ok {
		return fmt.Errorf("merchant %s: %w", m.MerchantID, domain.ErrNotFound)
	}
	r.merchants[m.MerchantID] = cloneMerchant(m)
	return nil
}

// Delete removes a merchant record.
func (r *MerchantRepository) Delete(ctx context.Context, merchantID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.merchants[merchantID]; !ok {
		return fmt.Errorf("merchant %s: %w", merchantID, domain.ErrNotFound)
	}
	delete(r.merchants, merchantID)
	return nil
}

// List returns merchants matching the filter, highest risk score first.
func (r *MerchantRepository) List(ctx context.Context, filter domain.MerchantFilter) ([]*domain.Merchant, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Merchant, 0)
	for _, m := range r.merchants {
		if filter.RiskLevel != "" && m.RiskLevel != filter.RiskLevel {
			continue
		}
		if filter.Status != "" && m.Status != filter.Status {
			continue
		}
		if filter.Country != "" && !strings.EqualFold(m.Country, filter.Country) {
			continue
		}
		out = append(out, cloneMerchant(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].RiskScore != out[j].RiskScore {
			return out[i].RiskScore > out[j].RiskScore
		}
		return out[i].MerchantID < out[j].MerchantID
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return []*domain.Merchant{}, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func cloneMerchant(m *domain.Merchant) *domain.Merchant {
	out := *m
	out.RiskReasons = append([]string(nil), m.RiskReasons...)
	if m.LastAssessedAt != nil {
		t := *m.LastAssessedAt
		out.LastAssessedAt = &t
	}
	return &out
}
