package memory

import (
	"context"
	"sync"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AssessmentRepository keeps per-merchant assessment history in memory.
// Results are append-only.
type AssessmentRepository struct {
	mu      sync.RWMutex
	history map[string][]*domain.AssessmentResult
}

// NewAssessmentRepository creates an empty in-memory assessment store.
func NewAssessmentRepository() *AssessmentRepository {
	return &AssessmentRepository{history: make(map[string][]*domain.AssessmentResult)}
}

// Append adds a result to the merchant's history. Prior results are never
// replaced.
func (r *AssessmentRepository) Append(ctx context.Context, result *domain.AssessmentResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[result.MerchantID] = append(r.history[result.MerchantID], result)
	return nil
}

// ListByMerchant returns up to limit results, newest first. limit <= 0 means
// no limit.
func (r *AssessmentRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AssessmentResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	results := r.history[merchantID]
	out := make([]*domain.AssessmentResult, 0, len(results))
	for i := len(results) - 1; i >= 0; i-- {
		out = append(out, results[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CountByMerchant returns the history length for a merchant.
func (r *AssessmentRepository) CountByMerchant(merchantID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.history[merchantID])
}
