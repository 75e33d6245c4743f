package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AuditRepository is an append-only in-memory audit store.
type AuditRepository struct {
	mu      sync.RWMutex
	entries []*domain.AuditEntry
}

// NewAuditRepository creates an empty in-memory audit store.
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

// Append stores an entry. Entries are never mutated or deleted.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// Query returns matching entries ordered by timestamp ascending.
func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.AuditEntry, 0)
	for _, e := range r.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Len returns the number of stored entries.
func (r *AuditRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
