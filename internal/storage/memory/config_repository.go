package memory

import (
	"context"
	"sync"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// ConfigVersionRepository is an in-memory implementation of the config
// version store, used in tests and single-node deployments.
type ConfigVersionRepository struct {
	mu       sync.RWMutex
	versions map[int64]*domain.ConfigVersion
}

// NewConfigVersionRepository creates an empty in-memory version store.
func NewConfigVersionRepository() *ConfigVersionRepository {
	return &ConfigVersionRepository{versions: make(map[int64]*domain.ConfigVersion)}
}

// Save stores a configuration version. Versions are immutable once written.
func (r *ConfigVersionRepository) Save(ctx context.Context, version *domain.ConfigVersion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.versions[version.Version] = version
	return nil
}

// LoadAll returns every stored version.
func (r *ConfigVersionRepository) LoadAll(ctx context.Context) ([]*domain.ConfigVersion, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*domain.ConfigVersion, 0, len(r.versions))
	for _, v := range r.versions {
		out = append(out, v)
	}
	return out, nil
}
