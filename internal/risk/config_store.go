package risk

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
)

// maxUpdateRetries bounds the optimistic-retry loop for contended
// configuration updates before surfacing ErrConcurrencyConflict.
const maxUpdateRetries = 5

// ConfigVersionRepository persists configuration versions so historical
// assessments remain reproducible across restarts.
type ConfigVersionRepository interface {
	Save(ctx context.Context, version *domain.ConfigVersion) error
	LoadAll(ctx context.Context) ([]*domain.ConfigVersion, error)
}

// ConfigStore holds the versioned risk configuration. The active version is
// published atomically: readers always observe a complete snapshot, never a
// mix of old and new fields. Updates use an optimistic compare-and-swap loop
// so two concurrent writers never silently clobber each other.
type ConfigStore struct {
	current atomic.Pointer[domain.ConfigVersion]

	mu       sync.Mutex // serializes publication and history writes
	versions map[int64]*domain.ConfigVersion

	repo ConfigVersionRepository
	log  *logger.Logger
}

// NewConfigStore creates a store seeded with an initial configuration as
// version 1. The seed is validated and persisted like any other version.
func NewConfigStore(ctx context.Context, seed *domain.RiskConfig, repo ConfigVersionRepository, log *logger.Logger) (*ConfigStore, error) {
	s := &ConfigStore{
		versions: make(map[int64]*domain.ConfigVersion),
		repo:     repo,
		log:      log.Named("config_store"),
	}

	loaded, err := repo.LoadAll(ctx)
	if err != nil {
		return nil, domain.NewStorageError("config load", err)
	}
	if len(loaded) > 0 {
		var latest *domain.ConfigVersion
		for _, v := range loaded {
			s.versions[v.Version] = v
			if latest == nil || v.Version > latest.Version {
				latest = v
			}
		}
		s.current.Store(latest)
		s.log.ConfigLoaded(latest.Version, len(loaded))
		return s, nil
	}

	normalized := normalizeConfig(seed)
	if err := normalized.Validate(); err != nil {
		return nil, err
	}
	initial := &domain.ConfigVersion{
		Version:   1,
		Config:    normalized,
		UpdatedBy: "SYSTEM",
		CreatedAt: nowUTC(),
	}
	if err := repo.Save(ctx, initial); err != nil {
		return nil, domain.NewStorageError("config seed", err)
	}
	s.versions[1] = initial
	s.current.Store(initial)
	return s, nil
}

// Current returns the active configuration snapshot and its version number.
// The snapshot is immutable; callers must not modify it.
func (s *ConfigStore) Current() (*domain.RiskConfig, int64) {
	v := s.current.Load()
	return v.Config, v.Version
}

// Get returns a historical configuration snapshot by version number.
func (s *ConfigStore) Get(version int64) (*domain.RiskConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.versions[version]
	if !ok {
		return nil, fmt.Errorf("configuration version %d: %w", version, domain.ErrNotFound)
	}
	return v.Config, nil
}

// History returns all retained configuration versions, oldest first.
func (s *ConfigStore) History() []*domain.ConfigVersion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.ConfigVersion, 0, len(s.versions))
	for _, v := range s.versions {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out
}

// Update validates the patch against the latest configuration and atomically
// publishes a new version, returning its number. The patch is rebuilt against
// the freshest base on every retry, so a writer that loses a race never
// overwrites the winner's changes; after maxUpdateRetries the update fails
// with ErrConcurrencyConflict.
func (s *ConfigStore) Update(ctx context.Context, patch *domain.RiskConfigPatch, actor string) (int64, error) {
	if patch == nil || patch.IsEmpty() {
		return 0, domain.NewValidationError("patch", "must change at least one field")
	}

	for attempt := 0; attempt < maxUpdateRetries; attempt++ {
		base := s.current.Load()

		next := applyPatch(base.Config, patch)
		if err := next.Validate(); err != nil {
			return 0, err
		}

		candidate := &domain.ConfigVersion{
			Version:   base.Version + 1,
			Config:    next,
			UpdatedBy: actor,
			CreatedAt: nowUTC(),
		}

		published, err := s.publish(ctx, base, candidate)
		if err != nil {
			return 0, err
		}
		if published {
			s.log.ConfigUpdated(candidate.Version, actor)
			return candidate.Version, nil
		}
		// Lost the race: retry against the new latest version.
	}

	return 0, fmt.Errorf("configuration update after %d attempts: %w", maxUpdateRetries, domain.ErrConcurrencyConflict)
}

// publish installs candidate if and only if base is still the active version.
func (s *ConfigStore) publish(ctx context.Context, base, candidate *domain.ConfigVersion) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current.Load().Version != base.Version {
		return false, nil
	}
	if err := s.repo.Save(ctx, candidate); err != nil {
		return false, domain.NewStorageError("config save", err)
	}
	s.versions[candidate.Version] = candidate
	s.current.Store(candidate)
	return true, nil
}

// applyPatch derives a new configuration from base without mutating it.
// Weight entries merge key-by-key; list and threshold fields replace wholesale
// when present.
func applyPatch(base *domain.RiskConfig, patch *domain.RiskConfigPatch) *domain.RiskConfig {
	next := base.Clone()
	for factor, weight := range patch.Weights {
		next.Weights[factor] = weight
	}
	if patch.Thresholds != nil {
		next.Thresholds = *patch.Thresholds
	}
	if patch.FactorThresholds != nil {
		next.FactorThresholds = *patch.FactorThresholds
	}
	if patch.HighRiskCountries != nil {
		next.HighRiskCountries = domain.NormalizeList(patch.HighRiskCountries)
	}
	if patch.HighRiskIndustries != nil {
		next.HighRiskIndustries = domain.NormalizeList(patch.HighRiskIndustries)
	}
	if patch.BlacklistedMCCs != nil {
		next.BlacklistedMCCs = domain.NormalizeList(patch.BlacklistedMCCs)
	}
	return next
}

func normalizeConfig(cfg *domain.RiskConfig) *domain.RiskConfig {
	out := cfg.Clone()
	out.HighRiskCountries = domain.NormalizeList(out.HighRiskCountries)
	out.HighRiskIndustries = domain.NormalizeList(out.HighRiskIndustries)
	out.BlacklistedMCCs = domain.NormalizeList(out.BlacklistedMCCs)
	return out
}
