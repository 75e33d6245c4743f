package risk_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/merchant-risk-service/internal/alerting"
	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/risk"
	"github.com/banking/merchant-risk-service/internal/storage/memory"
)

type engineFixture struct {
	engine      *risk.Engine
	store       *risk.ConfigStore
	assessments *memory.AssessmentRepository
	auditRepo   *memory.AuditRepository
	alertRepo   *memory.AlertRepository
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	log := logger.NewNop()

	store, err := risk.NewConfigStore(context.Background(), testConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	assessments := memory.NewAssessmentRepository()
	auditRepo := memory.NewAuditRepository()
	alertRepo := memory.NewAlertRepository()

	trail := audit.NewTrail(auditRepo, nil, log)
	dispatcher := alerting.NewDispatcher(alertRepo, nil, log)

	return &engineFixture{
		engine:      risk.NewEngine(store, assessments, trail, dispatcher, nil, log),
		store:       store,
		assessments: assessments,
		auditRepo:   auditRepo,
		alertRepo:   alertRepo,
	}
}

func TestEngine_AssessCleanMerchant(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	result, err := f.engine.Assess(ctx, cleanSnapshot(), "SYSTEM")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Score)
	assert.Equal(t, domain.RiskLevelLow, result.RiskLevel)
	assert.Equal(t, int64(1), result.ConfigVersion)
	assert.False(t, result.OverrideApplied)
	assert.Equal(t, []string{"No high-risk factors identified"}, result.Reasons)

	// One immutable result in the history, one audit entry, no alert.
	history, err := f.engine.History(ctx, "M-1001", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	entries, err := f.auditRepo.Query(ctx, domain.AuditFilter{Action: domain.AuditActionAssessment})
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	alerts, err := f.alertRepo.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_AssessGamblingPEPInIran(t *testing.T) {
	f := newEngineFixture(t)

	s := cleanSnapshot()
	s.Country = "Iran"
	s.Industry = "Gambling"
	s.OwnerPEP = true

	result, err := f.engine.Assess(context.Background(), s, "SYSTEM")
	require.NoError(t, err)

	// Raw 30+25+50 = 105, capped to 100, which lands in CRITICAL; the PEP
	// override keeps it there.
	assert.Equal(t, 105, result.RawScore)
	assert.Equal(t, 100, result.Score)
	assert.Equal(t, domain.RiskLevelCritical, result.RiskLevel)
	assert.True(t, result.OverrideApplied)
	assert.Equal(t, risk.OverrideReasonPEPHighRiskCountry, result.OverrideReason)

	// The override reason closes the reason list.
	require.NotEmpty(t, result.Reasons)
	assert.Equal(t, risk.OverrideReasonPEPHighRiskCountry, result.Reasons[len(result.Reasons)-1])
}

func TestEngine_SanctionedOwnerRaisesCriticalAlert(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := cleanSnapshot()
	s.OwnerSanctioned = true

	result, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)

	assert.Equal(t, 100, result.Score)
	assert.Equal(t, domain.RiskLevelCritical, result.RiskLevel)

	alerts, err := f.alertRepo.List(ctx, domain.AlertFilter{MerchantID: "M-1001"})
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertSeverityCritical, alerts[0].Severity)
	assert.Equal(t, domain.AlertStatusOpen, alerts[0].Status)
	assert.Equal(t, result.ID, alerts[0].AssessmentID)
}

func TestEngine_MediumRiskDoesNotAlert(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := cleanSnapshot()
	s.OffshoreStructure = true // 25
	s.CashIntensive = true     // 20 -> total 45, MEDIUM

	result, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelMedium, result.RiskLevel)

	alerts, err := f.alertRepo.List(ctx, domain.AlertFilter{})
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_NewConfigVersionChangesOutcome(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := cleanSnapshot()
	s.Country = "Iran"

	first, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, 30, first.Score)
	assert.Equal(t, int64(1), first.ConfigVersion)

	_, err = f.store.Update(ctx, &domain.RiskConfigPatch{
		Weights: map[string]int{domain.FactorHighRiskCountry: 65},
	}, "ops@bank")
	require.NoError(t, err)

	second, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, 65, second.Score)
	assert.Equal(t, domain.RiskLevelHigh, second.RiskLevel)
	assert.Equal(t, int64(2), second.ConfigVersion)
}

func TestEngine_RecomputeAtHistoricalVersion(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := cleanSnapshot()
	s.Country = "Iran"

	_, err := f.store.Update(ctx, &domain.RiskConfigPatch{
		Weights: map[string]int{domain.FactorHighRiskCountry: 65},
	}, "ops@bank")
	require.NoError(t, err)

	// Recompute against the original version reproduces the original score.
	result, err := f.engine.RecomputeAt(ctx, s, 1)
	require.NoError(t, err)
	assert.Equal(t, 30, result.Score)
	assert.Equal(t, int64(1), result.ConfigVersion)

	// Recompute is display-only: nothing lands in the history.
	history, err := f.engine.History(ctx, s.MerchantID, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestEngine_RecomputeAtUnknownVersion(t *testing.T) {
	f := newEngineFixture(t)

	_, err := f.engine.RecomputeAt(context.Background(), cleanSnapshot(), 42)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_RejectsInvalidSnapshot(t *testing.T) {
	f := newEngineFixture(t)

	s := cleanSnapshot()
	s.ChargebackRate = 1.5

	_, err := f.engine.Assess(context.Background(), s, "SYSTEM")
	assert.True(t, domain.IsValidation(err))
}

func TestEngine_HistoryIsNewestFirst(t *testing.T) {
	f := newEngineFixture(t)
	ctx := context.Background()

	s := cleanSnapshot()
	_, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)

	s.OffshoreStructure = true
	second, err := f.engine.Assess(ctx, s, "SYSTEM")
	require.NoError(t, err)

	history, err := f.engine.History(ctx, s.MerchantID, 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID)
}

type failingAudit struct{}

func (failingAudit) Record(ctx context.Context, entry *domain.AuditEntry) error {
	return errors.New("audit store down")
}

func TestEngine_AuditFailureIsFatal(t *testing.T) {
	log := logger.NewNop()
	store, err := risk.NewConfigStore(context.Background(), testConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	engine := risk.NewEngine(store, memory.NewAssessmentRepository(), failingAudit{},
		alerting.NewDispatcher(memory.NewAlertRepository(), nil, log), nil, log)

	_, err = engine.Assess(context.Background(), cleanSnapshot(), "SYSTEM")
	assert.Error(t, err)
}

type failingCache struct{}

func (failingCache) SetLatest(ctx context.Context, result *domain.AssessmentResult) error {
	return errors.New("redis down")
}

func (failingCache) GetLatest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error) {
	return nil, errors.New("redis down")
}

func (failingCache) Invalidate(ctx context.Context, merchantID string) error {
	return errors.New("redis down")
}

func TestEngine_CacheFailureIsNotFatal(t *testing.T) {
	log := logger.NewNop()
	store, err := risk.NewConfigStore(context.Background(), testConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	engine := risk.NewEngine(store, memory.NewAssessmentRepository(),
		audit.NewTrail(memory.NewAuditRepository(), nil, log),
		alerting.NewDispatcher(memory.NewAlertRepository(), nil, log),
		failingCache{}, log)

	result, err := engine.Assess(context.Background(), cleanSnapshot(), "SYSTEM")
	require.NoError(t, err)
	assert.NotNil(t, result)
}

// mapCache is an in-memory stand-in for the Redis assessment cache.
type mapCache struct {
	entries map[string]*domain.AssessmentResult
}

func newMapCache() *mapCache {
	return &mapCache{entries: make(map[string]*domain.AssessmentResult)}
}

func (c *mapCache) SetLatest(ctx context.Context, result *domain.AssessmentResult) error {
	c.entries[result.MerchantID] = result
	return nil
}

func (c *mapCache) GetLatest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error) {
	result, ok := c.entries[merchantID]
	if !ok {
		return nil, fmt.Errorf("cached assessment for %s: %w", merchantID, domain.ErrNotFound)
	}
	return result, nil
}

func (c *mapCache) Invalidate(ctx context.Context, merchantID string) error {
	delete(c.entries, merchantID)
	return nil
}

func newCachedEngine(t *testing.T, cache risk.AssessmentCache) *risk.Engine {
	t.Helper()
	log := logger.NewNop()
	store, err := risk.NewConfigStore(context.Background(), testConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	return risk.NewEngine(store, memory.NewAssessmentRepository(),
		audit.NewTrail(memory.NewAuditRepository(), nil, log),
		alerting.NewDispatcher(memory.NewAlertRepository(), nil, log),
		cache, log)
}

func TestEngine_LatestServesFromCache(t *testing.T) {
	cache := newMapCache()
	engine := newCachedEngine(t, cache)
	ctx := context.Background()

	// Seed the cache directly; the history store stays empty so a repository
	// read could not produce this result.
	cached := &domain.AssessmentResult{
		ID:         uuid.New(),
		MerchantID: "M-1001",
		Score:      42,
		RiskLevel:  domain.RiskLevelMedium,
	}
	require.NoError(t, cache.SetLatest(ctx, cached))

	result, err := engine.Latest(ctx, "M-1001")
	require.NoError(t, err)
	assert.Equal(t, cached.ID, result.ID)
	assert.Equal(t, 42, result.Score)
}

func TestEngine_LatestFallsBackToHistoryAndBackfills(t *testing.T) {
	cache := newMapCache()
	engine := newCachedEngine(t, cache)
	ctx := context.Background()

	assessed, err := engine.Assess(ctx, cleanSnapshot(), "SYSTEM")
	require.NoError(t, err)

	// Simulate expiry: the cache entry is gone, the history is not.
	require.NoError(t, cache.Invalidate(ctx, assessed.MerchantID))

	result, err := engine.Latest(ctx, assessed.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, assessed.ID, result.ID)

	// The fall-through read rewarmed the cache.
	rewarmed, err := cache.GetLatest(ctx, assessed.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, assessed.ID, rewarmed.ID)
}

func TestEngine_LatestNeverAssessed(t *testing.T) {
	engine := newCachedEngine(t, newMapCache())

	_, err := engine.Latest(context.Background(), "M-unknown")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEngine_LatestCacheFailureFallsThrough(t *testing.T) {
	engine := newCachedEngine(t, failingCache{})
	ctx := context.Background()

	assessed, err := engine.Assess(ctx, cleanSnapshot(), "SYSTEM")
	require.NoError(t, err)

	result, err := engine.Latest(ctx, assessed.MerchantID)
	require.NoError(t, err)
	assert.Equal(t, assessed.ID, result.ID)
}

func TestEngine_ForgetDropsCachedAssessment(t *testing.T) {
	cache := newMapCache()
	engine := newCachedEngine(t, cache)
	ctx := context.Background()

	assessed, err := engine.Assess(ctx, cleanSnapshot(), "SYSTEM")
	require.NoError(t, err)

	engine.Forget(ctx, assessed.MerchantID)

	_, err = cache.GetLatest(ctx, assessed.MerchantID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
