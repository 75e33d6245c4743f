package merchant_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banking/merchant-risk-service/internal/alerting"
	"github.com/banking/merchant-risk-service/internal/audit"
	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/merchant"
	"github.com/banking/merchant-risk-service/internal/pkg/logger"
	"github.com/banking/merchant-risk-service/internal/risk"
	"github.com/banking/merchant-risk-service/internal/storage/memory"
)

type serviceFixture struct {
	service   *merchant.Service
	engine    *risk.Engine
	store     *risk.ConfigStore
	repo      *memory.MerchantRepository
	auditRepo *memory.AuditRepository
	alertRepo *memory.AlertRepository
}

func testSeedConfig() *domain.RiskConfig {
	return &domain.RiskConfig{
		Weights: map[string]int{
			domain.FactorHighRiskCountry:   30,
			domain.FactorHighRiskIndustry:  25,
			domain.FactorBlacklistedMCC:    35,
			domain.FactorOwnerPEP:          50,
			domain.FactorSanctionedOwner:   100,
			domain.FactorHighVolume:        15,
			domain.FactorNewBusiness:       10,
			domain.FactorOffshoreStructure: 25,
			domain.FactorCashIntensive:     20,
			domain.FactorComplexOwnership:  15,
			domain.FactorHighRefundRate:    20,
			domain.FactorVolumeSpike:       25,
		},
		Thresholds: domain.RiskThresholds{LowMax: 30, MediumMax: 60, CriticalMin: 85},
		FactorThresholds: domain.FactorThresholds{
			HighVolumeMin:       1_000_000,
			NewBusinessMaxYears: 2,
			HighRefundRate:      0.05,
			VolumeSpikeRatio:    0.5,
		},
		HighRiskCountries:  []string{"iran", "north korea"},
		HighRiskIndustries: []string{"gambling", "casino"},
		BlacklistedMCCs:    []string{"7995"},
	}
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	log := logger.NewNop()

	store, err := risk.NewConfigStore(context.Background(), testSeedConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	auditRepo := memory.NewAuditRepository()
	alertRepo := memory.NewAlertRepository()
	trail := audit.NewTrail(auditRepo, nil, log)
	dispatcher := alerting.NewDispatcher(alertRepo, nil, log)
	engine := risk.NewEngine(store, memory.NewAssessmentRepository(), trail, dispatcher, nil, log)
	repo := memory.NewMerchantRepository()

	return &serviceFixture{
		service:   merchant.NewService(repo, engine, trail, log),
		engine:    engine,
		store:     store,
		repo:      repo,
		auditRepo: auditRepo,
		alertRepo: alertRepo,
	}
}

func onboardRequest(id string) *merchant.OnboardRequest {
	return &merchant.OnboardRequest{
		MerchantID:      id,
		BusinessName:    "Acme Retail",
		Country:         "Germany",
		Industry:        "Retail",
		AnnualVolume:    250_000,
		YearsInBusiness: 5,
	}
}

func TestService_OnboardLowRiskAutoApproves(t *testing.T) {
	f := newServiceFixture(t)

	m, err := f.service.Onboard(context.Background(), onboardRequest("M-1"), "SYSTEM")
	require.NoError(t, err)

	assert.Equal(t, domain.MerchantStatusActive, m.Status)
	assert.Equal(t, domain.RiskLevelLow, m.RiskLevel)
	assert.Equal(t, 0, m.RiskScore)
	require.NotNil(t, m.LastAssessedAt)

	entries, err := f.auditRepo.Query(context.Background(), domain.AuditFilter{Action: domain.AuditActionOnboard})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_OnboardHighRiskGoesToReview(t *testing.T) {
	f := newServiceFixture(t)

	req := onboardRequest("M-2")
	req.Country = "Iran"
	req.Industry = "Gambling"

	m, err := f.service.Onboard(context.Background(), req, "SYSTEM")
	require.NoError(t, err)

	// high_risk_country 30 + high_risk_industry 25 = 55, MEDIUM
	assert.Equal(t, 55, m.RiskScore)
	assert.Equal(t, domain.RiskLevelMedium, m.RiskLevel)
	assert.Equal(t, domain.MerchantStatusUnderReview, m.Status)
}

func TestService_OnboardDuplicateID(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-3"), "SYSTEM")
	require.NoError(t, err)

	_, err = f.service.Onboard(ctx, onboardRequest("M-3"), "SYSTEM")
	assert.True(t, domain.IsValidation(err))
}

func TestService_OnboardRejectsBadRates(t *testing.T) {
	f := newServiceFixture(t)

	req := onboardRequest("M-4")
	req.RefundRate = 1.2

	_, err := f.service.Onboard(context.Background(), req, "SYSTEM")
	assert.True(t, domain.IsValidation(err))
}

func TestService_UpdateReassesses(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	m, err := f.service.Onboard(ctx, onboardRequest("M-5"), "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelLow, m.RiskLevel)

	country := "Iran"
	pep := true
	m, err = f.service.Update(ctx, "M-5", &merchant.UpdateRequest{Country: &country, OwnerPEP: &pep}, "ops@bank")
	require.NoError(t, err)

	// 30 + 50 = 80 raw, PEP in high-risk country floors at HIGH (already HIGH).
	assert.Equal(t, 80, m.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, m.RiskLevel)
	assert.Equal(t, domain.MerchantStatusUnderReview, m.Status)
}

func TestService_ApproveAndReject(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := onboardRequest("M-6")
	req.Country = "Iran"
	req.Industry = "Gambling"
	m, err := f.service.Onboard(ctx, req, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, domain.MerchantStatusUnderReview, m.Status)

	m, err = f.service.Approve(ctx, "M-6", "ops@bank")
	require.NoError(t, err)
	assert.Equal(t, domain.MerchantStatusActive, m.Status)

	m, err = f.service.Reject(ctx, "M-6", "ops@bank")
	require.NoError(t, err)
	assert.Equal(t, domain.MerchantStatusTerminated, m.Status)

	// Terminated is terminal.
	_, err = f.service.Approve(ctx, "M-6", "ops@bank")
	assert.ErrorIs(t, err, domain.ErrInvalidState)
}

func TestService_OverrideRisk(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-7"), "SYSTEM")
	require.NoError(t, err)

	m, err := f.service.OverrideRisk(ctx, "M-7", &merchant.OverrideRequest{
		NewLevel: domain.RiskLevelHigh,
		Reason:   "adverse media findings",
	}, "compliance@bank")
	require.NoError(t, err)

	assert.Equal(t, 75, m.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, m.RiskLevel)
	require.Len(t, m.RiskReasons, 1)
	assert.Contains(t, m.RiskReasons[0], "Manual override")

	// The override shows up in assessment history and on the audit trail.
	history, err := f.engine.History(ctx, "M-7", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.True(t, history[0].OverrideApplied)
	assert.Equal(t, "compliance@bank", history[0].AssessedBy)

	entries, err := f.auditRepo.Query(ctx, domain.AuditFilter{Action: domain.AuditActionOverride})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_OverrideRequiresReasonAndLevel(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-8"), "SYSTEM")
	require.NoError(t, err)

	_, err = f.service.OverrideRisk(ctx, "M-8", &merchant.OverrideRequest{
		NewLevel: domain.RiskLevelHigh,
	}, "compliance@bank")
	assert.True(t, domain.IsValidation(err))

	_, err = f.service.OverrideRisk(ctx, "M-8", &merchant.OverrideRequest{
		NewLevel: domain.RiskLevel("EXTREME"),
		Reason:   "x",
	}, "compliance@bank")
	assert.True(t, domain.IsValidation(err))
}

func TestService_DeleteIsAudited(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-9"), "SYSTEM")
	require.NoError(t, err)

	require.NoError(t, f.service.Delete(ctx, "M-9", "ops@bank"))

	_, err = f.service.Get(ctx, "M-9")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	entries, err := f.auditRepo.Query(ctx, domain.AuditFilter{Action: domain.AuditActionDelete})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestService_ReassessAllAppliesNewWeights(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	req := onboardRequest("M-10")
	req.Country = "Iran"
	m, err := f.service.Onboard(ctx, req, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, 30, m.RiskScore)

	_, err = f.service.Onboard(ctx, onboardRequest("M-11"), "SYSTEM")
	require.NoError(t, err)

	_, err = f.store.Update(ctx, &domain.RiskConfigPatch{
		Weights: map[string]int{domain.FactorHighRiskCountry: 70},
	}, "ops@bank")
	require.NoError(t, err)

	count, err := f.service.ReassessAll(ctx, "SYSTEM")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	m, err = f.service.Get(ctx, "M-10")
	require.NoError(t, err)
	assert.Equal(t, 70, m.RiskScore)
	assert.Equal(t, domain.RiskLevelHigh, m.RiskLevel)
}

func TestService_Stats(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-12"), "SYSTEM")
	require.NoError(t, err)

	req := onboardRequest("M-13")
	req.OwnerSanctioned = true
	_, err = f.service.Onboard(ctx, req, "SYSTEM")
	require.NoError(t, err)

	stats, err := f.service.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TotalMerchants)
	assert.Equal(t, 1, stats.ByRiskLevel[domain.RiskLevelLow])
	assert.Equal(t, 1, stats.ByRiskLevel[domain.RiskLevelCritical])
	assert.Equal(t, 1, stats.HighRiskCount)
	// (0 + 100) / 2
	assert.Equal(t, 50.0, stats.AverageScore)
}

func TestService_ReassessAllCountsOnlyCommitted(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.service.Onboard(ctx, onboardRequest("M-14"), "SYSTEM")
	require.NoError(t, err)
	_, err = f.service.Onboard(ctx, onboardRequest("M-15"), "SYSTEM")
	require.NoError(t, err)

	// Corrupt one record behind the service so its snapshot fails
	// validation during the sweep.
	bad, err := f.repo.Get(ctx, "M-15")
	require.NoError(t, err)
	bad.ChargebackRate = 1.5
	require.NoError(t, f.repo.Update(ctx, bad))

	count, err := f.service.ReassessAll(ctx, "SYSTEM")
	assert.Error(t, err)
	assert.Equal(t, 1, count)

	// The healthy merchant's reassessment committed despite the failure.
	history, err := f.engine.History(ctx, "M-14", 10)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

type fakeAssessmentCache struct {
	entries map[string]*domain.AssessmentResult
}

func newFakeAssessmentCache() *fakeAssessmentCache {
	return &fakeAssessmentCache{entries: make(map[string]*domain.AssessmentResult)}
}

func (c *fakeAssessmentCache) SetLatest(ctx context.Context, result *domain.AssessmentResult) error {
	c.entries[result.MerchantID] = result
	return nil
}

func (c *fakeAssessmentCache) GetLatest(ctx context.Context, merchantID string) (*domain.AssessmentResult, error) {
	result, ok := c.entries[merchantID]
	if !ok {
		return nil, fmt.Errorf("cached assessment for %s: %w", merchantID, domain.ErrNotFound)
	}
	return result, nil
}

func (c *fakeAssessmentCache) Invalidate(ctx context.Context, merchantID string) error {
	delete(c.entries, merchantID)
	return nil
}

func TestService_DeleteDropsCachedAssessment(t *testing.T) {
	log := logger.NewNop()
	store, err := risk.NewConfigStore(context.Background(), testSeedConfig(), memory.NewConfigVersionRepository(), log)
	require.NoError(t, err)

	cache := newFakeAssessmentCache()
	trail := audit.NewTrail(memory.NewAuditRepository(), nil, log)
	dispatcher := alerting.NewDispatcher(memory.NewAlertRepository(), nil, log)
	engine := risk.NewEngine(store, memory.NewAssessmentRepository(), trail, dispatcher, cache, log)
	svc := merchant.NewService(memory.NewMerchantRepository(), engine, trail, log)
	ctx := context.Background()

	_, err = svc.Onboard(ctx, onboardRequest("M-16"), "SYSTEM")
	require.NoError(t, err)

	_, err = cache.GetLatest(ctx, "M-16")
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, "M-16", "ops@bank"))

	_, err = cache.GetLatest(ctx, "M-16")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
