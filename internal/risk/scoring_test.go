package risk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banking/merchant-risk-service/internal/domain"
	"github.com/banking/merchant-risk-service/internal/risk"
)

func testConfig() *domain.RiskConfig {
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
		Thresholds: domain.RiskThresholds{
			LowMax:      30,
			MediumMax:   60,
			CriticalMin: 85,
		},
		FactorThresholds: domain.FactorThresholds{
			HighVolumeMin:       1_000_000,
			NewBusinessMaxYears: 2,
			HighRefundRate:      0.05,
			VolumeSpikeRatio:    0.5,
		},
		HighRiskCountries:  domain.NormalizeList([]string{"Iran", "North Korea", "Syria", "Myanmar"}),
		HighRiskIndustries: domain.NormalizeList([]string{"Gambling", "Casino", "CryptoExchange"}),
		BlacklistedMCCs:    domain.NormalizeList([]string{"7995", "5933", "4829"}),
	}
}

func cleanSnapshot() *domain.MerchantSnapshot {
	return &domain.MerchantSnapshot{
		MerchantID:      "M-1001",
		BusinessName:    "Acme Retail",
		Country:         "Germany",
		Industry:        "Retail",
		AnnualVolume:    250_000,
		YearsInBusiness: 5,
	}
}

func TestEvaluate_CleanMerchant(t *testing.T) {
	factors := risk.Evaluate(cleanSnapshot(), testConfig())

	assert.Empty(t, factors)
	assert.Equal(t, 0, risk.RawScore(factors))
}

func TestEvaluate_HighRiskCountry(t *testing.T) {
	s := cleanSnapshot()
	s.Country = "Iran"

	factors := risk.Evaluate(s, testConfig())

	assert.Len(t, factors, 1)
	assert.Equal(t, domain.FactorHighRiskCountry, factors[0].Factor)
	assert.Equal(t, 30, factors[0].Weight)
	assert.Equal(t, "High-risk country: Iran", factors[0].Reason)
}

func TestEvaluate_CountryMatchIsCaseInsensitive(t *testing.T) {
	s := cleanSnapshot()
	s.Country = "  IRAN "

	factors := risk.Evaluate(s, testConfig())

	assert.Len(t, factors, 1)
	assert.Equal(t, domain.FactorHighRiskCountry, factors[0].Factor)
}

func TestEvaluate_MultipleFactorsInRuleOrder(t *testing.T) {
	s := cleanSnapshot()
	s.Country = "Iran"
	s.Industry = "Gambling"
	s.OwnerPEP = true

	factors := risk.Evaluate(s, testConfig())

	// high_risk_country 30 + high_risk_industry 25 + owner_pep 50 = 105
	assert.Equal(t, 105, risk.RawScore(factors))
	assert.Equal(t, []string{
		domain.FactorHighRiskCountry,
		domain.FactorHighRiskIndustry,
		domain.FactorOwnerPEP,
	}, factorNames(factors))
}

func TestEvaluate_StructuralFactors(t *testing.T) {
	s := cleanSnapshot()
	s.AnnualVolume = 2_000_000
	s.YearsInBusiness = 1
	s.OffshoreStructure = true
	s.CashIntensive = true
	s.ComplexOwnership = true

	factors := risk.Evaluate(s, testConfig())

	// high_volume 15 + new_business 10 + offshore 25 + cash 20 + complex 15 = 85
	assert.Equal(t, 85, risk.RawScore(factors))
}

func TestEvaluate_ThresholdBoundariesExclusive(t *testing.T) {
	cfg := testConfig()

	s := cleanSnapshot()
	s.AnnualVolume = 1_000_000 // not above the boundary
	s.YearsInBusiness = 2      // not below the boundary
	s.RefundRate = 0.05        // not above the boundary
	s.VolumeChange = 0.5       // not above the boundary

	assert.Empty(t, risk.Evaluate(s, cfg))
}

func TestEvaluate_BehavioralFactors(t *testing.T) {
	s := cleanSnapshot()
	s.RefundRate = 0.08
	s.VolumeChange = 0.75

	factors := risk.Evaluate(s, testConfig())

	// high_refund_rate 20 + volume_spike 25 = 45
	assert.Equal(t, 45, risk.RawScore(factors))
	assert.Equal(t, "High refund rate: 8.0%", factors[0].Reason)
	assert.Equal(t, "Abnormal volume spike: 75.0% increase", factors[1].Reason)
}

func TestEvaluate_ChargebackContributionScalesWithRate(t *testing.T) {
	cfg := testConfig()

	s := cleanSnapshot()
	s.ChargebackRate = 0.025

	factors := risk.Evaluate(s, cfg)

	// round(0.025 * 10 * 100) = 25
	assert.Len(t, factors, 1)
	assert.Equal(t, domain.FactorHighChargebackRate, factors[0].Factor)
	assert.Equal(t, 25, factors[0].Weight)
	assert.Equal(t, "High chargeback rate: 2.50%", factors[0].Reason)
}

func TestEvaluate_ChargebackZeroRateDoesNotFire(t *testing.T) {
	s := cleanSnapshot()
	s.ChargebackRate = 0

	assert.Empty(t, risk.Evaluate(s, testConfig()))
}

func TestEvaluate_ChargebackSmallRateStillCounts(t *testing.T) {
	s := cleanSnapshot()
	s.ChargebackRate = 0.004

	factors := risk.Evaluate(s, testConfig())

	// round(0.004 * 10 * 100) = 4
	assert.Len(t, factors, 1)
	assert.Equal(t, 4, factors[0].Weight)
}

func TestEvaluate_MissingWeightContributesZero(t *testing.T) {
	cfg := testConfig()
	delete(cfg.Weights, domain.FactorOwnerPEP)

	s := cleanSnapshot()
	s.OwnerPEP = true

	factors := risk.Evaluate(s, cfg)

	// The rule still fires and appears in the reasons; it just adds nothing.
	assert.Len(t, factors, 1)
	assert.Equal(t, 0, factors[0].Weight)
	assert.Equal(t, 0, risk.RawScore(factors))
}

func TestEvaluate_IsDeterministic(t *testing.T) {
	cfg := testConfig()
	s := cleanSnapshot()
	s.Country = "Iran"
	s.Industry = "Casino"
	s.MCCCode = "7995"
	s.ChargebackRate = 0.02

	first := risk.Evaluate(s, cfg)
	second := risk.Evaluate(s, cfg)

	assert.Equal(t, first, second)
}

func factorNames(factors []domain.TriggeredFactor) []string {
	names := make([]string, 0, len(factors))
	for _, f := range factors {
		names = append(names, f.Factor)
	}
	return names
}
