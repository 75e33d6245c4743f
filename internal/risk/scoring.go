package risk

import (
	"fmt"
	"math"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// chargebackMultiplier scales the chargeback-rate fraction into score points:
// contribution = round(rate * 10 * chargebackMultiplier), so a 2.5% rate
// contributes 25 points.
const chargebackMultiplier = 100

// scoringRule is one entry in the fixed evaluation table. Rules are
// independent; every rule is checked on every assessment so the reason
// ordering stays deterministic.
type scoringRule struct {
	factor  string
	trigger func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string)
}

// scoringRules is evaluated in order. Do not reorder entries: the sequence of
// triggered factors (and therefore the reason list) must be stable across
// assessments of the same snapshot and configuration.
var scoringRules = []scoringRule{
	{
		factor: domain.FactorHighRiskCountry,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !c.IsHighRiskCountry(s.Country) {
				return false, ""
			}
			return true, fmt.Sprintf("High-risk country: %s", s.Country)
		},
	},
	{
		factor: domain.FactorHighRiskIndustry,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !c.IsHighRiskIndustry(s.Industry) {
				return false, ""
			}
			return true, fmt.Sprintf("High-risk industry: %s", s.Industry)
		},
	},
	{
		factor: domain.FactorBlacklistedMCC,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if s.MCCCode == "" || !c.IsBlacklistedMCC(s.MCCCode) {
				return false, ""
			}
			return true, fmt.Sprintf("Blacklisted MCC: %s", s.MCCCode)
		},
	},
	{
		factor: domain.FactorOwnerPEP,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !s.OwnerPEP {
				return false, ""
			}
			return true, "Owner is a Politically Exposed Person (PEP)"
		},
	},
	{
		factor: domain.FactorSanctionedOwner,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !s.OwnerSanctioned {
				return false, ""
			}
			return true, "Owner is on a sanctions list"
		},
	},
	{
		factor: domain.FactorHighVolume,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if s.AnnualVolume <= c.FactorThresholds.HighVolumeMin {
				return false, ""
			}
			return true, fmt.Sprintf("High annual volume: $%.2f", s.AnnualVolume)
		},
	},
	{
		factor: domain.FactorNewBusiness,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if s.YearsInBusiness >= c.FactorThresholds.NewBusinessMaxYears {
				return false, ""
			}
			return true, fmt.Sprintf("New business: %d years in operation", s.YearsInBusiness)
		},
	},
	{
		factor: domain.FactorOffshoreStructure,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !s.OffshoreStructure {
				return false, ""
			}
			return true, "Offshore corporate structure"
		},
	},
	{
		factor: domain.FactorCashIntensive,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !s.CashIntensive {
				return false, ""
			}
			return true, "Cash-intensive business"
		},
	},
	{
		factor: domain.FactorComplexOwnership,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if !s.ComplexOwnership {
				return false, ""
			}
			return true, "Complex ownership structure"
		},
	},
	{
		factor: domain.FactorHighRefundRate,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if s.RefundRate <= c.FactorThresholds.HighRefundRate {
				return false, ""
			}
			return true, fmt.Sprintf("High refund rate: %.1f%%", s.RefundRate*100)
		},
	},
	{
		factor: domain.FactorVolumeSpike,
		trigger: func(s *domain.MerchantSnapshot, c *domain.RiskConfig) (bool, string) {
			if s.VolumeChange <= c.FactorThresholds.VolumeSpikeRatio {
				return false, ""
			}
			return true, fmt.Sprintf("Abnormal volume spike: %.1f%% increase", s.VolumeChange*100)
		},
	},
}

// Evaluate runs the full scoring table against a snapshot and configuration.
// It is a pure function: no short-circuiting, no side effects, factors
// returned in evaluation order.
func Evaluate(snapshot *domain.MerchantSnapshot, cfg *domain.RiskConfig) []domain.TriggeredFactor {
	factors := make([]domain.TriggeredFactor, 0, len(scoringRules)+1)

	for _, rule := range scoringRules {
		fired, reason := rule.trigger(snapshot, cfg)
		if !fired {
			continue
		}
		factors = append(factors, domain.TriggeredFactor{
			Factor: rule.factor,
			Weight: cfg.Weight(rule.factor),
			Reason: reason,
		})
	}

	// The chargeback factor is dynamic: its contribution scales with the
	// observed rate instead of using a fixed weight.
	if contribution := chargebackContribution(snapshot.ChargebackRate); contribution > 0 {
		factors = append(factors, domain.TriggeredFactor{
			Factor: domain.FactorHighChargebackRate,
			Weight: contribution,
			Reason: fmt.Sprintf("High chargeback rate: %.2f%%", snapshot.ChargebackRate*100),
		})
	}

	return factors
}

// RawScore sums factor contributions before capping.
func RawScore(factors []domain.TriggeredFactor) int {
	total := 0
	for _, f := range factors {
		total += f.Weight
	}
	return total
}

func chargebackContribution(rate float64) int {
	return int(math.Round(rate * 10 * chargebackMultiplier))
}
