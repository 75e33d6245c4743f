package risk

import (
	"github.com/banking/merchant-risk-service/internal/domain"
)

// Override reason strings. These appear verbatim in assessment reason lists
// and audit payloads, so treat them as part of the stable output.
const (
	OverrideReasonSanctioned         = "Owner is sanctioned - automatic CRITICAL risk"
	OverrideReasonPEPHighRiskCountry = "PEP owner in high-risk country - elevated to HIGH"
)

// ApplyOverrides evaluates the hard-override rules against a snapshot and its
// raw additive score. Rules are checked in strict priority order and the
// first match wins:
//
//  1. Sanctioned owner: score fixed at 100, level CRITICAL.
//  2. PEP owner in a high-risk country: level floored at HIGH. The floor
//     never lowers - if the capped additive score already lands in the
//     CRITICAL band, CRITICAL is kept.
//  3. No override: capped score, level from the threshold bands.
//
// The returned override reason is empty when no override applied.
func ApplyOverrides(snapshot *domain.MerchantSnapshot, rawScore int, cfg *domain.RiskConfig) (int, domain.RiskLevel, string) {
	capped := capScore(rawScore)

	if snapshot.OwnerSanctioned {
		return 100, domain.RiskLevelCritical, OverrideReasonSanctioned
	}

	if snapshot.OwnerPEP && cfg.IsHighRiskCountry(snapshot.Country) {
		if level := cfg.Thresholds.Level(capped); level == domain.RiskLevelCritical {
			return capped, domain.RiskLevelCritical, OverrideReasonPEPHighRiskCountry
		}
		score := capped
		if floor := cfg.Thresholds.HighMin(); score < floor {
			score = floor
		}
		return score, domain.RiskLevelHigh, OverrideReasonPEPHighRiskCountry
	}

	return capped, cfg.Thresholds.Level(capped), ""
}

func capScore(score int) int {
	if score > 100 {
		return 100
	}
	if score < 0 {
		return 0
	}
	return score
}
