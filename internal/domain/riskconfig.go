package domain

import (
	"sort"
	"strings"
	"time"
)

// Canonical risk factor names. Weights are keyed by these; the chargeback
// factor is dynamic and carries no fixed weight.
const (
	FactorHighRiskCountry    = "high_risk_country"
	FactorHighRiskIndustry   = "high_risk_industry"
	FactorBlacklistedMCC     = "blacklisted_mcc"
	FactorOwnerPEP           = "owner_pep"
	FactorSanctionedOwner    = "sanctioned_owner"
	FactorHighVolume         = "high_volume"
	FactorNewBusiness        = "new_business"
	FactorOffshoreStructure  = "offshore_structure"
	FactorCashIntensive      = "cash_intensive"
	FactorComplexOwnership   = "complex_ownership"
	FactorHighRefundRate     = "high_refund_rate"
	FactorVolumeSpike        = "volume_spike"
	FactorHighChargebackRate = "high_chargeback_rate"
)

// RiskThresholds partitions [0, 100] into four contiguous risk bands:
// LOW [0, LowMax], MEDIUM (LowMax, MediumMax], HIGH (MediumMax, CriticalMin),
// CRITICAL [CriticalMin, 100].
type RiskThresholds struct {
	LowMax      int `json:"low_max"`
	MediumMax   int `json:"medium_max"`
	CriticalMin int `json:"critical_min"`
}

// Validate checks that the boundaries are strictly increasing and keep all
// four bands non-empty.
func (t RiskThresholds) Validate() error {
	if t.LowMax < 0 {
		return NewValidationError("thresholds.low_max", "must not be negative")
	}
	if t.MediumMax <= t.LowMax {
		return NewValidationError("thresholds.medium_max", "must exceed low_max")
	}
	if t.CriticalMin <= t.MediumMax+1 {
		return NewValidationError("thresholds.critical_min", "must leave room for the HIGH band")
	}
	if t.CriticalMin > 100 {
		return NewValidationError("thresholds.critical_min", "must not exceed 100")
	}
	return nil
}

// HighMin returns the lowest score in the HIGH band, used as the floor for
// the PEP-in-high-risk-country override.
func (t RiskThresholds) HighMin() int {
	return t.MediumMax + 1
}

// Level maps a final (capped) score to its risk band.
func (t RiskThresholds) Level(score int) RiskLevel {
	switch {
	case score >= t.CriticalMin:
		return RiskLevelCritical
	case score >= t.HighMin():
		return RiskLevelHigh
	case score > t.LowMax:
		return RiskLevelMedium
	default:
		return RiskLevelLow
	}
}

// FactorThresholds holds the numeric trigger boundaries for the
// threshold-based scoring rules.
type FactorThresholds struct {
	// HighVolumeMin is the annual volume above which the high_volume factor
	// fires.
	HighVolumeMin float64 `json:"high_volume_min"`
	// NewBusinessMaxYears is the exclusive upper bound on years in business
	// for the new_business factor.
	NewBusinessMaxYears int `json:"new_business_max_years"`
	// HighRefundRate is the refund-rate fraction above which the
	// high_refund_rate factor fires.
	HighRefundRate float64 `json:"high_refund_rate"`
	// VolumeSpikeRatio is the month-over-month change ratio above which the
	// volume_spike factor fires.
	VolumeSpikeRatio float64 `json:"volume_spike_ratio"`
}

// Validate checks factor thresholds for sane values.
func (f FactorThresholds) Validate() error {
	if f.HighVolumeMin < 0 {
		return NewValidationError("factor_thresholds.high_volume_min", "must not be negative")
	}
	if f.NewBusinessMaxYears < 0 {
		return NewValidationError("factor_thresholds.new_business_max_years", "must not be negative")
	}
	if f.HighRefundRate < 0 || f.HighRefundRate > 1 {
		return NewValidationError("factor_thresholds.high_refund_rate", "must be within [0, 1]")
	}
	if f.VolumeSpikeRatio < 0 {
		return NewValidationError("factor_thresholds.volume_spike_ratio", "must not be negative")
	}
	return nil
}

// RiskConfig is one immutable version of the scoring configuration. Readers
// always receive a complete snapshot; mutation goes through the config store
// which publishes a new version atomically.
type RiskConfig struct {
	Weights          map[string]int   `json:"weights"`
	Thresholds       RiskThresholds   `json:"thresholds"`
	FactorThresholds FactorThresholds `json:"factor_thresholds"`

	// Categorical lists, case-normalized and deduplicated.
	HighRiskCountries  []string `json:"high_risk_countries"`
	HighRiskIndustries []string `json:"high_risk_industries"`
	BlacklistedMCCs    []string `json:"blacklisted_mccs"`
}

// Weight returns the configured weight for a factor, zero when unset.
func (c *RiskConfig) Weight(factor string) int {
	return c.Weights[factor]
}

// IsHighRiskCountry reports list membership after case normalization.
func (c *RiskConfig) IsHighRiskCountry(country string) bool {
	return containsNormalized(c.HighRiskCountries, country)
}

// IsHighRiskIndustry reports list membership after case normalization.
func (c *RiskConfig) IsHighRiskIndustry(industry string) bool {
	return containsNormalized(c.HighRiskIndustries, industry)
}

// IsBlacklistedMCC reports list membership after case normalization.
func (c *RiskConfig) IsBlacklistedMCC(mcc string) bool {
	return containsNormalized(c.BlacklistedMCCs, mcc)
}

// Validate checks all configuration invariants: non-negative weights,
// strictly increasing thresholds, normalized list entries.
func (c *RiskConfig) Validate() error {
	for factor, weight := range c.Weights {
		if weight < 0 {
			return NewValidationError("weights."+factor, "must not be negative")
		}
	}
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	return c.FactorThresholds.Validate()
}

// Clone returns a deep copy so a new version can be derived without touching
// the published snapshot.
func (c *RiskConfig) Clone() *RiskConfig {
	out := &RiskConfig{
		Weights:            make(map[string]int, len(c.Weights)),
		Thresholds:         c.Thresholds,
		FactorThresholds:   c.FactorThresholds,
		HighRiskCountries:  append([]string(nil), c.HighRiskCountries...),
		HighRiskIndustries: append([]string(nil), c.HighRiskIndustries...),
		BlacklistedMCCs:    append([]string(nil), c.BlacklistedMCCs...),
	}
	for k, v := range c.Weights {
		out.Weights[k] = v
	}
	return out
}

// NormalizeList lowercases, trims, deduplicates, and sorts list entries so
// that versions compare deterministically.
func NormalizeList(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		norm := strings.ToLower(strings.TrimSpace(item))
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		out = append(out, norm)
	}
	sort.Strings(out)
	return out
}

func containsNormalized(list []string, item string) bool {
	norm := strings.ToLower(strings.TrimSpace(item))
	for _, entry := range list {
		if entry == norm {
			return true
		}
	}
	return false
}

// RiskConfigPatch is a partial configuration update. Nil fields are left
// unchanged; weight entries merge key-by-key into the current weights.
type RiskConfigPatch struct {
	Weights          map[string]int    `json:"weights,omitempty"`
	Thresholds       *RiskThresholds   `json:"thresholds,omitempty"`
	FactorThresholds *FactorThresholds `json:"factor_thresholds,omitempty"`

	HighRiskCountries  []string `json:"high_risk_countries,omitempty"`
	HighRiskIndustries []string `json:"high_risk_industries,omitempty"`
	BlacklistedMCCs    []string `json:"blacklisted_mccs,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p *RiskConfigPatch) IsEmpty() bool {
	return len(p.Weights) == 0 && p.Thresholds == nil && p.FactorThresholds == nil &&
		p.HighRiskCountries == nil && p.HighRiskIndustries == nil && p.BlacklistedMCCs == nil
}

// ConfigVersion pairs an immutable configuration snapshot with its version
// metadata. Versions are monotonically increasing and never deleted, so any
// historical assessment can be reproduced exactly as computed.
type ConfigVersion struct {
	Version   int64       `json:"version" db:"version"`
	Config    *RiskConfig `json:"config" db:"config"`
	UpdatedBy string      `json:"updated_by" db:"updated_by"`
	CreatedAt time.Time   `json:"created_at" db:"created_at"`
}
