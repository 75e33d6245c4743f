package merchant

import (
	"context"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// DashboardStats summarizes the merchant portfolio for the operations
// dashboard.
type DashboardStats struct {
	TotalMerchants int                           `json:"total_merchants"`
	ByRiskLevel    map[domain.RiskLevel]int      `json:"by_risk_level"`
	ByStatus       map[domain.MerchantStatus]int `json:"by_status"`
	AverageScore   float64                       `json:"average_risk_score"`
	HighRiskCount  int                           `json:"high_risk_count"`
}

// Stats computes portfolio-wide aggregates over all merchants.
func (s *Service) Stats(ctx context.Context) (*DashboardStats, error) {
	merchants, err := s.repo.List(ctx, domain.MerchantFilter{})
	if err != nil {
		return nil, err
	}

	stats := &DashboardStats{
		TotalMerchants: len(merchants),
		ByRiskLevel:    make(map[domain.RiskLevel]int),
		ByStatus:       make(map[domain.MerchantStatus]int),
	}

	total := 0
	for _, m := range merchants {
		stats.ByRiskLevel[m.RiskLevel]++
		stats.ByStatus[m.Status]++
		total += m.RiskScore
		if m.RiskLevel.AtLeast(domain.RiskLevelHigh) {
			stats.HighRiskCount++
		}
	}
	if len(merchants) > 0 {
		stats.AverageScore = float64(total) / float64(len(merchants))
	}
	return stats, nil
}
