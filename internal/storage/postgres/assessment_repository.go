package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AssessmentRepository implements risk.AssessmentRepository on PostgreSQL.
// The assessments table is append-only.
type AssessmentRepository struct {
	pool *pgxpool.Pool
}

// NewAssessmentRepository creates an assessment repository.
func NewAssessmentRepository(pool *pgxpool.Pool) *AssessmentRepository {
	return &AssessmentRepository{pool: pool}
}

// Append inserts one assessment result.
func (r *AssessmentRepository) Append(ctx context.Context, result *domain.AssessmentResult) error {
	factors, err := json.Marshal(result.Factors)
	if err != nil {
		return fmt.Errorf("encoding factors: %w", err)
	}

	query := `
		INSERT INTO assessments (
			id, merchant_id, config_version, raw_score, score, risk_level,
			factors, reasons, override_applied, override_reason,
			assessed_by, assessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err = r.pool.Exec(ctx, query,
		result.ID, result.MerchantID, result.ConfigVersion,
		result.RawScore, result.Score, result.RiskLevel,
		factors, result.Reasons, result.OverrideApplied, result.OverrideReason,
		result.AssessedBy, result.AssessedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting assessment: %w", err)
	}
	return nil
}

// ListByMerchant returns a merchant's assessments, newest first.
func (r *AssessmentRepository) ListByMerchant(ctx context.Context, merchantID string, limit int) ([]*domain.AssessmentResult, error) {
	query := `
		SELECT id, merchant_id, config_version, raw_score, score, risk_level,
			factors, reasons, override_applied, override_reason,
			assessed_by, assessed_at
		FROM assessments
		WHERE merchant_id = $1
		ORDER BY assessed_at DESC, id DESC
	`
	args := []any{merchantID}
	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing assessments: %w", err)
	}
	defer rows.Close()

	var results []*domain.AssessmentResult
	for rows.Next() {
		var (
			result  domain.AssessmentResult
			factors []byte
		)
		err := rows.Scan(
			&result.ID, &result.MerchantID, &result.ConfigVersion,
			&result.RawScore, &result.Score, &result.RiskLevel,
			&factors, &result.Reasons, &result.OverrideApplied, &result.OverrideReason,
			&result.AssessedBy, &result.AssessedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning assessment: %w", err)
		}
		if len(factors) > 0 {
			if err := json.Unmarshal(factors, &result.Factors); err != nil {
				return nil, fmt.Errorf("decoding factors: %w", err)
			}
		}
		results = append(results, &result)
	}
	return results, rows.Err()
}
