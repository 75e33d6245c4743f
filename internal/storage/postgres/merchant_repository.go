package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/merchant-risk-service/internal/domain"
)

const uniqueViolationCode = "23505"

// MerchantRepository implements merchant.Repository on PostgreSQL.
type MerchantRepository struct {
	pool *pgxpool.Pool
}

// NewMerchantRepository creates a merchant repository.
func NewMerchantRepository(pool *pgxpool.Pool) *MerchantRepository {
	return &MerchantRepository{pool: pool}
}

const merchantColumns = `
	merchant_id, business_name, country, industry, mcc_code, owner_name,
	owner_pep, owner_sanctioned,
	annual_volume, years_in_business, offshore_structure, cash_intensive, complex_ownership,
	refund_rate, volume_change, chargeback_rate,
	risk_score, risk_level, risk_reasons, last_assessed_at,
	status, created_at, updated_at`

// Create inserts a new merchant. A duplicate merchant ID is reported as a
// validation error.
func (r *MerchantRepository) Create(ctx context.Context, m *domain.Merchant) error {
	query := `
		INSERT INTO merchants (` + merchantColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23)
	`
	_, err := r.pool.Exec(ctx, query,
		m.MerchantID, m.BusinessName, m.Country, m.Industry, m.MCCCode, m.OwnerName,
		m.OwnerPEP, m.OwnerSanctioned,
		m.AnnualVolume, m.YearsInBusiness, m.OffshoreStructure, m.CashIntensive, m.ComplexOwnership,
		m.RefundRate, m.VolumeChange, m.ChargebackRate,
		m.RiskScore, m.RiskLevel, m.RiskReasons, m.LastAssessedAt,
		m.Status, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return domain.NewValidationError("merchant_id", "already exists")
		}
		return fmt.Errorf("inserting merchant: %w", err)
	}
	return nil
}

// Get fetches a merchant by ID.
func (r *MerchantRepository) Get(ctx context.Context, merchantID string) (*domain.Merchant, error) {
	query := `SELECT ` + merchantColumns + ` FROM merchants WHERE merchant_id = $1`
	m, err := scanMerchant(r.pool.QueryRow(ctx, query, merchantID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("merchant %s: %w", merchantID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching merchant: %w", err)
	}
	return m, nil
}

// Update overwrites an existing merchant record.
func (r *MerchantRepository) Update(ctx context.Context, m *domain.Merchant) error {
	query := `
		UPDATE merchants SET
			business_name = $2, country = $3, industry = $4, mcc_code = $5, owner_name = $6,
			owner_pep = $7, owner_sanctioned = $8,
			annual_volume = $9, years_in_business = $10, offshore_structure = $11,
			cash_intensive = $12, complex_ownership = $13,
			refund_rate = $14, volume_change = $15, chargeback_rate = $16,
			risk_score = $17, risk_level = $18, risk_reasons = $19, last_assessed_at = $20,
			status = $21, updated_at = $22
		WHERE merchant_id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		m.MerchantID,
		m.BusinessName, m.Country, m.Industry, m.MCCCode, m.OwnerName,
		m.OwnerPEP, m.OwnerSanctioned,
		m.AnnualVolume, m.YearsInBusiness, m.OffshoreStructure,
		m.CashIntensive, m.ComplexOwnership,
		m.RefundRate, m.VolumeChange, m.ChargebackRate,
		m.RiskScore, m.RiskLevel, m.RiskReasons, m.LastAssessedAt,
		m.Status, m.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating merchant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant %s: %w", m.MerchantID, domain.ErrNotFound)
	}
	return nil
}

// Delete removes a merchant.
func (r *MerchantRepository) Delete(ctx context.Context, merchantID string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM merchants WHERE merchant_id = $1`, merchantID)
	if err != nil {
		return fmt.Errorf("deleting merchant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("merchant %s: %w", merchantID, domain.ErrNotFound)
	}
	return nil
}

// List returns merchants matching the filter, highest risk first.
func (r *MerchantRepository) List(ctx context.Context, filter domain.MerchantFilter) ([]*domain.Merchant, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.RiskLevel != "" {
		conditions = append(conditions, "risk_level = "+arg(filter.RiskLevel))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Country != "" {
		conditions = append(conditions, "LOWER(country) = LOWER("+arg(filter.Country)+")")
	}

	query := `SELECT ` + merchantColumns + ` FROM merchants`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY risk_score DESC, merchant_id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET " + arg(filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing merchants: %w", err)
	}
	defer rows.Close()

	var merchants []*domain.Merchant
	for rows.Next() {
		m, err := scanMerchant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning merchant: %w", err)
		}
		merchants = append(merchants, m)
	}
	return merchants, rows.Err()
}

func scanMerchant(row pgx.Row) (*domain.Merchant, error) {
	var m domain.Merchant
	err := row.Scan(
		&m.MerchantID, &m.BusinessName, &m.Country, &m.Industry, &m.MCCCode, &m.OwnerName,
		&m.OwnerPEP, &m.OwnerSanctioned,
		&m.AnnualVolume, &m.YearsInBusiness, &m.OffshoreStructure, &m.CashIntensive, &m.ComplexOwnership,
		&m.RefundRate, &m.VolumeChange, &m.ChargebackRate,
		&m.RiskScore, &m.RiskLevel, &m.RiskReasons, &m.LastAssessedAt,
		&m.Status, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
