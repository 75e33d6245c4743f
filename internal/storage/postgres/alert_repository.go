package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AlertRepository implements alerting.Repository on PostgreSQL.
type AlertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository creates an alert repository.
func NewAlertRepository(pool *pgxpool.Pool) *AlertRepository {
	return &AlertRepository{pool: pool}
}

const alertColumns = `
	id, merchant_id, assessment_id, severity, status, title, description,
	resolved_by, resolved_at, resolution_notes, created_at`

// Create inserts a new alert.
func (r *AlertRepository) Create(ctx context.Context, alert *domain.Alert) error {
	query := `
		INSERT INTO alerts (` + alertColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := r.pool.Exec(ctx, query,
		alert.ID, alert.MerchantID, alert.AssessmentID,
		alert.Severity, alert.Status, alert.Title, alert.Description,
		alert.ResolvedBy, alert.ResolvedAt, alert.ResolutionNotes, alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting alert: %w", err)
	}
	return nil
}

// Get fetches an alert by ID.
func (r *AlertRepository) Get(ctx context.Context, id uuid.UUID) (*domain.Alert, error) {
	query := `SELECT ` + alertColumns + ` FROM alerts WHERE id = $1`
	alert, err := scanAlert(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("fetching alert: %w", err)
	}
	return alert, nil
}

// Update overwrites an existing alert.
func (r *AlertRepository) Update(ctx context.Context, alert *domain.Alert) error {
	query := `
		UPDATE alerts SET
			status = $2, resolved_by = $3, resolved_at = $4, resolution_notes = $5
		WHERE id = $1
	`
	tag, err := r.pool.Exec(ctx, query,
		alert.ID, alert.Status, alert.ResolvedBy, alert.ResolvedAt, alert.ResolutionNotes)
	if err != nil {
		return fmt.Errorf("updating alert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("alert %s: %w", alert.ID, domain.ErrNotFound)
	}
	return nil
}

// List returns alerts matching the filter, newest first.
func (r *AlertRepository) List(ctx context.Context, filter domain.AlertFilter) ([]*domain.Alert, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.MerchantID != "" {
		conditions = append(conditions, "merchant_id = "+arg(filter.MerchantID))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = "+arg(filter.Status))
	}
	if filter.Severity != "" {
		conditions = append(conditions, "severity = "+arg(filter.Severity))
	}

	query := `SELECT ` + alertColumns + ` FROM alerts`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*domain.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning alert: %w", err)
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlert(row pgx.Row) (*domain.Alert, error) {
	var a domain.Alert
	err := row.Scan(
		&a.ID, &a.MerchantID, &a.AssessmentID,
		&a.Severity, &a.Status, &a.Title, &a.Description,
		&a.ResolvedBy, &a.ResolvedAt, &a.ResolutionNotes, &a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
