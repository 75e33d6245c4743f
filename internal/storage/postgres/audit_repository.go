package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// AuditRepository implements audit.Repository on PostgreSQL. The audit_log
// table is append-only; there are no update or delete paths.
type AuditRepository struct {
	pool *pgxpool.Pool
}

// NewAuditRepository creates an audit repository.
func NewAuditRepository(pool *pgxpool.Pool) *AuditRepository {
	return &AuditRepository{pool: pool}
}

// Append inserts one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	before, err := marshalPayload(entry.Before)
	if err != nil {
		return fmt.Errorf("encoding before payload: %w", err)
	}
	after, err := marshalPayload(entry.After)
	if err != nil {
		return fmt.Errorf("encoding after payload: %w", err)
	}

	query := `
		INSERT INTO audit_log (id, actor, action, target_id, description, before, after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		entry.ID, entry.Actor, entry.Action, entry.TargetID,
		entry.Description, before, after, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// Query returns matching audit entries in chronological order.
func (r *AuditRepository) Query(ctx context.Context, filter domain.AuditFilter) ([]*domain.AuditEntry, error) {
	var (
		conditions []string
		args       []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Actor != "" {
		conditions = append(conditions, "actor = "+arg(filter.Actor))
	}
	if filter.Action != "" {
		conditions = append(conditions, "action = "+arg(filter.Action))
	}
	if filter.TargetID != "" {
		conditions = append(conditions, "target_id = "+arg(filter.TargetID))
	}
	if !filter.From.IsZero() {
		conditions = append(conditions, "created_at >= "+arg(filter.From))
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "created_at <= "+arg(filter.To))
	}

	query := `SELECT id, actor, action, target_id, description, before, after, created_at FROM audit_log`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying audit log: %w", err)
	}
	defer rows.Close()

	var entries []*domain.AuditEntry
	for rows.Next() {
		var (
			entry         domain.AuditEntry
			before, after []byte
		)
		err := rows.Scan(&entry.ID, &entry.Actor, &entry.Action, &entry.TargetID,
			&entry.Description, &before, &after, &entry.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		if entry.Before, err = unmarshalPayload(before); err != nil {
			return nil, fmt.Errorf("decoding before payload: %w", err)
		}
		if entry.After, err = unmarshalPayload(after); err != nil {
			return nil, fmt.Errorf("decoding after payload: %w", err)
		}
		entries = append(entries, &entry)
	}
	return entries, rows.Err()
}

func marshalPayload(payload map[string]any) ([]byte, error) {
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

func unmarshalPayload(raw []byte) (map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}
