package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/banking/merchant-risk-service/internal/domain"
)

// ConfigRepository implements risk.ConfigVersionRepository on PostgreSQL.
// Versions are append-only; the configuration snapshot is stored as JSONB.
type ConfigRepository struct {
	pool *pgxpool.Pool
}

// NewConfigRepository creates a configuration version repository.
func NewConfigRepository(pool *pgxpool.Pool) *ConfigRepository {
	return &ConfigRepository{pool: pool}
}

// Save inserts one configuration version. The primary key on version makes a
// concurrent save of the same version fail, which the store surfaces as a
// conflict.
func (r *ConfigRepository) Save(ctx context.Context, version *domain.ConfigVersion) error {
	config, err := json.Marshal(version.Config)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	query := `
		INSERT INTO config_versions (version, config, updated_by, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := r.pool.Exec(ctx, query, version.Version, config, version.UpdatedBy, version.CreatedAt); err != nil {
		return fmt.Errorf("inserting config version %d: %w", version.Version, err)
	}
	return nil
}

// LoadAll returns every stored configuration version, oldest first.
func (r *ConfigRepository) LoadAll(ctx context.Context) ([]*domain.ConfigVersion, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT version, config, updated_by, created_at
		FROM config_versions
		ORDER BY version ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("loading config versions: %w", err)
	}
	defer rows.Close()

	var versions []*domain.ConfigVersion
	for rows.Next() {
		var (
			v      domain.ConfigVersion
			config []byte
		)
		if err := rows.Scan(&v.Version, &config, &v.UpdatedBy, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning config version: %w", err)
		}
		v.Config = &domain.RiskConfig{}
		if err := json.Unmarshal(config, v.Config); err != nil {
			return nil, fmt.Errorf("decoding config version %d: %w", v.Version, err)
		}
		versions = append(versions, &v)
	}
	return versions, rows.Err()
}
