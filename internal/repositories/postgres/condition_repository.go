package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// PostgresConditionRepository implements ConditionRepository using PostgreSQL
type PostgresConditionRepository struct {
	db *sql.DB
}

// NewPostgresConditionRepository creates a new PostgreSQL condition repository
func NewPostgresConditionRepository(db *sql.DB) repositories.ConditionRepository {
	return &PostgresConditionRepository{db: db}
}

// Create stores a new condition configuration
func (r *PostgresConditionRepository) Create(ctx context.Context, cfg *entities.ConditionConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}

	configJSON, err := cfg.MarshalConfiguration()
	if err != nil {
		return err
	}

	now := time.Now()
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO conditions (id, plugin_id, configuration, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`, cfg.ID, cfg.PluginID, configJSON, now, now)
	if err != nil {
		return fmt.Errorf("failed to create condition: %w", err)
	}

	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	return nil
}

// Get retrieves a condition configuration by ID
func (r *PostgresConditionRepository) Get(ctx context.Context, id string) (*entities.ConditionConfig, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, plugin_id, configuration, created_at, updated_at
		FROM conditions
		WHERE id = $1
	`, id)

	cfg, err := scanCondition(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("condition %s: %w", id, repositories.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// GetMany retrieves configurations in the order of ids
func (r *PostgresConditionRepository) GetMany(ctx context.Context, ids []string) ([]*entities.ConditionConfig, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plugin_id, configuration, created_at, updated_at
		FROM conditions
		WHERE id = ANY($1::uuid[])
	`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query conditions: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*entities.ConditionConfig, len(ids))
	for rows.Next() {
		cfg, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		byID[cfg.ID] = cfg
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conditions: %w", err)
	}

	configs := make([]*entities.ConditionConfig, 0, len(ids))
	for _, id := range ids {
		cfg, ok := byID[canonicalID(id)]
		if !ok {
			return nil, fmt.Errorf("condition %s: %w", id, repositories.ErrNotFound)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

// Update replaces the configuration of an existing condition
func (r *PostgresConditionRepository) Update(ctx context.Context, cfg *entities.ConditionConfig) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}

	configJSON, err := cfg.MarshalConfiguration()
	if err != nil {
		return err
	}

	now := time.Now()
	result, err := r.db.ExecContext(ctx, `
		UPDATE conditions
		SET configuration = $2, updated_at = $3
		WHERE id = $1
	`, cfg.ID, configJSON, now)
	if err != nil {
		return fmt.Errorf("failed to update condition: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("condition %s: %w", cfg.ID, repositories.ErrNotFound)
	}

	cfg.UpdatedAt = now
	return nil
}

// Delete removes a condition configuration
func (r *PostgresConditionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM conditions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete condition: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("condition %s: %w", id, repositories.ErrNotFound)
	}
	return nil
}

// List returns all condition configurations ordered by creation time
func (r *PostgresConditionRepository) List(ctx context.Context) ([]*entities.ConditionConfig, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, plugin_id, configuration, created_at, updated_at
		FROM conditions
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list conditions: %w", err)
	}
	defer rows.Close()

	var configs []*entities.ConditionConfig
	for rows.Next() {
		cfg, err := scanCondition(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating conditions: %w", err)
	}

	return configs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCondition(row rowScanner) (*entities.ConditionConfig, error) {
	cfg := &entities.ConditionConfig{}
	var configJSON string
	if err := row.Scan(&cfg.ID, &cfg.PluginID, &configJSON, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan condition: %w", err)
	}
	if err := cfg.UnmarshalConfiguration(configJSON); err != nil {
		return nil, err
	}
	return cfg, nil
}

// canonicalID returns the form Postgres renders a uuid column in
func canonicalID(id string) string {
	if u, err := uuid.Parse(id); err == nil {
		return u.String()
	}
	return id
}
