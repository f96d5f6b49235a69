package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
)

// PostgresModuleRepository implements ModuleRepository using PostgreSQL
type PostgresModuleRepository struct {
	db *sql.DB
}

// NewPostgresModuleRepository creates a new PostgreSQL module repository
func NewPostgresModuleRepository(db *sql.DB) repositories.ModuleRepository {
	return &PostgresModuleRepository{db: db}
}

// GetName returns the display name of a module, or the ID when it is not registered
func (r *PostgresModuleRepository) GetName(ctx context.Context, id string) (string, error) {
	var name string
	err := r.db.QueryRowContext(ctx, `SELECT name FROM modules WHERE id = $1`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return id, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get module name: %w", err)
	}
	return name, nil
}

// Write creates or updates a module
func (r *PostgresModuleRepository) Write(ctx context.Context, module *entities.Module) error {
	if err := module.Validate(); err != nil {
		return fmt.Errorf("invalid module: %w", err)
	}

	query := `
		INSERT INTO modules (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id)
		DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	if _, err := r.db.ExecContext(ctx, query, module.ID, module.Name, now, now); err != nil {
		return fmt.Errorf("failed to write module: %w", err)
	}

	return nil
}

// List returns all modules ordered by ID
func (r *PostgresModuleRepository) List(ctx context.Context) ([]*entities.Module, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name FROM modules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list modules: %w", err)
	}
	defer rows.Close()

	var modules []*entities.Module
	for rows.Next() {
		m := &entities.Module{}
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("failed to scan module: %w", err)
		}
		modules = append(modules, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating modules: %w", err)
	}

	return modules, nil
}
