package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
)

// PostgresPermissionRepository implements PermissionRepository using PostgreSQL
type PostgresPermissionRepository struct {
	db *sql.DB
}

// NewPostgresPermissionRepository creates a new PostgreSQL permission repository
func NewPostgresPermissionRepository(db *sql.DB) repositories.PermissionRepository {
	return &PostgresPermissionRepository{db: db}
}

// GetPermissions returns every permission, grouped by provider display name
// and in declaration order within a provider
func (r *PostgresPermissionRepository) GetPermissions(ctx context.Context) ([]*entities.Permission, error) {
	query := `
		SELECT p.id, p.title, p.description, p.provider, p.restrict_access
		FROM permissions p
		LEFT JOIN modules m ON m.id = p.provider
		ORDER BY COALESCE(m.name, p.provider), p.provider, p.position
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query permissions: %w", err)
	}
	defer rows.Close()

	var permissions []*entities.Permission
	for rows.Next() {
		perm := &entities.Permission{}
		if err := rows.Scan(&perm.ID, &perm.Title, &perm.Description, &perm.Provider, &perm.RestrictAccess); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		permissions = append(permissions, perm)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating permissions: %w", err)
	}

	return permissions, nil
}

// Write creates or updates a permission; the declaration position is kept on update
func (r *PostgresPermissionRepository) Write(ctx context.Context, perm *entities.Permission) error {
	if err := perm.Validate(); err != nil {
		return fmt.Errorf("invalid permission: %w", err)
	}

	query := `
		INSERT INTO permissions (id, title, description, provider, restrict_access, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id)
		DO UPDATE SET title = EXCLUDED.title,
		              description = EXCLUDED.description,
		              provider = EXCLUDED.provider,
		              restrict_access = EXCLUDED.restrict_access,
		              updated_at = EXCLUDED.updated_at
	`
	now := time.Now()
	_, err := r.db.ExecContext(ctx, query,
		perm.ID, perm.Title, perm.Description, perm.Provider, perm.RestrictAccess, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to write permission: %w", err)
	}

	return nil
}

// Delete removes a permission and its role grants
func (r *PostgresPermissionRepository) Delete(ctx context.Context, id string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE permission = $1`, id); err != nil {
		return fmt.Errorf("failed to delete permission grants: %w", err)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete permission: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("permission %s: %w", id, repositories.ErrNotFound)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
