package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/lib/pq"
)

// PostgresRoleRepository implements RoleRepository using PostgreSQL
type PostgresRoleRepository struct {
	db *sql.DB
}

// NewPostgresRoleRepository creates a new PostgreSQL role repository
func NewPostgresRoleRepository(db *sql.DB) repositories.RoleRepository {
	return &PostgresRoleRepository{db: db}
}

// Write creates or updates a role and replaces its permission grants
func (r *PostgresRoleRepository) Write(ctx context.Context, role *entities.Role) error {
	if err := role.Validate(); err != nil {
		return fmt.Errorf("invalid role: %w", err)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO roles (id, label, is_admin, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id)
		DO UPDATE SET label = EXCLUDED.label, is_admin = EXCLUDED.is_admin, updated_at = EXCLUDED.updated_at
	`, role.ID, role.Label, role.Admin, now, now)
	if err != nil {
		return fmt.Errorf("failed to write role: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, role.ID); err != nil {
		return fmt.Errorf("failed to clear role permissions: %w", err)
	}

	if len(role.Permissions) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO role_permissions (role_id, permission)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, role.ID, pq.Array(role.Permissions))
		if err != nil {
			return fmt.Errorf("failed to grant role permissions: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// Get retrieves a role by ID
func (r *PostgresRoleRepository) Get(ctx context.Context, id string) (*entities.Role, error) {
	roles, err := r.GetMany(ctx, []string{id})
	if err != nil {
		return nil, err
	}
	if len(roles) == 0 {
		return nil, fmt.Errorf("role %s: %w", id, repositories.ErrNotFound)
	}
	return roles[0], nil
}

// GetMany retrieves the given roles with their permissions, ordered by ID
func (r *PostgresRoleRepository) GetMany(ctx context.Context, ids []string) ([]*entities.Role, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT r.id, r.label, r.is_admin,
		       COALESCE(array_agg(rp.permission ORDER BY rp.permission) FILTER (WHERE rp.permission IS NOT NULL), '{}')
		FROM roles r
		LEFT JOIN role_permissions rp ON rp.role_id = r.id
		WHERE r.id = ANY($1)
		GROUP BY r.id, r.label, r.is_admin
		ORDER BY r.id
	`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to query roles: %w", err)
	}
	defer rows.Close()

	var roles []*entities.Role
	for rows.Next() {
		role := &entities.Role{}
		if err := rows.Scan(&role.ID, &role.Label, &role.Admin, pq.Array(&role.Permissions)); err != nil {
			return nil, fmt.Errorf("failed to scan role: %w", err)
		}
		roles = append(roles, role)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating roles: %w", err)
	}

	return roles, nil
}

// Delete removes a role; grants and assignments cascade
func (r *PostgresRoleRepository) Delete(ctx context.Context, id string) error {
	if id == entities.RoleAnonymous || id == entities.RoleAuthenticated {
		return fmt.Errorf("built-in role %s cannot be deleted", id)
	}

	result, err := r.db.ExecContext(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete role: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("role %s: %w", id, repositories.ErrNotFound)
	}

	return nil
}
