package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/lib/pq"
)

// PostgresUserRepository implements UserRepository using PostgreSQL
type PostgresUserRepository struct {
	db    *sql.DB
	roles repositories.RoleRepository
}

// NewPostgresUserRepository creates a new PostgreSQL user repository
func NewPostgresUserRepository(db *sql.DB) repositories.UserRepository {
	return &PostgresUserRepository{
		db:    db,
		roles: NewPostgresRoleRepository(db),
	}
}

// Get loads a user and the permissions of its roles
func (r *PostgresUserRepository) Get(ctx context.Context, id string) (*entities.User, error) {
	var assigned []string
	if id != "" {
		rows, err := r.db.QueryContext(ctx, `SELECT role_id FROM user_roles WHERE user_id = $1 ORDER BY role_id`, id)
		if err != nil {
			return nil, fmt.Errorf("failed to query user roles: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var roleID string
			if err := rows.Scan(&roleID); err != nil {
				return nil, fmt.Errorf("failed to scan user role: %w", err)
			}
			assigned = append(assigned, roleID)
		}
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error iterating user roles: %w", err)
		}
	}

	roleIDs := entities.BaseRoles(id, assigned)
	roles, err := r.roles.GetMany(ctx, roleIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	return entities.NewUser(id, assigned, roles), nil
}

// AssignRoles replaces the roles assigned to a user
func (r *PostgresUserRepository) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	if userID == "" {
		return fmt.Errorf("user ID is required")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("failed to clear user roles: %w", err)
	}

	if len(roleIDs) > 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, unnest($2::text[])
			ON CONFLICT DO NOTHING
		`, userID, pq.Array(roleIDs))
		if err != nil {
			return fmt.Errorf("failed to assign user roles: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}
