package repositories

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
)

// RoleRepository defines the interface for role data access
type RoleRepository interface {
	// Write creates or updates a role together with its permission grants
	Write(ctx context.Context, role *entities.Role) error

	// Get retrieves a role by ID
	Get(ctx context.Context, id string) (*entities.Role, error)

	// GetMany retrieves the given roles, skipping IDs that do not exist
	GetMany(ctx context.Context, ids []string) ([]*entities.Role, error)

	// Delete removes a role, its grants and its user assignments
	Delete(ctx context.Context, id string) error
}
