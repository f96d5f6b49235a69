package repositories

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
)

// UserRepository defines the interface for user role assignments
type UserRepository interface {
	// Get loads a user with the permissions of all its roles.
	// The empty ID loads the anonymous user.
	Get(ctx context.Context, id string) (*entities.User, error)

	// AssignRoles replaces the roles assigned to a user
	AssignRoles(ctx context.Context, userID string, roleIDs []string) error
}
