package repositories

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
)

// PermissionRepository defines the interface for the permission catalog
type PermissionRepository interface {
	// GetPermissions returns every permission in catalog order
	GetPermissions(ctx context.Context) ([]*entities.Permission, error)

	// Write creates or updates a permission
	Write(ctx context.Context, perm *entities.Permission) error

	// Delete removes a permission and its role grants
	Delete(ctx context.Context, id string) error
}
