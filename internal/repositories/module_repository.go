package repositories

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
)

// ModuleRepository defines the interface for module data access
type ModuleRepository interface {
	// GetName returns the display name of a module.
	// Unknown modules resolve to their ID.
	GetName(ctx context.Context, id string) (string, error)

	// Write creates or updates a module
	Write(ctx context.Context, module *entities.Module) error

	// List returns all modules ordered by ID
	List(ctx context.Context) ([]*entities.Module, error)
}
