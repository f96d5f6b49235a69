package repositories

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
)

// ConditionRepository defines the interface for condition configuration storage
type ConditionRepository interface {
	// Create stores a new condition configuration
	Create(ctx context.Context, cfg *entities.ConditionConfig) error

	// Get retrieves a condition configuration by ID
	Get(ctx context.Context, id string) (*entities.ConditionConfig, error)

	// GetMany retrieves configurations in the order of ids; any missing ID is ErrNotFound
	GetMany(ctx context.Context, ids []string) ([]*entities.ConditionConfig, error)

	// Update replaces the configuration of an existing condition
	Update(ctx context.Context, cfg *entities.ConditionConfig) error

	// Delete removes a condition configuration
	Delete(ctx context.Context, id string) error

	// List returns all condition configurations ordered by creation time
	List(ctx context.Context) ([]*entities.ConditionConfig, error)
}
