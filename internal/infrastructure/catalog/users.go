package catalog

import (
	"context"
	"errors"

	"github.com/asakaida/permcondition/internal/entities"
)

// ErrReadOnly is returned by write operations on a file catalog
var ErrReadOnly = errors.New("catalog is read-only")

// Get builds a user from the role assignments in users.yml.
// Roles not defined in roles.yml grant nothing.
func (c *Catalog) Get(ctx context.Context, id string) (*entities.User, error) {
	roleIDs := entities.BaseRoles(id, c.users[id])

	defined := make(map[string]*entities.Role, len(c.roles))
	for _, r := range c.roles {
		defined[r.ID] = r
	}

	roles := make([]*entities.Role, 0, len(roleIDs))
	for _, rid := range roleIDs {
		if r, ok := defined[rid]; ok {
			roles = append(roles, r)
		}
	}
	return entities.NewUser(id, c.users[id], roles), nil
}

// AssignRoles always fails; edit users.yml instead.
func (c *Catalog) AssignRoles(ctx context.Context, userID string, roleIDs []string) error {
	return ErrReadOnly
}
