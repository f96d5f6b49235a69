package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/asakaida/permcondition/internal/repositories"
)

// ImportResult counts what an import wrote
type ImportResult struct {
	Modules     int
	Permissions int
	Roles       int
	Users       int
}

// Importer writes a catalog into the repositories
type Importer struct {
	modules     repositories.ModuleRepository
	permissions repositories.PermissionRepository
	roles       repositories.RoleRepository
	users       repositories.UserRepository
	logger      *slog.Logger
}

// NewImporter creates a new Importer
func NewImporter(
	modules repositories.ModuleRepository,
	permissions repositories.PermissionRepository,
	roles repositories.RoleRepository,
	users repositories.UserRepository,
	logger *slog.Logger,
) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		modules:     modules,
		permissions: permissions,
		roles:       roles,
		users:       users,
		logger:      logger,
	}
}

// Import upserts modules, permissions, roles and user assignments.
// Records missing from the catalog are left in place.
func (i *Importer) Import(ctx context.Context, c *Catalog) (*ImportResult, error) {
	result := &ImportResult{}

	for _, module := range c.Modules() {
		if err := i.modules.Write(ctx, module); err != nil {
			return result, fmt.Errorf("failed to write module %s: %w", module.ID, err)
		}
		result.Modules++
	}

	perms, _ := c.GetPermissions(ctx)
	for _, perm := range perms {
		if err := i.permissions.Write(ctx, perm); err != nil {
			return result, fmt.Errorf("failed to write permission %q: %w", perm.ID, err)
		}
		result.Permissions++
	}

	for _, role := range c.Roles() {
		if err := i.roles.Write(ctx, role); err != nil {
			return result, fmt.Errorf("failed to write role %s: %w", role.ID, err)
		}
		result.Roles++
	}

	for _, userID := range c.Users() {
		if err := i.users.AssignRoles(ctx, userID, c.UserRoles(userID)); err != nil {
			return result, fmt.Errorf("failed to assign roles to %s: %w", userID, err)
		}
		result.Users++
	}

	i.logger.Info("catalog imported",
		"modules", result.Modules,
		"permissions", result.Permissions,
		"roles", result.Roles,
		"users", result.Users,
	)
	return result, nil
}
