package condition

import (
	"context"
	"fmt"
)

// UserPermissionPluginID identifies the user permission condition.
const UserPermissionPluginID = "user_permission"

const keyPermission = "permission"

// UserPermission passes when the user holds the configured permission.
type UserPermission struct {
	Base
	permission string

	catalog PermissionCatalog
	modules ModuleResolver
}

// NewUserPermission creates an unconfigured user permission condition.
func NewUserPermission(catalog PermissionCatalog, modules ModuleResolver) *UserPermission {
	return &UserPermission{
		Base:    NewBase(UserPermissionPluginID, ContextUser),
		catalog: catalog,
		modules: modules,
	}
}

// UserPermissionDefinition registers the plugin with its collaborators.
func UserPermissionDefinition(catalog PermissionCatalog, modules ModuleResolver) Definition {
	return Definition{
		ID:       UserPermissionPluginID,
		Label:    "User Permission",
		Contexts: []string{ContextUser},
		New: func() Condition {
			return NewUserPermission(catalog, modules)
		},
	}
}

// Permission returns the configured permission ID.
func (c *UserPermission) Permission() string { return c.permission }

// Configure selects the permission to check. The ID is not validated.
func (c *UserPermission) Configure(permission string) {
	c.permission = permission
}

// DefaultConfiguration implements Condition.
func (c *UserPermission) DefaultConfiguration() map[string]interface{} {
	cfg := c.Base.DefaultConfiguration()
	cfg[keyPermission] = ""
	return cfg
}

// Configuration implements Condition.
func (c *UserPermission) Configuration() map[string]interface{} {
	cfg := c.Base.Configuration()
	cfg[keyPermission] = c.permission
	return cfg
}

// SetConfiguration implements Condition.
func (c *UserPermission) SetConfiguration(values map[string]interface{}) error {
	cfg := mergeConfiguration(c.DefaultConfiguration(), values)
	permission, err := stringValue(cfg, keyPermission)
	if err != nil {
		return err
	}
	if err := c.Base.SetConfiguration(cfg); err != nil {
		return err
	}
	c.permission = permission
	return nil
}

// BuildOptions lists every catalog permission grouped by the display name of
// its provider, in catalog order, with markup stripped from the titles.
func (c *UserPermission) BuildOptions(ctx context.Context) (OptionGroups, error) {
	permissions, err := c.catalog.GetPermissions(ctx)
	if err != nil {
		return nil, err
	}

	groups := OptionGroups{}
	index := make(map[string]int)
	for _, perm := range permissions {
		name, err := c.modules.GetName(ctx, perm.Provider)
		if err != nil {
			return nil, err
		}
		i, ok := index[name]
		if !ok {
			groups = append(groups, OptionGroup{Label: name})
			i = len(groups) - 1
			index[name] = i
		}
		groups[i].set(perm.ID, StripTags(perm.Title))
	}

	return groups, nil
}

// Summary implements Condition.
func (c *UserPermission) Summary() string {
	if c.IsNegated() {
		return fmt.Sprintf(`The user does not have the permission "%s"`, c.permission)
	}
	return fmt.Sprintf(`The user has the permission "%s"`, c.permission)
}

// EvaluateUser checks the configured permission against user.
// An unconfigured condition passes without consulting the user unless it is
// negated, in which case the empty permission is looked up like any other.
func (c *UserPermission) EvaluateUser(user UserContext) bool {
	if c.permission == "" && !c.IsNegated() {
		return true
	}
	return user.HasPermission(c.permission)
}

// Evaluate implements Condition.
func (c *UserPermission) Evaluate(ctxs *Contexts) (bool, error) {
	if c.permission == "" && !c.IsNegated() {
		return true, nil
	}
	user, err := ctxs.UserContext()
	if err != nil {
		return false, err
	}
	return c.EvaluateUser(user), nil
}

// CacheContexts implements Condition.
func (c *UserPermission) CacheContexts() []string {
	return PermissionCacheContexts(c.BaseCacheContexts())
}

// PermissionCacheContexts narrows the "user" cache context to
// "user.permissions"; all other tokens pass through in order.
func PermissionCacheContexts(base []string) []string {
	out := make([]string, 0, len(base))
	for _, token := range base {
		if token == CacheContextUser {
			token = CacheContextUserPermissions
		}
		out = append(out, token)
	}
	return out
}
