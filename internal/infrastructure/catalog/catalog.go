// Package catalog loads the permission catalog from YAML files.
//
// A catalog directory holds one pair of files per module:
//
//	node.info.yml         name: Node
//	node.permissions.yml  access content: {title: View published content}
//
// and optionally roles.yml and users.yml with role definitions and user
// role assignments. Permissions keep the order of their file.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/goccy/go-yaml"
)

const (
	infoSuffix        = ".info.yml"
	permissionsSuffix = ".permissions.yml"
	rolesFile         = "roles.yml"
	usersFile         = "users.yml"
)

// Catalog is an in-memory permission catalog
type Catalog struct {
	modules     []*entities.Module
	names       map[string]string
	permissions []*entities.Permission
	roles       []*entities.Role
	users       map[string][]string
}

type infoFile struct {
	Name string `yaml:"name"`
}

type permissionDef struct {
	Title          string `yaml:"title"`
	Description    string `yaml:"description"`
	RestrictAccess bool   `yaml:"restrict access"`
}

type roleDef struct {
	Label       string   `yaml:"label"`
	Admin       bool     `yaml:"admin"`
	Permissions []string `yaml:"permissions"`
}

// LoadDir loads a catalog from a directory
func LoadDir(dir string) (*Catalog, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog path %s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Load loads a catalog from the root of fsys
func Load(fsys fs.FS) (*Catalog, error) {
	c := &Catalog{
		names: make(map[string]string),
		users: make(map[string][]string),
	}

	infos, err := fs.Glob(fsys, "*"+infoSuffix)
	if err != nil {
		return nil, fmt.Errorf("failed to list module files: %w", err)
	}
	for _, file := range infos {
		if err := c.loadModule(fsys, strings.TrimSuffix(file, infoSuffix)); err != nil {
			return nil, err
		}
	}

	// Catalog order: by module display name, then by position in the file
	sort.SliceStable(c.modules, func(i, j int) bool {
		if c.modules[i].Name != c.modules[j].Name {
			return c.modules[i].Name < c.modules[j].Name
		}
		return c.modules[i].ID < c.modules[j].ID
	})
	if err := c.loadPermissions(fsys); err != nil {
		return nil, err
	}
	if err := c.loadRoles(fsys); err != nil {
		return nil, err
	}
	if err := c.loadUsers(fsys); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Catalog) loadModule(fsys fs.FS, id string) error {
	var info infoFile
	if err := readYAML(fsys, id+infoSuffix, &info); err != nil {
		return err
	}

	module := &entities.Module{ID: id, Name: info.Name}
	if err := module.Validate(); err != nil {
		return fmt.Errorf("invalid module %s: %w", id, err)
	}

	c.modules = append(c.modules, module)
	c.names[id] = info.Name
	return nil
}

func (c *Catalog) loadPermissions(fsys fs.FS) error {
	seen := make(map[string]string)
	for _, module := range c.modules {
		file := module.ID + permissionsSuffix
		var items yaml.MapSlice
		if err := readYAML(fsys, file, &items); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return err
		}

		for _, item := range items {
			id, ok := item.Key.(string)
			if !ok {
				return fmt.Errorf("%s: permission key %v is not a string", file, item.Key)
			}
			if provider, dup := seen[id]; dup {
				return fmt.Errorf("%s: permission %q is already declared by %s", file, id, provider)
			}

			def, err := decodePermission(item.Value)
			if err != nil {
				return fmt.Errorf("%s: permission %q: %w", file, id, err)
			}

			perm := &entities.Permission{
				ID:             id,
				Title:          def.Title,
				Description:    def.Description,
				Provider:       module.ID,
				RestrictAccess: def.RestrictAccess,
			}
			if err := perm.Validate(); err != nil {
				return fmt.Errorf("%s: %w", file, err)
			}

			seen[id] = module.ID
			c.permissions = append(c.permissions, perm)
		}
	}
	return nil
}

func (c *Catalog) loadRoles(fsys fs.FS) error {
	var defs map[string]roleDef
	if err := readYAML(fsys, rolesFile, &defs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for id, def := range defs {
		role := &entities.Role{ID: id, Label: def.Label, Admin: def.Admin, Permissions: def.Permissions}
		if err := role.Validate(); err != nil {
			return fmt.Errorf("%s: %w", rolesFile, err)
		}
		c.roles = append(c.roles, role)
	}
	sort.Slice(c.roles, func(i, j int) bool { return c.roles[i].ID < c.roles[j].ID })
	return nil
}

func (c *Catalog) loadUsers(fsys fs.FS) error {
	var assignments map[string][]string
	if err := readYAML(fsys, usersFile, &assignments); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	for userID, roles := range assignments {
		if userID == "" {
			return fmt.Errorf("%s: roles cannot be assigned to the anonymous user", usersFile)
		}
		c.users[userID] = roles
	}
	return nil
}

// decodePermission re-encodes a generic YAML value into a permission definition.
// A bare string is taken as the title.
func decodePermission(value interface{}) (*permissionDef, error) {
	if title, ok := value.(string); ok {
		return &permissionDef{Title: title}, nil
	}

	data, err := yaml.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to encode definition: %w", err)
	}
	var def permissionDef
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to decode definition: %w", err)
	}
	return &def, nil
}

func readYAML(fsys fs.FS, name string, out interface{}) error {
	data, err := fs.ReadFile(fsys, path.Clean(name))
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// GetPermissions returns every permission in catalog order
func (c *Catalog) GetPermissions(ctx context.Context) ([]*entities.Permission, error) {
	out := make([]*entities.Permission, len(c.permissions))
	copy(out, c.permissions)
	return out, nil
}

// GetName returns the display name of a module; unknown modules resolve to their ID
func (c *Catalog) GetName(ctx context.Context, provider string) (string, error) {
	if name, ok := c.names[provider]; ok {
		return name, nil
	}
	return provider, nil
}

// Modules returns the modules in catalog order
func (c *Catalog) Modules() []*entities.Module {
	out := make([]*entities.Module, len(c.modules))
	copy(out, c.modules)
	return out
}

// Roles returns the role definitions sorted by ID
func (c *Catalog) Roles() []*entities.Role {
	out := make([]*entities.Role, len(c.roles))
	copy(out, c.roles)
	return out
}

// Users returns the user IDs with role assignments, sorted
func (c *Catalog) Users() []string {
	ids := make([]string, 0, len(c.users))
	for id := range c.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// UserRoles returns the roles assigned to a user
func (c *Catalog) UserRoles(userID string) []string {
	return c.users[userID]
}
