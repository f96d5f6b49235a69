package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// User is the account an evaluation runs for.
// It satisfies the user context consumed by conditions.
type User struct {
	ID          string // Empty for the anonymous user
	Roles       []string
	Admin       bool
	Permissions map[string]struct{}
}

// NewUser builds a user from its directly assigned roles and the role definitions
// those roles resolve to. Built-in roles are added automatically.
func NewUser(id string, assigned []string, roles []*Role) *User {
	u := &User{
		ID:          id,
		Roles:       BaseRoles(id, assigned),
		Permissions: make(map[string]struct{}),
	}
	for _, r := range roles {
		if r == nil {
			continue
		}
		if r.Admin {
			u.Admin = true
		}
		for _, p := range r.Permissions {
			u.Permissions[p] = struct{}{}
		}
	}
	return u
}

// BaseRoles returns the sorted role IDs a user holds, including the built-in one.
func BaseRoles(userID string, assigned []string) []string {
	seen := make(map[string]struct{}, len(assigned)+1)
	if userID == "" {
		seen[RoleAnonymous] = struct{}{}
	} else {
		seen[RoleAuthenticated] = struct{}{}
		for _, r := range assigned {
			if r == "" || r == RoleAnonymous {
				continue
			}
			seen[r] = struct{}{}
		}
	}
	roles := make([]string, 0, len(seen))
	for r := range seen {
		roles = append(roles, r)
	}
	sort.Strings(roles)
	return roles
}

// IsAnonymous reports whether the user is not logged in
func (u *User) IsAnonymous() bool {
	return u.ID == ""
}

// HasPermission reports whether the user holds the permission.
// Admin users hold every permission, including the empty one.
func (u *User) HasPermission(permission string) bool {
	if u.Admin {
		return true
	}
	_, ok := u.Permissions[permission]
	return ok
}

// HasRole checks whether the user has a specific role
func (u *User) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// SortedPermissions returns the granted permissions in lexical order
func (u *User) SortedPermissions() []string {
	perms := make([]string, 0, len(u.Permissions))
	for p := range u.Permissions {
		perms = append(perms, p)
	}
	sort.Strings(perms)
	return perms
}

// PermissionsHash identifies the user's permission set.
// Users with equal permission sets share the same hash.
func (u *User) PermissionsHash() string {
	var data string
	if u.Admin {
		data = "is-admin"
	} else {
		data = strings.Join(u.SortedPermissions(), "\n")
	}
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
