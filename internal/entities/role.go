package entities

import "fmt"

// Built-in role IDs
const (
	RoleAnonymous     = "anonymous"
	RoleAuthenticated = "authenticated"
)

// Role represents a named set of granted permissions
type Role struct {
	ID          string
	Label       string
	Admin       bool     // Admin roles implicitly hold every permission
	Permissions []string // Granted permission IDs
}

// Validate checks if the role is valid
func (r *Role) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("role ID is required")
	}
	if r.Label == "" {
		return fmt.Errorf("role label is required")
	}
	for _, p := range r.Permissions {
		if p == "" {
			return fmt.Errorf("role %s has an empty permission", r.ID)
		}
	}
	return nil
}
