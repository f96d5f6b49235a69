package entities

import "fmt"

// Permission represents an entry of the permission catalog
// Example: "administer blocks" declared by the "block" module
type Permission struct {
	ID             string // Permission identifier (e.g., "access content")
	Title          string // Human readable title, may contain markup
	Description    string // Optional longer description, may contain markup
	Provider       string // Declaring module ID (e.g., "node")
	RestrictAccess bool   // Whether the permission should only be granted to trusted roles
}

// Validate checks if the permission is valid
func (p *Permission) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("permission ID is required")
	}
	if p.Title == "" {
		return fmt.Errorf("permission title is required")
	}
	if p.Provider == "" {
		return fmt.Errorf("permission provider is required")
	}
	return nil
}
