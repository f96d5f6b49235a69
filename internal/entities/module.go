package entities

import "fmt"

// Module represents an extension that declares permissions
type Module struct {
	ID   string // Machine name (e.g., "node")
	Name string // Display name (e.g., "Node")
}

// Validate checks if the module is valid
func (m *Module) Validate() error {
	if m.ID == "" {
		return fmt.Errorf("module ID is required")
	}
	if m.Name == "" {
		return fmt.Errorf("module name is required")
	}
	return nil
}
