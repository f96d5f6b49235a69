package condition

import (
	"fmt"
	"sort"
	"sync"
)

// Definition describes a condition plugin.
type Definition struct {
	ID       string   // Plugin ID (e.g., "user_permission")
	Label    string   // Human readable label
	Contexts []string // Required contexts
	New      func() Condition
}

// Manager is the registry of condition plugins.
type Manager struct {
	mu          sync.RWMutex
	definitions map[string]Definition
}

// NewManager creates a manager with the given plugin definitions.
func NewManager(defs ...Definition) (*Manager, error) {
	m := &Manager{definitions: make(map[string]Definition)}
	for _, def := range defs {
		if err := m.Register(def); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Register adds a plugin definition.
func (m *Manager) Register(def Definition) error {
	if def.ID == "" {
		return fmt.Errorf("plugin ID is required")
	}
	if def.New == nil {
		return fmt.Errorf("plugin %s has no constructor", def.ID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.definitions[def.ID]; exists {
		return fmt.Errorf("plugin %s is already registered", def.ID)
	}
	m.definitions[def.ID] = def
	return nil
}

// Definition returns the definition registered under pluginID.
func (m *Manager) Definition(pluginID string) (Definition, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	def, ok := m.definitions[pluginID]
	if !ok {
		return Definition{}, fmt.Errorf("%w: %s", ErrUnknownPlugin, pluginID)
	}
	return def, nil
}

// Definitions returns all registered definitions sorted by ID.
func (m *Manager) Definitions() []Definition {
	m.mu.RLock()
	defer m.mu.RUnlock()

	defs := make([]Definition, 0, len(m.definitions))
	for _, def := range m.definitions {
		defs = append(defs, def)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].ID < defs[j].ID })
	return defs
}

// CreateInstance instantiates a plugin and applies configuration over its defaults.
func (m *Manager) CreateInstance(pluginID string, configuration map[string]interface{}) (Condition, error) {
	def, err := m.Definition(pluginID)
	if err != nil {
		return nil, err
	}

	cond := def.New()
	if err := cond.SetConfiguration(configuration); err != nil {
		return nil, fmt.Errorf("failed to configure %s: %w", pluginID, err)
	}
	return cond, nil
}
