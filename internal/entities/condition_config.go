package entities

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConditionConfig is the stored configuration of a condition plugin instance
type ConditionConfig struct {
	ID            string                 // UUID
	PluginID      string                 // Condition plugin (e.g., "user_permission")
	Configuration map[string]interface{} // Opaque key/value bag owned by the plugin
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Validate checks if the configuration is valid
func (c *ConditionConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("condition ID is required")
	}
	if c.PluginID == "" {
		return fmt.Errorf("plugin ID is required")
	}
	return nil
}

// MarshalConfiguration serializes the configuration to JSON for storage
func (c *ConditionConfig) MarshalConfiguration() (string, error) {
	if c.Configuration == nil {
		return "{}", nil
	}
	data, err := json.Marshal(c.Configuration)
	if err != nil {
		return "", fmt.Errorf("failed to marshal configuration: %w", err)
	}
	return string(data), nil
}

// UnmarshalConfiguration deserializes the stored JSON configuration
func (c *ConditionConfig) UnmarshalConfiguration(data string) error {
	configuration := make(map[string]interface{})
	if err := json.Unmarshal([]byte(data), &configuration); err != nil {
		return fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	c.Configuration = configuration
	return nil
}
