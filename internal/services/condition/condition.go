// Package condition implements visibility conditions and the shared behaviour
// every condition plugin composes: negation, required contexts, cache contexts
// and the combination of sibling conditions.
package condition

import (
	"context"
	"errors"
	"fmt"

	"github.com/asakaida/permcondition/internal/entities"
)

// Context names a condition can require.
const (
	ContextUser    = "user"
	ContextRequest = "request"
)

// Cache context tokens.
const (
	CacheContextUser            = "user"
	CacheContextUserPermissions = "user.permissions"
	CacheContextUserRoles       = "user.roles"
	CacheContextRoute           = "route"
	CacheContextURL             = "url"

	CacheContextRequestMethod     = "request.method"
	CacheContextRequestAttributes = "request.attributes"
)

const keyNegate = "negate"

var (
	// ErrMissingContext is returned when a condition is executed without a context it requires.
	ErrMissingContext = errors.New("missing required context")

	// ErrUnknownPlugin is returned when no condition plugin is registered under an ID.
	ErrUnknownPlugin = errors.New("unknown condition plugin")

	// ErrInvalidConfiguration is returned when a configuration value has the wrong type or is rejected by the plugin.
	ErrInvalidConfiguration = errors.New("invalid condition configuration")
)

// UserContext is the user a condition is evaluated for.
type UserContext interface {
	HasPermission(permission string) bool
}

// PermissionCatalog supplies every permission known to the host.
type PermissionCatalog interface {
	GetPermissions(ctx context.Context) ([]*entities.Permission, error)
}

// ModuleResolver maps a provider ID to its display name.
type ModuleResolver interface {
	GetName(ctx context.Context, provider string) (string, error)
}

// Condition is a boolean visibility rule.
type Condition interface {
	PluginID() string

	// Evaluate returns the raw result, before negation is applied.
	Evaluate(ctxs *Contexts) (bool, error)

	Summary() string
	CacheContexts() []string
	RequiredContexts() []string
	IsNegated() bool

	DefaultConfiguration() map[string]interface{}
	Configuration() map[string]interface{}

	// SetConfiguration merges values over the defaults and applies them.
	SetConfiguration(values map[string]interface{}) error
}

// Contexts carries the context values of a single evaluation.
type Contexts struct {
	User    UserContext
	Request *entities.Request
}

// Has reports whether the named context value is present.
func (c *Contexts) Has(name string) bool {
	if c == nil {
		return false
	}
	switch name {
	case ContextUser:
		return c.User != nil
	case ContextRequest:
		return c.Request != nil
	}
	return false
}

// UserContext returns the user context or ErrMissingContext.
func (c *Contexts) UserContext() (UserContext, error) {
	if !c.Has(ContextUser) {
		return nil, fmt.Errorf("%w: %s", ErrMissingContext, ContextUser)
	}
	return c.User, nil
}

// RequestContext returns the request context or ErrMissingContext.
func (c *Contexts) RequestContext() (*entities.Request, error) {
	if !c.Has(ContextRequest) {
		return nil, fmt.Errorf("%w: %s", ErrMissingContext, ContextRequest)
	}
	return c.Request, nil
}

// Base holds the state shared by all condition plugins.
// Plugins embed it and add their own configuration keys.
type Base struct {
	pluginID string
	contexts []string
	negate   bool
}

// NewBase creates the shared part of a plugin requiring the given contexts.
func NewBase(pluginID string, contexts ...string) Base {
	return Base{pluginID: pluginID, contexts: contexts}
}

// PluginID returns the plugin the condition is an instance of.
func (b *Base) PluginID() string { return b.pluginID }

// IsNegated reports whether the result is inverted.
func (b *Base) IsNegated() bool { return b.negate }

// SetNegated sets the negation flag.
func (b *Base) SetNegated(negate bool) { b.negate = negate }

// RequiredContexts returns the names of the contexts the plugin needs.
func (b *Base) RequiredContexts() []string {
	out := make([]string, len(b.contexts))
	copy(out, b.contexts)
	return out
}

// BaseCacheContexts returns the cache contexts implied by the required contexts.
func (b *Base) BaseCacheContexts() []string {
	var out []string
	for _, name := range b.contexts {
		switch name {
		case ContextUser:
			out = append(out, CacheContextUser)
		case ContextRequest:
			out = append(out, CacheContextRoute, CacheContextURL)
		}
	}
	return out
}

// DefaultConfiguration returns the keys owned by the base.
func (b *Base) DefaultConfiguration() map[string]interface{} {
	return map[string]interface{}{keyNegate: false}
}

// Configuration returns the current values of the keys owned by the base.
func (b *Base) Configuration() map[string]interface{} {
	return map[string]interface{}{keyNegate: b.negate}
}

// SetConfiguration applies the keys owned by the base.
func (b *Base) SetConfiguration(values map[string]interface{}) error {
	negate, err := boolValue(values, keyNegate)
	if err != nil {
		return err
	}
	b.negate = negate
	return nil
}

// Execute evaluates the condition and applies its negation.
func Execute(cond Condition, ctxs *Contexts) (bool, error) {
	for _, name := range cond.RequiredContexts() {
		if !ctxs.Has(name) {
			return false, fmt.Errorf("%w: %s requires %q", ErrMissingContext, cond.PluginID(), name)
		}
	}

	result, err := cond.Evaluate(ctxs)
	if err != nil {
		return false, err
	}

	return result != cond.IsNegated(), nil
}

// Logic combines the results of sibling conditions.
type Logic string

const (
	LogicAnd Logic = "and"
	LogicOr  Logic = "or"
)

// ParseLogic parses a logic name; the empty string means "and".
func ParseLogic(s string) (Logic, error) {
	switch Logic(s) {
	case "", LogicAnd:
		return LogicAnd, nil
	case LogicOr:
		return LogicOr, nil
	}
	return "", fmt.Errorf("unknown condition logic %q", s)
}

// Resolve executes sibling conditions and combines their results.
// A condition missing a context passes only if it is negated.
func Resolve(conds []Condition, ctxs *Contexts, logic Logic) (bool, error) {
	for _, cond := range conds {
		pass, err := Execute(cond, ctxs)
		if errors.Is(err, ErrMissingContext) {
			pass = cond.IsNegated()
		} else if err != nil {
			return false, fmt.Errorf("failed to execute %s condition: %w", cond.PluginID(), err)
		}

		if !pass && logic == LogicAnd {
			return false, nil
		}
		if pass && logic == LogicOr {
			return true, nil
		}
	}

	return logic == LogicAnd, nil
}

// MergeCacheContexts returns the ordered union of the conditions' cache contexts.
func MergeCacheContexts(conds []Condition) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, cond := range conds {
		for _, token := range cond.CacheContexts() {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

func mergeConfiguration(defaults, values map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(defaults)+len(values))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

func stringValue(values map[string]interface{}, key string) (string, error) {
	raw, ok := values[key]
	if !ok || raw == nil {
		return "", nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: %s must be a string, got %T", ErrInvalidConfiguration, key, raw)
	}
	return s, nil
}

func boolValue(values map[string]interface{}, key string) (bool, error) {
	raw, ok := values[key]
	if !ok || raw == nil {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("%w: %s must be a boolean, got %T", ErrInvalidConfiguration, key, raw)
	}
	return b, nil
}
