// Package cachecontext turns cache context tokens into the values that
// distinguish cached evaluation results.
package cachecontext

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/services/condition"
)

// ErrUnknownCacheContext is returned for a token no value can be resolved for.
var ErrUnknownCacheContext = errors.New("unknown cache context")

// Resolver resolves cache context tokens.
type Resolver struct{}

// NewResolver creates a Resolver.
func NewResolver() *Resolver {
	return &Resolver{}
}

// Keys returns one "token=value" pair per token, in the given order.
// A nil user resolves as the anonymous user; a nil request as an empty one.
func (r *Resolver) Keys(tokens []string, user *entities.User, req *entities.Request) ([]string, error) {
	if user == nil {
		user = entities.NewUser("", nil, nil)
	}
	if req == nil {
		req = &entities.Request{}
	}

	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		value, err := r.value(token, user, req)
		if err != nil {
			return nil, err
		}
		keys = append(keys, token+"="+value)
	}
	return keys, nil
}

func (r *Resolver) value(token string, user *entities.User, req *entities.Request) (string, error) {
	switch token {
	case condition.CacheContextUser:
		return user.ID, nil
	case condition.CacheContextUserPermissions:
		return user.PermissionsHash(), nil
	case condition.CacheContextUserRoles:
		return strings.Join(user.Roles, ","), nil
	case condition.CacheContextRoute:
		return req.Route, nil
	case condition.CacheContextURL:
		return req.URL, nil
	case condition.CacheContextRequestMethod:
		return req.Method, nil
	case condition.CacheContextRequestAttributes:
		if len(req.Attributes) == 0 {
			return "", nil
		}
		// Map keys are marshaled in sorted order.
		b, err := json.Marshal(req.Attributes)
		if err != nil {
			return "", fmt.Errorf("failed to encode request attributes: %w", err)
		}
		return string(b), nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownCacheContext, token)
}
