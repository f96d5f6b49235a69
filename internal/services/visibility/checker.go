// Package visibility decides whether a set of stored conditions allows a user
// to see something on a given request.
package visibility

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/cachecontext"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/asakaida/permcondition/pkg/cache"
	"github.com/google/uuid"
)

// RevisionProvider supplies the configuration revision cached results are scoped to.
type RevisionProvider interface {
	CurrentRevision(ctx context.Context) (string, error)
}

// Recorder receives the outcome of every check.
type Recorder interface {
	RecordEvaluation(allowed, cached bool, duration time.Duration)
}

// CheckerInterface defines the interface for visibility checks
type CheckerInterface interface {
	Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error)
}

// CheckRequest contains the parameters of a visibility check
type CheckRequest struct {
	ConditionIDs []string          // Stored conditions to combine
	Logic        string            // "and" (default) or "or"
	UserID       string            // Empty for the anonymous user
	Request      *entities.Request // Nil when there is no request context
}

// CheckResponse contains the result of a visibility check
type CheckResponse struct {
	Allowed       bool
	CacheContexts []string // Cache contexts the result varies by
	Cached        bool     // Whether the result came from the cache
}

// Checker evaluates stored conditions
type Checker struct {
	conditions repositories.ConditionRepository
	users      repositories.UserRepository
	manager    *condition.Manager
	resolver   *cachecontext.Resolver
	logger     *slog.Logger

	cache     cache.Cache      // Optional cache for check results
	revisions RevisionProvider // Required when cache is set
	cacheTTL  time.Duration

	recorder Recorder // Optional
}

// NewChecker creates a new Checker without caching
func NewChecker(
	conditions repositories.ConditionRepository,
	users repositories.UserRepository,
	manager *condition.Manager,
	logger *slog.Logger,
) *Checker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Checker{
		conditions: conditions,
		users:      users,
		manager:    manager,
		resolver:   cachecontext.NewResolver(),
		logger:     logger.With("component", "visibility_checker"),
	}
}

// NewCheckerWithCache creates a new Checker with caching enabled
func NewCheckerWithCache(
	conditions repositories.ConditionRepository,
	users repositories.UserRepository,
	manager *condition.Manager,
	logger *slog.Logger,
	c cache.Cache,
	revisions RevisionProvider,
	cacheTTL time.Duration,
) *Checker {
	checker := NewChecker(conditions, users, manager, logger)
	checker.cache = c
	checker.revisions = revisions
	checker.cacheTTL = cacheTTL
	return checker
}

// SetRecorder installs a recorder for check outcomes.
func (c *Checker) SetRecorder(r Recorder) {
	c.recorder = r
}

// Check loads the conditions, evaluates them for the user and request and
// combines the results.
func (c *Checker) Check(ctx context.Context, req *CheckRequest) (*CheckResponse, error) {
	start := time.Now()

	if req == nil || len(req.ConditionIDs) == 0 {
		return nil, fmt.Errorf("%w: at least one condition ID is required", services.ErrInvalidArgument)
	}
	logic, err := condition.ParseLogic(req.Logic)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", services.ErrInvalidArgument, err)
	}

	ids, err := canonicalIDs(req.ConditionIDs)
	if err != nil {
		return nil, err
	}

	conds, err := c.loadConditions(ctx, ids)
	if err != nil {
		return nil, err
	}

	ctxs := &condition.Contexts{Request: req.Request}
	var user *entities.User
	if requiresUser(conds) {
		user, err = c.users.Get(ctx, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to load user %q: %w", req.UserID, err)
		}
		ctxs.User = user
	}

	cacheContexts := condition.MergeCacheContexts(conds)
	cacheKey := c.cacheKey(ctx, ids, logic, req.Request, cacheContexts, user)

	if cacheKey != "" {
		if cached, found := c.cache.Get(ctx, cacheKey); found {
			if allowed, ok := cached.(bool); ok {
				c.record(allowed, true, start)
				return &CheckResponse{Allowed: allowed, CacheContexts: cacheContexts, Cached: true}, nil
			}
		}
	}

	allowed, err := condition.Resolve(conds, ctxs, logic)
	if err != nil {
		return nil, err
	}

	if cacheKey != "" {
		if err := c.cache.Set(ctx, cacheKey, allowed, c.cacheTTL); err != nil {
			c.logger.Warn("failed to cache check result", "error", err)
		}
	}

	c.record(allowed, false, start)
	return &CheckResponse{Allowed: allowed, CacheContexts: cacheContexts}, nil
}

func (c *Checker) loadConditions(ctx context.Context, ids []string) ([]condition.Condition, error) {
	cfgs, err := c.conditions.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load conditions: %w", err)
	}

	conds := make([]condition.Condition, 0, len(cfgs))
	for _, cfg := range cfgs {
		cond, err := c.manager.CreateInstance(cfg.PluginID, cfg.Configuration)
		if err != nil {
			return nil, fmt.Errorf("failed to instantiate condition %s: %w", cfg.ID, err)
		}
		conds = append(conds, cond)
	}
	return conds, nil
}

// cacheKey returns "" when the result must not be cached.
// The key tells a missing request context apart from an empty request.
func (c *Checker) cacheKey(ctx context.Context, ids []string, logic condition.Logic, request *entities.Request, cacheContexts []string, user *entities.User) string {
	if c.cache == nil || c.revisions == nil {
		return ""
	}

	revision, err := c.revisions.CurrentRevision(ctx)
	if err != nil {
		c.logger.Warn("skipping cache, revision unavailable", "error", err)
		return ""
	}

	keys, err := c.resolver.Keys(cacheContexts, user, request)
	if err != nil {
		c.logger.Warn("skipping cache, cache context unresolvable", "error", err)
		return ""
	}

	presence := "request=present"
	if request == nil {
		presence = "request=absent"
	}

	h := sha256.New()
	for _, part := range []string{
		strings.Join(ids, ","),
		string(logic),
		revision,
		presence,
		strings.Join(keys, "\n"),
	} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Checker) record(allowed, cached bool, start time.Time) {
	if c.recorder != nil {
		c.recorder.RecordEvaluation(allowed, cached, time.Since(start))
	}
}

// canonicalIDs validates condition IDs and returns them in lower-case form.
func canonicalIDs(ids []string) ([]string, error) {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		u, err := uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("%w: malformed condition ID %q", services.ErrInvalidArgument, id)
		}
		out = append(out, u.String())
	}
	return out, nil
}

func requiresUser(conds []condition.Condition) bool {
	for _, cond := range conds {
		for _, name := range cond.RequiredContexts() {
			if name == condition.ContextUser {
				return true
			}
		}
	}
	return false
}
