package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/google/uuid"
)

// ErrInvalidArgument is returned for requests that can never succeed as sent
var ErrInvalidArgument = errors.New("invalid argument")

// OptionsProvider is implemented by plugins that offer a selectable option list
type OptionsProvider interface {
	BuildOptions(ctx context.Context) (condition.OptionGroups, error)
}

// ConditionServiceInterface defines the interface for condition management operations
type ConditionServiceInterface interface {
	Plugins() []condition.Definition
	Options(ctx context.Context, pluginID string) (condition.OptionGroups, error)
	Create(ctx context.Context, pluginID string, configuration map[string]interface{}) (*ConditionView, error)
	Configure(ctx context.Context, id string, values map[string]interface{}) (*ConditionView, error)
	Get(ctx context.Context, id string) (*ConditionView, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*ConditionView, error)
}

// ConditionView is a stored condition together with what its plugin reports about it
type ConditionView struct {
	Config           *entities.ConditionConfig
	Summary          string
	CacheContexts    []string
	RequiredContexts []string
	Negated          bool
}

// ConditionService handles condition management operations
type ConditionService struct {
	repo    repositories.ConditionRepository
	manager *condition.Manager
	now     func() time.Time
}

// NewConditionService creates a new ConditionService
func NewConditionService(repo repositories.ConditionRepository, manager *condition.Manager) *ConditionService {
	return &ConditionService{
		repo:    repo,
		manager: manager,
		now:     time.Now,
	}
}

// Plugins returns the registered condition plugins
func (s *ConditionService) Plugins() []condition.Definition {
	return s.manager.Definitions()
}

// Options returns the option list of a plugin; the empty ID selects user_permission
func (s *ConditionService) Options(ctx context.Context, pluginID string) (condition.OptionGroups, error) {
	if pluginID == "" {
		pluginID = condition.UserPermissionPluginID
	}

	cond, err := s.manager.CreateInstance(pluginID, nil)
	if err != nil {
		return nil, invalidArgument(err)
	}

	provider, ok := cond.(OptionsProvider)
	if !ok {
		return nil, fmt.Errorf("%w: plugin %s has no options", ErrInvalidArgument, pluginID)
	}

	groups, err := provider.BuildOptions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build options: %w", err)
	}
	return groups, nil
}

// Create stores a new condition with configuration merged over the plugin defaults
func (s *ConditionService) Create(ctx context.Context, pluginID string, configuration map[string]interface{}) (*ConditionView, error) {
	if pluginID == "" {
		return nil, fmt.Errorf("%w: plugin ID is required", ErrInvalidArgument)
	}

	cond, err := s.manager.CreateInstance(pluginID, configuration)
	if err != nil {
		return nil, invalidArgument(err)
	}

	now := s.now().UTC()
	cfg := &entities.ConditionConfig{
		ID:            uuid.NewString(),
		PluginID:      pluginID,
		Configuration: cond.Configuration(),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.repo.Create(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to create condition: %w", err)
	}

	return newConditionView(cfg, cond), nil
}

// Configure applies values over the stored configuration.
// Keys missing from values keep their stored value.
func (s *ConditionService) Configure(ctx context.Context, id string, values map[string]interface{}) (*ConditionView, error) {
	cfg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := make(map[string]interface{}, len(cfg.Configuration)+len(values))
	for k, v := range cfg.Configuration {
		merged[k] = v
	}
	for k, v := range values {
		merged[k] = v
	}

	cond, err := s.manager.CreateInstance(cfg.PluginID, merged)
	if err != nil {
		return nil, invalidArgument(err)
	}

	cfg.Configuration = cond.Configuration()
	cfg.UpdatedAt = s.now().UTC()
	if err := s.repo.Update(ctx, cfg); err != nil {
		return nil, fmt.Errorf("failed to update condition: %w", err)
	}

	return newConditionView(cfg, cond), nil
}

// Get retrieves a condition and describes it
func (s *ConditionService) Get(ctx context.Context, id string) (*ConditionView, error) {
	cfg, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.describe(cfg)
}

// Delete removes a condition
func (s *ConditionService) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return fmt.Errorf("failed to delete condition: %w", err)
	}
	return nil
}

// List describes every stored condition
func (s *ConditionService) List(ctx context.Context) ([]*ConditionView, error) {
	cfgs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list conditions: %w", err)
	}

	views := make([]*ConditionView, 0, len(cfgs))
	for _, cfg := range cfgs {
		view, err := s.describe(cfg)
		if err != nil {
			return nil, err
		}
		views = append(views, view)
	}
	return views, nil
}

func (s *ConditionService) load(ctx context.Context, id string) (*entities.ConditionConfig, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	cfg, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get condition %s: %w", id, err)
	}
	return cfg, nil
}

func (s *ConditionService) describe(cfg *entities.ConditionConfig) (*ConditionView, error) {
	cond, err := s.manager.CreateInstance(cfg.PluginID, cfg.Configuration)
	if err != nil {
		return nil, fmt.Errorf("failed to instantiate condition %s: %w", cfg.ID, err)
	}
	return newConditionView(cfg, cond), nil
}

func newConditionView(cfg *entities.ConditionConfig, cond condition.Condition) *ConditionView {
	return &ConditionView{
		Config:           cfg,
		Summary:          cond.Summary(),
		CacheContexts:    cond.CacheContexts(),
		RequiredContexts: cond.RequiredContexts(),
		Negated:          cond.IsNegated(),
	}
}

func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: condition ID is required", ErrInvalidArgument)
	}
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: malformed condition ID %q", ErrInvalidArgument, id)
	}
	return nil
}

// invalidArgument marks plugin lookup and configuration errors as caller errors.
func invalidArgument(err error) error {
	if errors.Is(err, condition.ErrUnknownPlugin) || errors.Is(err, condition.ErrInvalidConfiguration) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	return err
}
