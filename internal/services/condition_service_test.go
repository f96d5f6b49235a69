package services

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Mock ConditionRepository
type mockConditionRepository struct {
	conditions map[string]*entities.ConditionConfig
	err        error
}

func newMockConditionRepository() *mockConditionRepository {
	return &mockConditionRepository{conditions: make(map[string]*entities.ConditionConfig)}
}

func (m *mockConditionRepository) Create(ctx context.Context, cfg *entities.ConditionConfig) error {
	if m.err != nil {
		return m.err
	}
	m.conditions[cfg.ID] = cfg
	return nil
}

func (m *mockConditionRepository) Get(ctx context.Context, id string) (*entities.ConditionConfig, error) {
	cfg, ok := m.conditions[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return cfg, nil
}

func (m *mockConditionRepository) GetMany(ctx context.Context, ids []string) ([]*entities.ConditionConfig, error) {
	out := make([]*entities.ConditionConfig, 0, len(ids))
	for _, id := range ids {
		cfg, err := m.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, cfg)
	}
	return out, nil
}

func (m *mockConditionRepository) Update(ctx context.Context, cfg *entities.ConditionConfig) error {
	if _, ok := m.conditions[cfg.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.conditions[cfg.ID] = cfg
	return nil
}

func (m *mockConditionRepository) Delete(ctx context.Context, id string) error {
	if _, ok := m.conditions[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.conditions, id)
	return nil
}

func (m *mockConditionRepository) List(ctx context.Context) ([]*entities.ConditionConfig, error) {
	out := make([]*entities.ConditionConfig, 0, len(m.conditions))
	for _, cfg := range m.conditions {
		out = append(out, cfg)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Mock catalog serving both collaborators of user_permission
type mockCatalog struct {
	permissions []*entities.Permission
	names       map[string]string
	err         error
}

func (m *mockCatalog) GetPermissions(ctx context.Context) ([]*entities.Permission, error) {
	return m.permissions, m.err
}

func (m *mockCatalog) GetName(ctx context.Context, provider string) (string, error) {
	if name, ok := m.names[provider]; ok {
		return name, nil
	}
	return provider, nil
}

func newTestConditionService(t *testing.T) (*ConditionService, *mockConditionRepository, *mockCatalog) {
	t.Helper()

	catalog := &mockCatalog{
		permissions: []*entities.Permission{
			{ID: "access content", Title: "View <em>published</em> content", Provider: "node"},
			{ID: "administer blocks", Title: "Administer blocks", Provider: "block"},
		},
		names: map[string]string{"node": "Node", "block": "Block"},
	}
	engine, err := condition.NewCELEngine()
	require.NoError(t, err)

	manager, err := condition.NewManager(
		condition.UserPermissionDefinition(catalog, catalog),
		condition.RequestExpressionDefinition(engine),
	)
	require.NoError(t, err)

	repo := newMockConditionRepository()
	service := NewConditionService(repo, manager)
	service.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return service, repo, catalog
}

func TestConditionService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: デフォルト設定とマージされる", func(t *testing.T) {
		service, repo, _ := newTestConditionService(t)

		view, err := service.Create(ctx, condition.UserPermissionPluginID, map[string]interface{}{"permission": "access content"})
		require.NoError(t, err)

		assert.NotEmpty(t, view.Config.ID)
		assert.Equal(t, map[string]interface{}{"permission": "access content", "negate": false}, view.Config.Configuration)
		assert.Equal(t, `The user has the permission "access content"`, view.Summary)
		assert.Equal(t, []string{"user.permissions"}, view.CacheContexts)
		assert.Equal(t, []string{"user"}, view.RequiredContexts)
		assert.Contains(t, repo.conditions, view.Config.ID)
	})

	t.Run("異常系: plugin ID なし", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		_, err := service.Create(ctx, "", nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("異常系: 未知のプラグイン", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		_, err := service.Create(ctx, "current_theme", nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.ErrorIs(t, err, condition.ErrUnknownPlugin)
	})

	t.Run("異常系: 不正な設定値", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		_, err := service.Create(ctx, condition.UserPermissionPluginID, map[string]interface{}{"negate": "yes"})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("異常系: 不正なCEL式", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		_, err := service.Create(ctx, condition.RequestExpressionPluginID, map[string]interface{}{"expression": "request.route =="})
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("異常系: リポジトリエラー", func(t *testing.T) {
		service, repo, _ := newTestConditionService(t)
		repo.err = errors.New("connection refused")
		_, err := service.Create(ctx, condition.UserPermissionPluginID, nil)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrInvalidArgument)
	})
}

func TestConditionService_Configure(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestConditionService(t)

	created, err := service.Create(ctx, condition.UserPermissionPluginID, map[string]interface{}{"permission": "access content"})
	require.NoError(t, err)

	t.Run("正常系: 指定キーのみ更新", func(t *testing.T) {
		view, err := service.Configure(ctx, created.Config.ID, map[string]interface{}{"negate": true})
		require.NoError(t, err)

		assert.Equal(t, "access content", view.Config.Configuration["permission"])
		assert.True(t, view.Negated)
		assert.Equal(t, `The user does not have the permission "access content"`, view.Summary)
	})

	t.Run("異常系: 不正なID", func(t *testing.T) {
		_, err := service.Configure(ctx, "not-a-uuid", nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("異常系: 存在しないID", func(t *testing.T) {
		_, err := service.Configure(ctx, "6f1c2a8e-4b1d-4c3a-9d0e-2f4a5b6c7d8e", nil)
		assert.ErrorIs(t, err, repositories.ErrNotFound)
	})
}

func TestConditionService_GetDeleteList(t *testing.T) {
	ctx := context.Background()
	service, _, _ := newTestConditionService(t)

	a, err := service.Create(ctx, condition.UserPermissionPluginID, nil)
	require.NoError(t, err)
	b, err := service.Create(ctx, condition.RequestExpressionPluginID, map[string]interface{}{"expression": `request.route == "user.login"`})
	require.NoError(t, err)

	got, err := service.Get(ctx, b.Config.ID)
	require.NoError(t, err)
	assert.Equal(t, `The request matches "request.route == "user.login""`, got.Summary)
	assert.Equal(t, []string{"route", "url", "request.method", "request.attributes"}, got.CacheContexts)

	views, err := service.List(ctx)
	require.NoError(t, err)
	assert.Len(t, views, 2)

	require.NoError(t, service.Delete(ctx, a.Config.ID))
	_, err = service.Get(ctx, a.Config.ID)
	assert.ErrorIs(t, err, repositories.ErrNotFound)

	assert.ErrorIs(t, service.Delete(ctx, ""), ErrInvalidArgument)
	assert.ErrorIs(t, service.Delete(ctx, a.Config.ID), repositories.ErrNotFound)
}

func TestConditionService_Options(t *testing.T) {
	ctx := context.Background()

	t.Run("正常系: デフォルトはuser_permission", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		groups, err := service.Options(ctx, "")
		require.NoError(t, err)

		require.Len(t, groups, 2)
		assert.Equal(t, 2, groups.Len())
		assert.Equal(t, "Node", groups[0].Label)
		assert.Equal(t, map[string]string{"access content": "View published content"}, groups[0].Map())
		assert.Equal(t, "Block", groups[1].Label)
	})

	t.Run("異常系: オプションのないプラグイン", func(t *testing.T) {
		service, _, _ := newTestConditionService(t)
		_, err := service.Options(ctx, condition.RequestExpressionPluginID)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})

	t.Run("異常系: カタログエラーはそのまま伝播", func(t *testing.T) {
		service, _, catalog := newTestConditionService(t)
		catalogErr := errors.New("catalog unavailable")
		catalog.err = catalogErr

		_, err := service.Options(ctx, "")
		assert.ErrorIs(t, err, catalogErr)
	})
}

func TestConditionService_Plugins(t *testing.T) {
	service, _, _ := newTestConditionService(t)
	defs := service.Plugins()

	require.Len(t, defs, 2)
	assert.Equal(t, condition.RequestExpressionPluginID, defs[0].ID)
	assert.Equal(t, condition.UserPermissionPluginID, defs[1].ID)
}
