package handlers

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/condition"
	"github.com/asakaida/permcondition/internal/services/visibility"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Mock ConditionService
type mockConditionService struct {
	optionsFunc   func(ctx context.Context, pluginID string) (condition.OptionGroups, error)
	createFunc    func(ctx context.Context, pluginID string, configuration map[string]interface{}) (*services.ConditionView, error)
	configureFunc func(ctx context.Context, id string, values map[string]interface{}) (*services.ConditionView, error)
	getFunc       func(ctx context.Context, id string) (*services.ConditionView, error)
	deleteFunc    func(ctx context.Context, id string) error
	listFunc      func(ctx context.Context) ([]*services.ConditionView, error)
}

func (m *mockConditionService) Plugins() []condition.Definition {
	return []condition.Definition{
		{ID: condition.UserPermissionPluginID, Label: "User Permission", Contexts: []string{condition.ContextUser}},
	}
}

func (m *mockConditionService) Options(ctx context.Context, pluginID string) (condition.OptionGroups, error) {
	if m.optionsFunc != nil {
		return m.optionsFunc(ctx, pluginID)
	}
	return condition.OptionGroups{}, nil
}

func (m *mockConditionService) Create(ctx context.Context, pluginID string, configuration map[string]interface{}) (*services.ConditionView, error) {
	if m.createFunc != nil {
		return m.createFunc(ctx, pluginID, configuration)
	}
	return nil, errors.New("not implemented")
}

func (m *mockConditionService) Configure(ctx context.Context, id string, values map[string]interface{}) (*services.ConditionView, error) {
	if m.configureFunc != nil {
		return m.configureFunc(ctx, id, values)
	}
	return nil, errors.New("not implemented")
}

func (m *mockConditionService) Get(ctx context.Context, id string) (*services.ConditionView, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return nil, repositories.ErrNotFound
}

func (m *mockConditionService) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func (m *mockConditionService) List(ctx context.Context) ([]*services.ConditionView, error) {
	if m.listFunc != nil {
		return m.listFunc(ctx)
	}
	return nil, nil
}

// Mock Checker
type mockChecker struct {
	checkFunc func(ctx context.Context, req *visibility.CheckRequest) (*visibility.CheckResponse, error)
}

func (m *mockChecker) Check(ctx context.Context, req *visibility.CheckRequest) (*visibility.CheckResponse, error) {
	return m.checkFunc(ctx, req)
}

func mustStruct(t *testing.T, m map[string]interface{}) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func sampleView() *services.ConditionView {
	return &services.ConditionView{
		Config: &entities.ConditionConfig{
			ID:            "0d1f2c3b-4a59-4687-8e9f-a0b1c2d3e4f5",
			PluginID:      condition.UserPermissionPluginID,
			Configuration: map[string]interface{}{"permission": "access content", "negate": false},
			CreatedAt:     time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		},
		Summary:          `The user has the permission "access content"`,
		CacheContexts:    []string{"user.permissions"},
		RequiredContexts: []string{"user"},
	}
}

func TestConditionHandler_ListPlugins(t *testing.T) {
	handler := NewConditionHandler(&mockConditionService{}, nil)

	resp, err := handler.ListPlugins(context.Background(), &structpb.Struct{})
	require.NoError(t, err)

	plugins := resp.AsMap()["plugins"].([]interface{})
	require.Len(t, plugins, 1)
	assert.Equal(t, map[string]interface{}{
		"id":       "user_permission",
		"label":    "User Permission",
		"contexts": []interface{}{"user"},
	}, plugins[0])
}

func TestConditionHandler_ListPermissionOptions(t *testing.T) {
	service := &mockConditionService{
		optionsFunc: func(ctx context.Context, pluginID string) (condition.OptionGroups, error) {
			assert.Equal(t, "", pluginID)
			return condition.OptionGroups{
				{Label: "Node", Options: []condition.Option{{Value: "access content", Label: "View published content"}}},
			}, nil
		},
	}
	handler := NewConditionHandler(service, nil)

	resp, err := handler.ListPermissionOptions(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, []interface{}{
		map[string]interface{}{
			"label": "Node",
			"options": []interface{}{
				map[string]interface{}{"value": "access content", "label": "View published content"},
			},
		},
	}, resp.AsMap()["groups"])
}

func TestConditionHandler_CreateCondition(t *testing.T) {
	t.Run("正常系", func(t *testing.T) {
		service := &mockConditionService{
			createFunc: func(ctx context.Context, pluginID string, configuration map[string]interface{}) (*services.ConditionView, error) {
				assert.Equal(t, condition.UserPermissionPluginID, pluginID)
				assert.Equal(t, map[string]interface{}{"permission": "access content"}, configuration)
				return sampleView(), nil
			},
		}
		handler := NewConditionHandler(service, nil)

		resp, err := handler.CreateCondition(context.Background(), mustStruct(t, map[string]interface{}{
			"plugin_id":     "user_permission",
			"configuration": map[string]interface{}{"permission": "access content"},
		}))
		require.NoError(t, err)

		got := resp.AsMap()
		assert.Equal(t, "0d1f2c3b-4a59-4687-8e9f-a0b1c2d3e4f5", got["id"])
		assert.Equal(t, `The user has the permission "access content"`, got["summary"])
		assert.Equal(t, []interface{}{"user.permissions"}, got["cache_contexts"])
		assert.Equal(t, "2024-05-01T12:00:00Z", got["created_at"])
		assert.Equal(t, "", got["updated_at"])
	})

	t.Run("異常系: plugin_id なし", func(t *testing.T) {
		handler := NewConditionHandler(&mockConditionService{}, nil)
		_, err := handler.CreateCondition(context.Background(), &structpb.Struct{})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("異常系: configuration がオブジェクトでない", func(t *testing.T) {
		handler := NewConditionHandler(&mockConditionService{}, nil)
		_, err := handler.CreateCondition(context.Background(), mustStruct(t, map[string]interface{}{
			"plugin_id":     "user_permission",
			"configuration": "access content",
		}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}

func TestConditionHandler_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want codes.Code
	}{
		{name: "invalid argument", err: fmt.Errorf("%w: bad", services.ErrInvalidArgument), want: codes.InvalidArgument},
		{name: "not found", err: fmt.Errorf("wrapped: %w", repositories.ErrNotFound), want: codes.NotFound},
		{name: "canceled", err: context.Canceled, want: codes.Canceled},
		{name: "deadline", err: context.DeadlineExceeded, want: codes.DeadlineExceeded},
		{name: "internal", err: errors.New("connection refused"), want: codes.Internal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockConditionService{
				getFunc: func(ctx context.Context, id string) (*services.ConditionView, error) {
					return nil, tt.err
				},
			}
			handler := NewConditionHandler(service, nil)

			_, err := handler.GetCondition(context.Background(), mustStruct(t, map[string]interface{}{"id": "x"}))
			assert.Equal(t, tt.want, status.Code(err))
		})
	}
}

func TestConditionHandler_ConfigureAndDelete(t *testing.T) {
	var deleted string
	service := &mockConditionService{
		configureFunc: func(ctx context.Context, id string, values map[string]interface{}) (*services.ConditionView, error) {
			view := sampleView()
			view.Negated = values["negate"] == true
			return view, nil
		},
		deleteFunc: func(ctx context.Context, id string) error {
			deleted = id
			return nil
		},
		listFunc: func(ctx context.Context) ([]*services.ConditionView, error) {
			return []*services.ConditionView{sampleView(), sampleView()}, nil
		},
	}
	handler := NewConditionHandler(service, nil)
	ctx := context.Background()

	resp, err := handler.ConfigureCondition(ctx, mustStruct(t, map[string]interface{}{
		"id":            "c1",
		"configuration": map[string]interface{}{"negate": true},
	}))
	require.NoError(t, err)
	assert.Equal(t, true, resp.AsMap()["negated"])

	_, err = handler.ConfigureCondition(ctx, &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	_, err = handler.DeleteCondition(ctx, mustStruct(t, map[string]interface{}{"id": "c1"}))
	require.NoError(t, err)
	assert.Equal(t, "c1", deleted)

	list, err := handler.ListConditions(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, list.AsMap()["conditions"], 2)
}

func TestConditionHandler_Evaluate(t *testing.T) {
	t.Run("正常系: request あり", func(t *testing.T) {
		checker := &mockChecker{
			checkFunc: func(ctx context.Context, req *visibility.CheckRequest) (*visibility.CheckResponse, error) {
				assert.Equal(t, []string{"a", "b"}, req.ConditionIDs)
				assert.Equal(t, "or", req.Logic)
				assert.Equal(t, "alice", req.UserID)
				require.NotNil(t, req.Request)
				assert.Equal(t, "entity.node.canonical", req.Request.Route)
				assert.Equal(t, "GET", req.Request.Method)
				assert.Equal(t, map[string]interface{}{"node_type": "article"}, req.Request.Attributes)
				return &visibility.CheckResponse{Allowed: true, CacheContexts: []string{"user.permissions", "route"}}, nil
			},
		}
		handler := NewConditionHandler(&mockConditionService{}, checker)

		resp, err := handler.Evaluate(context.Background(), mustStruct(t, map[string]interface{}{
			"condition_ids": []interface{}{"a", "b"},
			"logic":         "or",
			"user_id":       "alice",
			"request": map[string]interface{}{
				"route":      "entity.node.canonical",
				"method":     "GET",
				"attributes": map[string]interface{}{"node_type": "article"},
			},
		}))
		require.NoError(t, err)
		assert.Equal(t, map[string]interface{}{
			"allowed":        true,
			"cache_contexts": []interface{}{"user.permissions", "route"},
			"cached":         false,
		}, resp.AsMap())
	})

	t.Run("正常系: request なし", func(t *testing.T) {
		checker := &mockChecker{
			checkFunc: func(ctx context.Context, req *visibility.CheckRequest) (*visibility.CheckResponse, error) {
				assert.Nil(t, req.Request)
				assert.Equal(t, "", req.UserID)
				return &visibility.CheckResponse{}, nil
			},
		}
		handler := NewConditionHandler(&mockConditionService{}, checker)

		_, err := handler.Evaluate(context.Background(), mustStruct(t, map[string]interface{}{
			"condition_ids": []interface{}{"a"},
		}))
		require.NoError(t, err)
	})

	t.Run("異常系: condition_ids が文字列リストでない", func(t *testing.T) {
		handler := NewConditionHandler(&mockConditionService{}, &mockChecker{})
		_, err := handler.Evaluate(context.Background(), mustStruct(t, map[string]interface{}{
			"condition_ids": []interface{}{1.0},
		}))
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})

	t.Run("異常系: checker のエラー", func(t *testing.T) {
		checker := &mockChecker{
			checkFunc: func(ctx context.Context, req *visibility.CheckRequest) (*visibility.CheckResponse, error) {
				return nil, fmt.Errorf("%w: at least one condition ID is required", services.ErrInvalidArgument)
			},
		}
		handler := NewConditionHandler(&mockConditionService{}, checker)
		_, err := handler.Evaluate(context.Background(), &structpb.Struct{})
		assert.Equal(t, codes.InvalidArgument, status.Code(err))
	})
}
