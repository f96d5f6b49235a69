package handlers

import (
	"context"

	"github.com/asakaida/permcondition/internal/entities"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/visibility"
	pb "github.com/asakaida/permcondition/proto/permcondition/v1"
	"google.golang.org/protobuf/types/known/structpb"
)

// ConditionHandler handles ConditionService gRPC requests
type ConditionHandler struct {
	pb.UnimplementedConditionServiceServer
	conditions services.ConditionServiceInterface
	checker    visibility.CheckerInterface
}

// NewConditionHandler creates a new ConditionHandler
func NewConditionHandler(conditions services.ConditionServiceInterface, checker visibility.CheckerInterface) *ConditionHandler {
	return &ConditionHandler{
		conditions: conditions,
		checker:    checker,
	}
}

// ListPlugins handles the ListPlugins RPC
func (h *ConditionHandler) ListPlugins(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	defs := h.conditions.Plugins()

	plugins := make([]interface{}, 0, len(defs))
	for _, def := range defs {
		plugins = append(plugins, map[string]interface{}{
			"id":       def.ID,
			"label":    def.Label,
			"contexts": stringsToList(def.Contexts),
		})
	}

	return newStruct(map[string]interface{}{"plugins": plugins})
}

// ListPermissionOptions handles the ListPermissionOptions RPC
func (h *ConditionHandler) ListPermissionOptions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pluginID, err := optionalString(req, "plugin_id")
	if err != nil {
		return nil, err
	}

	groups, err := h.conditions.Options(ctx, pluginID)
	if err != nil {
		return nil, toStatus(err, "failed to list options")
	}

	return newStruct(map[string]interface{}{"groups": optionGroupsToList(groups)})
}

// CreateCondition handles the CreateCondition RPC
func (h *ConditionHandler) CreateCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	pluginID, err := requiredString(req, "plugin_id")
	if err != nil {
		return nil, err
	}
	configuration, err := optionalStruct(req, "configuration")
	if err != nil {
		return nil, err
	}

	view, err := h.conditions.Create(ctx, pluginID, configuration.AsMap())
	if err != nil {
		return nil, toStatus(err, "failed to create condition")
	}

	return newStruct(conditionViewToMap(view))
}

// ConfigureCondition handles the ConfigureCondition RPC
func (h *ConditionHandler) ConfigureCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}
	configuration, err := optionalStruct(req, "configuration")
	if err != nil {
		return nil, err
	}

	view, err := h.conditions.Configure(ctx, id, configuration.AsMap())
	if err != nil {
		return nil, toStatus(err, "failed to configure condition")
	}

	return newStruct(conditionViewToMap(view))
}

// GetCondition handles the GetCondition RPC
func (h *ConditionHandler) GetCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}

	view, err := h.conditions.Get(ctx, id)
	if err != nil {
		return nil, toStatus(err, "failed to get condition")
	}

	return newStruct(conditionViewToMap(view))
}

// ListConditions handles the ListConditions RPC
func (h *ConditionHandler) ListConditions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	views, err := h.conditions.List(ctx)
	if err != nil {
		return nil, toStatus(err, "failed to list conditions")
	}

	out := make([]interface{}, 0, len(views))
	for _, view := range views {
		out = append(out, conditionViewToMap(view))
	}

	return newStruct(map[string]interface{}{"conditions": out})
}

// DeleteCondition handles the DeleteCondition RPC
func (h *ConditionHandler) DeleteCondition(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := requiredString(req, "id")
	if err != nil {
		return nil, err
	}

	if err := h.conditions.Delete(ctx, id); err != nil {
		return nil, toStatus(err, "failed to delete condition")
	}

	return &structpb.Struct{}, nil
}

// Evaluate handles the Evaluate RPC
func (h *ConditionHandler) Evaluate(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	checkReq, err := evaluateRequest(req)
	if err != nil {
		return nil, err
	}

	resp, err := h.checker.Check(ctx, checkReq)
	if err != nil {
		return nil, toStatus(err, "evaluation failed")
	}

	return newStruct(map[string]interface{}{
		"allowed":        resp.Allowed,
		"cache_contexts": stringsToList(resp.CacheContexts),
		"cached":         resp.Cached,
	})
}

func evaluateRequest(req *structpb.Struct) (*visibility.CheckRequest, error) {
	ids, err := stringList(req, "condition_ids")
	if err != nil {
		return nil, err
	}
	logic, err := optionalString(req, "logic")
	if err != nil {
		return nil, err
	}
	userID, err := optionalString(req, "user_id")
	if err != nil {
		return nil, err
	}

	checkReq := &visibility.CheckRequest{ConditionIDs: ids, Logic: logic, UserID: userID}

	// The request context is present only when the field is sent
	reqStruct, err := optionalStruct(req, "request")
	if err != nil {
		return nil, err
	}
	if reqStruct != nil {
		r := &entities.Request{}
		if r.Route, err = optionalString(reqStruct, "route"); err != nil {
			return nil, err
		}
		if r.URL, err = optionalString(reqStruct, "url"); err != nil {
			return nil, err
		}
		if r.Method, err = optionalString(reqStruct, "method"); err != nil {
			return nil, err
		}
		attributes, err := optionalStruct(reqStruct, "attributes")
		if err != nil {
			return nil, err
		}
		if attributes != nil {
			r.Attributes = attributes.AsMap()
		}
		checkReq.Request = r
	}

	return checkReq, nil
}
