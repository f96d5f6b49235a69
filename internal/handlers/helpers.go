package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/asakaida/permcondition/internal/repositories"
	"github.com/asakaida/permcondition/internal/services"
	"github.com/asakaida/permcondition/internal/services/condition"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// toStatus maps service errors to gRPC status errors
func toStatus(err error, action string) error {
	switch {
	case errors.Is(err, services.ErrInvalidArgument):
		return status.Errorf(codes.InvalidArgument, "%s: %v", action, err)
	case errors.Is(err, repositories.ErrNotFound):
		return status.Errorf(codes.NotFound, "%s: %v", action, err)
	case errors.Is(err, context.Canceled):
		return status.Errorf(codes.Canceled, "%s: %v", action, err)
	case errors.Is(err, context.DeadlineExceeded):
		return status.Errorf(codes.DeadlineExceeded, "%s: %v", action, err)
	default:
		return status.Errorf(codes.Internal, "%s: %v", action, err)
	}
}

// === Request field accessors ===

func fields(req *structpb.Struct) map[string]*structpb.Value {
	if req == nil {
		return nil
	}
	return req.GetFields()
}

func optionalString(req *structpb.Struct, key string) (string, error) {
	v, ok := fields(req)[key]
	if !ok || isNull(v) {
		return "", nil
	}
	s, ok := v.GetKind().(*structpb.Value_StringValue)
	if !ok {
		return "", status.Errorf(codes.InvalidArgument, "%s must be a string", key)
	}
	return s.StringValue, nil
}

func requiredString(req *structpb.Struct, key string) (string, error) {
	s, err := optionalString(req, key)
	if err != nil {
		return "", err
	}
	if s == "" {
		return "", status.Errorf(codes.InvalidArgument, "%s is required", key)
	}
	return s, nil
}

func optionalStruct(req *structpb.Struct, key string) (*structpb.Struct, error) {
	v, ok := fields(req)[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	s, ok := v.GetKind().(*structpb.Value_StructValue)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be an object", key)
	}
	return s.StructValue, nil
}

func stringList(req *structpb.Struct, key string) ([]string, error) {
	v, ok := fields(req)[key]
	if !ok || isNull(v) {
		return nil, nil
	}
	list, ok := v.GetKind().(*structpb.Value_ListValue)
	if !ok {
		return nil, status.Errorf(codes.InvalidArgument, "%s must be a list", key)
	}

	out := make([]string, 0, len(list.ListValue.GetValues()))
	for i, item := range list.ListValue.GetValues() {
		s, ok := item.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return nil, status.Errorf(codes.InvalidArgument, "%s[%d] must be a string", key, i)
		}
		out = append(out, s.StringValue)
	}
	return out, nil
}

func isNull(v *structpb.Value) bool {
	_, null := v.GetKind().(*structpb.Value_NullValue)
	return v == nil || null
}

// === Response builders ===

func newStruct(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return s, nil
}

func stringsToList(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func conditionViewToMap(view *services.ConditionView) map[string]interface{} {
	configuration := make(map[string]interface{}, len(view.Config.Configuration))
	for k, v := range view.Config.Configuration {
		configuration[k] = v
	}
	return map[string]interface{}{
		"id":                view.Config.ID,
		"plugin_id":         view.Config.PluginID,
		"configuration":     configuration,
		"summary":           view.Summary,
		"negated":           view.Negated,
		"cache_contexts":    stringsToList(view.CacheContexts),
		"required_contexts": stringsToList(view.RequiredContexts),
		"created_at":        formatTime(view.Config.CreatedAt),
		"updated_at":        formatTime(view.Config.UpdatedAt),
	}
}

func optionGroupsToList(groups condition.OptionGroups) []interface{} {
	out := make([]interface{}, 0, len(groups))
	for _, g := range groups {
		options := make([]interface{}, 0, len(g.Options))
		for _, opt := range g.Options {
			options = append(options, map[string]interface{}{"value": opt.Value, "label": opt.Label})
		}
		out = append(out, map[string]interface{}{"label": g.Label, "options": options})
	}
	return out
}
