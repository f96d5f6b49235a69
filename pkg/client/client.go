// Package client is a typed Go client for the permcondition ConditionService.
package client

import (
	"context"
	"fmt"
	"reflect"
	"time"

	pb "github.com/asakaida/permcondition/proto/permcondition/v1"
	"github.com/go-viper/mapstructure/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"
)

// Plugin describes a registered condition plugin
type Plugin struct {
	ID       string   `mapstructure:"id"`
	Label    string   `mapstructure:"label"`
	Contexts []string `mapstructure:"contexts"`
}

// Option is a selectable permission
type Option struct {
	Value string `mapstructure:"value"`
	Label string `mapstructure:"label"`
}

// OptionGroup holds the permissions of one module
type OptionGroup struct {
	Label   string   `mapstructure:"label"`
	Options []Option `mapstructure:"options"`
}

// Condition is a stored condition together with its derived description
type Condition struct {
	ID               string                 `mapstructure:"id"`
	PluginID         string                 `mapstructure:"plugin_id"`
	Configuration    map[string]interface{} `mapstructure:"configuration"`
	Summary          string                 `mapstructure:"summary"`
	Negated          bool                   `mapstructure:"negated"`
	CacheContexts    []string               `mapstructure:"cache_contexts"`
	RequiredContexts []string               `mapstructure:"required_contexts"`
	CreatedAt        time.Time              `mapstructure:"created_at"`
	UpdatedAt        time.Time              `mapstructure:"updated_at"`
}

// Request is the request context passed to Evaluate
type Request struct {
	Route      string
	URL        string
	Method     string
	Attributes map[string]interface{}
}

// EvaluateRequest selects the conditions to evaluate and the contexts to
// evaluate them in. A nil Request leaves the request context absent.
type EvaluateRequest struct {
	ConditionIDs []string
	Logic        string // "and" (default) or "or"
	UserID       string // Empty for the anonymous user
	Request      *Request
}

// EvaluateResult is the combined outcome of Evaluate
type EvaluateResult struct {
	Allowed       bool     `mapstructure:"allowed"`
	CacheContexts []string `mapstructure:"cache_contexts"`
	Cached        bool     `mapstructure:"cached"`
}

// Client wraps the ConditionService RPCs
type Client struct {
	rpc  pb.ConditionServiceClient
	conn *grpc.ClientConn // Set only by Dial
}

// New creates a Client over an existing connection
func New(cc grpc.ClientConnInterface) *Client {
	return &Client{rpc: pb.NewConditionServiceClient(cc)}
}

// Dial connects to target without transport security.
// Extra options are appended after the default credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", target, err)
	}
	return &Client{rpc: pb.NewConditionServiceClient(conn), conn: conn}, nil
}

// Close closes the connection opened by Dial
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// ListPlugins returns the registered condition plugins
func (c *Client) ListPlugins(ctx context.Context) ([]Plugin, error) {
	resp, err := c.rpc.ListPlugins(ctx, &structpb.Struct{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Plugins []Plugin `mapstructure:"plugins"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Plugins, nil
}

// ListPermissionOptions returns the grouped permission options of a plugin.
// An empty pluginID selects user_permission.
func (c *Client) ListPermissionOptions(ctx context.Context, pluginID string) ([]OptionGroup, error) {
	req, err := encode(map[string]interface{}{"plugin_id": pluginID})
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.ListPermissionOptions(ctx, req)
	if err != nil {
		return nil, err
	}
	var out struct {
		Groups []OptionGroup `mapstructure:"groups"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Groups, nil
}

// CreateCondition stores a new condition. configuration may be nil.
func (c *Client) CreateCondition(ctx context.Context, pluginID string, configuration map[string]interface{}) (*Condition, error) {
	req, err := encode(map[string]interface{}{
		"plugin_id":     pluginID,
		"configuration": nonNil(configuration),
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.CreateCondition(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeCondition(resp)
}

// ConfigureCondition merges values into the stored configuration
func (c *Client) ConfigureCondition(ctx context.Context, id string, values map[string]interface{}) (*Condition, error) {
	req, err := encode(map[string]interface{}{
		"id":            id,
		"configuration": nonNil(values),
	})
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.ConfigureCondition(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeCondition(resp)
}

// GetCondition returns a stored condition
func (c *Client) GetCondition(ctx context.Context, id string) (*Condition, error) {
	req, err := encode(map[string]interface{}{"id": id})
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.GetCondition(ctx, req)
	if err != nil {
		return nil, err
	}
	return decodeCondition(resp)
}

// ListConditions returns every stored condition
func (c *Client) ListConditions(ctx context.Context) ([]*Condition, error) {
	resp, err := c.rpc.ListConditions(ctx, &structpb.Struct{})
	if err != nil {
		return nil, err
	}
	var out struct {
		Conditions []*Condition `mapstructure:"conditions"`
	}
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return out.Conditions, nil
}

// DeleteCondition removes a stored condition
func (c *Client) DeleteCondition(ctx context.Context, id string) error {
	req, err := encode(map[string]interface{}{"id": id})
	if err != nil {
		return err
	}
	_, err = c.rpc.DeleteCondition(ctx, req)
	return err
}

// Evaluate checks the conditions for a user and request
func (c *Client) Evaluate(ctx context.Context, r *EvaluateRequest) (*EvaluateResult, error) {
	ids := make([]interface{}, len(r.ConditionIDs))
	for i, id := range r.ConditionIDs {
		ids[i] = id
	}

	fields := map[string]interface{}{
		"condition_ids": ids,
		"logic":         r.Logic,
		"user_id":       r.UserID,
	}
	if r.Request != nil {
		fields["request"] = map[string]interface{}{
			"route":      r.Request.Route,
			"url":        r.Request.URL,
			"method":     r.Request.Method,
			"attributes": nonNil(r.Request.Attributes),
		}
	}

	req, err := encode(fields)
	if err != nil {
		return nil, err
	}
	resp, err := c.rpc.Evaluate(ctx, req)
	if err != nil {
		return nil, err
	}

	var out EvaluateResult
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func encode(m map[string]interface{}) (*structpb.Struct, error) {
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return s, nil
}

func decodeCondition(resp *structpb.Struct) (*Condition, error) {
	var out Condition
	if err := decode(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func decode(resp *structpb.Struct, out interface{}) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			emptyTimeHook,
			mapstructure.StringToTimeHookFunc(time.RFC3339),
		),
		Result: out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	if err := decoder.Decode(resp.AsMap()); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// emptyTimeHook decodes "" into the zero time.
func emptyTimeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Time{}) || from.Kind() != reflect.String {
		return data, nil
	}
	if data.(string) == "" {
		return time.Time{}, nil
	}
	return data, nil
}

func nonNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}
