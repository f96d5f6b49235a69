// Package permconditionv1 is the gRPC contract of permcondition.v1.ConditionService.
//
// Every request and response is a google.protobuf.Struct; the field names of
// each message are listed next to its method below.
package permconditionv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "permcondition.v1.ConditionService"

// Fully qualified method names.
const (
	ConditionService_ListPlugins_FullMethodName           = "/" + ServiceName + "/ListPlugins"
	ConditionService_ListPermissionOptions_FullMethodName = "/" + ServiceName + "/ListPermissionOptions"
	ConditionService_CreateCondition_FullMethodName       = "/" + ServiceName + "/CreateCondition"
	ConditionService_ConfigureCondition_FullMethodName    = "/" + ServiceName + "/ConfigureCondition"
	ConditionService_GetCondition_FullMethodName          = "/" + ServiceName + "/GetCondition"
	ConditionService_ListConditions_FullMethodName        = "/" + ServiceName + "/ListConditions"
	ConditionService_DeleteCondition_FullMethodName       = "/" + ServiceName + "/DeleteCondition"
	ConditionService_Evaluate_FullMethodName              = "/" + ServiceName + "/Evaluate"
)

// ConditionServiceServer is the server API for ConditionService.
type ConditionServiceServer interface {
	// ListPlugins: {} -> {plugins: [{id, label, contexts}]}
	ListPlugins(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListPermissionOptions: {plugin_id?} -> {groups: [{label, options: [{value, label}]}]}
	ListPermissionOptions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// CreateCondition: {plugin_id, configuration?} -> condition
	CreateCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ConfigureCondition: {id, configuration} -> condition
	ConfigureCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// GetCondition: {id} -> condition
	GetCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// ListConditions: {} -> {conditions: [condition]}
	ListConditions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// DeleteCondition: {id} -> {}
	DeleteCondition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	// Evaluate: {condition_ids, logic?, user_id?, request?: {route, url, method, attributes}}
	//   -> {allowed, cache_contexts, cached}
	Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedConditionServiceServer must be embedded to have forward compatible implementations.
type UnimplementedConditionServiceServer struct{}

func (UnimplementedConditionServiceServer) ListPlugins(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPlugins not implemented")
}
func (UnimplementedConditionServiceServer) ListPermissionOptions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListPermissionOptions not implemented")
}
func (UnimplementedConditionServiceServer) CreateCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateCondition not implemented")
}
func (UnimplementedConditionServiceServer) ConfigureCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ConfigureCondition not implemented")
}
func (UnimplementedConditionServiceServer) GetCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetCondition not implemented")
}
func (UnimplementedConditionServiceServer) ListConditions(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListConditions not implemented")
}
func (UnimplementedConditionServiceServer) DeleteCondition(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteCondition not implemented")
}
func (UnimplementedConditionServiceServer) Evaluate(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Evaluate not implemented")
}

type unaryCall func(ConditionServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	fullMethod := "/" + ServiceName + "/" + name
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ConditionServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(ConditionServiceServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ConditionService_ServiceDesc is the grpc.ServiceDesc for ConditionService.
var ConditionService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ConditionServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("ListPlugins", ConditionServiceServer.ListPlugins),
		unaryMethod("ListPermissionOptions", ConditionServiceServer.ListPermissionOptions),
		unaryMethod("CreateCondition", ConditionServiceServer.CreateCondition),
		unaryMethod("ConfigureCondition", ConditionServiceServer.ConfigureCondition),
		unaryMethod("GetCondition", ConditionServiceServer.GetCondition),
		unaryMethod("ListConditions", ConditionServiceServer.ListConditions),
		unaryMethod("DeleteCondition", ConditionServiceServer.DeleteCondition),
		unaryMethod("Evaluate", ConditionServiceServer.Evaluate),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "permcondition/v1/condition_service.proto",
}

// RegisterConditionServiceServer registers srv on s.
func RegisterConditionServiceServer(s grpc.ServiceRegistrar, srv ConditionServiceServer) {
	s.RegisterService(&ConditionService_ServiceDesc, srv)
}

// ConditionServiceClient is the client API for ConditionService.
type ConditionServiceClient interface {
	ListPlugins(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListPermissionOptions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	CreateCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ConfigureCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListConditions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type conditionServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewConditionServiceClient creates a client on cc.
func NewConditionServiceClient(cc grpc.ClientConnInterface) ConditionServiceClient {
	return &conditionServiceClient{cc}
}

func (c *conditionServiceClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *conditionServiceClient) ListPlugins(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ListPlugins_FullMethodName, in, opts)
}

func (c *conditionServiceClient) ListPermissionOptions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ListPermissionOptions_FullMethodName, in, opts)
}

func (c *conditionServiceClient) CreateCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_CreateCondition_FullMethodName, in, opts)
}

func (c *conditionServiceClient) ConfigureCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ConfigureCondition_FullMethodName, in, opts)
}

func (c *conditionServiceClient) GetCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_GetCondition_FullMethodName, in, opts)
}

func (c *conditionServiceClient) ListConditions(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_ListConditions_FullMethodName, in, opts)
}

func (c *conditionServiceClient) DeleteCondition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_DeleteCondition_FullMethodName, in, opts)
}

func (c *conditionServiceClient) Evaluate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ConditionService_Evaluate_FullMethodName, in, opts)
}
