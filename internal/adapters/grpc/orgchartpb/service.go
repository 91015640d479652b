// Package orgchartpb は orgchart.v1.EmployeeService の gRPC サービス定義です。
// メッセージには protobuf の well-known types を使うため、コード生成は不要です。
package orgchartpb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName は EmployeeService の完全修飾名です。
const ServiceName = "orgchart.v1.EmployeeService"

const (
	EmployeeService_CreateEmployee_FullMethodName     = "/orgchart.v1.EmployeeService/CreateEmployee"
	EmployeeService_GetEmployee_FullMethodName        = "/orgchart.v1.EmployeeService/GetEmployee"
	EmployeeService_ListEmployees_FullMethodName      = "/orgchart.v1.EmployeeService/ListEmployees"
	EmployeeService_UpdateEmployee_FullMethodName     = "/orgchart.v1.EmployeeService/UpdateEmployee"
	EmployeeService_DeleteEmployee_FullMethodName     = "/orgchart.v1.EmployeeService/DeleteEmployee"
	EmployeeService_GetSubordinateTree_FullMethodName = "/orgchart.v1.EmployeeService/GetSubordinateTree"
)

// EmployeeServiceClient は EmployeeService のクライアント API です。
type EmployeeServiceClient interface {
	CreateEmployee(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	GetEmployee(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListEmployees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error)
	UpdateEmployee(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteEmployee(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error)
	GetSubordinateTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type employeeServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewEmployeeServiceClient は EmployeeServiceClient を生成します。
func NewEmployeeServiceClient(cc grpc.ClientConnInterface) EmployeeServiceClient {
	return &employeeServiceClient{cc: cc}
}

func (c *employeeServiceClient) CreateEmployee(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EmployeeService_CreateEmployee_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *employeeServiceClient) GetEmployee(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EmployeeService_GetEmployee_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *employeeServiceClient) ListEmployees(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.ListValue, error) {
	out := new(structpb.ListValue)
	if err := c.cc.Invoke(ctx, EmployeeService_ListEmployees_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *employeeServiceClient) UpdateEmployee(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EmployeeService_UpdateEmployee_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *employeeServiceClient) DeleteEmployee(ctx context.Context, in *wrapperspb.Int64Value, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, EmployeeService_DeleteEmployee_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *employeeServiceClient) GetSubordinateTree(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, EmployeeService_GetSubordinateTree_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// EmployeeServiceServer は EmployeeService のサーバー API です。
// 実装は前方互換のため UnimplementedEmployeeServiceServer を埋め込む必要があります。
type EmployeeServiceServer interface {
	CreateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetEmployee(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error)
	ListEmployees(context.Context, *emptypb.Empty) (*structpb.ListValue, error)
	UpdateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteEmployee(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error)
	GetSubordinateTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
	mustEmbedUnimplementedEmployeeServiceServer()
}

// UnimplementedEmployeeServiceServer は未実装メソッドに Unimplemented を返します。
type UnimplementedEmployeeServiceServer struct{}

func (UnimplementedEmployeeServiceServer) CreateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method CreateEmployee not implemented")
}
func (UnimplementedEmployeeServiceServer) GetEmployee(context.Context, *wrapperspb.Int64Value) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetEmployee not implemented")
}
func (UnimplementedEmployeeServiceServer) ListEmployees(context.Context, *emptypb.Empty) (*structpb.ListValue, error) {
	return nil, status.Error(codes.Unimplemented, "method ListEmployees not implemented")
}
func (UnimplementedEmployeeServiceServer) UpdateEmployee(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method UpdateEmployee not implemented")
}
func (UnimplementedEmployeeServiceServer) DeleteEmployee(context.Context, *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method DeleteEmployee not implemented")
}
func (UnimplementedEmployeeServiceServer) GetSubordinateTree(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetSubordinateTree not implemented")
}
func (UnimplementedEmployeeServiceServer) mustEmbedUnimplementedEmployeeServiceServer() {}

// RegisterEmployeeServiceServer はサービス実装を gRPC サーバーに登録します。
func RegisterEmployeeServiceServer(s grpc.ServiceRegistrar, srv EmployeeServiceServer) {
	s.RegisterService(&EmployeeService_ServiceDesc, srv)
}

func _EmployeeService_CreateEmployee_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).CreateEmployee(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_CreateEmployee_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).CreateEmployee(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _EmployeeService_GetEmployee_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).GetEmployee(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_GetEmployee_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).GetEmployee(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func _EmployeeService_ListEmployees_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).ListEmployees(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_ListEmployees_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).ListEmployees(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _EmployeeService_UpdateEmployee_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).UpdateEmployee(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_UpdateEmployee_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).UpdateEmployee(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _EmployeeService_DeleteEmployee_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.Int64Value)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).DeleteEmployee(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_DeleteEmployee_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).DeleteEmployee(ctx, req.(*wrapperspb.Int64Value))
	}
	return interceptor(ctx, in, info, handler)
}

func _EmployeeService_GetSubordinateTree_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(EmployeeServiceServer).GetSubordinateTree(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: EmployeeService_GetSubordinateTree_FullMethodName}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(EmployeeServiceServer).GetSubordinateTree(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// EmployeeService_ServiceDesc は EmployeeService の grpc.ServiceDesc です。
var EmployeeService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EmployeeServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateEmployee", Handler: _EmployeeService_CreateEmployee_Handler},
		{MethodName: "GetEmployee", Handler: _EmployeeService_GetEmployee_Handler},
		{MethodName: "ListEmployees", Handler: _EmployeeService_ListEmployees_Handler},
		{MethodName: "UpdateEmployee", Handler: _EmployeeService_UpdateEmployee_Handler},
		{MethodName: "DeleteEmployee", Handler: _EmployeeService_DeleteEmployee_Handler},
		{MethodName: "GetSubordinateTree", Handler: _EmployeeService_GetSubordinateTree_Handler},
	},
	Streams: []grpc.StreamDesc{},
}
