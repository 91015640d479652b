package handler

import (
	"context"
	"time"

	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/ogurasousui/orgchart/internal/core/employee"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// EmployeeGrpcHandler は EmployeeService の gRPC 実装です。
type EmployeeGrpcHandler struct {
	svc employee.UseCase
	orgchartpb.UnimplementedEmployeeServiceServer
}

// NewEmployeeGrpcHandler は EmployeeGrpcHandler を生成します。
func NewEmployeeGrpcHandler(svc employee.UseCase) *EmployeeGrpcHandler {
	return &EmployeeGrpcHandler{svc: svc}
}

// CreateEmployee は社員を作成します。reports_to が null または未指定ならルートとして作成します。
func (h *EmployeeGrpcHandler) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	name, err := orgchartpb.StringField(req, orgchartpb.FieldName)
	if err != nil {
		return nil, toStatusError(err)
	}
	if name == nil {
		return nil, status.Error(codes.InvalidArgument, "name is required")
	}

	reportsTo, _, err := orgchartpb.NullableInt64Field(req, orgchartpb.FieldReportsTo)
	if err != nil {
		return nil, toStatusError(err)
	}

	created, err := h.svc.CreateEmployee(ctx, employee.CreateEmployeeInput{
		Name:      *name,
		ReportsTo: reportsTo,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoEmployee(created), nil
}

// GetEmployee は上長と直属部下を含めて社員を取得します。
func (h *EmployeeGrpcHandler) GetEmployee(ctx context.Context, req *wrapperspb.Int64Value) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	found, err := h.svc.GetEmployee(ctx, employee.GetEmployeeInput{ID: req.GetValue()})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoEmployee(found), nil
}

// ListEmployees は全社員を返します。
func (h *EmployeeGrpcHandler) ListEmployees(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	employees, err := h.svc.ListEmployees(ctx)
	if err != nil {
		return nil, toStatusError(err)
	}

	values := make([]*structpb.Value, 0, len(employees))
	for _, e := range employees {
		values = append(values, structpb.NewStructValue(toProtoEmployee(e)))
	}
	return &structpb.ListValue{Values: values}, nil
}

// UpdateEmployee は社員の名前や上長を変更します。
// reports_to は未指定なら変更なし、null ならルートへの昇格を意味します。
func (h *EmployeeGrpcHandler) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, ok, err := orgchartpb.Int64Field(req, orgchartpb.FieldID)
	if err != nil {
		return nil, toStatusError(err)
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	name, err := orgchartpb.StringField(req, orgchartpb.FieldName)
	if err != nil {
		return nil, toStatusError(err)
	}

	reportsTo, reportsToSet, err := orgchartpb.NullableInt64Field(req, orgchartpb.FieldReportsTo)
	if err != nil {
		return nil, toStatusError(err)
	}

	updated, err := h.svc.UpdateEmployee(ctx, employee.UpdateEmployeeInput{
		ID:           id,
		Name:         name,
		ReportsTo:    reportsTo,
		ReportsToSet: reportsToSet,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoEmployee(updated), nil
}

// DeleteEmployee は部下のいない社員を削除します。
func (h *EmployeeGrpcHandler) DeleteEmployee(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if err := h.svc.DeleteEmployee(ctx, employee.DeleteEmployeeInput{ID: req.GetValue()}); err != nil {
		return nil, toStatusError(err)
	}

	return &emptypb.Empty{}, nil
}

// GetSubordinateTree は指定社員を頂点とする部下ツリーを返します。
func (h *EmployeeGrpcHandler) GetSubordinateTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, ok, err := orgchartpb.Int64Field(req, orgchartpb.FieldID)
	if err != nil {
		return nil, toStatusError(err)
	}
	if !ok {
		return nil, status.Error(codes.InvalidArgument, "id is required")
	}

	maxDepth, _, err := orgchartpb.Int64Field(req, orgchartpb.FieldMaxDepth)
	if err != nil {
		return nil, toStatusError(err)
	}

	snapshot, err := orgchartpb.BoolField(req, orgchartpb.FieldSnapshot)
	if err != nil {
		return nil, toStatusError(err)
	}

	tree, err := h.svc.BuildTree(ctx, employee.BuildTreeInput{
		ID:       id,
		MaxDepth: int(maxDepth),
		Snapshot: snapshot,
	})
	if err != nil {
		return nil, toStatusError(err)
	}

	return toProtoTree(*tree), nil
}

func toProtoEmployee(e *employee.Employee) *structpb.Struct {
	if e == nil {
		return nil
	}

	manager := structpb.NewNullValue()
	if e.Manager != nil {
		manager = structpb.NewStructValue(toProtoRef(e.Manager.ID, e.Manager.Name))
	}

	subordinates := make([]*structpb.Value, 0, len(e.Subordinates))
	for _, sub := range e.Subordinates {
		subordinates = append(subordinates, structpb.NewStructValue(toProtoRef(sub.ID, sub.Name)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		orgchartpb.FieldID:           orgchartpb.Int64Value(e.ID),
		orgchartpb.FieldName:         structpb.NewStringValue(e.Name),
		orgchartpb.FieldReportsTo:    orgchartpb.NullableInt64Value(e.ReportsTo),
		orgchartpb.FieldManager:      manager,
		orgchartpb.FieldSubordinates: structpb.NewListValue(&structpb.ListValue{Values: subordinates}),
		orgchartpb.FieldCreatedAt:    structpb.NewStringValue(e.CreatedAt.UTC().Format(time.RFC3339Nano)),
		orgchartpb.FieldUpdatedAt:    structpb.NewStringValue(e.UpdatedAt.UTC().Format(time.RFC3339Nano)),
	}}
}

func toProtoRef(id int64, name string) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		orgchartpb.FieldID:   orgchartpb.Int64Value(id),
		orgchartpb.FieldName: structpb.NewStringValue(name),
	}}
}

func toProtoTree(node employee.TreeNode) *structpb.Struct {
	children := make([]*structpb.Value, 0, len(node.Children))
	for _, child := range node.Children {
		children = append(children, structpb.NewStructValue(toProtoTree(child)))
	}

	return &structpb.Struct{Fields: map[string]*structpb.Value{
		orgchartpb.FieldID:       orgchartpb.Int64Value(node.ID),
		orgchartpb.FieldName:     structpb.NewStringValue(node.Name),
		orgchartpb.FieldChildren: structpb.NewListValue(&structpb.ListValue{Values: children}),
	}}
}
