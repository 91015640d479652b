package main

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"

	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

type recordingServer struct {
	orgchartpb.UnimplementedEmployeeServiceServer

	mu         sync.Mutex
	lastStruct *structpb.Struct
	lastID     int64
	requestIDs []string
}

func (s *recordingServer) record(ctx context.Context, req *structpb.Struct, id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastStruct = req
	s.lastID = id
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		s.requestIDs = append(s.requestIDs, md.Get("x-request-id")...)
	}
}

func (s *recordingServer) last() (*structpb.Struct, int64, []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastStruct, s.lastID, append([]string(nil), s.requestIDs...)
}

func (s *recordingServer) CreateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.record(ctx, req, 0)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		orgchartpb.FieldID:   orgchartpb.Int64Value(1),
		orgchartpb.FieldName: req.GetFields()[orgchartpb.FieldName],
	}}, nil
}

func (s *recordingServer) UpdateEmployee(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.record(ctx, req, 0)
	return req, nil
}

func (s *recordingServer) ListEmployees(ctx context.Context, _ *emptypb.Empty) (*structpb.ListValue, error) {
	s.record(ctx, nil, 0)
	return &structpb.ListValue{}, nil
}

func (s *recordingServer) DeleteEmployee(ctx context.Context, req *wrapperspb.Int64Value) (*emptypb.Empty, error) {
	s.record(ctx, nil, req.GetValue())
	if req.GetValue() == 1 {
		return nil, status.Error(codes.FailedPrecondition, "employee: employee 1 has 2 subordinates")
	}
	return &emptypb.Empty{}, nil
}

func (s *recordingServer) GetSubordinateTree(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	s.record(ctx, req, 0)
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		orgchartpb.FieldID:       orgchartpb.Int64Value(1),
		orgchartpb.FieldName:     structpb.NewStringValue("Alice"),
		orgchartpb.FieldChildren: structpb.NewListValue(&structpb.ListValue{}),
	}}, nil
}

func newTestApp(t *testing.T) (*app, *recordingServer, *bytes.Buffer) {
	t.Helper()

	fake := &recordingServer{}
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	orgchartpb.RegisterEmployeeServiceServer(srv, fake)
	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	out := &bytes.Buffer{}
	a := newApp(out)
	a.dial = func(ctx context.Context, _ string) (grpc.ClientConnInterface, func() error, error) {
		conn, err := grpc.NewClient("passthrough:///bufnet",
			grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
				return lis.DialContext(ctx)
			}),
			grpc.WithTransportCredentials(insecure.NewCredentials()),
		)
		if err != nil {
			return nil, nil, err
		}
		return conn, conn.Close, nil
	}
	return a, fake, out
}

func execute(a *app, args ...string) error {
	cmd := newRootCmd(a)
	cmd.SetArgs(args)
	return cmd.Execute()
}

func TestOrgctl_CreateRoot(t *testing.T) {
	t.Parallel()

	a, fake, out := newTestApp(t)
	require.NoError(t, execute(a, "create", "Alice", "--request-id", "req-1"))

	req, _, requestIDs := fake.last()
	_, isNull := req.GetFields()[orgchartpb.FieldReportsTo].GetKind().(*structpb.Value_NullValue)
	assert.True(t, isNull, "root creation must send null reports_to")
	assert.Equal(t, []string{"req-1"}, requestIDs)
	assert.Contains(t, out.String(), "Alice")
}

func TestOrgctl_CreateWithManager(t *testing.T) {
	t.Parallel()

	a, fake, _ := newTestApp(t)
	require.NoError(t, execute(a, "create", "Bob", "--reports-to", "1"))

	req, _, _ := fake.last()
	parent, present, err := orgchartpb.NullableInt64Field(req, orgchartpb.FieldReportsTo)
	require.NoError(t, err)
	require.True(t, present)
	require.NotNil(t, parent)
	assert.Equal(t, int64(1), *parent)
}

func TestOrgctl_UpdateFlags(t *testing.T) {
	t.Parallel()

	a, fake, _ := newTestApp(t)

	require.NoError(t, execute(a, "update", "3", "--name", "Carla"))
	req, _, _ := fake.last()
	_, present, err := orgchartpb.NullableInt64Field(req, orgchartpb.FieldReportsTo)
	require.NoError(t, err)
	assert.False(t, present, "reports_to must be omitted when unchanged")

	require.NoError(t, execute(a, "update", "3", "--root"))
	req, _, _ = fake.last()
	parent, present, err := orgchartpb.NullableInt64Field(req, orgchartpb.FieldReportsTo)
	require.NoError(t, err)
	assert.True(t, present)
	assert.Nil(t, parent)

	require.Error(t, execute(a, "update", "3", "--root", "--reports-to", "1"))
}

func TestOrgctl_TreeAndList(t *testing.T) {
	t.Parallel()

	a, fake, out := newTestApp(t)

	require.NoError(t, execute(a, "tree", "1", "--max-depth", "2", "--snapshot"))
	req, _, _ := fake.last()
	depth, ok, err := orgchartpb.Int64Field(req, orgchartpb.FieldMaxDepth)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(2), depth)
	assert.Contains(t, out.String(), "children")

	require.NoError(t, execute(a, "list"))
}

func TestOrgctl_DeleteReportsStatus(t *testing.T) {
	t.Parallel()

	a, fake, out := newTestApp(t)

	require.NoError(t, execute(a, "delete", "4"))
	assert.Contains(t, out.String(), "deleted employee 4")

	err := execute(a, "delete", "1")
	require.Error(t, err)
	_, lastID, _ := fake.last()
	assert.Equal(t, int64(1), lastID)
	assert.Equal(t, "FailedPrecondition: employee: employee 1 has 2 subordinates", formatRPCError(err))
}

func TestOrgctl_RejectsInvalidID(t *testing.T) {
	t.Parallel()

	a, _, _ := newTestApp(t)
	assert.Error(t, execute(a, "get", "abc"))
	assert.Error(t, execute(a, "delete", "0"))
}
