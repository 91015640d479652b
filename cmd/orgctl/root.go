package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/ogurasousui/orgchart/internal/adapters/grpc/handler"
	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

type dialFunc func(ctx context.Context, addr string) (grpc.ClientConnInterface, func() error, error)

type app struct {
	addr      string
	timeout   time.Duration
	requestID string
	out       io.Writer
	dial      dialFunc
}

func newApp(out io.Writer) *app {
	return &app{out: out, dial: dialInsecure}
}

func dialInsecure(_ context.Context, addr string) (grpc.ClientConnInterface, func() error, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, conn.Close, nil
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "orgctl",
		Short:         "Manage the employee reporting hierarchy over gRPC",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(a.out)

	cmd.PersistentFlags().StringVar(&a.addr, "addr", "localhost:50051", "gRPC server address")
	cmd.PersistentFlags().DurationVar(&a.timeout, "timeout", 10*time.Second, "per-call timeout")
	cmd.PersistentFlags().StringVar(&a.requestID, "request-id", "", "x-request-id sent with the call (default: random UUID)")

	cmd.AddCommand(
		newCreateCmd(a),
		newGetCmd(a),
		newListCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newTreeCmd(a),
	)
	return cmd
}

// call はクライアントを用意して fn を実行します。
func (a *app) call(ctx context.Context, fn func(context.Context, orgchartpb.EmployeeServiceClient) (proto.Message, error)) error {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	requestID := a.requestID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", requestID)

	conn, closeConn, err := a.dial(ctx, a.addr)
	if err != nil {
		return err
	}
	defer func() { _ = closeConn() }()

	msg, err := fn(ctx, orgchartpb.NewEmployeeServiceClient(conn))
	if err != nil {
		return err
	}
	if msg == nil {
		return nil
	}
	return a.print(msg)
}

func (a *app) print(msg proto.Message) error {
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = fmt.Fprintln(a.out, string(b))
	return err
}

func formatRPCError(err error) string {
	st, ok := status.FromError(err)
	if !ok {
		return err.Error()
	}
	if reason, ok := handler.ErrorReason(err); ok {
		return fmt.Sprintf("%s (%s): %s", st.Code(), reason, st.Message())
	}
	return fmt.Sprintf("%s: %s", st.Code(), st.Message())
}
