package server

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/ogurasousui/orgchart/internal/adapters/grpc/handler"
	"github.com/ogurasousui/orgchart/internal/adapters/grpc/orgchartpb"
	"github.com/ogurasousui/orgchart/internal/core/employee"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Server は gRPC サーバーのライフサイクルを管理します。
type Server struct {
	listenAddr string
	grpcServer *grpc.Server
	health     *health.Server
	logger     zerolog.Logger
}

// New は EmployeeService を登録した gRPC サーバーを構築します。metrics が nil の場合は計測しません。
func New(listenAddr string, svc employee.UseCase, logger zerolog.Logger, metrics *Metrics, opts ...grpc.ServerOption) *Server {
	opts = append(opts, grpc.ChainUnaryInterceptor(
		observabilityInterceptor(logger, metrics),
		recoveryInterceptor(),
	))
	srv := grpc.NewServer(opts...)

	orgchartpb.RegisterEmployeeServiceServer(srv, handler.NewEmployeeGrpcHandler(svc))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus(orgchartpb.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, healthSrv)

	return &Server{
		listenAddr: listenAddr,
		grpcServer: srv,
		health:     healthSrv,
		logger:     logger,
	}
}

// Run はサーバーを起動し、コンテキストがキャンセルされると GracefulStop します。
func (s *Server) Run(ctx context.Context) error {
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(ctx, lis)
}

// Serve は指定されたリスナーで待ち受けます。
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	go func() {
		<-ctx.Done()
		s.GracefulStop()
	}()

	s.logger.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
	if err := s.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	return nil
}

// GracefulStop はヘルスチェックを NOT_SERVING にしてからサーバーを安全に停止します。
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
